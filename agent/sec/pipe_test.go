package sec_test

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/findy-network/findy-protocol-engine/agent/sec"
	"github.com/findy-network/findy-protocol-engine/enclave"
	"github.com/lainio/err2"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

var (
	alice *enclave.KeySet
	bob   *enclave.KeySet
)

func TestMain(m *testing.M) {
	setUp()
	code := m.Run()
	tearDown()
	os.Exit(code)
}

func setUp() {
	defer err2.CatchTrace(func(err error) {
		fmt.Println("error on setup", err)
	})

	try.To(flag.Set("logtostderr", "true"))

	dir := try.To1(os.MkdirTemp("", "pipe-test"))
	try.To(enclave.InitSealedBox(filepath.Join(dir, "enclave.bolt"), ""))

	alice = try.To1(enclave.NewKeySet("alice"))
	bob = try.To1(enclave.NewKeySet("bob"))
}

func tearDown() {
	enclave.WipeSealedBox()
}

func pipeTo(in *enclave.KeySet, out *enclave.KeySet) sec.Pipe {
	return sec.Pipe{
		In:  in,
		Out: sec.PublicKey{SignKey: out.SignKey(), EncKey: out.EncKey()},
	}
}

func TestPackUnpack(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	message := []byte(`{"@id":"123","content":"hello"}`)

	wire, err := pipeTo(alice, bob).Pack(message)
	assert.NoError(err)
	assert.That(len(wire) > 0)

	got, senderKey, ks, err := sec.Unpack(wire)
	assert.NoError(err)
	assert.That(reflect.DeepEqual(got, message))
	assert.Equal(senderKey, alice.SignKey())
	assert.Equal(ks.EncKey(), bob.EncKey())
}

func TestUnpackGarbage(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	_, _, _, err := sec.Unpack([]byte("not an envelope"))
	assert.That(errors.Is(err, sec.ErrDecode))

	_, _, _, err = sec.Unpack([]byte(`{"protected":{},"ciphertext":"","signature":""}`))
	assert.That(errors.Is(err, sec.ErrDecode))
}

func TestUnpackUnknownRecipient(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	wire, err := pipeTo(alice, bob).Pack([]byte("message"))
	assert.NoError(err)

	// rewrite the envelope to claim a recipient key we don't hold
	var env map[string]interface{}
	try.To(json.Unmarshal(wire, &env))
	hdr := env["protected"].(map[string]interface{})
	hdr["kid"] = alice.SignKey()
	forged := try.To1(json.Marshal(env))

	_, _, _, err = sec.Unpack(forged)
	assert.That(errors.Is(err, sec.ErrDecode))
}

func TestUnpackTampered(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	wire, err := pipeTo(alice, bob).Pack([]byte("message"))
	assert.NoError(err)

	// flip bytes inside the base64 ciphertext
	tampered := make([]byte, len(wire))
	copy(tampered, wire)
	at := len(tampered) / 2
	tampered[at] ^= 0x01

	_, _, _, err = sec.Unpack(tampered)
	assert.That(errors.Is(err, sec.ErrDecode))
}

func TestSignVerify(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	msg := []byte("signed message")
	p := pipeTo(alice, bob)

	sig, err := p.Sign(msg)
	assert.NoError(err)

	// bob verifies with alice's public signing key
	back := pipeTo(bob, alice)
	ok, err := back.Verify(msg, sig)
	assert.NoError(err)
	assert.That(ok)

	ok, _ = back.Verify([]byte("other message"), sig)
	assert.That(!ok)
}
