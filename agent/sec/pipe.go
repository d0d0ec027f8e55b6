/*
Package sec implements the message envelope codec. All agent to agent
communication goes through a Pipe which packs outgoing payloads to a signed
and encrypted wire envelope and unpacks incoming ones. The envelope is a
JSON structure: a protected header naming the sender's signing key and the
recipient's encryption key, the hybrid-encrypted payload with the header as
associated data, and the sender's signature over both.

Unpack authenticates the sender: the signature must verify with the key the
header claims, so a forged skid cannot pass. Key material is tink key sets,
the public sides travel as base58.
*/
package sec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-protocol-engine/enclave"
	"github.com/golang/glog"
	"github.com/google/tink/go/hybrid"
	"github.com/google/tink/go/keyset"
	"github.com/google/tink/go/signature"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

// ErrDecode is wrapped into every envelope decode failure: bad signature,
// unknown recipient key, or malformed payload. The message is dropped and
// never retried.
var ErrDecode = errors.New("envelope decode error")

const envelopeTyp = "FINDY/1.0"
const envelopeAlg = "ECDH-ES+ED25519"

// PublicKey is the public side of a peer's key set.
type PublicKey struct {
	SignKey string `json:"signKey"` // base58 public signing key set
	EncKey  string `json:"encKey"`  // base58 public encryption key set
}

// Pipe is secure way to transport data between DID connection. All agent to
// agent communication uses it. For its internal structure we must define the
// direction of the pipe.
type Pipe struct {
	In  *enclave.KeySet // our end
	Out PublicKey       // their end
}

type protected struct {
	Typ  string `json:"typ"`
	Alg  string `json:"alg"`
	SKID string `json:"skid"` // sender public signing key, base58
	KID  string `json:"kid"`  // recipient public encryption key, base58
}

type envelope struct {
	Protected  protected `json:"protected"`
	CipherText string    `json:"ciphertext"`
	Signature  string    `json:"signature"`
}

// Pack packs the payload bytes to a wire envelope for the pipe's other end.
func (p Pipe) Pack(src []byte) (dst []byte, err error) {
	defer err2.Annotatew("sec pipe pack", &err)

	if p.In == nil || p.Out.EncKey == "" {
		return nil, errors.New("pipe is not complete")
	}

	hdr := protected{
		Typ:  envelopeTyp,
		Alg:  envelopeAlg,
		SKID: p.In.SignKey(),
		KID:  p.Out.EncKey,
	}
	aad := dto.ToJSONBytes(hdr)

	ct := try.To1(encryptWith(p.Out.EncKey, src, aad))
	sig := try.To1(p.In.Sign(signedData(aad, ct)))

	env := envelope{
		Protected:  hdr,
		CipherText: base64.StdEncoding.EncodeToString(ct),
		Signature:  base64.StdEncoding.EncodeToString(sig),
	}
	return dto.ToJSONBytes(env), nil
}

// Sign signs the message with our end's signing key.
func (p Pipe) Sign(src []byte) (sig []byte, err error) {
	return p.In.Sign(src)
}

// Verify verifies the signature of the message against the other end's
// signing key.
func (p Pipe) Verify(msg, sig []byte) (yes bool, err error) {
	defer err2.Catch(func(e error) {
		glog.Error("error:", e)
		yes = false
	})

	try.To(verifyWith(p.Out.SignKey, msg, sig))
	return true, nil
}

// Unpack opens a wire envelope addressed to one of our key sets. It returns
// the payload, the authenticated sender signing key, and the local key set
// that the envelope was sealed to. All failures wrap ErrDecode.
func Unpack(wire []byte) (dst []byte, senderKey string, ks *enclave.KeySet, err error) {
	defer err2.Handle(&err, func() {
		err = fmt.Errorf("%w: %s", ErrDecode, err)
	})

	var env envelope
	try.To(json.Unmarshal(wire, &env))
	if env.CipherText == "" || env.Signature == "" {
		try.To(errors.New("malformed envelope"))
	}

	// unknown recipient key ends up here as well
	ks = try.To1(enclave.KeySetByEncKey(env.Protected.KID))

	aad := dto.ToJSONBytes(env.Protected)
	ct := try.To1(base64.StdEncoding.DecodeString(env.CipherText))
	sig := try.To1(base64.StdEncoding.DecodeString(env.Signature))

	// the signature must verify with the key the header claims the sender
	// to be, otherwise the envelope is rejected
	try.To(verifyWith(env.Protected.SKID, signedData(aad, ct), sig))

	dst = try.To1(ks.Decrypt(ct, aad))

	return dst, env.Protected.SKID, ks, nil
}

func signedData(aad, ct []byte) []byte {
	data := make([]byte, 0, len(aad)+len(ct))
	data = append(data, aad...)
	return append(data, ct...)
}

func encryptWith(encKey string, src, aad []byte) (ct []byte, err error) {
	defer err2.Return(&err)

	h := try.To1(readPublic(encKey))
	enc := try.To1(hybrid.NewHybridEncrypt(h))
	return enc.Encrypt(src, aad)
}

func verifyWith(signKey string, msg, sig []byte) (err error) {
	defer err2.Return(&err)

	h := try.To1(readPublic(signKey))
	ver := try.To1(signature.NewVerifier(h))
	return ver.Verify(sig, msg)
}

func readPublic(b58 string) (h *keyset.Handle, err error) {
	defer err2.Return(&err)

	data := try.To1(base58.Decode(b58))
	return keyset.ReadWithNoSecrets(keyset.NewBinaryReader(bytes.NewReader(data)))
}
