package pairwise_test

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"testing"

	"github.com/findy-network/findy-protocol-engine/agent/pairwise"
	"github.com/findy-network/findy-protocol-engine/agent/storage/wrapper"
	"github.com/lainio/err2"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

var (
	storageDir string
	provider   *wrapper.StorageProvider
	store      *pairwise.Store
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

	storageDir = try.To1(os.MkdirTemp("", "pairwise-test"))
	provider = wrapper.New(wrapper.Config{
		FileName:  "pairwise_test",
		FilePath:  storageDir,
		BucketIDs: []string{"pairwise"},
	})
	try.To(provider.Init())
	store = pairwise.NewStore(try.To1(provider.OpenStore("pairwise")))
}

func tearDown() {
	_ = provider.Close()
	os.RemoveAll(storageDir)
}

func TestSaveAndGet(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	conn := &pairwise.Connection{
		ID:            "conn-1",
		MyKeySetID:    "conn-1",
		TheirLabel:    "peer",
		TheirSignKey:  "sign-key-1",
		TheirEncKey:   "enc-key-1",
		TheirEndpoint: "http://peer.test/a2a",
		State:         pairwise.StateComplete,
	}
	assert.NoError(store.Save(conn))
	assert.That(conn.CreatedAt != 0)

	got := try.To1(store.Get("conn-1"))
	assert.Equal(got.TheirLabel, "peer")
	assert.Equal(got.State, pairwise.StateComplete)
	assert.Equal(got.TheirAddr().Endp, "http://peer.test/a2a")
	assert.Equal(got.TheirAddr().Key, "enc-key-1")
	assert.Equal(got.TheirPublicKey().SignKey, "sign-key-1")

	// saving again keeps the creation time
	created := got.CreatedAt
	assert.NoError(store.Save(got))
	got = try.To1(store.Get("conn-1"))
	assert.Equal(got.CreatedAt, created)
}

func TestGetNotFound(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	_, err := store.Get("no-such-connection")
	assert.Error(err)
	assert.That(errors.Is(err, pairwise.ErrNotFound))
}

func TestBySignKey(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	assert.NoError(store.Save(&pairwise.Connection{
		ID:           "conn-2",
		TheirSignKey: "sign-key-2",
		State:        pairwise.StateResponded,
	}))

	got := try.To1(store.BySignKey("sign-key-2"))
	assert.Equal(got.ID, "conn-2")

	_, err := store.BySignKey("unknown-signer")
	assert.Error(err)
	assert.That(errors.Is(err, pairwise.ErrNotFound))
}

func TestList(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	assert.NoError(store.Save(&pairwise.Connection{
		ID:    "conn-3",
		State: pairwise.StateComplete,
	}))

	all := try.To1(store.List(nil))
	assert.That(len(all) >= 2)

	complete := try.To1(store.List(func(c *pairwise.Connection) bool {
		return c.State == pairwise.StateComplete
	}))
	for _, c := range complete {
		assert.Equal(c.State, pairwise.StateComplete)
	}
}
