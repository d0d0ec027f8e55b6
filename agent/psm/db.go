/*
Package psm is the exchange state store: one durable record per protocol
exchange, keyed by the exchange ID. The records live in a bbolt file behind
the findy-common-go managed db which gives us backups and optionally
ciphered buckets.

Mutation goes through Transition which serializes per exchange ID and
applies optimistic concurrency: the caller states which current state it
expects and loses with ErrStateConflict when another transition got there
first. The caller's commit callback runs inside the same critical section,
before the record is persisted, so a transition and its side bookings form
one unit: if the callback fails nothing is persisted.
*/
package psm

import (
	"crypto/md5"
	"errors"
	"fmt"
	"sync"

	"github.com/findy-network/findy-common-go/crypto"
	"github.com/findy-network/findy-common-go/crypto/db"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// ErrNotFound is returned when no exchange exists for the ID.
var ErrNotFound = errors.New("exchange not found")

// ErrStateConflict is returned when a transition's expected current state
// does not match the stored one. It is transient: the caller should reload
// and retry against the fresh state.
var ErrStateConflict = errors.New("exchange state conflict")

const (
	bucketExchange byte = 0 + iota
)

var (
	buckets = [][]byte{
		{bucketExchange},
	}

	theCipher *crypto.Cipher

	mgdDB *db.Mgd

	// locks serializes all mutations per exchange ID
	locks = struct {
		sync.Mutex
		m map[string]*sync.Mutex
	}{m: make(map[string]*sync.Mutex)}
)

// Open opens the database by name of the file. If it is already open it
// returns it, but it doesn't check the database name it isn't thread safe!
func Open(filename string) (err error) {
	mgdDB = db.New(db.Cfg{
		Filename:   filename,
		Buckets:    buckets,
		BackupName: filename + "_backup",
	})
	return nil
}

func lockFor(id string) *sync.Mutex {
	locks.Lock()
	defer locks.Unlock()

	l, ok := locks.m[id]
	if !ok {
		l = &sync.Mutex{}
		locks.m[id] = l
	}
	return l
}

// CreateExchange makes and persists a new exchange record at the protocol's
// initial state.
func CreateExchange(
	id, protocol, version string,
	role Role,
	connID string,
	initial StateName,
) (ex *Exchange, err error) {
	defer err2.Annotatew("create exchange", &err)

	l := lockFor(id)
	l.Lock()
	defer l.Unlock()

	if old, _ := getExchange(id); old != nil {
		return nil, fmt.Errorf("exchange %s exists", id)
	}

	ex = &Exchange{
		ID:           id,
		Protocol:     protocol,
		Version:      version,
		Role:         role,
		ConnectionID: connID,
	}
	ex.append(initial, "", "")
	try.To(addExchange(ex))
	return ex, nil
}

// GetExchange returns the exchange by the ID, or ErrNotFound.
func GetExchange(id string) (ex *Exchange, err error) {
	defer err2.Annotatew("get exchange", &err)

	m, err := getExchange(id)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m, err
}

// Transition advances the exchange from the expected state to the next one.
// The commit callback runs with the updated record before anything is
// persisted; when it returns an error the transition is rolled back i.e.
// never stored. A nil callback just persists the transition.
func Transition(
	id string,
	expected, next StateName,
	msgType, msgID string,
	commit func(ex *Exchange) error,
) (ex *Exchange, err error) {
	defer err2.Annotatew("exchange transition", &err)

	l := lockFor(id)
	l.Lock()
	defer l.Unlock()

	stored := try.To1(GetExchange(id))

	if stored.Current() != expected {
		return nil, fmt.Errorf("%w: %s: have %s, expected %s",
			ErrStateConflict, id, stored.Current(), expected)
	}

	stored.append(next, msgType, msgID)
	if commit != nil {
		try.To(commit(stored))
	}
	try.To(addExchange(stored))
	return stored, nil
}

// Abandon moves the exchange to the abandoned terminal state. It is
// idempotent: abandoning an already abandoned exchange is a no-op.
func Abandon(id string) (ex *Exchange, err error) {
	defer err2.Annotatew("abandon exchange", &err)

	l := lockFor(id)
	l.Lock()
	defer l.Unlock()

	stored := try.To1(GetExchange(id))
	if stored.IsAbandoned() {
		return stored, nil
	}

	stored.append(Abandoned, "", "")
	try.To(addExchange(stored))
	return stored, nil
}

// EachExchange calls use for every stored exchange the filter accepts.
// A nil filter accepts everything. The sequence is restartable: a new
// call re-reads the store. An error from use stops the iteration.
func EachExchange(
	filter func(ex *Exchange) bool,
	use func(ex *Exchange) error,
) (err error) {
	defer err2.Annotatew("each exchange", &err)

	data := try.To1(mgdDB.GetAllValuesFromBucket(buckets[bucketExchange],
		decrypt))

	for _, d := range data {
		ex := NewExchange(d)
		if filter == nil || filter(ex) {
			try.To(use(ex))
		}
	}
	return nil
}

// RmExchange removes the exchange record. Used by the terminal state
// garbage collection.
func RmExchange(id string) (err error) {
	glog.V(1).Infoln("--- rm exchange:", id)

	l := lockFor(id)
	l.Lock()
	defer l.Unlock()

	return rm(id, bucketExchange)
}

func addExchange(p *Exchange) (err error) {
	return addData([]byte(p.ID), p.Data(), bucketExchange)
}

func getExchange(id string) (m *Exchange, err error) {
	found := false
	found, err = get(id, bucketExchange, func(d []byte) {
		m = NewExchange(d)
	})
	if !found {
		m = nil
	}
	return m, err
}

func addData(key []byte, value []byte, bucketID byte) (err error) {
	return mgdDB.AddKeyValueToBucket(buckets[bucketID],
		&db.Data{
			Data: value,
			Read: encrypt,
		},
		&db.Data{
			Data: key,
			Read: hash,
		},
	)
}

// get executes a read transaction by a key and a bucket. Instead of
// returning the data, it uses lambda for the result transport to prevent
// cloning the byte slice.
func get(
	id string,
	bucketID byte,
	use func(d []byte),
) (
	found bool,
	err error,
) {
	value := &db.Data{
		Write: decrypt,
		Use: func(d []byte) interface{} {
			use(d)
			return nil
		},
	}
	found, err = mgdDB.GetKeyValueFromBucket(buckets[bucketID],
		&db.Data{
			Data: []byte(id),
			Read: hash,
		},
		value)

	return found, err
}

func rm(id string, bucketID byte) (err error) {
	return mgdDB.RmKeyValueFromBucket(buckets[bucketID],
		&db.Data{
			Data: []byte(id),
			Read: hash,
		})
}

// all of the following has same signature. They also panic on error

// hash makes the cryptographic hash of the map key value. This prevents us
// to store key value index to the DB aka sealed box as plain text.
func hash(key []byte) (k []byte) {
	if theCipher != nil {
		h := md5.Sum(key)
		return h[:]
	}
	return append(key[:0:0], key...)
}

// encrypt encrypts the actual value. This is used when data is stored to
// the DB aka sealed box.
func encrypt(value []byte) (k []byte) {
	if theCipher != nil {
		return theCipher.TryEncrypt(value)
	}
	return append(value[:0:0], value...)
}

// decrypt decrypts the actual value. This is used when data is retrieved
// from the DB aka sealed box.
func decrypt(value []byte) (k []byte) {
	if theCipher != nil {
		return theCipher.TryDecrypt(value)
	}
	return append(value[:0:0], value...)
}
