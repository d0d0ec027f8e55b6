package enclave

import (
	"crypto/md5"
	"errors"
	"fmt"

	"github.com/findy-network/findy-common-go/crypto"
	"github.com/lainio/err2"
	bolt "go.etcd.io/bbolt"
)

var db *bolt.DB

// ErrNotExists is an error for key set not existing in the enclave.
var ErrNotExists = errors.New("key set not exists")

// ErrSealBoxAlreadyExists is an error for enclave sealed box already exists.
var ErrSealBoxAlreadyExists = errors.New("enclave sealed box exists")

var theCipher *crypto.Cipher

func assertDB() {
	if db == nil {
		panic("don't forget init the seal box")
	}
}

func open(filename string) (err error) {
	if db != nil {
		return ErrSealBoxAlreadyExists
	}
	defer err2.Return(&err)

	db, err = bolt.Open(filename, 0600, nil)
	err2.Check(err)

	err2.Check(db.Update(func(tx *bolt.Tx) (err error) {
		defer err2.Annotatew("create buckets", &err)

		err2.Try(tx.CreateBucketIfNotExists([]byte(keySetBucket)))
		err2.Try(tx.CreateBucketIfNotExists([]byte(encKeyBucket)))
		return nil
	}))
	return err
}

// Close closes the sealed box of the enclave. It can be open again with
// InitSealedBox.
func Close() {
	defer err2.CatchTrace(func(err error) {
		fmt.Println(err)
	})
	assertDB()

	err2.Check(db.Close())
	db = nil
}

func addKeyValueToBucket(bucket string, keyValue, index []byte) (err error) {
	assertDB()

	defer err2.Annotatew("add key", &err)

	err2.Check(db.Update(func(tx *bolt.Tx) (err error) {
		defer err2.Return(&err)

		b := tx.Bucket([]byte(bucket))
		err2.Check(b.Put(index, keyValue))
		return nil
	}))
	return nil
}

func getKeyValueFromBucket(bucket string, index []byte) (keyValue []byte, err error) {
	assertDB()

	defer err2.Return(&err)

	err2.Check(db.View(func(tx *bolt.Tx) (err error) {
		b := tx.Bucket([]byte(bucket))
		d := b.Get(index)
		if d == nil {
			return ErrNotExists
		}
		keyValue = append(keyValue[:0:0], d...)
		return nil
	}))
	return keyValue, nil
}

// hash makes the cryptographic hash of the map key value. This prevents us to
// store key set IDs to the sealed box as plain text.
func hash(key string) (k []byte) {
	if theCipher != nil {
		h := md5.Sum([]byte(key))
		return h[:]
	}
	return []byte(key)
}

// encrypt encrypts the actual key set data when it is stored to the sealed
// box.
func encrypt(value []byte) (k []byte) {
	if theCipher != nil {
		return theCipher.TryEncrypt(value)
	}
	return append(value[:0:0], value...)
}

// decrypt decrypts the actual key set data when it is retrieved from the
// sealed box.
func decrypt(value []byte) (k []byte) {
	if theCipher != nil {
		return theCipher.TryDecrypt(value)
	}
	return append(value[:0:0], value...)
}
