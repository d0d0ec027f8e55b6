/*
Package enclave is a server-side secure enclave for the engine's own key
material. It stores tink key set handles, one signing and one encryption key
set per key set ID, into a sealed box which is a bbolt file. The message
envelope codec gets its local keys from here.

The sealed box content can be protected with an AES cipher by giving a
hex-coded key to InitSealedBox. Without the key the box relies on file
system permissions only, which is enough for development and tests.
*/
package enclave

import (
	"bytes"
	"encoding/hex"
	"os"

	"github.com/findy-network/findy-common-go/crypto"
	"github.com/findy-network/findy-common-go/dto"
	"github.com/golang/glog"
	"github.com/google/tink/go/hybrid"
	"github.com/google/tink/go/insecurecleartextkeyset"
	"github.com/google/tink/go/keyset"
	"github.com/google/tink/go/signature"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

const keySetBucket = "key_set_bucket"
const encKeyBucket = "enc_key_bucket"

var sealedBoxFilename string

// InitSealedBox initialize enclave's sealed box. This must be called once
// during the app life cycle. The key is a hex-coded AES key or empty.
func InitSealedBox(filename, key string) (err error) {
	defer err2.Annotatew("init enclave", &err)

	glog.V(1).Info("init enclave", filename)

	if key != "" {
		k := try.To1(hex.DecodeString(key))
		theCipher = crypto.NewCipher(k)
	}
	sealedBoxFilename = filename
	return open(filename)
}

// WipeSealedBox closes and destroys the enclave permanently. This version
// only removes the sealed box file. In the future we might add sector wiping
// functionality.
func WipeSealedBox() {
	if db != nil {
		Close()
	}

	err := os.RemoveAll(sealedBoxFilename)
	if err != nil {
		glog.Error(err.Error())
	}
}

// KeySet holds one signing and one encryption key set handle. The public
// sides travel on the wire as base58 strings, see SignKey and EncKey.
type KeySet struct {
	ID string

	sig *keyset.Handle
	enc *keyset.Handle

	signKey string
	encKey  string
}

type keySetRep struct {
	ID  string
	Sig []byte
	Enc []byte
}

// NewKeySet creates a new key set for the ID, stores it to the sealed box,
// and returns the ready-to-use handle.
func NewKeySet(id string) (ks *KeySet, err error) {
	defer err2.Annotatew("new key set", &err)

	if _, err := KeySetByID(id); err == nil {
		return nil, ErrSealBoxAlreadyExists
	}

	sig := try.To1(keyset.NewHandle(signature.ED25519KeyTemplate()))
	enc := try.To1(keyset.NewHandle(hybrid.ECIESHKDFAES128GCMKeyTemplate()))

	ks = try.To1(buildKeySet(id, sig, enc))

	rep := keySetRep{
		ID:  id,
		Sig: try.To1(exportHandle(sig)),
		Enc: try.To1(exportHandle(enc)),
	}
	err2.Check(addKeyValueToBucket(keySetBucket, encrypt(dto.ToGOB(rep)), hash(id)))
	err2.Check(addKeyValueToBucket(encKeyBucket, encrypt([]byte(id)), hash(ks.encKey)))

	return ks, nil
}

// KeySetByID retrieves a key set from the sealed box by its ID.
func KeySetByID(id string) (ks *KeySet, err error) {
	defer err2.Annotatew("key set by id", &err)

	data := try.To1(getKeyValueFromBucket(keySetBucket, hash(id)))

	var rep keySetRep
	dto.FromGOB(decrypt(data), &rep)

	sig := try.To1(importHandle(rep.Sig))
	enc := try.To1(importHandle(rep.Enc))

	return buildKeySet(rep.ID, sig, enc)
}

// KeySetByEncKey retrieves a key set by its public encryption key i.e. the
// recipient key of an incoming envelope.
func KeySetByEncKey(encKey string) (ks *KeySet, err error) {
	defer err2.Annotatew("key set by enc key", &err)

	id := try.To1(getKeyValueFromBucket(encKeyBucket, hash(encKey)))
	return KeySetByID(string(decrypt(id)))
}

// SignKey is the public signing key as base58. Peers verify our envelope
// signatures with it.
func (k *KeySet) SignKey() string {
	return k.signKey
}

// EncKey is the public encryption key as base58. Peers seal envelopes to us
// with it.
func (k *KeySet) EncKey() string {
	return k.encKey
}

// Sign signs the data with the key set's private signing key.
func (k *KeySet) Sign(data []byte) (sig []byte, err error) {
	defer err2.Annotatew("enclave sign", &err)

	signer := try.To1(signature.NewSigner(k.sig))
	return signer.Sign(data)
}

// Decrypt opens a ciphertext sealed to the key set's public encryption key.
func (k *KeySet) Decrypt(ciphertext, aad []byte) (plaintext []byte, err error) {
	defer err2.Annotatew("enclave decrypt", &err)

	dec := try.To1(hybrid.NewHybridDecrypt(k.enc))
	return dec.Decrypt(ciphertext, aad)
}

func buildKeySet(id string, sig, enc *keyset.Handle) (ks *KeySet, err error) {
	defer err2.Return(&err)

	signKey := try.To1(exportPublic(sig))
	encKey := try.To1(exportPublic(enc))

	return &KeySet{
		ID:      id,
		sig:     sig,
		enc:     enc,
		signKey: base58.Encode(signKey),
		encKey:  base58.Encode(encKey),
	}, nil
}

func exportHandle(h *keyset.Handle) (data []byte, err error) {
	defer err2.Return(&err)

	buf := bytes.Buffer{}
	err2.Check(insecurecleartextkeyset.Write(h, keyset.NewBinaryWriter(&buf)))
	return buf.Bytes(), nil
}

func importHandle(data []byte) (h *keyset.Handle, err error) {
	return insecurecleartextkeyset.Read(keyset.NewBinaryReader(bytes.NewReader(data)))
}

func exportPublic(h *keyset.Handle) (data []byte, err error) {
	defer err2.Return(&err)

	pub := try.To1(h.Public())
	buf := bytes.Buffer{}
	err2.Check(pub.WriteWithNoSecrets(keyset.NewBinaryWriter(&buf)))
	return buf.Bytes(), nil
}
