/*
Package didcomm offers the interfaces for all of the DIDComm protocol
messages the engine processes. The actual message types live in the std
packages and in the aries package which implements a generic message and the
message factoring system. With the help of the factoring system the incoming
messages are constructed to the correct Go type by their @type string.
*/
package didcomm

import (
	"strings"

	"github.com/findy-network/findy-protocol-engine/std/decorator"
	"github.com/golang/glog"
)

type PayloadHdr interface {
	ID() string
	Type() string
}

type PayloadWriteHdr interface {
	SetID(id string)
	SetType(t string)
}

type PayloadThread interface {
	Thread() *decorator.Thread
	ThreadID() string
}

type JSONSpeaker interface {
	JSON() []byte
}

// Payload is the envelope level abstraction of a protocol message. It gives
// access to the type string fields which route the message: the protocol
// name, the protocol version, and the message name.
type Payload interface {
	PayloadHdr
	PayloadThread
	JSONSpeaker

	SetType(t string)

	FieldObj() interface{}

	MsgHdr() MessageHdr

	Namespace() string
	Protocol() string
	ProtocolVersion() string
	ProtocolMsg() string
}

// Factor is the interface for the typed message factors. Every std message
// package registers one for its @type strings.
type Factor interface {
	NewMessage(data []byte) MessageHdr
	NewMsg(init MsgInit) MessageHdr
}

type PayloadFactor interface {
	NewFromData(data []byte) Payload
	New(pi PayloadInit) Payload
	NewMsg(id, t string, m MessageHdr) Payload
}

type PayloadInit struct {
	ID   string
	Type string
	MsgInit
}

// MessageHdr is the base interface for all protocol messages. It has the
// minimum needed to handle and process inbound and outbound protocol
// messages.
type MessageHdr interface {
	PayloadHdr
	PayloadWriteHdr

	JSON() []byte
	Thread() *decorator.Thread
	FieldObj() interface{}
}

// CredentialAttribute for credential value
type CredentialAttribute struct {
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// ProofAttribute for proof request attributes
type ProofAttribute struct {
	Name      string `json:"name,omitempty"`
	CredDefID string `json:"credDefId,omitempty"`
}

// MsgInit is a helper struct for factors to construct new message instances.
type MsgInit struct {
	AID    string
	Type   string
	Nonce  string
	Info   string
	Thread *decorator.Thread
	Msg    map[string]interface{}

	CredDefID       string
	CredentialAttrs []CredentialAttribute
	ProofAttrs      []ProofAttribute
}

// ValidType tells if the @type string has all of its fields. Payloads are
// built from wire data, so the type string must be checked before the
// field accessors are used: they panic on a malformed string.
func ValidType(s string) bool {
	maxSplits := 4
	if strings.HasPrefix(s, "https://") {
		maxSplits += 2
	}
	return len(strings.Split(s, "/")) == maxSplits
}

// FieldAtInd returns a @type string field by its index: 0 is the namespace,
// 1 the protocol, 2 the version, and 3 the message name.
func FieldAtInd(s string, where int) string {
	if s == "" {
		return ""
	}

	maxSplits := 4
	if strings.HasPrefix(s, "https://") {
		maxSplits += 2
		where += 2
	}
	parts := strings.Split(s, "/")
	if len(parts) != maxSplits {
		glog.Error(s)
		panic("type string is not valid")
	}
	return parts[where]
}
