/*
Package aries implements the generic DIDComm message and the payload
factoring system. We use statically typed JSON messages i.e. they are always
mapped to a corresponding Go struct. The std packages register their message
factors here by the @type string, and incoming payloads are constructed to
the registered type, or to the generic type when none is registered.
*/
package aries

import (
	"encoding/gob"

	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
)

var PayloadCreator = PayloadFactor{}

func init() {
	gob.Register(&PayloadImpl{})
}

var Creator = &Factor{factors: make(map[string]didcomm.Factor)}

type Factor struct {
	factors map[string]didcomm.Factor
}

func (f *Factor) Add(t string, factor didcomm.Factor) {
	f.factors[t] = factor
}

type PayloadFactor struct{}

// NewFromData creates a new payload in correct Go struct type. If @type is
// associated to a Go struct type which is registered to this Factor, it's
// used. If not a generic type is used.
func (f PayloadFactor) NewFromData(data []byte) didcomm.Payload {
	pl := &PayloadImpl{MessageHdr: newMsg(data)}
	t, id := pl.Type(), pl.ID()

	factor, ok := Creator.factors[t]
	if !ok {
		return pl
	}
	m := factor.NewMessage(data)
	return f.NewMsg(id, t, m)
}

// New creates a new payload with PayloadInit struct. The type of the Msg is
// generic.
func (f PayloadFactor) New(pi didcomm.PayloadInit) didcomm.Payload {
	pi.MsgInit.Type = pi.Type
	pi.MsgInit.AID = pi.ID

	msg := MsgCreator.Create(pi.MsgInit)
	return &PayloadImpl{MessageHdr: msg}
}

// NewMsg creates a new PL by ID, Type and already created internal Msg.
func (f PayloadFactor) NewMsg(id, t string, m didcomm.MessageHdr) didcomm.Payload {
	m.SetType(t)
	m.SetID(id)
	return &PayloadImpl{MessageHdr: m}
}

type PayloadImpl struct {
	didcomm.MessageHdr
}

func (pl *PayloadImpl) MsgHdr() didcomm.MessageHdr {
	return pl.MessageHdr
}

func (pl *PayloadImpl) ThreadID() string {
	if th := pl.Thread(); th != nil {
		if th.PID != "" {
			return th.PID
		}
		if th.ID != "" {
			return th.ID
		}
	}
	return pl.ID()
}

func (pl *PayloadImpl) SetThread(t *decorator.Thread) {
	panic("no implementation")
}

func (pl *PayloadImpl) FieldObj() interface{} {
	return pl.MessageHdr
}

func (pl *PayloadImpl) ID() string {
	return pl.MessageHdr.ID()
}

func (pl *PayloadImpl) Type() string {
	return pl.MessageHdr.Type()
}

func (pl *PayloadImpl) Namespace() string {
	return didcomm.FieldAtInd(pl.Type(), 0)
}

func (pl *PayloadImpl) Protocol() string {
	return didcomm.FieldAtInd(pl.Type(), 1)
}

func (pl *PayloadImpl) ProtocolVersion() string {
	return didcomm.FieldAtInd(pl.Type(), 2)
}

func (pl *PayloadImpl) ProtocolMsg() string {
	return didcomm.FieldAtInd(pl.Type(), 3)
}

func ProtocolForType(typeStr string) string {
	return didcomm.FieldAtInd(typeStr, 1)
}

func VersionForType(typeStr string) string {
	return didcomm.FieldAtInd(typeStr, 2)
}

func ProtocolMsgForType(typeStr string) string {
	return didcomm.FieldAtInd(typeStr, 3)
}
