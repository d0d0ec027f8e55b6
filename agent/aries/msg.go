package aries

import (
	"encoding/gob"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
)

var MsgCreator = MsgFactor{}

func init() {
	gob.Register(&msgImpl{})
}

type MsgFactor struct{}

func (f MsgFactor) NewMsg(init didcomm.MsgInit) didcomm.MessageHdr {
	m := createMsg(init)
	return &msgImpl{Msg: &m}
}

func (f MsgFactor) NewMessage(data []byte) didcomm.MessageHdr {
	return newMsg(data)
}

// Create constructs a message in its registered Go type if the type string
// has a factor, and in the generic type if it doesn't.
func (f MsgFactor) Create(d didcomm.MsgInit) didcomm.MessageHdr {
	factor, ok := Creator.factors[d.Type]
	if !ok {
		m := createMsg(d)
		return &msgImpl{Msg: &m}
	}
	return factor.NewMsg(d)
}

func createMsg(d didcomm.MsgInit) Msg {
	th := d.Thread
	if th == nil {
		th = decorator.NewThread(d.Nonce, "")
	}
	m := Msg{
		AID:    d.AID,
		Type:   d.Type,
		Thread: th,
		Info:   d.Info,
		Msg:    d.Msg,
	}
	return m
}

type msgImpl struct {
	*Msg
}

func (m *msgImpl) Thread() *decorator.Thread {
	return m.Msg.Thread
}

func (m *msgImpl) ID() string {
	return m.Msg.AID
}

func (m *msgImpl) SetID(id string) {
	m.Msg.AID = id
}

func (m *msgImpl) Type() string {
	return m.Msg.Type
}

func (m *msgImpl) SetType(t string) {
	m.Msg.Type = t
}

func (m *msgImpl) JSON() []byte {
	return dto.ToJSONBytes(m.Msg)
}

func (m *msgImpl) FieldObj() interface{} {
	return m.Msg
}

// Msg is the generic message type. It is used when the type string has no
// registered message factor.
type Msg struct {
	Type string `json:"@type,omitempty"`
	AID  string `json:"@id,omitempty"`

	Thread *decorator.Thread `json:"~thread,omitempty"`

	Info string                 `json:"info,omitempty"` // free form info for generic messages
	Msg  map[string]interface{} `json:"msg,omitempty"`  // forwarded message
}

func newMsg(data []byte) *msgImpl {
	var m Msg
	dto.FromJSON(data, &m)
	return &msgImpl{Msg: &m}
}
