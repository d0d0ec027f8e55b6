// Package trustping implements the trust ping protocol messages. The ping
// and its response share the shape, so one type serves both @type strings.
package trustping

import (
	"encoding/gob"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-protocol-engine/agent/aries"
	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
)

var Creator = &Factor{}

type Factor struct{}

type Ping struct {
	Type string `json:"@type,omitempty"`
	ID   string `json:"@id,omitempty"`

	Comment           string `json:"comment,omitempty"`
	ResponseRequested bool   `json:"response_requested,omitempty"`

	Thread *decorator.Thread `json:"~thread,omitempty"`
}

func (f *Factor) NewMsg(init didcomm.MsgInit) didcomm.MessageHdr {
	m := &Ping{
		Type:    init.Type,
		ID:      init.AID,
		Comment: init.Info,
		Thread:  decorator.CheckThread(init.Thread, init.AID),
	}
	if didcomm.FieldAtInd(init.Type, 3) == pltype.HandlerPing {
		m.ResponseRequested = true
	}
	return NewPing(m)
}

func (f *Factor) NewMessage(data []byte) didcomm.MessageHdr {
	return NewPingMsg(data)
}

func init() {
	gob.Register(&Impl{})
	aries.Creator.Add(pltype.TrustPingPing, Creator)
	aries.Creator.Add(pltype.TrustPingResponse, Creator)
	aries.Creator.Add(pltype.SovForType(pltype.TrustPingPing), Creator)
	aries.Creator.Add(pltype.SovForType(pltype.TrustPingResponse), Creator)
}

func NewPing(r *Ping) *Impl {
	return &Impl{Ping: r}
}

func NewPingMsg(data []byte) *Impl {
	var mImpl Impl
	dto.FromJSON(data, &mImpl)
	mImpl.checkThread()
	return &mImpl
}

func (p *Impl) checkThread() {
	p.Ping.Thread = decorator.CheckThread(p.Ping.Thread, p.Ping.ID)
}

type Impl struct {
	*Ping
}

func (p *Impl) ID() string {
	return p.Ping.ID
}

func (p *Impl) Type() string {
	return p.Ping.Type
}

func (p *Impl) SetID(id string) {
	p.Ping.ID = id
}

func (p *Impl) SetType(t string) {
	p.Ping.Type = t
}

func (p *Impl) JSON() []byte {
	return dto.ToJSONBytes(p)
}

func (p *Impl) Thread() *decorator.Thread {
	return p.Ping.Thread
}

func (p *Impl) FieldObj() interface{} {
	return p.Ping
}
