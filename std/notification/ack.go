package notification

import (
	"encoding/gob"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-protocol-engine/agent/aries"
	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
)

var AckCreator = &AckFactor{}

type AckFactor struct{}

// Ack is the acknowledge message. The same shape closes the issue
// credential and present proof protocols, so the factor registers for all
// of the ack @type strings.
type Ack struct {
	Type string `json:"@type,omitempty"`
	ID   string `json:"@id,omitempty"`

	Status string `json:"status,omitempty"`

	Thread *decorator.Thread `json:"~thread,omitempty"`
}

func (f *AckFactor) NewMsg(init didcomm.MsgInit) didcomm.MessageHdr {
	m := &Ack{
		Type:   init.Type,
		ID:     init.AID,
		Status: "OK",
		Thread: decorator.CheckThread(init.Thread, init.AID),
	}
	return NewAck(m)
}

func (f *AckFactor) NewMessage(data []byte) didcomm.MessageHdr {
	return NewAckMsg(data)
}

func init() {
	gob.Register(&AckImpl{})
	for _, t := range []string{
		pltype.NotificationAck,
		pltype.IssueCredentialACK,
		pltype.PresentProofACK,
	} {
		aries.Creator.Add(t, AckCreator)
		aries.Creator.Add(pltype.SovForType(t), AckCreator)
	}
}

func NewAck(r *Ack) *AckImpl {
	return &AckImpl{Ack: r}
}

func NewAckMsg(data []byte) *AckImpl {
	var mImpl AckImpl
	dto.FromJSON(data, &mImpl)
	mImpl.checkThread()
	return &mImpl
}

func (p *AckImpl) checkThread() {
	p.Ack.Thread = decorator.CheckThread(p.Ack.Thread, p.Ack.ID)
}

type AckImpl struct {
	*Ack
}

func (p *AckImpl) ID() string {
	return p.Ack.ID
}

func (p *AckImpl) Type() string {
	return p.Ack.Type
}

func (p *AckImpl) SetID(id string) {
	p.Ack.ID = id
}

func (p *AckImpl) SetType(t string) {
	p.Ack.Type = t
}

func (p *AckImpl) JSON() []byte {
	return dto.ToJSONBytes(p)
}

func (p *AckImpl) Thread() *decorator.Thread {
	return p.Ack.Thread
}

func (p *AckImpl) FieldObj() interface{} {
	return p.Ack
}
