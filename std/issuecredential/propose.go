package issuecredential

import (
	"encoding/gob"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-protocol-engine/agent/aries"
	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
)

var ProposeCreator = &ProposeFactor{}

type ProposeFactor struct{}

func (f *ProposeFactor) NewMsg(init didcomm.MsgInit) didcomm.MessageHdr {
	m := &Propose{
		Type:      init.Type,
		ID:        init.AID,
		Comment:   init.Info,
		CredDefID: init.CredDefID,
		Thread:    decorator.CheckThread(init.Thread, init.AID),
	}
	if len(init.CredentialAttrs) > 0 {
		m.CredentialProposal = NewPreviewCredential(init.CredentialAttrs)
	}
	return NewPropose(m)
}

func (f *ProposeFactor) NewMessage(data []byte) didcomm.MessageHdr {
	return NewProposeMsg(data)
}

func init() {
	gob.Register(&ProposeImpl{})
	aries.Creator.Add(pltype.IssueCredentialPropose, ProposeCreator)
	aries.Creator.Add(pltype.SovForType(pltype.IssueCredentialPropose), ProposeCreator)
}

func NewPropose(r *Propose) *ProposeImpl {
	return &ProposeImpl{Propose: r}
}

func NewProposeMsg(data []byte) *ProposeImpl {
	var mImpl ProposeImpl
	dto.FromJSON(data, &mImpl)
	mImpl.checkThread()
	return &mImpl
}

func (p *ProposeImpl) checkThread() {
	p.Propose.Thread = decorator.CheckThread(p.Propose.Thread, p.Propose.ID)
}

type ProposeImpl struct {
	*Propose
}

func (p *ProposeImpl) ID() string {
	return p.Propose.ID
}

func (p *ProposeImpl) Type() string {
	return p.Propose.Type
}

func (p *ProposeImpl) SetID(id string) {
	p.Propose.ID = id
}

func (p *ProposeImpl) SetType(t string) {
	p.Propose.Type = t
}

func (p *ProposeImpl) JSON() []byte {
	return dto.ToJSONBytes(p)
}

func (p *ProposeImpl) Thread() *decorator.Thread {
	return p.Propose.Thread
}

func (p *ProposeImpl) FieldObj() interface{} {
	return p.Propose
}
