package didexchange

import (
	"encoding/gob"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-protocol-engine/agent/aries"
	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
)

var ResponseCreator = &ResponseFactor{}

type ResponseFactor struct{}

func (f *ResponseFactor) NewMsg(init didcomm.MsgInit) didcomm.MessageHdr {
	m := &Response{
		Type:   init.Type,
		ID:     init.AID,
		Thread: decorator.CheckThread(init.Thread, init.AID),
	}
	return NewResponse(m)
}

func (f *ResponseFactor) NewMessage(data []byte) didcomm.MessageHdr {
	return NewResponseMsg(data)
}

func init() {
	gob.Register(&ResponseImpl{})
	aries.Creator.Add(pltype.AriesConnectionResponse, ResponseCreator)
	aries.Creator.Add(pltype.SovForType(pltype.AriesConnectionResponse), ResponseCreator)
}

func NewResponse(r *Response) *ResponseImpl {
	return &ResponseImpl{Response: r}
}

func NewResponseMsg(data []byte) *ResponseImpl {
	var mImpl ResponseImpl
	dto.FromJSON(data, &mImpl)
	mImpl.checkThread()
	return &mImpl
}

func (p *ResponseImpl) checkThread() {
	p.Response.Thread = decorator.CheckThread(p.Response.Thread, p.Response.ID)
}

type ResponseImpl struct {
	*Response
}

func (p *ResponseImpl) ID() string {
	return p.Response.ID
}

func (p *ResponseImpl) Type() string {
	return p.Response.Type
}

func (p *ResponseImpl) SetID(id string) {
	p.Response.ID = id
}

func (p *ResponseImpl) SetType(t string) {
	p.Response.Type = t
}

func (p *ResponseImpl) JSON() []byte {
	return dto.ToJSONBytes(p)
}

func (p *ResponseImpl) Thread() *decorator.Thread {
	return p.Response.Thread
}

func (p *ResponseImpl) FieldObj() interface{} {
	return p.Response
}
