// Package notification implements the problem report and ack messages.
// A problem report is sent when a peer's message is rejected; it never has
// a state transition of its own.
package notification

import (
	"encoding/gob"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-protocol-engine/agent/aries"
	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
)

var ProblemReportCreator = &ProblemReportFactor{}

type ProblemReportFactor struct{}

type ProblemReport struct {
	Type string `json:"@type,omitempty"`
	ID   string `json:"@id,omitempty"`

	ExplainLongTxt string `json:"explain-ltxt,omitempty"`

	Thread *decorator.Thread `json:"~thread,omitempty"`
}

func (f *ProblemReportFactor) NewMsg(init didcomm.MsgInit) didcomm.MessageHdr {
	m := &ProblemReport{
		Type:           init.Type,
		ID:             init.AID,
		ExplainLongTxt: init.Info,
		Thread:         decorator.CheckThread(init.Thread, init.AID),
	}
	return NewProblemReport(m)
}

func (f *ProblemReportFactor) NewMessage(data []byte) didcomm.MessageHdr {
	return NewProblemReportMsg(data)
}

func init() {
	gob.Register(&ProblemReportImpl{})
	aries.Creator.Add(pltype.NotificationProblemReport, ProblemReportCreator)
	aries.Creator.Add(pltype.SovForType(pltype.NotificationProblemReport),
		ProblemReportCreator)
}

func NewProblemReport(r *ProblemReport) *ProblemReportImpl {
	return &ProblemReportImpl{ProblemReport: r}
}

func NewProblemReportMsg(data []byte) *ProblemReportImpl {
	var mImpl ProblemReportImpl
	dto.FromJSON(data, &mImpl)
	mImpl.checkThread()
	return &mImpl
}

func (p *ProblemReportImpl) checkThread() {
	p.ProblemReport.Thread = decorator.CheckThread(p.ProblemReport.Thread,
		p.ProblemReport.ID)
}

type ProblemReportImpl struct {
	*ProblemReport
}

func (p *ProblemReportImpl) ID() string {
	return p.ProblemReport.ID
}

func (p *ProblemReportImpl) Type() string {
	return p.ProblemReport.Type
}

func (p *ProblemReportImpl) SetID(id string) {
	p.ProblemReport.ID = id
}

func (p *ProblemReportImpl) SetType(t string) {
	p.ProblemReport.Type = t
}

func (p *ProblemReportImpl) JSON() []byte {
	return dto.ToJSONBytes(p)
}

func (p *ProblemReportImpl) Thread() *decorator.Thread {
	return p.ProblemReport.Thread
}

func (p *ProblemReportImpl) FieldObj() interface{} {
	return p.ProblemReport
}
