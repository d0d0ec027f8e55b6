/*
Package issuecredential implements the issue credential protocol flow:
the holder proposes, the issuer offers, the holder requests, the issuer
issues, and the holder acks. The credential payloads themselves are opaque
to the engine; the Issuer and Holder interfaces plug in the actual
credential machinery.
*/
package issuecredential

import (
	"fmt"

	"github.com/findy-network/findy-protocol-engine/agent/aries"
	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/findy-network/findy-protocol-engine/agent/registry"
	"github.com/findy-network/findy-protocol-engine/agent/sec"
	"github.com/findy-network/findy-protocol-engine/agent/service"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
	"github.com/findy-network/findy-protocol-engine/std/issuecredential"
	"github.com/findy-network/findy-protocol-engine/std/notification"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Issuer builds the issuer end's credential payloads. Keyed by the
// exchange ID so that an implementation can correlate its own bookkeeping
// with the protocol run.
type Issuer interface {
	BuildOffer(exchangeID, credDefID string,
		attrs []didcomm.CredentialAttribute) ([]byte, error)
	Issue(exchangeID string, request []byte) ([]byte, error)
}

// Holder builds the holder end's credential payloads and stores the
// issued credential.
type Holder interface {
	BuildRequest(exchangeID string, offer []byte) ([]byte, error)
	Store(exchangeID string, credential []byte) error
}

const (
	StateProposeSent  = psm.StateName("propose-sent")
	StateWaitingOffer = psm.StateName("waiting-propose")
	StateOfferSent    = psm.StateName("offer-sent")
	StateRequestSent  = psm.StateName("request-sent")
	StateCredIssued   = psm.StateName("credential-issued")
	StateCredReceived = psm.StateName("credential-received")
	StateDone         = psm.StateName("done")
)

var Machine = registry.Machine{
	Protocol: pltype.ProtocolIssueCredential,
	Version:  registry.Version{Major: 1, Minor: 0},
	Initial: map[psm.Role]psm.StateName{
		psm.Initiator: StateProposeSent,
		psm.Responder: StateWaitingOffer,
	},
	Terminals: []psm.StateName{StateCredReceived, StateDone},
	Transitions: map[psm.StateName]map[string]psm.StateName{
		StateProposeSent: {
			pltype.HandlerIssueCredentialOffer: StateRequestSent,
		},
		StateRequestSent: {
			pltype.HandlerIssueCredentialIssue: StateCredReceived,
		},
		StateWaitingOffer: {
			pltype.HandlerIssueCredentialPropose: StateOfferSent,
		},
		StateOfferSent: {
			pltype.HandlerIssueCredentialRequest: StateCredIssued,
		},
		StateCredIssued: {
			pltype.HandlerIssueCredentialACK: StateDone,
		},
	},
}

type proc struct {
	issuer Issuer
	holder Holder
}

// Proc builds the registrable protocol processor. A nil issuer or holder
// disables that end: its messages are then rejected at handling time.
func Proc(issuer Issuer, holder Holder) registry.Proc {
	p := &proc{issuer: issuer, holder: holder}
	return registry.Proc{
		Machine: Machine,
		Handlers: map[string]comm.HandlerFunc{
			pltype.HandlerIssueCredentialPropose: p.handlePropose,
			pltype.HandlerIssueCredentialOffer:   p.handleOffer,
			pltype.HandlerIssueCredentialRequest: p.handleRequest,
			pltype.HandlerIssueCredentialIssue:   p.handleIssue,
			pltype.HandlerIssueCredentialACK:     p.handleAck,
		},
		Starter: p.startPropose,
	}
}

// startPropose is the holder end: propose the credential we want.
func (p *proc) startPropose(rcvr comm.Receiver, t *comm.Task) (out []comm.Outbound, err error) {
	defer err2.Annotatew("start issue credential", &err)

	if p.holder == nil {
		return nil, fmt.Errorf("no holder configured")
	}

	conn := try.To1(rcvr.Connections().Get(t.ConnectionID))
	pipe := try.To1(rcvr.PipeFor(conn.ID))

	msg := issuecredential.NewPropose(&issuecredential.Propose{
		Type:      pltype.IssueCredentialPropose,
		ID:        utils.UUID(),
		Comment:   t.Info,
		CredDefID: t.CredDefID,
		CredentialProposal: issuecredential.NewPreviewCredential(
			t.CredentialAttrs),
		Thread: decorator.NewThread(t.Nonce, ""),
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.IssueCredentialPropose, msg)

	return outbound(t.Nonce, conn.TheirAddr(), pipe, pl), nil
}

// handlePropose is the issuer end: build and send the offer.
func (p *proc) handlePropose(packet comm.Packet, ex *psm.Exchange) (out []comm.Outbound, err error) {
	defer err2.Annotatew("credential propose", &err)

	if p.issuer == nil {
		return nil, fmt.Errorf("no issuer configured")
	}

	propose, ok := packet.Payload.MsgHdr().FieldObj().(*issuecredential.Propose)
	if !ok {
		return nil, fmt.Errorf("bad credential propose payload")
	}

	attrs := make([]didcomm.CredentialAttribute, 0,
		len(propose.CredentialProposal.Attributes))
	for _, a := range propose.CredentialProposal.Attributes {
		attrs = append(attrs, didcomm.CredentialAttribute{
			Name:  a.Name,
			Value: a.Value,
		})
	}
	offerData := try.To1(p.issuer.BuildOffer(ex.ID, propose.CredDefID, attrs))

	pipe := try.To1(packet.Receiver.PipeFor(packet.Connection.ID))
	msg := issuecredential.NewOffer(&issuecredential.Offer{
		Type:              pltype.IssueCredentialOffer,
		ID:                utils.UUID(),
		CredentialPreview: propose.CredentialProposal,
		OffersAttach:      issuecredential.NewOfferAttach(offerData),
		Thread:            decorator.NewThread(ex.ID, ""),
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.IssueCredentialOffer, msg)

	return outbound(ex.ID, packet.Connection.TheirAddr(), pipe, pl), nil
}

// handleOffer is the holder end: answer the offer with our credential
// request.
func (p *proc) handleOffer(packet comm.Packet, ex *psm.Exchange) (out []comm.Outbound, err error) {
	defer err2.Annotatew("credential offer", &err)

	if p.holder == nil {
		return nil, fmt.Errorf("no holder configured")
	}

	offer, ok := packet.Payload.MsgHdr().FieldObj().(*issuecredential.Offer)
	if !ok {
		return nil, fmt.Errorf("bad credential offer payload")
	}

	offerData := try.To1(issuecredential.OfferAttach(offer))
	reqData := try.To1(p.holder.BuildRequest(ex.ID, offerData))

	pipe := try.To1(packet.Receiver.PipeFor(packet.Connection.ID))
	msg := issuecredential.NewRequest(&issuecredential.Request{
		Type:           pltype.IssueCredentialRequest,
		ID:             utils.UUID(),
		RequestsAttach: issuecredential.NewRequestAttach(reqData),
		Thread:         decorator.NewThread(ex.ID, ""),
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.IssueCredentialRequest, msg)

	return outbound(ex.ID, packet.Connection.TheirAddr(), pipe, pl), nil
}

// handleRequest is the issuer end: issue the credential.
func (p *proc) handleRequest(packet comm.Packet, ex *psm.Exchange) (out []comm.Outbound, err error) {
	defer err2.Annotatew("credential request", &err)

	if p.issuer == nil {
		return nil, fmt.Errorf("no issuer configured")
	}

	req, ok := packet.Payload.MsgHdr().FieldObj().(*issuecredential.Request)
	if !ok {
		return nil, fmt.Errorf("bad credential request payload")
	}

	reqData := try.To1(issuecredential.RequestAttach(req))
	credData := try.To1(p.issuer.Issue(ex.ID, reqData))

	pipe := try.To1(packet.Receiver.PipeFor(packet.Connection.ID))
	msg := issuecredential.NewIssue(&issuecredential.Issue{
		Type:              pltype.IssueCredentialIssue,
		ID:                utils.UUID(),
		CredentialsAttach: issuecredential.NewCredentialAttach(credData),
		Thread:            decorator.NewThread(ex.ID, ""),
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.IssueCredentialIssue, msg)

	return outbound(ex.ID, packet.Connection.TheirAddr(), pipe, pl), nil
}

// handleIssue is the holder end: store the credential and ack.
func (p *proc) handleIssue(packet comm.Packet, ex *psm.Exchange) (out []comm.Outbound, err error) {
	defer err2.Annotatew("credential issue", &err)

	if p.holder == nil {
		return nil, fmt.Errorf("no holder configured")
	}

	issue, ok := packet.Payload.MsgHdr().FieldObj().(*issuecredential.Issue)
	if !ok {
		return nil, fmt.Errorf("bad credential issue payload")
	}

	credData := try.To1(issuecredential.CredentialAttach(issue))
	try.To(p.holder.Store(ex.ID, credData))

	pipe := try.To1(packet.Receiver.PipeFor(packet.Connection.ID))
	msg := notification.NewAck(&notification.Ack{
		Type:   pltype.IssueCredentialACK,
		ID:     utils.UUID(),
		Status: "OK",
		Thread: decorator.NewThread(ex.ID, ""),
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.IssueCredentialACK, msg)

	return outbound(ex.ID, packet.Connection.TheirAddr(), pipe, pl), nil
}

func (p *proc) handleAck(packet comm.Packet, ex *psm.Exchange) (out []comm.Outbound, err error) {
	return nil, nil
}

func outbound(exID string, dest service.Addr, pipe sec.Pipe, pl didcomm.Payload) []comm.Outbound {
	return []comm.Outbound{{
		ExchangeID:  exID,
		Destination: dest,
		Pipe:        pipe,
		Payload:     pl,
	}}
}
