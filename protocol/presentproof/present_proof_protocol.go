/*
Package presentproof implements the present proof protocol flow: the
verifier requests a presentation, the prover presents, and the verifier
acks after verifying. The prover can also open the run by proposing what
to present, in which case the verifier answers the proposal with the
request. The proof payloads are opaque to the engine; the Verifier and
Prover interfaces plug in the actual proof machinery.
*/
package presentproof

import (
	"fmt"

	"github.com/findy-network/findy-protocol-engine/agent/aries"
	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/findy-network/findy-protocol-engine/agent/registry"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
	"github.com/findy-network/findy-protocol-engine/std/notification"
	"github.com/findy-network/findy-protocol-engine/std/presentproof"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Verifier builds the proof request and checks the received proof. Keyed
// by the exchange ID so that an implementation can correlate its own
// bookkeeping with the protocol run.
type Verifier interface {
	BuildRequest(exchangeID string,
		attrs []didcomm.ProofAttribute) ([]byte, error)
	Verify(exchangeID string, presentation []byte) error
}

// Prover builds the presentation for a proof request.
type Prover interface {
	BuildPresentation(exchangeID string, request []byte) ([]byte, error)
}

const (
	StateProposeSent      = psm.StateName("propose-sent")
	StateRequestSent      = psm.StateName("request-sent")
	StateWaitingRequest   = psm.StateName("waiting-request")
	StatePresentationSent = psm.StateName("presentation-sent")
	StateProofReceived    = psm.StateName("proof-received")
	StateDone             = psm.StateName("done")
)

var Machine = registry.Machine{
	Protocol: pltype.ProtocolPresentProof,
	Version:  registry.Version{Major: 1, Minor: 0},
	Initial: map[psm.Role]psm.StateName{
		psm.Initiator: StateRequestSent,
		psm.Responder: StateWaitingRequest,
	},
	Terminals: []psm.StateName{StateProofReceived, StateDone},
	Transitions: map[psm.StateName]map[string]psm.StateName{
		StateProposeSent: {
			pltype.HandlerPresentProofRequest: StatePresentationSent,
		},
		StateRequestSent: {
			pltype.HandlerPresentProofPresentation: StateProofReceived,
		},
		// the responder's first inbound is either the verifier's request
		// when we prove, or the prover's proposal when we verify
		StateWaitingRequest: {
			pltype.HandlerPresentProofRequest: StatePresentationSent,
			pltype.HandlerPresentProofPropose: StateRequestSent,
		},
		StatePresentationSent: {
			pltype.HandlerPresentProofACK: StateDone,
		},
	},
}

type proc struct {
	verifier Verifier
	prover   Prover
}

// Proc builds the registrable protocol processor. A nil verifier or
// prover disables that end: its messages are then rejected at handling
// time.
func Proc(verifier Verifier, prover Prover) registry.Proc {
	p := &proc{verifier: verifier, prover: prover}
	return registry.Proc{
		Machine: Machine,
		Handlers: map[string]comm.HandlerFunc{
			pltype.HandlerPresentProofPropose:      p.handlePropose,
			pltype.HandlerPresentProofRequest:      p.handleRequest,
			pltype.HandlerPresentProofPresentation: p.handlePresentation,
			pltype.HandlerPresentProofACK:          p.handleAck,
		},
		Starter: p.startRequest,
		Opens: map[string]registry.Open{
			pltype.HandlerPresentProofPropose: {
				Initial: StateProposeSent,
				Starter: p.startPropose,
			},
		},
	}
}

// startRequest is the verifier end: request the proof.
func (p *proc) startRequest(rcvr comm.Receiver, t *comm.Task) (out []comm.Outbound, err error) {
	defer err2.Annotatew("start present proof", &err)

	if p.verifier == nil {
		return nil, fmt.Errorf("no verifier configured")
	}

	conn := try.To1(rcvr.Connections().Get(t.ConnectionID))
	pipe := try.To1(rcvr.PipeFor(conn.ID))

	reqData := try.To1(p.verifier.BuildRequest(t.Nonce, t.ProofAttrs))

	msg := presentproof.NewRequest(&presentproof.Request{
		Type:                 pltype.PresentProofRequest,
		ID:                   utils.UUID(),
		Comment:              t.Info,
		RequestPresentations: presentproof.NewRequestAttach(reqData),
		Thread:               decorator.NewThread(t.Nonce, ""),
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.PresentProofRequest, msg)

	return []comm.Outbound{{
		ExchangeID:  t.Nonce,
		Destination: conn.TheirAddr(),
		Pipe:        pipe,
		Payload:     pl,
	}}, nil
}

// startPropose is the prover end: open the run by proposing what to
// present.
func (p *proc) startPropose(rcvr comm.Receiver, t *comm.Task) (out []comm.Outbound, err error) {
	defer err2.Annotatew("start proof propose", &err)

	if p.prover == nil {
		return nil, fmt.Errorf("no prover configured")
	}

	conn := try.To1(rcvr.Connections().Get(t.ConnectionID))
	pipe := try.To1(rcvr.PipeFor(conn.ID))

	msg := presentproof.NewPropose(&presentproof.Propose{
		Type:                 pltype.PresentProofPropose,
		ID:                   utils.UUID(),
		Comment:              t.Info,
		PresentationProposal: presentproof.NewPreview(t.ProofAttrs),
		Thread:               decorator.NewThread(t.Nonce, ""),
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.PresentProofPropose, msg)

	return []comm.Outbound{{
		ExchangeID:  t.Nonce,
		Destination: conn.TheirAddr(),
		Pipe:        pipe,
		Payload:     pl,
	}}, nil
}

// handlePropose is the verifier end: answer the prover's proposal with
// the proof request built from the proposed attributes.
func (p *proc) handlePropose(packet comm.Packet, ex *psm.Exchange) (out []comm.Outbound, err error) {
	defer err2.Annotatew("proof propose", &err)

	if p.verifier == nil {
		return nil, fmt.Errorf("no verifier configured")
	}

	propose, ok := packet.Payload.MsgHdr().FieldObj().(*presentproof.Propose)
	if !ok {
		return nil, fmt.Errorf("bad proof propose payload")
	}

	var attrs []didcomm.ProofAttribute
	if propose.PresentationProposal != nil {
		attrs = make([]didcomm.ProofAttribute, 0,
			len(propose.PresentationProposal.Attributes))
		for _, a := range propose.PresentationProposal.Attributes {
			attrs = append(attrs, didcomm.ProofAttribute{
				Name:      a.Name,
				CredDefID: a.CredDefID,
			})
		}
	}
	reqData := try.To1(p.verifier.BuildRequest(ex.ID, attrs))

	pipe := try.To1(packet.Receiver.PipeFor(packet.Connection.ID))
	msg := presentproof.NewRequest(&presentproof.Request{
		Type:                 pltype.PresentProofRequest,
		ID:                   utils.UUID(),
		RequestPresentations: presentproof.NewRequestAttach(reqData),
		Thread:               decorator.NewThread(ex.ID, ""),
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.PresentProofRequest, msg)

	return []comm.Outbound{{
		ExchangeID:  ex.ID,
		Destination: packet.Connection.TheirAddr(),
		Pipe:        pipe,
		Payload:     pl,
	}}, nil
}

// handleRequest is the prover end: build and send the presentation.
func (p *proc) handleRequest(packet comm.Packet, ex *psm.Exchange) (out []comm.Outbound, err error) {
	defer err2.Annotatew("proof request", &err)

	if p.prover == nil {
		return nil, fmt.Errorf("no prover configured")
	}

	req, ok := packet.Payload.MsgHdr().FieldObj().(*presentproof.Request)
	if !ok {
		return nil, fmt.Errorf("bad proof request payload")
	}

	reqData := try.To1(presentproof.ProofReqAttach(req))
	proofData := try.To1(p.prover.BuildPresentation(ex.ID, reqData))

	pipe := try.To1(packet.Receiver.PipeFor(packet.Connection.ID))
	msg := presentproof.NewPresentation(&presentproof.Presentation{
		Type:                 pltype.PresentProofPresentation,
		ID:                   utils.UUID(),
		PresentationAttaches: presentproof.NewPresentationAttach(proofData),
		Thread:               decorator.NewThread(ex.ID, ""),
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(),
		pltype.PresentProofPresentation, msg)

	return []comm.Outbound{{
		ExchangeID:  ex.ID,
		Destination: packet.Connection.TheirAddr(),
		Pipe:        pipe,
		Payload:     pl,
	}}, nil
}

// handlePresentation is the verifier end: verify the proof and ack. A
// failing verification fails the transition, so the exchange never reaches
// the received state on a bad proof.
func (p *proc) handlePresentation(packet comm.Packet, ex *psm.Exchange) (out []comm.Outbound, err error) {
	defer err2.Annotatew("presentation", &err)

	if p.verifier == nil {
		return nil, fmt.Errorf("no verifier configured")
	}

	pres, ok := packet.Payload.MsgHdr().FieldObj().(*presentproof.Presentation)
	if !ok {
		return nil, fmt.Errorf("bad presentation payload")
	}

	proofData := try.To1(presentproof.PresentationAttach(pres))
	try.To(p.verifier.Verify(ex.ID, proofData))

	pipe := try.To1(packet.Receiver.PipeFor(packet.Connection.ID))
	msg := notification.NewAck(&notification.Ack{
		Type:   pltype.PresentProofACK,
		ID:     utils.UUID(),
		Status: "OK",
		Thread: decorator.NewThread(ex.ID, ""),
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.PresentProofACK, msg)

	return []comm.Outbound{{
		ExchangeID:  ex.ID,
		Destination: packet.Connection.TheirAddr(),
		Pipe:        pipe,
		Payload:     pl,
	}}, nil
}

func (p *proc) handleAck(packet comm.Packet, ex *psm.Exchange) (out []comm.Outbound, err error) {
	return nil, nil
}
