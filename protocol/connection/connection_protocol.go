/*
Package connection implements the connection protocol: the invitee sends a
connection request against an out of band invitation, the inviter answers
with a response, and both ends persist the pairwise they agreed on. The
exchange ID of the whole run is the invitation ID, so both ends track the
same thread.
*/
package connection

import (
	"fmt"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-protocol-engine/agent/aries"
	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/pairwise"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/findy-network/findy-protocol-engine/agent/registry"
	"github.com/findy-network/findy-protocol-engine/agent/sec"
	"github.com/findy-network/findy-protocol-engine/agent/service"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
	"github.com/findy-network/findy-protocol-engine/std/didexchange"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Protocol states.
const (
	StateInvitationSent = psm.StateName("invitation-sent")
	StateRequestSent    = psm.StateName("request-sent")
	StateResponded      = psm.StateName("responded")
	StateComplete       = psm.StateName("complete")
)

// Machine declares the connection protocol state machine.
var Machine = registry.Machine{
	Protocol: pltype.ProtocolConnection,
	Version:  registry.Version{Major: 1, Minor: 0},
	Initial: map[psm.Role]psm.StateName{
		psm.Initiator: StateRequestSent,
		psm.Responder: StateInvitationSent,
	},
	Terminals:     []psm.StateName{StateResponded, StateComplete},
	AllowsNewPeer: true,
	Transitions: map[psm.StateName]map[string]psm.StateName{
		StateInvitationSent: {
			pltype.HandlerRequest: StateResponded,
		},
		StateRequestSent: {
			pltype.HandlerResponse: StateComplete,
		},
	},
}

// Proc builds the registrable protocol processor.
func Proc() registry.Proc {
	return registry.Proc{
		Machine: Machine,
		Handlers: map[string]comm.HandlerFunc{
			pltype.HandlerRequest:  handleRequest,
			pltype.HandlerResponse: handleResponse,
		},
		Starter: startConnection,
	}
}

// NewTask builds the task for starting the protocol from an invitation.
// The invitation ID becomes the exchange ID and the connection ID, so both
// ends of the protocol track the same thread.
func NewTask(inv *didexchange.Invitation, label string) *comm.Task {
	t := comm.NewTask(inv.ID)
	t.Nonce = inv.ID
	t.Info = label
	t.Invitation = dto.ToJSON(inv)
	t.ReceiverEndp = service.Addr{Endp: inv.ServiceEndpoint, Key: inv.EncKey}
	return t
}

// startConnection is the invitee end: build our keys and the pairwise, and
// send the connection request to the inviter's endpoint.
func startConnection(rcvr comm.Receiver, t *comm.Task) (out []comm.Outbound, err error) {
	defer err2.Annotatew("start connection", &err)

	inv := try.To1(didexchange.ParseInvitation(t.Invitation))

	ks := try.To1(rcvr.KeySet(t.Nonce))

	conn := &pairwise.Connection{
		ID:            t.Nonce,
		MyKeySetID:    t.Nonce,
		TheirLabel:    inv.Label,
		TheirSignKey:  inv.SignKey,
		TheirEncKey:   inv.EncKey,
		TheirEndpoint: inv.ServiceEndpoint,
		State:         string(StateRequestSent),
	}
	try.To(rcvr.Connections().Save(conn))

	label := myLabel(rcvr, t.Info)
	msg := didexchange.NewRequest(&didexchange.Request{
		Type:   pltype.AriesConnectionRequest,
		ID:     utils.UUID(),
		Label:  label,
		Thread: decorator.NewThread(t.Nonce, ""),
		Connection: didexchange.Connection{
			Label:           label,
			SignKey:         ks.SignKey(),
			EncKey:          ks.EncKey(),
			ServiceEndpoint: utils.Settings.HostAddr(),
		},
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.AriesConnectionRequest, msg)

	glog.V(1).Infoln("send connection request to", inv.ServiceEndpoint)
	return []comm.Outbound{{
		ExchangeID:  t.Nonce,
		Destination: conn.TheirAddr(),
		Pipe:        sec.Pipe{In: ks, Out: conn.TheirPublicKey()},
		Payload:     pl,
	}}, nil
}

// handleRequest is the inviter end: the request carries the invitee's keys
// and endpoint, so we can persist the pairwise and answer with our side of
// the connection.
func handleRequest(packet comm.Packet, ex *psm.Exchange) (out []comm.Outbound, err error) {
	defer err2.Annotatew("connection request", &err)

	req, ok := packet.Payload.MsgHdr().FieldObj().(*didexchange.Request)
	if !ok {
		return nil, fmt.Errorf("bad connection request payload")
	}
	if req.Connection.SignKey == "" || req.Connection.ServiceEndpoint == "" {
		return nil, fmt.Errorf("connection request lacks keys or endpoint")
	}

	ks := try.To1(packet.Receiver.KeySet(ex.ID))

	conn := &pairwise.Connection{
		ID:            ex.ID,
		MyKeySetID:    ex.ID,
		TheirLabel:    req.Label,
		TheirSignKey:  req.Connection.SignKey,
		TheirEncKey:   req.Connection.EncKey,
		TheirEndpoint: req.Connection.ServiceEndpoint,
		State:         string(StateResponded),
	}
	try.To(packet.Receiver.Connections().Save(conn))
	ex.ConnectionID = conn.ID

	msg := didexchange.NewResponse(&didexchange.Response{
		Type:   pltype.AriesConnectionResponse,
		ID:     utils.UUID(),
		Thread: decorator.NewThread(ex.ID, ""),
		Connection: didexchange.Connection{
			Label:           packet.Receiver.MyDID(),
			SignKey:         ks.SignKey(),
			EncKey:          ks.EncKey(),
			ServiceEndpoint: utils.Settings.HostAddr(),
		},
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.AriesConnectionResponse, msg)

	return []comm.Outbound{{
		ExchangeID:  ex.ID,
		Destination: conn.TheirAddr(),
		Pipe:        sec.Pipe{In: ks, Out: conn.TheirPublicKey()},
		Payload:     pl,
	}}, nil
}

// handleResponse is the invitee end: the inviter accepted, update the
// pairwise with its connection data. No outbound message; the connection
// is ready for use.
func handleResponse(packet comm.Packet, ex *psm.Exchange) (out []comm.Outbound, err error) {
	defer err2.Annotatew("connection response", &err)

	res, ok := packet.Payload.MsgHdr().FieldObj().(*didexchange.Response)
	if !ok {
		return nil, fmt.Errorf("bad connection response payload")
	}

	conn := try.To1(packet.Receiver.Connections().Get(ex.ID))
	conn.TheirLabel = res.Connection.Label
	conn.TheirSignKey = res.Connection.SignKey
	conn.TheirEncKey = res.Connection.EncKey
	conn.TheirEndpoint = res.Connection.ServiceEndpoint
	conn.State = string(StateComplete)
	try.To(packet.Receiver.Connections().Save(conn))

	glog.V(1).Infoln("connection", ex.ID, "complete with", conn.TheirLabel)
	return nil, nil
}

func myLabel(rcvr comm.Receiver, label string) string {
	if label != "" {
		return label
	}
	return rcvr.MyDID()
}
