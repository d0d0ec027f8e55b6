// Package trustping implements the trust ping protocol: one ping, one
// response, done. Used to verify that a connection works both ways.
package trustping

import (
	"github.com/findy-network/findy-protocol-engine/agent/aries"
	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/findy-network/findy-protocol-engine/agent/registry"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
	"github.com/findy-network/findy-protocol-engine/std/trustping"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const (
	StatePingSent     = psm.StateName("ping-sent")
	StateWaitingPing  = psm.StateName("waiting-ping")
	StateComplete     = psm.StateName("complete")
	StatePingReceived = psm.StateName("ping-received")
)

var Machine = registry.Machine{
	Protocol: pltype.ProtocolTrustPing,
	Version:  registry.Version{Major: 1, Minor: 0},
	Initial: map[psm.Role]psm.StateName{
		psm.Initiator: StatePingSent,
		psm.Responder: StateWaitingPing,
	},
	Terminals: []psm.StateName{StateComplete, StatePingReceived},
	Transitions: map[psm.StateName]map[string]psm.StateName{
		StatePingSent: {
			pltype.HandlerPingResponse: StateComplete,
		},
		StateWaitingPing: {
			pltype.HandlerPing: StatePingReceived,
		},
	},
}

func Proc() registry.Proc {
	return registry.Proc{
		Machine: Machine,
		Handlers: map[string]comm.HandlerFunc{
			pltype.HandlerPing:         handlePing,
			pltype.HandlerPingResponse: handlePingResponse,
		},
		Starter: startTrustPing,
	}
}

func startTrustPing(rcvr comm.Receiver, t *comm.Task) (out []comm.Outbound, err error) {
	defer err2.Annotatew("start trust ping", &err)

	conn := try.To1(rcvr.Connections().Get(t.ConnectionID))
	pipe := try.To1(rcvr.PipeFor(conn.ID))

	msg := trustping.NewPing(&trustping.Ping{
		Type:              pltype.TrustPingPing,
		ID:                utils.UUID(),
		Comment:           t.Info,
		ResponseRequested: true,
		Thread:            decorator.NewThread(t.Nonce, ""),
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.TrustPingPing, msg)

	return []comm.Outbound{{
		ExchangeID:  t.Nonce,
		Destination: conn.TheirAddr(),
		Pipe:        pipe,
		Payload:     pl,
	}}, nil
}

func handlePing(packet comm.Packet, ex *psm.Exchange) (out []comm.Outbound, err error) {
	defer err2.Annotatew("trust ping", &err)

	glog.V(3).Infoln("-- ping from", packet.SenderKey)

	pipe := try.To1(packet.Receiver.PipeFor(packet.Connection.ID))

	msg := trustping.NewPing(&trustping.Ping{
		Type:   pltype.TrustPingResponse,
		ID:     utils.UUID(),
		Thread: decorator.NewThread(ex.ID, ""),
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.TrustPingResponse, msg)

	return []comm.Outbound{{
		ExchangeID:  ex.ID,
		Destination: packet.Connection.TheirAddr(),
		Pipe:        pipe,
		Payload:     pl,
	}}, nil
}

func handlePingResponse(packet comm.Packet, ex *psm.Exchange) (out []comm.Outbound, err error) {
	glog.V(3).Infoln("-- ping response for", ex.ID)
	return nil, nil
}
