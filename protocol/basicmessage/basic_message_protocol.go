// Package basicmessage implements the basic message protocol: one free
// form message per exchange, no reply expected.
package basicmessage

import (
	"fmt"
	"time"

	"github.com/findy-network/findy-protocol-engine/agent/aries"
	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/findy-network/findy-protocol-engine/agent/registry"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/findy-network/findy-protocol-engine/std/basicmessage"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const (
	StateMessageSent     = psm.StateName("message-sent")
	StateWaitingMessage  = psm.StateName("waiting-message")
	StateMessageReceived = psm.StateName("message-received")
)

var Machine = registry.Machine{
	Protocol: pltype.ProtocolBasicMessage,
	Version:  registry.Version{Major: 1, Minor: 0},
	Initial: map[psm.Role]psm.StateName{
		psm.Initiator: StateMessageSent,
		psm.Responder: StateWaitingMessage,
	},
	Terminals: []psm.StateName{StateMessageSent, StateMessageReceived},
	Transitions: map[psm.StateName]map[string]psm.StateName{
		StateWaitingMessage: {
			pltype.HandlerMessage: StateMessageReceived,
		},
	},
}

// Received is called when a basic message arrives. Replaceable for tests
// and for embedding applications that want the message content.
var Received = func(connID, content string, sentTime time.Time) {
	glog.V(1).Infof("basic message from %s: %s", connID, content)
}

func Proc() registry.Proc {
	return registry.Proc{
		Machine: Machine,
		Handlers: map[string]comm.HandlerFunc{
			pltype.HandlerMessage: handleMessage,
		},
		Starter: startBasicMessage,
	}
}

func startBasicMessage(rcvr comm.Receiver, t *comm.Task) (out []comm.Outbound, err error) {
	defer err2.Annotatew("start basic message", &err)

	conn := try.To1(rcvr.Connections().Get(t.ConnectionID))
	pipe := try.To1(rcvr.PipeFor(conn.ID))

	msg := basicmessage.NewBasicmessage(&basicmessage.Basicmessage{
		Type:     pltype.BasicMessageSend,
		ID:       utils.UUID(),
		Content:  t.Info,
		SentTime: basicmessage.AriesTime{Time: time.Now()},
		Thread:   decorator.NewThread(t.Nonce, ""),
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.BasicMessageSend, msg)

	return []comm.Outbound{{
		ExchangeID:  t.Nonce,
		Destination: conn.TheirAddr(),
		Pipe:        pipe,
		Payload:     pl,
	}}, nil
}

func handleMessage(packet comm.Packet, ex *psm.Exchange) (out []comm.Outbound, err error) {
	defer err2.Annotatew("basic message", &err)

	msg, ok := packet.Payload.MsgHdr().FieldObj().(*basicmessage.Basicmessage)
	if !ok {
		return nil, fmt.Errorf("bad basic message payload")
	}

	Received(packet.Connection.ID, msg.Content, msg.SentTime.Time)
	return nil, nil
}
