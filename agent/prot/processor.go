/*
Package prot is the protocol dispatcher. It takes decoded inbound packets,
resolves the protocol processor from the registry, validates the state
transition against the protocol's machine, and runs the message handler
inside the exchange transition so that the state update and the produced
outbound messages commit as one unit. Handler errors are fatal to their
exchange, never to the process.
*/
package prot

import (
	"errors"
	"fmt"

	"github.com/findy-network/findy-protocol-engine/agent/aries"
	"github.com/findy-network/findy-protocol-engine/agent/bus"
	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/delivery"
	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/findy-network/findy-protocol-engine/agent/registry"
	"github.com/findy-network/findy-protocol-engine/agent/sec"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Dispatcher routes inbound packets to their protocol processors and owns
// the exchange life cycle around every handler call. One instance per
// engine process.
type Dispatcher struct {
	reg   *registry.Registry
	queue *delivery.Queue
	rcvr  comm.Receiver
}

func New(reg *registry.Registry, queue *delivery.Queue, rcvr comm.Receiver) *Dispatcher {
	return &Dispatcher{reg: reg, queue: queue, rcvr: rcvr}
}

// DispatchWire handles one inbound wire envelope end to end: unpack,
// authenticate the sender against our connection records, and dispatch.
// Envelope decode failures wrap sec.ErrDecode: the message is dropped and
// never retried, because a broken envelope stays broken.
func (d *Dispatcher) DispatchWire(wire []byte) (err error) {
	defer err2.Annotatew("dispatch wire", &err)

	payload, senderKey, ks := try.To3(sec.Unpack(wire))

	pl := aries.PayloadCreator.NewFromData(payload)
	if !didcomm.ValidType(pl.Type()) {
		return fmt.Errorf("%w: bad type string: %s", sec.ErrDecode, pl.Type())
	}

	conn, _ := d.rcvr.Connections().BySignKey(senderKey)

	return d.Dispatch(comm.Packet{
		Payload:    pl,
		SenderKey:  senderKey,
		KeySet:     ks,
		Connection: conn,
		Receiver:   d.rcvr,
	})
}

// Dispatch runs one decoded packet through its protocol. The steps are
// fixed for every protocol: resolve the processor, load or create the
// exchange, reject replays, validate the transition, and commit the handler
// result together with the state update.
func (d *Dispatcher) Dispatch(packet comm.Packet) (err error) {
	defer err2.Annotatew("dispatch", &err)

	pl := packet.Payload
	proc := try.To1(d.reg.Resolve(pl.Protocol(), pl.ProtocolVersion()))

	if packet.Connection == nil && !proc.AllowsNewPeer {
		return fmt.Errorf("%w: unknown sender %s", sec.ErrDecode,
			packet.SenderKey)
	}

	exID := pl.ThreadID()
	ex, err := psm.GetExchange(exID)
	if errors.Is(err, psm.ErrNotFound) {
		ex, err = d.createForPeer(exID, proc, packet)
	}
	try.To(err)

	// a message on a known exchange must arrive from the exchange's own
	// pairwise, otherwise anyone knowing the thread ID could inject
	if ex.ConnectionID != "" &&
		(packet.Connection == nil || packet.Connection.ID != ex.ConnectionID) {
		return fmt.Errorf("%w: sender does not own exchange %s",
			sec.ErrDecode, exID)
	}

	// the same message delivered twice is acked silently: the first
	// delivery already did the work
	if ex.Consumed(pl.ID()) {
		glog.V(1).Infoln("duplicate message", pl.ID(), "for exchange", exID)
		return nil
	}

	msgName := pl.ProtocolMsg()
	next, err := proc.Next(ex.Current(), msgName)
	if err != nil {
		d.reportProblem(packet, exID, err)
		return err
	}

	handler := proc.Handlers[msgName]

	var staged []string
	_, err = psm.Transition(exID, ex.Current(), next, pl.Type(), pl.ID(),
		func(ex *psm.Exchange) (err error) {
			defer err2.Return(&err)

			outs := try.To1(handler(packet, ex))
			staged = try.To1(d.stage(exID, next, outs))
			return nil
		})
	try.To(err)
	try.To(d.queue.Promote(staged))

	glog.V(3).Infof("exchange %s: %s -> %s (%s)", exID, ex.Current(), next,
		msgName)
	d.broadcast(exID, next, proc)
	return nil
}

// createForPeer starts a new exchange for a peer-initiated protocol run.
func (d *Dispatcher) createForPeer(
	exID string,
	proc registry.Proc,
	packet comm.Packet,
) (ex *psm.Exchange, err error) {
	initial, ok := proc.Initial[psm.Responder]
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot be started by peer",
			registry.ErrInvalidTransition, proc.Protocol)
	}
	connID := ""
	if packet.Connection != nil {
		connID = packet.Connection.ID
	}
	return psm.CreateExchange(exID, proc.Protocol, proc.Version.String(),
		psm.Responder, connID, initial)
}

// stage persists the handler's outbound messages undeliverable. Runs
// inside the transition's critical section; promotion happens after the
// transition commits.
func (d *Dispatcher) stage(
	exID string,
	next psm.StateName,
	outs []comm.Outbound,
) (ids []string, err error) {
	defer err2.Return(&err)

	ids = make([]string, 0, len(outs))
	for _, out := range outs {
		wire := try.To1(out.Pipe.Pack(out.Payload.JSON()))
		item := &delivery.Item{
			ExchangeID:  exID,
			Destination: out.Destination,
			Wire:        wire,
			NextState:   next,
		}
		try.To(d.queue.Stage(item))
		ids = append(ids, item.ID)
	}
	return ids, nil
}

func (d *Dispatcher) broadcast(exID string, state psm.StateName, proc registry.Proc) {
	bus.States.Broadcast(exID, state)
	if proc.IsTerminal(state) {
		bus.ReadyStation.BroadcastReady(exID, state != psm.Abandoned)
	}
}

// reportProblem tells the peer that its message was rejected. Best effort:
// the report rides the queue like any outbound message, but a failure to
// build it never masks the original error.
func (d *Dispatcher) reportProblem(packet comm.Packet, exID string, cause error) {
	defer err2.Catch(func(err error) {
		glog.V(1).Infoln("cannot send problem report:", err)
	})

	if packet.Connection == nil {
		return
	}

	pipe := try.To1(d.rcvr.PipeFor(packet.Connection.ID))
	pl := aries.PayloadCreator.New(didcomm.PayloadInit{
		ID:   utils.UUID(),
		Type: pltype.NotificationProblemReport,
		MsgInit: didcomm.MsgInit{
			Thread: decorator.NewThread(exID, ""),
			Info:   cause.Error(),
		},
	})
	wire := try.To1(pipe.Pack(pl.JSON()))
	try.To(d.queue.Enqueue(exID, packet.Connection.TheirAddr(), wire))
}
