package prot

import (
	"fmt"

	"github.com/findy-network/findy-protocol-engine/agent/bus"
	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/findy-network/findy-protocol-engine/agent/registry"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// StartExchange begins a protocol run from our end. The task's nonce
// becomes the exchange ID and the thread ID of the whole run. The first
// message goes out through the delivery queue like any other.
func (d *Dispatcher) StartExchange(
	protocol, version string,
	t *comm.Task,
) (exID string, err error) {
	defer err2.Annotatew("start exchange", &err)

	proc := try.To1(d.reg.Resolve(protocol, version))

	if proc.Starter == nil {
		return "", fmt.Errorf("protocol %s has no starter", protocol)
	}
	initial, ok := proc.Initial[psm.Initiator]
	if !ok {
		return "", fmt.Errorf("%w: %s cannot be started by us",
			registry.ErrInvalidTransition, protocol)
	}
	return d.start(proc, initial, proc.Starter, t)
}

// StartExchangeWith begins a protocol run through one of the protocol's
// alternate openings, named by the first message they send.
func (d *Dispatcher) StartExchangeWith(
	protocol, version, open string,
	t *comm.Task,
) (exID string, err error) {
	defer err2.Annotatew("start exchange", &err)

	proc := try.To1(d.reg.Resolve(protocol, version))

	o, ok := proc.Opens[open]
	if !ok {
		return "", fmt.Errorf("%w: %s has no opening %s",
			registry.ErrInvalidTransition, protocol, open)
	}
	return d.start(proc, o.Initial, o.Starter, t)
}

func (d *Dispatcher) start(
	proc registry.Proc,
	initial psm.StateName,
	starter comm.StarterFunc,
	t *comm.Task,
) (exID string, err error) {
	defer err2.Return(&err)

	exID = t.Nonce
	connID := t.ConnectionID

	try.To1(psm.CreateExchange(exID, proc.Protocol, proc.Version.String(),
		psm.Initiator, connID, initial))

	outs, err := starter(d.rcvr, t)
	if err != nil {
		// the exchange was booked but its first message cannot be
		// built: close it so it doesn't hang half started
		try.To(d.Abandon(exID))
		return "", err
	}

	staged := try.To1(d.stage(exID, initial, outs))
	try.To(d.queue.Promote(staged))

	glog.V(3).Infoln("started exchange", exID, "as", proc.Protocol,
		proc.Version.String())
	d.broadcast(exID, initial, proc)
	return exID, nil
}

// Abandon moves the exchange to the abandoned terminal state and cancels
// its pending deliveries. Idempotent.
func (d *Dispatcher) Abandon(exID string) (err error) {
	defer err2.Annotatew("abandon", &err)

	try.To1(psm.Abandon(exID))
	try.To(d.queue.CancelFor(exID))

	bus.States.Broadcast(exID, psm.Abandoned)
	bus.ReadyStation.BroadcastReady(exID, false)
	return nil
}
