package agency

import (
	"time"

	"github.com/findy-network/findy-protocol-engine/agent/bus"
	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/findy-network/findy-protocol-engine/protocol/outofband"
	"github.com/findy-network/findy-protocol-engine/std/didexchange"
)

// Version strings of the registered protocols. The registry resolves
// compatible minors, so callers can just name the major line.
const protocolVersion = "1.0"

// Invitation creates a new out of band invitation for a peer to connect
// to us.
func (a *Agency) Invitation() (inv *didexchange.Invitation, err error) {
	return outofband.Create(a, a.label)
}

// Connect accepts an invitation, given as an URL or plain JSON, and
// starts the connection protocol. Returns the exchange ID, which is also
// the new connection ID.
func (a *Agency) Connect(invitation string) (exID string, err error) {
	return outofband.Receive(a.dispatcher, invitation, a.label)
}

// SendBasicMessage sends a free form message over the connection.
func (a *Agency) SendBasicMessage(connID, content string) (exID string, err error) {
	t := comm.NewTask(connID)
	t.Info = content
	return a.dispatcher.StartExchange(pltype.ProtocolBasicMessage,
		protocolVersion, t)
}

// SendPing runs the trust ping protocol over the connection.
func (a *Agency) SendPing(connID, comment string) (exID string, err error) {
	t := comm.NewTask(connID)
	t.Info = comment
	return a.dispatcher.StartExchange(pltype.ProtocolTrustPing,
		protocolVersion, t)
}

// ProposeCredential starts the issue credential protocol as the holder.
func (a *Agency) ProposeCredential(
	connID, credDefID string,
	attrs []didcomm.CredentialAttribute,
) (exID string, err error) {
	t := comm.NewTask(connID)
	t.CredDefID = credDefID
	t.CredentialAttrs = attrs
	return a.dispatcher.StartExchange(pltype.ProtocolIssueCredential,
		protocolVersion, t)
}

// RequestProof starts the present proof protocol as the verifier.
func (a *Agency) RequestProof(
	connID string,
	attrs []didcomm.ProofAttribute,
) (exID string, err error) {
	t := comm.NewTask(connID)
	t.ProofAttrs = attrs
	return a.dispatcher.StartExchange(pltype.ProtocolPresentProof,
		protocolVersion, t)
}

// ProposeProof starts the present proof protocol as the prover, by
// proposing what we are ready to present.
func (a *Agency) ProposeProof(
	connID string,
	attrs []didcomm.ProofAttribute,
) (exID string, err error) {
	t := comm.NewTask(connID)
	t.ProofAttrs = attrs
	return a.dispatcher.StartExchangeWith(pltype.ProtocolPresentProof,
		protocolVersion, pltype.HandlerPresentProofPropose, t)
}

// WaitReady blocks until the exchange reaches a terminal state of its
// protocol and reports whether the run succeeded. False means the
// exchange was abandoned or the wait timed out.
func (a *Agency) WaitReady(exID string, timeout time.Duration) bool {
	c := bus.ReadyStation.StartListen(exID)
	defer bus.ReadyStation.StopListen(exID)

	// the run may have finished before we started to listen
	if done, ok := a.terminal(exID); done {
		return ok
	}

	select {
	case ok := <-c:
		return ok
	case <-time.After(timeout):
		return false
	}
}

// terminal tells if the exchange has already reached a terminal state
// and whether it succeeded there.
func (a *Agency) terminal(exID string) (done, ok bool) {
	ex, err := psm.GetExchange(exID)
	if err != nil {
		return false, false
	}
	if ex.IsAbandoned() {
		return true, false
	}
	proc, err := a.reg.Resolve(ex.Protocol, ex.Version)
	if err != nil {
		return false, false
	}
	return proc.IsTerminal(ex.Current()), true
}
