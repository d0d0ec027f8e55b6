package comm

import (
	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/agent/pairwise"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/findy-network/findy-protocol-engine/agent/sec"
	"github.com/findy-network/findy-protocol-engine/agent/service"
	"github.com/findy-network/findy-protocol-engine/enclave"
)

// Packet is one decoded inbound protocol message with its context: who
// authenticated as the sender, which of our key sets it was sealed to, and
// the receiver giving access to the agent's resources.
type Packet struct {
	Payload didcomm.Payload

	// SenderKey is the authenticated sender signing key from the envelope.
	SenderKey string

	// KeySet is our key set the envelope was sealed to.
	KeySet *enclave.KeySet

	// Connection is the pairwise the message arrived on. Nil when the
	// message starts a new relationship i.e. a connection request.
	Connection *pairwise.Connection

	Receiver Receiver
}

// Outbound is one protocol message produced by a handler, waiting to be
// packed and queued for delivery.
type Outbound struct {
	// ExchangeID ties the message to its exchange so that abandoning the
	// exchange cancels pending deliveries.
	ExchangeID string

	Destination service.Addr
	Pipe        sec.Pipe
	Payload     didcomm.Payload
}

// HandlerFunc is func type for protocol message handlers. The handler runs
// the protocol side effects and returns the outbound messages of the
// transition. The dispatcher has already resolved and validated the next
// state when a handler runs.
type HandlerFunc func(packet Packet, ex *psm.Exchange) (out []Outbound, err error)

// StarterFunc builds the first outbound message when our end initiates the
// protocol.
type StarterFunc func(rcvr Receiver, t *Task) (out []Outbound, err error)

// Receiver gives protocol handlers access to the agent's resources: its
// key enclave and its connection records.
type Receiver interface {
	// MyDID is the agent level identity, used as the label of outbound
	// connection messages.
	MyDID() string

	// KeySet returns the agent's key set by ID, creating it when it does
	// not exist yet.
	KeySet(id string) (*enclave.KeySet, error)

	Connections() *pairwise.Store

	// PipeFor builds a secure pipe to the connection's peer.
	PipeFor(connID string) (sec.Pipe, error)
}
