package comm

import (
	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/agent/service"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
)

// Task is a helper struct gathering all needed data for starting one
// protocol exchange from our end.
type Task struct {
	// Nonce is the exchange ID and the thread ID of the protocol run.
	Nonce string

	// ConnectionID names the pairwise the protocol runs on.
	ConnectionID string

	// ReceiverEndp is where the first message goes.
	ReceiverEndp service.Addr

	// Info is free form data for the protocol: the basic message content,
	// the ping comment, etc.
	Info string

	// Invitation is the out of band invitation JSON or URL when the task
	// starts the connection protocol.
	Invitation string

	CredDefID       string
	CredentialAttrs []didcomm.CredentialAttribute
	ProofAttrs      []didcomm.ProofAttribute
}

// NewTask creates a task with a fresh exchange ID.
func NewTask(connID string) *Task {
	return &Task{
		Nonce:        utils.UUID(),
		ConnectionID: connID,
	}
}
