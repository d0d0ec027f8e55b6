package psm

import (
	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
)

// Role is the protocol role of our end in the exchange.
type Role string

const (
	Initiator Role = "initiator"
	Responder Role = "responder"
)

// StateName is a protocol specific state of an exchange. Every protocol
// declares its own states in its machine, see the registry package. The
// abandoned state is the only one the store itself knows: any exchange can
// be abandoned at any time.
type StateName string

const (
	Abandoned StateName = "abandoned"
)

// StateEvent is one applied transition of an exchange.
type StateEvent struct {
	Timestamp int64
	State     StateName
	MsgType   string
	MsgID     string
}

// Exchange is one instance of a protocol run between two parties. It works
// in event sourcing principle i.e. every state transition is appended to
// States and the newest one is the current state. The record is owned by
// this package and mutated only through Transition and Abandon.
type Exchange struct {
	// ID is the exchange identifier, usually the thread ID of the first
	// protocol message.
	ID string

	Protocol string
	Version  string
	Role     Role

	// ConnectionID refers to the pairwise connection the exchange runs on.
	// The connection is not owned by the exchange.
	ConnectionID string

	CreatedAt int64
	UpdatedAt int64

	// States has all of the state history of this exchange in timestamp
	// order. The last one is the current state.
	States []StateEvent
}

func NewExchange(d []byte) *Exchange {
	p := &Exchange{}
	dto.FromGOB(d, p)
	return p
}

func (p *Exchange) Data() []byte {
	return dto.ToGOB(p)
}

func (p *Exchange) FirstState() *StateEvent {
	if len(p.States) > 0 {
		return &p.States[0]
	}
	return nil
}

func (p *Exchange) LastState() *StateEvent {
	if sCount := len(p.States); sCount > 0 {
		return &p.States[sCount-1]
	}
	return nil
}

// Current returns the exchange's current state.
func (p *Exchange) Current() StateName {
	if s := p.LastState(); s != nil {
		return s.State
	}
	return ""
}

func (p *Exchange) IsAbandoned() bool {
	return p.Current() == Abandoned
}

// Consumed tells if an inbound message is already applied to the exchange.
// Re-delivered duplicates are acked without running the handler again.
func (p *Exchange) Consumed(msgID string) bool {
	if msgID == "" {
		return false
	}
	for i := range p.States {
		if p.States[i].MsgID == msgID {
			return true
		}
	}
	return false
}

func (p *Exchange) append(next StateName, msgType, msgID string) {
	now := utils.CurrentTimeMs()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.States = append(p.States, StateEvent{
		Timestamp: now,
		State:     next,
		MsgType:   msgType,
		MsgID:     msgID,
	})
}
