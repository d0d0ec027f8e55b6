package registry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/findy-network/findy-protocol-engine/agent/psm"
)

// ErrInvalidTransition is returned when an exchange receives a message its
// machine declares no transition for in the current state. The message is
// fatal to itself, never to the process: the exchange state stays unchanged.
var ErrInvalidTransition = errors.New("invalid transition")

// Version is a protocol version. Resolution is semver-like on the two
// levels Aries protocols use.
type Version struct {
	Major int
	Minor int
}

func ParseVersion(s string) (v Version, err error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return v, fmt.Errorf("bad version string: %s", s)
	}
	if v.Major, err = strconv.Atoi(parts[0]); err != nil {
		return v, fmt.Errorf("bad major version: %s", s)
	}
	if v.Minor, err = strconv.Atoi(parts[1]); err != nil {
		return v, fmt.Errorf("bad minor version: %s", s)
	}
	return v, nil
}

func (v Version) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// Machine declares a protocol's state machine: its states, the initial
// states per role, and the legal transitions as a closed (state, message
// name) mapping. The dispatcher enforces that only declared transitions are
// followed.
type Machine struct {
	Protocol string
	Version  Version

	// Initial states by role: the state a new exchange starts in.
	Initial map[psm.Role]psm.StateName

	// Terminals are the states where the exchange is complete and the
	// record becomes eligible for garbage collection.
	Terminals []psm.StateName

	// Transitions maps current state -> message name -> next state.
	Transitions map[psm.StateName]map[string]psm.StateName

	// AllowsNewPeer marks the protocol whose first inbound message may
	// arrive from a not yet known sender, i.e. the protocol that builds
	// the pairwise itself. Every other protocol requires an existing
	// connection.
	AllowsNewPeer bool
}

// Next resolves the declared next state for a message arriving in the
// current state. Undeclared pairs are rejected with ErrInvalidTransition,
// never silently ignored.
func (m Machine) Next(cur psm.StateName, msgName string) (next psm.StateName, err error) {
	if msgs, ok := m.Transitions[cur]; ok {
		if next, ok = msgs[msgName]; ok {
			return next, nil
		}
	}
	return "", fmt.Errorf("%w: %s/%s: no transition for %s in state %s",
		ErrInvalidTransition, m.Protocol, m.Version, msgName, cur)
}

func (m Machine) IsTerminal(s psm.StateName) bool {
	if s == psm.Abandoned {
		return true
	}
	for _, t := range m.Terminals {
		if t == s {
			return true
		}
	}
	return false
}

// live tells if a state has a way forward: either outgoing transitions or
// it is terminal.
func (m Machine) live(s psm.StateName) bool {
	return m.IsTerminal(s) || len(m.Transitions[s]) > 0
}

func (m Machine) validate() error {
	if m.Protocol == "" {
		return errors.New("machine has no protocol name")
	}
	if len(m.Initial) == 0 {
		return fmt.Errorf("machine %s has no initial states", m.Protocol)
	}
	for role, s := range m.Initial {
		if !m.live(s) {
			return fmt.Errorf("machine %s: initial state %s of %s is a dead end",
				m.Protocol, s, role)
		}
	}
	for from, msgs := range m.Transitions {
		for msg, to := range msgs {
			if !m.live(to) {
				return fmt.Errorf("machine %s: %s(%s) targets dead end state %s",
					m.Protocol, from, msg, to)
			}
		}
	}
	return nil
}
