package registry

import (
	"errors"
	"testing"

	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/lainio/err2/assert"
)

func nopHandler(_ comm.Packet, _ *psm.Exchange) ([]comm.Outbound, error) {
	return nil, nil
}

func pingMachine(v Version) Machine {
	return Machine{
		Protocol: "trust_ping",
		Version:  v,
		Initial: map[psm.Role]psm.StateName{
			psm.Initiator: "ping-sent",
			psm.Responder: "waiting-ping",
		},
		Terminals: []psm.StateName{"complete", "ping-received"},
		Transitions: map[psm.StateName]map[string]psm.StateName{
			"ping-sent":    {"ping_response": "complete"},
			"waiting-ping": {"ping": "ping-received"},
		},
	}
}

func pingProc(v Version) Proc {
	return Proc{
		Machine: pingMachine(v),
		Handlers: map[string]comm.HandlerFunc{
			"ping":          nopHandler,
			"ping_response": nopHandler,
		},
	}
}

func TestMachineNext(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	m := pingMachine(Version{Major: 1, Minor: 0})

	next, err := m.Next("waiting-ping", "ping")
	assert.NoError(err)
	assert.Equal(next, psm.StateName("ping-received"))

	// undeclared message in a known state
	_, err = m.Next("waiting-ping", "ping_response")
	assert.That(errors.Is(err, ErrInvalidTransition))

	// message in a terminal state
	_, err = m.Next("complete", "ping")
	assert.That(errors.Is(err, ErrInvalidTransition))
}

func TestMachineIsTerminal(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	m := pingMachine(Version{Major: 1, Minor: 0})
	assert.That(m.IsTerminal("complete"))
	assert.That(m.IsTerminal("ping-received"))
	assert.That(m.IsTerminal(psm.Abandoned))
	assert.That(!m.IsTerminal("ping-sent"))
}

func TestRegisterValidates(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	r := New()

	// a transition message without a handler fails at startup
	p := pingProc(Version{Major: 1, Minor: 0})
	delete(p.Handlers, "ping")
	assert.Error(r.Register(p))

	// a transition to an undeclared dead end state fails at startup
	p = pingProc(Version{Major: 1, Minor: 0})
	p.Transitions["waiting-ping"]["ping"] = "lost"
	assert.Error(r.Register(p))

	assert.NoError(r.Register(pingProc(Version{Major: 1, Minor: 0})))
	assert.Error(r.Register(pingProc(Version{Major: 1, Minor: 0})))
}

func TestRegisterValidatesOpens(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	nopStarter := func(_ comm.Receiver, _ *comm.Task) ([]comm.Outbound, error) {
		return nil, nil
	}

	// an opening without a starter fails at startup
	r := New()
	p := pingProc(Version{Major: 1, Minor: 0})
	p.Opens = map[string]Open{"ping": {Initial: "ping-sent"}}
	assert.Error(r.Register(p))

	// an opening starting at a dead end state fails at startup
	p = pingProc(Version{Major: 1, Minor: 0})
	p.Opens = map[string]Open{
		"ping": {Initial: "lost", Starter: nopStarter},
	}
	assert.Error(r.Register(p))

	p = pingProc(Version{Major: 1, Minor: 0})
	p.Opens = map[string]Open{
		"ping": {Initial: "ping-sent", Starter: nopStarter},
	}
	assert.NoError(r.Register(p))
}

func TestResolveVersions(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	r := New()
	assert.NoError(r.Register(pingProc(Version{Major: 1, Minor: 0})))
	assert.NoError(r.Register(pingProc(Version{Major: 1, Minor: 2})))
	assert.NoError(r.Register(pingProc(Version{Major: 2, Minor: 0})))
	r.Seal()

	tests := []struct {
		name string
		ask  string
		want Version
	}{
		{"exact", "1.0", Version{Major: 1, Minor: 0}},
		{"exact highest", "1.2", Version{Major: 1, Minor: 2}},
		{"minor fallback", "1.1", Version{Major: 1, Minor: 2}},
		{"minor over highest", "1.7", Version{Major: 1, Minor: 2}},
		{"next major", "2.0", Version{Major: 2, Minor: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			p, err := r.Resolve("trust_ping", tt.ask)
			assert.NoError(err)
			assert.Equal(p.Version, tt.want)
		})
	}

	_, err := r.Resolve("trust_ping", "3.0")
	assert.That(errors.Is(err, ErrUnsupportedProtocol))

	_, err = r.Resolve("basicmessage", "1.0")
	assert.That(errors.Is(err, ErrUnsupportedProtocol))

	_, err = r.Resolve("trust_ping", "bad-version")
	assert.That(errors.Is(err, ErrUnsupportedProtocol))
}

func TestParseVersion(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	v, err := ParseVersion("1.12")
	assert.NoError(err)
	assert.Equal(v, Version{Major: 1, Minor: 12})
	assert.Equal(v.String(), "1.12")

	_, err = ParseVersion("1")
	assert.Error(err)
	_, err = ParseVersion("1.x")
	assert.Error(err)
}
