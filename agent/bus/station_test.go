package bus_test

import (
	"testing"
	"time"

	"github.com/findy-network/findy-protocol-engine/agent/bus"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/lainio/err2/assert"
)

func TestStateListener(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	c := bus.States.AddListener("ex-state")
	defer bus.States.RmListener("ex-state")

	bus.States.Broadcast("ex-state", psm.StateName("responded"))
	assert.Equal(<-c, psm.StateName("responded"))

	bus.States.Broadcast("ex-state", psm.StateName("complete"))
	assert.Equal(<-c, psm.StateName("complete"))
}

func TestStateBroadcastWithoutListener(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	// must not block when nobody listens
	bus.States.Broadcast("ex-nobody", psm.StateName("responded"))

	c := bus.States.AddListener("ex-rm")
	bus.States.RmListener("ex-rm")
	bus.States.Broadcast("ex-rm", psm.StateName("responded"))

	select {
	case s := <-c:
		assert.That(false, "unexpected state %s", s)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestReadyIsOneShot(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := bus.New()

	c := s.StartListen("ex-ready")
	s.BroadcastReady("ex-ready", true)
	assert.That(<-c)

	// the listener is consumed: a second broadcast goes nowhere
	s.BroadcastReady("ex-ready", false)
	select {
	case <-c:
		assert.That(false, "listener must be consumed")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestReadyFailure(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := bus.New()

	c := s.StartListen("ex-fail")
	s.BroadcastReady("ex-fail", false)
	assert.That(!<-c)
}

func TestStopListen(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := bus.New()

	c := s.StartListen("ex-stop")
	s.StopListen("ex-stop")
	s.StopListen("ex-stop") // idempotent

	s.BroadcastReady("ex-stop", true)
	select {
	case <-c:
		assert.That(false, "stopped listener must not receive")
	case <-time.After(20 * time.Millisecond):
	}
}
