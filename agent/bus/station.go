// Package bus is the in-process event station: callers register a listener
// for an exchange ID and get the state names the dispatcher broadcasts when
// transitions commit. Used by tests and by callers waiting for an exchange
// to finish.
package bus

import (
	"sync"

	"github.com/findy-network/findy-protocol-engine/agent/psm"
)

var ReadyStation = New()

func New() *Station {
	return &Station{channels: make(map[string]Ready)}
}

type Ready chan bool
type StateChan chan psm.StateName

func newReady() Ready {
	return make(Ready, 1) // We need a buffered channel
}

// Station delivers one-shot ready notifications per exchange ID.
type Station struct {
	channels map[string]Ready
	lk       sync.Mutex
}

type stationMap map[string]StateChan
type lockMap struct {
	stationMap
	sync.Mutex
}

// States delivers every committed state transition to its listeners.
var States = &lockMap{stationMap: make(stationMap)}

func (m *lockMap) AddListener(key string) StateChan {
	m.Lock()
	defer m.Unlock()

	m.stationMap[key] = make(StateChan, 1)
	return m.stationMap[key]
}

func (m *lockMap) RmListener(key string) {
	m.Lock()
	defer m.Unlock()
	delete(m.stationMap, key)
}

func (m *lockMap) Broadcast(key string, state psm.StateName) {
	// We need to unlock as soon as possible that we don't keep lock when
	// blocking channel send at the end.
	m.Lock()

	c, ok := m.stationMap[key]
	if !ok {
		m.Unlock() // Manual unlock needed, see below
		return
	}
	m.Unlock() // Important! Leave lock before writing channel

	c <- state
}

func (s *Station) BroadcastReady(key string, ok bool) {
	s.lk.Lock()

	c, found := s.channels[key]
	if !found {
		s.lk.Unlock()
		return
	}
	// we broadcast the ready-info only once
	delete(s.channels, key)
	s.lk.Unlock()

	c <- ok
}

func (s *Station) StartListen(key string) <-chan bool {
	s.lk.Lock()
	defer s.lk.Unlock()

	c := newReady()
	s.channels[key] = c
	return c
}

// StopListen removes the listener when the caller gives up waiting.
// Stopping after the broadcast already consumed the listener is a no-op.
func (s *Station) StopListen(key string) {
	s.lk.Lock()
	defer s.lk.Unlock()

	delete(s.channels, key)
}
