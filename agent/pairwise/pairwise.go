// Package pairwise keeps the long-lived connection records: one per
// pairwise relationship with a peer agent. Exchanges refer to connections
// by ID but never own them.
package pairwise

import (
	"errors"
	"fmt"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-protocol-engine/agent/sec"
	"github.com/findy-network/findy-protocol-engine/agent/service"
	"github.com/findy-network/findy-protocol-engine/agent/storage/wrapper"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Connection states. A connection is usable for protocol traffic once it
// is complete.
const (
	StateInvitationSent = "invitation-sent"
	StateRequestSent    = "request-sent"
	StateResponded      = "responded"
	StateComplete       = "complete"
	StateAbandoned      = "abandoned"
)

// ErrNotFound is returned when no connection exists for the key.
var ErrNotFound = errors.New("connection not found")

// Connection is a pairwise relationship with a peer agent.
type Connection struct {
	ID string

	// MyKeySetID names our enclave key set for this connection.
	MyKeySetID string

	TheirLabel    string
	TheirSignKey  string
	TheirEncKey   string
	TheirEndpoint string

	State string

	CreatedAt int64
	UpdatedAt int64
}

// TheirAddr is the peer's transport destination.
func (c *Connection) TheirAddr() service.Addr {
	return service.Addr{Endp: c.TheirEndpoint, Key: c.TheirEncKey}
}

// TheirPublicKey is the peer's key material for the secure pipe.
func (c *Connection) TheirPublicKey() sec.PublicKey {
	return sec.PublicKey{SignKey: c.TheirSignKey, EncKey: c.TheirEncKey}
}

// Store persists connections to a wrapper bucket store.
type Store struct {
	s wrapper.Store
}

func NewStore(s wrapper.Store) *Store {
	return &Store{s: s}
}

func (st *Store) Save(conn *Connection) (err error) {
	defer err2.Annotatew("save connection", &err)

	now := utils.CurrentTimeMs()
	if conn.CreatedAt == 0 {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now
	return st.s.Put(conn.ID, dto.ToGOB(conn))
}

func (st *Store) Get(id string) (conn *Connection, err error) {
	defer err2.Annotatew("get connection", &err)

	data, err := st.s.Get(id)
	if err != nil || len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	conn = &Connection{}
	dto.FromGOB(data, conn)
	return conn, nil
}

// BySignKey finds the connection whose peer signs with the given key. Used
// to bind an authenticated inbound envelope to its connection.
func (st *Store) BySignKey(signKey string) (conn *Connection, err error) {
	defer err2.Annotatew("connection by sign key", &err)

	conns := try.To1(st.List(func(c *Connection) bool {
		return c.TheirSignKey == signKey
	}))
	if len(conns) == 0 {
		return nil, fmt.Errorf("%w: signer %s", ErrNotFound, signKey)
	}
	return conns[0], nil
}

// List returns the connections accepted by the filter. A nil filter accepts
// everything.
func (st *Store) List(filter func(c *Connection) bool) (conns []*Connection, err error) {
	defer err2.Annotatew("list connections", &err)

	data := try.To1(st.s.GetAll(func(d []byte) []byte { return d }))
	conns = make([]*Connection, 0, len(data))
	for _, d := range data {
		c := &Connection{}
		dto.FromGOB(d, c)
		if filter == nil || filter(c) {
			conns = append(conns, c)
		}
	}
	return conns, nil
}
