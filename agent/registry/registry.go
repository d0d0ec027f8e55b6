/*
Package registry implements the protocol registry: an explicitly
constructed, immutable-after-init table from (protocol name, version) to
the protocol's machine and handlers. The registry instance is given to the
dispatcher; there is no module level registration. Registration happens
single-threaded at startup and the table is sealed before any lookups, so
lookups are safe for concurrent access without locking.
*/
package registry

import (
	"errors"
	"fmt"

	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/golang/glog"
)

// ErrUnsupportedProtocol is returned when no exact or compatible version of
// the protocol is registered. The message is dropped and no exchange is
// created.
var ErrUnsupportedProtocol = errors.New("unsupported protocol")

// Proc is a protocol processor: the declared machine plus the handler
// functions per message name. Instances of it are the actual protocol
// implementations. Just declare var and the needed msg handlers
// (HandlerFunc) and register it to the registry.
type Proc struct {
	Machine

	// Handlers by message name, i.e. the last field of the @type string.
	Handlers map[string]comm.HandlerFunc

	// Starter builds the first message when our end initiates.
	Starter comm.StarterFunc

	// Opens lists alternate openings by the name of their first message.
	// A protocol that can begin with more than one message declares the
	// extra ones here, e.g. a proof proposal instead of a proof request.
	Opens map[string]Open
}

// Open is one alternate way to begin a protocol run from our end: the
// first message builder and the state the fresh exchange starts in.
type Open struct {
	Initial psm.StateName
	Starter comm.StarterFunc
}

type Registry struct {
	sealed bool
	procs  map[string][]Proc // by protocol name, ascending version order
}

func New() *Registry {
	return &Registry{procs: make(map[string][]Proc)}
}

// Register adds a protocol processor to the table. The machine and the
// handler mapping are validated here so that a bad declaration fails at
// startup, not at message time: every message name the machine's
// transitions use must have a handler.
func (r *Registry) Register(p Proc) (err error) {
	if r.sealed {
		panic("registering to a sealed registry")
	}

	if err = p.validate(); err != nil {
		return err
	}
	for _, msgs := range p.Transitions {
		for msg := range msgs {
			if _, ok := p.Handlers[msg]; !ok {
				return fmt.Errorf("protocol %s/%s: no handler for message %s",
					p.Protocol, p.Version, msg)
			}
		}
	}
	for name, o := range p.Opens {
		if o.Starter == nil {
			return fmt.Errorf("protocol %s/%s: opening %s has no starter",
				p.Protocol, p.Version, name)
		}
		if !p.live(o.Initial) {
			return fmt.Errorf("protocol %s/%s: opening %s starts at dead end state %s",
				p.Protocol, p.Version, name, o.Initial)
		}
	}

	for _, old := range r.procs[p.Protocol] {
		if old.Version == p.Version {
			return fmt.Errorf("protocol %s/%s registered twice",
				p.Protocol, p.Version)
		}
	}

	glog.V(1).Infoln("register protocol", p.Protocol, p.Version.String())
	r.procs[p.Protocol] = insertByVersion(r.procs[p.Protocol], p)
	return nil
}

// Seal freezes the registry. Called once when startup registration is
// done; Register panics after this.
func (r *Registry) Seal() {
	r.sealed = true
}

// Resolve finds the processor for the protocol and version. Policy: exact
// match preferred; otherwise the highest registered minor version within
// the same major version; otherwise ErrUnsupportedProtocol.
func (r *Registry) Resolve(protocol, version string) (p Proc, err error) {
	want, err := ParseVersion(version)
	if err != nil {
		return p, fmt.Errorf("%w: %s: %s", ErrUnsupportedProtocol, protocol, err)
	}

	var best *Proc
	for i := range r.procs[protocol] {
		cand := &r.procs[protocol][i]
		if cand.Version == want {
			return *cand, nil
		}
		if cand.Version.Major == want.Major {
			best = cand // ascending order, the last same-major wins
		}
	}
	if best != nil {
		glog.V(3).Infof("resolving %s/%s to registered %s",
			protocol, version, best.Version.String())
		return *best, nil
	}
	return p, fmt.Errorf("%w: %s/%s", ErrUnsupportedProtocol, protocol, version)
}

// Protocols returns the registered processors. Used by the terminal state
// garbage collection to know every machine's terminal states.
func (r *Registry) Protocols() (all []Proc) {
	for _, procs := range r.procs {
		all = append(all, procs...)
	}
	return all
}

func insertByVersion(procs []Proc, p Proc) []Proc {
	at := len(procs)
	for i := range procs {
		v := procs[i].Version
		if v.Major > p.Version.Major ||
			(v.Major == p.Version.Major && v.Minor > p.Version.Minor) {
			at = i
			break
		}
	}
	procs = append(procs, Proc{})
	copy(procs[at+1:], procs[at:])
	procs[at] = p
	return procs
}
