/*
Package agency composes the protocol engine: it opens the stores and the
key enclave, registers the protocol processors, starts the delivery
workers, and gives protocol handlers access to the agent's resources. One
Agency is one agent process.
*/
package agency

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/delivery"
	"github.com/findy-network/findy-protocol-engine/agent/pairwise"
	"github.com/findy-network/findy-protocol-engine/agent/prot"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/findy-network/findy-protocol-engine/agent/registry"
	"github.com/findy-network/findy-protocol-engine/agent/sec"
	"github.com/findy-network/findy-protocol-engine/agent/storage/wrapper"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/findy-network/findy-protocol-engine/enclave"
	"github.com/findy-network/findy-protocol-engine/protocol/basicmessage"
	"github.com/findy-network/findy-protocol-engine/protocol/connection"
	"github.com/findy-network/findy-protocol-engine/protocol/issuecredential"
	"github.com/findy-network/findy-protocol-engine/protocol/presentproof"
	"github.com/findy-network/findy-protocol-engine/protocol/trustping"
	"github.com/go-co-op/gocron"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const (
	bucketPairwise = "pairwise"
	bucketQueue    = "queue"
)

// Config gathers everything an engine process needs at startup. The
// credential and proof ends are optional: a nil Issuer just means this
// agent never issues.
type Config struct {
	// Label is the agent's public name, sent in connection messages.
	Label string

	// StoragePath is the directory of the engine's database files.
	StoragePath string

	// StorageKey is the hex coded symmetric key ciphering all stores.
	// Empty means plaintext, used by tests.
	StorageKey string

	// Transport delivers packed envelopes. Nil defaults to HTTP.
	Transport comm.Transport

	// Workers is the delivery worker count. Zero means one.
	Workers int

	Issuer   issuecredential.Issuer
	Holder   issuecredential.Holder
	Verifier presentproof.Verifier
	Prover   presentproof.Prover
}

// Agency is the running engine: the registry, the stores, the delivery
// queue, and the dispatcher wired together. It implements comm.Receiver
// for the protocol handlers.
type Agency struct {
	label string

	reg        *registry.Registry
	queue      *delivery.Queue
	dispatcher *prot.Dispatcher
	conns      *pairwise.Store
	storage    *wrapper.StorageProvider
	scheduler  *gocron.Scheduler
}

// Open builds and starts the engine: stores, enclave, registry, crash
// recovery, delivery workers, and the exchange garbage collection.
func Open(cfg Config) (a *Agency, err error) {
	defer err2.Annotatew("agency open", &err)

	try.To(enclave.InitSealedBox(
		filepath.Join(cfg.StoragePath, utils.Settings.EnclaveDBName()),
		cfg.StorageKey))
	try.To(psm.Open(
		filepath.Join(cfg.StoragePath, utils.Settings.PsmDBName())))

	storage := wrapper.New(wrapper.Config{
		Key:       cfg.StorageKey,
		FileName:  utils.Settings.QueueDBName(),
		FilePath:  cfg.StoragePath,
		BucketIDs: []string{bucketPairwise, bucketQueue},
	})
	try.To(storage.Init())

	transport := cfg.Transport
	if transport == nil {
		transport = comm.HTTPTransport{}
	}

	a = &Agency{
		label:   cfg.Label,
		storage: storage,
		conns: pairwise.NewStore(
			try.To1(storage.OpenStore(bucketPairwise))),
	}
	a.queue = delivery.New(
		try.To1(storage.OpenStore(bucketQueue)), transport)

	a.reg = registry.New()
	try.To(a.reg.Register(connection.Proc()))
	try.To(a.reg.Register(trustping.Proc()))
	try.To(a.reg.Register(basicmessage.Proc()))
	try.To(a.reg.Register(issuecredential.Proc(cfg.Issuer, cfg.Holder)))
	try.To(a.reg.Register(presentproof.Proc(cfg.Verifier, cfg.Prover)))
	a.reg.Seal()

	a.dispatcher = prot.New(a.reg, a.queue, a)

	try.To(a.queue.Recover(func(exchangeID string) (psm.StateName, error) {
		ex, err := psm.GetExchange(exchangeID)
		if err != nil {
			return "", err
		}
		return ex.Current(), nil
	}))
	a.queue.Start(cfg.Workers)

	a.scheduler = gocron.NewScheduler(time.UTC)
	_ = try.To1(a.scheduler.
		Every(utils.Settings.ExchangeGCInterval()).
		Do(a.sweepTerminal))
	a.scheduler.StartAsync()

	glog.V(1).Infoln("agency open:", cfg.Label)
	return a, nil
}

// Shutdown stops the scheduler and drains the delivery queue. Whatever is
// still queued stays persisted for the next start.
func (a *Agency) Shutdown(ctx context.Context) (err error) {
	defer err2.Annotatew("agency shutdown", &err)

	a.scheduler.Stop()
	try.To(a.queue.Shutdown(ctx))
	try.To(a.storage.Close())
	enclave.Close()

	glog.V(1).Infoln("agency shutdown:", a.label)
	return nil
}

// Dispatcher returns the engine's protocol dispatcher.
func (a *Agency) Dispatcher() *prot.Dispatcher {
	return a.dispatcher
}

// Registry returns the sealed protocol registry.
func (a *Agency) Registry() *registry.Registry {
	return a.reg
}

// Queue returns the delivery queue. Used by status queries and tests.
func (a *Agency) Queue() *delivery.Queue {
	return a.queue
}

// MyDID implements comm.Receiver.
func (a *Agency) MyDID() string {
	return a.label
}

// KeySet implements comm.Receiver: it returns the enclave key set by ID
// and creates it when it does not exist yet.
func (a *Agency) KeySet(id string) (ks *enclave.KeySet, err error) {
	ks, err = enclave.KeySetByID(id)
	if errors.Is(err, enclave.ErrNotExists) {
		return enclave.NewKeySet(id)
	}
	return ks, err
}

// Connections implements comm.Receiver.
func (a *Agency) Connections() *pairwise.Store {
	return a.conns
}

// PipeFor implements comm.Receiver: it builds the secure pipe to the
// connection's peer.
func (a *Agency) PipeFor(connID string) (p sec.Pipe, err error) {
	defer err2.Annotatew("pipe for", &err)

	conn := try.To1(a.conns.Get(connID))
	ks := try.To1(a.KeySet(conn.MyKeySetID))
	return sec.Pipe{In: ks, Out: conn.TheirPublicKey()}, nil
}

// sweepTerminal removes the exchange records that have reached a terminal
// state of their protocol's machine.
func (a *Agency) sweepTerminal() {
	defer err2.CatchTrace(func(err error) {
		glog.Error("exchange sweep:", err)
	})

	machines := make(map[string][]registry.Proc)
	for _, p := range a.reg.Protocols() {
		machines[p.Protocol] = append(machines[p.Protocol], p)
	}

	_ = try.To1(psm.RmTerminal(func(ex *psm.Exchange) bool {
		if ex.IsAbandoned() {
			return true
		}
		for _, p := range machines[ex.Protocol] {
			if p.Version.String() == ex.Version {
				return p.IsTerminal(ex.Current())
			}
		}
		return false
	}))
}
