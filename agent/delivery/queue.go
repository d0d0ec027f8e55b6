/*
Package delivery implements the durable outbound delivery queue. Packed
wire messages are persisted to a bucket store and background workers push
them to the transport with exponential backoff, unlimited retries until the
item is delivered, its exchange is abandoned, or the queue is drained at
shutdown. A queued message is never silently dropped: whatever is not
delivered at shutdown stays persisted and resumes on restart.

Items are first staged: the dispatcher persists them inside the same
critical section as the exchange transition and promotes them deliverable
only after the transition commits. Crash recovery resolves leftover staged
items against the last committed exchange record, so a second transition
never observes a half-committed one.
*/
package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/findy-network/findy-protocol-engine/agent/service"
	"github.com/findy-network/findy-protocol-engine/agent/storage/wrapper"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Item is one queued outbound message.
type Item struct {
	ID         string
	ExchangeID string

	Destination service.Addr
	Wire        []byte

	// Staged items are not deliverable yet: their exchange transition has
	// not committed. NextState is the state whose commit makes the item
	// deliverable, used by crash recovery.
	Staged    bool
	NextState psm.StateName

	Attempts  int
	NotBefore int64 // unix ms, next allowed delivery attempt
	CreatedAt int64
}

func newItem(d []byte) *Item {
	i := &Item{}
	dto.FromGOB(d, i)
	return i
}

func (i *Item) data() []byte {
	return dto.ToGOB(i)
}

// Queue is the durable delivery queue. One instance per engine process.
type Queue struct {
	store     wrapper.Store
	transport comm.Transport

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup

	l         sync.Mutex
	inflight  map[string]bool
	cancelled map[string]bool
	draining  bool
}

func New(store wrapper.Store, transport comm.Transport) *Queue {
	return &Queue{
		store:     store,
		transport: transport,
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		inflight:  make(map[string]bool),
		cancelled: make(map[string]bool),
	}
}

// Stage persists the item undeliverable. The dispatcher calls this inside
// the exchange transition's commit callback.
func (q *Queue) Stage(item *Item) (err error) {
	defer err2.Annotatew("queue stage", &err)

	if q.isDraining() {
		return comm.ErrTransport
	}

	item.ID = utils.UUID()
	item.Staged = true
	item.CreatedAt = utils.CurrentTimeMs()
	return q.store.Put(item.ID, item.data())
}

// Promote makes staged items deliverable. Called right after the exchange
// transition has committed.
func (q *Queue) Promote(ids []string) (err error) {
	defer err2.Annotatew("queue promote", &err)

	for _, id := range ids {
		data, err := q.store.Get(id)
		if err != nil {
			continue // already gone, nothing to promote
		}
		item := newItem(data)
		item.Staged = false
		try.To(q.store.Put(id, item.data()))
	}
	q.nudge()
	return nil
}

// Enqueue persists a message directly deliverable, bypassing staging. Used
// for messages with no state transition of their own, like problem
// reports.
func (q *Queue) Enqueue(exchangeID string, dest service.Addr, wire []byte) (err error) {
	defer err2.Annotatew("queue enqueue", &err)

	if q.isDraining() {
		return comm.ErrTransport
	}

	item := &Item{
		ID:          utils.UUID(),
		ExchangeID:  exchangeID,
		Destination: dest,
		Wire:        wire,
		CreatedAt:   utils.CurrentTimeMs(),
	}
	try.To(q.store.Put(item.ID, item.data()))
	q.nudge()
	return nil
}

// CancelFor drops every pending item of the exchange. Abandoning an
// exchange must stop its delivery retries; cancelling twice is a no-op.
// An item a worker holds in flight is marked so its failed send is not
// written back after the delete here.
func (q *Queue) CancelFor(exchangeID string) (err error) {
	defer err2.Annotatew("queue cancel", &err)

	for _, item := range try.To1(q.all()) {
		if item.ExchangeID != exchangeID {
			continue
		}
		q.l.Lock()
		rmErr := q.store.Delete(item.ID)
		if q.inflight[item.ID] {
			q.cancelled[item.ID] = true
		}
		q.l.Unlock()
		try.To(rmErr)
	}
	return nil
}

// Recover resolves staged items left over by a crash: when the exchange's
// last committed state is the item's next state the transition did commit
// and the item is promoted, otherwise the transition never happened and
// the item is dropped. Call once at startup before Start.
func (q *Queue) Recover(stateOf func(exchangeID string) (psm.StateName, error)) (err error) {
	defer err2.Annotatew("queue recover", &err)

	for _, item := range try.To1(q.all()) {
		if !item.Staged {
			continue
		}
		state, err := stateOf(item.ExchangeID)
		if err == nil && state == item.NextState {
			glog.V(1).Infoln("recover: promoting staged item", item.ID)
			item.Staged = false
			try.To(q.store.Put(item.ID, item.data()))
		} else {
			glog.V(1).Infoln("recover: dropping staged item", item.ID)
			try.To(q.store.Delete(item.ID))
		}
	}
	return nil
}

// Start launches the delivery workers.
func (q *Queue) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

// Shutdown stops intake, lets in-flight attempts finish, and leaves the
// rest of the queue persisted for the next start.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.l.Lock()
	q.draining = true
	q.l.Unlock()

	close(q.stop)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stop:
			return
		case <-q.wake:
		case <-time.After(time.Second):
		}
		q.deliverDue()
	}
}

func (q *Queue) deliverDue() {
	defer err2.CatchTrace(func(err error) {
		glog.Error("error in delivery round:", err)
	})

	items := try.To1(q.all())
	now := utils.CurrentTimeMs()
	for _, item := range items {
		if item.Staged || item.NotBefore > now || !q.claim(item.ID) {
			continue
		}
		q.attempt(item)
		q.release(item.ID)

		select {
		case <-q.stop:
			return
		default:
		}
	}
}

// attempt tries one delivery. Success removes the item; failure books the
// next attempt with exponential backoff.
func (q *Queue) attempt(item *Item) {
	defer err2.CatchTrace(func(err error) {
		glog.Error("error in delivery attempt:", err)
	})

	// the item may have been cancelled while we claimed it
	if _, err := q.store.Get(item.ID); err != nil {
		return
	}

	err := q.transport.Send(context.Background(), item.Destination, item.Wire)
	if err == nil {
		glog.V(3).Infoln("delivered", item.ID, "to", item.Destination.Endp)
		try.To(q.store.Delete(item.ID))
		return
	}

	item.Attempts++
	item.NotBefore = utils.CurrentTimeMs() + backoff(item.Attempts).Milliseconds()
	glog.V(1).Infof("delivery of %s failed (attempt %d), retry in %s: %s",
		item.ID, item.Attempts, backoff(item.Attempts), err)
	try.To(q.requeue(item))
}

// requeue books the item's next attempt. The cancel check and the write
// run under the same lock CancelFor marks under, so a cancel arriving
// while the send was in flight cannot lose to the write back.
func (q *Queue) requeue(item *Item) error {
	q.l.Lock()
	defer q.l.Unlock()

	if q.cancelled[item.ID] {
		glog.V(1).Infoln("dropping cancelled item", item.ID)
		return nil
	}
	return q.store.Put(item.ID, item.data())
}

// backoff doubles from the base wait for every failed attempt up to the
// cap. Retries continue until cancellation or drain.
func backoff(attempts int) time.Duration {
	d := utils.Settings.RetryBase()
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= utils.Settings.RetryCap() {
			return utils.Settings.RetryCap()
		}
	}
	if d > utils.Settings.RetryCap() {
		d = utils.Settings.RetryCap()
	}
	return d
}

// PendingFor returns the pending item count of the exchange. Mostly for
// tests and status queries.
func (q *Queue) PendingFor(exchangeID string) (n int, err error) {
	defer err2.Annotatew("queue pending", &err)

	for _, item := range try.To1(q.all()) {
		if item.ExchangeID == exchangeID {
			n++
		}
	}
	return n, nil
}

func (q *Queue) all() (items []*Item, err error) {
	defer err2.Return(&err)

	data := try.To1(q.store.GetAll(func(d []byte) []byte { return d }))
	items = make([]*Item, 0, len(data))
	for _, d := range data {
		items = append(items, newItem(d))
	}
	return items, nil
}

func (q *Queue) claim(id string) bool {
	q.l.Lock()
	defer q.l.Unlock()

	if q.inflight[id] {
		return false
	}
	q.inflight[id] = true
	return true
}

func (q *Queue) release(id string) {
	q.l.Lock()
	defer q.l.Unlock()

	delete(q.inflight, id)
	delete(q.cancelled, id)
}

func (q *Queue) isDraining() bool {
	q.l.Lock()
	defer q.l.Unlock()

	return q.draining
}

func (q *Queue) nudge() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
