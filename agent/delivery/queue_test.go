package delivery

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/findy-network/findy-protocol-engine/agent/service"
	"github.com/findy-network/findy-protocol-engine/agent/storage/wrapper"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/lainio/err2"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

var (
	storageDir string
	providers  []*wrapper.StorageProvider
)

func TestMain(m *testing.M) {
	setUp()
	code := m.Run()
	tearDown()
	os.Exit(code)
}

func setUp() {
	defer err2.CatchTrace(func(err error) {
		fmt.Println("error on setup", err)
	})

	try.To(flag.Set("logtostderr", "true"))

	storageDir = try.To1(os.MkdirTemp("", "queue-test"))

	// keep the retry waits short so the tests don't sleep for real
	utils.Settings.SetRetryBase(time.Millisecond)
	utils.Settings.SetRetryCap(20 * time.Millisecond)
}

func tearDown() {
	for _, p := range providers {
		_ = p.Close()
	}
	os.RemoveAll(storageDir)
}

// fakeTransport counts the deliveries and fails the first failCount sends
// with a transport error.
type fakeTransport struct {
	l         sync.Mutex
	failCount int
	calls     int
	sent      [][]byte
}

func (f *fakeTransport) Send(_ context.Context, _ service.Addr, wire []byte) error {
	f.l.Lock()
	defer f.l.Unlock()

	f.calls++
	if f.failCount > 0 {
		f.failCount--
		return fmt.Errorf("%w: refused", comm.ErrTransport)
	}
	f.sent = append(f.sent, wire)
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.l.Lock()
	defer f.l.Unlock()
	return len(f.sent)
}

func newQueue(name string, tr comm.Transport) *Queue {
	sp := wrapper.New(wrapper.Config{
		FileName:  name,
		FilePath:  storageDir,
		BucketIDs: []string{"queue"},
	})
	try.To(sp.Init())
	providers = append(providers, sp)

	return New(try.To1(sp.OpenStore("queue")), tr)
}

var dest = service.Addr{Endp: "http://peer.test/a2a", Key: "peer-key"}

func TestRetryUntilDelivered(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	tr := &fakeTransport{failCount: 3}
	q := newQueue("retry", tr)

	assert.NoError(q.Enqueue("ex-1", dest, []byte("wire")))

	// drive the delivery rounds by hand: three failures back off, the
	// fourth attempt lands
	for i := 0; i < 20 && tr.sentCount() == 0; i++ {
		q.deliverDue()
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(tr.sentCount(), 1)
	assert.Equal(tr.calls, 4)

	n, err := q.PendingFor("ex-1")
	assert.NoError(err)
	assert.Equal(n, 0)

	// nothing left: more rounds deliver nothing
	q.deliverDue()
	assert.Equal(tr.sentCount(), 1)
}

func TestBackoff(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	utils.Settings.SetRetryBase(time.Second)
	utils.Settings.SetRetryCap(60 * time.Second)
	defer func() {
		utils.Settings.SetRetryBase(time.Millisecond)
		utils.Settings.SetRetryCap(20 * time.Millisecond)
	}()

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 32 * time.Second},
		{7, 60 * time.Second},
		{100, 60 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(backoff(tt.attempts), tt.want)
	}
}

func TestStagePromote(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	tr := &fakeTransport{}
	q := newQueue("stage", tr)

	item := &Item{
		ExchangeID:  "ex-2",
		Destination: dest,
		Wire:        []byte("wire"),
		NextState:   psm.StateName("responded"),
	}
	assert.NoError(q.Stage(item))
	assert.That(item.ID != "")

	// staged items must not go out before their transition commits
	q.deliverDue()
	assert.Equal(tr.sentCount(), 0)

	assert.NoError(q.Promote([]string{item.ID}))
	q.deliverDue()
	assert.Equal(tr.sentCount(), 1)
}

func TestCancelFor(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	tr := &fakeTransport{failCount: 1000}
	q := newQueue("cancel", tr)

	assert.NoError(q.Enqueue("ex-a", dest, []byte("wire-1")))
	assert.NoError(q.Enqueue("ex-a", dest, []byte("wire-2")))
	assert.NoError(q.Enqueue("ex-b", dest, []byte("wire-3")))

	assert.NoError(q.CancelFor("ex-a"))
	assert.NoError(q.CancelFor("ex-a")) // idempotent

	n, err := q.PendingFor("ex-a")
	assert.NoError(err)
	assert.Equal(n, 0)

	n, err = q.PendingFor("ex-b")
	assert.NoError(err)
	assert.Equal(n, 1)
}

// blockingTransport parks every send until released and then fails it.
type blockingTransport struct {
	started chan struct{}
	release chan struct{}

	l     sync.Mutex
	calls int
}

func (b *blockingTransport) Send(_ context.Context, _ service.Addr, _ []byte) error {
	b.l.Lock()
	b.calls++
	b.l.Unlock()

	b.started <- struct{}{}
	<-b.release
	return fmt.Errorf("%w: refused", comm.ErrTransport)
}

func (b *blockingTransport) callCount() int {
	b.l.Lock()
	defer b.l.Unlock()
	return b.calls
}

func TestCancelWhileSendInFlight(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	tr := &blockingTransport{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	q := newQueue("cancel-inflight", tr)

	assert.NoError(q.Enqueue("ex-c", dest, []byte("wire")))

	done := make(chan struct{})
	go func() {
		q.deliverDue()
		close(done)
	}()
	<-tr.started

	// the exchange is abandoned while the send is still on the wire: the
	// failing send must not write the item back afterwards
	assert.NoError(q.CancelFor("ex-c"))
	close(tr.release)
	<-done

	n, err := q.PendingFor("ex-c")
	assert.NoError(err)
	assert.Equal(n, 0)

	// and no retry rounds pick it up again
	q.deliverDue()
	assert.Equal(tr.callCount(), 1)
}

func TestRecover(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	tr := &fakeTransport{}
	q := newQueue("recover", tr)

	committed := &Item{
		ExchangeID:  "ex-committed",
		Destination: dest,
		Wire:        []byte("wire-1"),
		NextState:   psm.StateName("responded"),
	}
	assert.NoError(q.Stage(committed))

	rolledBack := &Item{
		ExchangeID:  "ex-rolled-back",
		Destination: dest,
		Wire:        []byte("wire-2"),
		NextState:   psm.StateName("responded"),
	}
	assert.NoError(q.Stage(rolledBack))

	// a "crash": nothing was promoted. The first exchange committed its
	// transition, the second never did.
	assert.NoError(q.Recover(func(exID string) (psm.StateName, error) {
		switch exID {
		case "ex-committed":
			return "responded", nil
		case "ex-rolled-back":
			return "invitation-sent", nil
		}
		return "", errors.New("unknown exchange")
	}))

	n, err := q.PendingFor("ex-committed")
	assert.NoError(err)
	assert.Equal(n, 1)

	n, err = q.PendingFor("ex-rolled-back")
	assert.NoError(err)
	assert.Equal(n, 0)

	q.deliverDue()
	assert.Equal(tr.sentCount(), 1)
}

func TestWorkersAndShutdown(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	tr := &fakeTransport{}
	q := newQueue("workers", tr)
	q.Start(2)

	assert.NoError(q.Enqueue("ex-3", dest, []byte("wire")))

	deadline := time.Now().Add(3 * time.Second)
	for tr.sentCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(tr.sentCount(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(q.Shutdown(ctx))

	// a draining queue accepts no new work
	err := q.Enqueue("ex-4", dest, []byte("wire"))
	assert.That(errors.Is(err, comm.ErrTransport))
}
