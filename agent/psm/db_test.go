package psm

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/findy-network/findy-common-go/crypto/db"
	"github.com/lainio/err2"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

const (
	dbPath = "db_test.bolt"
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

	// We don't want logs on file with tests
	try.To(flag.Set("logtostderr", "true"))

	try.To(Open(dbPath))
}

func tearDown() {
	db.Close()

	os.Remove(dbPath)
	os.Remove(dbPath + "_backup")
}

func TestCreateExchange(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ex, err := CreateExchange("create-1", "trust_ping", "1.0",
		Initiator, "conn-1", "ping-sent")
	assert.NoError(err)
	assert.Equal(ex.Current(), StateName("ping-sent"))
	assert.That(ex.CreatedAt > 0)

	got, err := GetExchange("create-1")
	assert.NoError(err)
	assert.Equal(got.Protocol, "trust_ping")
	assert.Equal(got.Version, "1.0")
	assert.Equal(got.Role, Initiator)
	assert.Equal(got.ConnectionID, "conn-1")
	assert.Equal(got.Current(), StateName("ping-sent"))

	// the ID is taken now
	_, err = CreateExchange("create-1", "trust_ping", "1.0",
		Initiator, "conn-1", "ping-sent")
	assert.Error(err)
}

func TestGetExchangeNotFound(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	_, err := GetExchange("no-such-exchange")
	assert.That(errors.Is(err, ErrNotFound))
}

func TestTransition(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	_, err := CreateExchange("trans-1", "trust_ping", "1.0",
		Responder, "conn-1", "waiting-ping")
	assert.NoError(err)

	var seen StateName
	ex, err := Transition("trans-1", "waiting-ping", "ping-received",
		"type-str", "msg-1",
		func(ex *Exchange) error {
			// the commit callback runs with the transition applied
			seen = ex.Current()
			return nil
		})
	assert.NoError(err)
	assert.Equal(seen, StateName("ping-received"))
	assert.Equal(ex.Current(), StateName("ping-received"))
	assert.That(ex.Consumed("msg-1"))
	assert.That(!ex.Consumed("msg-2"))
	assert.That(!ex.Consumed(""))
}

func TestTransitionStateConflict(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	_, err := CreateExchange("conflict-1", "trust_ping", "1.0",
		Responder, "conn-1", "waiting-ping")
	assert.NoError(err)

	_, err = Transition("conflict-1", "ping-received", "complete",
		"", "", nil)
	assert.That(errors.Is(err, ErrStateConflict))

	// losing the race leaves the record untouched
	ex, err := GetExchange("conflict-1")
	assert.NoError(err)
	assert.Equal(ex.Current(), StateName("waiting-ping"))
	assert.Equal(len(ex.States), 1)
}

func TestTransitionCommitRollback(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	_, err := CreateExchange("rollback-1", "trust_ping", "1.0",
		Responder, "conn-1", "waiting-ping")
	assert.NoError(err)

	_, err = Transition("rollback-1", "waiting-ping", "ping-received",
		"type-str", "msg-1",
		func(ex *Exchange) error {
			return errors.New("handler failed")
		})
	assert.Error(err)

	// a failed commit must not persist the transition
	ex, err := GetExchange("rollback-1")
	assert.NoError(err)
	assert.Equal(ex.Current(), StateName("waiting-ping"))
	assert.That(!ex.Consumed("msg-1"))
}

func TestTransitionRace(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	_, err := CreateExchange("race-1", "trust_ping", "1.0",
		Responder, "conn-1", "waiting-ping")
	assert.NoError(err)

	const racers = 8
	var (
		wg        sync.WaitGroup
		l         sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Transition("race-1", "waiting-ping", "ping-received",
				"", "", nil)

			l.Lock()
			defer l.Unlock()
			if err == nil {
				wins++
			} else if errors.Is(err, ErrStateConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	// optimistic concurrency: exactly one racer advances the exchange
	assert.Equal(wins, 1)
	assert.Equal(conflicts, racers-1)

	ex, err := GetExchange("race-1")
	assert.NoError(err)
	assert.Equal(ex.Current(), StateName("ping-received"))
	assert.Equal(len(ex.States), 2)
}

func TestAbandon(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	_, err := CreateExchange("abandon-1", "trust_ping", "1.0",
		Responder, "conn-1", "waiting-ping")
	assert.NoError(err)

	ex, err := Abandon("abandon-1")
	assert.NoError(err)
	assert.That(ex.IsAbandoned())

	// idempotent: no second state event is appended
	ex, err = Abandon("abandon-1")
	assert.NoError(err)
	assert.Equal(len(ex.States), 2)

	// an abandoned exchange loses every transition
	_, err = Transition("abandon-1", "waiting-ping", "ping-received",
		"", "", nil)
	assert.That(errors.Is(err, ErrStateConflict))
}

func TestEachExchange(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	_, err := CreateExchange("each-1", "basic_message", "1.0",
		Initiator, "conn-each", "message-sent")
	assert.NoError(err)
	_, err = CreateExchange("each-2", "basic_message", "1.0",
		Initiator, "conn-each", "message-sent")
	assert.NoError(err)

	count := 0
	assert.NoError(EachExchange(
		func(ex *Exchange) bool { return ex.ConnectionID == "conn-each" },
		func(ex *Exchange) error {
			count++
			return nil
		}))
	assert.Equal(count, 2)

	// restartable: a new call walks the records again
	count = 0
	assert.NoError(EachExchange(
		func(ex *Exchange) bool { return ex.ConnectionID == "conn-each" },
		func(ex *Exchange) error {
			count++
			return nil
		}))
	assert.Equal(count, 2)

	// an error from the consumer stops the walk
	count = 0
	err = EachExchange(
		func(ex *Exchange) bool { return ex.ConnectionID == "conn-each" },
		func(ex *Exchange) error {
			count++
			return errors.New("enough")
		})
	assert.Error(err)
	assert.Equal(count, 1)
}

func TestRmTerminal(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	_, err := CreateExchange("gc-done", "trust_ping", "1.0",
		Responder, "conn-1", "complete")
	assert.NoError(err)
	_, err = CreateExchange("gc-live", "trust_ping", "1.0",
		Responder, "conn-1", "waiting-ping")
	assert.NoError(err)

	n, err := RmTerminal(func(ex *Exchange) bool {
		return ex.Current() == "complete"
	})
	assert.NoError(err)
	assert.Equal(n, 1)

	_, err = GetExchange("gc-done")
	assert.That(errors.Is(err, ErrNotFound))

	ex, err := GetExchange("gc-live")
	assert.NoError(err)
	assert.Equal(ex.Current(), StateName("waiting-ping"))
}
