package state

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/airchains-network/zk-coprocessor/db"
	"github.com/airchains-network/zk-coprocessor/prover"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	store, err := db.NewMemLevelDB()
	if err != nil {
		t.Fatalf("NewMemLevelDB: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewTracker(store, log)
}

func TestTrackLifecycle(t *testing.T) {
	tr := newTracker(t)

	tr.Track(Update{ID: "r1", Backend: "boundless", Stage: StageAccepted, Onchain: true})
	tr.Track(Update{ID: "r1", Stage: StageValidated})
	tr.Track(Update{ID: "r1", Stage: StageFlattened, Obligations: 3})
	tr.Track(Update{ID: "r1", Stage: StageSubmitted})

	anchor := common.HexToHash("0xbeef")
	tr.Track(Update{ID: "r1", Stage: StageCompleted, Result: &prover.MarketResult{
		Journal:   []byte{1, 2},
		Seal:      []byte{3},
		RequestID: common.HexToHash("0x01"),
		AnchorTx:  &anchor,
	}})

	rec, err := tr.Get("r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Stage != StageCompleted || rec.Backend != "boundless" || rec.Obligations != 3 || !rec.Onchain {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Seal) != 1 || rec.AnchorTx == nil || *rec.AnchorTx != anchor {
		t.Fatalf("market result not recorded: %+v", rec)
	}
	if rec.MarketRequestID == nil || *rec.MarketRequestID != common.HexToHash("0x01") {
		t.Fatalf("market request id = %v", rec.MarketRequestID)
	}
}

func TestTrackFailureKeepsAnchorTx(t *testing.T) {
	tr := newTracker(t)
	anchor := common.HexToHash("0xbeef")
	tr.Track(Update{ID: "r2", Backend: "boundless", Stage: StageAccepted, Onchain: true})
	tr.Track(Update{ID: "r2", Stage: StageFailed, Err: &prover.ProofError{
		Backend:  "boundless",
		Err:      prover.ErrBackendTimeout,
		AnchorTx: &anchor,
	}})

	rec, err := tr.Get("r2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Stage != StageFailed || rec.AnchorTx == nil || *rec.AnchorTx != anchor {
		t.Fatalf("record = %+v", rec)
	}
}

func TestTrackExecResult(t *testing.T) {
	tr := newTracker(t)
	tr.Track(Update{ID: "e1", Backend: "exec", Stage: StageCompleted, Result: &prover.ExecResult{
		Journal:       []byte{1},
		SegmentCycles: []uint32{10, 20},
	}})
	rec, err := tr.Get("e1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.TotalCycles != 30 || len(rec.SegmentCycles) != 2 {
		t.Fatalf("cycles not recorded: %+v", rec)
	}
}

func TestGetMissing(t *testing.T) {
	tr := newTracker(t)
	if _, err := tr.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFailInterrupted(t *testing.T) {
	tr := newTracker(t)
	tr.Track(Update{ID: "a", Backend: "exec", Stage: StageSubmitted})
	tr.Track(Update{ID: "b", Backend: "exec", Stage: StageCompleted})
	tr.Track(Update{ID: "c", Backend: "exec", Stage: StageFailed, Err: errors.New("boom")})

	n, err := tr.FailInterrupted()
	if err != nil {
		t.Fatalf("FailInterrupted: %v", err)
	}
	if n != 1 {
		t.Fatalf("interrupted = %d, want 1", n)
	}
	rec, _ := tr.Get("a")
	if rec.Stage != StageFailed || rec.Error == "" {
		t.Fatalf("record a = %+v", rec)
	}
	rec, _ = tr.Get("c")
	if rec.Error != "boom" {
		t.Fatalf("terminal record rewritten: %+v", rec)
	}

	records, err := tr.List()
	if err != nil || len(records) != 3 {
		t.Fatalf("List = %d records, %v", len(records), err)
	}
}

func TestSubscribe(t *testing.T) {
	tr := newTracker(t)
	events, cancel := tr.Subscribe()

	tr.Track(Update{ID: "s1", Backend: "exec", Stage: StageValidated})
	select {
	case ev := <-events:
		if ev.ID != "s1" || ev.Stage != StageValidated {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	cancel()
	cancel()
	if _, ok := <-events; ok {
		t.Fatal("channel still open after cancel")
	}
	tr.Track(Update{ID: "s1", Stage: StageCompleted})
}

func TestSetPublication(t *testing.T) {
	tr := newTracker(t)
	if err := tr.SetPublication("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	tr.Track(Update{ID: "p1", Backend: "boundless", Stage: StageCompleted})
	if err := tr.SetPublication("p1", "celestia:42"); err != nil {
		t.Fatalf("SetPublication: %v", err)
	}
	rec, _ := tr.Get("p1")
	if rec.Publication != "celestia:42" {
		t.Fatalf("publication = %q", rec.Publication)
	}
}
