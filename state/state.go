package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/airchains-network/zk-coprocessor/db"
	"github.com/airchains-network/zk-coprocessor/prover"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

const (
	requestPrefix = "request_"

	subscriberBuffer = 64
)

// Stage is a point in the request lifecycle. Completed and Failed are terminal.
type Stage string

const (
	StageAccepted  Stage = "accepted"
	StageValidated Stage = "validated"
	StageFlattened Stage = "flattened"
	StageSubmitted Stage = "submitted"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

var ErrNotFound = errors.New("request not found")

// Record is the persisted view of one orchestration request.
type Record struct {
	ID              string        `json:"id"`
	Backend         string        `json:"backend"`
	Stage           Stage         `json:"stage"`
	Obligations     int           `json:"obligations"`
	Onchain         bool          `json:"onchain,omitempty"`
	Journal         hexutil.Bytes `json:"journal,omitempty"`
	Seal            hexutil.Bytes `json:"seal,omitempty"`
	SegmentCycles   []uint32      `json:"segment_cycles,omitempty"`
	TotalCycles     uint64        `json:"total_cycles,omitempty"`
	MarketRequestID *common.Hash  `json:"market_request_id,omitempty"`
	AnchorTx        *common.Hash  `json:"anchor_tx,omitempty"`
	Publication     string        `json:"publication,omitempty"`
	Error           string        `json:"error,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Update reports progress of a request. Zero fields leave the record as is.
type Update struct {
	ID          string
	Backend     string
	Stage       Stage
	Obligations int
	Onchain     bool
	Result      prover.Result
	Err         error
}

// Event is broadcast to subscribers on every stage change.
type Event struct {
	ID      string    `json:"id"`
	Backend string    `json:"backend"`
	Stage   Stage     `json:"stage"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// Tracker persists request records and fans lifecycle events out to
// subscribers.
type Tracker struct {
	db  db.DB
	log *logrus.Logger

	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

func NewTracker(store db.DB, log *logrus.Logger) *Tracker {
	if log == nil {
		log = logrus.New()
	}
	return &Tracker{
		db:          store,
		log:         log,
		subscribers: make(map[chan Event]struct{}),
	}
}

// Track applies u to the stored record. Storage failures are logged and never
// reach the caller.
func (t *Tracker) Track(u Update) {
	t.mu.Lock()
	rec, err := t.apply(u)
	t.mu.Unlock()
	if err != nil {
		t.log.Warnf("Failed to record %s for request %s: %v", u.Stage, u.ID, err)
		return
	}
	t.log.Debugf("Request %s (%s) is %s", rec.ID, rec.Backend, rec.Stage)
	t.publish(Event{ID: rec.ID, Backend: rec.Backend, Stage: rec.Stage, Error: rec.Error, Time: rec.UpdatedAt})
}

func (t *Tracker) apply(u Update) (*Record, error) {
	rec, err := t.get(u.ID)
	if errors.Is(err, ErrNotFound) {
		rec = &Record{ID: u.ID, CreatedAt: time.Now().UTC()}
	} else if err != nil {
		return nil, err
	}

	if u.Backend != "" {
		rec.Backend = u.Backend
	}
	if u.Stage != "" {
		rec.Stage = u.Stage
	}
	if u.Obligations > 0 {
		rec.Obligations = u.Obligations
	}
	if u.Onchain {
		rec.Onchain = true
	}
	if u.Err != nil {
		rec.Error = u.Err.Error()
		var perr *prover.ProofError
		if errors.As(u.Err, &perr) && perr.AnchorTx != nil {
			rec.AnchorTx = perr.AnchorTx
		}
	}
	switch res := u.Result.(type) {
	case *prover.ExecResult:
		rec.Journal = res.Journal
		rec.SegmentCycles = res.SegmentCycles
		rec.TotalCycles = res.TotalCycles()
	case *prover.MarketResult:
		rec.Journal = res.Journal
		rec.Seal = res.Seal
		id := res.RequestID
		rec.MarketRequestID = &id
		rec.AnchorTx = res.AnchorTx
	}
	rec.UpdatedAt = time.Now().UTC()

	if err := t.put(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SetPublication records where a completed proof was published.
func (t *Tracker) SetPublication(id, ref string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, err := t.get(id)
	if err != nil {
		return err
	}
	rec.Publication = ref
	rec.UpdatedAt = time.Now().UTC()
	return t.put(rec)
}

func (t *Tracker) Get(id string) (*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(id)
}

// List returns all records in key order.
func (t *Tracker) List() ([]*Record, error) {
	var records []*Record
	err := t.db.Iterate([]byte(requestPrefix), func(_, value []byte) error {
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("failed to decode request record: %w", err)
		}
		records = append(records, &rec)
		return nil
	})
	return records, err
}

// FailInterrupted marks every non-terminal record as failed. Requests are
// never resumed after a restart.
func (t *Tracker) FailInterrupted() (int, error) {
	records, err := t.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range records {
		if rec.Stage.Terminal() {
			continue
		}
		t.Track(Update{ID: rec.ID, Stage: StageFailed, Err: errors.New("interrupted by restart")})
		n++
	}
	if n > 0 {
		t.log.Warnf("Marked %d interrupted requests as failed", n)
	}
	return n, nil
}

// Subscribe returns a channel of lifecycle events and a function that
// releases it. Slow subscribers miss events instead of blocking the tracker.
func (t *Tracker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	t.mu.Lock()
	t.subscribers[ch] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subscribers, ch)
			t.mu.Unlock()
			close(ch)
		})
	}
}

func (t *Tracker) publish(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for ch := range t.subscribers {
		select {
		case ch <- ev:
		default:
			t.log.Warnf("Dropping event %s/%s for slow subscriber", ev.ID, ev.Stage)
		}
	}
}

func (t *Tracker) get(id string) (*Record, error) {
	data, err := t.db.Get([]byte(requestPrefix + id))
	if err != nil {
		return nil, fmt.Errorf("failed to read request %s: %w", id, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode request %s: %w", id, err)
	}
	return &rec, nil
}

func (t *Tracker) put(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode request %s: %w", rec.ID, err)
	}
	return t.db.Put([]byte(requestPrefix+rec.ID), data)
}
