package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/airchains-network/zk-coprocessor/batch"
	"github.com/airchains-network/zk-coprocessor/batch/da"
	"github.com/airchains-network/zk-coprocessor/chains"
	"github.com/airchains-network/zk-coprocessor/db"
	"github.com/airchains-network/zk-coprocessor/internal/pool"
	"github.com/airchains-network/zk-coprocessor/journal"
	"github.com/airchains-network/zk-coprocessor/orchestrator"
	"github.com/airchains-network/zk-coprocessor/prover"
	"github.com/airchains-network/zk-coprocessor/state"
	"github.com/airchains-network/zk-coprocessor/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type stubBackend struct {
	market bool
}

func (b *stubBackend) Name() string {
	if b.market {
		return "boundless"
	}
	return "exec"
}

func (b *stubBackend) Prove(ctx context.Context, req *prover.ProveRequest) (prover.Result, error) {
	entries := make([]journal.Entry, len(req.Obligations))
	for i, o := range req.Obligations {
		e, err := journal.NewEntry(o, nil, nil)
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	data, err := journal.EncodeEntries(entries)
	if err != nil {
		return nil, err
	}
	if b.market {
		return &prover.MarketResult{Journal: data, Seal: []byte{0xaa}, RequestID: common.HexToHash("0x01")}, nil
	}
	return &prover.ExecResult{Journal: data, SegmentCycles: []uint32{100}}, nil
}

// blockingBackend holds every request until release is closed.
type blockingBackend struct {
	stubBackend
	release chan struct{}
}

func (b *blockingBackend) Prove(ctx context.Context, req *prover.ProveRequest) (prover.Result, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.stubBackend.Prove(ctx, req)
}

// shortBackend returns a journal missing its last entry.
type shortBackend struct {
	stubBackend
}

func (b *shortBackend) Prove(ctx context.Context, req *prover.ProveRequest) (prover.Result, error) {
	return b.stubBackend.Prove(ctx, &prover.ProveRequest{Obligations: req.Obligations[:len(req.Obligations)-1]})
}

type recordingDA struct {
	published chan []byte
}

func (r *recordingDA) Name() string { return "recording" }

func (r *recordingDA) SubmitToDA(ctx context.Context, data []byte) (*da.Publication, error) {
	r.published <- data
	return &da.Publication{Layer: "recording", Height: 1, Commitment: "ff"}, nil
}

type testEnv struct {
	server  *Server
	tracker *state.Tracker
	da      *recordingDA
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, &stubBackend{}, &stubBackend{market: true}, 2, 8)
}

func newTestEnvWith(t *testing.T, exec, market prover.Backend, workers, queue int) *testEnv {
	t.Helper()
	store, err := db.NewMemLevelDB()
	if err != nil {
		t.Fatalf("NewMemLevelDB: %v", err)
	}
	log := testLogger()
	tracker := state.NewTracker(store, log)
	orch := orchestrator.New(exec, market,
		orchestrator.WithTracker(tracker), orchestrator.WithLogger(log))

	jobs := pool.NewJobPool(workers, queue, log)
	jobs.Start(context.Background())
	rec := &recordingDA{published: make(chan []byte, 1)}
	t.Cleanup(func() {
		jobs.Stop()
		store.Close()
	})

	return &testEnv{
		server:  NewServer(orch, tracker, jobs, rec, log),
		tracker: tracker,
		da:      rec,
	}
}

func validBatch() types.ProofBatchRequest {
	return types.ProofBatchRequest{
		Sources: []types.SourceChainGroup{
			{
				ChainID:     chains.LineaChainID,
				Users:       []types.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02")},
				Assets:      []types.Address{common.HexToAddress("0xaa"), common.HexToAddress("0xaa")},
				DstChainIDs: []uint64{chains.OptimismChainID, chains.OptimismChainID},
			},
			{
				ChainID:     chains.BaseChainID,
				Users:       []types.Address{common.HexToAddress("0x03")},
				Assets:      []types.Address{common.HexToAddress("0xbb")},
				DstChainIDs: []uint64{chains.LineaChainID},
			},
		},
		L1Inclusion: true,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) waitTerminal(t *testing.T, id string) *state.Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := e.tracker.Get(id)
		if err == nil && rec.Stage.Terminal() {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("request %s did not finish", id)
	return nil
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSubmitExec(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/proofs/exec", validBatch())
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	var accepted AcceptedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if accepted.Obligations != 3 {
		t.Fatalf("obligations = %d, want 3", accepted.Obligations)
	}

	rec := env.waitTerminal(t, accepted.ID)
	if rec.Stage != state.StageCompleted || rec.TotalCycles != 100 {
		t.Fatalf("record = %+v", rec)
	}
	if _, err := orchestrator.DecodeAndVerify(rec.Journal, batch.Flatten(validBatch())); err != nil {
		t.Fatalf("DecodeAndVerify: %v", err)
	}

	w = env.do(t, http.MethodGet, "/v1/proofs/"+accepted.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/v1/proofs", nil)
	var records []state.Record
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil || len(records) != 1 {
		t.Fatalf("list = %s, %v", w.Body, err)
	}
}

func TestSubmitMarketPublishes(t *testing.T) {
	env := newTestEnv(t)

	body := MarketProofRequest{ProofBatchRequest: validBatch(), Onchain: true}
	w := env.do(t, http.MethodPost, "/v1/proofs/market", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	var accepted AcceptedResponse
	json.Unmarshal(w.Body.Bytes(), &accepted)

	select {
	case data := <-env.da.published:
		var payload da.ProofPayload
		if err := json.Unmarshal(data, &payload); err != nil || payload.RequestID != accepted.ID {
			t.Fatalf("payload = %s, %v", data, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("proof was not published")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, _ := env.tracker.Get(accepted.ID)
		if rec != nil && rec.Publication != "" {
			if !rec.Onchain || len(rec.Seal) == 0 {
				t.Fatalf("record = %+v", rec)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("publication not recorded")
}

func TestSubmitRejectsInvalidBatch(t *testing.T) {
	env := newTestEnv(t)

	req := validBatch()
	req.Sources[1].ChainID = chains.EthereumChainID
	w := env.do(t, http.MethodPost, "/v1/proofs/exec", req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error != batch.L1InclusionUnsupportedMsg {
		t.Fatalf("error = %q", resp.Error)
	}

	w = env.do(t, http.MethodPost, "/v1/proofs/market", "not an object")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", w.Code)
	}

	records, _ := env.tracker.List()
	if len(records) != 0 {
		t.Fatalf("rejected requests were tracked: %d", len(records))
	}
}

func (e *testEnv) waitStage(t *testing.T, id string, stage state.Stage) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec, err := e.tracker.Get(id); err == nil && rec.Stage == stage {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("request %s never reached %s", id, stage)
}

func TestQueuedRequestIsVisible(t *testing.T) {
	exec := &blockingBackend{release: make(chan struct{})}
	env := newTestEnvWith(t, exec, &stubBackend{market: true}, 1, 1)
	released := false
	release := func() {
		if !released {
			released = true
			close(exec.release)
		}
	}
	t.Cleanup(release)

	post := func() (int, string) {
		w := env.do(t, http.MethodPost, "/v1/proofs/exec", validBatch())
		var resp struct {
			ID string `json:"id"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		return w.Code, resp.ID
	}

	code, running := post()
	if code != http.StatusAccepted {
		t.Fatalf("first status = %d", code)
	}
	env.waitStage(t, running, state.StageSubmitted)

	code, queued := post()
	if code != http.StatusAccepted {
		t.Fatalf("second status = %d", code)
	}
	w := env.do(t, http.MethodGet, "/v1/proofs/"+queued, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("queued request: GET status = %d body = %s", w.Code, w.Body)
	}
	var rec state.Record
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if rec.Stage != state.StageAccepted || rec.Backend != "exec" {
		t.Fatalf("queued record = %+v", rec)
	}

	code, rejected := post()
	if code != http.StatusServiceUnavailable || rejected == "" {
		t.Fatalf("third status = %d id = %q", code, rejected)
	}
	if rec, err := env.tracker.Get(rejected); err != nil || rec.Stage != state.StageFailed {
		t.Fatalf("rejected record = %+v, %v", rec, err)
	}

	release()
	if rec := env.waitTerminal(t, queued); rec.Stage != state.StageCompleted {
		t.Fatalf("queued request finished as %s", rec.Stage)
	}
}

func TestMarketJournalMismatchNotPublished(t *testing.T) {
	env := newTestEnvWith(t, &stubBackend{}, &shortBackend{stubBackend{market: true}}, 1, 4)

	w := env.do(t, http.MethodPost, "/v1/proofs/market", MarketProofRequest{ProofBatchRequest: validBatch()})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	var accepted AcceptedResponse
	json.Unmarshal(w.Body.Bytes(), &accepted)

	rec := env.waitTerminal(t, accepted.ID)
	if rec.Stage != state.StageFailed || !strings.Contains(rec.Error, "count mismatch") {
		t.Fatalf("record = %+v", rec)
	}
	if len(rec.Journal) != 0 || rec.Publication != "" {
		t.Fatalf("mismatched journal was kept: %+v", rec)
	}
	select {
	case <-env.da.published:
		t.Fatal("mismatched proof was published")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGetProofNotFound(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodGet, "/v1/proofs/missing", nil); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestWebSocketStreamsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// the subscription is registered by the handler after the upgrade
	time.Sleep(20 * time.Millisecond)

	data, _ := json.Marshal(validBatch())
	resp, err := http.Post(srv.URL+"/v1/proofs/exec", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var stages []state.Stage
	for {
		var ev state.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("ReadJSON after %v: %v", stages, err)
		}
		stages = append(stages, ev.Stage)
		if ev.Stage.Terminal() {
			break
		}
	}
	if stages[0] != state.StageAccepted || stages[len(stages)-1] != state.StageCompleted || len(stages) != 5 {
		t.Fatalf("stages = %v", stages)
	}
}
