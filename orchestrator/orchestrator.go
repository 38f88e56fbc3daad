package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/airchains-network/zk-coprocessor/batch"
	"github.com/airchains-network/zk-coprocessor/prover"
	"github.com/airchains-network/zk-coprocessor/state"
	"github.com/airchains-network/zk-coprocessor/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Tracker receives lifecycle updates. *state.Tracker implements it.
type Tracker interface {
	Track(u state.Update)
}

type nopTracker struct{}

func (nopTracker) Track(state.Update) {}

// Orchestrator drives a batch through validation, flattening and exactly one
// backend call, and only completes a request whose journal matches the
// flattened obligations. It keeps no per-request state between calls and never
// retries a backend.
type Orchestrator struct {
	exec    prover.Backend
	market  prover.Backend
	tracker Tracker
	log     *logrus.Logger
}

type Option func(*Orchestrator)

func WithTracker(t Tracker) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracker = t
		}
	}
}

func WithLogger(log *logrus.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// New creates an Orchestrator. Either backend may be nil; requests routed to
// a missing backend fail with prover.ErrBackendUnavailable.
func New(exec, market prover.Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		exec:    exec,
		market:  market,
		tracker: nopTracker{},
		log:     logrus.New(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewRequestID returns an id for callers that want to follow a request
// before it starts, as the API does.
func NewRequestID() string {
	return uuid.NewString()
}

// Accept records a new request before any work is done on it, so it can be
// looked up while it waits for a worker. The ExecuteXWithID methods continue
// a request registered here.
func (o *Orchestrator) Accept(id string, market, onchain bool) {
	backend := o.exec
	if market {
		backend = o.market
	}
	o.tracker.Track(state.Update{ID: id, Backend: backendName(backend), Stage: state.StageAccepted, Onchain: onchain})
}

// Abandon fails an accepted request that will never run.
func (o *Orchestrator) Abandon(id string, err error) {
	o.fail(id, err)
}

// ExecuteLocal runs the whole batch on the execution backend and returns the
// journal with per-segment cycle counts.
func (o *Orchestrator) ExecuteLocal(ctx context.Context, req types.ProofBatchRequest) (*prover.ExecResult, error) {
	id := NewRequestID()
	o.Accept(id, false, false)
	return o.ExecuteLocalWithID(ctx, id, req)
}

func (o *Orchestrator) ExecuteLocalWithID(ctx context.Context, id string, req types.ProofBatchRequest) (*prover.ExecResult, error) {
	res, obligations, err := o.run(ctx, id, o.exec, req, false)
	if err != nil {
		return nil, err
	}
	execRes, ok := res.(*prover.ExecResult)
	if !ok {
		return nil, o.fail(id, fmt.Errorf("%w: exec backend returned %T", prover.ErrMalformedResponse, res))
	}
	if err := o.complete(id, execRes, obligations); err != nil {
		return nil, err
	}
	return execRes, nil
}

// ExecuteMarket submits the whole batch to the proving market. submitOnchain
// selects the submission channel and nothing else.
func (o *Orchestrator) ExecuteMarket(ctx context.Context, req types.ProofBatchRequest, submitOnchain bool) (*prover.MarketResult, error) {
	id := NewRequestID()
	o.Accept(id, true, submitOnchain)
	return o.ExecuteMarketWithID(ctx, id, req, submitOnchain)
}

func (o *Orchestrator) ExecuteMarketWithID(ctx context.Context, id string, req types.ProofBatchRequest, submitOnchain bool) (*prover.MarketResult, error) {
	res, obligations, err := o.run(ctx, id, o.market, req, submitOnchain)
	if err != nil {
		return nil, err
	}
	marketRes, ok := res.(*prover.MarketResult)
	if !ok {
		return nil, o.fail(id, fmt.Errorf("%w: market backend returned %T", prover.ErrMalformedResponse, res))
	}
	if err := o.complete(id, marketRes, obligations); err != nil {
		return nil, err
	}
	return marketRes, nil
}

func (o *Orchestrator) run(ctx context.Context, id string, backend prover.Backend, req types.ProofBatchRequest, onchain bool) (prover.Result, []types.ProofObligation, error) {
	name := backendName(backend)

	if err := batch.Validate(req); err != nil {
		o.log.Warnf("Request %s rejected: %v", id, err)
		return nil, nil, o.fail(id, err)
	}
	o.tracker.Track(state.Update{ID: id, Stage: state.StageValidated})

	obligations := batch.Flatten(req)
	o.tracker.Track(state.Update{ID: id, Stage: state.StageFlattened, Obligations: len(obligations)})

	if backend == nil {
		return nil, nil, o.fail(id, &prover.ProofError{Backend: name, Err: prover.ErrBackendUnavailable})
	}

	o.log.Infof("Request %s: proving %d obligations from %d source chains with %s", id, len(obligations), len(req.Sources), name)
	o.tracker.Track(state.Update{ID: id, Stage: state.StageSubmitted})
	res, err := backend.Prove(ctx, &prover.ProveRequest{
		Obligations: obligations,
		L1Inclusion: req.L1Inclusion,
		Fallback:    req.Fallback,
		Onchain:     onchain,
	})
	if err != nil {
		o.log.Warnf("Request %s failed on %s: %v", id, name, err)
		return nil, nil, o.fail(id, err)
	}
	return res, obligations, nil
}

func backendName(b prover.Backend) string {
	if b == nil {
		return "unconfigured"
	}
	return b.Name()
}

func (o *Orchestrator) fail(id string, err error) error {
	o.tracker.Track(state.Update{ID: id, Stage: state.StageFailed, Err: err})
	return err
}

// complete checks the journal against the obligations it was proven for
// before recording the result. A mismatch fails the request.
func (o *Orchestrator) complete(id string, res prover.Result, obligations []types.ProofObligation) error {
	if _, err := Verify(res, obligations); err != nil {
		o.log.Warnf("Request %s returned a journal that does not match its obligations: %v", id, err)
		return o.fail(id, err)
	}
	o.tracker.Track(state.Update{ID: id, Stage: state.StageCompleted, Result: res})
	o.log.Infof("Request %s completed with a %d byte journal", id, len(res.JournalBytes()))
	return nil
}

// IsValidationError reports whether err was caused by the batch itself
// rather than by a backend.
func IsValidationError(err error) bool {
	var verr *batch.ValidationError
	return errors.As(err, &verr)
}
