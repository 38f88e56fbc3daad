package prover

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	ptypes "github.com/airchains-network/zk-coprocessor/prover/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

const (
	boundlessBackendName = "boundless"
	defaultPollInterval  = 5 * time.Second
)

// Anchorer publishes a market request in an on-chain transaction and returns
// the transaction hash once it is mined.
type Anchorer interface {
	SubmitRequest(ctx context.Context, requestID, imageID common.Hash, input []byte) (common.Hash, error)
}

// BoundlessClient submits proof requests to the boundless proving market
// and waits for them to be fulfilled.
type BoundlessClient struct {
	client       *Client
	imageID      common.Hash
	anchorer     Anchorer
	pollInterval time.Duration
	log          *logrus.Logger
}

var _ Backend = (*BoundlessClient)(nil)

type BoundlessOption func(*BoundlessClient)

// WithAnchorer enables on-chain submission.
func WithAnchorer(a Anchorer) BoundlessOption {
	return func(b *BoundlessClient) { b.anchorer = a }
}

func WithPollInterval(d time.Duration) BoundlessOption {
	return func(b *BoundlessClient) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

func NewBoundlessClient(endpoint string, imageID common.Hash, timeout time.Duration, log *logrus.Logger, opts ...BoundlessOption) *BoundlessClient {
	c := NewClient(endpoint, timeout, log)
	b := &BoundlessClient{
		client:       c,
		imageID:      imageID,
		pollInterval: defaultPollInterval,
		log:          c.log,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BoundlessClient) Name() string { return boundlessBackendName }

// Prove submits one market request for the whole obligation sequence. Every
// call is a distinct proving event with a fresh request id.
//
// On-chain anchoring is at most once. A context cancelled before the
// transaction is sent aborts cleanly. Once anchoring starts, the transaction
// and the market registration run to completion regardless of ctx; ctx then
// only governs the wait for fulfilment. Errors after anchoring carry the
// anchor tx hash.
func (b *BoundlessClient) Prove(ctx context.Context, req *ProveRequest) (Result, error) {
	if req.Onchain && b.anchorer == nil {
		return nil, &ProofError{Backend: boundlessBackendName, Err: fmt.Errorf("%w: no on-chain anchorer", ErrBackendUnavailable)}
	}

	input, err := encodeGuestInput(req)
	if err != nil {
		return nil, &ProofError{Backend: boundlessBackendName, Err: err}
	}
	requestID, err := newRequestID(input)
	if err != nil {
		return nil, &ProofError{Backend: boundlessBackendName, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("boundless request cancelled before submission: %w", err)
	}

	submission := ptypes.MarketRequest{
		RequestID: requestID,
		ImageID:   b.imageID,
		Input:     input,
		Onchain:   req.Onchain,
	}
	submitCtx := ctx
	if req.Onchain {
		txHash, err := b.anchorer.SubmitRequest(context.WithoutCancel(ctx), requestID, b.imageID, input)
		if err != nil {
			return nil, &ProofError{Backend: boundlessBackendName, Err: fmt.Errorf("%w: anchor request: %v", ErrBackendSubmission, err)}
		}
		b.log.Infof("Anchored boundless request %s in tx %s", requestID.Hex(), txHash.Hex())
		submission.AnchorTx = &txHash
		// the market must learn about a paid request even if the caller is gone
		submitCtx = context.WithoutCancel(ctx)
	}

	var submitted ptypes.SubmitResponse
	if err := b.client.call(submitCtx, http.MethodPost, "/v1/requests", submission, &submitted); err != nil {
		return nil, &ProofError{Backend: boundlessBackendName, Err: err, AnchorTx: submission.AnchorTx}
	}
	if !submitted.Success {
		return nil, &ProofError{Backend: boundlessBackendName, Err: fmt.Errorf("%w: %s", ErrBackendSubmission, submitted.Message), AnchorTx: submission.AnchorTx}
	}
	b.log.Infof("Submitted boundless request %s with %d obligations (onchain=%v)", requestID.Hex(), len(req.Obligations), req.Onchain)

	status, err := b.wait(ctx, requestID)
	if err != nil {
		return nil, &ProofError{Backend: boundlessBackendName, Err: err, AnchorTx: submission.AnchorTx}
	}
	return &MarketResult{
		Journal:   status.Journal,
		Seal:      status.Seal,
		RequestID: requestID,
		AnchorTx:  submission.AnchorTx,
	}, nil
}

// wait polls the market until the request reaches a terminal status.
func (b *BoundlessClient) wait(ctx context.Context, requestID common.Hash) (*ptypes.StatusResponse, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	path := "/v1/requests/" + requestID.Hex()
	for {
		var status ptypes.StatusResponse
		if err := b.client.call(ctx, http.MethodGet, path, nil, &status); err != nil {
			return nil, err
		}

		switch status.Status {
		case ptypes.MarketFulfilled:
			if len(status.Journal) == 0 || len(status.Seal) == 0 {
				return nil, fmt.Errorf("%w: fulfilled request without journal or seal", ErrMalformedResponse)
			}
			return &status, nil
		case ptypes.MarketFailed:
			return nil, fmt.Errorf("%w: request %s failed: %s", ErrBackendSubmission, requestID.Hex(), status.Error)
		case ptypes.MarketExpired:
			return nil, fmt.Errorf("%w: request %s expired", ErrBackendTimeout, requestID.Hex())
		case ptypes.MarketSubmitted, ptypes.MarketLocked:
			b.log.Debugf("Boundless request %s is %s", requestID.Hex(), status.Status)
		default:
			return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, status.Status)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: waiting for %s: %v", ErrBackendTimeout, requestID.Hex(), ctx.Err())
			}
			return nil, fmt.Errorf("stopped waiting for %s: %w", requestID.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func newRequestID(input []byte) (common.Hash, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return common.Hash{}, fmt.Errorf("error generating request nonce: %w", err)
	}
	return crypto.Keccak256Hash(input, nonce), nil
}
