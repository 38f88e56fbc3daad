package prover

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrBackendSubmission  = errors.New("backend submission failed")
	ErrBackendTimeout     = errors.New("backend timed out")
	ErrMalformedResponse  = errors.New("malformed backend response")
	ErrBackendUnavailable = errors.New("backend not configured")
)

// ProofError is the single terminal error a backend reports for a batch.
// Callers decide whether to retry; backends never do.
// AnchorTx is set when the request was already anchored on-chain before the
// failure, so the caller can reconcile the paid request.
type ProofError struct {
	Backend  string
	Err      error
	AnchorTx *common.Hash
}

func (e *ProofError) Error() string {
	if e.AnchorTx != nil {
		return fmt.Sprintf("%s backend (anchor tx %s): %v", e.Backend, e.AnchorTx.Hex(), e.Err)
	}
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
}

func (e *ProofError) Unwrap() error { return e.Err }
