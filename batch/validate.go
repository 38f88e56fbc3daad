package batch

import (
	"errors"
	"fmt"

	"github.com/airchains-network/zk-coprocessor/chains"
	"github.com/airchains-network/zk-coprocessor/types"
)

// L1InclusionUnsupportedMsg is matched verbatim by callers, keep it stable.
const L1InclusionUnsupportedMsg = "L1 Inclusion only supported for Optimism, Base, Linea and their Sepolia variants"

var (
	ErrLengthMismatch         = errors.New("length mismatch")
	ErrUnsupportedL1Inclusion = errors.New(L1InclusionUnsupportedMsg)
)

// ValidationError reports the first rule a batch violated.
type ValidationError struct {
	Err        error
	Field      string // "assets" or "dst_chain_ids" for length mismatches
	GroupIndex int
	ChainID    uint64
}

func (e *ValidationError) Error() string {
	if errors.Is(e.Err, ErrUnsupportedL1Inclusion) {
		return L1InclusionUnsupportedMsg
	}
	return fmt.Sprintf("source group %d: %s %v with users", e.GroupIndex, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate shape-checks a batch before any proving work is scheduled.
func Validate(req types.ProofBatchRequest) error {
	for i, g := range req.Sources {
		if len(g.Assets) != len(g.Users) {
			return &ValidationError{Err: ErrLengthMismatch, Field: "assets", GroupIndex: i, ChainID: g.ChainID}
		}
	}
	for i, g := range req.Sources {
		if len(g.DstChainIDs) != len(g.Users) {
			return &ValidationError{Err: ErrLengthMismatch, Field: "dst_chain_ids", GroupIndex: i, ChainID: g.ChainID}
		}
	}
	if req.L1Inclusion {
		for i, g := range req.Sources {
			if !chains.SupportsL1Inclusion(g.ChainID) {
				return &ValidationError{Err: ErrUnsupportedL1Inclusion, GroupIndex: i, ChainID: g.ChainID}
			}
		}
	}
	return nil
}
