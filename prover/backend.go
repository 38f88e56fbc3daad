package prover

import (
	"context"
	"encoding/json"
	"fmt"

	ptypes "github.com/airchains-network/zk-coprocessor/prover/types"
	"github.com/airchains-network/zk-coprocessor/types"
	"github.com/ethereum/go-ethereum/common"
)

// ProveRequest is the full obligation sequence of one batch.
type ProveRequest struct {
	Obligations []types.ProofObligation
	L1Inclusion bool
	Fallback    bool
	// Onchain selects on-chain anchoring. Only the market backend uses it.
	Onchain bool
}

// Backend proves a whole obligation sequence as one unit.
type Backend interface {
	Name() string
	Prove(ctx context.Context, req *ProveRequest) (Result, error)
}

// Result is either *ExecResult or *MarketResult.
type Result interface {
	JournalBytes() []byte
	isResult()
}

// ExecResult is the outcome of local execution. Cycles are a cost signal
// only and carry no cryptographic meaning.
type ExecResult struct {
	Journal       []byte
	SegmentCycles []uint32
}

func (r *ExecResult) JournalBytes() []byte { return r.Journal }
func (*ExecResult) isResult()              {}

// TotalCycles sums the per-segment cycle counts.
func (r *ExecResult) TotalCycles() uint64 {
	var total uint64
	for _, c := range r.SegmentCycles {
		total += uint64(c)
	}
	return total
}

// MarketResult is the outcome of a market proof. Seal is opaque here and is
// verified by an external verifier.
type MarketResult struct {
	Journal   []byte
	Seal      []byte
	RequestID common.Hash
	AnchorTx  *common.Hash
}

func (r *MarketResult) JournalBytes() []byte { return r.Journal }
func (*MarketResult) isResult()              {}

func encodeGuestInput(req *ProveRequest) ([]byte, error) {
	obligations := req.Obligations
	if obligations == nil {
		obligations = []types.ProofObligation{}
	}
	input, err := json.Marshal(ptypes.GuestInput{
		Obligations: obligations,
		L1Inclusion: req.L1Inclusion,
		Fallback:    req.Fallback,
	})
	if err != nil {
		return nil, fmt.Errorf("error encoding guest input: %w", err)
	}
	return input, nil
}
