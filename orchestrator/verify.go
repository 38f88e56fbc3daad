package orchestrator

import (
	"errors"
	"fmt"

	"github.com/airchains-network/zk-coprocessor/journal"
	"github.com/airchains-network/zk-coprocessor/prover"
	"github.com/airchains-network/zk-coprocessor/types"
)

var ErrEntryCountMismatch = errors.New("journal entry count does not match obligations")

// VerificationError reports the first field at which a decoded entry differs
// from the obligation at the same position. A wrong entry count is reported
// with Field "count" and Index -1, and unwraps to ErrEntryCountMismatch.
type VerificationError struct {
	Index int
	Field string
	Want  string
	Got   string
	Err   error
}

func (e *VerificationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("journal %s mismatch: want %s, got %s", e.Field, e.Want, e.Got)
	}
	return fmt.Sprintf("journal entry %d: %s mismatch: want %s, got %s", e.Index, e.Field, e.Want, e.Got)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// DecodeAndVerify decodes the journal and checks it positionally against the
// obligations it was proven for. It does not verify the seal.
func DecodeAndVerify(journalBytes []byte, obligations []types.ProofObligation) ([]journal.Entry, error) {
	entries, err := journal.DecodeEntries(journalBytes)
	if err != nil {
		return nil, err
	}
	if len(entries) != len(obligations) {
		return nil, &VerificationError{
			Index: -1,
			Field: "count",
			Want:  fmt.Sprint(len(obligations)),
			Got:   fmt.Sprint(len(entries)),
			Err:   ErrEntryCountMismatch,
		}
	}
	for i := range entries {
		if err := checkEntry(i, entries[i], obligations[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Verify is DecodeAndVerify over a backend result.
func Verify(res prover.Result, obligations []types.ProofObligation) ([]journal.Entry, error) {
	return DecodeAndVerify(res.JournalBytes(), obligations)
}

func checkEntry(i int, e journal.Entry, o types.ProofObligation) error {
	switch {
	case e.Sender != o.Sender:
		return &VerificationError{Index: i, Field: "sender", Want: o.Sender.Hex(), Got: e.Sender.Hex()}
	case e.Market != o.Market:
		return &VerificationError{Index: i, Field: "market", Want: o.Market.Hex(), Got: e.Market.Hex()}
	case uint64(e.ChainID) != o.ChainID:
		return &VerificationError{Index: i, Field: "chain_id", Want: fmt.Sprint(o.ChainID), Got: fmt.Sprint(e.ChainID)}
	case uint64(e.DstChainID) != o.DstChainID:
		return &VerificationError{Index: i, Field: "dst_chain_id", Want: fmt.Sprint(o.DstChainID), Got: fmt.Sprint(e.DstChainID)}
	case e.L1Inclusion != o.L1Inclusion:
		return &VerificationError{Index: i, Field: "l1_inclusion", Want: fmt.Sprint(o.L1Inclusion), Got: fmt.Sprint(e.L1Inclusion)}
	}
	return nil
}
