package batch

import "github.com/airchains-network/zk-coprocessor/types"

// Flatten turns a nested batch into the ordered obligation sequence. Groups
// are walked in order, users within a group by index. Journal entry i always
// corresponds to obligation i of this sequence.
//
// Flatten assumes the batch passed Validate.
func Flatten(req types.ProofBatchRequest) []types.ProofObligation {
	out := make([]types.ProofObligation, 0, Count(req))
	for _, g := range req.Sources {
		for i, user := range g.Users {
			out = append(out, types.ProofObligation{
				Sender:      user,
				Market:      g.Assets[i],
				ChainID:     g.ChainID,
				DstChainID:  g.DstChainIDs[i],
				L1Inclusion: req.L1Inclusion,
			})
		}
	}
	return out
}

// Count returns the number of obligations a batch flattens to.
func Count(req types.ProofBatchRequest) int {
	n := 0
	for _, g := range req.Sources {
		n += len(g.Users)
	}
	return n
}
