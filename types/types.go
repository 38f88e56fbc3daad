package types

import "github.com/ethereum/go-ethereum/common"

// Address is a 20 byte account identifier on any EVM chain.
type Address = common.Address

// SourceChainGroup is the workload for a single source chain. Users, Assets
// and DstChainIDs are parallel slices.
type SourceChainGroup struct {
	ChainID     uint64    `json:"chain_id"`
	Users       []Address `json:"users"`
	Assets      []Address `json:"assets"`
	DstChainIDs []uint64  `json:"dst_chain_ids"`
}

// ProofBatchRequest is a batch of proof requests grouped by source chain.
type ProofBatchRequest struct {
	Sources     []SourceChainGroup `json:"sources"`
	L1Inclusion bool               `json:"l1_inclusion"`
	Fallback    bool               `json:"fallback"`
}

// ProofObligation is one (user, asset, source chain, destination chain) unit
// that yields exactly one journal entry.
type ProofObligation struct {
	Sender      Address `json:"sender"`
	Market      Address `json:"market"`
	ChainID     uint64  `json:"chain_id"`
	DstChainID  uint64  `json:"dst_chain_id"`
	L1Inclusion bool    `json:"l1_inclusion"`
}
