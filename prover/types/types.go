package types

import (
	coretypes "github.com/airchains-network/zk-coprocessor/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// GuestInput is what the guest program receives for one batch. Fallback is
// forwarded untouched; only the guest interprets it.
type GuestInput struct {
	Obligations []coretypes.ProofObligation `json:"obligations"`
	L1Inclusion bool                        `json:"l1_inclusion"`
	Fallback    bool                        `json:"fallback"`
}

type ExecuteRequest struct {
	ImageID common.Hash   `json:"image_id"`
	Input   hexutil.Bytes `json:"input"`
}

type Segment struct {
	Index  uint32 `json:"index"`
	Cycles uint32 `json:"cycles"`
}

type ExecuteResponse struct {
	Status      int           `json:"status"`
	Success     bool          `json:"success"`
	Message     string        `json:"message"`
	Description string        `json:"description"`
	Journal     hexutil.Bytes `json:"journal,omitempty"`
	Segments    []Segment     `json:"segments,omitempty"`
}

// MarketRequest registers a proof request with the market. AnchorTx is set
// when the request was anchored on-chain first.
type MarketRequest struct {
	RequestID common.Hash   `json:"request_id"`
	ImageID   common.Hash   `json:"image_id"`
	Input     hexutil.Bytes `json:"input"`
	Onchain   bool          `json:"onchain"`
	AnchorTx  *common.Hash  `json:"anchor_tx,omitempty"`
}

type SubmitResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	RequestID common.Hash `json:"request_id"`
}

// MarketStatus is the market's view of a request (submitted|locked|fulfilled|failed|expired).
type MarketStatus string

const (
	MarketSubmitted MarketStatus = "submitted"
	MarketLocked    MarketStatus = "locked"
	MarketFulfilled MarketStatus = "fulfilled"
	MarketFailed    MarketStatus = "failed"
	MarketExpired   MarketStatus = "expired"
)

type StatusResponse struct {
	RequestID common.Hash   `json:"request_id"`
	Status    MarketStatus  `json:"status"`
	Journal   hexutil.Bytes `json:"journal,omitempty"`
	Seal      hexutil.Bytes `json:"seal,omitempty"`
	Error     string        `json:"error,omitempty"`
}
