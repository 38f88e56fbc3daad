// Package journal encodes and decodes the public output of a coprocessor
// proof: an ABI bytes[] envelope of fixed 113 byte entries.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/airchains-network/zk-coprocessor/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Entry layout, all integers big-endian.
const (
	senderOffset       = 0
	marketOffset       = senderOffset + common.AddressLength
	accAmountInOffset  = marketOffset + common.AddressLength
	accAmountOutOffset = accAmountInOffset + 32
	chainIDOffset      = accAmountOutOffset + 32
	dstChainIDOffset   = chainIDOffset + 4
	l1InclusionOffset  = dstChainIDOffset + 4

	// EntrySize is the encoded size of one journal entry.
	EntrySize = l1InclusionOffset + 1
)

var (
	ErrInvalidLength   = errors.New("journal: invalid entry length")
	ErrInvalidBool     = errors.New("journal: invalid l1 inclusion value")
	ErrChainIDOverflow = errors.New("journal: chain id does not fit in 32 bits")
)

// Entry is the decoded form of one journal record.
type Entry struct {
	Sender       common.Address
	Market       common.Address
	AccAmountIn  uint256.Int
	AccAmountOut uint256.Int
	ChainID      uint32
	DstChainID   uint32
	L1Inclusion  bool
}

// NewEntry builds the entry for an obligation and its accumulated amounts.
// Nil amounts are treated as zero.
func NewEntry(o types.ProofObligation, accIn, accOut *uint256.Int) (Entry, error) {
	if o.ChainID > math.MaxUint32 {
		return Entry{}, fmt.Errorf("%w: chain_id %d", ErrChainIDOverflow, o.ChainID)
	}
	if o.DstChainID > math.MaxUint32 {
		return Entry{}, fmt.Errorf("%w: dst_chain_id %d", ErrChainIDOverflow, o.DstChainID)
	}
	e := Entry{
		Sender:      o.Sender,
		Market:      o.Market,
		ChainID:     uint32(o.ChainID),
		DstChainID:  uint32(o.DstChainID),
		L1Inclusion: o.L1Inclusion,
	}
	if accIn != nil {
		e.AccAmountIn = *accIn
	}
	if accOut != nil {
		e.AccAmountOut = *accOut
	}
	return e, nil
}

// Encode serializes the entry into exactly EntrySize bytes.
func (e Entry) Encode() []byte {
	buf := make([]byte, EntrySize)
	copy(buf[senderOffset:marketOffset], e.Sender[:])
	copy(buf[marketOffset:accAmountInOffset], e.Market[:])
	in := e.AccAmountIn.Bytes32()
	copy(buf[accAmountInOffset:accAmountOutOffset], in[:])
	out := e.AccAmountOut.Bytes32()
	copy(buf[accAmountOutOffset:chainIDOffset], out[:])
	binary.BigEndian.PutUint32(buf[chainIDOffset:dstChainIDOffset], e.ChainID)
	binary.BigEndian.PutUint32(buf[dstChainIDOffset:l1InclusionOffset], e.DstChainID)
	if e.L1Inclusion {
		buf[l1InclusionOffset] = 1
	}
	return buf
}

// DecodeEntry parses one journal record. It fails only on a wrong length or
// an l1 inclusion byte other than 0 or 1.
func DecodeEntry(data []byte) (Entry, error) {
	if len(data) != EntrySize {
		return Entry{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(data), EntrySize)
	}
	var e Entry
	copy(e.Sender[:], data[senderOffset:marketOffset])
	copy(e.Market[:], data[marketOffset:accAmountInOffset])
	e.AccAmountIn.SetBytes(data[accAmountInOffset:accAmountOutOffset])
	e.AccAmountOut.SetBytes(data[accAmountOutOffset:chainIDOffset])
	e.ChainID = binary.BigEndian.Uint32(data[chainIDOffset:dstChainIDOffset])
	e.DstChainID = binary.BigEndian.Uint32(data[dstChainIDOffset:l1InclusionOffset])

	switch data[l1InclusionOffset] {
	case 0:
	case 1:
		e.L1Inclusion = true
	default:
		return Entry{}, fmt.Errorf("%w: %d", ErrInvalidBool, data[l1InclusionOffset])
	}
	return e, nil
}
