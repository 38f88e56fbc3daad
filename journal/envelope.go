package journal

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var ErrMalformedEnvelope = errors.New("journal: malformed envelope")

// EntryError reports an entry that failed to decode inside a well formed
// envelope.
type EntryError struct {
	Index int
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("journal entry %d: %v", e.Index, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

var envelopeArgs = abi.Arguments{{Type: mustParseType("bytes[]")}}

func mustParseType(typeName string) abi.Type {
	typ, err := abi.NewType(typeName, "", nil)
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI type %s: %v", typeName, err))
	}
	return typ
}

// EncodeJournal ABI encodes raw entries as a bytes[] value.
func EncodeJournal(entries [][]byte) ([]byte, error) {
	if entries == nil {
		entries = [][]byte{}
	}
	data, err := envelopeArgs.Pack(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to pack journal: %w", err)
	}
	return data, nil
}

// EncodeEntries encodes each entry and wraps them in the envelope.
func EncodeEntries(entries []Entry) ([]byte, error) {
	raw := make([][]byte, len(entries))
	for i, e := range entries {
		raw[i] = e.Encode()
	}
	return EncodeJournal(raw)
}

// DecodeJournal parses the envelope without looking at the entries. Only the
// canonical encoding is accepted: trailing bytes, non-zero padding or
// non-standard offsets are rejected.
func DecodeJournal(data []byte) ([][]byte, error) {
	values, err := envelopeArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%w: got %d values", ErrMalformedEnvelope, len(values))
	}
	raw, ok := values[0].([][]byte)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected element type %T", ErrMalformedEnvelope, values[0])
	}
	canonical, err := envelopeArgs.Pack(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if !bytes.Equal(canonical, data) {
		return nil, fmt.Errorf("%w: non-canonical encoding (%d bytes, canonical %d)", ErrMalformedEnvelope, len(data), len(canonical))
	}
	return raw, nil
}

// DecodeEntries parses the envelope and every entry in it. Envelope failures
// abort the decode; entry failures are reported as *EntryError.
func DecodeEntries(data []byte) ([]Entry, error) {
	raw, err := DecodeJournal(data)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(raw))
	for i, r := range raw {
		e, err := DecodeEntry(r)
		if err != nil {
			return nil, &EntryError{Index: i, Err: err}
		}
		entries[i] = e
	}
	return entries, nil
}
