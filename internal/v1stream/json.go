package v1stream

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sublimator/catalogue-tools-sub001/internal/ledger"
	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

// jsonRecord is Record's hex-friendly wire shape for the JSON file
// stream format: a human-editable stand-in for a real v1 CATL reader.
type jsonRecord struct {
	Type string `json:"type"` // "add", "remove"
	Key  string `json:"key"`  // hex, 64 chars
	Data string `json:"data,omitempty"`
}

type jsonHeader struct {
	Sequence            uint32 `json:"sequence"`
	Hash                string `json:"hash"`
	TxHash              string `json:"tx_hash"`
	AccountHash         string `json:"account_hash"`
	ParentHash          string `json:"parent_hash"`
	Drops               uint64 `json:"drops"`
	CloseFlags          uint32 `json:"close_flags"`
	CloseTimeResolution uint32 `json:"close_time_resolution"`
	CloseTime           uint64 `json:"close_time"`
	ParentCloseTime     uint64 `json:"parent_close_time"`
}

type jsonLedger struct {
	Header         jsonHeader   `json:"header"`
	StateDelta     []jsonRecord `json:"state_delta"`
	TransactionSet []jsonRecord `json:"transaction_set"`
}

func decodeHash32(s string) ([32]byte, error) {
	var out [32]byte
	if s == "" {
		return out, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("v1stream: expected 32-byte hash, got %d bytes", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func decodeRecords(in []jsonRecord) ([]Record, error) {
	out := make([]Record, 0, len(in))
	for _, r := range in {
		key, err := decodeHash32(r.Key)
		if err != nil {
			return nil, fmt.Errorf("v1stream: bad key %q: %w", r.Key, err)
		}
		rec := Record{Key: shamap.Key(key)}
		switch r.Type {
		case "remove":
			rec.Type = shamap.NodeTypeRemove
		case "add", "":
			rec.Type = shamap.NodeTypeAccountState
			data, err := hex.DecodeString(r.Data)
			if err != nil {
				return nil, fmt.Errorf("v1stream: bad data for key %q: %w", r.Key, err)
			}
			rec.Data = data
		default:
			return nil, fmt.Errorf("v1stream: unknown record type %q", r.Type)
		}
		out = append(out, rec)
	}
	return out, nil
}

// LoadJSONFile reads a JSON-encoded sequence of ledger tuples from
// path and returns a replayable MemoryStream. This is the concrete
// file format catlconv's --input flag consumes in place of a binary
// v1 CATL reader.
func LoadJSONFile(path string) (*MemoryStream, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("v1stream: read %s: %w", path, err)
	}

	var ledgers []jsonLedger
	if err := json.Unmarshal(data, &ledgers); err != nil {
		return nil, fmt.Errorf("v1stream: parse %s: %w", path, err)
	}

	tuples := make([]LedgerTuple, 0, len(ledgers))
	for _, jl := range ledgers {
		hash, err := decodeHash32(jl.Header.Hash)
		if err != nil {
			return nil, err
		}
		txHash, err := decodeHash32(jl.Header.TxHash)
		if err != nil {
			return nil, err
		}
		accountHash, err := decodeHash32(jl.Header.AccountHash)
		if err != nil {
			return nil, err
		}
		parentHash, err := decodeHash32(jl.Header.ParentHash)
		if err != nil {
			return nil, err
		}

		stateDelta, err := decodeRecords(jl.StateDelta)
		if err != nil {
			return nil, err
		}
		txSet, err := decodeRecords(jl.TransactionSet)
		if err != nil {
			return nil, err
		}

		tuples = append(tuples, LedgerTuple{
			Header: ledger.HeaderV1{
				Sequence:            jl.Header.Sequence,
				Hash:                hash,
				TxHash:              txHash,
				AccountHash:         accountHash,
				ParentHash:          parentHash,
				Drops:               jl.Header.Drops,
				CloseFlags:          jl.Header.CloseFlags,
				CloseTimeResolution: jl.Header.CloseTimeResolution,
				CloseTime:           jl.Header.CloseTime,
				ParentCloseTime:     jl.Header.ParentCloseTime,
			},
			StateDelta:     stateDelta,
			TransactionSet: txSet,
		})
	}
	return NewMemoryStream(tuples), nil
}
