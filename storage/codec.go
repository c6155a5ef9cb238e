package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/rangekv/rangekv/types"
)

// Cell keys are laid out as
//
//	esc(table) esc(row) esc(family) esc(qualifier) ^timestamp
//
// where esc() escapes 0x00 bytes (0x00 -> 0x00 0xFF) and terminates the
// component with 0x00 0x00, preserving byte order, and the timestamp is
// bit-inverted so newer versions sort first. Iterating a row prefix yields
// cells in canonical within-row order: family asc, qualifier asc, ts desc.

func appendEscaped(dst, b []byte) []byte {
	for _, ch := range b {
		dst = append(dst, ch)
		if ch == 0x00 {
			dst = append(dst, 0xFF)
		}
	}
	return append(dst, 0x00, 0x00)
}

// decodeEscaped splits one escaped component off the front of key.
func decodeEscaped(key []byte) (component, rest []byte, err error) {
	for i := 0; i < len(key); i++ {
		if key[i] != 0x00 {
			component = append(component, key[i])
			continue
		}
		if i+1 >= len(key) {
			return nil, nil, fmt.Errorf("truncated escaped component")
		}
		switch key[i+1] {
		case 0xFF:
			component = append(component, 0x00)
			i++
		case 0x00:
			return component, key[i+2:], nil
		default:
			return nil, nil, fmt.Errorf("invalid escape byte 0x%02x", key[i+1])
		}
	}
	return nil, nil, fmt.Errorf("unterminated escaped component")
}

func encodeTablePrefix(table string) []byte {
	return appendEscaped(nil, []byte(table))
}

func encodeRowPrefix(table string, row []byte) []byte {
	return appendEscaped(encodeTablePrefix(table), row)
}

func encodeCellKey(table string, c *types.Cell) []byte {
	key := encodeRowPrefix(table, c.Row)
	key = appendEscaped(key, c.Family)
	key = appendEscaped(key, c.Qualifier)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], ^uint64(c.Timestamp))
	return append(key, ts[:]...)
}

// decodeCellKey parses a cell key that is known to start with tablePrefix.
func decodeCellKey(tablePrefix, key []byte) (*types.Cell, error) {
	rest := key[len(tablePrefix):]
	row, rest, err := decodeEscaped(rest)
	if err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	family, rest, err := decodeEscaped(rest)
	if err != nil {
		return nil, fmt.Errorf("decode family: %w", err)
	}
	qualifier, rest, err := decodeEscaped(rest)
	if err != nil {
		return nil, fmt.Errorf("decode qualifier: %w", err)
	}
	if len(rest) != 8 {
		return nil, fmt.Errorf("bad timestamp suffix length %d", len(rest))
	}
	ts := int64(^binary.BigEndian.Uint64(rest))
	return &types.Cell{Row: row, Family: family, Qualifier: qualifier, Timestamp: ts}, nil
}

// decodeRowOfKey returns just the row component of a cell key.
func decodeRowOfKey(tablePrefix, key []byte) ([]byte, error) {
	row, _, err := decodeEscaped(key[len(tablePrefix):])
	return row, err
}

// prefixSuccessor returns the smallest key greater than every key having the
// given prefix, or nil when no such key exists.
func prefixSuccessor(prefix []byte) []byte {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] != 0xFF {
			out := make([]byte, i+1)
			copy(out, prefix[:i+1])
			out[i]++
			return out
		}
	}
	return nil
}
