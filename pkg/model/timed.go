package model

import (
	"sort"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
)

// TimedHeaderHash orders headers by time, breaking ties by hash bytes.
type TimedHeaderHash struct {
	Timestamp  Timestamp           `msgpack:"timestamp"`
	HeaderHash holohash.HeaderHash `msgpack:"header_hash"`
}

// Compare returns -1, 0 or 1 ordering t before, equal to or after o.
func (t TimedHeaderHash) Compare(o TimedHeaderHash) int {
	switch {
	case t.Timestamp < o.Timestamp:
		return -1
	case t.Timestamp > o.Timestamp:
		return 1
	default:
		return t.HeaderHash.Compare(o.HeaderHash)
	}
}

func (t TimedHeaderHash) Less(o TimedHeaderHash) bool {
	return t.Compare(o) < 0
}

// SortTimed sorts hashes ascending and removes duplicates.
func SortTimed(hashes []TimedHeaderHash) []TimedHeaderHash {
	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i].Less(hashes[j])
	})
	out := hashes[:0]
	for i, h := range hashes {
		if i > 0 && h == hashes[i-1] {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Oldest returns the minimum of hashes.
func Oldest(hashes []TimedHeaderHash) (TimedHeaderHash, bool) {
	if len(hashes) == 0 {
		return TimedHeaderHash{}, false
	}
	min := hashes[0]
	for _, h := range hashes[1:] {
		if h.Less(min) {
			min = h
		}
	}
	return min, true
}
