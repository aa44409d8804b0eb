package model

import (
	"fmt"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
)

// ElementGroup is a set of Create or Update headers that all carry the same
// entry, for example concurrent creations by different agents.
type ElementGroup struct {
	headers   []SignedHeaderHashed
	entry     Entry
	entryHash holohash.EntryHash
}

// NewElementGroup checks that every header carries entry and drops
// duplicate headers.
func NewElementGroup(
	headers []SignedHeaderHashed,
	entry Entry,
) (ElementGroup, error) {
	if len(headers) == 0 {
		return ElementGroup{}, ErrEmptyGroup
	}
	entryHash := entry.Hash()
	seen := make(map[holohash.HeaderHash]struct{}, len(headers))
	out := make([]SignedHeaderHashed, 0, len(headers))
	for _, shh := range headers {
		eh, _, ok := shh.Header().EntryData()
		if !ok || eh != entryHash {
			return ElementGroup{}, fmt.Errorf(
				"%w: %s header %s",
				ErrGroupEntryMismatch, shh.Header().Type(), shh.Hash(),
			)
		}
		if _, dup := seen[shh.Hash()]; dup {
			continue
		}
		seen[shh.Hash()] = struct{}{}
		out = append(out, shh)
	}
	return ElementGroup{headers: out, entry: entry, entryHash: entryHash}, nil
}

func (g ElementGroup) EntryHash() holohash.EntryHash { return g.entryHash }
func (g ElementGroup) Entry() Entry                  { return g.entry }
func (g ElementGroup) Len() int                      { return len(g.headers) }

func (g ElementGroup) Headers() []SignedHeaderHashed {
	out := make([]SignedHeaderHashed, len(g.headers))
	copy(out, g.headers)
	return out
}

// Elements expands the group into one element per header.
func (g ElementGroup) Elements() []Element {
	out := make([]Element, 0, len(g.headers))
	for _, shh := range g.headers {
		entry := g.entry
		out = append(out, NewElement(shh, &entry))
	}
	return out
}
