package store

import (
	"context"
	"sort"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
)

// LayeredMeta is a read-only union of two metadata readers. The cascade
// layers its cache over the vault this way.
type LayeredMeta struct {
	first, second MetadataReader
}

// Layered returns the union of first and second. Status is derived over
// the union, so a delete known to either side counts.
func Layered(first, second MetadataReader) *LayeredMeta {
	return &LayeredMeta{first: first, second: second}
}

func unionTimed(
	ctx context.Context,
	first, second func(context.Context) ([]model.TimedHeaderHash, error),
) ([]model.TimedHeaderHash, error) {
	a, err := first(ctx)
	if err != nil {
		return nil, err
	}
	b, err := second(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.TimedHeaderHash, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return model.SortTimed(out), nil
}

func (l *LayeredMeta) GetHeaders(
	ctx context.Context,
	entry holohash.EntryHash,
) ([]model.TimedHeaderHash, error) {
	return unionTimed(ctx,
		func(ctx context.Context) ([]model.TimedHeaderHash, error) { return l.first.GetHeaders(ctx, entry) },
		func(ctx context.Context) ([]model.TimedHeaderHash, error) { return l.second.GetHeaders(ctx, entry) },
	)
}

func (l *LayeredMeta) GetDeletesOnEntry(
	ctx context.Context,
	entry holohash.EntryHash,
) ([]model.TimedHeaderHash, error) {
	return unionTimed(ctx,
		func(ctx context.Context) ([]model.TimedHeaderHash, error) {
			return l.first.GetDeletesOnEntry(ctx, entry)
		},
		func(ctx context.Context) ([]model.TimedHeaderHash, error) {
			return l.second.GetDeletesOnEntry(ctx, entry)
		},
	)
}

func (l *LayeredMeta) GetDeletesOnHeader(
	ctx context.Context,
	header holohash.HeaderHash,
) ([]model.TimedHeaderHash, error) {
	return unionTimed(ctx,
		func(ctx context.Context) ([]model.TimedHeaderHash, error) {
			return l.first.GetDeletesOnHeader(ctx, header)
		},
		func(ctx context.Context) ([]model.TimedHeaderHash, error) {
			return l.second.GetDeletesOnHeader(ctx, header)
		},
	)
}

func (l *LayeredMeta) GetUpdates(
	ctx context.Context,
	basis holohash.AnyDhtHash,
) ([]model.TimedHeaderHash, error) {
	return unionTimed(ctx,
		func(ctx context.Context) ([]model.TimedHeaderHash, error) { return l.first.GetUpdates(ctx, basis) },
		func(ctx context.Context) ([]model.TimedHeaderHash, error) { return l.second.GetUpdates(ctx, basis) },
	)
}

func (l *LayeredMeta) GetLinkRemovesOnLinkAdd(
	ctx context.Context,
	linkAdd holohash.HeaderHash,
) ([]model.TimedHeaderHash, error) {
	return unionTimed(ctx,
		func(ctx context.Context) ([]model.TimedHeaderHash, error) {
			return l.first.GetLinkRemovesOnLinkAdd(ctx, linkAdd)
		},
		func(ctx context.Context) ([]model.TimedHeaderHash, error) {
			return l.second.GetLinkRemovesOnLinkAdd(ctx, linkAdd)
		},
	)
}

func (l *LayeredMeta) GetDhtStatus(
	ctx context.Context,
	entry holohash.EntryHash,
) (model.EntryDhtStatus, error) {
	return DeriveStatus(ctx, l, entry)
}

// StatusOverride prefers the first reader's override.
func (l *LayeredMeta) StatusOverride(
	ctx context.Context,
	entry holohash.EntryHash,
) (model.EntryDhtStatus, bool, error) {
	s, ok, err := l.first.StatusOverride(ctx, entry)
	if err != nil || ok {
		return s, ok, err
	}
	return l.second.StatusOverride(ctx, entry)
}

func (l *LayeredMeta) HasEntryMetadata(
	ctx context.Context,
	entry holohash.EntryHash,
) (bool, error) {
	return either(ctx,
		func(ctx context.Context) (bool, error) { return l.first.HasEntryMetadata(ctx, entry) },
		func(ctx context.Context) (bool, error) { return l.second.HasEntryMetadata(ctx, entry) },
	)
}

// GetLinksAll returns the links of both readers, first reader first, with
// duplicates dropped and the result ordered by creation time.
func (l *LayeredMeta) GetLinksAll(
	ctx context.Context,
	key model.LinkMetaKey,
) ([]model.LinkMetaVal, error) {
	a, err := l.first.GetLinksAll(ctx, key)
	if err != nil {
		return nil, err
	}
	b, err := l.second.GetLinksAll(ctx, key)
	if err != nil {
		return nil, err
	}
	seen := make(map[holohash.HeaderHash]struct{}, len(a)+len(b))
	out := make([]model.LinkMetaVal, 0, len(a)+len(b))
	for _, v := range append(a, b...) {
		if _, dup := seen[v.LinkAddHash]; dup {
			continue
		}
		seen[v.LinkAddHash] = struct{}{}
		out = append(out, v)
	}
	SortLinks(out)
	return out, nil
}

func (l *LayeredMeta) GetLinks(
	ctx context.Context,
	key model.LinkMetaKey,
) ([]model.LinkMetaVal, error) {
	return LiveLinks(ctx, l, key)
}

func (l *LayeredMeta) HasRegisteredStoreElement(
	ctx context.Context,
	header holohash.HeaderHash,
) (bool, error) {
	return either(ctx,
		func(ctx context.Context) (bool, error) { return l.first.HasRegisteredStoreElement(ctx, header) },
		func(ctx context.Context) (bool, error) { return l.second.HasRegisteredStoreElement(ctx, header) },
	)
}

func (l *LayeredMeta) HasRegisteredStoreEntry(
	ctx context.Context,
	entry holohash.EntryHash,
	header holohash.HeaderHash,
) (bool, error) {
	return either(ctx,
		func(ctx context.Context) (bool, error) { return l.first.HasRegisteredStoreEntry(ctx, entry, header) },
		func(ctx context.Context) (bool, error) { return l.second.HasRegisteredStoreEntry(ctx, entry, header) },
	)
}

func (l *LayeredMeta) HasAnyRegisteredStoreEntry(
	ctx context.Context,
	entry holohash.EntryHash,
) (bool, error) {
	return either(ctx,
		func(ctx context.Context) (bool, error) { return l.first.HasAnyRegisteredStoreEntry(ctx, entry) },
		func(ctx context.Context) (bool, error) { return l.second.HasAnyRegisteredStoreEntry(ctx, entry) },
	)
}

func either(
	ctx context.Context,
	first, second func(context.Context) (bool, error),
) (bool, error) {
	ok, err := first(ctx)
	if err != nil || ok {
		return ok, err
	}
	return second(ctx)
}

// SortLinks orders links by creation time, then create header hash.
func SortLinks(links []model.LinkMetaVal) {
	sort.Slice(links, func(i, j int) bool {
		return links[i].Timed().Less(links[j].Timed())
	})
}

// LayeredElements reads from first and falls back to second.
type LayeredElements struct {
	first, second ElementReader
}

func LayeredElementReader(first, second ElementReader) *LayeredElements {
	return &LayeredElements{first: first, second: second}
}

func (l *LayeredElements) GetElement(
	ctx context.Context,
	hash holohash.HeaderHash,
) (*model.Element, error) {
	el, err := l.first.GetElement(ctx, hash)
	if err != nil || el != nil {
		return el, err
	}
	return l.second.GetElement(ctx, hash)
}

func (l *LayeredElements) GetHeader(
	ctx context.Context,
	hash holohash.HeaderHash,
) (*model.SignedHeaderHashed, error) {
	shh, err := l.first.GetHeader(ctx, hash)
	if err != nil || shh != nil {
		return shh, err
	}
	return l.second.GetHeader(ctx, hash)
}

func (l *LayeredElements) GetEntry(
	ctx context.Context,
	hash holohash.EntryHash,
) (*model.Entry, error) {
	e, err := l.first.GetEntry(ctx, hash)
	if err != nil || e != nil {
		return e, err
	}
	return l.second.GetEntry(ctx, hash)
}

var (
	_ MetadataReader = (*LayeredMeta)(nil)
	_ ElementReader  = (*LayeredElements)(nil)
)
