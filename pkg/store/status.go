package store

import (
	"context"
	"fmt"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
)

// DeriveStatus computes the status of an entry from r. A registered
// non-Live override wins. Otherwise the entry is Live iff at least one of
// its headers has no delete registered against it, and Dead otherwise,
// including when no header is known.
func DeriveStatus(
	ctx context.Context,
	r MetadataReader,
	entry holohash.EntryHash,
) (model.EntryDhtStatus, error) {
	override, ok, err := r.StatusOverride(ctx, entry)
	if err != nil {
		return 0, fmt.Errorf("status override of %s: %w", entry, err)
	}
	if ok && override != model.StatusLive {
		return override, nil
	}

	_, live, err := OldestLiveHeader(ctx, r, entry)
	if err != nil {
		return 0, err
	}
	if live {
		return model.StatusLive, nil
	}
	return model.StatusDead, nil
}

// OldestLiveHeader returns the oldest header of entry that has no delete
// registered in r.
func OldestLiveHeader(
	ctx context.Context,
	r MetadataReader,
	entry holohash.EntryHash,
) (model.TimedHeaderHash, bool, error) {
	headers, err := r.GetHeaders(ctx, entry)
	if err != nil {
		return model.TimedHeaderHash{}, false, fmt.Errorf("headers of %s: %w", entry, err)
	}
	live := make([]model.TimedHeaderHash, 0, len(headers))
	for _, h := range headers {
		deletes, err := r.GetDeletesOnHeader(ctx, h.HeaderHash)
		if err != nil {
			return model.TimedHeaderHash{}, false, fmt.Errorf("deletes on %s: %w", h.HeaderHash, err)
		}
		if len(deletes) == 0 {
			live = append(live, h)
		}
	}
	oldest, ok := model.Oldest(live)
	return oldest, ok, nil
}

// EntryMetadataKnown reports whether r holds headers, deletes or a status
// override for entry.
func EntryMetadataKnown(
	ctx context.Context,
	r MetadataReader,
	entry holohash.EntryHash,
) (bool, error) {
	if _, ok, err := r.StatusOverride(ctx, entry); err != nil || ok {
		return ok, err
	}
	headers, err := r.GetHeaders(ctx, entry)
	if err != nil || len(headers) > 0 {
		return len(headers) > 0, err
	}
	deletes, err := r.GetDeletesOnEntry(ctx, entry)
	return len(deletes) > 0, err
}

// LiveLinks filters the links of key down to those without removes.
func LiveLinks(
	ctx context.Context,
	r MetadataReader,
	key model.LinkMetaKey,
) ([]model.LinkMetaVal, error) {
	all, err := r.GetLinksAll(ctx, key)
	if err != nil {
		return nil, err
	}
	live := make([]model.LinkMetaVal, 0, len(all))
	for _, v := range all {
		removes, err := r.GetLinkRemovesOnLinkAdd(ctx, v.LinkAddHash)
		if err != nil {
			return nil, err
		}
		if len(removes) == 0 {
			live = append(live, v)
		}
	}
	return live, nil
}
