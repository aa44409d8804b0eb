package cascade

import (
	"context"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/i5heu/ouroboros-cascade/pkg/store"
)

// validElement reports whether a header was registered as held, either as
// a whole element or as the store of its entry. Stored data nobody
// registered is not handed out.
func (c *Cascade) validElement(
	ctx context.Context,
	header holohash.HeaderHash,
	entry *holohash.EntryHash,
) (bool, error) {
	ok, err := c.meta.HasRegisteredStoreElement(ctx, header)
	if err != nil || ok {
		return ok, err
	}
	if entry == nil {
		return false, nil
	}
	return c.meta.HasRegisteredStoreEntry(ctx, *entry, header)
}

// getElementLocalRaw returns the element at hash from vault or cache when
// it is held and registered.
func (c *Cascade) getElementLocalRaw(
	ctx context.Context,
	hash holohash.HeaderHash,
) (*model.Element, error) {
	el, err := c.elements.GetElement(ctx, hash)
	if err != nil {
		return nil, storeErr("get element", err)
	}
	if el == nil {
		return nil, nil
	}
	var entry *holohash.EntryHash
	if eh, _, ok := el.Header().EntryData(); ok {
		entry = &eh
	}
	valid, err := c.validElement(ctx, hash, entry)
	if err != nil {
		return nil, storeErr("check element", err)
	}
	if !valid {
		return nil, nil
	}
	return el, nil
}

// getElementLocalRawViaEntry returns the newest held element of an entry.
func (c *Cascade) getElementLocalRawViaEntry(
	ctx context.Context,
	hash holohash.EntryHash,
) (*model.Element, error) {
	headers, err := c.meta.GetHeaders(ctx, hash)
	if err != nil {
		return nil, storeErr("get headers", err)
	}
	for i := len(headers) - 1; i >= 0; i-- {
		el, err := c.getElementLocalRaw(ctx, headers[i].HeaderHash)
		if err != nil || el != nil {
			return el, err
		}
	}
	return nil, nil
}

func (c *Cascade) getEntryLocalRaw(
	ctx context.Context,
	hash holohash.EntryHash,
) (*model.Entry, error) {
	entry, err := c.elements.GetEntry(ctx, hash)
	if err != nil {
		return nil, storeErr("get entry", err)
	}
	if entry == nil {
		return nil, nil
	}
	ok, err := c.meta.HasAnyRegisteredStoreEntry(ctx, hash)
	if err != nil {
		return nil, storeErr("check entry", err)
	}
	if !ok {
		return nil, nil
	}
	return entry, nil
}

func (c *Cascade) getHeaderLocalRaw(
	ctx context.Context,
	hash holohash.HeaderHash,
) (*model.SignedHeaderHashed, error) {
	shh, err := c.elements.GetHeader(ctx, hash)
	if err != nil {
		return nil, storeErr("get header", err)
	}
	if shh == nil {
		return nil, nil
	}
	var entry *holohash.EntryHash
	if eh, _, ok := shh.Header().EntryData(); ok {
		entry = &eh
	}
	valid, err := c.validElement(ctx, hash, entry)
	if err != nil {
		return nil, storeErr("check header", err)
	}
	if !valid {
		return nil, nil
	}
	return shh, nil
}

// renderHeaders loads the headers behind hashes and converts them with
// as. Headers not held, or not of the expected type, are logged and
// skipped.
func renderHeaders[T any](
	ctx context.Context,
	c *Cascade,
	hashes []model.TimedHeaderHash,
	as func(model.Header) (T, error),
) ([]T, error) {
	out := make([]T, 0, len(hashes))
	for _, th := range hashes {
		shh, err := c.getHeaderLocalRaw(ctx, th.HeaderHash)
		if err != nil {
			return nil, err
		}
		if shh == nil {
			c.log.Debug("header in metadata is not held",
				logKeyHash, th.HeaderHash)
			continue
		}
		v, err := as(shh.Header())
		if err != nil {
			c.log.Warn("skipping header of unexpected type",
				logKeyHash, th.HeaderHash, logKeyError, err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func identity(h model.Header) (model.Header, error) { return h, nil }

// searchEntry resolves an entry against the metadata of both tiers.
func (c *Cascade) searchEntry(
	ctx context.Context,
	hash holohash.EntryHash,
) (search, error) {
	status, err := c.meta.GetDhtStatus(ctx, hash)
	if err != nil {
		return search{}, storeErr("get status", err)
	}
	if status != model.StatusLive {
		c.log.Debug("entry not live", logKeyHash, hash, logKeyStatus, status)
		return notInCascade(), nil
	}

	oldest, ok, err := store.OldestLiveHeader(ctx, c.meta, hash)
	if err != nil {
		return search{}, storeErr("oldest live header", err)
	}
	if !ok {
		err := &InvariantError{
			Entry:  hash,
			Reason: "status is Live but every header is deleted",
		}
		c.log.Error("metadata invariant violated",
			logKeyHash, hash, logKeyError, err)
		return search{}, err
	}

	el, err := c.getElementLocalRaw(ctx, oldest.HeaderHash)
	if err != nil {
		return search{}, err
	}
	if el != nil {
		return found(el), nil
	}
	return continueWith(oldest.HeaderHash), nil
}

func (c *Cascade) headerDeleted(ctx context.Context, hash holohash.HeaderHash) (bool, error) {
	deletes, err := c.meta.GetDeletesOnHeader(ctx, hash)
	if err != nil {
		return false, storeErr("get deletes", err)
	}
	return len(deletes) > 0, nil
}
