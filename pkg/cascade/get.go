package cascade

import (
	"context"
	"fmt"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/i5heu/ouroboros-cascade/pkg/network"
)

// DhtGetEntry returns the oldest live element of an entry, or nil when the
// entry is not live anywhere the cascade can see.
//
// When the vault holds metadata for the entry the network is not asked.
func (c *Cascade) DhtGetEntry( // A
	ctx context.Context,
	hash holohash.EntryHash,
	opts network.GetOptions,
) (el *model.Element, err error) {
	ctx, end := c.begin(ctx, "DhtGetEntry", hash.String())
	defer end(&err)

	authoritative, err := c.vault.Meta.HasEntryMetadata(ctx, hash)
	if err != nil {
		return nil, storeErr("vault metadata", err)
	}

	if authoritative {
		c.localHit(ctx, "DhtGetEntry")
	} else if err := c.fetchElementViaEntry(ctx, hash, opts); err != nil {
		return nil, err
	}

	// deletes known to the cache still apply to vault headers
	s, err := c.searchEntry(ctx, hash)
	if err != nil {
		return nil, err
	}
	switch s.state {
	case searchFound:
		return s.element, nil
	case searchContinue:
		return c.dhtGetHeader(ctx, s.next, opts)
	default:
		return nil, nil
	}
}

// DhtGetHeader returns the element at a header address unless a delete of
// that header is known.
func (c *Cascade) DhtGetHeader( // A
	ctx context.Context,
	hash holohash.HeaderHash,
	opts network.GetOptions,
) (el *model.Element, err error) {
	ctx, end := c.begin(ctx, "DhtGetHeader", hash.String())
	defer end(&err)
	return c.dhtGetHeader(ctx, hash, opts)
}

func (c *Cascade) dhtGetHeader(
	ctx context.Context,
	hash holohash.HeaderHash,
	opts network.GetOptions,
) (*model.Element, error) {
	deleted, err := c.headerDeleted(ctx, hash)
	if err != nil || deleted {
		return nil, err
	}

	held, err := c.vault.Meta.HasRegisteredStoreElement(ctx, hash)
	if err != nil {
		return nil, storeErr("vault metadata", err)
	}
	if held {
		el, err := c.getElementLocalRaw(ctx, hash)
		if err != nil {
			return nil, err
		}
		if el != nil {
			c.localHit(ctx, "DhtGetHeader")
			return el, nil
		}
	}

	if err := c.fetchElementViaHeader(ctx, hash, opts); err != nil {
		return nil, err
	}
	// the fetch may have brought a delete along
	deleted, err = c.headerDeleted(ctx, hash)
	if err != nil || deleted {
		return nil, err
	}
	return c.getElementLocalRaw(ctx, hash)
}

// DhtGet dispatches on the role of hash.
func (c *Cascade) DhtGet( // A
	ctx context.Context,
	hash holohash.AnyDhtHash,
	opts network.GetOptions,
) (*model.Element, error) {
	if entry, ok := hash.AsEntry(); ok {
		return c.DhtGetEntry(ctx, entry, opts)
	}
	if header, ok := hash.AsHeader(); ok {
		return c.DhtGetHeader(ctx, header, opts)
	}
	return nil, fmt.Errorf("cascade: get %s: %w", hash, network.ErrInvalidBasis)
}

// GetEntryDetails returns every header, delete and update known for an
// entry after asking the network for all of them. It returns nil when the
// entry itself is not held.
func (c *Cascade) GetEntryDetails( // A
	ctx context.Context,
	hash holohash.EntryHash,
	opts network.GetOptions,
) (d *model.EntryDetails, err error) {
	ctx, end := c.begin(ctx, "GetEntryDetails", hash.String())
	defer end(&err)

	opts.AllLiveHeadersWithMetadata = true
	if err := c.fetchElementViaEntry(ctx, hash, opts); err != nil {
		return nil, err
	}
	return c.createEntryDetails(ctx, hash)
}

func (c *Cascade) createEntryDetails(
	ctx context.Context,
	hash holohash.EntryHash,
) (*model.EntryDetails, error) {
	entry, err := c.getEntryLocalRaw(ctx, hash)
	if err != nil || entry == nil {
		return nil, err
	}

	status, err := c.meta.GetDhtStatus(ctx, hash)
	if err != nil {
		return nil, storeErr("get status", err)
	}
	headerHashes, err := c.meta.GetHeaders(ctx, hash)
	if err != nil {
		return nil, storeErr("get headers", err)
	}
	deleteHashes, err := c.meta.GetDeletesOnEntry(ctx, hash)
	if err != nil {
		return nil, storeErr("get deletes", err)
	}
	updateHashes, err := c.meta.GetUpdates(ctx, holohash.EntryAddress(hash))
	if err != nil {
		return nil, storeErr("get updates", err)
	}

	headers, err := renderHeaders(ctx, c, headerHashes, identity)
	if err != nil {
		return nil, err
	}
	deletes, err := renderHeaders(ctx, c, deleteHashes, model.AsDelete)
	if err != nil {
		return nil, err
	}
	updates, err := renderHeaders(ctx, c, updateHashes, model.AsUpdate)
	if err != nil {
		return nil, err
	}

	return &model.EntryDetails{
		Entry:   *entry,
		Headers: headers,
		Deletes: deletes,
		Updates: updates,
		Status:  status,
	}, nil
}

// GetHeaderDetails returns the element at a header address with every
// delete known for it. It returns nil when the element is not held.
func (c *Cascade) GetHeaderDetails( // A
	ctx context.Context,
	hash holohash.HeaderHash,
	opts network.GetOptions,
) (d *model.ElementDetails, err error) {
	ctx, end := c.begin(ctx, "GetHeaderDetails", hash.String())
	defer end(&err)

	opts.AllLiveHeadersWithMetadata = true
	if err := c.fetchElementViaHeader(ctx, hash, opts); err != nil {
		return nil, err
	}
	return c.createElementDetails(ctx, hash)
}

func (c *Cascade) createElementDetails(
	ctx context.Context,
	hash holohash.HeaderHash,
) (*model.ElementDetails, error) {
	el, err := c.getElementLocalRaw(ctx, hash)
	if err != nil || el == nil {
		return nil, err
	}
	deleteHashes, err := c.meta.GetDeletesOnHeader(ctx, hash)
	if err != nil {
		return nil, storeErr("get deletes", err)
	}
	deletes, err := renderHeaders(ctx, c, deleteHashes, model.AsDelete)
	if err != nil {
		return nil, err
	}
	return &model.ElementDetails{Element: *el, Deletes: deletes}, nil
}

// GetDetails dispatches on the role of hash. The result is nil, an
// *model.EntryDetails or an *model.ElementDetails.
func (c *Cascade) GetDetails( // A
	ctx context.Context,
	hash holohash.AnyDhtHash,
	opts network.GetOptions,
) (model.Details, error) {
	if entry, ok := hash.AsEntry(); ok {
		d, err := c.GetEntryDetails(ctx, entry, opts)
		if err != nil || d == nil {
			return nil, err
		}
		return d, nil
	}
	if header, ok := hash.AsHeader(); ok {
		d, err := c.GetHeaderDetails(ctx, header, opts)
		if err != nil || d == nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("cascade: details %s: %w", hash, network.ErrInvalidBasis)
}

// Retrieve returns an element from local stores, asking the network only
// when nothing is held. Liveness is not checked. For an entry address the
// newest held element of the entry is returned.
func (c *Cascade) Retrieve( // A
	ctx context.Context,
	hash holohash.AnyDhtHash,
	opts network.GetOptions,
) (el *model.Element, err error) {
	ctx, end := c.begin(ctx, "Retrieve", hash.String())
	defer end(&err)

	if entry, ok := hash.AsEntry(); ok {
		el, err := c.getElementLocalRawViaEntry(ctx, entry)
		if err != nil {
			return nil, err
		}
		if el != nil {
			c.localHit(ctx, "Retrieve")
			return el, nil
		}
		if err := c.fetchElementViaEntry(ctx, entry, opts); err != nil {
			return nil, err
		}
		return c.getElementLocalRawViaEntry(ctx, entry)
	}
	if header, ok := hash.AsHeader(); ok {
		el, err := c.getElementLocalRaw(ctx, header)
		if err != nil {
			return nil, err
		}
		if el != nil {
			c.localHit(ctx, "Retrieve")
			return el, nil
		}
		if err := c.fetchElementViaHeader(ctx, header, opts); err != nil {
			return nil, err
		}
		return c.getElementLocalRaw(ctx, header)
	}
	return nil, fmt.Errorf("cascade: retrieve %s: %w", hash, network.ErrInvalidBasis)
}

// RetrieveEntry is Retrieve for the entry alone.
func (c *Cascade) RetrieveEntry( // A
	ctx context.Context,
	hash holohash.EntryHash,
	opts network.GetOptions,
) (entry *model.Entry, err error) {
	ctx, end := c.begin(ctx, "RetrieveEntry", hash.String())
	defer end(&err)

	entry, err = c.getEntryLocalRaw(ctx, hash)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		c.localHit(ctx, "RetrieveEntry")
		return entry, nil
	}
	if err := c.fetchElementViaEntry(ctx, hash, opts); err != nil {
		return nil, err
	}
	return c.getEntryLocalRaw(ctx, hash)
}

// RetrieveHeader is Retrieve for the signed header alone.
func (c *Cascade) RetrieveHeader( // A
	ctx context.Context,
	hash holohash.HeaderHash,
	opts network.GetOptions,
) (shh *model.SignedHeaderHashed, err error) {
	ctx, end := c.begin(ctx, "RetrieveHeader", hash.String())
	defer end(&err)

	shh, err = c.getHeaderLocalRaw(ctx, hash)
	if err != nil {
		return nil, err
	}
	if shh != nil {
		c.localHit(ctx, "RetrieveHeader")
		return shh, nil
	}
	if err := c.fetchElementViaHeader(ctx, hash, opts); err != nil {
		return nil, err
	}
	return c.getHeaderLocalRaw(ctx, hash)
}
