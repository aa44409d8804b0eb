package cascade

import (
	"context"
	"fmt"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/i5heu/ouroboros-cascade/pkg/network"
	"github.com/i5heu/ouroboros-cascade/pkg/store"
)

func (c *Cascade) networkFailed(ctx context.Context, op string, basis fmt.Stringer, err error) error {
	c.metrics.networkErrors.Add(ctx, 1, opAttr(op))
	return &TransportError{Op: op, Basis: basis.String(), Err: err}
}

// merge puts el into the cache and integrates its ops.
func (c *Cascade) merge(ctx context.Context, el model.Element) error {
	if err := store.Merge(ctx, c.cache.Elements, c.cache.Meta, el); err != nil {
		return storeErr("merge", err)
	}
	c.metrics.mergedElements.Add(ctx, 1)
	return nil
}

func (c *Cascade) mergeGroup(ctx context.Context, g model.ElementGroup) error {
	if err := store.MergeGroup(ctx, c.cache.Elements, c.cache.Meta, g); err != nil {
		return storeErr("merge group", err)
	}
	c.metrics.mergedElements.Add(ctx, int64(g.Len()))
	return nil
}

// fetchElementViaEntry asks the network for an entry and merges the live
// headers, deletes and updates of every answer into the cache.
func (c *Cascade) fetchElementViaEntry(
	ctx context.Context,
	hash holohash.EntryHash,
	opts network.GetOptions,
) error {
	c.metrics.networkRequests.Add(ctx, 1, opAttr("get"))
	responses, err := c.net.Get(ctx, holohash.EntryAddress(hash), opts)
	if err != nil {
		return c.networkFailed(ctx, "get", hash, err)
	}

	for _, resp := range responses {
		full, ok := resp.(network.GetEntryFullResponse)
		if !ok {
			c.log.Error("header response to an entry request",
				logKeyHash, hash)
			continue
		}
		if full.Raw == nil {
			continue
		}
		if err := c.mergeRawEntry(ctx, hash, full.Raw); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cascade) mergeRawEntry(
	ctx context.Context,
	hash holohash.EntryHash,
	raw *network.RawGetEntryResponse,
) error {
	if got := raw.EntryHash(); got != hash {
		return c.networkFailed(ctx, "get", hash,
			fmt.Errorf("answer carries entry %s", got))
	}

	if len(raw.LiveHeaders) > 0 {
		group, err := raw.ElementGroup()
		if err != nil {
			return c.networkFailed(ctx, "get", hash, err)
		}
		if err := c.mergeGroup(ctx, group); err != nil {
			return err
		}
	}

	for _, d := range raw.Deletes {
		el, err := d.Element()
		if err != nil {
			return c.networkFailed(ctx, "get", hash, err)
		}
		if err := c.merge(ctx, el); err != nil {
			return err
		}
	}
	for _, u := range raw.Updates {
		el, err := u.Element()
		if err != nil {
			return c.networkFailed(ctx, "get", hash, err)
		}
		if err := c.merge(ctx, el); err != nil {
			return err
		}
	}
	return nil
}

// fetchElementViaHeader asks the network for a header and merges the
// element and the delete on it, if any answer carries one.
func (c *Cascade) fetchElementViaHeader(
	ctx context.Context,
	hash holohash.HeaderHash,
	opts network.GetOptions,
) error {
	c.metrics.networkRequests.Add(ctx, 1, opAttr("get"))
	responses, err := c.net.Get(ctx, holohash.HeaderAddress(hash), opts)
	if err != nil {
		return c.networkFailed(ctx, "get", hash, err)
	}

	for _, resp := range responses {
		hr, ok := resp.(network.GetHeaderResponse)
		if !ok {
			c.log.Error("entry response to a header request",
				logKeyHash, hash)
			continue
		}
		if hr.Element == nil {
			continue
		}
		el, del, err := hr.Element.Elements()
		if err != nil {
			return c.networkFailed(ctx, "get", hash, err)
		}
		if el.HeaderHash() != hash {
			return c.networkFailed(ctx, "get", hash,
				fmt.Errorf("answer carries header %s", el.HeaderHash()))
		}
		if err := c.merge(ctx, el); err != nil {
			return err
		}
		if del != nil {
			if err := c.merge(ctx, *del); err != nil {
				return err
			}
		}
	}
	return nil
}

// fetchLinks asks the network for the links matching key and merges every
// link add and remove into the cache.
func (c *Cascade) fetchLinks(
	ctx context.Context,
	key model.LinkMetaKey,
	opts network.GetLinksOptions,
) error {
	c.metrics.networkRequests.Add(ctx, 1, opAttr("get_links"))
	responses, err := c.net.GetLinks(ctx, network.WireLinkMetaKey(key), opts)
	if err != nil {
		return c.networkFailed(ctx, "get_links", key.Base, err)
	}

	for _, resp := range responses {
		for _, add := range resp.LinkAdds {
			el, err := add.Element()
			if err != nil {
				return c.networkFailed(ctx, "get_links", key.Base, err)
			}
			if err := c.merge(ctx, el); err != nil {
				return err
			}
		}
		for _, rm := range resp.LinkRemoves {
			el, err := rm.Element()
			if err != nil {
				return c.networkFailed(ctx, "get_links", key.Base, err)
			}
			if err := c.merge(ctx, el); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetMeta asks the network for the raw metadata on hash and registers it
// in the cache. Headers are only registered on entry bases. Statuses in
// the answers are returned but never registered: the cache derives its own.
func (c *Cascade) GetMeta(
	ctx context.Context,
	hash holohash.AnyDhtHash,
	opts network.GetMetaOptions,
) (sets []network.MetadataSet, err error) {
	ctx, end := c.begin(ctx, "GetMeta", hash.String())
	defer end(&err)

	c.metrics.networkRequests.Add(ctx, 1, opAttr("get_meta"))
	sets, err = c.net.GetMeta(ctx, hash, opts)
	if err != nil {
		return nil, c.networkFailed(ctx, "get_meta", hash, err)
	}

	register := func(val store.SysMetaVal) error { return nil }
	if entry, ok := hash.AsEntry(); ok {
		register = func(val store.SysMetaVal) error {
			return c.cache.Meta.RegisterRawOnEntry(ctx, entry, val)
		}
	} else if header, ok := hash.AsHeader(); ok {
		register = func(val store.SysMetaVal) error {
			return c.cache.Meta.RegisterRawOnHeader(ctx, header, val)
		}
	}

	for _, set := range sets {
		if _, isEntry := hash.AsEntry(); isEntry {
			for _, h := range set.Headers {
				if err := register(store.NewEntryHeaderVal(h)); err != nil {
					return nil, storeErr("register meta", err)
				}
			}
		}
		for _, h := range set.Deletes {
			if err := register(store.DeleteVal(h)); err != nil {
				return nil, storeErr("register meta", err)
			}
		}
		for _, h := range set.Updates {
			if err := register(store.UpdateVal(h)); err != nil {
				return nil, storeErr("register meta", err)
			}
		}
	}
	return sets, nil
}
