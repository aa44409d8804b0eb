package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/i5heu/ouroboros-cascade/pkg/store"
)

// ErrInvalidBasis is returned for an address that is neither an entry nor
// a header.
var ErrInvalidBasis = errors.New("network: basis is neither entry nor header")

// Authority answers network requests from a local element and metadata
// store, the way a peer holding the data would. It lets cells serve each
// other in-process.
type Authority struct {
	elements store.ElementReader
	meta     store.MetadataReader
	log      *slog.Logger
}

// NewAuthority serves from elements and meta. log may be nil.
func NewAuthority(
	elements store.ElementReader,
	meta store.MetadataReader,
	log *slog.Logger,
) *Authority {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Authority{elements: elements, meta: meta, log: log}
}

func (a *Authority) Get(
	ctx context.Context,
	hash holohash.AnyDhtHash,
	opts GetOptions,
) ([]GetElementResponse, error) {
	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	if entry, ok := hash.AsEntry(); ok {
		raw, err := a.entryResponse(ctx, entry, opts)
		if err != nil {
			return nil, err
		}
		return []GetElementResponse{GetEntryFullResponse{Raw: raw}}, nil
	}
	if header, ok := hash.AsHeader(); ok {
		we, err := a.headerResponse(ctx, header)
		if err != nil {
			return nil, err
		}
		return []GetElementResponse{GetHeaderResponse{Element: we}}, nil
	}
	return nil, ErrInvalidBasis
}

func (a *Authority) entryResponse(
	ctx context.Context,
	hash holohash.EntryHash,
	opts GetOptions,
) (*RawGetEntryResponse, error) {
	if withheld, err := a.withheld(ctx, hash); err != nil || withheld {
		return nil, err
	}
	entry, err := a.elements.GetEntry(ctx, hash)
	if err != nil || entry == nil {
		return nil, err
	}
	raw := &RawGetEntryResponse{Entry: *entry, EntryType: model.EntryTypeOf(*entry)}

	headers, err := a.meta.GetHeaders(ctx, hash)
	if err != nil {
		return nil, err
	}
	for _, h := range headers {
		deletes, err := a.meta.GetDeletesOnHeader(ctx, h.HeaderHash)
		if err != nil {
			return nil, err
		}
		if len(deletes) > 0 {
			continue
		}
		shh, err := a.elements.GetHeader(ctx, h.HeaderHash)
		if err != nil {
			return nil, err
		}
		if shh == nil {
			continue
		}
		if _, et, ok := shh.Header().EntryData(); ok {
			raw.EntryType = et
		}
		raw.LiveHeaders = append(raw.LiveHeaders, WireNewEntryHeader{Header: shh.SignedHeader()})
	}

	deletes, err := a.meta.GetDeletesOnEntry(ctx, hash)
	if err != nil {
		return nil, err
	}
	for _, d := range deletes {
		wd, err := a.wireDelete(ctx, d.HeaderHash)
		if err != nil {
			return nil, err
		}
		if wd != nil {
			raw.Deletes = append(raw.Deletes, *wd)
		}
	}

	if opts.AllLiveHeadersWithMetadata {
		updates, err := a.meta.GetUpdates(ctx, holohash.EntryAddress(hash))
		if err != nil {
			return nil, err
		}
		for _, u := range updates {
			shh, err := a.elements.GetHeader(ctx, u.HeaderHash)
			if err != nil {
				return nil, err
			}
			if shh == nil {
				continue
			}
			update, err := model.AsUpdate(shh.Header())
			if err != nil {
				a.log.Warn("skipping update record", "header", u.HeaderHash.String(), "error", err)
				continue
			}
			raw.Updates = append(raw.Updates, WireUpdateRelationship{
				Update:    update,
				Signature: shh.Signature(),
			})
		}
	}

	if len(raw.LiveHeaders) == 0 && len(raw.Deletes) == 0 {
		return nil, nil
	}
	return raw, nil
}

// withheld reports whether entry carries a non-Live status override, such
// as a Rejected validation verdict. Such entries are not served.
func (a *Authority) withheld(ctx context.Context, entry holohash.EntryHash) (bool, error) {
	status, ok, err := a.meta.StatusOverride(ctx, entry)
	if err != nil {
		return false, err
	}
	if ok && status != model.StatusLive {
		a.log.Debug("withholding entry", "entry", entry.String(), "status", status)
		return true, nil
	}
	return false, nil
}

func (a *Authority) wireDelete(
	ctx context.Context,
	hash holohash.HeaderHash,
) (*WireDelete, error) {
	shh, err := a.elements.GetHeader(ctx, hash)
	if err != nil || shh == nil {
		return nil, err
	}
	d, err := model.AsDelete(shh.Header())
	if err != nil {
		a.log.Warn("skipping delete record", "header", hash.String(), "error", err)
		return nil, nil
	}
	return &WireDelete{Delete: d, Signature: shh.Signature()}, nil
}

func (a *Authority) headerResponse(
	ctx context.Context,
	hash holohash.HeaderHash,
) (*WireElement, error) {
	el, err := a.elements.GetElement(ctx, hash)
	if err != nil || el == nil {
		return nil, err
	}
	if entry, _, ok := el.Header().EntryData(); ok {
		if withheld, err := a.withheld(ctx, entry); err != nil || withheld {
			return nil, err
		}
	}
	we := &WireElement{SignedHeader: el.SignedHeader.SignedHeader(), Entry: el.Entry}

	deletes, err := a.meta.GetDeletesOnHeader(ctx, hash)
	if err != nil {
		return nil, err
	}
	for _, d := range deletes {
		wd, err := a.wireDelete(ctx, d.HeaderHash)
		if err != nil {
			return nil, err
		}
		if wd != nil {
			we.Deleted = wd
			break
		}
	}
	return we, nil
}

func (a *Authority) GetMeta(
	ctx context.Context,
	hash holohash.AnyDhtHash,
	opts GetMetaOptions,
) ([]MetadataSet, error) {
	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	var set MetadataSet
	var err error
	switch {
	case hash.Role() == holohash.RoleEntry:
		entry, _ := hash.AsEntry()
		if set.Headers, err = a.meta.GetHeaders(ctx, entry); err != nil {
			return nil, err
		}
		if set.Deletes, err = a.meta.GetDeletesOnEntry(ctx, entry); err != nil {
			return nil, err
		}
		status, err := a.meta.GetDhtStatus(ctx, entry)
		if err != nil {
			return nil, err
		}
		set.Status = &status
	case hash.Role() == holohash.RoleHeader:
		header, _ := hash.AsHeader()
		if set.Deletes, err = a.meta.GetDeletesOnHeader(ctx, header); err != nil {
			return nil, err
		}
	default:
		return nil, ErrInvalidBasis
	}
	if set.Updates, err = a.meta.GetUpdates(ctx, hash); err != nil {
		return nil, err
	}
	return []MetadataSet{set}, nil
}

func (a *Authority) GetLinks(
	ctx context.Context,
	key WireLinkMetaKey,
	opts GetLinksOptions,
) ([]GetLinksResponse, error) {
	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	links, err := a.meta.GetLinksAll(ctx, model.LinkMetaKey(key))
	if err != nil {
		return nil, err
	}
	var resp GetLinksResponse
	for _, l := range links {
		shh, err := a.elements.GetHeader(ctx, l.LinkAddHash)
		if err != nil {
			return nil, err
		}
		if shh == nil {
			continue
		}
		add, err := model.AsCreateLink(shh.Header())
		if err != nil {
			return nil, fmt.Errorf("link add %s: %w", l.LinkAddHash, err)
		}
		resp.LinkAdds = append(resp.LinkAdds, WireCreateLink{CreateLink: add, Signature: shh.Signature()})

		removes, err := a.meta.GetLinkRemovesOnLinkAdd(ctx, l.LinkAddHash)
		if err != nil {
			return nil, err
		}
		for _, r := range removes {
			rshh, err := a.elements.GetHeader(ctx, r.HeaderHash)
			if err != nil {
				return nil, err
			}
			if rshh == nil {
				continue
			}
			remove, err := model.AsDeleteLink(rshh.Header())
			if err != nil {
				return nil, fmt.Errorf("link remove %s: %w", r.HeaderHash, err)
			}
			resp.LinkRemoves = append(resp.LinkRemoves, WireDeleteLink{DeleteLink: remove, Signature: rshh.Signature()})
		}
	}
	return []GetLinksResponse{resp}, nil
}

var _ Network = (*Authority)(nil)
