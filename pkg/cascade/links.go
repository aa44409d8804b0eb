package cascade

import (
	"context"

	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/i5heu/ouroboros-cascade/pkg/network"
)

// DhtGetLinks returns the live links selected by key, ordered by the
// timestamp and hash of their CreateLink headers.
func (c *Cascade) DhtGetLinks( // A
	ctx context.Context,
	key model.LinkMetaKey,
	opts network.GetLinksOptions,
) (links []model.Link, err error) {
	ctx, end := c.begin(ctx, "DhtGetLinks", key.Base.String())
	defer end(&err)

	if err := c.fetchLinks(ctx, key, opts); err != nil {
		return nil, err
	}
	vals, err := c.meta.GetLinks(ctx, key)
	if err != nil {
		return nil, storeErr("get links", err)
	}
	links = make([]model.Link, 0, len(vals))
	for _, v := range vals {
		links = append(links, v.Link())
	}
	return links, nil
}

// GetLinkDetails returns every link add selected by key with the removes
// registered against it, whether or not the link is still live. Records
// that are not held or not link headers are logged and skipped.
func (c *Cascade) GetLinkDetails( // A
	ctx context.Context,
	key model.LinkMetaKey,
	opts network.GetLinksOptions,
) (details []model.LinkDetail, err error) {
	ctx, end := c.begin(ctx, "GetLinkDetails", key.Base.String())
	defer end(&err)

	if err := c.fetchLinks(ctx, key, opts); err != nil {
		return nil, err
	}
	vals, err := c.meta.GetLinksAll(ctx, key)
	if err != nil {
		return nil, storeErr("get links", err)
	}

	details = make([]model.LinkDetail, 0, len(vals))
	for _, v := range vals {
		el, err := c.getElementLocalRaw(ctx, v.LinkAddHash)
		if err != nil {
			return nil, err
		}
		if el == nil {
			c.log.Warn("link add in metadata is not held",
				logKeyHash, v.LinkAddHash)
			continue
		}
		create, err := model.AsCreateLink(el.Header())
		if err != nil {
			c.log.Warn("link add is not a CreateLink",
				logKeyHash, v.LinkAddHash, logKeyError, err)
			continue
		}

		removeHashes, err := c.meta.GetLinkRemovesOnLinkAdd(ctx, v.LinkAddHash)
		if err != nil {
			return nil, storeErr("get link removes", err)
		}
		removes, err := renderHeaders(ctx, c, removeHashes, model.AsDeleteLink)
		if err != nil {
			return nil, err
		}
		details = append(details, model.LinkDetail{
			CreateHash: v.LinkAddHash,
			Create:     create,
			Deletes:    removes,
		})
	}
	c.log.Debug("link details", logKeyHash, key.Base, logKeyCount, len(details))
	return details, nil
}
