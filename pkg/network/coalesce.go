package network

import (
	"context"
	"fmt"
	"time"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"golang.org/x/sync/singleflight"
)

// sharedTimeout bounds a coalesced request whose options set no timeout.
const sharedTimeout = time.Minute

// Coalescing shares one in-flight request among identical concurrent
// calls. Callers receive the same response slices and must not modify
// them. The shared request is detached from the cancellation of the call
// that started it; each caller stops waiting when its own context ends.
type Coalescing struct {
	next  Network
	group singleflight.Group
}

func Coalesce(next Network) *Coalescing {
	return &Coalescing{next: next}
}

func share[T any](
	ctx context.Context,
	group *singleflight.Group,
	key string,
	timeout time.Duration,
	call func(context.Context) (T, error),
) (T, error) {
	if timeout <= 0 {
		timeout = sharedTimeout
	}
	ch := group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return call(shared)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}

func (c *Coalescing) Get(
	ctx context.Context,
	hash holohash.AnyDhtHash,
	opts GetOptions,
) ([]GetElementResponse, error) {
	key := fmt.Sprintf("get:%s:%t:%d", hash, opts.AllLiveHeadersWithMetadata, opts.Timeout)
	return share(ctx, &c.group, key, opts.Timeout, func(ctx context.Context) ([]GetElementResponse, error) {
		return c.next.Get(ctx, hash, opts)
	})
}

func (c *Coalescing) GetMeta(
	ctx context.Context,
	hash holohash.AnyDhtHash,
	opts GetMetaOptions,
) ([]MetadataSet, error) {
	key := fmt.Sprintf("meta:%s:%d", hash, opts.Timeout)
	return share(ctx, &c.group, key, opts.Timeout, func(ctx context.Context) ([]MetadataSet, error) {
		return c.next.GetMeta(ctx, hash, opts)
	})
}

func (c *Coalescing) GetLinks(
	ctx context.Context,
	key WireLinkMetaKey,
	opts GetLinksOptions,
) ([]GetLinksResponse, error) {
	zome := "*"
	if key.Zome != nil {
		zome = fmt.Sprint(*key.Zome)
	}
	add := "*"
	if key.LinkAdd != nil {
		add = key.LinkAdd.String()
	}
	k := fmt.Sprintf("links:%s:%s:%x:%s:%d", key.Base, zome, []byte(key.Tag), add, opts.Timeout)
	return share(ctx, &c.group, k, opts.Timeout, func(ctx context.Context) ([]GetLinksResponse, error) {
		return c.next.GetLinks(ctx, key, opts)
	})
}

var _ Network = (*Coalescing)(nil)
