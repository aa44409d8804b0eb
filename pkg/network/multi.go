package network

import (
	"context"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"golang.org/x/sync/errgroup"
)

// Multi asks several networks concurrently and concatenates their
// answers. The first failure cancels the others and is returned.
type Multi struct {
	nets []Network
}

func NewMulti(nets ...Network) *Multi {
	return &Multi{nets: nets}
}

func fanOut[T any](
	ctx context.Context,
	nets []Network,
	call func(context.Context, Network) ([]T, error),
) ([]T, error) {
	g, ctx := errgroup.WithContext(ctx)
	results := make([][]T, len(nets))
	for i, n := range nets {
		i, n := i, n
		g.Go(func() error {
			r, err := call(ctx, n)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []T
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (m *Multi) Get(
	ctx context.Context,
	hash holohash.AnyDhtHash,
	opts GetOptions,
) ([]GetElementResponse, error) {
	return fanOut(ctx, m.nets, func(ctx context.Context, n Network) ([]GetElementResponse, error) {
		return n.Get(ctx, hash, opts)
	})
}

func (m *Multi) GetMeta(
	ctx context.Context,
	hash holohash.AnyDhtHash,
	opts GetMetaOptions,
) ([]MetadataSet, error) {
	return fanOut(ctx, m.nets, func(ctx context.Context, n Network) ([]MetadataSet, error) {
		return n.GetMeta(ctx, hash, opts)
	})
}

func (m *Multi) GetLinks(
	ctx context.Context,
	key WireLinkMetaKey,
	opts GetLinksOptions,
) ([]GetLinksResponse, error) {
	return fanOut(ctx, m.nets, func(ctx context.Context, n Network) ([]GetLinksResponse, error) {
		return n.GetLinks(ctx, key, opts)
	})
}

var _ Network = (*Multi)(nil)
