// Package network defines the peer network capability the cascade fetches
// from, the wire shapes of its answers, and in-process implementations:
// an Authority serving from local stores, a fan-out over several networks
// and a wrapper coalescing identical concurrent requests.
package network

import (
	"context"
	"time"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
)

// Network asks DHT authorities for data. Every call may return several
// responses, one per authority that answered; all of them are evidence to
// merge, not alternatives. Transport failures are returned as errors and
// are never reported as empty results.
type Network interface {
	Get(ctx context.Context, hash holohash.AnyDhtHash, opts GetOptions) ([]GetElementResponse, error)
	GetMeta(ctx context.Context, hash holohash.AnyDhtHash, opts GetMetaOptions) ([]MetadataSet, error)
	GetLinks(ctx context.Context, key WireLinkMetaKey, opts GetLinksOptions) ([]GetLinksResponse, error)
}

// GetOptions configures Get.
type GetOptions struct {
	// Timeout bounds the request. Zero leaves it to the network.
	Timeout time.Duration
	// AllLiveHeadersWithMetadata asks authorities for every live header
	// together with all deletes and updates.
	AllLiveHeadersWithMetadata bool
}

// GetMetaOptions configures GetMeta.
type GetMetaOptions struct {
	Timeout time.Duration
}

// GetLinksOptions configures GetLinks.
type GetLinksOptions struct {
	Timeout time.Duration
}

// withTimeout applies d to ctx when set.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
