/*
Package ouroboros runs a cell: a local vault of committed elements, a cache
of what was learned from peers, and the cascade that resolves DHT
addresses across both and the network.
*/
package ouroboros

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/i5heu/ouroboros-cascade/internal/badgerstore"
	"github.com/i5heu/ouroboros-cascade/pkg/cascade"
	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
	"github.com/i5heu/ouroboros-cascade/pkg/network"
	"github.com/i5heu/ouroboros-cascade/pkg/store"
	"github.com/i5heu/ouroboros-cascade/pkg/store/memstore"
	"github.com/i5heu/ouroboros-cascade/pkg/validate"
)

var (
	ErrNotStarted       = errors.New("ouroboros: cell not started")
	ErrClosed           = errors.New("ouroboros: cell closed")
	ErrInvalidSignature = errors.New("ouroboros: invalid header signature")
)

const (
	logKeyPath   = "path"
	logKeyHeader = "header"
	logKeyEntry  = "entry"
	logKeyStatus = "status"
	logKeyReason = "reason"
	logKeyPeers  = "peers"
)

// cacheStore is what the cell merges network results into.
type cacheStore interface {
	store.ElementStore
	store.MetadataStore
}

// Cell owns the vault and cache of one agent and builds a cascade for
// every read.
type Cell struct {
	log    *slog.Logger
	config Config

	peers      []network.Network
	validators *validate.Registry
	meter      metric.MeterProvider
	tracer     trace.TracerProvider

	mu      sync.RWMutex
	vault   *badgerstore.Store
	cache   cacheStore
	net     network.Network
	metrics *cascade.Metrics

	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
}

// Option configures a Cell.
type Option func(*Cell)

// WithPeers adds networks the cell fetches from. Requests go to all of
// them and identical concurrent requests are coalesced.
func WithPeers(peers ...network.Network) Option {
	return func(c *Cell) { c.peers = append(c.peers, peers...) }
}

// WithValidator registers a validation callback under name, see
// validate.CallbackNames.
func WithValidator(name string, cb validate.Callback) Option {
	return func(c *Cell) { c.validators.Register(name, cb) }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Cell) { c.meter = mp }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Cell) { c.tracer = tp }
}

// New constructs a cell handle. New does not open any store. Call Start
// before use.
func New(conf Config, opts ...Option) (*Cell, error) { // A
	if len(conf.Paths) == 0 {
		return nil, fmt.Errorf("at least one path must be provided in config")
	}
	if conf.Logger == nil {
		l, err := defaultLogger(conf.LogLevel)
		if err != nil {
			return nil, err
		}
		conf.Logger = l
	}
	c := &Cell{
		log:        conf.Logger,
		config:     conf,
		validators: validate.NewRegistry(),
		meter:      metricnoop.NewMeterProvider(),
		tracer:     tracenoop.NewTracerProvider(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start opens the vault and the cache. Start is safe to call multiple
// times; only the first call has effect.
func (c *Cell) Start(ctx context.Context) error { // A
	var startErr error
	c.startOnce.Do(func() {
		dataRoot := c.config.Paths[0]
		if err := os.MkdirAll(dataRoot, 0o700); err != nil {
			startErr = fmt.Errorf("mkdir %s: %w", dataRoot, err)
			return
		}

		vault, err := badgerstore.Open(badgerstore.Options{
			Path:          filepath.Join(dataRoot, "vault"),
			MinimumFreeGB: c.config.MinimumFreeGB,
			Logger:        c.log,
		})
		if err != nil {
			startErr = fmt.Errorf("open vault: %w", err)
			return
		}

		var cache cacheStore
		if c.config.CacheInMemory {
			cache = memstore.New()
		} else {
			cache, err = badgerstore.Open(badgerstore.Options{
				Path:          filepath.Join(dataRoot, "cache"),
				MinimumFreeGB: c.config.MinimumFreeGB,
				Logger:        c.log,
			})
			if err != nil {
				_ = vault.Close()
				startErr = fmt.Errorf("open cache: %w", err)
				return
			}
		}

		metrics, err := cascade.NewMetrics(c.meter)
		if err != nil {
			_ = vault.Close()
			startErr = fmt.Errorf("cascade metrics: %w", err)
			return
		}

		c.mu.Lock()
		c.vault = vault
		c.cache = cache
		c.net = network.Coalesce(network.NewMulti(c.peers...))
		c.metrics = metrics
		c.mu.Unlock()

		c.started.Store(true)
		c.log.Info("cell started", logKeyPath, dataRoot, logKeyPeers, len(c.peers))
	})
	return startErr
}

// Run starts the cell, then blocks until ctx is canceled, and finally
// performs a bounded graceful shutdown.
func (c *Cell) Run(ctx context.Context) error { // A
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.Close(shutdownCtx)
}

// Close releases the stores. Close is idempotent.
func (c *Cell) Close(ctx context.Context) error { // A
	var closeErr error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		vault, cache := c.vault, c.cache
		c.vault, c.cache = nil, nil
		c.mu.Unlock()

		if vault != nil {
			if err := vault.Close(); err != nil {
				closeErr = errors.Join(closeErr, fmt.Errorf("close vault: %w", err))
			}
		}
		if bs, ok := cache.(*badgerstore.Store); ok {
			if err := bs.Close(); err != nil {
				closeErr = errors.Join(closeErr, fmt.Errorf("close cache: %w", err))
			}
		}
		c.log.Info("cell closed")
	})
	return closeErr
}

func (c *Cell) handles() (*badgerstore.Store, cacheStore, error) { // A
	if !c.started.Load() {
		return nil, nil, ErrNotStarted
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vault == nil {
		return nil, nil, ErrClosed
	}
	return c.vault, c.cache, nil
}

// Authority serves the vault of the cell to other cells.
func (c *Cell) Authority() (*network.Authority, error) { // A
	vault, _, err := c.handles()
	if err != nil {
		return nil, err
	}
	return network.NewAuthority(vault, vault, c.log), nil
}

// Commit verifies el, stores it in the vault and integrates its ops. An
// element carrying an entry is validated and a non-Live verdict is
// recorded as the status of the entry. The returned status is the verdict,
// Live for elements without entry.
func (c *Cell) Commit(ctx context.Context, el model.Element) (model.EntryDhtStatus, error) { // A
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	vault, _, err := c.handles()
	if err != nil {
		return 0, err
	}
	if !el.SignedHeader.Verify() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidSignature, el.HeaderHash())
	}

	if err := store.Merge(ctx, vault, vault, el); err != nil {
		return 0, fmt.Errorf("commit %s: %w", el.HeaderHash(), err)
	}
	if el.Entry == nil {
		return model.StatusLive, nil
	}

	verdict := c.validators.Validate(ctx, *el.Entry)
	status := verdict.Status()
	if status != model.StatusLive {
		entry := el.Entry.Hash()
		if err := vault.RegisterStatus(ctx, entry, status); err != nil {
			return 0, fmt.Errorf("record status of %s: %w", entry, err)
		}
		c.log.Warn("entry failed validation",
			logKeyEntry, entry, logKeyStatus, status, logKeyReason, verdict.Reason)
	}
	c.log.Debug("committed", logKeyHeader, el.HeaderHash())
	return status, nil
}

// Cascade builds a cascade over the cell's stores for one operation.
func (c *Cell) Cascade() (*cascade.Cascade, error) { // A
	vault, cache, err := c.handles()
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	net, metrics := c.net, c.metrics
	c.mu.RUnlock()
	return cascade.New(
		cascade.Vault{Elements: vault, Meta: vault},
		cascade.Cache{Elements: cache, Meta: cache},
		net,
		cascade.WithLogger(c.log),
		cascade.WithMetrics(metrics),
		cascade.WithTracerProvider(c.tracer),
	), nil
}

func (c *Cell) getOptions() network.GetOptions {
	return network.GetOptions{Timeout: c.config.NetworkTimeout}
}

// Get resolves hash to its live element.
func (c *Cell) Get(ctx context.Context, hash holohash.AnyDhtHash) (*model.Element, error) { // A
	cas, err := c.Cascade()
	if err != nil {
		return nil, err
	}
	return cas.DhtGet(ctx, hash, c.getOptions())
}

// GetDetails returns the full CRUD view of hash.
func (c *Cell) GetDetails(ctx context.Context, hash holohash.AnyDhtHash) (model.Details, error) { // A
	cas, err := c.Cascade()
	if err != nil {
		return nil, err
	}
	return cas.GetDetails(ctx, hash, c.getOptions())
}

// Retrieve returns an element regardless of its liveness.
func (c *Cell) Retrieve(ctx context.Context, hash holohash.AnyDhtHash) (*model.Element, error) { // A
	cas, err := c.Cascade()
	if err != nil {
		return nil, err
	}
	return cas.Retrieve(ctx, hash, c.getOptions())
}

// GetLinks returns the live links selected by key.
func (c *Cell) GetLinks(ctx context.Context, key model.LinkMetaKey) ([]model.Link, error) { // A
	cas, err := c.Cascade()
	if err != nil {
		return nil, err
	}
	return cas.DhtGetLinks(ctx, key, network.GetLinksOptions{Timeout: c.config.NetworkTimeout})
}

// GetLinkDetails returns every link add selected by key with its removes.
func (c *Cell) GetLinkDetails(ctx context.Context, key model.LinkMetaKey) ([]model.LinkDetail, error) { // A
	cas, err := c.Cascade()
	if err != nil {
		return nil, err
	}
	return cas.GetLinkDetails(ctx, key, network.GetLinksOptions{Timeout: c.config.NetworkTimeout})
}

// GetMeta fetches the raw metadata peers hold on hash into the cache.
func (c *Cell) GetMeta(ctx context.Context, hash holohash.AnyDhtHash) ([]network.MetadataSet, error) { // A
	cas, err := c.Cascade()
	if err != nil {
		return nil, err
	}
	return cas.GetMeta(ctx, hash, network.GetMetaOptions{Timeout: c.config.NetworkTimeout})
}
