// Package cascade resolves DHT addresses to their currently valid data by
// consulting, in order, the authoritative local vault, the local cache and
// the peer network.
//
// A Cascade is cheap and meant to be built for one operation. Everything it
// learns from the network is merged into the cache before it answers, and
// answers are always read back from local stores. CRUD status is never
// taken from a single response: it is derived from the union of the
// metadata held in cache and vault.
package cascade

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/i5heu/ouroboros-cascade/pkg/network"
	"github.com/i5heu/ouroboros-cascade/pkg/store"
)

const instrumentationName = "github.com/i5heu/ouroboros-cascade/pkg/cascade"

const (
	logKeyRequest = "request"
	logKeyOp      = "op"
	logKeyHash    = "hash"
	logKeyError   = "error"
	logKeyCount   = "count"
	logKeyStatus  = "status"
)

// Vault is the authoritative local store. The cascade only reads from it.
type Vault struct {
	Elements store.ElementReader
	Meta     store.MetadataReader
}

// Cache is the local store the cascade merges network results into.
type Cache struct {
	Elements store.ElementStore
	Meta     store.MetadataStore
}

// Cascade answers one resolution request. It is not safe for concurrent
// use; build one per operation.
type Cascade struct {
	vault Vault
	cache Cache
	net   network.Network

	// elements reads the vault first, then the cache.
	elements *store.LayeredElements
	// meta is the union of cache and vault metadata.
	meta *store.LayeredMeta

	id      string
	log     *slog.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

type options struct {
	logger  *slog.Logger
	tracer  trace.TracerProvider
	metrics *Metrics
}

// Option configures a Cascade.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracerProvider sets the provider spans are recorded with.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithMetrics records counters on m. Build m once with NewMetrics and share
// it between cascades.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New builds a cascade over vault, cache and net.
func New(vault Vault, cache Cache, net network.Network, opts ...Option) *Cascade { // A
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.tracer == nil {
		o.tracer = tracenoop.NewTracerProvider()
	}
	if o.metrics == nil {
		o.metrics = noopMetrics()
	}
	id := uuid.NewString()
	return &Cascade{
		vault:    vault,
		cache:    cache,
		net:      net,
		elements: store.LayeredElementReader(vault.Elements, cache.Elements),
		meta:     store.Layered(cache.Meta, vault.Meta),
		id:       id,
		log:      o.logger.With(logKeyRequest, id),
		tracer:   o.tracer.Tracer(instrumentationName),
		metrics:  o.metrics,
	}
}

// RequestID identifies this cascade in logs and spans.
func (c *Cascade) RequestID() string { return c.id }

// Metrics holds the cascade instruments.
type Metrics struct {
	networkRequests metric.Int64Counter
	networkErrors   metric.Int64Counter
	localHits       metric.Int64Counter
	mergedElements  metric.Int64Counter
	duration        metric.Float64Histogram
}

// NewMetrics creates the cascade instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) { // A
	meter := mp.Meter(instrumentationName)

	networkRequests, err := meter.Int64Counter(
		"cascade.network.requests",
		metric.WithDescription("Requests sent to the peer network"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	networkErrors, err := meter.Int64Counter(
		"cascade.network.errors",
		metric.WithDescription("Failed requests to the peer network"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	localHits, err := meter.Int64Counter(
		"cascade.local.hits",
		metric.WithDescription("Operations answered from the vault without a network call"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}
	mergedElements, err := meter.Int64Counter(
		"cascade.merged.elements",
		metric.WithDescription("Elements merged into the cache"),
		metric.WithUnit("{element}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"cascade.operation.duration",
		metric.WithDescription("Duration of cascade operations"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		networkRequests: networkRequests,
		networkErrors:   networkErrors,
		localHits:       localHits,
		mergedElements:  mergedElements,
		duration:        duration,
	}, nil
}

func noopMetrics() *Metrics {
	m, err := NewMetrics(metricnoop.NewMeterProvider())
	if err != nil {
		// noop instruments never fail
		panic(err)
	}
	return m
}

func opAttr(op string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("op", op))
}

// begin starts the span of a public operation. The returned func ends it
// and records the outcome in *errp.
func (c *Cascade) begin(
	ctx context.Context,
	op string,
	hash string,
) (context.Context, func(errp *error)) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "cascade."+op,
		trace.WithAttributes(
			attribute.String("cascade.request_id", c.id),
			attribute.String("cascade.hash", hash),
		),
	)
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
			c.log.Debug("cascade operation failed",
				logKeyOp, op, logKeyHash, hash, logKeyError, *errp)
		}
		c.metrics.duration.Record(ctx,
			float64(time.Since(start).Microseconds())/1000, opAttr(op))
		span.End()
	}
}

func (c *Cascade) localHit(ctx context.Context, op string) {
	c.metrics.localHits.Add(ctx, 1, opAttr(op))
}
