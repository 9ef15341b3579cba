// Package cache memoizes KPI results for callers that evaluate the same
// selector state repeatedly. The engine itself is stateless; the cache is
// owned by the caller and keyed by a data version so a reload invalidates
// everything computed from the previous data.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/internal/logging"
)

// entry is the stored form. NoData marks an empty selection so it is
// cached like any other result.
type entry struct {
	NoData bool              `json:"noData,omitempty"`
	Result *engine.KPIResult `json:"result,omitempty"`
}

// ComputeFunc produces the KPI result on a miss. A nil result means the
// selection holds no records.
type ComputeFunc func(ctx context.Context) (*engine.KPIResult, error)

// KPICache de-duplicates concurrent identical computations and stores
// their results in a Store.
type KPICache struct {
	store   Store
	ttl     time.Duration
	logger  logging.Logger
	metrics *Metrics
	group   singleflight.Group
}

// Option configures a KPICache.
type Option func(*KPICache)

// WithTTL sets the entry lifetime. Zero keeps entries until invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(c *KPICache) { c.ttl = ttl }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *KPICache) { c.logger = logging.OrNop(l) }
}

// WithMetrics enables prometheus counters.
func WithMetrics(m *Metrics) Option {
	return func(c *KPICache) { c.metrics = m }
}

// New creates a KPICache over store. A nil store means an in-memory one.
func New(store Store, opts ...Option) *KPICache {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &KPICache{store: store, logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the cached result for key, running compute on a
// miss. Concurrent callers with the same key share one computation. The
// bool reports whether the result came from the store. Store failures are
// logged and fall through to compute; only compute errors are returned.
func (c *KPICache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (*engine.KPIResult, bool, error) {
	if e, ok := c.load(ctx, key, true); ok {
		return e.Result, true, nil
	}

	type outcome struct {
		result *engine.KPIResult
		hit    bool
	}
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// A caller that finished between our load and Do has stored already.
		if e, ok := c.load(ctx, key, false); ok {
			return outcome{e.Result, true}, nil
		}
		c.metrics.computed()
		res, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.save(ctx, key, entry{NoData: res == nil, Result: res})
		return outcome{result: res}, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache: compute %s: %w", key, err)
	}
	if shared {
		c.metrics.shared()
	}
	o := v.(outcome)
	return o.result, o.hit, nil
}

// Calculate is GetOrCompute for engine.Calculate over view filtered by f.
// version identifies the data behind view.
func (c *KPICache) Calculate(ctx context.Context, version string, view engine.RecordView, f engine.FilterState, opts engine.KPIOptions) (*engine.KPIResult, bool, error) {
	key := Key(version, "kpi", f, opts)
	return c.GetOrCompute(ctx, key, func(context.Context) (*engine.KPIResult, error) {
		return engine.Calculate(engine.ApplyFilters(view, f), opts), nil
	})
}

// Invalidate drops every entry computed under version.
func (c *KPICache) Invalidate(ctx context.Context, version string) (int64, error) {
	n, err := c.store.DeleteByPrefix(ctx, versionPrefix(version))
	if err != nil {
		return n, fmt.Errorf("cache: invalidate %q: %w", version, err)
	}
	c.logger.Info("cache invalidated", logging.String("version", version), logging.Int64("entries", n))
	return n, nil
}

// load reads key from the store. counted selects whether the lookup is
// recorded in the metrics.
func (c *KPICache) load(ctx context.Context, key string, counted bool) (entry, bool) {
	record := func(outcome string) {
		if counted {
			c.metrics.lookup(outcome)
		}
	}

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			record("miss")
		} else {
			record("error")
			c.logger.Warn("cache read failed", logging.String("key", key), logging.Err(err))
		}
		return entry{}, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		record("error")
		c.logger.Warn("cache entry corrupt", logging.String("key", key), logging.Err(err))
		return entry{}, false
	}
	record("hit")
	return e, true
}

func (c *KPICache) save(ctx context.Context, key string, e entry) {
	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn("cache encode failed", logging.String("key", key), logging.Err(err))
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache write failed", logging.String("key", key), logging.Err(err))
		return
	}
	c.logger.Debug("cache stored", logging.String("key", key), logging.Bool("no_data", e.NoData))
}
