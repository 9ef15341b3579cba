package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spektr-org/weekpi/engine"
	"github.com/spektr-org/weekpi/internal/logging"
	"github.com/spektr-org/weekpi/schema"
)

func testView() engine.RecordView {
	return engine.BindRecords([]schema.Record{
		{PolicyStartYear: 2025, WeekNumber: 1, ThirdLevelOrganization: "天府", CoverageType: "主全",
			SignedPremiumYuan: 1000, MaturedPremiumYuan: 1000, ReportedClaimPaymentYuan: 400, PolicyCount: 10, ClaimCaseCount: 2},
		{PolicyStartYear: 2025, WeekNumber: 2, ThirdLevelOrganization: "高新", CoverageType: "交三",
			SignedPremiumYuan: 500, MaturedPremiumYuan: 500, ReportedClaimPaymentYuan: 100, PolicyCount: 5, ClaimCaseCount: 1},
	})
}

// ============================================================================
// KEY
// ============================================================================

func TestKey_Canonical(t *testing.T) {
	a := engine.FilterState{
		Years:      []int{2025, 2024},
		Dimensions: map[string][]string{engine.DimOrganization: {"高新", "天府"}, engine.DimCoverage: nil},
	}
	b := engine.FilterState{
		Years:      []int{2024, 2025},
		Dimensions: map[string][]string{engine.DimOrganization: {" 天府", "高新", "高新"}},
	}
	opts := engine.KPIOptions{Mode: engine.ModeCumulative}

	assert.Equal(t, Key("v1", "kpi", a, opts), Key("v1", "kpi", b, opts))
	assert.NotEqual(t, Key("v1", "kpi", a, opts), Key("v2", "kpi", a, opts))
	assert.NotEqual(t, Key("v1", "kpi", a, opts), Key("v1", "report", a, opts))
	assert.NotEqual(t, Key("v1", "kpi", a, opts), Key("v1", "kpi", a, engine.KPIOptions{Mode: engine.ModeCurrent}))
	assert.Contains(t, Key("v1", "kpi", a, opts), "v1:")
}

func TestKey_DoesNotMutateInput(t *testing.T) {
	f := engine.FilterState{Weeks: []int{9, 1, 3}}
	Key("v", "kpi", f, engine.KPIOptions{})
	assert.Equal(t, []int{9, 1, 3}, f.Weeks)
}

// ============================================================================
// KPI CACHE
// ============================================================================

func TestKPICache_HitAfterCompute(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := New(NewMemoryStore(), WithMetrics(m))
	f := engine.FilterState{Dimensions: map[string][]string{engine.DimOrganization: {"天府"}}}

	first, hit, err := c.Calculate(ctx, "v1", testView(), f, engine.KPIOptions{})
	require.NoError(t, err)
	assert.False(t, hit)
	require.NotNil(t, first)
	assert.InDelta(t, 40, *first.LossRatio, 1e-9)

	second, hit, err := c.Calculate(ctx, "v1", testView(), f, engine.KPIOptions{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Computes))
}

func TestKPICache_CachesNoData(t *testing.T) {
	ctx := context.Background()
	c := New(nil)
	var calls int
	compute := func(context.Context) (*engine.KPIResult, error) {
		calls++
		return nil, nil
	}

	res, hit, err := c.GetOrCompute(ctx, "v1:empty", compute)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.False(t, hit)

	res, hit, err = c.GetOrCompute(ctx, "v1:empty", compute)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
}

func TestKPICache_ComputeErrorNotCached(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := New(store)
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(ctx, "k", func(context.Context) (*engine.KPIResult, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.Len())
}

func TestKPICache_SingleflightSharesComputation(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore())
	release := make(chan struct{})
	var computes int32

	compute := func(context.Context) (*engine.KPIResult, error) {
		atomic.AddInt32(&computes, 1)
		<-release
		return engine.Calculate(testView(), engine.KPIOptions{}), nil
	}

	var wg sync.WaitGroup
	results := make([]*engine.KPIResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, _, err := c.GetOrCompute(ctx, "v1:same", compute)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&computes))
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, 1500.0, r.Totals.SignedPremium)
	}
}

func TestKPICache_Invalidate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := New(store)
	view := testView()

	_, _, err := c.Calculate(ctx, "v1", view, engine.FilterState{}, engine.KPIOptions{})
	require.NoError(t, err)
	_, _, err = c.Calculate(ctx, "v1", view, engine.FilterState{Weeks: []int{1}}, engine.KPIOptions{})
	require.NoError(t, err)
	_, _, err = c.Calculate(ctx, "v2", view, engine.FilterState{}, engine.KPIOptions{})
	require.NoError(t, err)

	n, err := c.Invalidate(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, store.Len())

	_, hit, err := c.Calculate(ctx, "v1", view, engine.FilterState{}, engine.KPIOptions{})
	require.NoError(t, err)
	assert.False(t, hit)
}

type failingStore struct{ *MemoryStore }

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func TestKPICache_StoreErrorFallsThrough(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := failingStore{NewMemoryStore()}
	c := New(store, WithLogger(logging.NewLoggerFromCore(core)))

	res, hit, err := c.Calculate(context.Background(), "v1", testView(), engine.FilterState{}, engine.KPIOptions{})
	require.NoError(t, err)
	assert.False(t, hit)
	require.NotNil(t, res)
	assert.Equal(t, 2, logs.FilterMessage("cache read failed").Len())
}

// ============================================================================
// MEMORY STORE
// ============================================================================

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))

	v, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	now = now.Add(time.Minute)
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = s.Get(ctx, "b")
	assert.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_EvictKeepsFreshSet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "a", []byte("old"), time.Minute))
	now = now.Add(time.Minute)

	// A Set lands between the expired read and the eviction.
	require.NoError(t, s.Set(ctx, "a", []byte("new"), time.Minute))
	v, err := s.evict("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), v)
	assert.Equal(t, 1, s.Len())

	now = now.Add(time.Minute)
	_, err = s.evict("a")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Zero(t, s.Len())
	_, err = s.evict("missing")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStore_ConcurrentGetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = s.Set(ctx, "k", []byte("v"), time.Nanosecond)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _ = s.Get(ctx, "k")
			}
		}()
	}
	wg.Wait()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}
