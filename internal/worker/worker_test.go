package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"impact-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func startTestPool(t *testing.T, workers, queue int) (*WorkingPool, context.CancelFunc, *sync.WaitGroup) {
	t.Helper()
	pool := NewWorkingPool(workers, queue)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go pool.Start(ctx, &wg)
	return pool, cancel, &wg
}

type fakeHierarchy struct{}

func (fakeHierarchy) Country() string   { return "Uganda" }
func (fakeHierarchy) Regions() []string { return []string{"Northern", "Western"} }
func (fakeHierarchy) SubRegions(region string) []string {
	switch region {
	case "Northern":
		return []string{"Acholi", "Lango"}
	case "Western":
		return []string{"Ankole"}
	}
	return nil
}

type recordingAggregator struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
	err   error
}

func (a *recordingAggregator) Aggregate(_ context.Context, scope models.GeoScope, period models.Period) (*models.ImpactAggregate, error) {
	a.mu.Lock()
	a.calls = append(a.calls, string(scope.Level)+":"+scope.ID+":"+string(period))
	a.mu.Unlock()
	if a.done != nil {
		a.done <- struct{}{}
	}
	if a.err != nil {
		return nil, a.err
	}
	return &models.ImpactAggregate{}, nil
}

// ============================================================================
// WORKING POOL
// ============================================================================

func TestWorkingPool_RunsJobs(t *testing.T) {
	pool, cancel, wg := startTestPool(t, 3, 10)

	var ran atomic.Int32
	done := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.SubmitJob(context.Background(), func(ctx context.Context) error {
			ran.Add(1)
			done <- struct{}{}
			return nil
		}))
	}
	for i := 0; i < 5; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job did not run")
		}
	}

	cancel()
	wg.Wait()
	assert.Equal(t, int32(5), ran.Load())
	completed, failed := pool.Stats()
	assert.Equal(t, int64(5), completed)
	assert.Equal(t, int64(0), failed)
}

func TestWorkingPool_RecoversPanicsAndCountsFailures(t *testing.T) {
	pool, cancel, wg := startTestPool(t, 1, 4)

	done := make(chan struct{}, 3)
	require.NoError(t, pool.SubmitJob(context.Background(), func(ctx context.Context) error {
		defer func() { done <- struct{}{} }()
		panic("boom")
	}))
	require.NoError(t, pool.SubmitJob(context.Background(), func(ctx context.Context) error {
		defer func() { done <- struct{}{} }()
		return errors.New("failed")
	}))
	require.NoError(t, pool.SubmitJob(context.Background(), func(ctx context.Context) error {
		defer func() { done <- struct{}{} }()
		return nil
	}))
	for i := 0; i < 3; i++ {
		<-done
	}

	cancel()
	wg.Wait()
	completed, failed := pool.Stats()
	assert.Equal(t, int64(1), completed)
	assert.Equal(t, int64(2), failed)
}

func TestWorkingPool_SubmitAfterStop(t *testing.T) {
	pool, cancel, wg := startTestPool(t, 1, 1)
	cancel()
	wg.Wait()

	err := pool.SubmitJob(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestWorkingPool_SubmitRespectsContext(t *testing.T) {
	// no workers are started, so the queue fills up
	pool := NewWorkingPool(1, 1)
	require.NoError(t, pool.SubmitJob(context.Background(), func(ctx context.Context) error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.SubmitJob(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ============================================================================
// WARM SCHEDULER
// ============================================================================

func TestWarmScheduler_Scopes(t *testing.T) {
	s := NewWarmScheduler("@every 1h", NewWorkingPool(1, 1), &recordingAggregator{}, fakeHierarchy{}, time.Second)

	scopes := s.Scopes()
	require.Len(t, scopes, 6)
	assert.Equal(t, models.GeoScope{Level: models.GeoLevelCountry, ID: "Uganda"}, scopes[0])
	assert.Equal(t, models.GeoScope{Level: models.GeoLevelRegion, ID: "Northern"}, scopes[1])
	assert.Equal(t, models.GeoScope{Level: models.GeoLevelSubRegion, ID: "Ankole"}, scopes[5])
}

func TestWarmScheduler_WarmAll(t *testing.T) {
	pool, cancel, wg := startTestPool(t, 2, 32)
	defer func() {
		cancel()
		wg.Wait()
	}()

	agg := &recordingAggregator{done: make(chan struct{}, 32)}
	s := NewWarmScheduler("@every 1h", pool, agg, fakeHierarchy{}, time.Second)

	n, err := s.WarmAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18, n, "6 scopes x 3 periods")

	for i := 0; i < n; i++ {
		select {
		case <-agg.done:
		case <-time.After(2 * time.Second):
			t.Fatal("warm job did not run")
		}
	}

	agg.mu.Lock()
	calls := append([]string(nil), agg.calls...)
	agg.mu.Unlock()
	sort.Strings(calls)
	assert.Contains(t, calls, "country:Uganda:FY")
	assert.Contains(t, calls, "subregion:Lango:QTR")
	assert.Contains(t, calls, "region:Western:TERM")
}

func TestWarmScheduler_InvalidSchedule(t *testing.T) {
	s := NewWarmScheduler("not a schedule", NewWorkingPool(1, 1), &recordingAggregator{}, fakeHierarchy{}, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.Error(t, s.Start(ctx))
}
