package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/prism-lab/project-prism/internal/core/analytics"
	apperr "github.com/prism-lab/project-prism/internal/core/errors"
	"github.com/prism-lab/project-prism/internal/store"
)

// stubStore is an in-memory RecordStore that filters by range like a
// real adapter and counts calls so tests can prove the run cache
// short-circuits fetching.
type stubStore struct {
	mu        sync.Mutex
	txs       []store.Transaction
	customers []store.CustomerRecord
	products  []store.ProductRecord

	fetchErr  error
	extentErr error

	fetchCalls  int
	extentCalls int

	lastFetchStart time.Time
	lastFetchEnd   time.Time

	fetchGate    chan struct{} // when set, FetchTransactions blocks until closed
	fetchStarted chan struct{} // when set, receives one signal per fetch call
}

func (s *stubStore) FetchTransactions(ctx context.Context, start, end time.Time) ([]store.Transaction, error) {
	s.mu.Lock()
	s.fetchCalls++
	s.lastFetchStart = start
	s.lastFetchEnd = end
	gate := s.fetchGate
	started := s.fetchStarted
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: fetch transactions: %w", apperr.ErrStoreUnavailable, err)
	}
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Transaction
	for _, tx := range s.txs {
		if !tx.OccurredAt.Before(start) && tx.OccurredAt.Before(end) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *stubStore) FetchCustomers(ctx context.Context) ([]store.CustomerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.CustomerRecord(nil), s.customers...), nil
}

func (s *stubStore) FetchProducts(ctx context.Context) ([]store.ProductRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.ProductRecord(nil), s.products...), nil
}

func (s *stubStore) TransactionExtent(ctx context.Context, start, end time.Time) (store.Extent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extentCalls++
	if s.extentErr != nil {
		return store.Extent{}, s.extentErr
	}
	var ext store.Extent
	for _, tx := range s.txs {
		if !tx.OccurredAt.Before(start) && tx.OccurredAt.Before(end) {
			ext.RowCount++
			if tx.ID > ext.MaxTransactionID {
				ext.MaxTransactionID = tx.ID
			}
		}
	}
	return ext, nil
}

func (s *stubStore) Ping(ctx context.Context) error { return nil }

func (s *stubStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

func (s *stubStore) addTransaction(tx store.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, tx)
}

// threeWeeksOfSales covers 2025-06-01 through 2025-06-21: one
// transaction per day rotating over four customers and two products,
// enough history for a daily forecast and enough actives for k=2.
func threeWeeksOfSales() *stubStore {
	st := &stubStore{
		customers: []store.CustomerRecord{
			{ID: 1, JoinedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			{ID: 2, JoinedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
			{ID: 3, JoinedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
			{ID: 4, JoinedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		},
		products: []store.ProductRecord{
			{ID: 1, Name: "Widget", Category: "Electronics", UnitCost: decimal.RequireFromString("40")},
			{ID: 2, Name: "Planter", Category: "Home & Garden", UnitCost: decimal.RequireFromString("8")},
		},
	}
	for d := 0; d < 21; d++ {
		st.txs = append(st.txs, store.Transaction{
			ID:         int64(d + 1),
			CustomerID: int64(d%4 + 1),
			ProductID:  int64(d%2 + 1),
			OccurredAt: time.Date(2025, 6, 1+d, 10, 0, 0, 0, time.UTC),
			Quantity:   1,
			UnitPrice:  decimal.NewFromInt(int64(100 + d)),
		})
	}
	return st
}

func TestOrchestrator_Run_PublishesCompleteResultSet(t *testing.T) {
	st := threeWeeksOfSales()
	orch := NewOrchestrator(st, Options{})

	run, err := orch.Run(context.Background(), baseConfig())
	require.NoError(t, err)

	require.Equal(t, analytics.StatusSucceeded, run.Status)
	require.NotEmpty(t, run.RunID)
	require.Len(t, run.InputsHash, 64)
	require.NotNil(t, run.FinishedAt)
	require.False(t, run.FinishedAt.Before(run.StartedAt))

	results, record, ok := orch.Results(run.RunID)
	require.True(t, ok)
	require.Equal(t, run, record)
	require.NotNil(t, results)

	require.Len(t, results.Aggregates, 21)
	require.Len(t, results.Forecast, 7)
	require.Len(t, results.Segmentation.Segments, 2)
	require.EqualValues(t, 21, results.Summary.TotalTransactions)
	require.EqualValues(t, 4, results.Summary.UniqueCustomers)
	require.NotEmpty(t, results.TopProducts)
	require.NotEmpty(t, results.Margins)
}

func TestOrchestrator_Run_ServesIdenticalInputsFromCache(t *testing.T) {
	st := threeWeeksOfSales()
	orch := NewOrchestrator(st, Options{})

	first, err := orch.Run(context.Background(), baseConfig())
	require.NoError(t, err)
	second, err := orch.Run(context.Background(), baseConfig())
	require.NoError(t, err)

	require.Equal(t, first.RunID, second.RunID)
	require.Equal(t, 1, st.fetchCount(), "cached run must not refetch records")
}

func TestOrchestrator_Run_ChangedExtentForcesFreshRun(t *testing.T) {
	st := threeWeeksOfSales()
	orch := NewOrchestrator(st, Options{})

	first, err := orch.Run(context.Background(), baseConfig())
	require.NoError(t, err)

	// A late-arriving record inside the range changes the extent, so
	// the same configuration now hashes differently.
	st.addTransaction(store.Transaction{
		ID:         100,
		CustomerID: 1,
		ProductID:  1,
		OccurredAt: time.Date(2025, 6, 15, 23, 0, 0, 0, time.UTC),
		Quantity:   2,
		UnitPrice:  decimal.NewFromInt(50),
	})

	second, err := orch.Run(context.Background(), baseConfig())
	require.NoError(t, err)

	require.NotEqual(t, first.RunID, second.RunID)
	require.NotEqual(t, first.InputsHash, second.InputsHash)
	require.Equal(t, 2, st.fetchCount())

	// Both runs stay retrievable by id.
	_, _, ok := orch.Results(first.RunID)
	require.True(t, ok)
	_, _, ok = orch.Results(second.RunID)
	require.True(t, ok)
}

func TestOrchestrator_Run_FailedRunsAreRetriedNotCached(t *testing.T) {
	st := threeWeeksOfSales()
	st.fetchErr = fmt.Errorf("%w: connection refused", apperr.ErrStoreUnavailable)
	orch := NewOrchestrator(st, Options{})

	failed, err := orch.Run(context.Background(), baseConfig())
	require.NoError(t, err, "stage failures are recorded on the run, not returned")
	require.Equal(t, analytics.StatusFailed, failed.Status)
	require.Equal(t, StageFetch, failed.FailedStage)
	require.Equal(t, apperr.KindStoreUnavailable, failed.ErrorKind)
	require.NotEmpty(t, failed.Error)
	require.NotNil(t, failed.FinishedAt)

	results, _, ok := orch.Results(failed.RunID)
	require.True(t, ok)
	require.Nil(t, results, "failed runs publish nothing")

	st.fetchErr = nil
	retried, err := orch.Run(context.Background(), baseConfig())
	require.NoError(t, err)
	require.Equal(t, analytics.StatusSucceeded, retried.Status)
	require.NotEqual(t, failed.RunID, retried.RunID)
	require.Equal(t, 2, st.fetchCount())
}

func TestOrchestrator_Run_SegmentStageFailurePublishesNothing(t *testing.T) {
	st := threeWeeksOfSales()
	orch := NewOrchestrator(st, Options{})

	cfg := baseConfig()
	cfg.SegmentCount = 10 // only four active customers

	run, err := orch.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, analytics.StatusFailed, run.Status)
	require.Equal(t, StageSegment, run.FailedStage)
	require.Equal(t, apperr.KindInsufficientData, run.ErrorKind)

	results, _, ok := orch.Results(run.RunID)
	require.True(t, ok)
	require.Nil(t, results, "aggregates must not leak from a failed run")
}

func TestOrchestrator_Run_ForecastStageFailureReportsInsufficientHistory(t *testing.T) {
	st := threeWeeksOfSales()
	orch := NewOrchestrator(st, Options{})

	cfg := baseConfig()
	cfg.Start = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) // one week of history, cycle needs two

	run, err := orch.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, analytics.StatusFailed, run.Status)
	require.Equal(t, StageForecast, run.FailedStage)
	require.Equal(t, apperr.KindInsufficientHistory, run.ErrorKind)
}

func TestOrchestrator_Run_InvalidConfigRejectedBeforeAnyWork(t *testing.T) {
	st := threeWeeksOfSales()
	orch := NewOrchestrator(st, Options{})

	cfg := baseConfig()
	cfg.SegmentCount = -1

	_, err := orch.Run(context.Background(), cfg)
	require.ErrorIs(t, err, apperr.ErrInvalidConfig)
	require.Zero(t, st.extentCalls)
	require.Empty(t, orch.byID)
}

func TestOrchestrator_Run_ExtentFailureReturnsErrorWithoutRun(t *testing.T) {
	st := threeWeeksOfSales()
	st.extentErr = fmt.Errorf("%w: dial tcp: refused", apperr.ErrStoreUnavailable)
	orch := NewOrchestrator(st, Options{})

	_, err := orch.Run(context.Background(), baseConfig())
	require.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	require.Empty(t, orch.byID, "no run record without a resolvable extent")
}

func TestOrchestrator_Run_CancellationMarksRunCancelled(t *testing.T) {
	st := threeWeeksOfSales()
	orch := NewOrchestrator(st, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := orch.Run(ctx, baseConfig())
	require.NoError(t, err)
	require.Equal(t, analytics.StatusFailed, run.Status)
	require.Equal(t, apperr.KindCancelled, run.ErrorKind)
	require.Equal(t, StageFetch, run.FailedStage)

	results, _, ok := orch.Results(run.RunID)
	require.True(t, ok)
	require.Nil(t, results)
}

func TestOrchestrator_Run_CollapsesConcurrentIdenticalRuns(t *testing.T) {
	st := threeWeeksOfSales()
	st.fetchGate = make(chan struct{})
	st.fetchStarted = make(chan struct{}, 8)
	orch := NewOrchestrator(st, Options{})

	type outcome struct {
		run analytics.PipelineRun
		err error
	}

	const callers = 4
	outcomes := make(chan outcome, callers)
	for i := 0; i < callers; i++ {
		go func() {
			run, err := orch.Run(context.Background(), baseConfig())
			outcomes <- outcome{run: run, err: err}
		}()
	}

	// Wait for the winning caller to enter the fetch, then release it.
	<-st.fetchStarted
	close(st.fetchGate)

	ids := make(map[string]struct{})
	for i := 0; i < callers; i++ {
		res := <-outcomes
		require.NoError(t, res.err)
		require.Equal(t, analytics.StatusSucceeded, res.run.Status)
		ids[res.run.RunID] = struct{}{}
	}
	require.Len(t, ids, 1, "concurrent identical runs must share one execution")
	require.Equal(t, 1, st.fetchCount())
}

func TestOrchestrator_Run_SegmentsOverTrailingWindowBeyondRange(t *testing.T) {
	st := threeWeeksOfSales()
	// Customer 9 bought only before the analyzed range but inside the
	// trailing window, so segmentation sees them while the summary
	// does not.
	st.customers = append(st.customers, store.CustomerRecord{
		ID: 9, JoinedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	st.txs = append(st.txs, store.Transaction{
		ID:         50,
		CustomerID: 9,
		ProductID:  2,
		OccurredAt: time.Date(2025, 5, 27, 12, 0, 0, 0, time.UTC),
		Quantity:   1,
		UnitPrice:  decimal.NewFromInt(25),
	})
	orch := NewOrchestrator(st, Options{})

	run, err := orch.Run(context.Background(), baseConfig())
	require.NoError(t, err)
	require.Equal(t, analytics.StatusSucceeded, run.Status)

	results, _, ok := orch.Results(run.RunID)
	require.True(t, ok)
	require.NotNil(t, results)

	var members int
	var sawNine bool
	for _, seg := range results.Segmentation.Segments {
		members += len(seg.CustomerIDs)
		for _, id := range seg.CustomerIDs {
			if id == 9 {
				sawNine = true
			}
		}
	}
	require.Equal(t, 5, members)
	require.True(t, sawNine, "trailing-window activity keeps a customer clustered")
	require.Empty(t, results.Segmentation.InactiveCustomerIDs)

	// The descriptive rollups only cover the analyzed range.
	require.EqualValues(t, 21, results.Summary.TotalTransactions)
	require.EqualValues(t, 4, results.Summary.UniqueCustomers)

	// The fetch window is widened to cover the segmentation lookback.
	require.Equal(t, time.Date(2025, 5, 23, 0, 0, 0, 0, time.UTC), st.lastFetchStart)
	require.Equal(t, time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC), st.lastFetchEnd)
}

func TestOrchestrator_LatestRun(t *testing.T) {
	st := threeWeeksOfSales()
	orch := NewOrchestrator(st, Options{})

	_, ok, err := orch.LatestRun(context.Background(), baseConfig())
	require.NoError(t, err)
	require.False(t, ok)

	run, err := orch.Run(context.Background(), baseConfig())
	require.NoError(t, err)

	latest, ok, err := orch.LatestRun(context.Background(), baseConfig())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, run.RunID, latest.RunID)

	other := baseConfig()
	other.ForecastHorizon = 14
	_, ok, err = orch.LatestRun(context.Background(), other)
	require.NoError(t, err)
	require.False(t, ok, "a different configuration hashes to a different run")
}

func TestOrchestrator_GetRun_UnknownID(t *testing.T) {
	orch := NewOrchestrator(threeWeeksOfSales(), Options{})

	_, ok := orch.GetRun("no-such-run")
	require.False(t, ok)

	_, _, ok = orch.Results("no-such-run")
	require.False(t, ok)
}
