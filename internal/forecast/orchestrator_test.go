package forecast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/config"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

type stubInputs struct {
	agg contracts.Aggregate
}

func (s stubInputs) Aggregate(ctx context.Context, sym contracts.Symbol) contracts.Aggregate {
	return s.agg
}

type stubGenerator struct {
	calls int32
	text  string
	err   error
	block chan struct{}
}

func (g *stubGenerator) Generate(ctx context.Context, sym contracts.Symbol, agg contracts.Aggregate) (string, error) {
	atomic.AddInt32(&g.calls, 1)
	if g.block != nil {
		<-g.block
	}
	return g.text, g.err
}

type stubSpot struct {
	price float64
	err   error
}

func (s stubSpot) Spot(ctx context.Context, sym contracts.Symbol) (float64, error) {
	return s.price, s.err
}

type majors []string

func (m majors) IsMajor(ticker string) bool {
	for _, s := range m {
		if s == ticker {
			return true
		}
	}
	return false
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []contracts.RefreshEvent
}

func (n *recordingNotifier) NotifyRefresh(ev contracts.RefreshEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

type orchestratorFixture struct {
	store     *mockStore
	generator *stubGenerator
	notifier  *recordingNotifier
	metrics   *countingRecorder
	orch      *Orchestrator
}

func newFixture(policy string, spot SpotSource) *orchestratorFixture {
	f := &orchestratorFixture{
		store:     new(mockStore),
		generator: &stubGenerator{text: validResponse},
		notifier:  &recordingNotifier{},
		metrics:   &countingRecorder{},
	}
	gate := NewGate(f.store, DefaultTTL, logger.Nop(), f.metrics)
	f.orch = NewOrchestrator(Deps{
		Gate:      gate,
		Inputs:    stubInputs{},
		Generator: f.generator,
		Store:     f.store,
		Spot:      spot,
		Majors:    majors{"aapl", "tsla"},
		Notifier:  f.notifier,
		Metrics:   f.metrics,
	}, OrchestratorConfig{MajorSymbolPolicy: policy, RefreshTimeout: 5 * time.Second}, logger.Nop())
	return f
}

func entryFor(key string) *contracts.CacheEntry {
	return &contracts.CacheEntry{Symbol: key, Info: contracts.GenInfo{Outlook: contracts.OutlookRaise}}
}

func refreshFor(key string, spot float64) interface{} {
	return mock.MatchedBy(func(in RefreshInput) bool {
		return in.Key == key && in.SpotPrice == spot && in.Forecast != nil && len(in.Forecast.Predictions) == 3
	})
}

func TestOrchestrator_FreshServedFromCache(t *testing.T) {
	f := newFixture(config.PolicyRegenerate, stubSpot{price: 245})
	f.store.On("GenInfo", mock.Anything, "msft").Return(&contracts.GenInfo{LastUpdate: time.Now()}, nil)
	f.store.On("Read", mock.Anything, "msft").Return(entryFor("msft"), nil)

	entry, err := f.orch.Request(context.Background(), " MSFT ")

	require.NoError(t, err)
	assert.Equal(t, "msft", entry.Symbol)
	assert.Zero(t, atomic.LoadInt32(&f.generator.calls))
	f.store.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestOrchestrator_AbsentRegenerates(t *testing.T) {
	f := newFixture(config.PolicyRegenerate, stubSpot{price: 245})
	f.store.On("GenInfo", mock.Anything, "btc_usd").Return(nil, notFound)
	f.store.On("Refresh", mock.Anything, refreshFor("btc_usd", 245)).Return(nil).Once()
	f.store.On("Read", mock.Anything, "btc_usd").Return(entryFor("btc_usd"), nil)

	entry, err := f.orch.Request(context.Background(), "BTC-USD")

	require.NoError(t, err)
	assert.Equal(t, "btc_usd", entry.Symbol)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.generator.calls))
	f.store.AssertExpectations(t)

	require.Len(t, f.notifier.events, 1)
	ev := f.notifier.events[0]
	assert.Equal(t, "btc-usd", ev.Symbol)
	assert.Equal(t, contracts.OutlookRaise, ev.Outlook)
	assert.Equal(t, 60, ev.Confidence)
	// (248.10 - 245) / 245 * 100
	assert.Equal(t, 1.27, ev.PriceChangePct)
	assert.Equal(t, []string{"success"}, f.metrics.refresh)
}

func TestOrchestrator_StaleEvictsAndRegenerates(t *testing.T) {
	f := newFixture(config.PolicyRegenerate, stubSpot{price: 245})
	f.store.On("GenInfo", mock.Anything, "meta").
		Return(&contracts.GenInfo{LastUpdate: time.Now().Add(-10 * time.Hour)}, nil)
	f.store.On("Delete", mock.Anything, "meta").Return(nil).Once()
	f.store.On("Refresh", mock.Anything, refreshFor("meta", 245)).Return(nil).Once()
	f.store.On("Read", mock.Anything, "meta").Return(entryFor("meta"), nil)

	_, err := f.orch.Request(context.Background(), "meta")

	require.NoError(t, err)
	f.store.AssertExpectations(t)
}

func TestOrchestrator_MajorSymbolAlwaysRegenerates(t *testing.T) {
	f := newFixture(config.PolicyRegenerate, stubSpot{price: 245})
	f.store.On("Refresh", mock.Anything, refreshFor("aapl", 245)).Return(nil).Once()
	f.store.On("Read", mock.Anything, "aapl").Return(entryFor("aapl"), nil)

	_, err := f.orch.Request(context.Background(), "AAPL")

	require.NoError(t, err)
	f.store.AssertNotCalled(t, "GenInfo", mock.Anything, mock.Anything)
	f.store.AssertExpectations(t)
}

func TestOrchestrator_MajorSymbolServeCached(t *testing.T) {
	f := newFixture(config.PolicyServeCached, stubSpot{price: 245})
	f.store.On("Read", mock.Anything, "aapl").Return(entryFor("aapl"), nil)

	_, err := f.orch.Request(context.Background(), "aapl")

	require.NoError(t, err)
	assert.Zero(t, atomic.LoadInt32(&f.generator.calls))

	// nothing stored yet: generate once
	f.store.On("Read", mock.Anything, "tsla").Return(nil, notFound).Once()
	f.store.On("Refresh", mock.Anything, refreshFor("tsla", 245)).Return(nil).Once()
	f.store.On("Read", mock.Anything, "tsla").Return(entryFor("tsla"), nil).Once()

	entry, err := f.orch.Request(context.Background(), "tsla")

	require.NoError(t, err)
	assert.Equal(t, "tsla", entry.Symbol)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.generator.calls))
}

func TestOrchestrator_StageFailuresLeaveStoreUntouched(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
		kind contracts.ErrorKind
	}{
		{"generation", "", contracts.NewError(contracts.KindGeneration, "generate", errors.New("timeout")), contracts.KindGeneration},
		{"parse", "Sure! Here is the forecast you asked for.", nil, contracts.KindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(config.PolicyRegenerate, stubSpot{price: 245})
			f.generator.text, f.generator.err = tt.text, tt.err
			f.store.On("GenInfo", mock.Anything, "nflx").Return(nil, notFound)

			entry, err := f.orch.Request(context.Background(), "nflx")

			assert.Nil(t, entry)
			assert.Equal(t, tt.kind, contracts.KindOf(err))
			f.store.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
			f.store.AssertNotCalled(t, "Read", mock.Anything, mock.Anything)
			assert.Empty(t, f.notifier.events)
			assert.Equal(t, []string{string(tt.kind)}, f.metrics.refresh)
		})
	}
}

func TestOrchestrator_PersistenceFailure(t *testing.T) {
	f := newFixture(config.PolicyRegenerate, stubSpot{price: 245})
	f.store.On("GenInfo", mock.Anything, "dis").Return(nil, notFound)
	f.store.On("Refresh", mock.Anything, mock.Anything).
		Return(contracts.NewError(contracts.KindPersistence, "refresh cache entry", errors.New("deadlock")))

	_, err := f.orch.Request(context.Background(), "dis")

	assert.ErrorIs(t, err, contracts.ErrPersistence)
	assert.Empty(t, f.notifier.events)
}

func TestOrchestrator_SpotFallsBackToLastClose(t *testing.T) {
	f := newFixture(config.PolicyRegenerate, stubSpot{err: errors.New("quote down")})
	f.store.On("GenInfo", mock.Anything, "ko").Return(nil, notFound)
	f.store.On("Refresh", mock.Anything, refreshFor("ko", 246.95)).Return(nil).Once()
	f.store.On("Read", mock.Anything, "ko").Return(entryFor("ko"), nil)

	_, err := f.orch.Request(context.Background(), "ko")

	require.NoError(t, err)
	f.store.AssertExpectations(t)
}

func TestOrchestrator_InvalidSymbol(t *testing.T) {
	f := newFixture(config.PolicyRegenerate, nil)

	_, err := f.orch.Request(context.Background(), "not a ticker!")
	assert.ErrorIs(t, err, contracts.ErrInput)

	err = f.orch.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, contracts.ErrInput)

	_, err = f.orch.CurrentPrice(context.Background(), "aapl")
	assert.ErrorIs(t, err, contracts.ErrProviderUnavailable)
}

func TestOrchestrator_CurrentPrice(t *testing.T) {
	f := newFixture(config.PolicyRegenerate, stubSpot{price: 187.25})

	price, err := f.orch.CurrentPrice(context.Background(), "AAPL")

	require.NoError(t, err)
	assert.Equal(t, 187.25, price)
}

func TestOrchestrator_ConcurrentRefreshesShareOneRun(t *testing.T) {
	f := newFixture(config.PolicyRegenerate, stubSpot{price: 245})
	f.generator.block = make(chan struct{})
	f.store.On("Refresh", mock.Anything, refreshFor("amzn", 245)).Return(nil).Once()

	const callers = 5
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			errs <- f.orch.Refresh(context.Background(), "AMZN")
		}()
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&f.generator.calls) == 1
	}, time.Second, time.Millisecond)
	// let the remaining callers join the in-flight run
	time.Sleep(50 * time.Millisecond)
	close(f.generator.block)

	for i := 0; i < callers; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.generator.calls))
	f.store.AssertExpectations(t)
}

func TestOrchestrator_CallerCancellationDoesNotAbortSharedRun(t *testing.T) {
	f := newFixture(config.PolicyRegenerate, stubSpot{price: 245})
	f.generator.block = make(chan struct{})
	done := make(chan struct{})
	f.store.On("Refresh", mock.Anything, refreshFor("intc", 245)).
		Run(func(mock.Arguments) { close(done) }).
		Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- f.orch.Refresh(ctx, "intc") }()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&f.generator.calls) == 1
	}, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)

	close(f.generator.block)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shared refresh did not complete after caller cancelled")
	}
}
