package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GenInfo(ctx context.Context, key string) (*contracts.GenInfo, error) {
	args := m.Called(ctx, key)
	info, _ := args.Get(0).(*contracts.GenInfo)
	return info, args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockStore) Read(ctx context.Context, key string) (*contracts.CacheEntry, error) {
	args := m.Called(ctx, key)
	entry, _ := args.Get(0).(*contracts.CacheEntry)
	return entry, args.Error(1)
}

func (m *mockStore) Refresh(ctx context.Context, in RefreshInput) error {
	return m.Called(ctx, in).Error(0)
}

var notFound = contracts.NewError(contracts.KindNotFound, "read gen info", errors.New("no cache entry"))

func newTestGate(store EntryStore, now time.Time) *Gate {
	g := NewGate(store, DefaultTTL, logger.Nop(), nil)
	g.now = func() time.Time { return now }
	return g
}

func TestGate_Absent(t *testing.T) {
	store := new(mockStore)
	store.On("GenInfo", mock.Anything, "aapl").Return(nil, notFound)

	state, err := newTestGate(store, time.Now()).Check(context.Background(), "aapl")

	require.NoError(t, err)
	assert.Equal(t, contracts.Absent, state)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestGate_Fresh(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := new(mockStore)
	store.On("GenInfo", mock.Anything, "aapl").
		Return(&contracts.GenInfo{LastUpdate: now.Add(-DefaultTTL)}, nil)

	state, err := newTestGate(store, now).Check(context.Background(), "aapl")

	require.NoError(t, err)
	assert.Equal(t, contracts.Fresh, state)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestGate_StaleEvictsThenAbsent(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := new(mockStore)
	store.On("GenInfo", mock.Anything, "btc_usd").
		Return(&contracts.GenInfo{LastUpdate: now.Add(-DefaultTTL - time.Minute)}, nil).Once()
	store.On("Delete", mock.Anything, "btc_usd").Return(nil).Once()
	store.On("GenInfo", mock.Anything, "btc_usd").Return(nil, notFound).Once()

	gate := newTestGate(store, now)

	state, err := gate.Check(context.Background(), "btc_usd")
	require.NoError(t, err)
	assert.Equal(t, contracts.Stale, state)

	state, err = gate.Check(context.Background(), "btc_usd")
	require.NoError(t, err)
	assert.Equal(t, contracts.Absent, state)

	store.AssertExpectations(t)
}

func TestGate_Errors(t *testing.T) {
	now := time.Now()
	dbErr := contracts.NewError(contracts.KindPersistence, "read gen info", errors.New("connection refused"))

	store := new(mockStore)
	store.On("GenInfo", mock.Anything, "msft").Return(nil, dbErr)
	_, err := newTestGate(store, now).Check(context.Background(), "msft")
	assert.ErrorIs(t, err, contracts.ErrPersistence)

	store = new(mockStore)
	store.On("GenInfo", mock.Anything, "msft").Return(&contracts.GenInfo{LastUpdate: now.Add(-24 * time.Hour)}, nil)
	store.On("Delete", mock.Anything, "msft").Return(dbErr)
	_, err = newTestGate(store, now).Check(context.Background(), "msft")
	assert.ErrorIs(t, err, contracts.ErrPersistence)
}
