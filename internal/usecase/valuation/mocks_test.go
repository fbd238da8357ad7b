package valuation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
)

// MockAssetRepository is a mock implementation of AssetRepository for testing
type MockAssetRepository struct {
	mock.Mock
}

func (m *MockAssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Asset), args.Error(1)
}

func (m *MockAssetRepository) List(ctx context.Context) ([]*domain.Asset, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Asset), args.Error(1)
}

func (m *MockAssetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

func (m *MockAssetRepository) UpdateStrategy(ctx context.Context, id uuid.UUID, strategy domain.ValuationStrategy) error {
	args := m.Called(ctx, id, strategy)
	return args.Error(0)
}

func (m *MockAssetRepository) UpdateDynamicLastValue(ctx context.Context, id uuid.UUID, value float64, at time.Time) error {
	args := m.Called(ctx, id, value, at)
	return args.Error(0)
}

func (m *MockAssetRepository) AddInvestment(ctx context.Context, investment *domain.Investment) error {
	args := m.Called(ctx, investment)
	return args.Error(0)
}

// countingRunner returns a configurable result and counts executions
type countingRunner struct {
	mu    sync.Mutex
	calls int
	value float64
	err   error
}

func (r *countingRunner) Execute(ctx context.Context, source string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.value, r.err
}

func (r *countingRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *countingRunner) Set(value float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value, r.err = value, err
}

// manualClock is advanced by hand
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
