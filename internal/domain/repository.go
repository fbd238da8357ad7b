package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AssetRepository defines the interface for asset persistence operations
type AssetRepository interface {
	// GetByID retrieves an asset with its strategy and investments.
	// Returns an error wrapping ErrAssetNotFound if the asset does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*Asset, error)

	// List retrieves all assets with their strategies and investments
	List(ctx context.Context) ([]*Asset, error)

	// Create creates a new asset (investments are added separately)
	Create(ctx context.Context, asset *Asset) error

	// UpdateStrategy replaces the active valuation strategy of an asset
	UpdateStrategy(ctx context.Context, id uuid.UUID, strategy ValuationStrategy) error

	// UpdateDynamicLastValue persists the fallback fields of a dynamic strategy
	UpdateDynamicLastValue(ctx context.Context, id uuid.UUID, value float64, at time.Time) error

	// AddInvestment appends an investment to an asset
	AddInvestment(ctx context.Context, investment *Investment) error
}

// ContributionPlanRepository defines the interface for recurring contribution plan persistence
type ContributionPlanRepository interface {
	// Create creates a new plan with its items
	Create(ctx context.Context, plan *ContributionPlan) error

	// ListDue retrieves active plans whose NextRun is at or before asOf
	ListDue(ctx context.Context, asOf time.Time) ([]*ContributionPlan, error)

	// RecordOccurrence atomically stores the investments bought by one occurrence
	// and moves the plan's next scheduled run. Nothing is written on error.
	RecordOccurrence(ctx context.Context, id uuid.UUID, investments []*Investment, nextRun time.Time) error
}
