package dashboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/valuation"
)

// AssetValuer resolves the current value of a loaded asset
type AssetValuer interface {
	Value(ctx context.Context, asset *domain.Asset, opts ...valuation.Option) (float64, error)
}

// NetWorthResult represents the calculated net worth
type NetWorthResult struct {
	Total    decimal.Decimal
	Invested decimal.Decimal
	Fixed    decimal.Decimal
	Dynamic  decimal.Decimal
	Manual   decimal.Decimal
	Skipped  []uuid.UUID // assets whose valuation failed hard
}

// DashboardService handles dashboard-related operations
type DashboardService struct {
	AssetRepo domain.AssetRepository
	Valuer    AssetValuer
	Log       zerolog.Logger
}

// NewDashboardService creates a new DashboardService instance
func NewDashboardService(assetRepo domain.AssetRepository, valuer AssetValuer, log zerolog.Logger) *DashboardService {
	return &DashboardService{
		AssetRepo: assetRepo,
		Valuer:    valuer,
		Log:       log.With().Str("component", "dashboard").Logger(),
	}
}

// GetNetWorth calculates the total net worth
// Logic:
//   - Every asset is valued through its own strategy
//   - Fixed / Dynamic / Manual: subtotals per strategy kind
//   - Total: sum of the subtotals; Invested: sum of all principals
//
// An asset that cannot be valued (no strategy) is skipped and logged.
func (s *DashboardService) GetNetWorth(ctx context.Context) (*NetWorthResult, error) {
	assets, err := s.AssetRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	result := &NetWorthResult{
		Total:    decimal.Zero,
		Invested: decimal.Zero,
		Fixed:    decimal.Zero,
		Dynamic:  decimal.Zero,
		Manual:   decimal.Zero,
	}

	for _, asset := range assets {
		value, err := s.Valuer.Value(ctx, asset)
		if err != nil {
			s.Log.Warn().
				Err(err).
				Str("asset_id", asset.ID.String()).
				Msg("skipping asset in net worth")
			result.Skipped = append(result.Skipped, asset.ID)
			continue
		}

		amount := decimal.NewFromFloat(value)
		switch asset.Strategy.Kind {
		case domain.StrategyKindFixed:
			result.Fixed = result.Fixed.Add(amount)
		case domain.StrategyKindDynamic:
			result.Dynamic = result.Dynamic.Add(amount)
		case domain.StrategyKindManual:
			result.Manual = result.Manual.Add(amount)
		}
		result.Invested = result.Invested.Add(asset.TotalInvested())
	}

	result.Fixed = result.Fixed.Round(2)
	result.Dynamic = result.Dynamic.Round(2)
	result.Manual = result.Manual.Round(2)
	result.Total = result.Fixed.Add(result.Dynamic).Add(result.Manual)
	result.Invested = result.Invested.Round(2)

	return result, nil
}
