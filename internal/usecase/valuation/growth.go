package valuation

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
)

// Growth rates use a 365-day year, unlike fixed-strategy projections
const growthYearDays = 365.0

// GrowthRate loads an asset and returns its annualized growth rate in percent
func (s *ValuationService) GrowthRate(ctx context.Context, assetID uuid.UUID, opts ...Option) (float64, error) {
	asset, err := s.AssetRepo.GetByID(ctx, assetID)
	if err != nil {
		return 0, err
	}
	return s.AssetGrowthRate(ctx, asset, opts...)
}

// AssetGrowthRate returns ((value / invested) ^ (1 / years) - 1) * 100, measured
// from the earliest investment to the valuation date. Degenerate inputs yield 0.
func (s *ValuationService) AssetGrowthRate(ctx context.Context, asset *domain.Asset, opts ...Option) (float64, error) {
	earliest, ok := asset.EarliestInvestmentDate()
	if !ok {
		return 0, nil
	}

	o, err := s.options(s.Now(), opts)
	if err != nil {
		return 0, err
	}

	invested := asset.TotalInvested().InexactFloat64()
	if invested == 0 {
		return 0, nil
	}

	years := o.AsOf.Sub(earliest).Hours() / 24 / growthYearDays
	if years <= 0 {
		return 0, nil
	}

	current, err := s.Value(ctx, asset, opts...)
	if err != nil {
		return 0, err
	}

	rate := (math.Pow(current/invested, 1/years) - 1) * 100
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, nil
	}
	return rate, nil
}
