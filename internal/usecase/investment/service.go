package investment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/valuation"
)

// AssetValuer resolves the current value of a loaded asset
type AssetValuer interface {
	Value(ctx context.Context, asset *domain.Asset, opts ...valuation.Option) (float64, error)
}

// InvestmentService handles asset and investment operations
type InvestmentService struct {
	AssetRepo domain.AssetRepository
	Valuer    AssetValuer
	Now       domain.Clock
}

// NewInvestmentService creates a new InvestmentService instance
func NewInvestmentService(assetRepo domain.AssetRepository, valuer AssetValuer, clock domain.Clock) *InvestmentService {
	if clock == nil {
		clock = time.Now
	}
	return &InvestmentService{
		AssetRepo: assetRepo,
		Valuer:    valuer,
		Now:       clock,
	}
}

// CreateAsset registers a new asset with its initial valuation strategy
func (s *InvestmentService) CreateAsset(ctx context.Context, name string, strategy domain.ValuationStrategy) (*domain.Asset, error) {
	active := strategy.Active()
	asset := &domain.Asset{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Strategy:  &active,
		CreatedAt: s.Now(),
	}
	if err := asset.Validate(); err != nil {
		return nil, err
	}

	if err := s.AssetRepo.Create(ctx, asset); err != nil {
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}
	return asset, nil
}

// AddInvestment records a purchase of quantity units at pricePerUnit
func (s *InvestmentService) AddInvestment(ctx context.Context, assetID uuid.UUID, quantity, pricePerUnit decimal.Decimal, date time.Time) (*domain.Investment, error) {
	if date.IsZero() {
		date = s.Now()
	}
	investment := &domain.Investment{
		ID:           uuid.New(),
		AssetID:      assetID,
		Quantity:     quantity,
		PricePerUnit: pricePerUnit,
		Date:         date,
	}
	if err := investment.Validate(); err != nil {
		return nil, err
	}

	// Verify the asset exists before appending to it
	if _, err := s.AssetRepo.GetByID(ctx, assetID); err != nil {
		return nil, err
	}

	if err := s.AssetRepo.AddInvestment(ctx, investment); err != nil {
		return nil, fmt.Errorf("failed to add investment: %w", err)
	}
	return investment, nil
}

// SetManualValue overwrites the value of a manually valued asset
func (s *InvestmentService) SetManualValue(ctx context.Context, assetID uuid.UUID, value float64) error {
	asset, err := s.AssetRepo.GetByID(ctx, assetID)
	if err != nil {
		return err
	}
	if asset.Strategy == nil || asset.Strategy.Kind != domain.StrategyKindManual {
		return fmt.Errorf("asset %s is not manually valued: %w", assetID, domain.ErrStrategyMismatch)
	}

	return s.AssetRepo.UpdateStrategy(ctx, assetID, *domain.NewManualStrategy(value, s.Now()))
}

// ChangeStrategy replaces the asset's valuation strategy.
// Only the variant named by the new kind is kept.
func (s *InvestmentService) ChangeStrategy(ctx context.Context, assetID uuid.UUID, strategy domain.ValuationStrategy) error {
	if err := strategy.Validate(); err != nil {
		return err
	}
	if _, err := s.AssetRepo.GetByID(ctx, assetID); err != nil {
		return err
	}

	return s.AssetRepo.UpdateStrategy(ctx, assetID, strategy.Active())
}

// CalculateProfit calculates the profit/loss for an asset
// Logic: Profit = CurrentValue - TotalInvested, rounded to cents
func (s *InvestmentService) CalculateProfit(ctx context.Context, assetID uuid.UUID) (decimal.Decimal, error) {
	asset, err := s.AssetRepo.GetByID(ctx, assetID)
	if err != nil {
		return decimal.Zero, err
	}
	if s.Valuer == nil {
		return decimal.Zero, errors.New("no valuer configured")
	}

	value, err := s.Valuer.Value(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}

	return decimal.NewFromFloat(value).Sub(asset.TotalInvested()).Round(2), nil
}
