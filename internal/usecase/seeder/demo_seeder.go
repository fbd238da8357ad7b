package seeder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
)

// Fixed UUIDs for the demo portfolio so seeding stays idempotent
var (
	DemoSavingsID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	DemoIndexID   = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	DemoHouseID   = uuid.MustParse("00000000-0000-0000-0000-000000000003")
)

// DemoIndexScript prices the demo index fund without touching the network
const DemoIndexScript = `// Demo price feed. Point a fetch() at a real quote API instead.
async function getValue() {
  const days = Math.floor(Date.now() / 86400000) - 19000;
  return Math.round(100 * Math.pow(1.0002, days) * 100) / 100;
}
module.exports = { getValue };
`

// DemoAsset defines an asset to be seeded together with its opening investment
type DemoAsset struct {
	ID       uuid.UUID
	Name     string
	Strategy *domain.ValuationStrategy
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// DemoSeeder seeds a small portfolio covering every valuation strategy
type DemoSeeder struct {
	repo domain.AssetRepository
	now  domain.Clock
}

// NewDemoSeeder creates a new DemoSeeder instance
func NewDemoSeeder(repo domain.AssetRepository, clock domain.Clock) *DemoSeeder {
	if clock == nil {
		clock = time.Now
	}
	return &DemoSeeder{
		repo: repo,
		now:  clock,
	}
}

// DemoAssets returns the assets Seed creates
func (s *DemoSeeder) DemoAssets() []DemoAsset {
	return []DemoAsset{
		{
			ID:       DemoSavingsID,
			Name:     "Demo Savings Deposit",
			Strategy: domain.NewFixedStrategy(3.5),
			Quantity: decimal.NewFromInt(5000),
			Price:    decimal.NewFromInt(1),
		},
		{
			ID:       DemoIndexID,
			Name:     "Demo Index Fund",
			Strategy: domain.NewDynamicStrategy(DemoIndexScript),
			Quantity: decimal.NewFromInt(10),
			Price:    decimal.NewFromInt(100),
		},
		{
			ID:       DemoHouseID,
			Name:     "Demo House",
			Strategy: domain.NewManualStrategy(250000, s.now()),
			Quantity: decimal.NewFromInt(1),
			Price:    decimal.NewFromInt(200000),
		},
	}
}

// Seed ensures every demo asset exists in the database and returns how many were created.
// A missing asset is created with one opening investment dated a year ago.
// Existing assets are left untouched.
func (s *DemoSeeder) Seed(ctx context.Context) (int, error) {
	created := 0
	opened := s.now().AddDate(-1, 0, 0)

	for _, demo := range s.DemoAssets() {
		// Try to get the asset by ID
		_, err := s.repo.GetByID(ctx, demo.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrAssetNotFound) {
			return created, err
		}

		asset := &domain.Asset{
			ID:        demo.ID,
			Name:      demo.Name,
			Strategy:  demo.Strategy,
			CreatedAt: opened,
		}

		// Validate before creating
		if err := asset.Validate(); err != nil {
			return created, err
		}
		if err := s.repo.Create(ctx, asset); err != nil {
			return created, err
		}

		investment := &domain.Investment{
			ID:           uuid.NewSHA1(demo.ID, []byte("opening")),
			AssetID:      demo.ID,
			Quantity:     demo.Quantity,
			PricePerUnit: demo.Price,
			Date:         opened,
		}
		if err := s.repo.AddInvestment(ctx, investment); err != nil {
			return created, err
		}
		created++
	}

	return created, nil
}
