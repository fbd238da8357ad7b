package sqlrepo

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
)

type store struct {
	assets domain.AssetRepository
	plans  domain.ContributionPlanRepository
}

// stores returns an in-memory SQLite store, plus Postgres when TEST_DB_CONN_STR is set
func stores(t *testing.T) map[string]store {
	t.Helper()
	ctx := context.Background()
	out := make(map[string]store)

	lite, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	lite.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = lite.Close() })
	require.NoError(t, Migrate(ctx, lite, SQLite))
	out["sqlite"] = store{assets: NewAssetRepository(lite, SQLite), plans: NewContributionPlanRepository(lite, SQLite)}

	if conn := os.Getenv("TEST_DB_CONN_STR"); conn != "" {
		pg, err := sql.Open("postgres", conn)
		require.NoError(t, err)
		t.Cleanup(func() { _ = pg.Close() })
		require.NoError(t, Migrate(ctx, pg, Postgres))
		for _, table := range []string{"contribution_items", "contribution_plans", "investments", "assets"} {
			_, err := pg.ExecContext(ctx, "DELETE FROM "+table)
			require.NoError(t, err)
		}
		out["postgres"] = store{assets: NewAssetRepository(pg, Postgres), plans: NewContributionPlanRepository(pg, Postgres)}
	}

	return out
}

var created = time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

func newAsset(name string, strategy *domain.ValuationStrategy) *domain.Asset {
	return &domain.Asset{ID: uuid.New(), Name: name, Strategy: strategy, CreatedAt: created}
}

func TestAssetRepository_RoundTripsStrategies(t *testing.T) {
	lastValue := 42.5
	lastAt := created.Add(time.Hour)
	dynamic := domain.NewDynamicStrategy("module.exports.getValue = () => 1;")
	dynamic.Dynamic.LastValue = &lastValue
	dynamic.Dynamic.LastValueAt = &lastAt

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			fixed := newAsset("Deposit", domain.NewFixedStrategy(3.5))
			scripted := newAsset("ETF", dynamic)
			manual := newAsset("House", domain.NewManualStrategy(250000, created))

			for _, a := range []*domain.Asset{fixed, scripted, manual} {
				require.NoError(t, s.assets.Create(ctx, a))
			}

			got, err := s.assets.GetByID(ctx, fixed.ID)
			require.NoError(t, err)
			assert.Equal(t, "Deposit", got.Name)
			assert.Equal(t, domain.StrategyKindFixed, got.Strategy.Kind)
			assert.Equal(t, 3.5, got.Strategy.Fixed.GrowthRate)
			assert.True(t, created.Equal(got.CreatedAt))

			got, err = s.assets.GetByID(ctx, scripted.ID)
			require.NoError(t, err)
			require.NotNil(t, got.Strategy.Dynamic)
			assert.Equal(t, dynamic.Dynamic.ScriptSource, got.Strategy.Dynamic.ScriptSource)
			assert.Equal(t, 42.5, *got.Strategy.Dynamic.LastValue)
			assert.True(t, lastAt.Equal(*got.Strategy.Dynamic.LastValueAt))

			got, err = s.assets.GetByID(ctx, manual.ID)
			require.NoError(t, err)
			assert.Equal(t, 250000.0, *got.Strategy.Manual.Value)
			assert.Nil(t, got.Strategy.Fixed)
			assert.Nil(t, got.Strategy.Dynamic)

			all, err := s.assets.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestAssetRepository_NotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := uuid.New()

			_, err := s.assets.GetByID(ctx, id)
			assert.ErrorIs(t, err, domain.ErrAssetNotFound)

			err = s.assets.UpdateDynamicLastValue(ctx, id, 1, created)
			assert.ErrorIs(t, err, domain.ErrAssetNotFound)

			err = s.assets.UpdateStrategy(ctx, id, *domain.NewFixedStrategy(1))
			assert.ErrorIs(t, err, domain.ErrAssetNotFound)
		})
	}
}

func TestAssetRepository_StrategySwitchAndLastValue(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			asset := newAsset("ETF", domain.NewDynamicStrategy("function getValue() { return 1 }"))
			require.NoError(t, s.assets.Create(ctx, asset))

			at := created.Add(24 * time.Hour)
			require.NoError(t, s.assets.UpdateDynamicLastValue(ctx, asset.ID, 101.25, at))

			got, err := s.assets.GetByID(ctx, asset.ID)
			require.NoError(t, err)
			assert.Equal(t, 101.25, *got.Strategy.Dynamic.LastValue)
			assert.True(t, at.Equal(*got.Strategy.Dynamic.LastValueAt))

			require.NoError(t, s.assets.UpdateStrategy(ctx, asset.ID, *domain.NewManualStrategy(7, at)))
			got, err = s.assets.GetByID(ctx, asset.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.StrategyKindManual, got.Strategy.Kind)
			assert.Nil(t, got.Strategy.Dynamic)

			// last value is only written while the asset is dynamic
			err = s.assets.UpdateDynamicLastValue(ctx, asset.ID, 5, at)
			assert.ErrorIs(t, err, domain.ErrAssetNotFound)
		})
	}
}

func TestAssetRepository_Investments(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			asset := newAsset("ETF", domain.NewFixedStrategy(0))
			other := newAsset("Bond", domain.NewFixedStrategy(0))
			require.NoError(t, s.assets.Create(ctx, asset))
			require.NoError(t, s.assets.Create(ctx, other))

			later := &domain.Investment{ID: uuid.New(), AssetID: asset.ID, Quantity: decimal.RequireFromString("1.5"), PricePerUnit: decimal.NewFromInt(100), Date: created.AddDate(0, 2, 0)}
			earlier := &domain.Investment{ID: uuid.New(), AssetID: asset.ID, Quantity: decimal.NewFromInt(2), PricePerUnit: decimal.RequireFromString("99.95"), Date: created}
			require.NoError(t, s.assets.AddInvestment(ctx, later))
			require.NoError(t, s.assets.AddInvestment(ctx, earlier))

			got, err := s.assets.GetByID(ctx, asset.ID)
			require.NoError(t, err)
			require.Len(t, got.Investments, 2)
			assert.Equal(t, earlier.ID, got.Investments[0].ID)
			assert.True(t, got.TotalQuantity().Equal(decimal.RequireFromString("3.5")))
			assert.True(t, got.TotalInvested().Equal(decimal.RequireFromString("349.9")))

			all, err := s.assets.List(ctx)
			require.NoError(t, err)
			for _, a := range all {
				if a.ID == other.ID {
					assert.Empty(t, a.Investments)
				}
			}

			orphan := &domain.Investment{ID: uuid.New(), AssetID: uuid.New(), Quantity: decimal.NewFromInt(1), PricePerUnit: decimal.NewFromInt(1), Date: created}
			assert.Error(t, s.assets.AddInvestment(ctx, orphan))
		})
	}
}

func TestContributionPlanRepository(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			etf := newAsset("ETF", domain.NewFixedStrategy(0))
			cash := newAsset("Cash", domain.NewFixedStrategy(0))
			require.NoError(t, s.assets.Create(ctx, etf))
			require.NoError(t, s.assets.Create(ctx, cash))

			plan := &domain.ContributionPlan{
				ID:        uuid.New(),
				Name:      "Monthly",
				Amount:    decimal.NewFromInt(300),
				Frequency: domain.FrequencyMonthly,
				StartDate: created,
				NextRun:   created,
				Active:    true,
				Items: []domain.ContributionItem{
					{ID: uuid.New(), TargetAssetID: cash.ID, Type: domain.ContributionItemTypeRemainder, Value: decimal.Zero, Priority: 2},
					{ID: uuid.New(), TargetAssetID: etf.ID, Type: domain.ContributionItemTypePercent, Value: decimal.NewFromInt(60), Priority: 1},
				},
			}
			paused := &domain.ContributionPlan{
				ID:        uuid.New(),
				Name:      "Paused",
				Amount:    decimal.NewFromInt(10),
				Frequency: domain.FrequencyWeekly,
				StartDate: created,
				NextRun:   created,
				Active:    false,
				Items:     []domain.ContributionItem{{ID: uuid.New(), TargetAssetID: cash.ID, Type: domain.ContributionItemTypeRemainder, Value: decimal.Zero, Priority: 1}},
			}
			require.NoError(t, s.plans.Create(ctx, plan))
			require.NoError(t, s.plans.Create(ctx, paused))

			due, err := s.plans.ListDue(ctx, created.Add(-time.Minute))
			require.NoError(t, err)
			assert.Empty(t, due)

			due, err = s.plans.ListDue(ctx, created)
			require.NoError(t, err)
			require.Len(t, due, 1)
			assert.Equal(t, plan.ID, due[0].ID)
			assert.True(t, due[0].Amount.Equal(decimal.NewFromInt(300)))
			require.Len(t, due[0].Items, 2)
			assert.Equal(t, etf.ID, due[0].Items[0].TargetAssetID)
			assert.Equal(t, domain.ContributionItemTypeRemainder, due[0].Items[1].Type)

			next := created.AddDate(0, 1, 0)
			buys := []*domain.Investment{
				{ID: uuid.New(), AssetID: etf.ID, Quantity: decimal.NewFromInt(18), PricePerUnit: decimal.NewFromInt(10), Date: created},
				{ID: uuid.New(), AssetID: cash.ID, Quantity: decimal.NewFromInt(120), PricePerUnit: decimal.NewFromInt(1), Date: created},
			}
			require.NoError(t, s.plans.RecordOccurrence(ctx, plan.ID, buys, next))
			due, err = s.plans.ListDue(ctx, created.AddDate(0, 0, 7))
			require.NoError(t, err)
			assert.Empty(t, due)

			got, err := s.assets.GetByID(ctx, etf.ID)
			require.NoError(t, err)
			require.Len(t, got.Investments, 1)
			assert.Equal(t, "18", got.Investments[0].Quantity.String())

			assert.ErrorIs(t, s.plans.RecordOccurrence(ctx, uuid.New(), nil, next), domain.ErrPlanNotFound)
		})
	}
}

func TestContributionPlanRepository_RecordOccurrenceIsAtomic(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			etf := newAsset("ETF", domain.NewFixedStrategy(0))
			require.NoError(t, s.assets.Create(ctx, etf))

			plan := &domain.ContributionPlan{
				ID:        uuid.New(),
				Name:      "Monthly",
				Amount:    decimal.NewFromInt(100),
				Frequency: domain.FrequencyMonthly,
				StartDate: created,
				NextRun:   created,
				Active:    true,
				Items:     []domain.ContributionItem{{ID: uuid.New(), TargetAssetID: etf.ID, Type: domain.ContributionItemTypeRemainder, Value: decimal.Zero, Priority: 1}},
			}
			require.NoError(t, s.plans.Create(ctx, plan))

			// the second insert violates the asset foreign key
			buys := []*domain.Investment{
				{ID: uuid.New(), AssetID: etf.ID, Quantity: decimal.NewFromInt(10), PricePerUnit: decimal.NewFromInt(10), Date: created},
				{ID: uuid.New(), AssetID: uuid.New(), Quantity: decimal.NewFromInt(1), PricePerUnit: decimal.NewFromInt(1), Date: created},
			}
			err := s.plans.RecordOccurrence(ctx, plan.ID, buys, created.AddDate(0, 1, 0))
			require.Error(t, err)

			got, err := s.assets.GetByID(ctx, etf.ID)
			require.NoError(t, err)
			assert.Empty(t, got.Investments)

			due, err := s.plans.ListDue(ctx, created)
			require.NoError(t, err)
			require.Len(t, due, 1)
			assert.True(t, due[0].NextRun.Equal(created))
		})
	}
}
