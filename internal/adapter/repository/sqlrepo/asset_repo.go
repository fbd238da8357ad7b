package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
)

// assetRepository implements domain.AssetRepository
type assetRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *sql.DB, dialect Dialect) domain.AssetRepository {
	return &assetRepository{db: db, dialect: dialect}
}

const assetColumns = `id, name, strategy_kind, growth_rate, script_source, last_value, last_value_at, manual_value, manual_updated_at, created_at`

// GetByID retrieves an asset with its strategy and investments
func (r *assetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	query := r.dialect.rebind(`SELECT ` + assetColumns + ` FROM assets WHERE id = $1`)

	asset, err := scanAsset(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("asset %s: %w", id, domain.ErrAssetNotFound)
		}
		return nil, fmt.Errorf("failed to get asset by ID: %w", err)
	}

	investments, err := r.investments(ctx, `WHERE asset_id = $1`, id)
	if err != nil {
		return nil, err
	}
	asset.Investments = investments[asset.ID]

	return asset, nil
}

// List retrieves every asset with its strategy and investments
func (r *assetRepository) List(ctx context.Context) ([]*domain.Asset, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []*domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}
	rows.Close()

	investments, err := r.investments(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, asset := range assets {
		asset.Investments = investments[asset.ID]
	}

	return assets, nil
}

// Create creates a new asset
func (r *assetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	query := r.dialect.rebind(`
		INSERT INTO assets (id, name, created_at)
		VALUES ($1, $2, $3)
	`)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, query, asset.ID, asset.Name, asset.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}
	if asset.Strategy != nil {
		if err := r.writeStrategy(ctx, tx, asset.ID, *asset.Strategy); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpdateStrategy replaces the active strategy. Columns of other kinds are left as they are.
func (r *assetRepository) UpdateStrategy(ctx context.Context, id uuid.UUID, strategy domain.ValuationStrategy) error {
	return r.writeStrategy(ctx, r.db, id, strategy)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *assetRepository) writeStrategy(ctx context.Context, db execer, id uuid.UUID, strategy domain.ValuationStrategy) error {
	var (
		query string
		args  []any
	)

	switch strategy.Kind {
	case domain.StrategyKindFixed:
		query = `UPDATE assets SET strategy_kind = $2, growth_rate = $3 WHERE id = $1`
		args = []any{id, string(strategy.Kind), strategy.Fixed.GrowthRate}
	case domain.StrategyKindDynamic:
		query = `UPDATE assets SET strategy_kind = $2, script_source = $3, last_value = $4, last_value_at = $5 WHERE id = $1`
		args = []any{id, string(strategy.Kind), strategy.Dynamic.ScriptSource, nullFloat(strategy.Dynamic.LastValue), nullTime(strategy.Dynamic.LastValueAt)}
	case domain.StrategyKindManual:
		updatedAt := strategy.Manual.UpdatedAt
		query = `UPDATE assets SET strategy_kind = $2, manual_value = $3, manual_updated_at = $4 WHERE id = $1`
		args = []any{id, string(strategy.Kind), nullFloat(strategy.Manual.Value), nullTime(&updatedAt)}
	default:
		return fmt.Errorf("%w: unknown strategy kind %q", domain.ErrStrategyMissing, strategy.Kind)
	}

	result, err := db.ExecContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update strategy: %w", err)
	}
	return requireRow(result, id)
}

// UpdateDynamicLastValue persists the fallback fields of a dynamic strategy
func (r *assetRepository) UpdateDynamicLastValue(ctx context.Context, id uuid.UUID, value float64, at time.Time) error {
	query := r.dialect.rebind(`
		UPDATE assets
		SET last_value = $2, last_value_at = $3
		WHERE id = $1 AND strategy_kind = 'DYNAMIC'
	`)

	result, err := r.db.ExecContext(ctx, query, id, value, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to update last value: %w", err)
	}
	return requireRow(result, id)
}

// AddInvestment appends an investment to an asset
func (r *assetRepository) AddInvestment(ctx context.Context, investment *domain.Investment) error {
	return insertInvestment(ctx, r.db, r.dialect, investment)
}

func insertInvestment(ctx context.Context, db execer, dialect Dialect, investment *domain.Investment) error {
	query := dialect.rebind(`
		INSERT INTO investments (id, asset_id, quantity, price_per_unit, date)
		VALUES ($1, $2, $3, $4, $5)
	`)

	_, err := db.ExecContext(ctx, query,
		investment.ID,
		investment.AssetID,
		investment.Quantity.String(),
		investment.PricePerUnit.String(),
		investment.Date.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert investment: %w", err)
	}
	return nil
}

// investments loads investments grouped by asset, oldest first
func (r *assetRepository) investments(ctx context.Context, where string, args ...any) (map[uuid.UUID][]domain.Investment, error) {
	query := r.dialect.rebind(`SELECT id, asset_id, quantity, price_per_unit, date FROM investments ` + where + ` ORDER BY date, id`)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query investments: %w", err)
	}
	defer rows.Close()

	grouped := make(map[uuid.UUID][]domain.Investment)
	for rows.Next() {
		var inv domain.Investment
		var quantityStr, priceStr string

		if err := rows.Scan(&inv.ID, &inv.AssetID, &quantityStr, &priceStr, &inv.Date); err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}

		// Parse quantity and price (DECIMAL)
		if inv.Quantity, err = decimal.NewFromString(quantityStr); err != nil {
			return nil, fmt.Errorf("failed to parse quantity: %w", err)
		}
		if inv.PricePerUnit, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("failed to parse price_per_unit: %w", err)
		}

		grouped[inv.AssetID] = append(grouped[inv.AssetID], inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating investments: %w", err)
	}

	return grouped, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAsset reads an asset row and keeps only the variant named by strategy_kind
func scanAsset(row rowScanner) (*domain.Asset, error) {
	var (
		asset           domain.Asset
		kind            sql.NullString
		growthRate      sql.NullFloat64
		scriptSource    sql.NullString
		lastValue       sql.NullFloat64
		lastValueAt     sql.NullTime
		manualValue     sql.NullFloat64
		manualUpdatedAt sql.NullTime
	)

	err := row.Scan(
		&asset.ID,
		&asset.Name,
		&kind,
		&growthRate,
		&scriptSource,
		&lastValue,
		&lastValueAt,
		&manualValue,
		&manualUpdatedAt,
		&asset.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if !kind.Valid {
		return &asset, nil
	}

	strategy := &domain.ValuationStrategy{Kind: domain.StrategyKind(kind.String)}
	switch strategy.Kind {
	case domain.StrategyKindFixed:
		if growthRate.Valid {
			strategy.Fixed = &domain.FixedStrategy{GrowthRate: growthRate.Float64}
		}
	case domain.StrategyKindDynamic:
		if scriptSource.Valid {
			strategy.Dynamic = &domain.DynamicStrategy{
				ScriptSource: scriptSource.String,
				LastValue:    floatPtr(lastValue),
				LastValueAt:  timePtr(lastValueAt),
			}
		}
	case domain.StrategyKindManual:
		strategy.Manual = &domain.ManualStrategy{Value: floatPtr(manualValue)}
		if manualUpdatedAt.Valid {
			strategy.Manual.UpdatedAt = manualUpdatedAt.Time
		}
	}
	asset.Strategy = strategy

	return &asset, nil
}

func requireRow(result sql.Result, id uuid.UUID) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("asset %s: %w", id, domain.ErrAssetNotFound)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
