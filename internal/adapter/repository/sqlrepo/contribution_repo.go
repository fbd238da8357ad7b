package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
)

// contributionPlanRepository implements domain.ContributionPlanRepository
type contributionPlanRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewContributionPlanRepository creates a new contribution plan repository
func NewContributionPlanRepository(db *sql.DB, dialect Dialect) domain.ContributionPlanRepository {
	return &contributionPlanRepository{db: db, dialect: dialect}
}

// Create inserts the plan and its items in one transaction
func (r *contributionPlanRepository) Create(ctx context.Context, plan *domain.ContributionPlan) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	planQuery := r.dialect.rebind(`
		INSERT INTO contribution_plans (id, name, amount, frequency, start_date, next_run, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	_, err = tx.ExecContext(ctx, planQuery,
		plan.ID,
		plan.Name,
		plan.Amount.String(),
		string(plan.Frequency),
		plan.StartDate.UTC(),
		plan.NextRun.UTC(),
		plan.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contribution plan: %w", err)
	}

	itemQuery := r.dialect.rebind(`
		INSERT INTO contribution_items (id, plan_id, target_asset_id, item_type, value, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	for _, item := range plan.Items {
		_, err := tx.ExecContext(ctx, itemQuery,
			item.ID,
			plan.ID,
			item.TargetAssetID,
			string(item.Type),
			item.Value.String(),
			item.Priority,
		)
		if err != nil {
			return fmt.Errorf("failed to insert contribution item: %w", err)
		}
	}

	return tx.Commit()
}

// ListDue retrieves active plans whose next run is at or before asOf, with their items
func (r *contributionPlanRepository) ListDue(ctx context.Context, asOf time.Time) ([]*domain.ContributionPlan, error) {
	query := r.dialect.rebind(`
		SELECT id, name, amount, frequency, start_date, next_run, active
		FROM contribution_plans
		WHERE active = $1 AND next_run <= $2
		ORDER BY next_run, id
	`)

	rows, err := r.db.QueryContext(ctx, query, true, asOf.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query due plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.ContributionPlan
	for rows.Next() {
		var plan domain.ContributionPlan
		var amountStr string

		err := rows.Scan(
			&plan.ID,
			&plan.Name,
			&amountStr,
			&plan.Frequency,
			&plan.StartDate,
			&plan.NextRun,
			&plan.Active,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contribution plan: %w", err)
		}

		// Parse amount (DECIMAL)
		if plan.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse plan amount: %w", err)
		}
		plans = append(plans, &plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contribution plans: %w", err)
	}
	rows.Close()

	for _, plan := range plans {
		if plan.Items, err = r.items(ctx, plan.ID); err != nil {
			return nil, err
		}
	}

	return plans, nil
}

// RecordOccurrence inserts one occurrence's investments and moves the plan's
// next run in a single transaction
func (r *contributionPlanRepository) RecordOccurrence(ctx context.Context, id uuid.UUID, investments []*domain.Investment, nextRun time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, investment := range investments {
		if err := insertInvestment(ctx, tx, r.dialect, investment); err != nil {
			return err
		}
	}

	query := r.dialect.rebind(`UPDATE contribution_plans SET next_run = $2 WHERE id = $1`)
	result, err := tx.ExecContext(ctx, query, id, nextRun.UTC())
	if err != nil {
		return fmt.Errorf("failed to update next run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("plan %s: %w", id, domain.ErrPlanNotFound)
	}

	return tx.Commit()
}

func (r *contributionPlanRepository) items(ctx context.Context, planID uuid.UUID) ([]domain.ContributionItem, error) {
	query := r.dialect.rebind(`
		SELECT id, plan_id, target_asset_id, item_type, value, priority
		FROM contribution_items
		WHERE plan_id = $1
		ORDER BY priority ASC
	`)

	rows, err := r.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contribution items: %w", err)
	}
	defer rows.Close()

	var items []domain.ContributionItem
	for rows.Next() {
		var item domain.ContributionItem
		var valueStr string

		err := rows.Scan(
			&item.ID,
			&item.PlanID,
			&item.TargetAssetID,
			&item.Type,
			&valueStr,
			&item.Priority,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contribution item: %w", err)
		}

		// Parse value (DECIMAL)
		if item.Value, err = decimal.NewFromString(valueStr); err != nil {
			return nil, fmt.Errorf("failed to parse contribution item value: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contribution items: %w", err)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("contribution plan %s has no items", planID)
	}

	// Sort items by priority (lower number = higher priority)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority < items[j].Priority
	})

	return items, nil
}
