package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect selects placeholder syntax and DDL types
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// rebind rewrites $n placeholders into SQLite's ?n form
func (d Dialect) rebind(query string) string {
	if d == SQLite {
		return strings.ReplaceAll(query, "$", "?")
	}
	return query
}

// Schema returns the DDL for d
func (d Dialect) Schema() []string {
	uuidType, moneyType, floatType, timeType, boolType := "UUID", "NUMERIC(20, 8)", "DOUBLE PRECISION", "TIMESTAMPTZ", "BOOLEAN"
	if d == SQLite {
		uuidType, moneyType, floatType, timeType, boolType = "TEXT", "TEXT", "REAL", "DATETIME", "INTEGER"
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS assets (
			id %[1]s PRIMARY KEY,
			name TEXT NOT NULL,
			strategy_kind TEXT,
			growth_rate %[2]s,
			script_source TEXT,
			last_value %[2]s,
			last_value_at %[3]s,
			manual_value %[2]s,
			manual_updated_at %[3]s,
			created_at %[3]s NOT NULL
		)`, uuidType, floatType, timeType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS investments (
			id %[1]s PRIMARY KEY,
			asset_id %[1]s NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
			quantity %[2]s NOT NULL,
			price_per_unit %[2]s NOT NULL,
			date %[3]s NOT NULL
		)`, uuidType, moneyType, timeType),
		`CREATE INDEX IF NOT EXISTS idx_investments_asset_id ON investments(asset_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS contribution_plans (
			id %[1]s PRIMARY KEY,
			name TEXT NOT NULL,
			amount %[2]s NOT NULL,
			frequency TEXT NOT NULL,
			start_date %[3]s NOT NULL,
			next_run %[3]s NOT NULL,
			active %[4]s NOT NULL
		)`, uuidType, moneyType, timeType, boolType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS contribution_items (
			id %[1]s PRIMARY KEY,
			plan_id %[1]s NOT NULL REFERENCES contribution_plans(id) ON DELETE CASCADE,
			target_asset_id %[1]s NOT NULL REFERENCES assets(id),
			item_type TEXT NOT NULL,
			value %[2]s NOT NULL,
			priority INTEGER NOT NULL
		)`, uuidType, moneyType),
		`CREATE INDEX IF NOT EXISTS idx_contribution_plans_next_run ON contribution_plans(next_run)`,
	}
}

// Migrate creates the tables when they do not exist
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	for _, stmt := range dialect.Schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply %s schema: %w", dialect, err)
		}
	}
	return nil
}
