package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/simaogato/wealthflow-valuation/internal/adapter/repository/sqlrepo"
	"github.com/simaogato/wealthflow-valuation/internal/domain"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the SQLite database at path.
// ":memory:" gives a private in-memory database.
func NewDB(path string) (*DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// SQLite serializes writers; a single connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates the schema when it does not exist
func (db *DB) Migrate(ctx context.Context) error {
	return sqlrepo.Migrate(ctx, db.DB, sqlrepo.SQLite)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *DB) domain.AssetRepository {
	return sqlrepo.NewAssetRepository(db.DB, sqlrepo.SQLite)
}

// NewContributionPlanRepository creates a new contribution plan repository
func NewContributionPlanRepository(db *DB) domain.ContributionPlanRepository {
	return sqlrepo.NewContributionPlanRepository(db.DB, sqlrepo.SQLite)
}
