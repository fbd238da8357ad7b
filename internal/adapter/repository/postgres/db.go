package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/simaogato/wealthflow-valuation/internal/adapter/repository/sqlrepo"
	"github.com/simaogato/wealthflow-valuation/internal/domain"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=wealthflow sslmode=disable"
// The server is pinged until it answers or ctx ends.
func NewDB(ctx context.Context, connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	backoff := 500 * time.Millisecond
	for {
		err = db.PingContext(ctx)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}

	return &DB{DB: db}, nil
}

// Migrate creates the schema when it does not exist
func (db *DB) Migrate(ctx context.Context) error {
	return sqlrepo.Migrate(ctx, db.DB, sqlrepo.Postgres)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *DB) domain.AssetRepository {
	return sqlrepo.NewAssetRepository(db.DB, sqlrepo.Postgres)
}

// NewContributionPlanRepository creates a new contribution plan repository
func NewContributionPlanRepository(db *DB) domain.ContributionPlanRepository {
	return sqlrepo.NewContributionPlanRepository(db.DB, sqlrepo.Postgres)
}
