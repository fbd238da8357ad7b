package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"

	"github.com/simaogato/wealthflow-valuation/internal/adapter/cache"
	"github.com/simaogato/wealthflow-valuation/internal/adapter/repository/sqlite"
	"github.com/simaogato/wealthflow-valuation/internal/adapter/script"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/valuation"
)

// storeFlags are shared by the commands that read a SQLite store
type storeFlags struct {
	db      string
	timeout time.Duration
	verbose bool
}

func (s *storeFlags) register(f *flag.FlagSet) {
	f.StringVar(&s.db, "db", "wealthflow.db", "Path to the SQLite database.")
	f.DurationVar(&s.timeout, "timeout", 5*time.Second, "Wall-clock limit for each script run.")
	f.BoolVar(&s.verbose, "v", false, "Print script console output and debug logs to stderr.")
}

// open builds a valuation service over the store. The caller closes the returned DB.
func (s *storeFlags) open(ctx context.Context) (*valuation.ValuationService, *sqlite.DB, error) {
	if _, err := os.Stat(s.db); err != nil {
		return nil, nil, fmt.Errorf("database %s: %w", s.db, err)
	}
	db, err := sqlite.NewDB(s.db)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	log := cliLogger(s.verbose)
	runner := script.NewRunner(script.Config{Timeout: s.timeout}, log)
	scriptCache := cache.NewScriptCache(time.Hour, time.Hour, nil)
	service := valuation.NewValuationService(sqlite.NewAssetRepository(db), runner, scriptCache, valuation.Config{}, log)
	return service, db, nil
}

type valueCmd struct {
	store  storeFlags
	asOf   string
	bypass bool
}

func (*valueCmd) Name() string     { return "value" }
func (*valueCmd) Synopsis() string { return "print the current value of an asset" }
func (*valueCmd) Usage() string {
	return `valuectl value [-db <path>] [-as-of <YYYY-MM-DD>] [-bypass] <asset-id>

  Values the asset through its strategy. Dynamic assets run their script;
  a failing script falls back to the last known value.
`
}

func (c *valueCmd) SetFlags(f *flag.FlagSet) {
	c.store.register(f)
	f.StringVar(&c.asOf, "as-of", "", "Projection date for fixed-rate assets (defaults to now).")
	f.BoolVar(&c.bypass, "bypass", false, "Ignore cached script results.")
}

func (c *valueCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	id, err := uuid.Parse(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid asset id: %v\n", err)
		return subcommands.ExitUsageError
	}

	var opts []valuation.Option
	if c.asOf != "" {
		asOf, err := time.Parse("2006-01-02", c.asOf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing -as-of: %v\n", err)
			return subcommands.ExitUsageError
		}
		opts = append(opts, valuation.WithAsOf(asOf))
	}
	if c.bypass {
		opts = append(opts, valuation.WithBypassCache())
	}

	service, db, err := c.store.open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	value, err := service.CurrentValue(ctx, id, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Printf("%.2f\n", value)
	return subcommands.ExitSuccess
}

type growthCmd struct {
	store storeFlags
}

func (*growthCmd) Name() string     { return "growth" }
func (*growthCmd) Synopsis() string { return "print the annualized growth rate of an asset" }
func (*growthCmd) Usage() string {
	return `valuectl growth [-db <path>] <asset-id>

  Prints the compound annual growth rate, in percent, from the first
  investment to now.
`
}

func (c *growthCmd) SetFlags(f *flag.FlagSet) {
	c.store.register(f)
}

func (c *growthCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	id, err := uuid.Parse(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid asset id: %v\n", err)
		return subcommands.ExitUsageError
	}

	service, db, err := c.store.open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	rate, err := service.GrowthRate(ctx, id)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Printf("%.2f%%\n", rate)
	return subcommands.ExitSuccess
}
