package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/simaogato/wealthflow-valuation/internal/adapter/repository/sqlite"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/seeder"
)

type seedCmd struct {
	db string
}

func (*seedCmd) Name() string     { return "seed" }
func (*seedCmd) Synopsis() string { return "create a demo portfolio in a SQLite store" }
func (*seedCmd) Usage() string {
	return `valuectl seed [-db <path>]

  Creates the database if needed and adds one fixed, one dynamic and one
  manual demo asset. Running it again changes nothing.
`
}

func (c *seedCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.db, "db", "wealthflow.db", "Path to the SQLite database.")
}

func (c *seedCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	db, err := sqlite.NewDB(c.db)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	s := seeder.NewDemoSeeder(sqlite.NewAssetRepository(db), nil)
	created, err := s.Seed(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	for _, demo := range s.DemoAssets() {
		fmt.Printf("%s  %-8s  %s\n", demo.ID, demo.Strategy.Kind, demo.Name)
	}
	fmt.Printf("%d asset(s) created\n", created)
	return subcommands.ExitSuccess
}
