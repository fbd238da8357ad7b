package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"github.com/simaogato/wealthflow-valuation/internal/adapter/script"
	"github.com/simaogato/wealthflow-valuation/internal/domain"
	"github.com/simaogato/wealthflow-valuation/internal/logger"
)

type runCmd struct {
	timeout time.Duration
	verbose bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "execute a valuation script in the sandbox and print its value" }
func (*runCmd) Usage() string {
	return `valuectl run [-timeout <duration>] [-v] <file.js>

  Loads the script, calls its getValue and prints the settled number.
  Pass - to read the script from stdin. Nothing is cached or persisted.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.timeout, "timeout", 5*time.Second, "Wall-clock limit for the script.")
	f.BoolVar(&c.verbose, "v", false, "Print script console output and debug logs to stderr.")
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	source, err := readSource(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	runner := script.NewRunner(script.Config{Timeout: c.timeout}, cliLogger(c.verbose))
	value, err := runner.Execute(ctx, source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", domain.ScriptErrorKind(err), err)
		return subcommands.ExitFailure
	}

	fmt.Println(value)
	return subcommands.ExitSuccess
}

func readSource(name string) (string, error) {
	var (
		raw []byte
		err error
	)
	if name == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(raw), nil
}

func cliLogger(verbose bool) zerolog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logger.NewWithWriter(logger.Config{Level: level, Pretty: true}, os.Stderr)
}
