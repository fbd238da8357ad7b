package script

import (
	"context"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
)

// Config controls the runner's execution limits
type Config struct {
	// Timeout bounds a single execution, zero leaves it to the caller's context
	Timeout time.Duration
	Fetch   FetchConfig
}

// Runner executes valuation scripts, each in a fresh interpreter with only
// console, fetch, timers, module/exports and a file-system-denying require
// in scope
type Runner struct {
	timeout time.Duration
	fetcher *Fetcher
	log     zerolog.Logger
}

var _ domain.ScriptRunner = (*Runner)(nil)

func NewRunner(cfg Config, log zerolog.Logger) *Runner {
	return &Runner{
		timeout: cfg.Timeout,
		fetcher: NewFetcher(cfg.Fetch),
		log:     log.With().Str("component", "script_runner").Logger(),
	}
}

// Execute evaluates source, calls its getValue and waits for the result to
// settle to a finite number
func (r *Runner) Execute(ctx context.Context, source string) (float64, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	// cancels in-flight fetches once the result is known
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	vm := goja.New()
	loop := newEventLoop(vm)
	defer loop.stop()

	stopInterrupt := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stopInterrupt()

	sb, err := newSandbox(ctx, vm, loop, r.fetcher, r.log)
	if err != nil {
		return 0, executionError(err)
	}

	value, err := r.evaluate(ctx, sb, loop, source)
	if err != nil {
		r.log.Debug().
			Err(err).
			Str("kind", domain.ScriptErrorKind(err)).
			Dur("elapsed", time.Since(start)).
			Msg("script failed")
		return 0, err
	}

	r.log.Debug().
		Float64("value", value).
		Dur("elapsed", time.Since(start)).
		Msg("script settled")
	return value, nil
}

func (r *Runner) evaluate(ctx context.Context, sb *sandbox, loop *eventLoop, source string) (float64, error) {
	entry, err := sb.load(source)
	if err != nil {
		return 0, err
	}

	result, err := entry(goja.Undefined())
	if err != nil {
		return 0, executionError(err)
	}

	promise, isPromise := result.Export().(*goja.Promise)
	if !isPromise {
		return toFinite(result)
	}

	settled := func() bool { return promise.State() != goja.PromiseStatePending }
	if err := loop.run(ctx, settled); err != nil {
		return 0, executionError(err)
	}

	if promise.State() == goja.PromiseStateRejected {
		return 0, rejectionError(promise.Result())
	}
	return toFinite(promise.Result())
}
