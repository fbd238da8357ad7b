package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/contribution"
)

// ContributionRunner executes due contribution plans
type ContributionRunner interface {
	RunDue(ctx context.Context, asOf time.Time) (*contribution.RunReport, error)
}

// ContributionJob executes every due recurring contribution plan
type ContributionJob struct {
	runner  ContributionRunner
	now     domain.Clock
	timeout time.Duration
	log     zerolog.Logger

	// overlapping cron ticks are skipped
	mu sync.Mutex
}

// ContributionJobConfig holds configuration for the contribution job
type ContributionJobConfig struct {
	Runner  ContributionRunner
	Clock   domain.Clock
	Timeout time.Duration
	Log     zerolog.Logger
}

// NewContributionJob creates a new contribution job
func NewContributionJob(cfg ContributionJobConfig) *ContributionJob {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &ContributionJob{
		runner:  cfg.Runner,
		now:     cfg.Clock,
		timeout: cfg.Timeout,
		log:     cfg.Log.With().Str("job", "contributions").Logger(),
	}
}

// Name returns the job name
func (j *ContributionJob) Name() string {
	return "contributions"
}

// Run executes the due plans
func (j *ContributionJob) Run() error {
	if !j.mu.TryLock() {
		j.log.Warn().Msg("previous contribution run still in progress, skipping")
		return nil
	}
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	report, err := j.runner.RunDue(ctx, j.now())
	if err != nil {
		return err
	}

	j.log.Info().
		Int("plans", report.Plans).
		Int("occurrences", report.Occurrences).
		Int("investments", report.Investments).
		Int("failed", len(report.Failed)).
		Dur("duration", time.Since(start)).
		Msg("contribution run completed")
	return nil
}
