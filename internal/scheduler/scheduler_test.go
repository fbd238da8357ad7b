package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/wealthflow-valuation/internal/usecase/contribution"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	assert.NoError(t, s.AddJob("@every 1s", &countingJob{}))
	assert.NoError(t, s.AddJob("0 0 6 * * *", &countingJob{}))
	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("fails every time")}
	require.NoError(t, s.AddJob("* * * * * *", job))

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())
}

type stubContributions struct {
	asOf    time.Time
	report  *contribution.RunReport
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (s *stubContributions) RunDue(_ context.Context, asOf time.Time) (*contribution.RunReport, error) {
	s.asOf = asOf
	if s.entered != nil {
		close(s.entered)
	}
	if s.block != nil {
		<-s.block
	}
	return s.report, s.err
}

func TestContributionJob_Run(t *testing.T) {
	now := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	runner := &stubContributions{report: &contribution.RunReport{Plans: 2, Occurrences: 3}}
	job := NewContributionJob(ContributionJobConfig{Runner: runner, Clock: func() time.Time { return now }, Log: zerolog.Nop()})

	require.NoError(t, job.Run())
	assert.Equal(t, now, runner.asOf)
	assert.Equal(t, "contributions", job.Name())
}

func TestContributionJob_PropagatesError(t *testing.T) {
	runner := &stubContributions{err: errors.New("db down")}
	job := NewContributionJob(ContributionJobConfig{Runner: runner, Log: zerolog.Nop()})

	assert.EqualError(t, job.Run(), "db down")
}

func TestContributionJob_SkipsOverlappingRuns(t *testing.T) {
	runner := &stubContributions{
		report:  &contribution.RunReport{},
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	job := NewContributionJob(ContributionJobConfig{Runner: runner, Log: zerolog.Nop()})

	done := make(chan error, 1)
	go func() { done <- job.Run() }()

	<-runner.entered

	assert.NoError(t, job.Run())

	close(runner.block)
	assert.NoError(t, <-done)
}
