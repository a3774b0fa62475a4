package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/models"
	"github.com/ternarybob/finagent/internal/pipeline"
)

type recordingRunner struct {
	mu       sync.Mutex
	requests []pipeline.Request
	fail     map[string]error
	block    chan struct{}
}

func (r *recordingRunner) Run(ctx context.Context, req pipeline.Request) (*models.Report, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if err := r.fail[req.Ticker]; err != nil {
		return nil, err
	}
	return &models.Report{ID: "rpt_" + req.Ticker, Ticker: req.Ticker}, nil
}

func TestRunNow(t *testing.T) {
	runner := &recordingRunner{fail: map[string]error{"BAD": errors.New("ticker not found: BAD")}}
	s := NewService(runner, []string{"AAPL", "BAD", "MSFT"}, "^GSPC", 0, arbor.NewLogger())

	results, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []TickerResult{
		{Ticker: "AAPL", ReportID: "rpt_AAPL"},
		{Ticker: "BAD", Error: "ticker not found: BAD"},
		{Ticker: "MSFT", ReportID: "rpt_MSFT"},
	}, results)

	require.Len(t, runner.requests, 3)
	assert.Equal(t, "^GSPC", runner.requests[0].Benchmark)

	status := s.Status()
	assert.False(t, status.Running)
	assert.False(t, status.Processing)
	assert.NotNil(t, status.LastRun)
	assert.Len(t, status.LastResults, 3)
}

func TestRunNowRejectsOverlap(t *testing.T) {
	runner := &recordingRunner{block: make(chan struct{})}
	s := NewService(runner, []string{"AAPL"}, "", 0, arbor.NewLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.RunNow(context.Background())
	}()

	require.Eventually(t, func() bool { return s.Status().Processing }, time.Second, 5*time.Millisecond)
	_, err := s.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(runner.block)
	<-done
}

func TestTriggerRunsUnderServiceContext(t *testing.T) {
	runner := &recordingRunner{block: make(chan struct{})}
	s := NewService(runner, []string{"AAPL", "MSFT"}, "", 0, arbor.NewLogger())

	require.NoError(t, s.Trigger())
	assert.True(t, s.Status().Processing, "the run slot is taken before Trigger returns")
	assert.ErrorIs(t, s.Trigger(), ErrAlreadyRunning)
	_, err := s.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	s.Stop()
	require.Eventually(t, func() bool { return !s.Status().Processing }, time.Second, 5*time.Millisecond)
	assert.Empty(t, runner.requests, "stopping cancels the blocked refresh")
}

func TestNewServiceNormalisesWatchlist(t *testing.T) {
	s := NewService(&recordingRunner{}, []string{" aapl", "", "^gspc", "  "}, "", 0, arbor.NewLogger())
	assert.Equal(t, []string{"AAPL", "^GSPC"}, s.Status().Watchlist)
}

func TestRunNowPerTickerTimeout(t *testing.T) {
	runner := &recordingRunner{block: make(chan struct{})}
	s := NewService(runner, []string{"AAPL"}, "", 20*time.Millisecond, arbor.NewLogger())

	results, err := s.RunNow(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, context.DeadlineExceeded.Error(), results[0].Error)
}

func TestStartStop(t *testing.T) {
	s := NewService(&recordingRunner{}, []string{"AAPL"}, "", 0, arbor.NewLogger())

	assert.Error(t, s.Start("not a cron"))
	require.NoError(t, s.Start("0 6 * * 1-5"))
	assert.Error(t, s.Start("0 6 * * 1-5"))

	status := s.Status()
	assert.True(t, status.Running)
	assert.Equal(t, "0 6 * * 1-5", status.Schedule)
	require.NotNil(t, status.NextRun)
	assert.Equal(t, 6, status.NextRun.Hour())

	s.Stop()
	assert.False(t, s.Status().Running)
	s.Stop()
}
