// Package scheduler refreshes the watchlist reports on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/common"
	"github.com/ternarybob/finagent/internal/models"
	"github.com/ternarybob/finagent/internal/pipeline"
)

// ErrAlreadyRunning is returned when a refresh is requested while one is in progress
var ErrAlreadyRunning = errors.New("watchlist refresh already running")

// Runner runs one analysis
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*models.Report, error)
}

// TickerResult is the outcome of one watchlist ticker
type TickerResult struct {
	Ticker   string `json:"ticker"`
	ReportID string `json:"report_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Status describes the scheduler
type Status struct {
	Running     bool           `json:"running"`
	Processing  bool           `json:"processing"`
	Schedule    string         `json:"schedule,omitempty"`
	Watchlist   []string       `json:"watchlist"`
	LastRun     *time.Time     `json:"last_run,omitempty"`
	NextRun     *time.Time     `json:"next_run,omitempty"`
	LastResults []TickerResult `json:"last_results,omitempty"`
}

// Service runs the pipeline for every watchlist ticker, one at a time
type Service struct {
	runner    Runner
	watchlist []string
	benchmark string
	logger    arbor.ILogger
	timeout   time.Duration

	cron     *cron.Cron
	entryID  cron.EntryID
	schedule string
	ctx      context.Context
	cancel   context.CancelFunc

	mu          sync.Mutex
	running     bool
	processing  bool
	lastRun     *time.Time
	lastResults []TickerResult
}

// NewService creates a scheduler for watchlist. Blank entries are dropped and
// symbols are upper-cased. Each ticker gets at most perTicker to finish; zero
// means no limit.
func NewService(runner Runner, watchlist []string, benchmark string, perTicker time.Duration, logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	tickers := common.ParseTickers(watchlist)
	symbols := make([]string, len(tickers))
	for i, t := range tickers {
		symbols[i] = t.String()
	}
	return &Service{
		runner:    runner,
		watchlist: symbols,
		benchmark: benchmark,
		logger:    logger,
		timeout:   perTicker,
		cron:      cron.New(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start registers the refresh under a standard 5-field cron expression and
// starts the cron loop
func (s *Service) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	id, err := s.cron.AddFunc(schedule, s.scheduledRun)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = id
	s.schedule = schedule
	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", schedule).
		Int("tickers", len(s.watchlist)).
		Msg("Scheduler started")
	return nil
}

// Stop cancels a refresh in progress, scheduled or triggered, then halts the
// cron loop and waits for running cron jobs to return
func (s *Service) Stop() {
	s.cancel()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Service) scheduledRun() {
	if _, err := s.RunNow(s.ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
		s.logger.Error().Err(err).Msg("Scheduled watchlist refresh failed")
	} else if errors.Is(err, ErrAlreadyRunning) {
		s.logger.Warn().Msg("Skipping scheduled refresh, previous run still in progress")
	}
}

// RunNow refreshes every watchlist ticker sequentially. Per ticker failures
// are logged and recorded in the results; they never stop the refresh.
func (s *Service) RunNow(ctx context.Context) ([]TickerResult, error) {
	if !s.acquire() {
		return nil, ErrAlreadyRunning
	}
	defer s.release()
	return s.refresh(ctx)
}

// Trigger starts a refresh in the background under the service context, so
// Stop cancels it. ErrAlreadyRunning is returned when a refresh is in progress.
func (s *Service) Trigger() error {
	if !s.acquire() {
		return ErrAlreadyRunning
	}
	common.SafeGo(s.logger, "watchlist-refresh", func() {
		defer s.release()
		if _, err := s.refresh(s.ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Triggered watchlist refresh stopped")
		}
	})
	return nil
}

func (s *Service) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return false
	}
	s.processing = true
	return true
}

func (s *Service) release() {
	s.mu.Lock()
	s.processing = false
	s.mu.Unlock()
}

func (s *Service) refresh(ctx context.Context) ([]TickerResult, error) {
	started := time.Now()
	s.logger.Info().Int("tickers", len(s.watchlist)).Msg("Watchlist refresh started")

	results := make([]TickerResult, 0, len(s.watchlist))
	failed := 0
	for _, ticker := range s.watchlist {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result := s.runTicker(ctx, ticker)
		if result.Error != "" {
			failed++
		}
		results = append(results, result)
	}

	s.mu.Lock()
	s.lastRun = &started
	s.lastResults = results
	s.mu.Unlock()

	s.logger.Info().
		Int("tickers", len(results)).
		Int("failed", failed).
		Str("duration", time.Since(started).Round(time.Millisecond).String()).
		Msg("Watchlist refresh complete")
	return results, nil
}

func (s *Service) runTicker(ctx context.Context, ticker string) TickerResult {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rep, err := s.runner.Run(ctx, pipeline.Request{Ticker: ticker, Benchmark: s.benchmark})
	if err != nil {
		s.logger.Error().Err(err).Str("ticker", ticker).Msg("Watchlist ticker failed")
		return TickerResult{Ticker: ticker, Error: err.Error()}
	}
	return TickerResult{Ticker: ticker, ReportID: rep.ID}
}

// Status returns the scheduler state
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:     s.running,
		Processing:  s.processing,
		Schedule:    s.schedule,
		Watchlist:   append([]string(nil), s.watchlist...),
		LastRun:     s.lastRun,
		LastResults: append([]TickerResult(nil), s.lastResults...),
	}
	if s.running {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}
