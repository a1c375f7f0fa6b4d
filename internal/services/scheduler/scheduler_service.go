package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/services/tracker"
)

// stopTimeout bounds how long Stop waits for an in-flight cycle
const stopTimeout = 30 * time.Second

// Service implements SchedulerService: it triggers tracking cycles on a cron
// schedule and never lets two cycles overlap.
type Service struct {
	runner       interfaces.CycleRunner
	cron         *cron.Cron
	logger       arbor.ILogger
	runOnStartup bool

	mu          sync.Mutex // Protects the fields below
	running     bool
	schedule    string
	entryID     cron.EntryID
	lastRun     *time.Time
	lastError   string
	lastSummary *models.CycleSummary
	skipped     int

	// Cancelled on Stop so in-flight fetches are abandoned
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a new scheduler service
func NewService(runner interfaces.CycleRunner, runOnStartup bool, logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		runner:       runner,
		cron:         cron.New(),
		logger:       logger,
		runOnStartup: runOnStartup,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start registers the tracking cycle with the given cron expression
func (s *Service) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if err := common.ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	entryID, err := s.cron.AddFunc(schedule, s.runScheduledTask)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.schedule = schedule
	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", schedule).
		Bool("run_on_startup", s.runOnStartup).
		Msg("Scheduler started")

	if s.runOnStartup {
		s.wg.Add(1)
		common.SafeGo(s.logger, "startup-cycle", func() {
			defer s.wg.Done()
			s.runScheduledTask()
		})
	}

	return nil
}

// Stop halts the schedule, cancels any in-flight cycle and waits for it to finish
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		s.logger.Warn().Dur("timeout", stopTimeout).Msg("Tracking cycle did not stop within timeout")
	}

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// TriggerNow runs a cycle immediately and returns its summary
func (s *Service) TriggerNow(ctx context.Context) (*models.CycleSummary, error) {
	s.logger.Info().Msg("Manual tracking cycle requested")
	return s.execute(ctx)
}

// Status returns the schedule and the result of the most recent cycle
func (s *Service) Status() models.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := models.SchedulerStatus{
		Schedule:    s.schedule,
		Running:     s.running,
		LastRun:     s.lastRun,
		LastError:   s.lastError,
		LastSummary: s.lastSummary,
		Skipped:     s.skipped,
	}

	if s.running {
		if entry := s.cron.Entry(s.entryID); entry.Valid() && !entry.Next.IsZero() {
			next := entry.Next
			status.NextRun = &next
		}
	}

	return status
}

// runScheduledTask is the cron callback. A tick arriving while a cycle is
// still running is skipped, not queued.
func (s *Service) runScheduledTask() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in scheduled tracking cycle")
			s.mu.Lock()
			s.lastError = fmt.Sprintf("panic: %v", r)
			s.mu.Unlock()
		}
	}()

	if s.runner.IsRunning() {
		s.skip()
		return
	}

	if _, err := s.execute(s.ctx); err != nil && !errors.Is(err, tracker.ErrCycleInProgress) {
		s.logger.Error().Err(err).Msg("Scheduled tracking cycle failed")
	}
}

func (s *Service) skip() {
	s.mu.Lock()
	s.skipped++
	skipped := s.skipped
	s.mu.Unlock()

	s.logger.Warn().Int("skipped_ticks", skipped).Msg("Previous tracking cycle still running, skipping tick")
}

// execute runs one cycle and records its outcome
func (s *Service) execute(ctx context.Context) (*models.CycleSummary, error) {
	started := time.Now()
	summary, err := s.runner.RunCycle(ctx)
	if errors.Is(err, tracker.ErrCycleInProgress) {
		s.skip()
		return nil, err
	}

	s.mu.Lock()
	s.lastRun = &started
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
		s.lastSummary = summary
	}
	s.mu.Unlock()

	return summary, err
}
