package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/timer"
)

// Rescheduler replans a single duty's triggers.
type Rescheduler interface {
	RescheduleAllForService(ctx context.Context, dutyID string) (int, error)
}

// DutyLister enumerates stored duties from a calendar day onward.
type DutyLister interface {
	ListFrom(ctx context.Context, day time.Time) ([]*duty.Duty, error)
}

// RecoveryError records a single duty that failed to replan.
type RecoveryError struct {
	DutyID string
	Date   string
	Err    error
}

// RecoveryResult summarizes one recovery run.
type RecoveryResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Total      int
	Successful int
	Failed     int
	Registered int

	// PermissionDenied is set when the timer facility refused exact
	// scheduling. The run stops early: retrying the remaining duties
	// cannot succeed until the user grants permission again.
	PermissionDenied bool

	Errors []RecoveryError
}

// RecoveryMetrics tracks cumulative recovery statistics across runs.
type RecoveryMetrics struct {
	mu sync.RWMutex

	TotalRuns          int64
	SuccessfulDuties   int64
	FailedDuties       int64
	TriggersRegistered int64
	LastRunTime        time.Time
	LastRunDuration    time.Duration
	TotalDuration      time.Duration
}

func (m *RecoveryMetrics) record(result *RecoveryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRuns++
	m.SuccessfulDuties += int64(result.Successful)
	m.FailedDuties += int64(result.Failed)
	m.TriggersRegistered += int64(result.Registered)
	m.LastRunTime = result.EndTime
	m.LastRunDuration = result.Duration
	m.TotalDuration += result.Duration
}

// Snapshot returns the metrics as a map for logging and health reporting.
func (m *RecoveryMetrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"total_runs":          m.TotalRuns,
		"successful_duties":   m.SuccessfulDuties,
		"failed_duties":       m.FailedDuties,
		"triggers_registered": m.TriggersRegistered,
		"last_run_time":       m.LastRunTime,
		"last_run_duration":   m.LastRunDuration.String(),
		"total_duration":      m.TotalDuration.String(),
	}
}

// RecoveryJob replans every upcoming duty against the timer facility. It is
// run at process startup, after a device reboot notification, and on demand
// via the job queue: registered triggers do not survive a reboot, so the
// stored duties are the source of truth to rebuild them from.
type RecoveryJob struct {
	config    RecoveryConfig
	duties    DutyLister
	scheduler Rescheduler
	logger    zerolog.Logger
	metrics   *RecoveryMetrics
}

// NewRecoveryJob creates a recovery job.
func NewRecoveryJob(config RecoveryConfig, duties DutyLister, scheduler Rescheduler, logger zerolog.Logger) *RecoveryJob {
	return &RecoveryJob{
		config:    config,
		duties:    duties,
		scheduler: scheduler,
		logger:    logger.With().Str("component", "recovery_job").Logger(),
		metrics:   &RecoveryMetrics{},
	}
}

// Metrics returns the job's cumulative metrics.
func (j *RecoveryJob) Metrics() *RecoveryMetrics {
	return j.metrics
}

type dutyResult struct {
	dutyID           string
	date             string
	registered       int
	err              error
	permissionDenied bool
}

// Run executes one recovery pass over all duties on or after today.
func (j *RecoveryJob) Run(ctx context.Context) (*RecoveryResult, error) {
	result := &RecoveryResult{StartTime: time.Now()}

	today := time.Now()
	duties, err := j.duties.ListFrom(ctx, today)
	if err != nil {
		return nil, err
	}

	if j.config.LookaheadDays > 0 {
		cutoff := today.AddDate(0, 0, j.config.LookaheadDays).Format("2006-01-02")
		filtered := duties[:0]
		for _, d := range duties {
			if d.Date <= cutoff {
				filtered = append(filtered, d)
			}
		}
		duties = filtered
	}

	result.Total = len(duties)

	j.logger.Info().
		Int("duties", len(duties)).
		Int("concurrency", j.config.Concurrency).
		Msg("Starting recovery run")

	if len(duties) == 0 {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		j.metrics.record(result)
		return result, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan *duty.Duty, len(duties))
	results := make(chan dutyResult, len(duties))

	// permissionLost stops the remaining workers once the facility
	// refuses an exact trigger.
	var permissionLost atomic.Bool

	concurrency := j.config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				if runCtx.Err() != nil || permissionLost.Load() {
					results <- dutyResult{dutyID: d.ID, date: d.Date, err: context.Canceled}
					continue
				}

				res := j.recoverOne(runCtx, d)
				if res.permissionDenied {
					permissionLost.Store(true)
					cancel()
				}
				results <- res
			}
		}()
	}

	for _, d := range duties {
		jobs <- d
	}
	close(jobs)

	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RecoveryError{
				DutyID: res.dutyID,
				Date:   res.date,
				Err:    res.err,
			})
			if res.permissionDenied {
				result.PermissionDenied = true
			}
			continue
		}
		result.Successful++
		result.Registered += res.registered
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	j.metrics.record(result)

	event := j.logger.Info()
	if result.Failed > 0 {
		event = j.logger.Warn()
	}
	event.
		Int("total", result.Total).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("registered", result.Registered).
		Bool("permission_denied", result.PermissionDenied).
		Dur("duration", result.Duration).
		Msg("Recovery run complete")

	return result, nil
}

func (j *RecoveryJob) recoverOne(ctx context.Context, d *duty.Duty) dutyResult {
	dutyCtx, cancel := context.WithTimeout(ctx, j.config.DutyTimeout)
	defer cancel()

	registered, err := j.scheduler.RescheduleAllForService(dutyCtx, d.ID)
	if err != nil {
		denied := errors.Is(err, timer.ErrPermissionDenied)
		if denied {
			j.logger.Error().
				Str("duty_id", d.ID).
				Msg("Exact timer permission denied, aborting recovery run")
		} else {
			j.logger.Warn().
				Err(err).
				Str("duty_id", d.ID).
				Str("date", d.Date).
				Msg("Failed to replan duty")
		}
		return dutyResult{dutyID: d.ID, date: d.Date, err: err, permissionDenied: denied}
	}

	j.logger.Debug().
		Str("duty_id", d.ID).
		Str("date", d.Date).
		Int("registered", registered).
		Msg("Replanned duty")

	return dutyResult{dutyID: d.ID, date: d.Date, registered: registered}
}
