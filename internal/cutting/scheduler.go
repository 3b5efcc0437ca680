package cutting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clipper/internal/logging"
	"clipper/internal/media/ffmpeg"
	"clipper/internal/notifications"
	"clipper/internal/services"
	"clipper/internal/state"
)

// Cutter renders one clip variant.
type Cutter interface {
	Cut(ctx context.Context, spec ffmpeg.CutSpec) error
}

// Options configures a Scheduler.
type Options struct {
	Workers       int
	MaxAttempts   int
	RetryDelay    time.Duration
	JobTimeout    time.Duration
	HorizontalCRF int
	VerticalCRF   int
	Width         int
	Height        int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 30 * time.Minute
	}
	return o
}

// Scheduler runs cut jobs on a fixed pool of workers. Each finished job is
// persisted to the store before its notification is queued.
type Scheduler struct {
	cutter Cutter
	store  *state.Store
	sink   *notifications.Sink
	logger *slog.Logger
	opts   Options
	sleep  func(context.Context, time.Duration) error
}

// NewScheduler wires a scheduler. sink may be nil.
func NewScheduler(cutter Cutter, store *state.Store, sink *notifications.Sink, logger *slog.Logger, opts Options) *Scheduler {
	return &Scheduler{
		cutter: cutter,
		store:  store,
		sink:   sink,
		logger: logging.NewComponentLogger(logger, "cut-scheduler"),
		opts:   opts.withDefaults(),
		sleep:  sleepContext,
	}
}

// Workers returns the effective pool size.
func (s *Scheduler) Workers() int { return s.opts.Workers }

// Run executes every job not already complete in the store and returns once
// each has reached a terminal state. Cancelling ctx stops dispatch; jobs in
// flight finish under their own timeout and undispatched jobs are reported
// as canceled. The returned error covers only store failures that prevent
// the batch from starting.
func (s *Scheduler) Run(ctx context.Context, videoName string, jobs []Job) (Batch, error) {
	current, err := s.store.Load(ctx)
	if err != nil {
		return Batch{}, fmt.Errorf("load cut progress: %w", err)
	}
	pending, skipped := Partition(current, jobs)
	tracker := newClipTracker(jobs, skipped)

	s.logger.Info("cut batch started",
		logging.EventType("cut_batch_start"),
		logging.Int("jobs_total", len(jobs)),
		logging.Int("jobs_pending", len(pending)),
		logging.Int("jobs_skipped", len(skipped)),
		logging.Int("workers", s.opts.Workers),
	)

	results := make([]JobResult, 0, len(jobs))
	results = append(results, skipped...)
	if len(pending) == 0 {
		sortResults(results)
		return Batch{Results: results}, nil
	}

	queue := make(chan Job)
	completed := make(chan JobResult, len(pending))

	workers := s.opts.Workers
	if workers > len(pending) {
		workers = len(pending)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				completed <- s.execute(ctx, videoName, job)
			}
		}()
	}

	go func() {
		defer close(queue)
		for idx, job := range pending {
			select {
			case queue <- job:
			case <-ctx.Done():
				for _, rest := range pending[idx:] {
					completed <- JobResult{Job: rest, Status: StatusCanceled, Err: ctx.Err()}
				}
				return
			}
		}
	}()

	for range pending {
		result := <-completed
		results = append(results, result)
		if result.Status == StatusSucceeded {
			if done, ok := tracker.markDone(result.Job.Key); ok {
				s.clipCompleted(videoName, done)
			}
		}
	}
	wg.Wait()

	sortResults(results)
	batch := Batch{Results: results}
	s.logger.Info("cut batch finished",
		logging.EventType("cut_batch_complete"),
		logging.Int("succeeded", batch.Count(StatusSucceeded)),
		logging.Int("skipped", batch.Count(StatusSkipped)),
		logging.Int("failed", batch.Count(StatusFailed)),
		logging.Int("canceled", batch.Count(StatusCanceled)),
	)
	return batch, nil
}

func (s *Scheduler) execute(parent context.Context, videoName string, job Job) JobResult {
	ctx := services.WithClipID(context.WithoutCancel(parent), job.Key.ClipID)
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldVariant, string(job.Key.Variant)))
	spec := s.spec(job)
	started := time.Now()

	result := JobResult{Job: job, Status: StatusFailed}
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if parent.Err() != nil {
				result.Status = StatusCanceled
				break
			}
			if err := s.sleep(ctx, s.opts.RetryDelay); err != nil {
				break
			}
		}
		result.Attempts = attempt
		err := s.attempt(ctx, spec)
		if err == nil {
			artifact, fpErr := state.Fingerprint(state.ClipArtifactName(job.Key), job.Output)
			if fpErr == nil {
				result.Status = StatusSucceeded
				result.Output = artifact
				result.Err = nil
				break
			}
			err = fpErr
		}
		result.Err = services.Wrap(services.ErrCutJob, "cut", job.Key.String(), fmt.Sprintf("attempt %d/%d", attempt, s.opts.MaxAttempts), err)
		logger.Warn("cut attempt failed",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", s.opts.MaxAttempts),
			logging.Error(err),
			logging.EventType("cut_attempt_failed"),
			logging.String(logging.FieldErrorHint, "inspect the ffmpeg stderr tail in the error"),
		)
	}
	result.Elapsed = time.Since(started)

	if err := s.persist(ctx, result); err != nil {
		logger.Error("persist cut progress failed", logging.Error(err))
		if result.Status == StatusSucceeded {
			result.Status = StatusFailed
			result.Err = err
		}
	}

	switch result.Status {
	case StatusSucceeded:
		logger.Info("cut job completed",
			logging.EventType("cut_job_completed"),
			logging.String("output_path", job.Output),
			logging.Int64("size_bytes", result.Output.Size),
			logging.Int("attempts", result.Attempts),
			logging.Duration("elapsed", result.Elapsed),
		)
		s.sink.Send(notifications.EventCutJobCompleted, notifications.Payload{
			notifications.KeyVideoName: videoName,
			notifications.KeyClipID:    job.Key.ClipID,
			notifications.KeyVariant:   string(job.Key.Variant),
			notifications.KeyTitle:     job.Title,
			notifications.KeyScore:     job.Score,
			notifications.KeyPath:      job.Output,
		})
	case StatusFailed:
		logging.ErrorWithContext(logger, "cut job failed", "cut_job_failed",
			logging.Int("attempts", result.Attempts),
			logging.Error(result.Err),
			logging.String(logging.FieldImpact, "clip variant missing; re-run to retry"),
		)
		s.sink.Send(notifications.EventCutJobFailed, notifications.Payload{
			notifications.KeyVideoName: videoName,
			notifications.KeyClipID:    job.Key.ClipID,
			notifications.KeyVariant:   string(job.Key.Variant),
			notifications.KeyTitle:     job.Title,
			notifications.KeyAttempts:  result.Attempts,
			notifications.KeyError:     errorText(result.Err),
		})
	}
	return result
}

func (s *Scheduler) attempt(ctx context.Context, spec ffmpeg.CutSpec) error {
	attemptCtx, cancel := context.WithTimeout(ctx, s.opts.JobTimeout)
	defer cancel()
	err := s.cutter.Cut(attemptCtx, spec)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "cut", "ffmpeg", fmt.Sprintf("exceeded %s", s.opts.JobTimeout), err)
	}
	return err
}

func (s *Scheduler) persist(ctx context.Context, result JobResult) error {
	_, err := s.store.Update(ctx, func(st *state.PipelineState) error {
		rec, _ := st.CutRecord(result.Job.Key)
		rec.Key = result.Job.Key
		rec.Attempts = result.Attempts
		rec.UpdatedAt = time.Now().UTC()
		switch result.Status {
		case StatusSucceeded:
			rec.Done = true
			rec.LastError = ""
			rec.Output = result.Output
		default:
			rec.Done = false
			rec.LastError = errorText(result.Err)
			rec.Output = state.Artifact{Name: state.ClipArtifactName(result.Job.Key), Path: result.Job.Output}
		}
		st.SetCutRecord(rec)
		return nil
	})
	return err
}

func (s *Scheduler) spec(job Job) ffmpeg.CutSpec {
	spec := ffmpeg.CutSpec{
		Source: job.Source,
		Output: job.Output,
		Start:  job.Start,
		End:    job.End,
		CRF:    s.opts.HorizontalCRF,
	}
	if job.Vertical() {
		spec.Vertical = true
		spec.CropX = job.CropX
		spec.CRF = s.opts.VerticalCRF
		spec.Width = s.opts.Width
		spec.Height = s.opts.Height
	}
	return spec
}

func (s *Scheduler) clipCompleted(videoName string, job Job) {
	s.logger.Info("clip completed",
		logging.EventType("clip_completed"),
		logging.Int(logging.FieldClipID, job.Key.ClipID),
		logging.String("title", job.Title),
	)
	s.sink.Send(notifications.EventClipCompleted, notifications.Payload{
		notifications.KeyVideoName: videoName,
		notifications.KeyClipID:    job.Key.ClipID,
		notifications.KeyTitle:     job.Title,
		notifications.KeyScore:     job.Score,
	})
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
