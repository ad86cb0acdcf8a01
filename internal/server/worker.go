package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/holefill/internal/imageio"
	"github.com/cwbudde/holefill/internal/inpaint"
	"github.com/cwbudde/holefill/internal/parallel"
	"github.com/cwbudde/holefill/internal/store"
)

// progressInterval throttles SSE progress events to two per second.
const progressInterval = 500 * time.Millisecond

// runner carries what a job needs besides its configuration.
type runner struct {
	jm       *JobManager
	store    store.Store // nil disables persistence
	traceDir string      // empty disables the cost trace
	defaults inpaint.Options
	exec     parallel.Executor
}

// runJob executes a fill job. Progress is published to SSE subscribers and,
// when enabled, appended to the job's trace; the finished result is
// persisted to the store.
func (r *runner) runJob(ctx context.Context, jobID string) error {
	job, exists := r.jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := r.jm.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}
	r.publish(jobID)
	slog.Info("Starting job", "job_id", jobID, "image", job.Config.ImagePath, "mask", job.Config.MaskPath)

	opts, err := job.Config.Apply(r.defaults)
	if err != nil {
		return r.fail(jobID, fmt.Errorf("invalid job options: %w", err))
	}

	channels := job.Config.Channels
	if channels == 0 {
		channels = 3
	}
	img, err := imageio.LoadFrame(job.Config.ImagePath, channels)
	if err != nil {
		return r.fail(jobID, err)
	}
	mask, err := imageio.LoadMask(job.Config.MaskPath)
	if err != nil {
		return r.fail(jobID, err)
	}
	slog.Info("Loaded inputs", "job_id", jobID, "width", img.Width, "height", img.Height, "hole_pixels", mask.CountFill())

	var trace *store.TraceWriter
	if r.traceDir != "" {
		trace, err = store.NewTraceWriter(r.traceDir, jobID, false)
		if err != nil {
			slog.Warn("Trace disabled", "job_id", jobID, "error", err)
		} else {
			defer trace.Close()
		}
	}

	var lastEvent time.Time
	opts.Progress = func(p inpaint.Progress) {
		r.jm.UpdateJob(jobID, func(j *Job) {
			j.Step, j.Steps = p.Step, p.Steps
			j.Width, j.Height = p.Width, p.Height
			j.Iteration = p.Iteration
			j.MeanCost = p.Stats.MeanCost
			j.Unknown = p.Stats.Unknown
		})
		if trace != nil {
			if err := trace.Write(store.EntryFromProgress(p)); err != nil {
				slog.Warn("Failed to write trace entry", "job_id", jobID, "error", err)
			}
		}
		if time.Since(lastEvent) >= progressInterval {
			lastEvent = time.Now()
			r.publish(jobID)
		}
	}

	p, err := inpaint.New(opts, r.exec)
	if err != nil {
		return r.fail(jobID, err)
	}
	res, err := p.Fill(ctx, img, mask)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			r.markCancelled(jobID)
			return err
		}
		return r.fail(jobID, err)
	}

	if r.store != nil {
		if _, err := store.SaveResult(r.store, jobID, job.Config, res); err != nil {
			return r.fail(jobID, err)
		}
	}

	endTime := time.Now()
	if err := r.jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Levels = res.Levels
		j.MeanCost = res.Stats.MeanCost
		j.Unknown = res.Stats.Unknown
		j.EndTime = &endTime
	}); err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", res.Duration,
		"levels", len(res.Levels),
		"mean_cost", res.Stats.MeanCost,
		"unknown", res.Stats.Unknown,
	)
	r.publish(jobID)
	return nil
}

// publish broadcasts the current state of a job.
func (r *runner) publish(jobID string) {
	job, ok := r.jm.GetJob(jobID)
	if !ok {
		return
	}
	r.jm.broadcaster.Broadcast(eventFromJob(job))
}

// fail marks a job as failed and returns err.
func (r *runner) fail(jobID string, err error) error {
	endTime := time.Now()
	r.jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
	r.publish(jobID)
	return err
}

func (r *runner) markCancelled(jobID string) {
	endTime := time.Now()
	r.jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
	r.publish(jobID)
}
