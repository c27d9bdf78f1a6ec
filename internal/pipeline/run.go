package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"postcast/internal/logging"
	"postcast/internal/services"
	"postcast/internal/youtube"
)

// Process runs the full pipeline for a single video. With force set, an
// existing completed record is ignored and every step re-executes; partial
// progress from an earlier failed run is never reused either way.
func (p *Pipeline) Process(ctx context.Context, videoID string, force bool) (Result, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		err := services.Wrap(services.ErrValidation, "pipeline", "process", "video id is required", nil)
		return Result{State: StateNotStarted, Err: err}, err
	}

	video, err := p.platform.Video(ctx, videoID)
	if err != nil {
		return Result{VideoID: videoID, State: StateNotStarted, Err: err}, err
	}
	if video.Live {
		err := services.Wrap(services.ErrValidation, "pipeline", "process",
			"broadcast is still live or scheduled, process it after the stream ends", nil)
		return Result{VideoID: videoID, Title: video.Title, State: StateNotStarted, Err: err}, err
	}
	if !force && p.store.IsProcessed(videoID) {
		p.logger.Info("video already processed",
			logging.String(logging.FieldVideoID, videoID),
			logging.String("title", video.Title))
		return Result{VideoID: videoID, Title: video.Title, State: StateCompleted, Skipped: true}, nil
	}

	res := p.run(ctx, video)
	return res, res.Err
}

// run executes every step for an already-fetched video, persists the outcome,
// and notifies the operator. A canceled context aborts quietly: the record is
// not written so the next run starts clean.
func (p *Pipeline) run(ctx context.Context, video *youtube.Video) Result {
	runStart := time.Now()
	runCtx := services.WithRequestID(services.WithVideoID(ctx, video.ID), uuid.NewString())
	logger := logging.WithContext(runCtx, p.logger)

	res := Result{VideoID: video.ID, Title: video.Title, State: StateNotStarted}
	rs := &runState{video: video, result: &res}

	logger.Info("episode processing started",
		logging.String(logging.FieldEventType, "processing_started"),
		logging.String("title", video.Title))

	failedStep := ""
	for _, st := range p.steps() {
		stepCtx := services.WithStep(runCtx, st.name)
		stepLogger := logging.WithContext(stepCtx, p.logger)
		stepStart := time.Now()
		stepLogger.Info("step started", logging.String(logging.FieldEventType, "step_started"))

		if err := st.run(stepCtx, stepLogger, rs); err != nil {
			if errors.Is(err, context.Canceled) {
				stepLogger.Debug("step interrupted by shutdown")
				res.Err = err
				return res
			}
			stepLogger.Error("step failed",
				logging.String(logging.FieldEventType, "step_failed"),
				logging.Error(err),
				logging.Duration("step_duration", time.Since(stepStart)))
			failedStep = st.name
			res.Err = err
			break
		}

		stepLogger.Info("step completed",
			logging.String(logging.FieldEventType, "step_completed"),
			logging.String(logging.FieldState, string(res.State)),
			logging.Duration("step_duration", time.Since(stepStart)))
	}

	if res.Err == nil {
		res.State = StateCompleted
	} else {
		res.State = StateFailed
	}

	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}
	if err := p.store.MarkProcessed(video.ID, res.Steps, res.Title, errText); err != nil {
		wrapped := fmt.Errorf("persist processing record: %w", err)
		logger.Error("could not persist processing record", logging.Error(wrapped))
		if res.Err == nil {
			res.Err = wrapped
		}
	}

	if failedStep != "" {
		p.notifier.PipelineFailed(runCtx, video.ID, res.Title, failedStep, res.Err)
		logger.Error("episode processing failed",
			logging.String(logging.FieldEventType, "processing_failed"),
			logging.String(logging.FieldStep, failedStep),
			logging.String(logging.FieldState, string(res.State)),
			logging.Error(res.Err),
			logging.Duration("run_duration", time.Since(runStart)))
		return res
	}

	p.notifier.VideoProcessed(runCtx, video.ID, res.Title, res.ChapterCount)
	logger.Info("episode processing completed",
		logging.String(logging.FieldEventType, "processing_completed"),
		logging.String("title", res.Title),
		logging.Int("chapters", res.ChapterCount),
		logging.Duration("run_duration", time.Since(runStart)))
	return res
}

// Scan looks for uploads newer than the stored last-check mark and processes
// every video without a completed record. Per-video failures are recorded and
// the sweep continues; the mark advances once the sweep finishes.
func (p *Pipeline) Scan(ctx context.Context, limit int64) ([]Result, error) {
	since, ok := p.store.LastCheck()
	if !ok {
		since = time.Now().Add(-p.cfg.ScanWindow)
	}
	p.logger.Info("scanning for new uploads",
		logging.String(logging.FieldEventType, "scan_started"),
		logging.String("since", since.UTC().Format(time.RFC3339)))

	videos, err := p.platform.RecentUploads(ctx, since, limit)
	if err != nil {
		return nil, err
	}

	// The search API returns newest first; process in upload order.
	for i, j := 0, len(videos)-1; i < j; i, j = i+1, j-1 {
		videos[i], videos[j] = videos[j], videos[i]
	}

	results := make([]Result, 0, len(videos))
	for i := range videos {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		video := &videos[i]
		if p.store.IsProcessed(video.ID) {
			p.logger.Debug("skipping processed video", logging.String(logging.FieldVideoID, video.ID))
			results = append(results, Result{VideoID: video.ID, Title: video.Title, State: StateCompleted, Skipped: true})
			continue
		}
		res := p.run(ctx, video)
		results = append(results, res)
		if errors.Is(res.Err, context.Canceled) {
			return results, res.Err
		}
	}

	if err := p.store.UpdateLastCheck(); err != nil {
		return results, fmt.Errorf("update last check: %w", err)
	}
	p.logger.Info("scan completed",
		logging.String(logging.FieldEventType, "scan_completed"),
		logging.Int("videos", len(videos)),
		logging.Int("processed", processedCount(results)))
	return results, nil
}

func processedCount(results []Result) int {
	count := 0
	for _, res := range results {
		if !res.Skipped {
			count++
		}
	}
	return count
}
