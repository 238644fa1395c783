package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"PulseWatch/internal/classify"
	"PulseWatch/internal/domain"
	"PulseWatch/internal/ports"
	"PulseWatch/internal/progress"
)

const (
	DefaultAnalysisBatchSize = 20
	MaxAnalysisBatchSize     = 50
	DefaultItemDelay         = 500 * time.Millisecond
)

// ErrOrchestratorClosed is returned by Start once Shutdown has begun.
var ErrOrchestratorClosed = errors.New("analysis orchestrator is shut down")

// TextClassifier classifies a single text, retrying as it sees fit.
type TextClassifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// AnalysisDeps wires all driven adapters into the analysis orchestrator.
type AnalysisDeps struct {
	Store      ports.RecordStore
	Classifier TextClassifier
	Tracker    *progress.Tracker
	Notifier   ports.Notifier
	Logger     *slog.Logger

	BatchSize int
	ItemDelay time.Duration
	Retention time.Duration

	NewRunID func() string
	Sleep    classify.Sleeper
	Now      func() time.Time
}

// RunRequest parameterizes one analysis run.
type RunRequest struct {
	RunID string `json:"-"`
	Limit int    `json:"limit,omitempty"`
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID    string   `json:"runId,omitempty"`
	Analyzed int      `json:"analyzed"`
	Failed   int      `json:"failed"`
	Message  string   `json:"message"`
	Errors   []string `json:"errors,omitempty"`
}

// Orchestrator selects unanalyzed posts, classifies them one at a time and
// persists the verdicts. Runs with different ids may overlap.
type Orchestrator struct {
	store      ports.RecordStore
	classifier TextClassifier
	tracker    *progress.Tracker
	notifier   ports.Notifier
	logger     *slog.Logger

	batchSize int
	itemDelay time.Duration
	retention time.Duration

	newRunID func() string
	sleep    classify.Sleeper
	now      func() time.Time

	// lifecycle bounds async runs and pending progress clears. closed is set
	// under mu before pending is waited on, so no Add can race the Wait.
	lifecycle context.Context
	stop      context.CancelFunc
	mu        sync.Mutex
	closed    bool
	pending   sync.WaitGroup
}

// NewOrchestrator constructs the analysis use case.
func NewOrchestrator(deps AnalysisDeps) *Orchestrator {
	o := &Orchestrator{
		store:      deps.Store,
		classifier: deps.Classifier,
		tracker:    deps.Tracker,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		batchSize:  deps.BatchSize,
		itemDelay:  deps.ItemDelay,
		retention:  deps.Retention,
		newRunID:   deps.NewRunID,
		sleep:      deps.Sleep,
		now:        deps.Now,
	}
	if o.tracker == nil {
		o.tracker = progress.NewTracker(deps.Now)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.batchSize <= 0 {
		o.batchSize = DefaultAnalysisBatchSize
	}
	if o.itemDelay < 0 {
		o.itemDelay = 0
	}
	if o.retention <= 0 {
		o.retention = progress.DefaultRetention
	}
	if o.newRunID == nil {
		o.newRunID = uuid.NewString
	}
	if o.sleep == nil {
		o.sleep = classify.SleepContext
	}
	if o.now == nil {
		o.now = time.Now
	}
	o.lifecycle, o.stop = context.WithCancel(context.Background())
	return o
}

// Progress exposes the run-status query surface.
func (o *Orchestrator) Progress(runID string) (domain.RunProgress, bool) {
	return o.tracker.Get(runID)
}

// Start validates req and launches the run in the background, returning its id
// immediately. The run is cancelled by Shutdown.
func (o *Orchestrator) Start(req RunRequest) (string, error) {
	if _, err := o.resolveLimit(req.Limit); err != nil {
		return "", err
	}
	if req.RunID == "" {
		req.RunID = o.newRunID()
	}

	if !o.track() {
		return "", ErrOrchestratorClosed
	}
	go func() {
		defer o.pending.Done()
		result, err := o.Run(o.lifecycle, req)
		if err != nil {
			o.logger.Error("background analysis run failed", "run_id", req.RunID, "error", err)
			return
		}
		o.logger.Info("background analysis run finished",
			"run_id", req.RunID, "analyzed", result.Analyzed, "failed", result.Failed)
	}()
	return req.RunID, nil
}

// Run executes one analysis run to completion.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if o.store == nil || o.classifier == nil {
		return RunResult{}, fmt.Errorf("analysis orchestrator is not configured")
	}
	limit, err := o.resolveLimit(req.Limit)
	if err != nil {
		return RunResult{}, err
	}

	work, err := o.selectWork(ctx, limit)
	if err != nil {
		o.recordRunFailure(ctx, err)
		return RunResult{}, fmt.Errorf("select posts for analysis: %w", err)
	}
	if len(work) == 0 {
		return RunResult{Message: "No unanalyzed posts found."}, nil
	}

	runID := req.RunID
	if runID == "" {
		runID = o.newRunID()
	}
	if err := o.tracker.Start(runID, len(work)); err != nil {
		return RunResult{}, fmt.Errorf("start progress: %w", err)
	}
	defer o.scheduleClear(runID)

	logger := o.logger.With("run_id", runID)
	logger.Info("analysis run started", "posts", len(work))

	staged, errs, interrupted := o.classifyAll(ctx, runID, work, logger)
	classifyFailed := len(errs)

	// Verdicts already paid for are kept even if the caller went away.
	persistCtx := context.WithoutCancel(ctx)
	analyzed, persistErrs := o.persist(persistCtx, staged, logger)
	errs = append(errs, persistErrs...)

	result := RunResult{
		RunID:    runID,
		Analyzed: analyzed,
		Failed:   classifyFailed + len(persistErrs),
		Errors:   errs,
	}
	result.Message = fmt.Sprintf("Analyzed %d posts successfully. %d failed.", result.Analyzed, result.Failed)

	o.recordRunOutcome(persistCtx, len(work), result, logger)
	o.notify(persistCtx, result, logger)

	logger.Info("analysis run finished", "analyzed", result.Analyzed, "failed", result.Failed)

	if interrupted != nil {
		return result, fmt.Errorf("analysis run %s interrupted: %w", runID, interrupted)
	}
	return result, nil
}

// Shutdown cancels background runs and clears progress entries still waiting
// for their retention to elapse.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.stop()
	o.pending.Wait()
}

// track registers one background goroutine unless Shutdown has begun.
func (o *Orchestrator) track() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.pending.Add(1)
	return true
}

func (o *Orchestrator) resolveLimit(limit int) (int, error) {
	if limit == 0 {
		return o.batchSize, nil
	}
	if limit < 1 || limit > MaxAnalysisBatchSize {
		return 0, domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", MaxAnalysisBatchSize))
	}
	return limit, nil
}

func (o *Orchestrator) selectWork(ctx context.Context, limit int) ([]domain.Post, error) {
	analyzed, err := o.store.ListAnalyzedIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list analyzed ids: %w", err)
	}

	// Over-fetch so that already analyzed posts do not starve the batch.
	recent, err := o.store.ListRecentPosts(ctx, limit*2)
	if err != nil {
		return nil, fmt.Errorf("list recent posts: %w", err)
	}

	work := make([]domain.Post, 0, limit)
	for _, post := range recent {
		if _, done := analyzed[post.ID]; done {
			continue
		}
		work = append(work, post)
		if len(work) == limit {
			break
		}
	}
	return work, nil
}

func (o *Orchestrator) classifyAll(ctx context.Context, runID string, work []domain.Post, logger *slog.Logger) ([]domain.Analysis, []string, error) {
	var (
		staged []domain.Analysis
		errs   []string
	)

	for i, post := range work {
		if err := ctx.Err(); err != nil {
			return staged, errs, err
		}

		verdict, err := o.classifier.Classify(ctx, post.Content)
		if err != nil {
			logger.Warn("post analysis failed", "post_id", post.ID, "error", err)
			errs = append(errs, fmt.Sprintf("Post %s: %v", post.ID, err))
		} else {
			staged = append(staged, domain.Analysis{
				PostID:         post.ID,
				Classification: verdict,
				AnalyzedAt:     o.now(),
			})
		}
		o.tracker.Advance(runID)

		if i < len(work)-1 {
			if err := o.sleep(ctx, o.itemDelay); err != nil {
				return staged, errs, err
			}
		}
	}
	return staged, errs, nil
}

// persist tries one bulk insert and degrades to per-item inserts.
func (o *Orchestrator) persist(ctx context.Context, staged []domain.Analysis, logger *slog.Logger) (int, []string) {
	if len(staged) == 0 {
		return 0, nil
	}

	inserted, err := o.store.InsertAnalyses(ctx, staged)
	if err == nil {
		return min(inserted, len(staged)), nil
	}
	logger.Warn("bulk insert of analyses failed, falling back to single inserts",
		"count", len(staged), "error", err)

	var (
		persisted int
		errs      []string
	)
	for _, analysis := range staged {
		if err := o.store.InsertAnalysis(ctx, analysis); err != nil {
			logger.Error("insert analysis failed", "post_id", analysis.PostID, "error", err)
			errs = append(errs, fmt.Sprintf("Post %s: %v", analysis.PostID, err))
			continue
		}
		persisted++
	}
	return persisted, errs
}

func (o *Orchestrator) recordRunOutcome(ctx context.Context, total int, result RunResult, logger *slog.Logger) {
	status := domain.RunStatusSuccess
	if result.Failed > 0 {
		status = domain.RunStatusPartialSuccess
	}
	event := domain.HealthEvent{
		MetricName: domain.MetricAnalysis,
		MetricValue: map[string]any{
			"run_id":          result.RunID,
			"total_processed": total,
			"successful":      result.Analyzed,
			"failed":          result.Failed,
			"status":          status,
		},
		RecordedAt: o.now(),
	}
	if err := o.store.AppendHealthEvent(ctx, event); err != nil {
		logger.Warn("record analysis health event failed", "error", err)
	}
}

// recordRunFailure never masks the run error: its own failure is only logged.
func (o *Orchestrator) recordRunFailure(ctx context.Context, runErr error) {
	event := domain.HealthEvent{
		MetricName: domain.MetricAnalysisError,
		MetricValue: map[string]any{
			"error":  runErr.Error(),
			"status": domain.RunStatusFailed,
		},
		RecordedAt: o.now(),
	}
	if err := o.store.AppendHealthEvent(context.WithoutCancel(ctx), event); err != nil {
		o.logger.Error("record analysis failure event failed", "error", err, "run_error", runErr)
	}
}

func (o *Orchestrator) notify(ctx context.Context, result RunResult, logger *slog.Logger) {
	if o.notifier == nil {
		return
	}
	digest := fmt.Sprintf("*Sentiment analysis* run `%s`\nAnalyzed: %d\nFailed: %d",
		result.RunID, result.Analyzed, result.Failed)
	if err := o.notifier.PublishDigest(ctx, digest); err != nil {
		logger.Warn("publish analysis digest failed", "error", err)
	}
}

// scheduleClear forgets runID after the retention window, or at shutdown.
// Runs finishing after Shutdown clear immediately.
func (o *Orchestrator) scheduleClear(runID string) {
	if !o.track() {
		o.tracker.Clear(runID)
		return
	}
	go func() {
		defer o.pending.Done()
		timer := time.NewTimer(o.retention)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-o.lifecycle.Done():
		}
		o.tracker.Clear(runID)
	}()
}
