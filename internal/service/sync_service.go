package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalog-sync/config"
	"catalog-sync/internal/broker"
	"catalog-sync/internal/diff"
	"catalog-sync/internal/models"
	"catalog-sync/internal/normalize"
	"catalog-sync/internal/redisclient"
	"catalog-sync/internal/registry"
	"catalog-sync/internal/source"
	"catalog-sync/internal/store"
	"catalog-sync/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncService drives one dispatch: normalize, diff, apply, finalize.
type SyncService struct {
	store     *store.Store
	redis     *redisclient.Client
	publisher *broker.EventPublisher
	registry  *registry.Registry
	reader    *source.Reader
	cfg       config.SyncConfig
	logger    *zap.Logger
}

// NewSyncService creates a new sync service
func NewSyncService(
	st *store.Store,
	redis *redisclient.Client,
	publisher *broker.EventPublisher,
	reg *registry.Registry,
	reader *source.Reader,
	cfg config.SyncConfig,
) *SyncService {
	return &SyncService{
		store:     st,
		redis:     redis,
		publisher: publisher,
		registry:  reg,
		reader:    reader,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

// DispatchRequest describes one preview or apply.
type DispatchRequest struct {
	Vendor     string
	Items      []json.RawMessage
	SourcePath string
	DryRun     bool
	Actor      string
}

// DispatchResult is the caller-facing outcome of one dispatch.
type DispatchResult struct {
	RunID           string             `json:"runId"`
	Vendor          string             `json:"vendor"`
	DryRun          bool               `json:"dryRun"`
	NormalizedCount int                `json:"normalizedCount"`
	SameAsLastApply bool               `json:"sameAsLastApply"`
	Diff            *models.Diff       `json:"diff"`
	Summary         *models.RunSummary `json:"run"`
}

// Dispatch executes the full pipeline. Validation failures short-circuit
// before any run row exists; failures past that point finalize the run as
// FAILED with the error captured on vendor state, then propagate.
func (s *SyncService) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	ctx, span := util.StartSpan(ctx, "SyncService.Dispatch")
	defer span.End()

	slug := registry.NormalizeSlug(req.Vendor)

	items := req.Items
	if len(items) == 0 && req.SourcePath != "" {
		loaded, err := s.reader.Load(ctx, req.SourcePath)
		if err != nil {
			util.SourceFetchFailuresTotal.WithLabelValues(slug).Inc()
			return nil, fmt.Errorf("failed to load catalog source: %w", err)
		}
		items = loaded
	}

	normalized, err := normalize.Batch(s.registry, slug, items)
	if err != nil {
		util.NormalizeFailuresTotal.WithLabelValues(slug, normalizeFailureReason(err)).Inc()
		return nil, err
	}

	run := &models.VendorSyncRun{
		ID:        uuid.New().String(),
		Vendor:    slug,
		DryRun:    req.DryRun,
		StartedAt: time.Now().UTC(),
	}
	if req.Actor != "" {
		run.Actor = &req.Actor
	}
	if req.SourcePath != "" {
		run.SourcePath = &req.SourcePath
	}

	if err := s.store.BeginRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	s.logger.Info("Sync run started",
		zap.String("run_id", run.ID),
		zap.String("vendor", slug),
		zap.Bool("dry_run", req.DryRun))
	s.publishStarted(ctx, run)

	d, err := s.computeDiff(ctx, slug, normalized)
	if err != nil {
		return nil, s.fail(ctx, run, err)
	}

	// Cached hint only; Postgres is what the diff was computed against.
	sameAsLast := false
	if lastHash, err := s.redis.GetLastHash(ctx, slug); err == nil {
		sameAsLast = lastHash != "" && lastHash == d.Hash
	}

	if !req.DryRun {
		if err := s.applyLocked(ctx, slug, d); err != nil {
			return nil, s.fail(ctx, run, err)
		}
		if err := s.redis.SetLastHash(ctx, slug, d.Hash); err != nil {
			s.logger.Warn("Failed to cache last hash", zap.String("vendor", slug), zap.Error(err))
		}
	} else {
		util.SyncDryRunsTotal.WithLabelValues(slug).Inc()
	}

	durationMs := time.Since(run.StartedAt).Milliseconds()
	err = s.store.FinalizeRun(ctx, run.ID, slug, models.RunStatusSuccess, store.FinalizeParams{
		Counts:     d.Counts,
		Hash:       d.Hash,
		DurationMs: durationMs,
		Actor:      run.Actor,
		SourcePath: run.SourcePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize run %s: %w", run.ID, err)
	}

	util.SyncRunsTotal.WithLabelValues(slug, models.RunStatusSuccess).Inc()
	recordItemCounts(slug, d.Counts)
	s.publishFinished(ctx, run, models.RunStatusSuccess, d, durationMs, "")

	summary := &models.RunSummary{
		Vendor:     slug,
		Hash:       d.Hash,
		Counts:     d.Counts,
		DryRun:     req.DryRun,
		DurationMs: durationMs,
		FinishedAt: time.Now().UTC().Format(time.RFC3339),
		SourcePath: req.SourcePath,
	}
	return &DispatchResult{
		RunID:           run.ID,
		Vendor:          slug,
		DryRun:          req.DryRun,
		NormalizedCount: len(normalized),
		SameAsLastApply: sameAsLast,
		Diff:            d,
		Summary:         summary,
	}, nil
}

func (s *SyncService) computeDiff(ctx context.Context, slug string, batch []models.NormalizedProduct) (*models.Diff, error) {
	snap, err := s.store.ReadSnapshot(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	start := time.Now()
	d := diff.Compute(slug, batch, *snap)
	util.DiffDuration.Observe(time.Since(start).Seconds())
	return d, nil
}

// applyLocked serializes applies per vendor via the redis advisory lock,
// then runs the transactional apply with bounded retries beneath it.
func (s *SyncService) applyLocked(ctx context.Context, slug string, d *models.Diff) error {
	ttl := time.Duration(s.cfg.LockTTLSeconds) * time.Second
	acquired, err := s.redis.AcquireVendorLock(ctx, slug, ttl)
	if err != nil {
		s.logger.Warn("Vendor lock unavailable, relying on transaction retries",
			zap.String("vendor", slug), zap.Error(err))
	} else if !acquired {
		return fmt.Errorf("%w: vendor %s is being synced", store.ErrConcurrencyConflict, slug)
	} else {
		defer func() {
			if err := s.redis.ReleaseVendorLock(context.Background(), slug); err != nil {
				s.logger.Error("Failed to release vendor lock",
					zap.String("vendor", slug), zap.Error(err))
			}
		}()
	}

	return s.store.ApplyDiff(ctx, slug, d, store.ApplyOptions{
		MaxRetries: s.cfg.ApplyMaxRetries,
	})
}

// fail finalizes the run as FAILED and returns the original error.
func (s *SyncService) fail(ctx context.Context, run *models.VendorSyncRun, cause error) error {
	durationMs := time.Since(run.StartedAt).Milliseconds()

	err := s.store.FinalizeRun(ctx, run.ID, run.Vendor, models.RunStatusFailed, store.FinalizeParams{
		ErrorMessage: cause.Error(),
		DurationMs:   durationMs,
		Actor:        run.Actor,
		SourcePath:   run.SourcePath,
	})
	if err != nil {
		s.logger.Error("Failed to finalize failed run",
			zap.String("run_id", run.ID), zap.Error(err))
	}

	util.SyncRunsTotal.WithLabelValues(run.Vendor, models.RunStatusFailed).Inc()
	s.publishFinished(ctx, run, models.RunStatusFailed, nil, durationMs, cause.Error())

	s.logger.Error("Sync run failed",
		zap.String("run_id", run.ID),
		zap.String("vendor", run.Vendor),
		zap.Error(cause))
	return cause
}

func (s *SyncService) publishStarted(ctx context.Context, run *models.VendorSyncRun) {
	if s.publisher == nil {
		return
	}
	event := &models.SyncRunStartedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSyncRunStarted,
			Timestamp: time.Now(),
		},
		RunID:  run.ID,
		Vendor: run.Vendor,
		DryRun: run.DryRun,
	}
	if run.Actor != nil {
		event.Actor = *run.Actor
	}
	if run.SourcePath != nil {
		event.SourcePath = *run.SourcePath
	}
	if err := s.publisher.PublishRunStarted(ctx, event); err != nil {
		s.logger.Error("Failed to publish SyncRunStarted event", zap.Error(err))
	}
}

func (s *SyncService) publishFinished(ctx context.Context, run *models.VendorSyncRun, status string, d *models.Diff, durationMs int64, errMsg string) {
	if s.publisher == nil {
		return
	}
	event := &models.SyncRunFinishedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSyncRunFinished,
			Timestamp: time.Now(),
		},
		RunID:      run.ID,
		Vendor:     run.Vendor,
		Status:     status,
		DryRun:     run.DryRun,
		DurationMs: durationMs,
		Error:      errMsg,
	}
	if d != nil {
		event.Hash = d.Hash
		event.Counts = d.Counts
	}
	if err := s.publisher.PublishRunFinished(ctx, event); err != nil {
		s.logger.Error("Failed to publish SyncRunFinished event", zap.Error(err))
	}
}

func recordItemCounts(vendor string, counts models.RunCounts) {
	util.ItemsProcessedTotal.WithLabelValues(vendor, "created").Add(float64(counts.Created))
	util.ItemsProcessedTotal.WithLabelValues(vendor, "updated").Add(float64(counts.Updated))
	util.ItemsProcessedTotal.WithLabelValues(vendor, "unchanged").Add(float64(counts.Unchanged))
	util.ItemsProcessedTotal.WithLabelValues(vendor, "removed").Add(float64(counts.Removed))
}

func normalizeFailureReason(err error) string {
	switch err.(type) {
	case *normalize.AdapterNotFoundError:
		return "adapter_not_found"
	case *normalize.InputValidationError:
		return "input_invalid"
	case *normalize.OutputValidationError:
		return "output_invalid"
	default:
		return "execution_error"
	}
}
