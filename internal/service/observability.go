package service

import (
	"context"
	"fmt"
	"time"

	"catalog-sync/internal/models"
	"catalog-sync/internal/store"
	"catalog-sync/internal/util"
)

// External run status labels surfaced by the API.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// RunDTO is the external run shape; status always uses external labels.
type RunDTO struct {
	ID         string           `json:"id"`
	Vendor     string           `json:"vendor"`
	Status     string           `json:"status"`
	Actor      string           `json:"actor,omitempty"`
	DryRun     bool             `json:"dryRun"`
	Mode       string           `json:"mode"`
	SourcePath string           `json:"sourcePath,omitempty"`
	Hash       string           `json:"hash,omitempty"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
	DurationMs *int64           `json:"durationMs,omitempty"`
	Counts     models.RunCounts `json:"counts"`
}

// ObservabilityService serves run history reads.
type ObservabilityService struct {
	store *store.Store
}

// NewObservabilityService creates a new observability service
func NewObservabilityService(st *store.Store) *ObservabilityService {
	return &ObservabilityService{store: st}
}

// ListRunsRequest filters the paginated listing.
type ListRunsRequest struct {
	Vendor   string
	Limit    int
	Cursor   string
	Statuses []string
}

// ListRunsResponse is the listing page contract.
type ListRunsResponse struct {
	Items      []RunDTO `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalItems int      `json:"totalItems"`
	HasMore    bool     `json:"hasMore"`
	NextCursor string   `json:"nextCursor,omitempty"`
}

// ListRuns returns one page of run history, newest first.
func (s *ObservabilityService) ListRuns(ctx context.Context, req ListRunsRequest) (*ListRunsResponse, error) {
	ctx, span := util.StartSpan(ctx, "ObservabilityService.ListRuns")
	defer span.End()

	statuses, err := InternalStatuses(req.Statuses)
	if err != nil {
		return nil, err
	}

	limit := ClampLimit(req.Limit)
	page, err := s.store.ListRuns(ctx, store.ListRunsParams{
		Vendor:   req.Vendor,
		Limit:    limit,
		Cursor:   req.Cursor,
		Statuses: statuses,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}

	return &ListRunsResponse{
		Items:      toDTOs(page.Runs),
		Page:       1,
		PageSize:   limit,
		TotalItems: page.TotalItems,
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
	}, nil
}

// AggregateRequest scopes the windowed aggregation.
type AggregateRequest struct {
	VendorID string
	Start    time.Time
	End      time.Time
	Limit    int
	Cursor   string
}

// StatusCounts tally the returned page by external status.
type StatusCounts struct {
	Success int `json:"success"`
	Error   int `json:"error"`
	Running int `json:"running"`
}

// AggregateResponse is the windowed aggregation contract.
type AggregateResponse struct {
	VendorID    string            `json:"vendorId"`
	Range       map[string]string `json:"range"`
	PageSize    int               `json:"pageSize"`
	TotalRuns   int               `json:"totalRuns"`
	Counts      StatusCounts      `json:"counts"`
	LatestRunAt *time.Time        `json:"latestRunAt,omitempty"`
	HasMore     bool              `json:"hasMore"`
	NextCursor  string            `json:"nextCursor,omitempty"`
	Runs        []RunDTO          `json:"runs"`
}

// Aggregate returns run stats over an inclusive [start, end] window.
func (s *ObservabilityService) Aggregate(ctx context.Context, req AggregateRequest) (*AggregateResponse, error) {
	ctx, span := util.StartSpan(ctx, "ObservabilityService.Aggregate")
	defer span.End()

	limit := ClampLimit(req.Limit)
	page, err := s.store.AggregateRuns(ctx, store.AggregateParams{
		Vendor: req.VendorID,
		Start:  req.Start,
		End:    req.End,
		Limit:  limit,
		Cursor: req.Cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate runs: %w", err)
	}

	var counts StatusCounts
	for _, run := range page.Runs {
		switch run.Status {
		case models.RunStatusSuccess:
			counts.Success++
		case models.RunStatusFailed:
			counts.Error++
		default:
			counts.Running++
		}
	}

	return &AggregateResponse{
		VendorID: req.VendorID,
		Range: map[string]string{
			"start": req.Start.UTC().Format(time.RFC3339),
			"end":   req.End.UTC().Format(time.RFC3339),
		},
		PageSize:    limit,
		TotalRuns:   page.TotalRuns,
		Counts:      counts,
		LatestRunAt: page.LatestRunAt,
		HasMore:     page.HasMore,
		NextCursor:  page.NextCursor,
		Runs:        toDTOs(page.Runs),
	}, nil
}

// OverviewResponse is the 24-hour rollup.
type OverviewResponse struct {
	Last24h struct {
		Total         int     `json:"total"`
		Success       int     `json:"success"`
		Failed        int     `json:"failed"`
		AvgDurationMs float64 `json:"avgDurationMs"`
	} `json:"last24h"`
	InProgress []InProgressRun `json:"inProgress"`
}

// InProgressRun is a pending dispatch visible to operators.
type InProgressRun struct {
	Vendor    string    `json:"vendor"`
	StartedAt time.Time `json:"startedAt"`
	RunID     string    `json:"runId"`
	Mode      string    `json:"mode"`
}

// Overview returns the 24-hour rollup plus in-flight runs.
func (s *ObservabilityService) Overview(ctx context.Context) (*OverviewResponse, error) {
	ctx, span := util.StartSpan(ctx, "ObservabilityService.Overview")
	defer span.End()

	stats, pending, err := s.store.Overview(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load overview: %w", err)
	}

	resp := &OverviewResponse{InProgress: []InProgressRun{}}
	resp.Last24h.Total = stats.Total
	resp.Last24h.Success = stats.Success
	resp.Last24h.Failed = stats.Failed
	resp.Last24h.AvgDurationMs = stats.AvgDurationMs

	for _, run := range pending {
		resp.InProgress = append(resp.InProgress, InProgressRun{
			Vendor:    run.Vendor,
			StartedAt: run.StartedAt,
			RunID:     run.ID,
			Mode:      runMode(run.DryRun),
		})
	}
	return resp, nil
}

// History returns the latest n runs per vendor, n clamped to [1,10].
func (s *ObservabilityService) History(ctx context.Context, n int) (map[string][]RunDTO, error) {
	ctx, span := util.StartSpan(ctx, "ObservabilityService.History")
	defer span.End()

	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}

	runs, err := s.store.History(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	out := make(map[string][]RunDTO)
	for i := range runs {
		dto := toDTO(&runs[i])
		out[runs[i].Vendor] = append(out[runs[i].Vendor], dto)
	}
	return out, nil
}

// State returns the persisted sync state for a vendor, nil when the vendor
// has never completed an apply.
func (s *ObservabilityService) State(ctx context.Context, vendor string) (*models.VendorSyncState, error) {
	ctx, span := util.StartSpan(ctx, "ObservabilityService.State")
	defer span.End()

	state, err := s.store.GetState(ctx, vendor)
	if err != nil {
		return nil, fmt.Errorf("failed to load vendor state: %w", err)
	}
	return state, nil
}

// ClampLimit applies the default and the [1,100] clamp.
func ClampLimit(limit int) int {
	if limit == 0 {
		return defaultPageLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

// ExternalStatus maps an internal run status to the API label.
func ExternalStatus(status string) string {
	switch status {
	case models.RunStatusSuccess:
		return StatusSuccess
	case models.RunStatusFailed:
		return StatusError
	default:
		return StatusRunning
	}
}

// InternalStatuses maps external labels back; unknown labels are rejected.
func InternalStatuses(labels []string) ([]string, error) {
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		switch label {
		case StatusRunning:
			out = append(out, models.RunStatusPending)
		case StatusSuccess:
			out = append(out, models.RunStatusSuccess)
		case StatusError:
			out = append(out, models.RunStatusFailed)
		default:
			return nil, fmt.Errorf("unknown status filter: %q", label)
		}
	}
	return out, nil
}

func runMode(dryRun bool) string {
	if dryRun {
		return "preview"
	}
	return "apply"
}

func toDTO(run *models.VendorSyncRun) RunDTO {
	dto := RunDTO{
		ID:         run.ID,
		Vendor:     run.Vendor,
		Status:     ExternalStatus(run.Status),
		DryRun:     run.DryRun,
		Mode:       runMode(run.DryRun),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		DurationMs: run.DurationMs,
		Counts:     run.Counts(),
	}
	if run.Actor != nil {
		dto.Actor = *run.Actor
	}
	if run.SourcePath != nil {
		dto.SourcePath = *run.SourcePath
	}
	if run.Hash != nil {
		dto.Hash = *run.Hash
	}
	if run.Error != nil {
		dto.Error = *run.Error
	}
	return dto
}

func toDTOs(runs []models.VendorSyncRun) []RunDTO {
	out := make([]RunDTO, len(runs))
	for i := range runs {
		out[i] = toDTO(&runs[i])
	}
	return out
}
