package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"catalog-sync/internal/models"
	"catalog-sync/internal/util"
)

// BeginRun inserts a pending run row at dispatch start.
func (s *Store) BeginRun(ctx context.Context, run *models.VendorSyncRun) error {
	ctx, span := util.StartSpan(ctx, "Store.BeginRun")
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vendor_sync_run (id, vendor, status, actor, dry_run, source_path, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		run.ID, run.Vendor, models.RunStatusPending, run.Actor, run.DryRun, run.SourcePath, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinalizeParams carry the terminal write for one run.
type FinalizeParams struct {
	Counts       models.RunCounts
	Hash         string
	DurationMs   int64
	ErrorMessage string
	Actor        *string
	SourcePath   *string
}

// FinalizeRun moves a pending run to its terminal status and updates
// vendor_sync_state in the same transaction, so readers never observe a
// successful run whose state lags behind. Terminal rows are immutable:
// the update only matches PENDING.
func (s *Store) FinalizeRun(ctx context.Context, runID, vendor, status string, p FinalizeParams) error {
	ctx, span := util.StartSpan(ctx, "Store.FinalizeRun")
	defer span.End()

	countsJSON, err := json.Marshal(p.Counts)
	if err != nil {
		return fmt.Errorf("failed to encode counts: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var hash *string
	if p.Hash != "" {
		hash = &p.Hash
	}
	var errMsg *string
	if p.ErrorMessage != "" {
		errMsg = &p.ErrorMessage
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE vendor_sync_run
		SET status = $1, hash = $2, error = $3, counts_json = $4,
		    finished_at = NOW(), duration_ms = $5, updated_at = NOW()
		WHERE id = $6 AND status = $7`,
		status, hash, errMsg, countsJSON, p.DurationMs, runID, models.RunStatusPending)
	if err != nil {
		return fmt.Errorf("failed to finalize run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s is not pending", runID)
	}

	switch status {
	case models.RunStatusSuccess:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO vendor_sync_state (vendor, last_run_at, last_run_by, last_duration_ms, total_items, last_source, last_hash, last_error)
			VALUES ($1, NOW(), $2, $3, $4, $5, $6, NULL)
			ON CONFLICT (vendor) DO UPDATE SET
				last_run_at = NOW(),
				last_run_by = EXCLUDED.last_run_by,
				last_duration_ms = EXCLUDED.last_duration_ms,
				total_items = EXCLUDED.total_items,
				last_source = EXCLUDED.last_source,
				last_hash = EXCLUDED.last_hash,
				last_error = NULL`,
			vendor, p.Actor, p.DurationMs, p.Counts.Total, p.SourcePath, hash)
	case models.RunStatusFailed:
		// Only the error surface moves; last-good fields stay intact.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO vendor_sync_state (vendor, last_error)
			VALUES ($1, $2)
			ON CONFLICT (vendor) DO UPDATE SET last_error = EXCLUDED.last_error`,
			vendor, errMsg)
	default:
		return fmt.Errorf("invalid terminal status: %s", status)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert sync state for %s: %w", vendor, err)
	}

	return tx.Commit()
}

// GetRunByID retrieves one run.
func (s *Store) GetRunByID(ctx context.Context, id string) (*models.VendorSyncRun, error) {
	var run models.VendorSyncRun
	err := s.db.GetContext(ctx, &run, "SELECT * FROM vendor_sync_run WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetState retrieves the last-good state for a vendor; nil when never synced.
func (s *Store) GetState(ctx context.Context, vendor string) (*models.VendorSyncState, error) {
	var state models.VendorSyncState
	err := s.db.GetContext(ctx, &state, "SELECT * FROM vendor_sync_state WHERE vendor = $1", vendor)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// ListRunsParams filter the paginated run listing.
type ListRunsParams struct {
	Vendor   string
	Limit    int
	Cursor   string
	Statuses []string
}

// ListRunsPage is one page ordered by started_at DESC.
type ListRunsPage struct {
	Runs       []models.VendorSyncRun
	TotalItems int
	HasMore    bool
	NextCursor string
}

// ListRuns returns runs for a vendor newest-first. The cursor names the
// first row of the requested page; one extra row is fetched to decide
// hasMore, and its id becomes the next cursor. An unknown cursor id yields
// an empty page.
func (s *Store) ListRuns(ctx context.Context, p ListRunsParams) (*ListRunsPage, error) {
	ctx, span := util.StartSpan(ctx, "Store.ListRuns")
	defer span.End()

	page := &ListRunsPage{Runs: []models.VendorSyncRun{}}

	query := "SELECT * FROM vendor_sync_run WHERE vendor = ?"
	countQuery := "SELECT COUNT(*) FROM vendor_sync_run WHERE vendor = ?"
	args := []interface{}{p.Vendor}

	if len(p.Statuses) > 0 {
		inQuery, inArgs, err := sqlxIn(" AND status IN (?)", p.Statuses)
		if err != nil {
			return nil, err
		}
		query += inQuery
		countQuery += inQuery
		args = append(args, inArgs...)
	}

	if err := s.getRebound(ctx, &page.TotalItems, countQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	if p.Cursor != "" {
		cursorRow, err := s.GetRunByID(ctx, p.Cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cursor: %w", err)
		}
		if cursorRow == nil || cursorRow.Vendor != p.Vendor {
			return page, nil
		}
		query += " AND (started_at < ? OR (started_at = ? AND id <= ?))"
		args = append(args, cursorRow.StartedAt, cursorRow.StartedAt, cursorRow.ID)
	}

	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, p.Limit+1)

	var runs []models.VendorSyncRun
	if err := s.selectRebound(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) > p.Limit {
		page.HasMore = true
		page.NextCursor = runs[p.Limit].ID
		runs = runs[:p.Limit]
	}
	page.Runs = runs
	return page, nil
}

// AggregateParams scope the windowed aggregation.
type AggregateParams struct {
	Vendor string
	Start  time.Time
	End    time.Time
	Limit  int
	Cursor string
}

// AggregatePage is the windowed aggregation result.
type AggregatePage struct {
	Runs        []models.VendorSyncRun
	TotalRuns   int
	LatestRunAt *time.Time
	HasMore     bool
	NextCursor  string
}

// AggregateRuns returns runs with started_at inside the inclusive
// [start, end] window, newest-first, with the window totals.
func (s *Store) AggregateRuns(ctx context.Context, p AggregateParams) (*AggregatePage, error) {
	ctx, span := util.StartSpan(ctx, "Store.AggregateRuns")
	defer span.End()

	page := &AggregatePage{Runs: []models.VendorSyncRun{}}

	err := s.db.GetContext(ctx, &page.TotalRuns, `
		SELECT COUNT(*) FROM vendor_sync_run
		WHERE vendor = $1 AND started_at >= $2 AND started_at <= $3`,
		p.Vendor, p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("failed to count window runs: %w", err)
	}

	var latest sql.NullTime
	err = s.db.GetContext(ctx, &latest, `
		SELECT MAX(started_at) FROM vendor_sync_run
		WHERE vendor = $1 AND started_at >= $2 AND started_at <= $3`,
		p.Vendor, p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest run time: %w", err)
	}
	if latest.Valid {
		page.LatestRunAt = &latest.Time
	}

	query := "SELECT * FROM vendor_sync_run WHERE vendor = ? AND started_at >= ? AND started_at <= ?"
	args := []interface{}{p.Vendor, p.Start, p.End}

	if p.Cursor != "" {
		cursorRow, err := s.GetRunByID(ctx, p.Cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cursor: %w", err)
		}
		if cursorRow == nil || cursorRow.Vendor != p.Vendor {
			return page, nil
		}
		query += " AND (started_at < ? OR (started_at = ? AND id <= ?))"
		args = append(args, cursorRow.StartedAt, cursorRow.StartedAt, cursorRow.ID)
	}

	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, p.Limit+1)

	var runs []models.VendorSyncRun
	if err := s.selectRebound(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load window runs: %w", err)
	}

	if len(runs) > p.Limit {
		page.HasMore = true
		page.NextCursor = runs[p.Limit].ID
		runs = runs[:p.Limit]
	}
	page.Runs = runs
	return page, nil
}

// OverviewStats is the 24-hour rollup.
type OverviewStats struct {
	Total         int     `db:"total"`
	Success       int     `db:"success"`
	Failed        int     `db:"failed"`
	AvgDurationMs float64 `db:"avg_duration_ms"`
}

// Overview returns terminal-run stats since the cutoff plus pending runs.
func (s *Store) Overview(ctx context.Context, since time.Time) (*OverviewStats, []models.VendorSyncRun, error) {
	ctx, span := util.StartSpan(ctx, "Store.Overview")
	defer span.End()

	var stats OverviewStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = 'SUCCESS') AS success,
		       COUNT(*) FILTER (WHERE status = 'FAILED') AS failed,
		       COALESCE(AVG(duration_ms), 0) AS avg_duration_ms
		FROM vendor_sync_run
		WHERE started_at >= $1 AND status <> 'PENDING'`, since)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load overview stats: %w", err)
	}

	var pending []models.VendorSyncRun
	err = s.db.SelectContext(ctx, &pending, `
		SELECT * FROM vendor_sync_run
		WHERE status = 'PENDING'
		ORDER BY started_at DESC`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load pending runs: %w", err)
	}

	return &stats, pending, nil
}

// History returns the latest n runs per vendor.
func (s *Store) History(ctx context.Context, n int) ([]models.VendorSyncRun, error) {
	ctx, span := util.StartSpan(ctx, "Store.History")
	defer span.End()

	var runs []models.VendorSyncRun
	err := s.db.SelectContext(ctx, &runs, `
		SELECT id, vendor, status, actor, dry_run, source_path, hash, error,
		       started_at, finished_at, duration_ms, updated_at, counts_json
		FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY vendor ORDER BY started_at DESC, id DESC) AS rn
			FROM vendor_sync_run
		) ranked
		WHERE rn <= $1
		ORDER BY vendor, started_at DESC`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load run history: %w", err)
	}
	return runs, nil
}
