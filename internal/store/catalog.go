package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"catalog-sync/internal/models"
	"catalog-sync/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrConcurrencyConflict is surfaced when the apply transaction keeps
// losing serialization races after the bounded retries.
var ErrConcurrencyConflict = errors.New("apply conflicted with a concurrent sync, retry later")

// ApplyError wraps a transactional apply failure; no partial state escapes.
type ApplyError struct {
	Vendor string
	Cause  error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("failed to apply diff for vendor %s: %v", e.Vendor, e.Cause)
}

func (e *ApplyError) Unwrap() error { return e.Cause }

// ApplyOptions configure one apply pass.
type ApplyOptions struct {
	DryRun     bool
	MaxRetries int
}

// ReadSnapshot loads the persisted products and stock rows for a vendor.
func (s *Store) ReadSnapshot(ctx context.Context, vendor string) (*models.Snapshot, error) {
	ctx, span := util.StartSpan(ctx, "Store.ReadSnapshot")
	defer span.End()

	start := time.Now()
	defer func() {
		util.SnapshotReadDuration.Observe(time.Since(start).Seconds())
	}()

	snap := &models.Snapshot{Products: []models.StoredProduct{}, Stocks: []models.StoredStock{}}

	err := s.db.SelectContext(ctx, &snap.Products,
		"SELECT * FROM product WHERE vendor = $1 ORDER BY id", vendor)
	if err != nil {
		return nil, fmt.Errorf("failed to load products for vendor %s: %w", vendor, err)
	}

	err = s.db.SelectContext(ctx, &snap.Stocks, `
		SELECT ss.* FROM store_stock ss
		JOIN product p ON p.id = ss.product_id
		WHERE p.vendor = $1
		ORDER BY ss.id`, vendor)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock for vendor %s: %w", vendor, err)
	}

	return snap, nil
}

// ApplyDiff persists a diff in a single transaction: upsert products,
// upsert touched stock rows, zero out removed stock. Products are never
// deleted; removal tombstones them via zero stock. Dry-run skips every
// write. Serialization losers retry with exponential backoff.
func (s *Store) ApplyDiff(ctx context.Context, vendor string, d *models.Diff, opts ApplyOptions) error {
	if opts.DryRun {
		return nil
	}

	ctx, span := util.StartSpan(ctx, "Store.ApplyDiff")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ApplyDuration.WithLabelValues(vendor).Observe(time.Since(start).Seconds())
	}()

	retries := opts.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			util.ApplyRetriesTotal.WithLabelValues(vendor).Inc()
			backoff := time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
			backoff += time.Duration(rand.Int63n(int64(50 * time.Millisecond)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return &ApplyError{Vendor: vendor, Cause: ctx.Err()}
			}
		}

		lastErr = s.applyOnce(ctx, vendor, d)
		if lastErr == nil {
			return nil
		}
		if !isSerializationFailure(lastErr) {
			return &ApplyError{Vendor: vendor, Cause: lastErr}
		}
	}
	return fmt.Errorf("%w: %v", ErrConcurrencyConflict, lastErr)
}

func (s *Store) applyOnce(ctx context.Context, vendor string, d *models.Diff) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range d.Items {
		productID, err := upsertProduct(ctx, tx, vendor, item)
		if err != nil {
			return fmt.Errorf("upsert product %s: %w", item.Product.After.SKU, err)
		}
		if productID == 0 {
			continue
		}
		for _, sc := range item.Stocks {
			if !sc.Changed {
				continue
			}
			if err := upsertStock(ctx, tx, productID, sc); err != nil {
				return fmt.Errorf("upsert stock %s/%s: %w", sc.StoreID, item.Product.After.SKU, err)
			}
		}
	}

	for _, removed := range d.Removed {
		_, err := tx.ExecContext(ctx,
			"UPDATE store_stock SET qty = 0, updated_at = NOW() WHERE product_id = $1",
			removed.ProductID)
		if err != nil {
			return fmt.Errorf("zero stock for removed product %s: %w", removed.SKU, err)
		}
	}

	return tx.Commit()
}

// upsertProduct writes the item's projection. Unchanged items are only
// touched when a stock row needs their id.
func upsertProduct(ctx context.Context, tx *sqlx.Tx, vendor string, item models.DiffItem) (int64, error) {
	proj := item.Product.After

	switch item.Status {
	case models.DiffStatusNew, models.DiffStatusUpdated:
		var id int64
		err := tx.GetContext(ctx, &id, `
			INSERT INTO product (sku, vendor, catalog_id, name, brand, model, color, size_label, category, usage, supplier, catalog_url, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
			ON CONFLICT ((lower(sku))) DO UPDATE SET
				sku = EXCLUDED.sku,
				catalog_id = EXCLUDED.catalog_id,
				name = EXCLUDED.name,
				brand = EXCLUDED.brand,
				model = EXCLUDED.model,
				color = EXCLUDED.color,
				size_label = EXCLUDED.size_label,
				category = EXCLUDED.category,
				usage = EXCLUDED.usage,
				supplier = EXCLUDED.supplier,
				catalog_url = EXCLUDED.catalog_url,
				updated_at = NOW()
			RETURNING id`,
			proj.SKU, vendor, proj.CatalogID, proj.Name, proj.Brand, proj.Model,
			proj.Color, proj.SizeLabel, proj.Category, proj.Usage, proj.Supplier, proj.CatalogURL)
		return id, err

	default:
		for _, sc := range item.Stocks {
			if sc.Changed {
				var id int64
				err := tx.GetContext(ctx, &id,
					"SELECT id FROM product WHERE lower(sku) = lower($1)", proj.SKU)
				return id, err
			}
		}
		return 0, nil
	}
}

func upsertStock(ctx context.Context, tx *sqlx.Tx, productID int64, sc models.StockChange) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO store_stock (store_id, product_id, qty, barcode, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (store_id, product_id) DO UPDATE SET
			qty = EXCLUDED.qty,
			barcode = EXCLUDED.barcode,
			updated_at = NOW()`,
		sc.StoreID, productID, sc.After.Qty, sc.After.Barcode)
	return err
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// serialization_failure, deadlock_detected
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
