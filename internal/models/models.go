package models

import (
	"encoding/json"
	"time"
)

// VendorRef identifies a supplier.
type VendorRef struct {
	Slug string `json:"slug" validate:"required,min=1,max=48"`
	Name string `json:"name"`
}

// Product categories in canonical form.
const (
	CategoryFrames      = "Frames"
	CategoryLenses      = "Lenses"
	CategoryContacts    = "Contacts"
	CategoryAccessories = "Accessories"

	// CategorySunglasses only appears on projected inventory rows; a
	// normalized product stays Frames with usage "sun".
	CategorySunglasses = "Sunglasses"
)

// Variant types, one per category family.
const (
	VariantFrame     = "frame"
	VariantLens      = "lens"
	VariantContact   = "contact"
	VariantAccessory = "accessory"
)

// Usage values coerced by adapters.
const (
	UsageOptical = "optical"
	UsageSun     = "sun"
	UsageUnknown = "unknown"
)

// PhotoAngleOrder lists photo angles in display-precedence order.
var PhotoAngleOrder = []string{"front", "quarter", "side", "temple", "model", "detail", "pack", "clip", "unknown"}

// ColorInfo describes a variant colorway.
type ColorInfo struct {
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// Measurements carries frame geometry in millimetres.
type Measurements struct {
	LensWidth    float64 `json:"lensWidth,omitempty"`
	BridgeWidth  float64 `json:"bridgeWidth,omitempty"`
	TempleLength float64 `json:"templeLength,omitempty"`
	LensHeight   float64 `json:"lensHeight,omitempty"`
	FrameWidth   float64 `json:"frameWidth,omitempty"`
}

// StockLevel is a per-store quantity reported by a vendor payload.
type StockLevel struct {
	StoreID string `json:"storeId"`
	Qty     int    `json:"qty"`
}

// Variant is one sellable configuration of a normalized product.
type Variant struct {
	Type         string        `json:"type" validate:"required,oneof=frame lens contact accessory"`
	ID           string        `json:"id,omitempty"`
	SKU          string        `json:"sku,omitempty"`
	Barcode      string        `json:"barcode,omitempty"`
	SizeLabel    string        `json:"sizeLabel,omitempty"`
	Color        *ColorInfo    `json:"color,omitempty"`
	Measurements *Measurements `json:"measurements,omitempty"`
	Usage        string        `json:"usage,omitempty"`
	Fit          string        `json:"fit,omitempty"`
	PackSize     int           `json:"packSize,omitempty"`
	Power        string        `json:"power,omitempty"`
	Material     string        `json:"material,omitempty"`
	Stocks       []StockLevel  `json:"stocks,omitempty"`
}

// Photo is one normalized product image.
type Photo struct {
	URL          string `json:"url" validate:"required"`
	Label        string `json:"label,omitempty"`
	Angle        string `json:"angle,omitempty"`
	IsHero       bool   `json:"isHero,omitempty"`
	ColorwayName string `json:"colorwayName,omitempty"`
	Source       string `json:"source,omitempty"`
}

// Price is an amount in minor units.
type Price struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// NormalizedProduct is the post-adapter canonical product shape.
type NormalizedProduct struct {
	Vendor          VendorRef         `json:"vendor" validate:"required"`
	CatalogID       string            `json:"catalogId" validate:"required"`
	Name            string            `json:"name"`
	Brand           string            `json:"brand,omitempty"`
	Model           string            `json:"model,omitempty"`
	Category        string            `json:"category" validate:"required,oneof=Frames Lenses Contacts Accessories"`
	Variants        []Variant         `json:"variants" validate:"required,min=1,dive"`
	Photos          []Photo           `json:"photos,omitempty" validate:"dive"`
	Price           *Price            `json:"price,omitempty"`
	Source          string            `json:"source,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	Collections     []string          `json:"collections,omitempty"`
	DescriptionHTML string            `json:"descriptionHtml,omitempty"`
	StoryHTML       string            `json:"storyHtml,omitempty"`
	CatalogURL      string            `json:"catalogUrl,omitempty"`
	Supplier        string            `json:"supplier,omitempty"`
	SKU             string            `json:"sku,omitempty"`
	Extras          map[string]string `json:"extras,omitempty"`
	Raw             json.RawMessage   `json:"raw,omitempty"`
}

// StoredProduct is a persisted inventory row bound to a vendor.
type StoredProduct struct {
	ID         int64     `db:"id" json:"id"`
	SKU        string    `db:"sku" json:"sku"`
	Vendor     string    `db:"vendor" json:"vendor"`
	CatalogID  string    `db:"catalog_id" json:"catalogId"`
	Name       string    `db:"name" json:"name"`
	Brand      string    `db:"brand" json:"brand,omitempty"`
	Model      string    `db:"model" json:"model,omitempty"`
	Color      string    `db:"color" json:"color,omitempty"`
	SizeLabel  string    `db:"size_label" json:"sizeLabel,omitempty"`
	Category   string    `db:"category" json:"category"`
	Usage      string    `db:"usage" json:"usage,omitempty"`
	Supplier   string    `db:"supplier" json:"supplier,omitempty"`
	CatalogURL string    `db:"catalog_url" json:"catalogUrl,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// StoredStock is a per-store stock row. At most one per (store, product).
type StoredStock struct {
	ID        int64     `db:"id" json:"id"`
	StoreID   string    `db:"store_id" json:"storeId"`
	ProductID int64     `db:"product_id" json:"productId"`
	Qty       int       `db:"qty" json:"qty"`
	Barcode   *string   `db:"barcode" json:"barcode,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Run statuses
const (
	RunStatusPending = "PENDING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// RunCounts summarizes one diff.
type RunCounts struct {
	Total     int `json:"total"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
}

// VendorSyncRun is one dispatch record.
type VendorSyncRun struct {
	ID         string     `db:"id" json:"id"`
	Vendor     string     `db:"vendor" json:"vendor"`
	Status     string     `db:"status" json:"status"`
	Actor      *string    `db:"actor" json:"actor,omitempty"`
	DryRun     bool       `db:"dry_run" json:"dryRun"`
	SourcePath *string    `db:"source_path" json:"sourcePath,omitempty"`
	Hash       *string    `db:"hash" json:"hash,omitempty"`
	Error      *string    `db:"error" json:"error,omitempty"`
	StartedAt  time.Time  `db:"started_at" json:"startedAt"`
	FinishedAt *time.Time `db:"finished_at" json:"finishedAt,omitempty"`
	DurationMs *int64     `db:"duration_ms" json:"durationMs,omitempty"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
	CountsJSON []byte     `db:"counts_json" json:"-"`
}

// Counts decodes the persisted counts payload; zero counts when absent.
func (r *VendorSyncRun) Counts() RunCounts {
	var c RunCounts
	if len(r.CountsJSON) > 0 {
		_ = json.Unmarshal(r.CountsJSON, &c)
	}
	return c
}

// VendorSyncState is the last-good snapshot per vendor.
type VendorSyncState struct {
	Vendor         string     `db:"vendor" json:"vendor"`
	LastRunAt      *time.Time `db:"last_run_at" json:"lastRunAt,omitempty"`
	LastRunBy      *string    `db:"last_run_by" json:"lastRunBy,omitempty"`
	LastDurationMs *int64     `db:"last_duration_ms" json:"lastDurationMs,omitempty"`
	TotalItems     int        `db:"total_items" json:"totalItems"`
	LastSource     *string    `db:"last_source" json:"lastSource,omitempty"`
	LastHash       *string    `db:"last_hash" json:"lastHash,omitempty"`
	LastError      *string    `db:"last_error" json:"lastError,omitempty"`
}
