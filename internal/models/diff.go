package models

// Diff item statuses.
const (
	DiffStatusNew       = "new"
	DiffStatusUpdated   = "updated"
	DiffStatusUnchanged = "unchanged"
)

// Projection is the per-variant stock identity row derived from a
// normalized product before diffing. SKU is the canonical identifier.
type Projection struct {
	SKU        string       `json:"sku"`
	CatalogID  string       `json:"catalogId"`
	VariantID  string       `json:"variantId,omitempty"`
	Name       string       `json:"name"`
	Brand      string       `json:"brand,omitempty"`
	Model      string       `json:"model,omitempty"`
	Color      string       `json:"color,omitempty"`
	SizeLabel  string       `json:"sizeLabel,omitempty"`
	Category   string       `json:"category"`
	Usage      string       `json:"usage,omitempty"`
	Barcode    string       `json:"barcode,omitempty"`
	CatalogURL string       `json:"catalogUrl,omitempty"`
	Supplier   string       `json:"supplier,omitempty"`
	Stocks     []StockLevel `json:"stocks,omitempty"`
}

// FieldChange records one attribute difference.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// StockState is the qty/barcode pair compared per (store, product).
type StockState struct {
	Qty     int     `json:"qty"`
	Barcode *string `json:"barcode"`
}

// StockChange is the per-store stock comparison for one product.
type StockChange struct {
	StoreID string     `json:"storeId"`
	SKU     string     `json:"sku,omitempty"`
	Before  StockState `json:"before"`
	After   StockState `json:"after"`
	Changed bool       `json:"changed"`
}

// ProductDiff carries before/after attribute state with field changes.
type ProductDiff struct {
	Before  *Projection   `json:"before,omitempty"`
	After   Projection    `json:"after"`
	Changes []FieldChange `json:"changes"`
}

// DiffItem is one classified batch entry.
type DiffItem struct {
	CatalogID  string             `json:"catalogId"`
	Status     string             `json:"status"`
	Product    ProductDiff        `json:"product"`
	Stocks     []StockChange      `json:"stocks"`
	Normalized *NormalizedProduct `json:"normalized,omitempty"`
}

// RemovedItem is a stored product whose SKU was absent from the batch.
type RemovedItem struct {
	CatalogID string        `json:"catalogId"`
	ProductID int64         `json:"productId,omitempty"`
	SKU       string        `json:"sku,omitempty"`
	Stocks    []StoredStock `json:"stocks"`
}

// Diff is the full structured difference for one vendor batch.
type Diff struct {
	Vendor  string        `json:"vendor"`
	Hash    string        `json:"hash"`
	Counts  RunCounts     `json:"counts"`
	Items   []DiffItem    `json:"items"`
	Removed []RemovedItem `json:"removed"`
}

// Snapshot is the currently-persisted inventory for one vendor.
type Snapshot struct {
	Products []StoredProduct `json:"products"`
	Stocks   []StoredStock   `json:"stocks"`
}

// RunSummary is the applier's result for one preview or apply.
type RunSummary struct {
	Vendor     string    `json:"vendor"`
	Hash       string    `json:"hash"`
	Counts     RunCounts `json:"counts"`
	DryRun     bool      `json:"dryRun"`
	DurationMs int64     `json:"durationMs"`
	FinishedAt string    `json:"finishedAt"`
	SourcePath string    `json:"sourcePath,omitempty"`
}
