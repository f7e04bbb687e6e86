package diff

import (
	"strconv"
	"strings"

	"catalog-sync/internal/models"
)

// comparedFields drive product classification, in emission order.
var comparedFields = []string{"name", "brand", "model", "color", "sizeLabel", "usage", "category", "catalogUrl", "supplier"}

// Compute classifies a normalized batch against the vendor's persisted
// snapshot. Items are emitted in input order; a SKU appearing twice in the
// batch is kept once (first wins). An empty batch marks every stored
// product for removal.
func Compute(vendor string, batch []models.NormalizedProduct, snap models.Snapshot) *models.Diff {
	byID := make(map[int64]models.StoredProduct, len(snap.Products))
	bySKU := make(map[string]models.StoredProduct, len(snap.Products))
	for _, p := range snap.Products {
		byID[p.ID] = p
		bySKU[strings.ToLower(p.SKU)] = p
	}
	stocksByProduct := make(map[int64][]models.StoredStock)
	for _, s := range snap.Stocks {
		stocksByProduct[s.ProductID] = append(stocksByProduct[s.ProductID], s)
	}

	d := &models.Diff{Vendor: vendor, Items: []models.DiffItem{}, Removed: []models.RemovedItem{}}
	seen := make(map[string]bool)

	for i := range batch {
		product := &batch[i]
		for _, proj := range Project(product) {
			key := strings.ToLower(proj.SKU)
			if seen[key] {
				continue
			}
			seen[key] = true

			item := classify(proj, product, bySKU, stocksByProduct)
			d.Items = append(d.Items, item)

			switch item.Status {
			case models.DiffStatusNew:
				d.Counts.Created++
			case models.DiffStatusUpdated:
				d.Counts.Updated++
			default:
				d.Counts.Unchanged++
			}
		}
	}
	d.Counts.Total = len(d.Items)

	for _, stored := range snap.Products {
		if seen[strings.ToLower(stored.SKU)] {
			continue
		}
		rows := stocksByProduct[stored.ID]
		if allZero(rows) {
			// Nothing left to zero out: the product is already tombstoned
			// or never had stock rows. Re-reporting it would keep the hash
			// moving on repeated empty batches.
			continue
		}
		d.Removed = append(d.Removed, models.RemovedItem{
			CatalogID: stored.CatalogID,
			ProductID: stored.ID,
			SKU:       stored.SKU,
			Stocks:    rows,
		})
	}
	d.Counts.Removed = len(d.Removed)

	d.Hash = ComputeHash(d)
	return d
}

// Project collapses a normalized product into one stock-identity row per
// variant, deriving the canonical SKU for each.
func Project(p *models.NormalizedProduct) []models.Projection {
	taken := make(map[string]bool, len(p.Variants))
	out := make([]models.Projection, 0, len(p.Variants))

	for i, v := range p.Variants {
		sku := deriveSKU(p, v, i, taken)
		taken[strings.ToLower(sku)] = true

		color := ""
		if v.Color != nil {
			color = v.Color.Name
		}

		out = append(out, models.Projection{
			SKU:        sku,
			CatalogID:  p.CatalogID,
			VariantID:  v.ID,
			Name:       displayName(p.Name, color, v.SizeLabel),
			Brand:      p.Brand,
			Model:      p.Model,
			Color:      color,
			SizeLabel:  v.SizeLabel,
			Category:   projectedCategory(p.Category, v.Usage),
			Usage:      v.Usage,
			Barcode:    v.Barcode,
			CatalogURL: p.CatalogURL,
			Supplier:   p.Supplier,
			Stocks:     v.Stocks,
		})
	}
	return out
}

// deriveSKU prefers the variant sku, then the legacy product sku, then the
// catalogId; an empty or colliding result gets a -${i+1} suffix. Comparison
// is case-insensitive, the stored form is the trimmed original.
func deriveSKU(p *models.NormalizedProduct, v models.Variant, idx int, taken map[string]bool) string {
	sku := strings.TrimSpace(v.SKU)
	if sku == "" {
		sku = strings.TrimSpace(p.SKU)
	}
	if sku == "" {
		sku = strings.TrimSpace(p.CatalogID)
	}
	if sku == "" || taken[strings.ToLower(sku)] {
		sku = strings.TrimSpace(p.CatalogID) + "-" + strconv.Itoa(idx+1)
	}
	return sku
}

// displayName composes "${base} — ${color · size}" when variant extras exist.
func displayName(base, color, sizeLabel string) string {
	parts := make([]string, 0, 2)
	if color != "" {
		parts = append(parts, color)
	}
	if sizeLabel != "" {
		parts = append(parts, sizeLabel)
	}
	if len(parts) == 0 {
		return base
	}
	return base + " — " + strings.Join(parts, " · ")
}

// projectedCategory maps canonical categories onto inventory rows:
// sun-usage frames sell as Sunglasses, contacts share the Lenses shelf.
func projectedCategory(category, usage string) string {
	switch category {
	case models.CategoryFrames:
		if usage == models.UsageSun {
			return models.CategorySunglasses
		}
		return models.CategoryFrames
	case models.CategoryLenses, models.CategoryContacts:
		return models.CategoryLenses
	default:
		return category
	}
}

func classify(
	proj models.Projection,
	normalized *models.NormalizedProduct,
	bySKU map[string]models.StoredProduct,
	stocksByProduct map[int64][]models.StoredStock,
) models.DiffItem {
	item := models.DiffItem{
		CatalogID: proj.CatalogID,
		Product: models.ProductDiff{
			After:   proj,
			Changes: []models.FieldChange{},
		},
		Stocks:     []models.StockChange{},
		Normalized: normalized,
	}

	stored, exists := bySKU[strings.ToLower(proj.SKU)]
	if !exists {
		item.Status = models.DiffStatusNew
		item.Stocks = stockChanges(proj, nil)
		return item
	}

	before := storedProjection(stored)
	item.Product.Before = &before

	for _, field := range comparedFields {
		b, a := fieldValue(before, field), fieldValue(proj, field)
		if b != a {
			item.Product.Changes = append(item.Product.Changes, models.FieldChange{Field: field, Before: b, After: a})
		}
	}

	item.Stocks = stockChanges(proj, stocksByProduct[stored.ID])

	if len(item.Product.Changes) > 0 {
		item.Status = models.DiffStatusUpdated
	} else {
		item.Status = models.DiffStatusUnchanged
	}
	return item
}

// stockChanges compares incoming per-store levels against stored rows,
// using the {qty:0, barcode:null} sentinel for stores with no row yet.
func stockChanges(proj models.Projection, rows []models.StoredStock) []models.StockChange {
	byStore := make(map[string]models.StoredStock, len(rows))
	for _, r := range rows {
		byStore[r.StoreID] = r
	}

	changes := make([]models.StockChange, 0, len(proj.Stocks))
	for _, level := range proj.Stocks {
		before := models.StockState{Qty: 0, Barcode: nil}
		if r, ok := byStore[level.StoreID]; ok {
			before = models.StockState{Qty: r.Qty, Barcode: r.Barcode}
		}

		var afterBarcode *string
		if proj.Barcode != "" {
			b := proj.Barcode
			afterBarcode = &b
		}
		after := models.StockState{Qty: level.Qty, Barcode: afterBarcode}

		changes = append(changes, models.StockChange{
			StoreID: level.StoreID,
			SKU:     proj.SKU,
			Before:  before,
			After:   after,
			Changed: before.Qty != after.Qty || !barcodeEqual(before.Barcode, after.Barcode),
		})
	}
	return changes
}

func barcodeEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func allZero(rows []models.StoredStock) bool {
	for _, r := range rows {
		if r.Qty != 0 {
			return false
		}
	}
	return true
}

func storedProjection(p models.StoredProduct) models.Projection {
	return models.Projection{
		SKU:        p.SKU,
		CatalogID:  p.CatalogID,
		Name:       p.Name,
		Brand:      p.Brand,
		Model:      p.Model,
		Color:      p.Color,
		SizeLabel:  p.SizeLabel,
		Category:   p.Category,
		Usage:      p.Usage,
		CatalogURL: p.CatalogURL,
		Supplier:   p.Supplier,
	}
}

func fieldValue(proj models.Projection, field string) string {
	switch field {
	case "name":
		return proj.Name
	case "brand":
		return proj.Brand
	case "model":
		return proj.Model
	case "color":
		return proj.Color
	case "sizeLabel":
		return proj.SizeLabel
	case "usage":
		return proj.Usage
	case "category":
		return proj.Category
	case "catalogUrl":
		return proj.CatalogURL
	case "supplier":
		return proj.Supplier
	default:
		return ""
	}
}
