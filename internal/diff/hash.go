package diff

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"catalog-sync/internal/models"
)

// hashEntry is the per-item identity hashed for a diff: the projected
// after-state, independent of classification so that re-running the same
// batch against the updated snapshot yields the same hash.
type hashEntry struct {
	CatalogID  string              `json:"catalogId"`
	Projection models.Projection   `json:"projection"`
	Stocks     []models.StockLevel `json:"stocks,omitempty"`
}

type removedEntry struct {
	CatalogID string `json:"catalogId"`
	SKU       string `json:"sku"`
}

// ComputeHash digests the diff's canonical form: vendor, item projections
// sorted by catalogId then sku, removed identities sorted the same way,
// serialized with lexicographically ordered keys, sha256 hex encoded.
func ComputeHash(d *models.Diff) string {
	items := make([]hashEntry, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, hashEntry{
			CatalogID:  it.CatalogID,
			Projection: it.Product.After,
			Stocks:     it.Product.After.Stocks,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CatalogID != items[j].CatalogID {
			return items[i].CatalogID < items[j].CatalogID
		}
		return items[i].Projection.SKU < items[j].Projection.SKU
	})

	removed := make([]removedEntry, 0, len(d.Removed))
	for _, r := range d.Removed {
		removed = append(removed, removedEntry{CatalogID: r.CatalogID, SKU: r.SKU})
	}
	sort.Slice(removed, func(i, j int) bool {
		if removed[i].CatalogID != removed[j].CatalogID {
			return removed[i].CatalogID < removed[j].CatalogID
		}
		return removed[i].SKU < removed[j].SKU
	})

	canonical := map[string]interface{}{
		"vendor":  d.Vendor,
		"items":   items,
		"removed": removed,
	}

	var buf bytes.Buffer
	writeCanonical(&buf, toGeneric(canonical))
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// toGeneric round-trips through encoding/json so struct fields become
// generic maps that writeCanonical can order.
func toGeneric(v interface{}) interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

// writeCanonical emits JSON with object keys in lexicographic order.
func writeCanonical(buf *bytes.Buffer, v interface{}) {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			writeCanonical(buf, t[k])
		}
		buf.WriteByte('}')
	case []interface{}:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, e)
		}
		buf.WriteByte(']')
	default:
		b, _ := json.Marshal(t)
		buf.Write(b)
	}
}
