package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	"catalog-sync/internal/models"
	"catalog-sync/internal/registry"
)

// baseAdapter implements the shared parse/normalize machinery. Concrete
// vendors configure the photo heuristic and field quirks on top of it.
type baseAdapter struct {
	key         string
	vendor      models.VendorRef
	photoFilter func(url string) bool
	supplier    string
}

func (a *baseAdapter) Key() string { return a.key }

func (a *baseAdapter) Vendor() models.VendorRef { return a.vendor }

// ParseInput tolerantly decodes a raw payload. Only missing or malformed
// required fields reject: catalogId and category must be non-empty strings.
// Unknown fields are preserved for the normalized product's Raw.
func (a *baseAdapter) ParseInput(raw []byte) (*registry.RawProduct, *registry.InputError) {
	fieldErrors := make(map[string][]string)

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		fieldErrors[""] = []string{"Expected object"}
		return nil, &registry.InputError{FieldErrors: fieldErrors}
	}

	catalogID, ok := asString(fields["catalogId"])
	if !ok || strings.TrimSpace(catalogID) == "" {
		fieldErrors["catalogId"] = []string{"Required"}
	}
	category, ok := asString(fields["category"])
	if !ok || strings.TrimSpace(category) == "" {
		fieldErrors["category"] = []string{"Required"}
	}

	if len(fieldErrors) > 0 {
		return nil, &registry.InputError{FieldErrors: fieldErrors}
	}

	return &registry.RawProduct{
		CatalogID: strings.TrimSpace(catalogID),
		Category:  strings.TrimSpace(category),
		Raw:       raw,
		Fields:    fields,
	}, nil
}

// Normalize builds the canonical product. It never fails for missing
// optional fields; the only error is an empty catalogId slipping past the
// schema, which indicates a caller bug.
func (a *baseAdapter) Normalize(parsed *registry.RawProduct) (*models.NormalizedProduct, error) {
	if parsed == nil || parsed.CatalogID == "" {
		return nil, fmt.Errorf("adapter %s: empty catalogId", a.key)
	}

	f := parsed.Fields
	category := coerceCategory(parsed.Category)

	p := &models.NormalizedProduct{
		Vendor:          a.vendor,
		CatalogID:       parsed.CatalogID,
		Name:            stringField(f, "name", "title", "displayName"),
		Brand:           stringField(f, "brand", "maker"),
		Model:           stringField(f, "model", "modelName"),
		Category:        category,
		Source:          stringField(f, "source"),
		CatalogURL:      stringField(f, "catalogUrl", "url", "productUrl"),
		SKU:             strings.TrimSpace(stringField(f, "sku")),
		Tags:            stringSlice(f["tags"]),
		Collections:     stringSlice(f["collections"]),
		DescriptionHTML: stringField(f, "descriptionHtml", "description"),
		StoryHTML:       stringField(f, "storyHtml", "story"),
		Extras:          stringMap(f["extras"]),
		Raw:             json.RawMessage(parsed.Raw),
	}
	if p.Brand == "" {
		p.Brand = a.vendor.Name
	}
	p.Supplier = a.supplier
	if p.Supplier == "" {
		p.Supplier = a.vendor.Name
	}
	if p.Name == "" {
		p.Name = parsed.CatalogID
	}

	p.Price = parsePrice(f["price"])
	p.Variants = a.parseVariants(parsed, category)
	p.Photos = a.normalizePhotos(parsePhotos(f))

	return p, nil
}

// parseVariants extracts the variant list, synthesizing the fallback
// variant ${catalogId}:variant when the payload carries none.
func (a *baseAdapter) parseVariants(parsed *registry.RawProduct, category string) []models.Variant {
	raw, _ := parsed.Fields["variants"].([]interface{})

	variants := make([]models.Variant, 0, len(raw))
	for _, rv := range raw {
		vm, ok := rv.(map[string]interface{})
		if !ok {
			continue
		}
		variants = append(variants, parseVariant(vm, category))
	}

	if len(variants) == 0 {
		variants = append(variants, models.Variant{
			Type:   defaultVariantType(category),
			ID:     parsed.CatalogID + ":variant",
			Usage:  coerceUsage(stringField(parsed.Fields, "usage")),
			Stocks: parseStocks(parsed.Fields),
		})
	}
	return variants
}

func parseVariant(vm map[string]interface{}, category string) models.Variant {
	v := models.Variant{
		Type:      coerceVariantType(stringField(vm, "type"), category),
		ID:        stringField(vm, "id", "variantId"),
		SKU:       strings.TrimSpace(stringField(vm, "sku")),
		Barcode:   stringField(vm, "barcode", "ean", "upc"),
		SizeLabel: stringField(vm, "sizeLabel", "size"),
		Usage:     coerceUsage(stringField(vm, "usage")),
		Fit:       coerceFit(stringField(vm, "fit")),
		Power:     stringField(vm, "power"),
		Material:  stringField(vm, "material"),
		PackSize:  intField(vm, "packSize", "packQty"),
		Stocks:    parseStocks(vm),
	}

	switch c := vm["color"].(type) {
	case string:
		if c != "" {
			v.Color = &models.ColorInfo{Name: c}
		}
	case map[string]interface{}:
		ci := models.ColorInfo{
			Name: stringField(c, "name", "label"),
			Code: stringField(c, "code", "hex"),
		}
		if ci.Name != "" || ci.Code != "" {
			v.Color = &ci
		}
	}

	if m := parseMeasurements(vm); m != nil {
		v.Measurements = m
	}
	return v
}

// parseMeasurements reads frame geometry, falling back across the
// alternate key sets vendors use (measurements.lensWidth vs size.lens).
func parseMeasurements(vm map[string]interface{}) *models.Measurements {
	meas, _ := vm["measurements"].(map[string]interface{})
	size, _ := vm["size"].(map[string]interface{})
	if meas == nil && size == nil {
		return nil
	}

	pick := func(keys ...string) float64 {
		for _, src := range []map[string]interface{}{meas, size} {
			if src == nil {
				continue
			}
			for _, k := range keys {
				if n, ok := asFloat(src[k]); ok && n > 0 {
					return n
				}
			}
		}
		return 0
	}

	m := &models.Measurements{
		LensWidth:    pick("lensWidth", "lens", "eye"),
		BridgeWidth:  pick("bridgeWidth", "bridge"),
		TempleLength: pick("templeLength", "temple", "arm"),
		LensHeight:   pick("lensHeight", "height"),
		FrameWidth:   pick("frameWidth", "width"),
	}
	if *m == (models.Measurements{}) {
		return nil
	}
	return m
}

// parseStocks reads per-store quantities. A scalar qty maps to the default
// store; an array carries explicit store ids.
func parseStocks(m map[string]interface{}) []models.StockLevel {
	for _, key := range []string{"stocks", "stores", "inventory"} {
		arr, ok := m[key].([]interface{})
		if !ok {
			continue
		}
		levels := make([]models.StockLevel, 0, len(arr))
		for _, e := range arr {
			em, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			storeID := stringField(em, "storeId", "store", "location")
			if storeID == "" {
				storeID = DefaultStoreID
			}
			qty := intField(em, "qty", "quantity", "available")
			if qty < 0 {
				qty = 0
			}
			levels = append(levels, models.StockLevel{StoreID: storeID, Qty: qty})
		}
		if len(levels) > 0 {
			return levels
		}
	}

	if qty := intField(m, "qty", "quantity"); qty > 0 {
		return []models.StockLevel{{StoreID: DefaultStoreID, Qty: qty}}
	}
	return nil
}

func parsePrice(v interface{}) *models.Price {
	switch p := v.(type) {
	case float64:
		if p > 0 {
			return &models.Price{Amount: int64(p)}
		}
	case map[string]interface{}:
		amount := int64(0)
		if n, ok := asFloat(p["amount"]); ok {
			amount = int64(n)
		}
		if amount > 0 {
			return &models.Price{Amount: amount, Currency: stringField(p, "currency")}
		}
	}
	return nil
}

// DefaultStoreID receives stock rows whose payload names no store.
var DefaultStoreID = "main"

// coerceCategory maps vendor category strings onto the canonical set.
// "Sunglasses" is Frames; anything unrecognized is Accessories.
func coerceCategory(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "frames", "frame", "sunglasses", "eyeglasses", "optical":
		return models.CategoryFrames
	case "lenses", "lens":
		return models.CategoryLenses
	case "contacts", "contact", "contact lenses":
		return models.CategoryContacts
	case "accessories", "accessory":
		return models.CategoryAccessories
	default:
		return models.CategoryAccessories
	}
}

func defaultVariantType(category string) string {
	switch category {
	case models.CategoryFrames:
		return models.VariantFrame
	case models.CategoryLenses:
		return models.VariantLens
	case models.CategoryContacts:
		return models.VariantContact
	default:
		return models.VariantAccessory
	}
}

func coerceVariantType(raw, category string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case models.VariantFrame, models.VariantLens, models.VariantContact, models.VariantAccessory:
		return strings.ToLower(strings.TrimSpace(raw))
	default:
		return defaultVariantType(category)
	}
}

func coerceUsage(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "optical", "rx":
		return models.UsageOptical
	case "sun", "sunglasses":
		return models.UsageSun
	case "":
		return ""
	default:
		return models.UsageUnknown
	}
}

func coerceFit(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "narrow", "regular", "wide":
		return strings.ToLower(strings.TrimSpace(raw))
	case "":
		return ""
	default:
		return models.UsageUnknown
	}
}

func coerceAngle(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	for _, a := range models.PhotoAngleOrder {
		if lowered == a {
			return a
		}
	}
	return "unknown"
}

// ---- loose-field helpers --------------------------------------------------

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFloat(v interface{}) (float64, bool) {
	n, ok := v.(float64)
	return n, ok
}

func stringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := asString(m[k]); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func intField(m map[string]interface{}, keys ...string) int {
	for _, k := range keys {
		if n, ok := asFloat(m[k]); ok {
			return int(n)
		}
	}
	return 0
}

func stringSlice(v interface{}) []string {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := asString(e); ok && s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func stringMap(v interface{}) map[string]string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, e := range m {
		switch t := e.(type) {
		case string:
			out[k] = t
		case float64, bool:
			out[k] = fmt.Sprintf("%v", t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
