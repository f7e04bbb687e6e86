package adapters

import (
	"testing"

	"catalog-sync/internal/models"
	"catalog-sync/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, a registry.Adapter, payload string) *registry.RawProduct {
	t.Helper()
	parsed, inputErr := a.ParseInput([]byte(payload))
	require.Nil(t, inputErr)
	require.NotNil(t, parsed)
	return parsed
}

func mustNormalize(t *testing.T, a registry.Adapter, payload string) *models.NormalizedProduct {
	t.Helper()
	p, err := a.Normalize(mustParse(t, a, payload))
	require.NoError(t, err)
	return p
}

func TestParseInputRequiredFields(t *testing.T) {
	a := NewGeneric("acme", "ACME Optical")

	_, inputErr := a.ParseInput([]byte(`{"name":"No IDs here"}`))
	require.NotNil(t, inputErr)
	assert.Equal(t, []string{"Required"}, inputErr.FieldErrors["catalogId"])
	assert.Equal(t, []string{"Required"}, inputErr.FieldErrors["category"])
}

func TestParseInputNotAnObject(t *testing.T) {
	a := NewGeneric("acme", "ACME Optical")

	_, inputErr := a.ParseInput([]byte(`["not", "an", "object"]`))
	require.NotNil(t, inputErr)
	assert.Contains(t, inputErr.FieldErrors[""], "Expected object")
}

func TestParseInputToleratesUnknownFields(t *testing.T) {
	a := NewGeneric("acme", "ACME Optical")

	parsed := mustParse(t, a, `{"catalogId":"X-1","category":"Frames","totallyNovel":{"deep":true}}`)
	assert.Equal(t, "X-1", parsed.CatalogID)
	assert.Equal(t, "Frames", parsed.Category)
	assert.Contains(t, parsed.Fields, "totallyNovel")
}

func TestNormalizeFallbackVariant(t *testing.T) {
	a := NewGeneric("acme", "ACME Optical")

	p := mustNormalize(t, a, `{"catalogId":"X-1","category":"Frames","qty":4}`)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "X-1:variant", p.Variants[0].ID)
	assert.Equal(t, models.VariantFrame, p.Variants[0].Type)
	require.Len(t, p.Variants[0].Stocks, 1)
	assert.Equal(t, DefaultStoreID, p.Variants[0].Stocks[0].StoreID)
	assert.Equal(t, 4, p.Variants[0].Stocks[0].Qty)
}

func TestNormalizeCategoryCoercion(t *testing.T) {
	cases := map[string]string{
		"Sunglasses":     models.CategoryFrames,
		"frames":         models.CategoryFrames,
		"Lenses":         models.CategoryLenses,
		"Contact Lenses": models.CategoryContacts,
		"Widgets":        models.CategoryAccessories,
	}

	a := NewGeneric("acme", "ACME Optical")
	for raw, want := range cases {
		p := mustNormalize(t, a, `{"catalogId":"X-1","category":"`+raw+`"}`)
		assert.Equal(t, want, p.Category, "category %q", raw)
	}
}

func TestNormalizeUsageCoercion(t *testing.T) {
	a := NewGeneric("acme", "ACME Optical")

	p := mustNormalize(t, a, `{
		"catalogId":"X-1","category":"Frames",
		"variants":[
			{"sku":"S1","usage":"rx"},
			{"sku":"S2","usage":"Sunglasses"},
			{"sku":"S3","usage":"polarized-mystery"},
			{"sku":"S4"}
		]
	}`)
	require.Len(t, p.Variants, 4)
	assert.Equal(t, models.UsageOptical, p.Variants[0].Usage)
	assert.Equal(t, models.UsageSun, p.Variants[1].Usage)
	assert.Equal(t, models.UsageUnknown, p.Variants[2].Usage)
	assert.Equal(t, "", p.Variants[3].Usage)
}

func TestNormalizeBrandAndSupplierFallback(t *testing.T) {
	a := NewGeneric("acme", "ACME Optical")

	p := mustNormalize(t, a, `{"catalogId":"X-1","category":"Frames"}`)
	assert.Equal(t, "ACME Optical", p.Brand)
	assert.Equal(t, "ACME Optical", p.Supplier)
	assert.Equal(t, "X-1", p.Name)

	p = mustNormalize(t, a, `{"catalogId":"X-2","category":"Frames","brand":"House Brand","name":"Round"}`)
	assert.Equal(t, "House Brand", p.Brand)
	assert.Equal(t, "Round", p.Name)
}

func TestNormalizeMeasurementKeyFallback(t *testing.T) {
	a := NewGeneric("acme", "ACME Optical")

	p := mustNormalize(t, a, `{
		"catalogId":"X-1","category":"Frames",
		"variants":[{"sku":"S1","measurements":{"lensWidth":49},"size":{"bridge":21,"temple":145}}]
	}`)
	m := p.Variants[0].Measurements
	require.NotNil(t, m)
	assert.Equal(t, 49.0, m.LensWidth)
	assert.Equal(t, 21.0, m.BridgeWidth)
	assert.Equal(t, 145.0, m.TempleLength)

	// size.lens feeds lensWidth when measurements is absent
	p = mustNormalize(t, a, `{
		"catalogId":"X-2","category":"Frames",
		"variants":[{"sku":"S2","size":{"lens":46}}]
	}`)
	require.NotNil(t, p.Variants[0].Measurements)
	assert.Equal(t, 46.0, p.Variants[0].Measurements.LensWidth)
}

func TestNormalizeColorShapes(t *testing.T) {
	a := NewGeneric("acme", "ACME Optical")

	p := mustNormalize(t, a, `{
		"catalogId":"X-1","category":"Frames",
		"variants":[
			{"sku":"S1","color":"Tortoise"},
			{"sku":"S2","color":{"name":"Black","hex":"#000"}},
			{"sku":"S3"}
		]
	}`)
	require.NotNil(t, p.Variants[0].Color)
	assert.Equal(t, "Tortoise", p.Variants[0].Color.Name)
	require.NotNil(t, p.Variants[1].Color)
	assert.Equal(t, "Black", p.Variants[1].Color.Name)
	assert.Equal(t, "#000", p.Variants[1].Color.Code)
	assert.Nil(t, p.Variants[2].Color)
}

func TestNormalizeStocksPerStore(t *testing.T) {
	a := NewGeneric("acme", "ACME Optical")

	p := mustNormalize(t, a, `{
		"catalogId":"X-1","category":"Frames",
		"variants":[{"sku":"S1","stocks":[
			{"storeId":"soho","qty":3},
			{"qty":-2},
			{"storeId":"uptown","available":7}
		]}]
	}`)
	stocks := p.Variants[0].Stocks
	require.Len(t, stocks, 3)
	assert.Equal(t, models.StockLevel{StoreID: "soho", Qty: 3}, stocks[0])
	assert.Equal(t, models.StockLevel{StoreID: DefaultStoreID, Qty: 0}, stocks[1])
	assert.Equal(t, models.StockLevel{StoreID: "uptown", Qty: 7}, stocks[2])
}

func TestNormalizeRawPreserved(t *testing.T) {
	a := NewGeneric("acme", "ACME Optical")

	payload := `{"catalogId":"X-1","category":"Frames","oddball":42}`
	p := mustNormalize(t, a, payload)
	assert.JSONEq(t, payload, string(p.Raw))
}

func TestPhotoFilterDedupeAndHero(t *testing.T) {
	a := NewMoscot()

	p := mustNormalize(t, a, `{
		"catalogId":"LEMTOSH","category":"Frames",
		"photos":[
			{"url":"https://cdn.moscot.com/lifestyle/beach.jpg","angle":"front"},
			{"url":"https://cdn.moscot.com/p/lemtosh-side.jpg","angle":"side"},
			{"url":"https://cdn.moscot.com/p/lemtosh-front.jpg","angle":"front"},
			{"url":"https://cdn.moscot.com/mirror/LEMTOSH-FRONT.JPG","angle":"front"},
			{"url":"https://cdn.moscot.com/p/lemtosh-quarter.jpg","angle":"quarter"}
		]
	}`)

	// lifestyle shot filtered, duplicate basename dropped
	require.Len(t, p.Photos, 3)

	// hero is the first surviving front shot and leads the order
	assert.True(t, p.Photos[0].IsHero)
	assert.Equal(t, "https://cdn.moscot.com/p/lemtosh-front.jpg", p.Photos[0].URL)
	assert.Equal(t, "quarter", p.Photos[1].Angle)
	assert.Equal(t, "side", p.Photos[2].Angle)
	for _, ph := range p.Photos[1:] {
		assert.False(t, ph.IsHero)
	}
}

func TestPhotoHeroFallbackToFirst(t *testing.T) {
	a := NewGeneric("acme", "ACME Optical")

	p := mustNormalize(t, a, `{
		"catalogId":"X-1","category":"Frames",
		"photos":["https://cdn.acme.test/a.jpg","https://cdn.acme.test/b.jpg"]
	}`)
	require.Len(t, p.Photos, 2)
	assert.True(t, p.Photos[0].IsHero)
	assert.Equal(t, "https://cdn.acme.test/a.jpg", p.Photos[0].URL)
}

func TestPhotoUnknownAngleSortsLast(t *testing.T) {
	a := NewGeneric("acme", "ACME Optical")

	p := mustNormalize(t, a, `{
		"catalogId":"X-1","category":"Frames",
		"photos":[
			{"url":"https://cdn.acme.test/misc.jpg","angle":"artsy"},
			{"url":"https://cdn.acme.test/temple.jpg","angle":"temple"},
			{"url":"https://cdn.acme.test/front.jpg","angle":"front"}
		]
	}`)
	require.Len(t, p.Photos, 3)
	assert.Equal(t, "front", p.Photos[0].Angle)
	assert.Equal(t, "temple", p.Photos[1].Angle)
	assert.Equal(t, "unknown", p.Photos[2].Angle)
}

func TestGarrettLeightFiltersSwatches(t *testing.T) {
	a := NewGarrettLeight()

	p := mustNormalize(t, a, `{
		"catalogId":"GL-HAMPTON","category":"Sunglasses",
		"photos":[
			{"url":"https://cdn.gl.test/swatch/tortoise.png","angle":"front"},
			{"url":"https://cdn.gl.test/p/hampton-front.jpg","angle":"front"}
		]
	}`)
	require.Len(t, p.Photos, 1)
	assert.Equal(t, "https://cdn.gl.test/p/hampton-front.jpg", p.Photos[0].URL)
	assert.Equal(t, models.CategoryFrames, p.Category)
}

func TestNormalizePrice(t *testing.T) {
	a := NewGeneric("acme", "ACME Optical")

	p := mustNormalize(t, a, `{"catalogId":"X-1","category":"Frames","price":{"amount":31000,"currency":"USD"}}`)
	require.NotNil(t, p.Price)
	assert.Equal(t, int64(31000), p.Price.Amount)
	assert.Equal(t, "USD", p.Price.Currency)

	p = mustNormalize(t, a, `{"catalogId":"X-2","category":"Frames","price":29500}`)
	require.NotNil(t, p.Price)
	assert.Equal(t, int64(29500), p.Price.Amount)

	p = mustNormalize(t, a, `{"catalogId":"X-3","category":"Frames"}`)
	assert.Nil(t, p.Price)
}
