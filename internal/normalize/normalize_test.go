package normalize

import (
	"encoding/json"
	"testing"

	"catalog-sync/internal/adapters"
	"catalog-sync/internal/models"
	"catalog-sync/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// misbehavingAdapter drives the execution and output failure paths.
type misbehavingAdapter struct {
	slug       string
	panics     bool
	dropOutput bool
}

func (m *misbehavingAdapter) Key() string { return m.slug + ".catalog" }

func (m *misbehavingAdapter) Vendor() models.VendorRef {
	return models.VendorRef{Slug: m.slug, Name: m.slug}
}

func (m *misbehavingAdapter) ParseInput(raw []byte) (*registry.RawProduct, *registry.InputError) {
	return &registry.RawProduct{CatalogID: "X-1", Category: "Frames", Raw: raw}, nil
}

func (m *misbehavingAdapter) Normalize(parsed *registry.RawProduct) (*models.NormalizedProduct, error) {
	if m.panics {
		panic("vendor feed went sideways")
	}
	p := &models.NormalizedProduct{
		Vendor:    m.Vendor(),
		CatalogID: parsed.CatalogID,
		Name:      "X-1",
		Category:  models.CategoryFrames,
		Variants:  []models.Variant{{Type: models.VariantFrame, ID: "X-1:variant"}},
	}
	if m.dropOutput {
		p.Variants = nil
	}
	return p, nil
}

func newRegistry(t *testing.T, extra ...registry.Adapter) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register(adapters.NewGeneric("acme", "ACME Optical")))
	for _, a := range extra {
		require.NoError(t, reg.Register(a))
	}
	return reg
}

func TestVendorItemHappyPath(t *testing.T) {
	reg := newRegistry(t)

	p, err := VendorItem(reg, "acme", json.RawMessage(`{"catalogId":"A-1","category":"Frames"}`))
	require.NoError(t, err)
	assert.Equal(t, "A-1", p.CatalogID)
	assert.Equal(t, "acme", p.Vendor.Slug)
	require.Len(t, p.Variants, 1)
}

func TestVendorItemNormalizesSlug(t *testing.T) {
	reg := newRegistry(t)

	_, err := VendorItem(reg, "  ACME ", json.RawMessage(`{"catalogId":"A-1","category":"Frames"}`))
	require.NoError(t, err)
}

func TestVendorItemAdapterNotFound(t *testing.T) {
	reg := newRegistry(t)

	_, err := VendorItem(reg, "nobody", json.RawMessage(`{}`))
	var notFound *AdapterNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nobody", notFound.Slug)
}

func TestVendorItemInputValidation(t *testing.T) {
	reg := newRegistry(t)

	_, err := VendorItem(reg, "acme", json.RawMessage(`{"category":"Frames"}`))
	var inputErr *InputValidationError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, []string{"Required"}, inputErr.FieldErrors["catalogId"])
}

func TestVendorItemExecutionError(t *testing.T) {
	reg := newRegistry(t, &misbehavingAdapter{slug: "panicky", panics: true})

	_, err := VendorItem(reg, "panicky", json.RawMessage(`{"catalogId":"X-1","category":"Frames"}`))
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Cause.Error(), "adapter panic")
}

func TestVendorItemOutputValidation(t *testing.T) {
	reg := newRegistry(t, &misbehavingAdapter{slug: "hollow", dropOutput: true})

	_, err := VendorItem(reg, "hollow", json.RawMessage(`{"catalogId":"X-1","category":"Frames"}`))
	var outErr *OutputValidationError
	require.ErrorAs(t, err, &outErr)
	assert.Contains(t, outErr.Cause.Error(), "variants")
}

func TestBatchIndexesFieldErrors(t *testing.T) {
	reg := newRegistry(t)

	payloads := []json.RawMessage{
		json.RawMessage(`{"category":"Frames"}`),
		json.RawMessage(`{"catalogId":"A-2","category":"Frames"}`),
		json.RawMessage(`{"catalogId":"A-3"}`),
	}

	_, err := Batch(reg, "acme", payloads)
	var inputErr *InputValidationError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, []string{"Required"}, inputErr.FieldErrors["0.catalogId"])
	assert.Equal(t, []string{"Required"}, inputErr.FieldErrors["2.category"])
	assert.NotContains(t, inputErr.FieldErrors, "1.catalogId")
}

func TestBatchAllValid(t *testing.T) {
	reg := newRegistry(t)

	payloads := []json.RawMessage{
		json.RawMessage(`{"catalogId":"A-1","category":"Frames"}`),
		json.RawMessage(`{"catalogId":"A-2","category":"Lenses"}`),
	}

	products, err := Batch(reg, "acme", payloads)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, models.CategoryLenses, products[1].Category)
}

func TestBatchStopsOnExecutionError(t *testing.T) {
	reg := newRegistry(t, &misbehavingAdapter{slug: "panicky", panics: true})

	payloads := []json.RawMessage{
		json.RawMessage(`{"catalogId":"X-1","category":"Frames"}`),
	}

	_, err := Batch(reg, "panicky", payloads)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestValidateProduct(t *testing.T) {
	valid := &models.NormalizedProduct{
		Vendor:    models.VendorRef{Slug: "acme", Name: "ACME"},
		CatalogID: "A-1",
		Name:      "Round",
		Category:  models.CategoryFrames,
		Variants:  []models.Variant{{Type: models.VariantFrame, ID: "A-1:variant"}},
	}
	assert.NoError(t, ValidateProduct(valid))

	missingID := *valid
	missingID.CatalogID = "  "
	assert.Error(t, ValidateProduct(&missingID))

	noVariants := *valid
	noVariants.Variants = nil
	assert.Error(t, ValidateProduct(&noVariants))

	assert.Error(t, ValidateProduct(nil))
}
