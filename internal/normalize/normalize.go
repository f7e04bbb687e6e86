package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"catalog-sync/internal/models"
	"catalog-sync/internal/registry"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// VendorItem normalizes one raw payload through the vendor's adapter:
// resolve adapter, validate input, normalize, validate output. Stateless
// and reentrant.
func VendorItem(reg *registry.Registry, slug string, payload json.RawMessage) (*models.NormalizedProduct, error) {
	adapter := reg.Get(registry.NormalizeSlug(slug))
	if adapter == nil {
		return nil, &AdapterNotFoundError{Slug: slug}
	}

	parsed, inputErr := adapter.ParseInput(payload)
	if inputErr != nil {
		return nil, &InputValidationError{Slug: slug, FieldErrors: inputErr.FieldErrors}
	}

	product, err := runAdapter(adapter, parsed)
	if err != nil {
		return nil, &ExecutionError{Slug: slug, Cause: err}
	}

	if err := ValidateProduct(product); err != nil {
		return nil, &OutputValidationError{Slug: slug, Cause: err}
	}
	return product, nil
}

// Batch fans VendorItem out over a payload array, collecting indexed field
// errors. A single schema-invalid entry rejects the whole batch so that no
// run row is created for it.
func Batch(reg *registry.Registry, slug string, payloads []json.RawMessage) ([]models.NormalizedProduct, error) {
	fieldErrors := make(map[string][]string)
	products := make([]models.NormalizedProduct, 0, len(payloads))

	for i, payload := range payloads {
		product, err := VendorItem(reg, slug, payload)
		if err != nil {
			var inputErr *InputValidationError
			if errors.As(err, &inputErr) {
				for path, msgs := range inputErr.FieldErrors {
					key := strconv.Itoa(i)
					if path != "" {
						key += "." + path
					}
					fieldErrors[key] = msgs
				}
				continue
			}
			return nil, err
		}
		products = append(products, *product)
	}

	if len(fieldErrors) > 0 {
		return nil, &InputValidationError{Slug: slug, FieldErrors: fieldErrors}
	}
	return products, nil
}

// ValidateProduct checks a normalized product against the shared output
// schema: required identity fields, canonical category, variants >= 1.
func ValidateProduct(p *models.NormalizedProduct) error {
	if p == nil {
		return fmt.Errorf("nil product")
	}
	if strings.TrimSpace(p.CatalogID) == "" {
		return fmt.Errorf("catalogId must be non-empty")
	}
	if p.Vendor.Slug == "" {
		return fmt.Errorf("vendor slug must be non-empty")
	}
	if len(p.Variants) == 0 {
		return fmt.Errorf("variants must be non-empty")
	}
	return validate.Struct(p)
}

// runAdapter converts adapter panics into errors so a misbehaving vendor
// integration cannot take the dispatch down.
func runAdapter(adapter registry.Adapter, parsed *registry.RawProduct) (product *models.NormalizedProduct, err error) {
	defer func() {
		if r := recover(); r != nil {
			product = nil
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()
	return adapter.Normalize(parsed)
}
