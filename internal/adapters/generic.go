package adapters

import (
	"strings"

	"catalog-sync/internal/models"
	"catalog-sync/internal/registry"
)

// NewGeneric builds an adapter for a vendor without a bespoke integration,
// used by onboarding. It applies only the obvious non-product URL filter.
func NewGeneric(slug, name string) registry.Adapter {
	if name == "" {
		name = slug
	}
	return &baseAdapter{
		key:    slug + ".catalog",
		vendor: models.VendorRef{Slug: slug, Name: name},
		photoFilter: func(url string) bool {
			lowered := strings.ToLower(url)
			for _, marker := range []string{"logo", "banner", "placeholder"} {
				if strings.Contains(lowered, marker) {
					return false
				}
			}
			return true
		},
	}
}
