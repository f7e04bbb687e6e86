package adapters

import (
	"strings"

	"catalog-sync/internal/models"
	"catalog-sync/internal/registry"
)

// NewGarrettLeight builds the Garrett Leight catalog adapter. Their feed
// interleaves campaign imagery and color swatches with product shots.
func NewGarrettLeight() registry.Adapter {
	return &baseAdapter{
		key:      "garrett-leight.catalog",
		vendor:   models.VendorRef{Slug: "garrett-leight", Name: "Garrett Leight"},
		supplier: "Garrett Leight California Optical",
		photoFilter: func(url string) bool {
			lowered := strings.ToLower(url)
			for _, marker := range []string{"swatch", "campaign", "hero-banner", "placeholder"} {
				if strings.Contains(lowered, marker) {
					return false
				}
			}
			return true
		},
	}
}
