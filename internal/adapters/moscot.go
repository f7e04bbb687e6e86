package adapters

import (
	"strings"

	"catalog-sync/internal/models"
	"catalog-sync/internal/registry"
)

// NewMoscot builds the MOSCOT catalog adapter. MOSCOT feeds mix product
// shots with lifestyle/editorial imagery; those are filtered out by URL.
func NewMoscot() registry.Adapter {
	return &baseAdapter{
		key:      "moscot.catalog",
		vendor:   models.VendorRef{Slug: "moscot", Name: "MOSCOT"},
		supplier: "MOSCOT NYC",
		photoFilter: func(url string) bool {
			lowered := strings.ToLower(url)
			for _, marker := range []string{"/lifestyle/", "/editorial/", "lookbook", "banner", "logo"} {
				if strings.Contains(lowered, marker) {
					return false
				}
			}
			return true
		},
	}
}
