package registry

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"catalog-sync/internal/models"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ErrDuplicateVendor is returned when a slug is already registered.
type ErrDuplicateVendor struct {
	Slug string
}

func (e *ErrDuplicateVendor) Error() string {
	return fmt.Sprintf("vendor already registered: %s", e.Slug)
}

// ErrInvalidSlug is returned when a slug fails the kebab-case rule.
type ErrInvalidSlug struct {
	Slug string
}

func (e *ErrInvalidSlug) Error() string {
	return fmt.Sprintf("invalid vendor slug: %q", e.Slug)
}

// Adapter is the capability every vendor integration implements.
type Adapter interface {
	// Key returns the unique adapter identifier, e.g. "moscot.catalog".
	Key() string

	// Vendor returns the supplier this adapter normalizes for.
	Vendor() models.VendorRef

	// ParseInput validates a raw payload, tolerating unknown fields.
	// A non-nil *InputError means the payload is rejected.
	ParseInput(raw []byte) (*RawProduct, *InputError)

	// Normalize transforms a parsed payload into the canonical product.
	Normalize(parsed *RawProduct) (*models.NormalizedProduct, error)
}

// InputError carries per-field schema violations.
type InputError struct {
	FieldErrors map[string][]string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input validation failed: %d field(s)", len(e.FieldErrors))
}

// RawProduct is the tolerant parse result: required fields extracted,
// everything else preserved verbatim in Raw.
type RawProduct struct {
	CatalogID string
	Category  string
	Raw       []byte
	Fields    map[string]interface{}
}

// Registry maps vendor slugs to adapters, preserving insertion order.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
}

// New creates an empty vendor registry.
func New() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter. Fails when the slug collides or is malformed.
func (r *Registry) Register(adapter Adapter) error {
	slug := adapter.Vendor().Slug
	if !ValidSlug(slug) {
		return &ErrInvalidSlug{Slug: slug}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[slug]; exists {
		return &ErrDuplicateVendor{Slug: slug}
	}
	r.adapters[slug] = adapter
	r.order = append(r.order, slug)
	return nil
}

// Get returns the adapter for a slug, or nil when unknown. Unknown is not
// an error here; callers decide policy.
func (r *Registry) Get(slug string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[slug]
}

// List returns all adapters in registration order.
func (r *Registry) List() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Adapter, 0, len(r.order))
	for _, slug := range r.order {
		out = append(out, r.adapters[slug])
	}
	return out
}

// VendorLabel returns the known vendor name, or echoes the slug.
func (r *Registry) VendorLabel(slug string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.adapters[slug]; ok {
		return a.Vendor().Name
	}
	return slug
}

// NormalizeSlug trims and lowercases; empty input yields "".
func NormalizeSlug(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// ValidSlug reports whether a slug matches ^[a-z0-9-]+$ with length 1-48.
func ValidSlug(slug string) bool {
	return len(slug) >= 1 && len(slug) <= 48 && slugPattern.MatchString(slug)
}
