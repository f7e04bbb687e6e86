package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"catalog-sync/internal/adapters"
	"catalog-sync/internal/normalize"
	"catalog-sync/internal/registry"
	"catalog-sync/internal/service"
	"catalog-sync/internal/source"
	"catalog-sync/internal/store"
	"catalog-sync/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	syncService    *service.SyncService
	observability  *service.ObservabilityService
	registry       *registry.Registry
	defaultVendor  string
	historyDefault int
}

// NewHandler creates a new HTTP handler
func NewHandler(
	syncService *service.SyncService,
	observability *service.ObservabilityService,
	reg *registry.Registry,
	defaultVendor string,
	historyDefault int,
) *Handler {
	return &Handler{
		syncService:    syncService,
		observability:  observability,
		registry:       reg,
		defaultVendor:  defaultVendor,
		historyDefault: historyDefault,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	vs := router.Group("/vendor-sync")
	{
		vs.POST("/:slug/preview", h.preview)
		vs.POST("/:slug/apply", h.apply)
		vs.GET("/runs", h.listRuns)
		vs.GET("/observability", h.aggregate)
		vs.GET("/overview", h.overview)
		vs.GET("/history", h.history)
		vs.GET("/registry/:slug", h.registryEntry)
		vs.GET("/vendors", h.listVendors)
		vs.POST("/vendors", h.onboardVendor)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// dispatchBody is the preview/apply request shape. Items may be a single
// object or an array; at least one of items and sourcePath must be set.
type dispatchBody struct {
	SourcePath string          `json:"sourcePath"`
	Items      json.RawMessage `json:"items"`
	Actor      string          `json:"actor"`
}

func (h *Handler) preview(c *gin.Context) {
	h.dispatch(c, true)
}

func (h *Handler) apply(c *gin.Context) {
	h.dispatch(c, false)
}

func (h *Handler) dispatch(c *gin.Context, dryRun bool) {
	slug := registry.NormalizeSlug(c.Param("slug"))
	if slug == "" {
		respondError(c, http.StatusBadRequest, "missing_vendor", "vendor slug is required", nil)
		return
	}

	var body dispatchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	items, hasItems, err := wrapBodyItems(body.Items)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	if !hasItems && body.SourcePath == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "one of items or sourcePath is required", nil)
		return
	}

	result, err := h.syncService.Dispatch(c.Request.Context(), service.DispatchRequest{
		Vendor:     slug,
		Items:      items,
		SourcePath: body.SourcePath,
		DryRun:     dryRun,
		Actor:      body.Actor,
	})
	if err != nil {
		respondDispatchError(c, err)
		return
	}

	mode := "apply"
	if dryRun {
		mode = "preview"
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"vendor":          result.Vendor,
		"mode":            mode,
		"dryRun":          dryRun,
		"meta":            gin.H{"runId": result.RunID, "sourcePath": body.SourcePath},
		"normalizedCount": result.NormalizedCount,
		"sameAsLastApply": result.SameAsLastApply,
		"diff":            result.Diff,
		"run":             result.Summary,
	})
}

// wrapBodyItems decodes the items field, auto-wrapping a single object.
// A missing field and an explicit JSON null both count as absent, so a
// `{"items": null}` body cannot slip past the items-or-sourcePath guard
// and dispatch an inventory-clearing empty batch.
func wrapBodyItems(raw json.RawMessage) ([]json.RawMessage, bool, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, false, nil
	}
	items, err := source.WrapItems(raw)
	if err != nil {
		return nil, false, err
	}
	return items, true, nil
}

func (h *Handler) listRuns(c *gin.Context) {
	vendor, ok := h.resolveVendor(c)
	if !ok {
		return
	}

	resp, err := h.observability.ListRuns(c.Request.Context(), service.ListRunsRequest{
		Vendor:   vendor,
		Limit:    queryLimit(c),
		Cursor:   c.Query("cursor"),
		Statuses: parseStatuses(c),
	})
	if err != nil {
		if strings.Contains(err.Error(), "unknown status filter") {
			respondError(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
			return
		}
		respondError(c, http.StatusInternalServerError, "failed_to_load_runs", err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) aggregate(c *gin.Context) {
	vendorID := c.Query("vendorId")
	if vendorID == "" {
		respondError(c, http.StatusBadRequest, "missing_vendor", "vendorId is required", nil)
		return
	}

	start, err1 := time.Parse(time.RFC3339, c.Query("start"))
	end, err2 := time.Parse(time.RFC3339, c.Query("end"))
	if err1 != nil || err2 != nil || end.Before(start) {
		respondError(c, http.StatusBadRequest, "invalid_request", "start and end must be valid RFC3339 timestamps with start <= end", nil)
		return
	}

	resp, err := h.observability.Aggregate(c.Request.Context(), service.AggregateRequest{
		VendorID: vendorID,
		Start:    start,
		End:      end,
		Limit:    queryLimit(c),
		Cursor:   c.Query("cursor"),
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed_to_load_observability", err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) overview(c *gin.Context) {
	resp, err := h.observability.Overview(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed_to_load_overview", err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) history(c *gin.Context) {
	n, ok := parseLimit(c.Query("limit"))
	if !ok {
		n = h.historyDefault
		if n == 0 {
			n = 5
		}
	}

	resp, err := h.observability.History(c.Request.Context(), n)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed_to_load_history", err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vendors": resp})
}

func (h *Handler) registryEntry(c *gin.Context) {
	slug := registry.NormalizeSlug(c.Param("slug"))
	adapter := h.registry.Get(slug)
	if adapter == nil {
		respondError(c, http.StatusNotFound, "not_found", "no adapter registered for "+slug, nil)
		return
	}

	state, err := h.observability.State(c.Request.Context(), slug)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed_to_load_state", err.Error(), nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"key":    adapter.Key(),
		"vendor": adapter.Vendor(),
		"state":  state,
	})
}

func (h *Handler) listVendors(c *gin.Context) {
	descriptors := make([]gin.H, 0)
	for _, adapter := range h.registry.List() {
		descriptors = append(descriptors, gin.H{
			"key":    adapter.Key(),
			"vendor": adapter.Vendor(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "vendors": descriptors})
}

type onboardBody struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (h *Handler) onboardVendor(c *gin.Context) {
	var body onboardBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	slug := registry.NormalizeSlug(body.Slug)
	if !registry.ValidSlug(slug) {
		respondError(c, http.StatusBadRequest, "invalid_request", "slug must match ^[a-z0-9-]+$ with length 1-48", nil)
		return
	}

	adapter := adapters.NewGeneric(slug, body.Name)
	if err := h.registry.Register(adapter); err != nil {
		var dup *registry.ErrDuplicateVendor
		if errors.As(err, &dup) {
			respondError(c, http.StatusConflict, "slug_conflict", err.Error(), nil)
			return
		}
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"key":    adapter.Key(),
		"vendor": adapter.Vendor(),
	})
}

// resolveVendor applies the vendor-key resolution order: vendor query,
// vendorId query, X-Vendor header. A key present but empty is an error;
// no key at all falls back to the configured default.
func (h *Handler) resolveVendor(c *gin.Context) (string, bool) {
	value, present := "", false
	if v, ok := c.GetQuery("vendor"); ok {
		value, present = v, true
	} else if v, ok := c.GetQuery("vendorId"); ok {
		value, present = v, true
	} else if v := c.GetHeader("X-Vendor"); v != "" {
		value, present = v, true
	}

	if !present {
		return h.defaultVendor, true
	}

	vendor := registry.NormalizeSlug(value)
	if vendor == "" {
		respondError(c, http.StatusBadRequest, "missing_vendor", "vendor key is present but empty", nil)
		return "", false
	}
	return vendor, true
}

// parseLimit parses the limit query, reporting whether a usable value was
// present. Absent and non-numeric both count as not present.
func parseLimit(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// queryLimit resolves the page limit: absent or malformed defers to the
// service default, an explicit value is floored at 1 so limit=0 is a
// minimal page rather than an accidental default.
func queryLimit(c *gin.Context) int {
	n, ok := parseLimit(c.Query("limit"))
	if !ok {
		return 0
	}
	if n < 1 {
		return 1
	}
	return n
}

// parseStatuses reads repeated and comma-joined status filters.
func parseStatuses(c *gin.Context) []string {
	var out []string
	for _, v := range c.QueryArray("status") {
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// respondDispatchError maps the dispatch error taxonomy onto HTTP codes.
func respondDispatchError(c *gin.Context, err error) {
	var notFound *normalize.AdapterNotFoundError
	var inputErr *normalize.InputValidationError
	var execErr *normalize.ExecutionError
	var outputErr *normalize.OutputValidationError
	var applyErr *store.ApplyError

	switch {
	case errors.As(err, &notFound):
		respondError(c, http.StatusBadRequest, "invalid_request", notFound.Error(), nil)
	case errors.As(err, &inputErr):
		respondError(c, http.StatusBadRequest, "invalid_request", "payload rejected by adapter schema", inputErr.FieldErrors)
	case errors.As(err, &execErr):
		respondError(c, http.StatusInternalServerError, "execution_error", execErr.Error(), nil)
	case errors.As(err, &outputErr):
		respondError(c, http.StatusInternalServerError, "execution_error", outputErr.Error(), nil)
	case errors.Is(err, store.ErrConcurrencyConflict):
		respondError(c, http.StatusConflict, "retry_later", err.Error(), nil)
	case errors.As(err, &applyErr):
		respondError(c, http.StatusInternalServerError, "failed_to_apply", applyErr.Error(), nil)
	default:
		respondError(c, http.StatusInternalServerError, "server_error", err.Error(), nil)
	}
}

// respondError writes the structured error envelope.
func respondError(c *gin.Context, status int, code, detail string, fieldErrors map[string][]string) {
	body := gin.H{"ok": false, "error": code}
	if detail != "" {
		body["detail"] = detail
	}
	if len(fieldErrors) > 0 {
		body["fieldErrors"] = fieldErrors
	}
	c.JSON(status, body)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
