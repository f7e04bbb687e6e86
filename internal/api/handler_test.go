package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"catalog-sync/internal/normalize"
	"catalog-sync/internal/registry"
	"catalog-sync/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(method, target string, headers map[string]string) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		c.Request.Header.Set(k, v)
	}
	return c, rec
}

func TestParseLimit(t *testing.T) {
	n, ok := parseLimit("")
	assert.False(t, ok)
	assert.Equal(t, 0, n)

	n, ok = parseLimit("banana")
	assert.False(t, ok)
	assert.Equal(t, 0, n)

	n, ok = parseLimit("25")
	assert.True(t, ok)
	assert.Equal(t, 25, n)

	n, ok = parseLimit("-1")
	assert.True(t, ok)
	assert.Equal(t, -1, n)
}

func TestQueryLimit(t *testing.T) {
	cases := []struct {
		query string
		want  int
	}{
		{"", 0},        // absent defers to the service default
		{"limit=abc", 0}, // malformed defers too
		{"limit=25", 25},
		{"limit=0", 1},  // explicit zero is a minimal page, not the default
		{"limit=-3", 1},
	}

	for _, tc := range cases {
		target := "/vendor-sync/runs"
		if tc.query != "" {
			target += "?" + tc.query
		}
		c, _ := testContext(http.MethodGet, target, nil)
		assert.Equal(t, tc.want, queryLimit(c), tc.query)
	}
}

func TestParseStatuses(t *testing.T) {
	c, _ := testContext(http.MethodGet, "/vendor-sync/runs?status=success,error&status=running&status=", nil)

	assert.Equal(t, []string{"success", "error", "running"}, parseStatuses(c))

	c, _ = testContext(http.MethodGet, "/vendor-sync/runs", nil)
	assert.Empty(t, parseStatuses(c))
}

func TestWrapBodyItems(t *testing.T) {
	items, present, err := wrapBodyItems(nil)
	require.NoError(t, err)
	assert.False(t, present)
	assert.Nil(t, items)

	items, present, err = wrapBodyItems(json.RawMessage("null"))
	require.NoError(t, err)
	assert.False(t, present)
	assert.Nil(t, items)

	items, present, err = wrapBodyItems(json.RawMessage(`{"catalogId":"A-1"}`))
	require.NoError(t, err)
	assert.True(t, present)
	require.Len(t, items, 1)

	items, present, err = wrapBodyItems(json.RawMessage(`[{"catalogId":"A-1"},{"catalogId":"B-2"}]`))
	require.NoError(t, err)
	assert.True(t, present)
	require.Len(t, items, 2)

	// An explicit empty array is a deliberate empty batch, not absence.
	items, present, err = wrapBodyItems(json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.True(t, present)
	assert.Empty(t, items)

	_, _, err = wrapBodyItems(json.RawMessage(`[broken`))
	assert.Error(t, err)
}

func TestResolveVendorPrecedence(t *testing.T) {
	h := &Handler{defaultVendor: "moscot"}

	c, _ := testContext(http.MethodGet, "/vendor-sync/runs?vendor=Garrett-Leight&vendorId=other", map[string]string{"X-Vendor": "third"})
	vendor, ok := h.resolveVendor(c)
	require.True(t, ok)
	assert.Equal(t, "garrett-leight", vendor)

	c, _ = testContext(http.MethodGet, "/vendor-sync/runs?vendorId=acme", nil)
	vendor, ok = h.resolveVendor(c)
	require.True(t, ok)
	assert.Equal(t, "acme", vendor)

	c, _ = testContext(http.MethodGet, "/vendor-sync/runs", map[string]string{"X-Vendor": "acme"})
	vendor, ok = h.resolveVendor(c)
	require.True(t, ok)
	assert.Equal(t, "acme", vendor)
}

func TestResolveVendorDefaultWhenAbsent(t *testing.T) {
	h := &Handler{defaultVendor: "moscot"}

	c, _ := testContext(http.MethodGet, "/vendor-sync/runs", nil)
	vendor, ok := h.resolveVendor(c)
	require.True(t, ok)
	assert.Equal(t, "moscot", vendor)
}

func TestResolveVendorPresentButEmpty(t *testing.T) {
	h := &Handler{defaultVendor: "moscot"}

	c, rec := testContext(http.MethodGet, "/vendor-sync/runs?vendor=", nil)
	_, ok := h.resolveVendor(c)
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "missing_vendor", body["error"])
}

func TestRespondErrorEnvelope(t *testing.T) {
	c, rec := testContext(http.MethodGet, "/", nil)
	respondError(c, http.StatusConflict, "slug_conflict", "vendor already registered: acme", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "slug_conflict", body["error"])
	assert.Equal(t, "vendor already registered: acme", body["detail"])
	assert.NotContains(t, body, "fieldErrors")
}

func TestRespondDispatchErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "adapter not found",
			err:    &normalize.AdapterNotFoundError{Slug: "ghost"},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name: "input validation",
			err: &normalize.InputValidationError{
				Slug:        "acme",
				FieldErrors: map[string][]string{"0.catalogId": {"Required"}},
			},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "execution",
			err:    &normalize.ExecutionError{Slug: "acme", Cause: errors.New("adapter panic: boom")},
			status: http.StatusInternalServerError,
			code:   "execution_error",
		},
		{
			name:   "output validation",
			err:    &normalize.OutputValidationError{Slug: "acme", Cause: errors.New("variants must be non-empty")},
			status: http.StatusInternalServerError,
			code:   "execution_error",
		},
		{
			name:   "concurrency conflict",
			err:    store.ErrConcurrencyConflict,
			status: http.StatusConflict,
			code:   "retry_later",
		},
		{
			name:   "apply failure",
			err:    &store.ApplyError{Vendor: "acme", Cause: errors.New("pq: connection reset")},
			status: http.StatusInternalServerError,
			code:   "failed_to_apply",
		},
		{
			name:   "unclassified",
			err:    errors.New("something else"),
			status: http.StatusInternalServerError,
			code:   "server_error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := testContext(http.MethodPost, "/", nil)
			respondDispatchError(c, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["error"])
		})
	}
}

func TestDispatchErrorCarriesFieldErrors(t *testing.T) {
	c, rec := testContext(http.MethodPost, "/", nil)
	respondDispatchError(c, &normalize.InputValidationError{
		Slug:        "acme",
		FieldErrors: map[string][]string{"0.catalogId": {"Required"}},
	})

	var body struct {
		FieldErrors map[string][]string `json:"fieldErrors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"Required"}, body.FieldErrors["0.catalogId"])
}

func TestDispatchRejectsAbsentAndNullItems(t *testing.T) {
	h := &Handler{defaultVendor: "moscot"}
	router := gin.New()
	router.POST("/vendor-sync/:slug/apply", h.apply)

	// Neither items nor sourcePath, and items explicitly null: both must
	// be rejected before any batch is dispatched.
	for _, payload := range []string{`{}`, `{"items": null}`} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/vendor-sync/acme/apply", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "invalid_request", body["error"], payload)
	}
}

func TestRegistryEntryUnknownSlug(t *testing.T) {
	h := &Handler{registry: registry.New()}
	router := gin.New()
	router.GET("/vendor-sync/registry/:slug", h.registryEntry)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vendor-sync/registry/ghost", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body["error"])
}

func TestRegistryEntryIncludesState(t *testing.T) {
	t.Skip("Integration test - requires database")

	// GET /vendor-sync/registry/:slug returns the adapter descriptor plus
	// the persisted sync state ("state": null until the first apply).
}

func TestHealthAndVendorRoutes(t *testing.T) {
	h := &Handler{defaultVendor: "moscot"}

	router := gin.New()
	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
