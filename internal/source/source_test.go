package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapItemsArray(t *testing.T) {
	items, err := WrapItems([]byte(`[{"catalogId":"A-1"},{"catalogId":"B-2"}]`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.JSONEq(t, `{"catalogId":"A-1"}`, string(items[0]))
}

func TestWrapItemsSingleObject(t *testing.T) {
	items, err := WrapItems([]byte(`  {"catalogId":"A-1"}  `))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"catalogId":"A-1"}`, string(items[0]))
}

func TestWrapItemsEmpty(t *testing.T) {
	_, err := WrapItems([]byte("   "))
	assert.Error(t, err)
}

func TestWrapItemsMalformed(t *testing.T) {
	_, err := WrapItems([]byte(`[{"catalogId":`))
	assert.Error(t, err)

	_, err = WrapItems([]byte(`{"catalogId":`))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"catalogId":"A-1"}]`), 0o644))

	r := NewReader(5 * time.Second)
	items, err := r.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestLoadFromMissingFile(t *testing.T) {
	r := NewReader(5 * time.Second)
	_, err := r.Load(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"catalogId":"A-1"},{"catalogId":"B-2"}]`))
	}))
	defer srv.Close()

	r := NewReader(5 * time.Second)
	items, err := r.Load(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestLoadFromHTTPNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewReader(5 * time.Second)
	_, err := r.Load(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
