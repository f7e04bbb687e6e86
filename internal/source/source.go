package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Reader loads raw catalog blobs named by a sourcePath: either a local
// file or an http(s) URL yielding a JSON array of per-vendor payloads.
type Reader struct {
	client  *http.Client
	maxSize int64
}

// NewReader creates a catalog source reader.
func NewReader(timeout time.Duration) *Reader {
	return &Reader{
		client:  &http.Client{Timeout: timeout},
		maxSize: 64 << 20,
	}
}

// Load resolves a sourcePath and decodes it into individual raw payloads.
// A blob holding a single object instead of an array is auto-wrapped.
func (r *Reader) Load(ctx context.Context, sourcePath string) ([]json.RawMessage, error) {
	data, err := r.fetch(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	return WrapItems(data)
}

func (r *Reader) fetch(ctx context.Context, sourcePath string) ([]byte, error) {
	if strings.HasPrefix(sourcePath, "http://") || strings.HasPrefix(sourcePath, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourcePath, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid source url: %w", err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch source: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("source fetch returned status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxSize))
		if err != nil {
			return nil, fmt.Errorf("failed to read source body: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	return data, nil
}

// WrapItems decodes a catalog blob into raw per-product payloads,
// auto-wrapping a single object.
func WrapItems(data []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("empty catalog payload")
	}

	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, fmt.Errorf("invalid catalog array: %w", err)
		}
		return items, nil
	}

	var single json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
		return nil, fmt.Errorf("invalid catalog payload: %w", err)
	}
	return []json.RawMessage{single}, nil
}
