package videos

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOEmbedProviderLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != "https://example.com/v" {
			t.Errorf("unexpected url param %q", got)
		}
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("unexpected format param %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title":"A Video","thumbnail_url":"https://img.example.com/t.jpg"}`))
	}))
	defer srv.Close()

	provider := NewOEmbedProvider(srv.URL, time.Second)

	meta, err := provider.Lookup(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if meta.Title != "A Video" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	if meta.Thumbnail != "https://img.example.com/t.jpg" {
		t.Fatalf("unexpected thumbnail %q", meta.Thumbnail)
	}
}

func TestOEmbedProviderLookupErrors(t *testing.T) {
	var provider *OEmbedProvider
	if _, err := provider.Lookup(context.Background(), "https://example.com/v"); err != ErrProviderUnavailable {
		t.Fatalf("expected provider unavailable got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	configured := NewOEmbedProvider(srv.URL, time.Second)
	if _, err := configured.Lookup(context.Background(), "https://example.com/v"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
