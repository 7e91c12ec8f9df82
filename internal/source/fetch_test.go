package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/city-events/internal/config"
)

func testHTTPConfig() config.HTTPConfig {
	return config.HTTPConfig{
		UserAgent: "city-events-test/1.0",
		Timeout:   config.Duration(5 * time.Second),
	}
}

func TestHTTPFetcher(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    bool
	}{
		{name: "ok", statusCode: http.StatusOK, body: "<html>hi</html>"},
		{name: "not found", statusCode: http.StatusNotFound, wantErr: true},
		{name: "server error", statusCode: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if ua := r.Header.Get("User-Agent"); ua != "city-events-test/1.0" {
					t.Errorf("User-Agent = %q", ua)
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			f := NewHTTPFetcher(testHTTPConfig(), nil)
			body, err := f.Fetch(context.Background(), "test", server.URL)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Fetch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(body) != tt.body {
				t.Errorf("Fetch() body = %q, want %q", body, tt.body)
			}
		})
	}
}

func TestHTTPFetcherArchivesPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>archived</html>"))
	}))
	defer server.Close()

	dir := t.TempDir()
	f := NewHTTPFetcher(testHTTPConfig(), FileArchive{Dir: dir})
	f.now = func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) }

	if _, err := f.Fetch(context.Background(), "palace", server.URL); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	key := ArchiveKey("palace", server.URL, f.now())
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("archived page missing: %v", err)
	}
	if string(data) != "<html>archived</html>" {
		t.Errorf("archived body = %q", data)
	}
}

func TestArchiveKey(t *testing.T) {
	at := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	key := ArchiveKey("palace", "https://palace.example.com/events", at)

	if !strings.HasPrefix(key, "palace/20250115T100000Z-") || !strings.HasSuffix(key, ".html") {
		t.Errorf("ArchiveKey() = %q", key)
	}
	if key != ArchiveKey("palace", "https://palace.example.com/events", at) {
		t.Error("ArchiveKey() should be deterministic")
	}
	if key == ArchiveKey("palace", "https://palace.example.com/other", at) {
		t.Error("different URLs should give different keys")
	}
}

func TestHTMLSource(t *testing.T) {
	data, err := os.ReadFile("testdata/venue_listing.html")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write(data)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(testHTTPConfig(), nil)

	src := NewHTMLSource("palace", "Calgary", server.URL, fixtureSelectors(), fetcher)
	got, err := src.FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("FetchCandidates() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("html: got %d candidates, want 3", len(got))
	}

	// Selectors that match nothing fall back to JSON-LD
	none := config.Selectors{Container: ".nothing-here", Title: []string{"h1"}}
	src = NewHTMLSource("palace", "Calgary", server.URL, none, fetcher)
	got, err = src.FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("FetchCandidates() error = %v", err)
	}
	if len(got) != 1 || got[0].Title != "Jazz Night" {
		t.Errorf("fallback candidates = %+v", got)
	}

	ld := NewJSONLDSource("palace-ld", "Calgary", server.URL, fetcher)
	got, err = ld.FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("FetchCandidates() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("jsonld: got %d candidates, want 1", len(got))
	}
}

func TestOpenArchive(t *testing.T) {
	ctx := context.Background()

	a, err := OpenArchive(ctx, config.ArchiveConfig{Driver: "none"}, t.TempDir())
	if err != nil || a != nil {
		t.Errorf("none: archive = %v, err = %v", a, err)
	}

	dir := t.TempDir()
	a, err = OpenArchive(ctx, config.ArchiveConfig{Driver: "file"}, dir)
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if fa, ok := a.(FileArchive); !ok || fa.Dir != filepath.Join(dir, "pages") {
		t.Errorf("file: archive = %#v", a)
	}

	if _, err := OpenArchive(ctx, config.ArchiveConfig{Driver: "s3"}, dir); err == nil {
		t.Error("s3 without a bucket should fail")
	}
	if _, err := OpenArchive(ctx, config.ArchiveConfig{Driver: "tape"}, dir); err == nil {
		t.Error("unknown driver should fail")
	}
}
