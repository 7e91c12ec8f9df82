package dedupe

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func jsonHandler(status int, payload any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	})
}

// tenWithTwoDuplicates returns ten listings where items 4 and 9 repeat earlier ones
func tenWithTwoDuplicates() []map[string]any {
	var events []map[string]any
	for i := 0; i < 10; i++ {
		n := i
		if i == 4 || i == 9 {
			n = i - 3
		}
		events = append(events, map[string]any{
			"title": fmt.Sprintf("Show %d", n),
			"venue": map[string]any{"name": "Club A"},
			"date":  "2025-12-01",
		})
	}
	return events
}

func serve(t *testing.T, h http.Handler) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v: %s", err, rec.Body.String())
	}
	return rec, body
}

func TestMiddlewareCountConsistency(t *testing.T) {
	payload := map[string]any{"events": tenWithTwoDuplicates(), "count": 10}
	h := Middleware(Options{})(jsonHandler(http.StatusOK, payload))

	rec, body := serve(t, h)

	events := body["events"].([]any)
	if len(events) != 8 {
		t.Errorf("len(events) = %d, want 8", len(events))
	}
	if body["count"] != float64(8) {
		t.Errorf("count = %v, want 8", body["count"])
	}
	if got := rec.Header().Get("Content-Length"); got != strconv.Itoa(rec.Body.Len()) {
		t.Errorf("Content-Length = %s, want %d", got, rec.Body.Len())
	}
}

func TestMiddlewarePagination(t *testing.T) {
	payload := map[string]any{
		"events":     tenWithTwoDuplicates(),
		"count":      10,
		"pagination": map[string]any{"total": 21, "page": 1, "limit": 10, "pages": 3},
	}
	h := Middleware(Options{})(jsonHandler(http.StatusOK, payload))

	_, body := serve(t, h)

	p := body["pagination"].(map[string]any)
	if p["total"] != float64(19) {
		t.Errorf("pagination.total = %v, want 19", p["total"])
	}
	if p["pages"] != float64(2) {
		t.Errorf("pagination.pages = %v, want 2", p["pages"])
	}
	if p["page"] != float64(1) || p["limit"] != float64(10) {
		t.Errorf("page/limit changed: %v", p)
	}
}

func TestMiddlewareDataKey(t *testing.T) {
	payload := map[string]any{"success": true, "count": 10, "page": 1, "pages": 1, "data": tenWithTwoDuplicates()}
	h := Middleware(Options{})(jsonHandler(http.StatusOK, payload))

	_, body := serve(t, h)

	if len(body["data"].([]any)) != 8 || body["count"] != float64(8) {
		t.Errorf("data/count = %d/%v, want 8/8", len(body["data"].([]any)), body["count"])
	}
	if body["success"] != true {
		t.Error("unrelated fields should be preserved")
	}
}

func TestMiddlewarePassThrough(t *testing.T) {
	tests := []struct {
		name    string
		handler http.Handler
	}{
		{
			name:    "error status",
			handler: jsonHandler(http.StatusNotFound, map[string]any{"events": tenWithTwoDuplicates(), "count": 10}),
		},
		{
			name: "not json",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				_, _ = w.Write([]byte(`{"events":[{"title":"a"},{"title":"a"}],"count":2}`))
			}),
		},
		{
			name:    "no array key",
			handler: jsonHandler(http.StatusOK, map[string]any{"items": tenWithTwoDuplicates(), "count": 10}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			direct := httptest.NewRecorder()
			tt.handler.ServeHTTP(direct, httptest.NewRequest(http.MethodGet, "/", nil))

			wrapped := httptest.NewRecorder()
			Middleware(Options{})(tt.handler).ServeHTTP(wrapped, httptest.NewRequest(http.MethodGet, "/", nil))

			if wrapped.Code != direct.Code {
				t.Errorf("status = %d, want %d", wrapped.Code, direct.Code)
			}
			if wrapped.Body.String() != direct.Body.String() {
				t.Errorf("body changed:\n got %s\nwant %s", wrapped.Body.String(), direct.Body.String())
			}
		})
	}
}
