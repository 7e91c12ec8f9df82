package dedupe

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// Options configures Middleware
type Options struct {
	// ArrayKeys are the top-level keys that may hold the event array; the first
	// one present in a response is deduplicated. Defaults to "events", "data".
	ArrayKeys []string
	// KeyFields are passed to Documents. Defaults to DefaultKeyFields.
	KeyFields []string
}

// Middleware deduplicates the event array of JSON responses and keeps the
// accompanying count and pagination fields consistent with the new length.
// Non-JSON, non-2xx and undecodable responses pass through untouched.
func Middleware(opts Options) func(http.Handler) http.Handler {
	if len(opts.ArrayKeys) == 0 {
		opts.ArrayKeys = []string{"events", "data"}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			bw := &bufferedWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(bw, r)

			body := bw.buf.Bytes()
			if bw.status >= 200 && bw.status < 300 && isJSON(w.Header().Get("Content-Type")) {
				if rewritten, ok := Rewrite(body, opts); ok {
					body = rewritten
				}
			}

			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(bw.status)
			_, _ = w.Write(body)
		})
	}
}

// Rewrite deduplicates a JSON object payload. It returns false when the payload
// is not an object or holds no array under any of the configured keys.
func Rewrite(body []byte, opts Options) ([]byte, bool) {
	if len(opts.ArrayKeys) == 0 {
		opts.ArrayKeys = []string{"events", "data"}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil || payload == nil {
		return nil, false
	}

	var items []any
	var arrayKey string
	for _, k := range opts.ArrayKeys {
		if arr, ok := payload[k].([]any); ok {
			items, arrayKey = arr, k
			break
		}
	}
	if arrayKey == "" {
		return nil, false
	}

	deduped := Documents(items, opts.KeyFields)
	removed := len(items) - len(deduped)
	payload[arrayKey] = deduped

	if _, ok := payload["count"]; ok {
		payload["count"] = len(deduped)
	}
	adjustTotals(payload, removed, len(deduped))
	if p, ok := payload["pagination"].(map[string]any); ok {
		adjustTotals(p, removed, len(deduped))
	}

	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, false
	}
	return out.Bytes(), true
}

// adjustTotals subtracts the removed duplicates from "total" and recomputes
// "pages" from "limit" when those fields are present.
func adjustTotals(m map[string]any, removed, pageLen int) {
	totalValue, ok := m["total"]
	if !ok {
		return
	}
	total, ok := toInt(totalValue)
	if !ok {
		return
	}
	total -= removed
	if total < pageLen {
		total = pageLen
	}
	m["total"] = total

	if _, ok := m["pages"]; !ok {
		return
	}
	if limit, ok := toInt(m["limit"]); ok && limit > 0 {
		m["pages"] = int(math.Ceil(float64(total) / float64(limit)))
	}
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case float64:
		return int(x), true
	case int:
		return x, true
	default:
		return 0, false
	}
}

func isJSON(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "application/json") || strings.Contains(ct, "+json")
}

// bufferedWriter holds the response back until the middleware has rewritten it
type bufferedWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	buf         bytes.Buffer
}

func (b *bufferedWriter) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.buf.Write(p)
}
