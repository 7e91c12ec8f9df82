package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pfrederiksen/city-events/internal/event"
)

// DefaultTimeout bounds a source run when its config sets none
const DefaultTimeout = 30 * time.Second

// ErrBlockedDomain is returned for sources pointing at aggregator or news sites
var ErrBlockedDomain = errors.New("blocked domain")

// Source produces raw candidates for one venue or listing page
type Source interface {
	Name() string
	City() string
	FetchCandidates(ctx context.Context) ([]event.Candidate, error)
}

// Result is the uniform outcome of one source run
type Result struct {
	Source     string
	City       string
	Candidates []event.Candidate
	Err        error
	Duration   time.Duration
}

// OK reports whether the source ran without error
func (r Result) OK() bool {
	return r.Err == nil
}

// Run executes src with a deadline and converts panics into a failed Result.
// A source that ignores its context is abandoned once the deadline passes.
func Run(ctx context.Context, src Source, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res := Result{Source: src.Name(), City: src.City()}

	done := make(chan Result, 1)
	go func() {
		var out Result
		defer func() {
			if p := recover(); p != nil {
				out.Err = fmt.Errorf("source %s panicked: %v", src.Name(), p)
				out.Candidates = nil
			}
			done <- out
		}()
		out.Candidates, out.Err = src.FetchCandidates(ctx)
	}()

	select {
	case out := <-done:
		res.Candidates = out.Candidates
		res.Err = out.Err
	case <-ctx.Done():
		res.Err = fmt.Errorf("source %s: %w", src.Name(), ctx.Err())
	}
	res.Duration = time.Since(start)
	return res
}

// CheckURL refuses URLs whose host is, or is a subdomain of, a blocked domain
func CheckURL(raw string, blocked []string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid source url %q", raw)
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	for _, domain := range blocked {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return fmt.Errorf("%w: %s", ErrBlockedDomain, domain)
		}
	}
	return nil
}
