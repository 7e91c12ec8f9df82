package source

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/city-events/internal/event"
)

type stubSource struct {
	name  string
	fetch func(ctx context.Context) ([]event.Candidate, error)
}

func (s stubSource) Name() string { return s.name }
func (s stubSource) City() string { return "Calgary" }
func (s stubSource) FetchCandidates(ctx context.Context) ([]event.Candidate, error) {
	return s.fetch(ctx)
}

func TestRun(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name      string
		fetch     func(ctx context.Context) ([]event.Candidate, error)
		timeout   time.Duration
		wantCount int
		wantErr   string
	}{
		{
			name: "success",
			fetch: func(context.Context) ([]event.Candidate, error) {
				return []event.Candidate{{Title: "A"}, {Title: "B"}}, nil
			},
			wantCount: 2,
		},
		{
			name: "error",
			fetch: func(context.Context) ([]event.Candidate, error) {
				return nil, boom
			},
			wantErr: "connection refused",
		},
		{
			name: "panic",
			fetch: func(context.Context) ([]event.Candidate, error) {
				var m map[string]int
				m["x"]++
				return nil, nil
			},
			wantErr: "panicked",
		},
		{
			name: "respects deadline",
			fetch: func(ctx context.Context) ([]event.Candidate, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
			timeout: 20 * time.Millisecond,
			wantErr: "deadline exceeded",
		},
		{
			name: "ignores deadline",
			fetch: func(context.Context) ([]event.Candidate, error) {
				time.Sleep(time.Second)
				return []event.Candidate{{Title: "late"}}, nil
			},
			timeout: 20 * time.Millisecond,
			wantErr: "deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Run(context.Background(), stubSource{name: "stub", fetch: tt.fetch}, tt.timeout)

			if res.Source != "stub" || res.City != "Calgary" {
				t.Errorf("Result identity = %q/%q", res.Source, res.City)
			}
			if tt.wantErr == "" {
				if !res.OK() {
					t.Fatalf("Run() error = %v", res.Err)
				}
			} else if res.Err == nil || !strings.Contains(res.Err.Error(), tt.wantErr) {
				t.Fatalf("Run() error = %v, want containing %q", res.Err, tt.wantErr)
			}
			if len(res.Candidates) != tt.wantCount {
				t.Errorf("got %d candidates, want %d", len(res.Candidates), tt.wantCount)
			}
		})
	}
}

func TestRunWrapsBlockedErrors(t *testing.T) {
	res := Run(context.Background(), stubSource{name: "s", fetch: func(context.Context) ([]event.Candidate, error) {
		return nil, CheckURL("https://www.eventbrite.com/d/canada--calgary/events/", []string{"eventbrite.com"})
	}}, 0)
	if !errors.Is(res.Err, ErrBlockedDomain) {
		t.Errorf("Run() error = %v, want ErrBlockedDomain", res.Err)
	}
}

func TestCheckURL(t *testing.T) {
	blocked := []string{"eventbrite.com", "timeout.com"}

	tests := []struct {
		url         string
		wantBlocked bool
		wantErr     bool
	}{
		{"https://palace.example.com/events", false, false},
		{"https://www.eventbrite.com/e/123", true, true},
		{"https://calgary.eventbrite.com/", true, true},
		{"https://notimeout.com/events", false, false},
		{"https://www.timeout.com/calgary", true, true},
		{"not a url", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := CheckURL(tt.url, blocked)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if errors.Is(err, ErrBlockedDomain) != tt.wantBlocked {
				t.Errorf("CheckURL(%q) blocked = %v, want %v", tt.url, errors.Is(err, ErrBlockedDomain), tt.wantBlocked)
			}
		})
	}
}
