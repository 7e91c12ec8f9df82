package monitor

import (
	"context"
	"errors"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jordan-wright/email"

	"github.com/pfrederiksen/city-events/internal/config"
)

type recordingAlerter struct {
	alerts []Alert
	err    error
}

func (r *recordingAlerter) Alert(_ context.Context, a Alert) error {
	r.alerts = append(r.alerts, a)
	return r.err
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Hour)
		return t
	}
}

func TestRecordAlertsOncePerStreak(t *testing.T) {
	alerter := &recordingAlerter{}
	m := New(config.MonitorConfig{Threshold: 3, History: 10}, "", alerter)
	m.now = fixedClock()
	ctx := context.Background()
	boom := errors.New("boom")

	type step struct {
		count     int
		err       error
		wantAlert bool
	}
	steps := []step{
		{count: 0},
		{err: boom},
		{count: 0, wantAlert: true},
		{count: 0},
		{err: boom},
		{count: 12},
		{count: 0},
		{count: 0},
		{err: boom, wantAlert: true},
	}

	for i, s := range steps {
		got := m.Record(ctx, "Calgary/palace", s.count, time.Second, s.err)
		if (got != nil) != s.wantAlert {
			t.Fatalf("step %d: alert = %v, want %v", i, got != nil, s.wantAlert)
		}
	}

	if len(alerter.alerts) != 2 {
		t.Fatalf("delivered %d alerts, want 2", len(alerter.alerts))
	}
	first := alerter.alerts[0]
	if first.Source != "Calgary/palace" || first.Failures != 3 || len(first.Runs) != 3 {
		t.Errorf("first alert = %+v", first)
	}
	if !strings.Contains(first.Subject(), "failed 3 times") {
		t.Errorf("Subject() = %q", first.Subject())
	}
}

func TestRecordAlertFailureIsNotFatal(t *testing.T) {
	alerter := &recordingAlerter{err: errors.New("smtp down")}
	m := New(config.MonitorConfig{Threshold: 1}, "", alerter)

	if a := m.Record(context.Background(), "s", 0, 0, nil); a == nil {
		t.Fatal("Record() should still report the alert")
	}
}

func TestHistoryIsBounded(t *testing.T) {
	m := New(config.MonitorConfig{Threshold: 100, History: 4}, "", &recordingAlerter{})
	m.now = fixedClock()
	for i := 1; i <= 7; i++ {
		m.Record(context.Background(), "s", i, 0, nil)
	}

	h, ok := m.History("s")
	if !ok {
		t.Fatal("History() missing source")
	}
	var counts []int
	for _, r := range h.Runs {
		counts = append(counts, r.Count)
	}
	if diff := cmp.Diff([]int{4, 5, 6, 7}, counts); diff != "" {
		t.Errorf("kept runs mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStatus(t *testing.T) {
	tests := []struct {
		run  Run
		want string
		ok   bool
	}{
		{Run{Count: 3}, "SUCCESS", true},
		{Run{Count: 0}, "NO EVENTS", false},
		{Run{Count: 3, Error: "timeout"}, "ERROR", false},
	}
	for _, tt := range tests {
		if got := tt.run.Status(); got != tt.want {
			t.Errorf("Status() = %q, want %q", got, tt.want)
		}
		if got := tt.run.OK(); got != tt.ok {
			t.Errorf("OK() = %v, want %v", got, tt.ok)
		}
	}
}

func TestSaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	cfg := config.MonitorConfig{Threshold: 2, History: 10}

	m, err := Open(cfg, dir, &recordingAlerter{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	m.Record(context.Background(), Key("Calgary", "palace"), 0, time.Second, nil)
	if err := m.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, HistoryFile))
	if err != nil {
		t.Fatalf("history file missing: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("history file mode = %v, want 0600", info.Mode().Perm())
	}

	// A second invocation continues the streak
	alerter := &recordingAlerter{}
	reopened, err := Open(cfg, dir, alerter)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Calgary/palace"}, reopened.Sources()); diff != "" {
		t.Errorf("Sources() mismatch (-want +got):\n%s", diff)
	}
	reopened.Record(context.Background(), Key("Calgary", "palace"), 0, time.Second, nil)
	if len(alerter.alerts) != 1 {
		t.Errorf("alerts after reopen = %d, want 1", len(alerter.alerts))
	}
}

func TestOpenCorruptHistory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, HistoryFile), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(config.MonitorConfig{}, dir, nil); err == nil {
		t.Error("Open() expected error for corrupt history")
	}
}

func TestEmailAlerter(t *testing.T) {
	cfg := config.EmailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "alerts",
		Password: "secret",
		From:     "alerts@example.com",
		To:       []string{"dev@example.com"},
	}
	alert := Alert{
		Source:   "Calgary/palace",
		Failures: 3,
		Runs: []Run{
			{At: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC), Error: "deadline exceeded", Duration: 30 * time.Second},
			{At: time.Date(2025, 1, 15, 16, 0, 0, 0, time.UTC), Duration: 2 * time.Second},
		},
	}

	t.Run("sends with auth", func(t *testing.T) {
		var gotAddr string
		var gotMail *email.Email
		a := NewEmailAlerter(cfg)
		a.send = func(addr string, auth smtp.Auth, mail *email.Email) error {
			if auth == nil {
				t.Error("expected PLAIN auth")
			}
			gotAddr, gotMail = addr, mail
			return nil
		}

		if err := a.Alert(context.Background(), alert); err != nil {
			t.Fatalf("Alert() error = %v", err)
		}
		if gotAddr != "smtp.example.com:587" {
			t.Errorf("addr = %q", gotAddr)
		}
		if !strings.Contains(gotMail.Subject, "Calgary/palace has failed 3 times") {
			t.Errorf("Subject = %q", gotMail.Subject)
		}
		text := string(gotMail.Text)
		for _, want := range []string{"ERROR: deadline exceeded", "NO EVENTS FOUND", "(30000ms)"} {
			if !strings.Contains(text, want) {
				t.Errorf("body missing %q:\n%s", want, text)
			}
		}
	})

	t.Run("retries without auth", func(t *testing.T) {
		calls := 0
		a := NewEmailAlerter(cfg)
		a.send = func(_ string, auth smtp.Auth, _ *email.Email) error {
			calls++
			if auth != nil {
				return errors.New("smtp: server doesn't support AUTH")
			}
			return nil
		}
		if err := a.Alert(context.Background(), alert); err != nil {
			t.Fatalf("Alert() error = %v", err)
		}
		if calls != 2 {
			t.Errorf("send calls = %d, want 2", calls)
		}
	})

	t.Run("returns send errors", func(t *testing.T) {
		a := NewEmailAlerter(cfg)
		a.send = func(string, smtp.Auth, *email.Email) error { return errors.New("connection refused") }
		if err := a.Alert(context.Background(), alert); err == nil {
			t.Error("Alert() expected error")
		}
	})
}

func TestFromConfig(t *testing.T) {
	if _, ok := FromConfig(config.MonitorConfig{}).(LogAlerter); !ok {
		t.Error("FromConfig() without mail should log")
	}
	withMail := config.MonitorConfig{Email: config.EmailConfig{Host: "h", From: "f", To: []string{"t"}}}
	if _, ok := FromConfig(withMail).(*EmailAlerter); !ok {
		t.Error("FromConfig() with mail should email")
	}
}
