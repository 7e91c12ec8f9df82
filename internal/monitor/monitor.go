// Package monitor keeps a short run history per source and raises an alert
// when a source keeps failing or keeps coming back empty.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/logger"
)

// HistoryFile is the name of the history file inside the data directory
const HistoryFile = "monitor.json"

// Run is the outcome of one source run
type Run struct {
	At       time.Time     `json:"at"`
	Count    int           `json:"count"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// OK reports whether the run produced events without error
func (r Run) OK() bool {
	return r.Error == "" && r.Count > 0
}

// Status describes a run for people: ERROR, NO EVENTS or SUCCESS
func (r Run) Status() string {
	switch {
	case r.Error != "":
		return "ERROR"
	case r.Count == 0:
		return "NO EVENTS"
	default:
		return "SUCCESS"
	}
}

// History is the recent run history of one source
type History struct {
	Runs    []Run `json:"runs"`
	Alerted bool  `json:"alerted"`
}

// Failures counts the trailing failed-or-empty runs
func (h *History) Failures() int {
	n := 0
	for i := len(h.Runs) - 1; i >= 0 && !h.Runs[i].OK(); i-- {
		n++
	}
	return n
}

// Last returns the most recent run
func (h *History) Last() (Run, bool) {
	if len(h.Runs) == 0 {
		return Run{}, false
	}
	return h.Runs[len(h.Runs)-1], true
}

// Alert is raised once per failing streak
type Alert struct {
	Source   string
	Failures int
	Runs     []Run
	At       time.Time
}

// Subject is the one-line summary of the alert
func (a Alert) Subject() string {
	return fmt.Sprintf("Source alert: %s has failed %d times", a.Source, a.Failures)
}

// Alerter delivers alerts
type Alerter interface {
	Alert(ctx context.Context, a Alert) error
}

// Monitor records source runs. It is safe for concurrent use.
type Monitor struct {
	mu        sync.Mutex
	path      string
	threshold int
	keep      int
	alerter   Alerter
	sources   map[string]*History
	now       func() time.Time
}

// New creates a monitor persisting to path. An empty path keeps history in memory only.
func New(cfg config.MonitorConfig, path string, alerter Alerter) *Monitor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.History <= 0 {
		cfg.History = 10
	}
	if alerter == nil {
		alerter = LogAlerter{}
	}
	return &Monitor{
		path:      path,
		threshold: cfg.Threshold,
		keep:      cfg.History,
		alerter:   alerter,
		sources:   make(map[string]*History),
		now:       time.Now,
	}
}

// Open creates a monitor backed by the history file in dataDir and loads any
// history left by earlier invocations.
func Open(cfg config.MonitorConfig, dataDir string, alerter Alerter) (*Monitor, error) {
	dir, err := config.ExpandHome(dataDir)
	if err != nil {
		return nil, err
	}
	m := New(cfg, filepath.Join(dir, HistoryFile), alerter)
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading monitor history: %w", err)
	}
	if err := json.Unmarshal(data, &m.sources); err != nil {
		return nil, fmt.Errorf("parsing monitor history: %w", err)
	}
	if m.sources == nil {
		m.sources = make(map[string]*History)
	}
	return m, nil
}

// Key names a source within a city
func Key(city, source string) string {
	return city + "/" + source
}

// Record adds a run for source and alerts when the failing streak reaches
// the threshold. The returned alert is nil when none was raised. Alert
// delivery failures are logged, not returned.
func (m *Monitor) Record(ctx context.Context, source string, count int, duration time.Duration, runErr error) *Alert {
	m.mu.Lock()
	h, ok := m.sources[source]
	if !ok {
		h = &History{}
		m.sources[source] = h
	}

	run := Run{At: m.now().UTC(), Count: count, Duration: duration}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	h.Runs = append(h.Runs, run)
	if len(h.Runs) > m.keep {
		h.Runs = append([]Run(nil), h.Runs[len(h.Runs)-m.keep:]...)
	}

	fields := logger.Fields{
		"source":      source,
		"status":      run.Status(),
		"events":      count,
		"duration_ms": duration.Milliseconds(),
	}
	switch run.Status() {
	case "ERROR":
		logger.Error("source run failed", fields, runErr)
	case "NO EVENTS":
		logger.Warn("source run found no events", fields)
	default:
		logger.Info("source run succeeded", fields)
	}

	var alert *Alert
	if run.OK() {
		h.Alerted = false
	} else if failures := h.Failures(); failures >= m.threshold && !h.Alerted {
		h.Alerted = true
		recent := h.Runs
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		alert = &Alert{
			Source:   source,
			Failures: failures,
			Runs:     append([]Run(nil), recent...),
			At:       run.At,
		}
	}
	m.mu.Unlock()

	if alert != nil {
		logger.IncrCounter("monitor.alerts")
		if err := m.alerter.Alert(ctx, *alert); err != nil {
			logger.Error("failed to send alert", logger.Fields{"source": source}, err)
		}
	}
	return alert
}

// History returns a copy of the history of source
func (m *Monitor) History(source string) (History, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.sources[source]
	if !ok {
		return History{}, false
	}
	return History{Runs: append([]Run(nil), h.Runs...), Alerted: h.Alerted}, true
}

// Sources returns the names of all recorded sources, sorted
func (m *Monitor) Sources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes the history file. It is a no-op for in-memory monitors.
func (m *Monitor) Save() error {
	if m.path == "" {
		return nil
	}

	m.mu.Lock()
	data, err := json.MarshalIndent(m.sources, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encoding monitor history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing monitor history: %w", err)
	}
	return os.Rename(tmp, m.path)
}
