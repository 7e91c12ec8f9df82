package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/dedupe"
	"github.com/pfrederiksen/city-events/internal/event"
	"github.com/pfrederiksen/city-events/internal/filter"
	"github.com/pfrederiksen/city-events/internal/logger"
	"github.com/pfrederiksen/city-events/internal/monitor"
	"github.com/pfrederiksen/city-events/internal/notifier"
	"github.com/pfrederiksen/city-events/internal/source"
	"github.com/pfrederiksen/city-events/internal/storage"
	"github.com/pfrederiksen/city-events/internal/telemetry"
	"github.com/pfrederiksen/city-events/internal/venue"
)

// Pipeline wires sources to storage. Monitor, Notifier and Venues are optional.
type Pipeline struct {
	Config   *config.Config
	Registry *source.Registry
	Store    storage.Store
	Monitor  *monitor.Monitor
	Notifier notifier.Notifier
	Venues   *venue.Registry

	// DryRun skips the storage write; the notifier still sees new events
	DryRun bool
	Now    func() time.Time
}

// SourceReport is the outcome of one source within a run
type SourceReport struct {
	Name       string                    `json:"name"`
	Candidates int                       `json:"candidates"`
	Events     int                       `json:"events"`
	Dropped    map[filter.DropReason]int `json:"dropped,omitempty"`
	Duration   time.Duration             `json:"duration"`
	Error      string                    `json:"error,omitempty"`
}

// OK reports whether the source ran without error
func (s SourceReport) OK() bool {
	return s.Error == ""
}

// Report summarizes a city run
type Report struct {
	RunID     string               `json:"run_id"`
	City      string               `json:"city"`
	StartedAt time.Time            `json:"started_at"`
	Duration  time.Duration        `json:"duration"`
	Sources   []SourceReport       `json:"sources"`
	Events    []*event.Event       `json:"-"`
	NewEvents []*event.Event       `json:"new_events"`
	Changes   []*event.EventChange `json:"changes,omitempty"`
	Upserted  storage.UpsertResult `json:"upserted"`
	DryRun    bool                 `json:"dry_run"`
}

// Failed returns the reports of sources that errored
func (r *Report) Failed() []SourceReport {
	var failed []SourceReport
	for _, s := range r.Sources {
		if !s.OK() {
			failed = append(failed, s)
		}
	}
	return failed
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// RunAll runs every city with registered sources, in config order. It stops
// at the first storage error and returns the reports gathered so far.
func (p *Pipeline) RunAll(ctx context.Context) ([]*Report, error) {
	var reports []*Report
	for _, city := range p.Registry.Cities() {
		report, err := p.RunCity(ctx, city)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// RunCity runs the sources of city sequentially and stores the result
func (p *Pipeline) RunCity(ctx context.Context, city string) (*Report, error) {
	cityCfg, err := p.Config.City(city)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.run_city")
	defer span.End()

	now := p.now()
	report := &Report{
		RunID:     uuid.NewString(),
		City:      cityCfg.Name,
		StartedAt: now.UTC(),
		DryRun:    p.DryRun,
	}
	span.SetAttributes(
		attribute.String("city", cityCfg.Name),
		attribute.String("run.id", report.RunID),
		attribute.Bool("dry_run", p.DryRun),
	)

	log := logger.Default().With(logger.Fields{"city": cityCfg.Name, "run_id": report.RunID})
	log.Info("Starting city run", logger.Fields{"sources": len(p.Registry.Sources(cityCfg.Name))})

	var all []*event.Event
	for _, entry := range p.Registry.Sources(cityCfg.Name) {
		if ctx.Err() != nil {
			break
		}
		events, sr := p.runSource(ctx, cityCfg, entry, now)
		report.Sources = append(report.Sources, sr)
		all = append(all, events...)
	}

	all = dedupe.Events(all, p.Config.Dedupe.KeyFields)
	report.Events = all
	logger.AddCounter("pipeline.events", int64(len(all)))

	if err := p.compare(ctx, report, now); err != nil {
		return p.fail(span, report, err)
	}

	if !p.DryRun && len(all) > 0 {
		res, err := p.Store.Upsert(ctx, all)
		if err != nil {
			return p.fail(span, report, fmt.Errorf("storing events: %w", err))
		}
		report.Upserted = res
	}

	if p.Notifier != nil && len(report.NewEvents) > 0 {
		if err := p.Notifier.Notify(report.NewEvents); err != nil {
			log.Error("Failed to send notifications", logger.Fields{"new_events": len(report.NewEvents)}, err)
		}
	}

	if p.Monitor != nil {
		if err := p.Monitor.Save(); err != nil {
			log.Warn("Failed to save monitor history", logger.Fields{"error": err.Error()})
		}
	}

	report.Duration = time.Since(now)
	logger.RecordTiming("pipeline.city_duration", report.Duration)
	log.Info("City run complete", logger.Fields{
		"events":     len(all),
		"new_events": len(report.NewEvents),
		"changes":    len(report.Changes),
		"inserted":   report.Upserted.Inserted,
		"updated":    report.Upserted.Updated,
		"failed":     len(report.Failed()),
	})
	return report, nil
}

func (p *Pipeline) fail(span trace.Span, report *Report, err error) (*Report, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "city run failed")
	return report, err
}

// compare diffs the run against the stored events of the city
func (p *Pipeline) compare(ctx context.Context, report *Report, now time.Time) error {
	previous, _, err := p.Store.Find(ctx, storage.Query{City: report.City})
	if err != nil {
		return fmt.Errorf("loading stored events: %w", err)
	}

	prevSnap := event.CreateSnapshot(previous, "")
	currSnap := event.CreateSnapshot(report.Events, now.UTC().Format(time.RFC3339))

	report.NewEvents = event.Diff(prevSnap, report.Events, report.City).NewEvents
	for _, change := range event.CompareSnapshots(prevSnap.Events, currSnap.Events, prevSnap.StableIndex, currSnap.StableIndex, now) {
		if change.ChangeType != event.ChangeNew {
			report.Changes = append(report.Changes, change)
		}
	}
	return nil
}

// runSource runs one source and turns its candidates into clean events
func (p *Pipeline) runSource(ctx context.Context, city *config.CityConfig, entry source.Entry, now time.Time) ([]*event.Event, SourceReport) {
	sc := entry.Config
	name := entry.Source.Name()
	sr := SourceReport{Name: name}

	res := source.Run(ctx, entry.Source, sc.Timeout.Std())
	sr.Duration = res.Duration
	sr.Candidates = len(res.Candidates)
	logger.RecordTiming("pipeline.source_duration", res.Duration)

	if !res.OK() {
		sr.Error = res.Err.Error()
		logger.IncrCounter("pipeline.source_failures")
		p.record(ctx, city.Name, name, 0, res.Duration, res.Err)
		return nil, sr
	}

	policy, err := event.ParseYearPolicy(sc.YearPolicy)
	if err != nil {
		logger.Warn("Unknown year policy, inferring years", logger.Fields{"source": name, "year_policy": sc.YearPolicy})
	}

	f := filter.EventFilter{
		Normalizer: event.DateNormalizer{Policy: policy, AllowPast: sc.AllowPast},
		Origin: event.Origin{
			Source:   name,
			City:     city.Name,
			Category: sc.Category,
			BaseURL:  sc.URL,
			Venue:    VenueOf(sc.Venue, city.Name),
		},
		Now:        now,
		KeyByVenue: sc.KeyByVenue,
		KeyByURL:   sc.KeyByURL,
	}
	events, stats := f.Apply(res.Candidates)
	if stats.DroppedTotal() > 0 {
		sr.Dropped = stats.Dropped
		logger.Debug("Dropped candidates", logger.Fields{"source": name, "dropped": stats.Dropped})
	}

	for _, evt := range events {
		p.canonicalize(city.Name, evt)
	}

	sr.Events = len(events)
	logger.AddCounter("pipeline.candidates", int64(sr.Candidates))
	p.record(ctx, city.Name, name, len(events), res.Duration, nil)
	return events, sr
}

// canonicalize cleans the venue of evt and swaps in the city's known venue
// when the names match closely enough. The ID follows the venue name.
func (p *Pipeline) canonicalize(city string, evt *event.Event) {
	cleaned := venue.CleanAndExtract(evt.Venue)
	if p.Venues != nil {
		if known, ok := p.Venues.Resolve(city, cleaned); ok {
			cleaned = known
		}
	}
	if cleaned.City == "" {
		cleaned.City = city
	}
	rename := cleaned.Name != evt.Venue.Name
	evt.Venue = cleaned
	if rename {
		evt.Rebuild()
	}
}

func (p *Pipeline) record(ctx context.Context, city, name string, count int, d time.Duration, err error) {
	if p.Monitor == nil {
		return
	}
	p.Monitor.Record(ctx, monitor.Key(city, name), count, d, err)
}

// VenueOf converts a configured venue. Coordinates are kept only when both are set.
func VenueOf(v config.VenueConfig, city string) event.Venue {
	out := event.Venue{
		Name:    strings.Join(strings.Fields(v.Name), " "),
		Address: strings.TrimSpace(v.Address),
	}
	if out.Name != "" {
		out.City = city
	}
	if v.Lat != nil && v.Lng != nil {
		out.Coordinates = &event.Coordinates{Lat: *v.Lat, Lng: *v.Lng}
	}
	return out
}

// NewVenueRegistry registers the known venues of every city in cfg
func NewVenueRegistry(cfg *config.Config) *venue.Registry {
	r := venue.NewRegistry(0)
	for _, city := range cfg.Cities {
		for _, v := range city.Venues {
			if strings.TrimSpace(v.Name) == "" {
				continue
			}
			r.Add(city.Name, VenueOf(v, city.Name))
		}
	}
	return r
}
