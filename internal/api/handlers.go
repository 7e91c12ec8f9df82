package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/city-events/internal/calendar"
	"github.com/pfrederiksen/city-events/internal/event"
	"github.com/pfrederiksen/city-events/internal/logger"
	"github.com/pfrederiksen/city-events/internal/storage"
)

// Pagination describes one page of a listing
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// EventsResponse is the body of GET /api/v1/events
type EventsResponse struct {
	Events     []*event.Event `json:"events"`
	Count      int            `json:"count"`
	Pagination Pagination     `json:"pagination"`
}

// VenueEventsResponse is the body of GET /api/v1/venues/{name}/events
type VenueEventsResponse struct {
	Success bool           `json:"success"`
	Venue   string         `json:"venue"`
	Count   int            `json:"count"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	Pages   int            `json:"pages"`
	Data    []*event.Event `json:"data"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cities": s.cfg.CityNames()})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, errs := s.paging(q.Get("page"), q.Get("limit"))

	query := storage.Query{
		City:   strings.TrimSpace(q.Get("city")),
		Venue:  strings.TrimSpace(q.Get("venue")),
		Source: strings.TrimSpace(q.Get("source")),
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	for field, value := range map[string]string{"from": query.From, "to": query.To} {
		if value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", value); err != nil {
			errs[field] = append(errs[field], "must be a YYYY-MM-DD date")
		}
	}
	if query.From != "" && query.To != "" && query.To < query.From {
		errs["to"] = append(errs["to"], "must not be before from")
	}
	if len(errs) > 0 {
		WriteProblem(w, http.StatusBadRequest, "invalid query", "one or more parameters are invalid", errs)
		return
	}

	events, total, err := s.store.Find(r.Context(), query)
	if err != nil {
		s.storeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, EventsResponse{
		Events: nonNil(events),
		Count:  len(events),
		Pagination: Pagination{
			Total: total,
			Page:  page,
			Limit: limit,
			Pages: pages(total, limit),
		},
	})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	evt, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

func (s *Server) handleEventICS(w http.ResponseWriter, r *http.Request) {
	evt, ok := s.lookup(w, r)
	if !ok {
		return
	}

	loc := time.UTC
	if city, err := s.cfg.City(evt.City); err == nil {
		loc = city.Location()
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+evt.ID+`.ics"`)
	_, _ = w.Write([]byte(calendar.GenerateICS(evt, s.now(), loc)))
}

func (s *Server) handleVenueEvents(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	q := r.URL.Query()
	page, limit, errs := s.paging(q.Get("page"), q.Get("limit"))
	if name == "" {
		errs["name"] = append(errs["name"], "is required")
	}
	if len(errs) > 0 {
		WriteProblem(w, http.StatusBadRequest, "invalid query", "one or more parameters are invalid", errs)
		return
	}

	events, total, err := s.store.Find(r.Context(), storage.Query{
		City:   strings.TrimSpace(q.Get("city")),
		Venue:  name,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		s.storeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, VenueEventsResponse{
		Success: true,
		Venue:   name,
		Count:   len(events),
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   pages(total, limit),
		Data:    nonNil(events),
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*event.Event, bool) {
	evt, err := s.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		WriteProblem(w, http.StatusNotFound, "not found", "no event with id "+r.PathValue("id"), nil)
		return nil, false
	}
	if err != nil {
		s.storeError(w, err)
		return nil, false
	}
	return evt, true
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	logger.Error("Store query failed", nil, err)
	WriteProblem(w, http.StatusInternalServerError, "storage error", "events could not be read", nil)
}

// paging parses page and limit, applying the configured default and maximum
func (s *Server) paging(pageText, limitText string) (page, limit int, errs map[string][]string) {
	errs = map[string][]string{}
	page, limit = 1, s.cfg.API.DefaultLimit

	if pageText != "" {
		n, err := strconv.Atoi(pageText)
		if err != nil || n < 1 {
			errs["page"] = append(errs["page"], "must be a positive integer")
		} else {
			page = n
		}
	}
	if limitText != "" {
		n, err := strconv.Atoi(limitText)
		if err != nil || n < 1 {
			errs["limit"] = append(errs["limit"], "must be a positive integer")
		} else {
			limit = n
		}
	}
	if s.cfg.API.MaxLimit > 0 && limit > s.cfg.API.MaxLimit {
		limit = s.cfg.API.MaxLimit
	}
	// (page-1)*limit must fit the store offset
	if limit > 0 && page > math.MaxInt/limit {
		errs["page"] = append(errs["page"], "is too large")
		page = 1
	}
	return page, limit, errs
}

func pages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

func nonNil(events []*event.Event) []*event.Event {
	if events == nil {
		return []*event.Event{}
	}
	return events
}
