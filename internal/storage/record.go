package storage

import (
	"strings"
	"time"

	"github.com/pfrederiksen/city-events/internal/event"
)

// record is the flat storage shape of an event shared by the document stores
type record struct {
	ID            string    `bson:"_id" dynamodbav:"id"`
	StableKey     string    `bson:"stable_key" dynamodbav:"stable_key"`
	Title         string    `bson:"title" dynamodbav:"title"`
	Day           string    `bson:"date" dynamodbav:"date"`
	TimeOfDay     string    `bson:"time,omitempty" dynamodbav:"time,omitempty"`
	VenueName     string    `bson:"venue_name" dynamodbav:"venue_name"`
	VenueNameKey  string    `bson:"venue_name_key" dynamodbav:"venue_name_key"`
	VenueAddress  string    `bson:"venue_address,omitempty" dynamodbav:"venue_address,omitempty"`
	VenueLocation string    `bson:"venue_location,omitempty" dynamodbav:"venue_location,omitempty"`
	VenueCity     string    `bson:"venue_city,omitempty" dynamodbav:"venue_city,omitempty"`
	Lat           *float64  `bson:"lat,omitempty" dynamodbav:"lat,omitempty"`
	Lng           *float64  `bson:"lng,omitempty" dynamodbav:"lng,omitempty"`
	City          string    `bson:"city" dynamodbav:"city"`
	CityKey       string    `bson:"city_key" dynamodbav:"city_key"`
	Category      string    `bson:"category,omitempty" dynamodbav:"category,omitempty"`
	Source        string    `bson:"source" dynamodbav:"source"`
	URL           string    `bson:"url,omitempty" dynamodbav:"url,omitempty"`
	ImageURL      string    `bson:"image_url,omitempty" dynamodbav:"image_url,omitempty"`
	FirstSeen     time.Time `bson:"first_seen" dynamodbav:"first_seen"`
	LastSeen      time.Time `bson:"last_seen" dynamodbav:"last_seen"`
}

func toRecord(e *event.Event) record {
	r := record{
		ID:            e.ID,
		StableKey:     e.StableKey,
		Title:         e.Title,
		Day:           e.Date.ISO(),
		VenueName:     e.Venue.Name,
		VenueNameKey:  strings.ToLower(e.Venue.Name),
		VenueAddress:  e.Venue.Address,
		VenueLocation: e.Venue.Location,
		VenueCity:     e.Venue.City,
		City:          e.City,
		CityKey:       strings.ToLower(e.City),
		Category:      e.Category,
		Source:        e.Source,
		URL:           e.URL,
		ImageURL:      e.ImageURL,
		FirstSeen:     e.FirstSeen.UTC(),
		LastSeen:      e.LastSeen.UTC(),
	}
	if e.Date.HasTime {
		r.TimeOfDay = e.Date.String()[len("2006-01-02T"):]
	}
	if c := e.Venue.Coordinates; c != nil {
		lat, lng := c.Lat, c.Lng
		r.Lat, r.Lng = &lat, &lng
	}
	return r
}

func (r record) toEvent() (*event.Event, error) {
	stored := r.Day
	if r.TimeOfDay != "" {
		stored += "T" + r.TimeOfDay
	}
	date, err := event.ParseStoredDate(stored)
	if err != nil {
		return nil, err
	}

	e := &event.Event{
		ID:        r.ID,
		StableKey: r.StableKey,
		Title:     r.Title,
		Date:      date,
		Venue: event.Venue{
			Name:     r.VenueName,
			Address:  r.VenueAddress,
			Location: r.VenueLocation,
			City:     r.VenueCity,
		},
		City:      r.City,
		Category:  r.Category,
		Source:    r.Source,
		URL:       r.URL,
		ImageURL:  r.ImageURL,
		FirstSeen: r.FirstSeen.UTC(),
		LastSeen:  r.LastSeen.UTC(),
	}
	if r.Lat != nil && r.Lng != nil {
		e.Venue.Coordinates = &event.Coordinates{Lat: *r.Lat, Lng: *r.Lng}
	}
	return e, nil
}
