package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pfrederiksen/city-events/internal/event"
)

// MongoStore keeps one document per event
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// OpenMongo connects to uri and ensures the listing indexes exist
func OpenMongo(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo storage requires a uri (MONGODB_URI)")
	}
	if database == "" {
		database = "city_events"
	}
	if collection == "" {
		collection = "events"
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateMany(connectCtx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "city_key", Value: 1}, {Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "stable_key", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("creating mongo indexes: %w", err)
	}

	return &MongoStore{client: client, collection: coll}, nil
}

// Upsert writes events with one bulk write. first_seen is only set on insert.
func (s *MongoStore) Upsert(ctx context.Context, events []*event.Event) (UpsertResult, error) {
	if len(events) == 0 {
		return UpsertResult{}, nil
	}

	models := make([]mongo.WriteModel, 0, len(events))
	for _, e := range events {
		r := toRecord(e)
		set, err := toBSON(r)
		if err != nil {
			return UpsertResult{}, err
		}
		delete(set, "_id")
		delete(set, "first_seen")

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": r.ID}).
			SetUpdate(bson.M{
				"$set":         set,
				"$setOnInsert": bson.M{"first_seen": r.FirstSeen},
			}).
			SetUpsert(true))
	}

	res, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return UpsertResult{}, fmt.Errorf("bulk upsert: %w", err)
	}
	return UpsertResult{
		Inserted: int(res.UpsertedCount),
		Updated:  int(res.MatchedCount),
	}, nil
}

func toBSON(r record) (bson.M, error) {
	data, err := bson.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding event %s: %w", r.ID, err)
	}
	var m bson.M
	if err := bson.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encoding event %s: %w", r.ID, err)
	}
	return m, nil
}

// Get returns one event by id
func (s *MongoStore) Get(ctx context.Context, id string) (*event.Event, error) {
	var r record
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("finding event %s: %w", id, err)
	}
	return r.toEvent()
}

// mongoFilter translates q into a query document
func mongoFilter(q Query) bson.M {
	filter := bson.M{}
	if q.City != "" {
		filter["city_key"] = strings.ToLower(q.City)
	}
	if q.Source != "" {
		filter["source"] = bson.M{"$regex": "^" + regexp.QuoteMeta(q.Source) + "$", "$options": "i"}
	}
	if q.Venue != "" {
		filter["venue_name_key"] = bson.M{"$regex": regexp.QuoteMeta(strings.ToLower(q.Venue))}
	}
	day := bson.M{}
	if q.From != "" {
		day["$gte"] = q.From
	}
	if q.To != "" {
		day["$lte"] = q.To
	}
	if len(day) > 0 {
		filter["date"] = day
	}
	return filter
}

// Find returns a page of matching events and the total count
func (s *MongoStore) Find(ctx context.Context, q Query) ([]*event.Event, int, error) {
	filter := mongoFilter(q)

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "date", Value: 1},
		{Key: "time", Value: 1},
		{Key: "title", Value: 1},
		{Key: "_id", Value: 1},
	})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}

	cur, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("querying events: %w", err)
	}
	defer cur.Close(ctx)

	var records []record
	if err := cur.All(ctx, &records); err != nil {
		return nil, 0, fmt.Errorf("reading events: %w", err)
	}

	events := make([]*event.Event, 0, len(records))
	for _, r := range records {
		e, err := r.toEvent()
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	return events, int(total), nil
}

// Close disconnects the client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
