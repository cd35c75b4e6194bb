package export

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultMongoDatabase   = "itunes"
	DefaultMongoCollection = "apps"
)

// MongoWriter stores each record as a document. Records with a trackId
// replace the earlier document for the same app, so re-running a batch
// refreshes the collection instead of duplicating it.
type MongoWriter struct {
	client     *mongo.Client
	collection *mongo.Collection
	ownsClient bool
	now        func() time.Time
}

// DialMongo connects to uri and writes into database.collection. Empty
// names use [DefaultMongoDatabase] and [DefaultMongoCollection].
func DialMongo(ctx context.Context, uri, database, collection string) (*MongoWriter, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	w := NewMongoWriter(client, database, collection)
	w.ownsClient = true
	return w, nil
}

// NewMongoWriter writes through an existing client. Close leaves the
// client connected.
func NewMongoWriter(client *mongo.Client, database, collection string) *MongoWriter {
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}
	return &MongoWriter{
		client:     client,
		collection: client.Database(database).Collection(collection),
		now:        time.Now,
	}
}

func (m *MongoWriter) Write(ctx context.Context, rec Record) error {
	doc := document(rec, m.now())
	id, ok := rec["trackId"]
	if !ok {
		_, err := m.collection.InsertOne(ctx, doc)
		return err
	}
	_, err := m.collection.ReplaceOne(ctx, bson.M{"trackId": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store app %v: %w", id, err)
	}
	return nil
}

func (m *MongoWriter) Close() error {
	if !m.ownsClient {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// document copies rec into a BSON document stamped with the scrape time.
func document(rec Record, scrapedAt time.Time) bson.M {
	doc := make(bson.M, len(rec)+1)
	for k, v := range rec {
		doc[k] = v
	}
	doc["scrapedAt"] = scrapedAt.UTC()
	return doc
}
