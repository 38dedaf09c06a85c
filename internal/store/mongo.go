package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCloseTimeout = 5 * time.Second

// Mongo stores one document per record, keyed by DocID.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongo connects, pings and ensures the content hash index exists.
func NewMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		database = "pdfrag"
	}
	if collection == "" {
		collection = "documents"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "content_hash", Value: 1}},
		Options: options.Index().SetName("content_hash"),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create mongo index: %w", err)
	}
	return &Mongo{client: client, collection: coll}, nil
}

func (m *Mongo) Save(ctx context.Context, rec Record) error {
	if err := rec.normalize(); err != nil {
		return err
	}
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": rec.DocID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return mongoErr("save", err)
	}
	return nil
}

func (m *Mongo) Get(ctx context.Context, docID string) (Record, error) {
	var rec Record
	err := m.collection.FindOne(ctx, bson.M{"_id": docID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, mongoErr("get", err)
	}
	return rec, nil
}

func (m *Mongo) List(ctx context.Context) ([]Record, error) {
	opts := options.Find().
		SetProjection(bson.M{"sections": 0, "chunks": 0, "markdown": 0}).
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := m.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, mongoErr("list", err)
	}
	defer cursor.Close(ctx)

	out := []Record{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, mongoErr("list", err)
	}
	return out, nil
}

func (m *Mongo) Delete(ctx context.Context, docID string) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": docID})
	if err != nil {
		return mongoErr("delete", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) FindByHash(ctx context.Context, hash string) (string, error) {
	var hit struct {
		DocID string `bson:"_id"`
	}
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	err := m.collection.FindOne(ctx, bson.M{"content_hash": hash}, opts).Decode(&hit)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", mongoErr("find by hash", err)
	}
	return hit.DocID, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, mongoCloseTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func mongoErr(op string, err error) error {
	wrapped := fmt.Errorf("mongo %s: %w", op, err)
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return Retryable(wrapped)
	}
	return wrapped
}
