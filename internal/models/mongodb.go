package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultQueryTimeout = 5 * time.Second

type MongoDB struct {
	Products *mongo.Collection
	Reviews  *mongo.Collection
	Users    *mongo.Collection
	Orders   *mongo.Collection
	Coupons  *mongo.Collection

	// Timeout bounds each individual query. Zero means five seconds.
	Timeout time.Duration
}

// Connect dials the server, checks it answers and returns the client.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, nil
}

// NewMongoDB binds the collections of the named database.
func NewMongoDB(db *mongo.Database, timeout time.Duration) *MongoDB {
	return &MongoDB{
		Products: db.Collection("products"),
		Reviews:  db.Collection("reviews"),
		Users:    db.Collection("users"),
		Orders:   db.Collection("orders"),
		Coupons:  db.Collection("coupons"),
		Timeout:  timeout,
	}
}

// EnsureIndexes creates the unique and lookup indexes the stores rely on.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if _, err := m.Users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	if _, err := m.Coupons.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("coupons index: %w", err)
	}
	if _, err := m.Orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("orders index: %w", err)
	}
	if _, err := m.Reviews.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "status", Value: 1}},
	}); err != nil {
		return fmt.Errorf("reviews index: %w", err)
	}
	return nil
}

func (m *MongoDB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := m.Timeout
	if d <= 0 {
		d = defaultQueryTimeout
	}
	return context.WithTimeout(ctx, d)
}

// ParseID converts a hex id into an ObjectID, reporting malformed ids as
// not found for the named kind.
func ParseID(kind, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
	}
	return oid, nil
}

func notFound(err error, kind string, id primitive.ObjectID) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id.Hex())
	}
	return err
}

func pageOptions(page, limit int, defLimit int64) (skip, lim int64) {
	lim = int64(limit)
	if lim <= 0 || lim > 100 {
		lim = defLimit
	}
	if page < 1 {
		page = 1
	}
	return int64(page-1) * lim, lim
}
