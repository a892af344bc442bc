package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AddReview stores a new review awaiting moderation.
func (m *MongoDB) AddReview(ctx context.Context, r *Review) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	r.Status = ReviewPending
	r.CreatedAt = time.Now().UTC()
	_, err := m.Reviews.InsertOne(ctx, r)
	return err
}

func (m *MongoDB) GetPendingReviews(ctx context.Context) ([]*Review, error) {
	return m.findReviews(ctx, bson.M{"status": ReviewPending})
}

// GetProductReviews returns the approved reviews of a product, newest first.
func (m *MongoDB) GetProductReviews(ctx context.Context, productID primitive.ObjectID) ([]*Review, error) {
	return m.findReviews(ctx, bson.M{"product_id": productID, "status": ReviewApproved})
}

func (m *MongoDB) findReviews(ctx context.Context, filter bson.M) ([]*Review, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := m.Reviews.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	reviews := []*Review{}
	err = cur.All(ctx, &reviews)
	return reviews, err
}

func (m *MongoDB) SetReviewStatus(ctx context.Context, id primitive.ObjectID, status ReviewStatus) (*Review, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var r Review
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := m.Reviews.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}}, opts).Decode(&r)
	if err != nil {
		return nil, notFound(err, "review", id)
	}
	return &r, nil
}

// AverageRating averages the approved ratings of a product. It returns 0 when
// the product has none.
func (m *MongoDB) AverageRating(ctx context.Context, productID primitive.ObjectID) (float64, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"product_id": productID, "status": ReviewApproved}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "avg": bson.M{"$avg": "$rating"}}}},
	}
	cur, err := m.Reviews.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	var results []struct {
		Avg float64 `bson:"avg"`
	}
	if err := cur.All(ctx, &results); err != nil || len(results) == 0 {
		return 0, err
	}
	return results[0].Avg, nil
}
