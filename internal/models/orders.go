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
)

func (m *MongoDB) InsertOrder(ctx context.Context, o *Order) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := m.Orders.InsertOne(ctx, o)
	return err
}

func (m *MongoDB) GetOrder(ctx context.Context, id primitive.ObjectID) (*Order, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var o Order
	if err := m.Orders.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, notFound(err, "order", id)
	}
	return &o, nil
}

// GetOrdersByUser returns one page of the user's orders, newest first.
func (m *MongoDB) GetOrdersByUser(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]*Order, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	skip, lim := pageOptions(page, limit, 10)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(lim)
	cur, err := m.Orders.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	orders := []*Order{}
	err = cur.All(ctx, &orders)
	return orders, err
}

// TransitionOrderStatus moves an order from one status to another only if it is
// still in the expected status. A mismatch is reported as ErrInvalidTransition.
func (m *MongoDB) TransitionOrderStatus(ctx context.Context, id primitive.ObjectID, from, to OrderStatus) (*Order, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var o Order
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := m.Orders.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to}},
		opts,
	).Decode(&o)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	current, err := m.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: order is %s, expected %s", ErrInvalidTransition, current.Status, from)
}

// ListStaleOrders returns orders in the given status created before cutoff.
func (m *MongoDB) ListStaleOrders(ctx context.Context, status OrderStatus, cutoff time.Time) ([]*Order, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	cur, err := m.Orders.Find(ctx, bson.M{"status": status, "created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	orders := []*Order{}
	err = cur.All(ctx, &orders)
	return orders, err
}

func (m *MongoDB) DeleteOrdersByStatus(ctx context.Context, status OrderStatus) (int64, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.Orders.DeleteMany(ctx, bson.M{"status": status})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// BestSellers ranks products by units sold, or by revenue when sortBy is
// "revenue". Revenue uses the price at purchase.
func (m *MongoDB) BestSellers(ctx context.Context, limit int, sortBy string) ([]*BestSeller, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 8
	}
	sortKey := "total_units"
	if sortBy == "revenue" {
		sortKey = "total_revenue"
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": bson.M{"$ne": StatusCancelled}}}},
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$items.product_id",
			"total_units": bson.M{"$sum": "$items.quantity"},
			"total_revenue": bson.M{"$sum": bson.M{
				"$multiply": bson.A{"$items.quantity", "$items.price_at_purchase"},
			}},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         m.Products.Name(),
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "product",
		}}},
		{{Key: "$unwind", Value: "$product"}},
		{{Key: "$project", Value: bson.M{
			"product_name":  "$product.name",
			"total_units":   1,
			"total_revenue": 1,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: sortKey, Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}

	cur, err := m.Orders.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	stats := []*BestSeller{}
	err = cur.All(ctx, &stats)
	return stats, err
}

// SalesReport lists orders created within [from, to], newest first. Zero
// bounds are open.
func (m *MongoDB) SalesReport(ctx context.Context, from, to time.Time) ([]*SalesReportItem, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	filter := bson.M{}
	created := bson.M{}
	if !from.IsZero() {
		created["$gte"] = from
	}
	if !to.IsZero() {
		created["$lte"] = to
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"_id": 1, "total": 1, "status": 1, "created_at": 1})
	cur, err := m.Orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var orders []*Order
	if err := cur.All(ctx, &orders); err != nil {
		return nil, err
	}
	report := make([]*SalesReportItem, 0, len(orders))
	for _, o := range orders {
		report = append(report, &SalesReportItem{
			Date:    o.CreatedAt,
			OrderID: o.ID.Hex(),
			Total:   o.Total,
			Status:  o.Status,
		})
	}
	return report, nil
}
