package models

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProductFilter struct {
	Page     int
	Limit    int
	Category string
	Search   string
}

// ProductUpdate holds the fields of a partial product edit. Nil fields are left
// untouched.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *float64
	Image       *string
	Category    *Category
	Stock       *int
	IsAvailable *bool
}

func (m *MongoDB) GetProductByOID(ctx context.Context, id primitive.ObjectID) (*Product, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var p Product
	if err := m.Products.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, notFound(err, "product", id)
	}
	return &p, nil
}

func (m *MongoDB) GetProduct(ctx context.Context, id string) (*Product, error) {
	oid, err := ParseID("product", id)
	if err != nil {
		return nil, err
	}
	return m.GetProductByOID(ctx, oid)
}

// GetProductsByIDs returns the products found among ids, keyed by id.
func (m *MongoDB) GetProductsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*Product, error) {
	out := make(map[primitive.ObjectID]*Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	cur, err := m.Products.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var products []*Product
	if err := cur.All(ctx, &products); err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// ListProducts returns available products, newest first.
func (m *MongoDB) ListProducts(ctx context.Context, f ProductFilter) ([]*Product, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"is_available": true}
	if f.Category != "" && !strings.EqualFold(f.Category, "all") {
		filter["category"] = f.Category
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}

	skip, limit := pageOptions(f.Page, f.Limit, 50)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cur, err := m.Products.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	products := []*Product{}
	err = cur.All(ctx, &products)
	return products, err
}

func (m *MongoDB) InsertProduct(ctx context.Context, p *Product) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	prepareProduct(p)
	_, err := m.Products.InsertOne(ctx, p)
	return err
}

func (m *MongoDB) InsertProducts(ctx context.Context, products []*Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	docs := make([]interface{}, len(products))
	for i, p := range products {
		prepareProduct(p)
		docs[i] = p
	}
	res, err := m.Products.InsertMany(ctx, docs)
	if err != nil {
		return 0, err
	}
	return len(res.InsertedIDs), nil
}

func prepareProduct(p *Product) {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Image == "" {
		p.Image = DefaultProductImage
	}
	if p.Category == "" {
		p.Category = CategoryMain
	}
}

// UpdateProduct applies a partial edit and returns the updated product.
func (m *MongoDB) UpdateProduct(ctx context.Context, id primitive.ObjectID, u ProductUpdate) (*Product, error) {
	set := bson.M{}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Price != nil {
		set["price"] = *u.Price
	}
	if u.Image != nil {
		set["image"] = *u.Image
	}
	if u.Category != nil {
		set["category"] = *u.Category
	}
	if u.Stock != nil {
		set["stock"] = *u.Stock
	}
	if u.IsAvailable != nil {
		set["is_available"] = *u.IsAvailable
	}
	if len(set) == 0 {
		return m.GetProductByOID(ctx, id)
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var p Product
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := m.Products.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&p); err != nil {
		return nil, notFound(err, "product", id)
	}
	return &p, nil
}

func (m *MongoDB) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.Products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: product %s", ErrNotFound, id.Hex())
	}
	return nil
}

// AdjustStock adds delta to the product's stock in one atomic update. There is
// no floor: stock may go negative.
func (m *MongoDB) AdjustStock(ctx context.Context, id primitive.ObjectID, delta int) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.Products.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"stock": delta}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: product %s", ErrNotFound, id.Hex())
	}
	return nil
}

// ReserveStock decrements stock by qty only if at least qty units remain. The
// check and the decrement are a single conditional update.
func (m *MongoDB) ReserveStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": id, "stock": bson.M{"$gte": qty}}
	res, err := m.Products.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"stock": -qty}})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	var p Product
	err = m.Products.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"name": 1})).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: product %s", ErrNotFound, id.Hex())
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrInsufficientStock, p.Name)
}
