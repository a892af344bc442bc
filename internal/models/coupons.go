package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// NormalizeCouponCode returns the stored form of a coupon code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GetCouponByCode looks a coupon up case-insensitively, regardless of whether
// it is still usable.
func (m *MongoDB) GetCouponByCode(ctx context.Context, code string) (*Coupon, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	code = NormalizeCouponCode(code)
	var c Coupon
	err := m.Coupons.FindOne(ctx, bson.M{"code": code}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: coupon %q", ErrNotFound, code)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (m *MongoDB) InsertCoupon(ctx context.Context, c *Coupon) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	c.Code = NormalizeCouponCode(c.Code)
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := m.Coupons.InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: coupon %q", ErrDuplicate, c.Code)
	}
	return err
}
