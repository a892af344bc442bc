package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	StatusPreparing OrderStatus = "Preparing"
	StatusShipped   OrderStatus = "Shipped"
	StatusDelivered OrderStatus = "Delivered"
	StatusCancelled OrderStatus = "Cancelled"
)

var OrderStatuses = []OrderStatus{StatusPreparing, StatusShipped, StatusDelivered, StatusCancelled}

// ParseOrderStatus accepts the exact status names.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range OrderStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: invalid status %q, use Preparing, Shipped, Delivered or Cancelled", ErrValidation, s)
}

// CanTransition reports whether an order may move from one status to another.
// Statuses only advance; cancellation is allowed from Preparing only.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case StatusPreparing:
		return to == StatusShipped || to == StatusCancelled
	case StatusShipped:
		return to == StatusDelivered
	default:
		return false
	}
}

type DeliveryMethod string

const (
	DeliveryPickup   DeliveryMethod = "pickup"
	DeliveryDelivery DeliveryMethod = "delivery"
)

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"user_id" json:"userId"`
	Items           []LineItem         `bson:"items" json:"items"`
	Subtotal        float64            `bson:"subtotal" json:"subtotal"`
	DiscountTotal   float64            `bson:"discount_total" json:"discountTotal"`
	DeliveryCost    float64            `bson:"delivery_cost" json:"deliveryCost"`
	Total           float64            `bson:"total" json:"total"`
	CouponCode      string             `bson:"coupon_code,omitempty" json:"couponCode"`
	DeliveryMethod  DeliveryMethod     `bson:"delivery_method" json:"deliveryMethod"`
	ShippingAddress string             `bson:"shipping_address,omitempty" json:"shippingAddress"`
	PaymentMethod   PaymentMethod      `bson:"payment_method" json:"paymentMethod"`
	PaymentRef      string             `bson:"payment_ref,omitempty" json:"-"`
	Status          OrderStatus        `bson:"status" json:"status"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
}

// LineItem is owned by its order. PriceAtPurchase is a snapshot and never
// follows later edits of the product price.
type LineItem struct {
	ProductID       primitive.ObjectID `bson:"product_id" json:"productId"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	PriceAtPurchase float64            `bson:"price_at_purchase" json:"priceAtPurchase"`
}

// ResolvedLineItem is a line item with its product record attached. Product is
// nil when the product was deleted after the order was placed.
type ResolvedLineItem struct {
	LineItem
	Product *Product
}

type ItemsState int

const (
	ItemsUnresolved ItemsState = iota
	ItemsResolved
)

// OrderView carries an order together with the state of its items. When State
// is ItemsResolved, Resolved holds one entry per Order.Items in the same order.
type OrderView struct {
	Order    *Order
	State    ItemsState
	Resolved []ResolvedLineItem
}

func UnresolvedView(o *Order) *OrderView {
	return &OrderView{Order: o, State: ItemsUnresolved}
}

// ResolveView attaches products to the order's items. Missing products stay nil.
func ResolveView(o *Order, products map[primitive.ObjectID]*Product) *OrderView {
	resolved := make([]ResolvedLineItem, len(o.Items))
	for i, it := range o.Items {
		resolved[i] = ResolvedLineItem{LineItem: it, Product: products[it.ProductID]}
	}
	return &OrderView{Order: o, State: ItemsResolved, Resolved: resolved}
}

// ProductIDs returns the distinct product ids referenced by the order.
func (o *Order) ProductIDs() []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(o.Items))
	ids := make([]primitive.ObjectID, 0, len(o.Items))
	for _, it := range o.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}
