package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem is one requested line of a checkout.
type CartItem struct {
	ProductID primitive.ObjectID `json:"productId" validate:"required"`
	Quantity  int                `json:"quantity" validate:"min=1"`
}

// NormalizeCart merges lines for the same product, summing their quantities and
// keeping the position of the first occurrence.
func NormalizeCart(items []CartItem) []CartItem {
	index := make(map[primitive.ObjectID]int, len(items))
	out := make([]CartItem, 0, len(items))
	for _, it := range items {
		if i, ok := index[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}
