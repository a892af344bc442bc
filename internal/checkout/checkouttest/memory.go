// Package checkouttest provides an in-memory store with the same conditional
// update semantics as the MongoDB store, for tests.
package checkouttest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
)

type Store struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]*models.Product
	coupons  map[string]*models.Coupon
	orders   map[primitive.ObjectID]*models.Order
	cards    map[primitive.ObjectID][]models.Card

	// FailInsertOrder makes InsertOrder return this error when set.
	FailInsertOrder error
	// FailAdjustStock makes AdjustStock return this error when set.
	FailAdjustStock error
}

func NewStore() *Store {
	return &Store{
		products: map[primitive.ObjectID]*models.Product{},
		coupons:  map[string]*models.Coupon{},
		orders:   map[primitive.ObjectID]*models.Order{},
		cards:    map[primitive.ObjectID][]models.Card{},
	}
}

// AddProduct stores an available product and returns it.
func (s *Store) AddProduct(name string, price float64, stock int) *models.Product {
	p := &models.Product{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Price:       price,
		Stock:       stock,
		Category:    models.CategoryMain,
		Image:       models.DefaultProductImage,
		IsAvailable: true,
		CreatedAt:   time.Now().UTC(),
	}
	_ = s.InsertProduct(context.Background(), p)
	return p
}

func (s *Store) AddCoupon(code string, pct int, expires time.Time, active bool) *models.Coupon {
	c := &models.Coupon{Code: code, DiscountPercentage: pct, ExpirationDate: expires, IsActive: active}
	_ = s.InsertCoupon(context.Background(), c)
	return c
}

// Stock returns the current stock of a product, or -1 if it does not exist.
func (s *Store) Stock(id primitive.ObjectID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		return p.Stock
	}
	return -1
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) Cards(userID primitive.ObjectID) []models.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Card(nil), s.cards[userID]...)
}

func (s *Store) GetProductByOID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", models.ErrNotFound, id.Hex())
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	oid, err := models.ParseID("product", id)
	if err != nil {
		return nil, err
	}
	return s.GetProductByOID(ctx, oid)
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[primitive.ObjectID]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

// ListProducts applies the category and case-insensitive search filters and
// pages by creation order.
func (s *Store) ListProducts(_ context.Context, f models.ProductFilter) ([]*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	search := strings.ToLower(f.Search)
	out := []*models.Product{}
	for _, p := range s.products {
		if !p.IsAvailable {
			continue
		}
		if f.Category != "" && f.Category != "all" && string(p.Category) != f.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, f.Page, f.Limit, 50), nil
}

func (s *Store) InsertProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *Store) InsertProducts(ctx context.Context, products []*models.Product) (int, error) {
	for _, p := range products {
		if err := s.InsertProduct(ctx, p); err != nil {
			return 0, err
		}
	}
	return len(products), nil
}

func (s *Store) UpdateProduct(_ context.Context, id primitive.ObjectID, u models.ProductUpdate) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", models.ErrNotFound, id.Hex())
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Image != nil {
		p.Image = *u.Image
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.IsAvailable != nil {
		p.IsAvailable = *u.IsAvailable
	}
	cp := *p
	return &cp, nil
}

func (s *Store) DeleteProduct(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("%w: product %s", models.ErrNotFound, id.Hex())
	}
	delete(s.products, id)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, id primitive.ObjectID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAdjustStock != nil {
		return s.FailAdjustStock
	}
	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("%w: product %s", models.ErrNotFound, id.Hex())
	}
	p.Stock += delta
	return nil
}

func (s *Store) ReserveStock(_ context.Context, id primitive.ObjectID, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("%w: product %s", models.ErrNotFound, id.Hex())
	}
	if p.Stock < qty {
		return fmt.Errorf("%w: %s", models.ErrInsufficientStock, p.Name)
	}
	p.Stock -= qty
	return nil
}

func (s *Store) GetCouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code = models.NormalizeCouponCode(code)
	c, ok := s.coupons[code]
	if !ok {
		return nil, fmt.Errorf("%w: coupon %q", models.ErrNotFound, code)
	}
	cp := *c
	return &cp, nil
}

func (s *Store) InsertCoupon(_ context.Context, c *models.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Code = models.NormalizeCouponCode(c.Code)
	if _, ok := s.coupons[c.Code]; ok {
		return fmt.Errorf("%w: coupon %q", models.ErrDuplicate, c.Code)
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	cp := *c
	s.coupons[c.Code] = &cp
	return nil
}

func (s *Store) InsertOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInsertOrder != nil {
		return s.FailInsertOrder
	}
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *Store) GetOrder(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", models.ErrNotFound, id.Hex())
	}
	return cloneOrder(o), nil
}

func (s *Store) GetOrdersByUser(_ context.Context, userID primitive.ObjectID, pg, limit int) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Order{}
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, pg, limit, 10), nil
}

func (s *Store) TransitionOrderStatus(_ context.Context, id primitive.ObjectID, from, to models.OrderStatus) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", models.ErrNotFound, id.Hex())
	}
	if o.Status != from {
		return nil, fmt.Errorf("%w: order is %s, expected %s", models.ErrInvalidTransition, o.Status, from)
	}
	o.Status = to
	return cloneOrder(o), nil
}

func (s *Store) ListStaleOrders(_ context.Context, status models.OrderStatus, cutoff time.Time) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Order{}
	for _, o := range s.orders {
		if o.Status == status && o.CreatedAt.Before(cutoff) {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (s *Store) DeleteOrdersByStatus(_ context.Context, status models.OrderStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, o := range s.orders {
		if o.Status == status {
			delete(s.orders, id)
			n++
		}
	}
	return n, nil
}

// AddCard records the card unless the token is already saved. The returned
// user carries only the id and the wallet.
func (s *Store) AddCard(_ context.Context, userID primitive.ObjectID, card models.Card) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exists := false
	for _, c := range s.cards[userID] {
		if c.Token == card.Token {
			exists = true
			break
		}
	}
	if !exists {
		if card.ID.IsZero() {
			card.ID = primitive.NewObjectID()
		}
		s.cards[userID] = append(s.cards[userID], card)
	}
	return &models.User{ID: userID, SavedCards: append([]models.Card(nil), s.cards[userID]...)}, nil
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.LineItem(nil), o.Items...)
	return &cp
}

func page[T any](items []T, pg, limit, defLimit int) []T {
	if limit <= 0 || limit > 100 {
		limit = defLimit
	}
	if pg < 1 {
		pg = 1
	}
	start := (pg - 1) * limit
	if start >= len(items) {
		return items[:0]
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
