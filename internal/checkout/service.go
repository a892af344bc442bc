// Package checkout places, prices and cancels orders and keeps product stock
// in step with them.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/logger"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/validate"
)

type Catalog interface {
	GetProductsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Product, error)
	AdjustStock(ctx context.Context, id primitive.ObjectID, delta int) error
	ReserveStock(ctx context.Context, id primitive.ObjectID, qty int) error
}

type Coupons interface {
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
}

type Orders interface {
	InsertOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	TransitionOrderStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus) (*models.Order, error)
	ListStaleOrders(ctx context.Context, status models.OrderStatus, cutoff time.Time) ([]*models.Order, error)
	DeleteOrdersByStatus(ctx context.Context, status models.OrderStatus) (int64, error)
}

// Wallet stores payment cards on the customer's profile.
type Wallet interface {
	AddCard(ctx context.Context, userID primitive.ObjectID, card models.Card) (*models.User, error)
}

type Config struct {
	// StrictStock reserves stock with a conditional decrement before the order
	// is stored. When false, stock is decremented unconditionally afterwards.
	StrictStock bool
	// DeliveryFee is charged on delivery orders only.
	DeliveryFee decimal.Decimal
}

type Service struct {
	catalog  Catalog
	coupons  Coupons
	orders   Orders
	wallet   Wallet
	cfg      Config
	log      *logger.Logger
	validate *validate.Validator

	// Now is the clock used for coupon expiry and order timestamps.
	Now func() time.Time
}

func NewService(catalog Catalog, coupons Coupons, orders Orders, wallet Wallet, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		catalog:  catalog,
		coupons:  coupons,
		orders:   orders,
		wallet:   wallet,
		cfg:      cfg,
		log:      log.WithComponent("checkout"),
		validate: validate.New(),
		Now:      time.Now,
	}
}

// PlaceOrderRequest is one checkout attempt by an authenticated customer.
type PlaceOrderRequest struct {
	UserID          primitive.ObjectID    `json:"-" validate:"required"`
	Items           []models.CartItem     `json:"items" validate:"required,min=1,dive"`
	CouponCode      string                `json:"couponCode"`
	DeliveryMethod  models.DeliveryMethod `json:"deliveryMethod" validate:"oneof=pickup delivery"`
	ShippingAddress string                `json:"address" validate:"required_if=DeliveryMethod delivery"`
	PaymentToken    string                `json:"paymentToken"`
	SaveCard        bool                  `json:"saveCard"`
	CardLast4       string                `json:"cardLast4" validate:"omitempty,len=4,numeric"`
	CardBrand       string                `json:"cardBrand"`
}

// QuoteRequest prices a cart without placing it.
type QuoteRequest struct {
	Items          []models.CartItem     `json:"items" validate:"required,min=1,dive"`
	CouponCode     string                `json:"couponCode"`
	DeliveryMethod models.DeliveryMethod `json:"deliveryMethod" validate:"omitempty,oneof=pickup delivery"`
}

// Quote prices the cart exactly as PlaceOrder would, without side effects.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.DeliveryMethod == "" {
		req.DeliveryMethod = models.DeliveryPickup
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	lines, _, err := s.lookup(ctx, models.NormalizeCart(req.Items))
	if err != nil {
		return nil, err
	}
	return s.price(ctx, lines, req.CouponCode, req.DeliveryMethod)
}

// PlaceOrder looks up the cart, prices it, stores the order and adjusts stock.
// The returned view has its items resolved to the products read at lookup.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.OrderView, error) {
	if req.DeliveryMethod == "" {
		req.DeliveryMethod = models.DeliveryPickup
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	lines, products, err := s.lookup(ctx, models.NormalizeCart(req.Items))
	if err != nil {
		return nil, err
	}
	quote, err := s.price(ctx, lines, req.CouponCode, req.DeliveryMethod)
	if err != nil {
		return nil, err
	}

	order := s.buildOrder(req, quote)
	log := s.log.WithContext("order_id", order.ID.Hex(), "user_id", req.UserID.Hex())

	if s.cfg.StrictStock {
		if err := s.reserve(ctx, order.Items); err != nil {
			return nil, err
		}
	}

	if err := s.orders.InsertOrder(ctx, order); err != nil {
		if s.cfg.StrictStock {
			s.release(ctx, order.Items)
		}
		return nil, fmt.Errorf("store order: %w", err)
	}

	if !s.cfg.StrictStock {
		for _, it := range order.Items {
			if err := s.catalog.AdjustStock(ctx, it.ProductID, -it.Quantity); err != nil {
				log.Error("stock adjustment failed after order was stored",
					"product_id", it.ProductID.Hex(), "quantity", it.Quantity, "error", err)
				return nil, fmt.Errorf("order %s was recorded but stock could not be adjusted: %w", order.ID.Hex(), err)
			}
		}
	}

	if req.SaveCard && req.PaymentToken != "" && req.CardLast4 != "" {
		card := models.Card{Brand: req.CardBrand, Last4: req.CardLast4, Token: req.PaymentToken}
		if _, err := s.wallet.AddCard(ctx, req.UserID, card); err != nil {
			log.Warn("could not save card", "error", err)
		}
	}

	log.Info("order placed", "total", order.Total, "items", len(order.Items), "strict_stock", s.cfg.StrictStock)
	return models.ResolveView(order, products), nil
}

func (s *Service) buildOrder(req PlaceOrderRequest, q *Quote) *models.Order {
	items := make([]models.LineItem, len(q.Lines))
	for i, l := range q.Lines {
		items[i] = models.LineItem{
			ProductID:       l.Product.ID,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.Product.Price,
		}
	}

	order := &models.Order{
		ID:             primitive.NewObjectID(),
		UserID:         req.UserID,
		Items:          items,
		Subtotal:       q.Subtotal.InexactFloat64(),
		DiscountTotal:  q.Discount.InexactFloat64(),
		DeliveryCost:   q.DeliveryCost.InexactFloat64(),
		Total:          q.Total.InexactFloat64(),
		CouponCode:     q.CouponCode,
		DeliveryMethod: req.DeliveryMethod,
		PaymentMethod:  models.PaymentCash,
		Status:         models.StatusPreparing,
		CreatedAt:      s.Now().UTC(),
	}
	if req.DeliveryMethod == models.DeliveryDelivery {
		order.ShippingAddress = req.ShippingAddress
	}
	if req.PaymentToken != "" {
		order.PaymentMethod = models.PaymentCard
		order.PaymentRef = "pay_" + uuid.NewString()
	}
	return order
}

// line is a cart entry bound to the product record read at lookup.
type line struct {
	Product  *models.Product
	Quantity int
}

// lookup resolves every cart entry to a live product and stops at the first
// entry that is unknown, unavailable or short on stock.
func (s *Service) lookup(ctx context.Context, items []models.CartItem) ([]line, map[primitive.ObjectID]*models.Product, error) {
	ids := make([]primitive.ObjectID, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	lines := make([]line, 0, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, nil, fmt.Errorf("%w: quantity must be at least 1", models.ErrValidation)
		}
		p, ok := products[it.ProductID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: product %s", models.ErrNotFound, it.ProductID.Hex())
		}
		if !p.IsAvailable {
			return nil, nil, fmt.Errorf("%w: %s is not available", models.ErrValidation, p.Name)
		}
		if it.Quantity > p.Stock {
			return nil, nil, fmt.Errorf("%w: %s (requested %d, available %d)", models.ErrInsufficientStock, p.Name, it.Quantity, p.Stock)
		}
		lines = append(lines, line{Product: p, Quantity: it.Quantity})
	}
	return lines, products, nil
}

// reserve takes stock for every item with a conditional decrement. On failure
// the items reserved so far are released.
func (s *Service) reserve(ctx context.Context, items []models.LineItem) error {
	for i, it := range items {
		if err := s.catalog.ReserveStock(ctx, it.ProductID, it.Quantity); err != nil {
			s.release(ctx, items[:i])
			return err
		}
	}
	return nil
}

func (s *Service) release(ctx context.Context, items []models.LineItem) {
	for _, it := range items {
		if err := s.catalog.AdjustStock(ctx, it.ProductID, it.Quantity); err != nil {
			s.log.Error("could not release reserved stock",
				"product_id", it.ProductID.Hex(), "quantity", it.Quantity, "error", err)
		}
	}
}

func (s *Service) restock(ctx context.Context, o *models.Order) error {
	var errs []error
	for _, it := range o.Items {
		if err := s.catalog.AdjustStock(ctx, it.ProductID, it.Quantity); err != nil {
			s.log.Error("restock failed",
				"order_id", o.ID.Hex(), "product_id", it.ProductID.Hex(), "quantity", it.Quantity, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("order %s cancelled but restock failed: %w", o.ID.Hex(), errors.Join(errs...))
	}
	return nil
}
