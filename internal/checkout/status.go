package checkout

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
)

// Caller identifies who asks for a status change. Staff may act on any order;
// everyone else only on their own.
type Caller struct {
	UserID primitive.ObjectID
	Staff  bool
}

// Cancel moves a Preparing order to Cancelled and puts its items back in
// stock. The status change is conditional, so concurrent cancels restock once.
func (s *Service) Cancel(ctx context.Context, orderID primitive.ObjectID, caller Caller) (*models.OrderView, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.Staff && order.UserID != caller.UserID {
		return nil, fmt.Errorf("%w: order %s", models.ErrNotFound, orderID.Hex())
	}
	if order.Status != models.StatusPreparing {
		return nil, fmt.Errorf("%w: an order that is %s can no longer be cancelled", models.ErrInvalidTransition, order.Status)
	}

	cancelled, err := s.orders.TransitionOrderStatus(ctx, orderID, models.StatusPreparing, models.StatusCancelled)
	if err != nil {
		return nil, err
	}
	if err := s.restock(ctx, cancelled); err != nil {
		return nil, err
	}

	s.log.Info("order cancelled", "order_id", orderID.Hex(), "by", caller.UserID.Hex(), "staff", caller.Staff)
	return models.UnresolvedView(cancelled), nil
}

// UpdateStatus advances an order one step. A request for Cancelled is handled
// by Cancel with staff rights.
func (s *Service) UpdateStatus(ctx context.Context, orderID primitive.ObjectID, status string, caller Caller) (*models.OrderView, error) {
	to, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	if to == models.StatusCancelled {
		caller.Staff = true
		return s.Cancel(ctx, orderID, caller)
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(order.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", models.ErrInvalidTransition, order.Status, to)
	}
	updated, err := s.orders.TransitionOrderStatus(ctx, orderID, order.Status, to)
	if err != nil {
		return nil, err
	}

	s.log.Info("order status changed", "order_id", orderID.Hex(), "from", order.Status, "to", to, "by", caller.UserID.Hex())
	return models.UnresolvedView(updated), nil
}

// SweepAbandoned cancels Preparing orders created before cutoff, restocking
// them, then deletes every Cancelled order. It returns how many were deleted.
func (s *Service) SweepAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	stale, err := s.orders.ListStaleOrders(ctx, models.StatusPreparing, cutoff)
	if err != nil {
		return 0, err
	}
	for _, o := range stale {
		cancelled, err := s.orders.TransitionOrderStatus(ctx, o.ID, models.StatusPreparing, models.StatusCancelled)
		if err != nil {
			// Moved on since it was listed.
			s.log.Warn("skipping stale order", "order_id", o.ID.Hex(), "error", err)
			continue
		}
		if err := s.restock(ctx, cancelled); err != nil {
			return 0, err
		}
	}

	deleted, err := s.orders.DeleteOrdersByStatus(ctx, models.StatusCancelled)
	if err != nil {
		return 0, err
	}
	s.log.Info("abandoned orders swept", "cancelled", len(stale), "deleted", deleted, "cutoff", cutoff)
	return deleted, nil
}
