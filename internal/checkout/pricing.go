package checkout

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
)

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

type QuoteLine struct {
	Product   *models.Product
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Quote is a priced cart. Total = Subtotal - Discount + DeliveryCost, each
// rounded to cents.
type Quote struct {
	Lines        []QuoteLine
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	DeliveryCost decimal.Decimal
	Total        decimal.Decimal
	// CouponCode is set only when a usable coupon was applied.
	CouponCode         string
	DiscountPercentage int
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// price totals the lines at the prices read during lookup. An unknown, expired
// or inactive coupon is ignored rather than rejected.
func (s *Service) price(ctx context.Context, lines []line, couponCode string, method models.DeliveryMethod) (*Quote, error) {
	q := &Quote{Lines: make([]QuoteLine, len(lines))}

	subtotal := decimal.Zero
	for i, l := range lines {
		unit := decimal.NewFromFloat(l.Product.Price)
		total := unit.Mul(decimal.NewFromInt(int64(l.Quantity)))
		q.Lines[i] = QuoteLine{Product: l.Product, Quantity: l.Quantity, UnitPrice: unit, LineTotal: round(total)}
		subtotal = subtotal.Add(total)
	}
	q.Subtotal = round(subtotal)

	q.Discount = decimal.Zero
	if code := models.NormalizeCouponCode(couponCode); code != "" {
		coupon, err := s.coupons.GetCouponByCode(ctx, code)
		switch {
		case errors.Is(err, models.ErrNotFound):
		case err != nil:
			return nil, err
		case coupon.Usable(s.Now()):
			pct := decimal.NewFromInt(int64(coupon.DiscountPercentage))
			q.Discount = round(q.Subtotal.Mul(pct).Div(hundred))
			q.CouponCode = coupon.Code
			q.DiscountPercentage = coupon.DiscountPercentage
		}
	}

	q.DeliveryCost = decimal.Zero
	if method == models.DeliveryDelivery {
		q.DeliveryCost = round(s.cfg.DeliveryFee)
	}

	q.Total = round(q.Subtotal.Sub(q.Discount).Add(q.DeliveryCost))
	return q, nil
}
