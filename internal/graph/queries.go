package graph

import (
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/auth"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/checkout"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
)

func queryType(r *Resolver, t *types) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"hello": {
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return "Masala API is running", nil
				},
			},
			"getProducts": {
				Type: graphql.NewList(t.product),
				Args: graphql.FieldConfigArgument{
					"page":     {Type: graphql.Int, DefaultValue: 1},
					"limit":    {Type: graphql.Int, DefaultValue: 50},
					"category": {Type: graphql.String},
					"search":   {Type: graphql.String},
				},
				Resolve: r.getProducts,
			},
			"getProduct": {
				Type:    t.product,
				Args:    graphql.FieldConfigArgument{"id": {Type: graphql.NewNonNull(graphql.ID)}},
				Resolve: r.getProduct,
			},
			"getProductReviews": {
				Type:    graphql.NewList(t.review),
				Args:    graphql.FieldConfigArgument{"productId": {Type: graphql.NewNonNull(graphql.ID)}},
				Resolve: r.getProductReviews,
			},
			"myProfile": {
				Type:    t.user,
				Resolve: r.myProfile,
			},
			"myOrders": {
				Type: graphql.NewList(t.order),
				Args: graphql.FieldConfigArgument{
					"page":  {Type: graphql.Int, DefaultValue: 1},
					"limit": {Type: graphql.Int, DefaultValue: 10},
				},
				Resolve: r.myOrders,
			},
			"validateCoupon": {
				Type:    t.coupon,
				Args:    graphql.FieldConfigArgument{"code": {Type: graphql.NewNonNull(graphql.String)}},
				Resolve: r.validateCoupon,
			},
			"quoteOrder": {
				Type: t.quote,
				Args: graphql.FieldConfigArgument{
					"items":          {Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t.orderItemInput)))},
					"couponCode":     {Type: graphql.String},
					"deliveryMethod": {Type: graphql.String, DefaultValue: string(models.DeliveryPickup)},
				},
				Resolve: r.quoteOrder,
			},
			"getBestSellers": {
				Type: graphql.NewList(t.bestSeller),
				Args: graphql.FieldConfigArgument{
					"limit":  {Type: graphql.Int, DefaultValue: 8},
					"sortBy": {Type: graphql.String, DefaultValue: "units"},
				},
				Resolve: r.getBestSellers,
			},
			"getSalesReport": {
				Type: graphql.NewList(t.salesReport),
				Args: graphql.FieldConfigArgument{
					"startDate": {Type: graphql.String},
					"endDate":   {Type: graphql.String},
				},
				Resolve: r.getSalesReport,
			},
			"getPendingReviews": {
				Type:    graphql.NewList(t.review),
				Resolve: r.getPendingReviews,
			},
		},
	})
}

func (r *Resolver) getProducts(p graphql.ResolveParams) (interface{}, error) {
	return r.Catalog.ListProducts(p.Context, models.ProductFilter{
		Page:     argInt(p, "page", 1),
		Limit:    argInt(p, "limit", 50),
		Category: argString(p, "category"),
		Search:   argString(p, "search"),
	})
}

func (r *Resolver) getProduct(p graphql.ResolveParams) (interface{}, error) {
	return r.Catalog.GetProduct(p.Context, argString(p, "id"))
}

func (r *Resolver) averageRating(p graphql.ResolveParams) (interface{}, error) {
	if r.Reviews == nil {
		return 0.0, nil
	}
	return r.Reviews.AverageRating(p.Context, p.Source.(*models.Product).ID)
}

func (r *Resolver) getProductReviews(p graphql.ResolveParams) (interface{}, error) {
	id, err := models.ParseID("product", argString(p, "productId"))
	if err != nil {
		return nil, err
	}
	return r.Reviews.GetProductReviews(p.Context, id)
}

func (r *Resolver) myProfile(p graphql.ResolveParams) (interface{}, error) {
	id, err := auth.Require(p.Context)
	if err != nil {
		return nil, err
	}
	return r.Users.Get(p.Context, id.UserID)
}

// myOrders loads the products of every listed order in one query.
func (r *Resolver) myOrders(p graphql.ResolveParams) (interface{}, error) {
	id, err := auth.Require(p.Context)
	if err != nil {
		return nil, err
	}
	orders, err := r.Orders.GetOrdersByUser(p.Context, id.UserID, argInt(p, "page", 1), argInt(p, "limit", 10))
	if err != nil {
		return nil, err
	}

	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	for _, o := range orders {
		for _, pid := range o.ProductIDs() {
			if !seen[pid] {
				seen[pid] = true
				ids = append(ids, pid)
			}
		}
	}
	products, err := r.Catalog.GetProductsByIDs(p.Context, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*models.OrderView, len(orders))
	for i, o := range orders {
		views[i] = models.ResolveView(o, products)
	}
	return views, nil
}

// orderItems returns the order's lines with their products, fetching them
// only when the view does not carry them yet.
func (r *Resolver) orderItems(p graphql.ResolveParams) (interface{}, error) {
	view := p.Source.(*models.OrderView)
	switch view.State {
	case models.ItemsResolved:
		return view.Resolved, nil
	case models.ItemsUnresolved:
		products, err := r.Catalog.GetProductsByIDs(p.Context, view.Order.ProductIDs())
		if err != nil {
			return nil, err
		}
		return models.ResolveView(view.Order, products).Resolved, nil
	default:
		return nil, fmt.Errorf("unknown order item state %d", view.State)
	}
}

// orderUser loads the customer who placed the order. A deleted account
// resolves to null.
func (r *Resolver) orderUser(p graphql.ResolveParams) (interface{}, error) {
	u, err := r.Users.Get(p.Context, p.Source.(*models.OrderView).Order.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Resolver) validateCoupon(p graphql.ResolveParams) (interface{}, error) {
	c, err := r.Coupons.GetCouponByCode(p.Context, argString(p, "code"))
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid coupon", models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, fmt.Errorf("%w: coupon is no longer active", models.ErrValidation)
	}
	if !c.Usable(r.now()) {
		return nil, fmt.Errorf("%w: coupon has expired", models.ErrValidation)
	}
	return c, nil
}

func (r *Resolver) quoteOrder(p graphql.ResolveParams) (interface{}, error) {
	items, err := cartItems(p.Args["items"])
	if err != nil {
		return nil, err
	}
	return r.Checkout.Quote(p.Context, checkout.QuoteRequest{
		Items:          items,
		CouponCode:     argString(p, "couponCode"),
		DeliveryMethod: models.DeliveryMethod(argString(p, "deliveryMethod")),
	})
}

func (r *Resolver) getBestSellers(p graphql.ResolveParams) (interface{}, error) {
	if _, err := auth.Authorize(p.Context, auth.CapViewReports); err != nil {
		return nil, err
	}
	return r.Reports.BestSellers(p.Context, argInt(p, "limit", 8), argString(p, "sortBy"))
}

func (r *Resolver) getSalesReport(p graphql.ResolveParams) (interface{}, error) {
	if _, err := auth.Authorize(p.Context, auth.CapViewReports); err != nil {
		return nil, err
	}
	from, err := parseDate(argString(p, "startDate"), false)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(argString(p, "endDate"), true)
	if err != nil {
		return nil, err
	}
	return r.Reports.SalesReport(p.Context, from, to)
}

func (r *Resolver) getPendingReviews(p graphql.ResolveParams) (interface{}, error) {
	if _, err := auth.Authorize(p.Context, auth.CapModerateReviews); err != nil {
		return nil, err
	}
	return r.Reviews.GetPendingReviews(p.Context)
}
