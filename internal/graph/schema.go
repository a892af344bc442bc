package graph

import (
	"time"

	"github.com/graphql-go/graphql"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/checkout"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
)

type authPayload struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

func hexID(id primitive.ObjectID) interface{} {
	if id.IsZero() {
		return nil
	}
	return id.Hex()
}

func nonNull(t graphql.Output) graphql.Output {
	return graphql.NewNonNull(t)
}

// types holds the object types; some need the resolver for nested lookups.
type types struct {
	product     *graphql.Object
	order       *graphql.Object
	orderItem   *graphql.Object
	user        *graphql.Object
	address     *graphql.Object
	card        *graphql.Object
	coupon      *graphql.Object
	review      *graphql.Object
	bestSeller  *graphql.Object
	salesReport *graphql.Object
	quote       *graphql.Object
	quoteLine   *graphql.Object
	authPayload *graphql.Object

	orderItemInput *graphql.InputObject
	productInput   *graphql.InputObject
}

func newTypes(r *Resolver) *types {
	t := &types{}

	t.product = graphql.NewObject(graphql.ObjectConfig{
		Name: "Product",
		Fields: graphql.Fields{
			"id": {Type: nonNull(graphql.ID), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return hexID(p.Source.(*models.Product).ID), nil
			}},
			"name":          {Type: graphql.String},
			"description":   {Type: graphql.String},
			"price":         {Type: graphql.Float},
			"image":         {Type: graphql.String},
			"category":      {Type: graphql.String},
			"stock":         {Type: graphql.Int},
			"isAvailable":   {Type: graphql.Boolean},
			"createdAt":     {Type: graphql.DateTime},
			"averageRating": {Type: graphql.Float, Resolve: r.averageRating},
		},
	})

	t.orderItem = graphql.NewObject(graphql.ObjectConfig{
		Name: "OrderItem",
		Fields: graphql.Fields{
			"productId": {Type: nonNull(graphql.ID), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return hexID(p.Source.(models.ResolvedLineItem).ProductID), nil
			}},
			"product": {Type: t.product, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if prod := p.Source.(models.ResolvedLineItem).Product; prod != nil {
					return prod, nil
				}
				return nil, nil
			}},
			"quantity": {Type: graphql.Int, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(models.ResolvedLineItem).Quantity, nil
			}},
			"priceAtPurchase": {Type: graphql.Float, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(models.ResolvedLineItem).PriceAtPurchase, nil
			}},
		},
	})

	t.address = graphql.NewObject(graphql.ObjectConfig{
		Name: "Address",
		Fields: graphql.Fields{
			"id": {Type: nonNull(graphql.ID), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return hexID(p.Source.(models.Address).ID), nil
			}},
			"content": {Type: graphql.String},
		},
	})

	t.card = graphql.NewObject(graphql.ObjectConfig{
		Name: "SavedCard",
		Fields: graphql.Fields{
			"id": {Type: nonNull(graphql.ID), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return hexID(p.Source.(models.Card).ID), nil
			}},
			"brand": {Type: graphql.String},
			"last4": {Type: graphql.String},
			"token": {Type: graphql.String},
		},
	})

	t.user = graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id": {Type: nonNull(graphql.ID), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return hexID(p.Source.(*models.User).ID), nil
			}},
			"email":      {Type: graphql.String},
			"role":       {Type: graphql.String},
			"name":       {Type: graphql.String},
			"phone":      {Type: graphql.String},
			"addresses":  {Type: graphql.NewList(t.address)},
			"savedCards": {Type: graphql.NewList(t.card)},
			"createdAt":  {Type: graphql.DateTime},
		},
	})

	orderField := func(typ graphql.Output, get func(o *models.Order) interface{}) *graphql.Field {
		return &graphql.Field{Type: typ, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			return get(p.Source.(*models.OrderView).Order), nil
		}}
	}
	t.order = graphql.NewObject(graphql.ObjectConfig{
		Name: "Order",
		Fields: graphql.Fields{
			"id":              orderField(nonNull(graphql.ID), func(o *models.Order) interface{} { return hexID(o.ID) }),
			"userId":          orderField(graphql.ID, func(o *models.Order) interface{} { return hexID(o.UserID) }),
			"user":            {Type: t.user, Resolve: r.orderUser},
			"subtotal":        orderField(graphql.Float, func(o *models.Order) interface{} { return o.Subtotal }),
			"discountTotal":   orderField(graphql.Float, func(o *models.Order) interface{} { return o.DiscountTotal }),
			"deliveryCost":    orderField(graphql.Float, func(o *models.Order) interface{} { return o.DeliveryCost }),
			"total":           orderField(graphql.Float, func(o *models.Order) interface{} { return o.Total }),
			"couponCode":      orderField(graphql.String, func(o *models.Order) interface{} { return o.CouponCode }),
			"deliveryMethod":  orderField(graphql.String, func(o *models.Order) interface{} { return string(o.DeliveryMethod) }),
			"shippingAddress": orderField(graphql.String, func(o *models.Order) interface{} { return o.ShippingAddress }),
			"paymentMethod":   orderField(graphql.String, func(o *models.Order) interface{} { return string(o.PaymentMethod) }),
			"status":          orderField(graphql.String, func(o *models.Order) interface{} { return string(o.Status) }),
			"createdAt":       orderField(graphql.DateTime, func(o *models.Order) interface{} { return o.CreatedAt }),
			"items":           {Type: graphql.NewList(t.orderItem), Resolve: r.orderItems},
		},
	})

	t.coupon = graphql.NewObject(graphql.ObjectConfig{
		Name: "Coupon",
		Fields: graphql.Fields{
			"id": {Type: nonNull(graphql.ID), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return hexID(p.Source.(*models.Coupon).ID), nil
			}},
			"code":               {Type: graphql.String},
			"discountPercentage": {Type: graphql.Int},
			"expirationDate":     {Type: graphql.DateTime},
			"isActive":           {Type: graphql.Boolean},
		},
	})

	t.review = graphql.NewObject(graphql.ObjectConfig{
		Name: "Review",
		Fields: graphql.Fields{
			"id": {Type: nonNull(graphql.ID), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return hexID(p.Source.(*models.Review).ID), nil
			}},
			"productId": {Type: graphql.ID, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return hexID(p.Source.(*models.Review).ProductID), nil
			}},
			"userId": {Type: graphql.ID, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return hexID(p.Source.(*models.Review).UserID), nil
			}},
			"rating":    {Type: graphql.Int},
			"comment":   {Type: graphql.String},
			"status":    {Type: graphql.String},
			"createdAt": {Type: graphql.DateTime},
		},
	})

	t.bestSeller = graphql.NewObject(graphql.ObjectConfig{
		Name: "BestSeller",
		Fields: graphql.Fields{
			"productId": {Type: graphql.ID, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return hexID(p.Source.(*models.BestSeller).ProductID), nil
			}},
			"productName":  {Type: graphql.String},
			"totalUnits":   {Type: graphql.Int},
			"totalRevenue": {Type: graphql.Float},
		},
	})

	t.salesReport = graphql.NewObject(graphql.ObjectConfig{
		Name: "SalesReportItem",
		Fields: graphql.Fields{
			"date":    {Type: graphql.DateTime},
			"orderId": {Type: graphql.ID},
			"total":   {Type: graphql.Float},
			"status":  {Type: graphql.String},
		},
	})

	t.quoteLine = graphql.NewObject(graphql.ObjectConfig{
		Name: "QuoteLine",
		Fields: graphql.Fields{
			"product": {Type: t.product, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(checkout.QuoteLine).Product, nil
			}},
			"quantity": {Type: graphql.Int, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(checkout.QuoteLine).Quantity, nil
			}},
			"unitPrice": {Type: graphql.Float, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(checkout.QuoteLine).UnitPrice.InexactFloat64(), nil
			}},
			"lineTotal": {Type: graphql.Float, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(checkout.QuoteLine).LineTotal.InexactFloat64(), nil
			}},
		},
	})

	quoteField := func(typ graphql.Output, get func(q *checkout.Quote) interface{}) *graphql.Field {
		return &graphql.Field{Type: typ, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			return get(p.Source.(*checkout.Quote)), nil
		}}
	}
	t.quote = graphql.NewObject(graphql.ObjectConfig{
		Name: "Quote",
		Fields: graphql.Fields{
			"items":              quoteField(graphql.NewList(t.quoteLine), func(q *checkout.Quote) interface{} { return q.Lines }),
			"subtotal":           quoteField(graphql.Float, func(q *checkout.Quote) interface{} { return q.Subtotal.InexactFloat64() }),
			"discount":           quoteField(graphql.Float, func(q *checkout.Quote) interface{} { return q.Discount.InexactFloat64() }),
			"deliveryCost":       quoteField(graphql.Float, func(q *checkout.Quote) interface{} { return q.DeliveryCost.InexactFloat64() }),
			"total":              quoteField(graphql.Float, func(q *checkout.Quote) interface{} { return q.Total.InexactFloat64() }),
			"couponCode":         quoteField(graphql.String, func(q *checkout.Quote) interface{} { return q.CouponCode }),
			"discountPercentage": quoteField(graphql.Int, func(q *checkout.Quote) interface{} { return q.DiscountPercentage }),
		},
	})

	t.authPayload = graphql.NewObject(graphql.ObjectConfig{
		Name: "AuthPayload",
		Fields: graphql.Fields{
			"token":     {Type: nonNull(graphql.String)},
			"expiresAt": {Type: graphql.DateTime},
			"user":      {Type: t.user},
		},
	})

	t.orderItemInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "OrderItemInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"productId": {Type: graphql.NewNonNull(graphql.ID)},
			"quantity":  {Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	t.productInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "ProductInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"name":        {Type: graphql.String},
			"description": {Type: graphql.String},
			"price":       {Type: graphql.Float},
			"image":       {Type: graphql.String},
			"category":    {Type: graphql.String},
			"stock":       {Type: graphql.Int},
			"isAvailable": {Type: graphql.Boolean},
		},
	})

	return t
}

func newSchema(r *Resolver) (graphql.Schema, error) {
	t := newTypes(r)
	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType(r, t),
		Mutation: mutationType(r, t),
	})
}
