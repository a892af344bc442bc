package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/graphql-go/graphql"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/auth"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/checkout"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/logger"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/mailer"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/repository"
)

func mutationType(r *Resolver, t *types) *graphql.Object {
	id := func(name string) graphql.FieldConfigArgument {
		return graphql.FieldConfigArgument{name: {Type: graphql.NewNonNull(graphql.ID)}}
	}
	str := graphql.NewNonNull(graphql.String)

	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"register": {
				Type: t.authPayload,
				Args: graphql.FieldConfigArgument{
					"email":    {Type: str},
					"password": {Type: str},
					"name":     {Type: graphql.String},
					"phone":    {Type: graphql.String},
				},
				Resolve: r.register,
			},
			"login": {
				Type:    t.authPayload,
				Args:    graphql.FieldConfigArgument{"email": {Type: str}, "password": {Type: str}},
				Resolve: r.login,
			},
			"logout": {Type: graphql.Boolean, Resolve: r.logout},
			"requestPasswordReset": {
				Type:    graphql.Boolean,
				Args:    graphql.FieldConfigArgument{"email": {Type: str}},
				Resolve: r.requestPasswordReset,
			},
			"resetPassword": {
				Type:    graphql.Boolean,
				Args:    graphql.FieldConfigArgument{"token": {Type: str}, "newPassword": {Type: str}},
				Resolve: r.resetPassword,
			},

			"createProduct": {
				Type:    t.product,
				Args:    graphql.FieldConfigArgument{"input": {Type: graphql.NewNonNull(t.productInput)}},
				Resolve: r.createProduct,
			},
			"updateProduct": {
				Type: t.product,
				Args: graphql.FieldConfigArgument{
					"id":    {Type: graphql.NewNonNull(graphql.ID)},
					"input": {Type: graphql.NewNonNull(t.productInput)},
				},
				Resolve: r.updateProduct,
			},
			"deleteProduct": {Type: graphql.Boolean, Args: id("id"), Resolve: r.deleteProduct},
			"bulkCreateProducts": {
				Type:    graphql.Int,
				Args:    graphql.FieldConfigArgument{"products": {Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t.productInput)))}},
				Resolve: r.bulkCreateProducts,
			},
			"createCoupon": {
				Type: t.coupon,
				Args: graphql.FieldConfigArgument{
					"code":               {Type: str},
					"discountPercentage": {Type: graphql.NewNonNull(graphql.Int)},
					"daysValid":          {Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: r.createCoupon,
			},
			"updateOrderStatus": {
				Type: t.order,
				Args: graphql.FieldConfigArgument{
					"orderId": {Type: graphql.NewNonNull(graphql.ID)},
					"status":  {Type: str},
				},
				Resolve: r.updateOrderStatus,
			},
			"approveReview":       {Type: t.review, Args: id("id"), Resolve: r.moderateReview(models.ReviewApproved)},
			"rejectReview":        {Type: t.review, Args: id("id"), Resolve: r.moderateReview(models.ReviewRejected)},
			"cleanAbandonedCarts": {Type: graphql.Int, Resolve: r.cleanAbandonedCarts},

			"updateProfile": {
				Type:    t.user,
				Args:    graphql.FieldConfigArgument{"name": {Type: graphql.String}, "phone": {Type: graphql.String}},
				Resolve: r.updateProfile,
			},
			"addAddress": {
				Type:    t.user,
				Args:    graphql.FieldConfigArgument{"content": {Type: str}},
				Resolve: r.addAddress,
			},
			"deleteAddress": {Type: t.user, Args: id("addressId"), Resolve: r.deleteAddress},
			"saveCard": {
				Type: t.user,
				Args: graphql.FieldConfigArgument{
					"token": {Type: str},
					"last4": {Type: str},
					"brand": {Type: graphql.String},
				},
				Resolve: r.saveCard,
			},
			"deleteCard": {Type: t.user, Args: id("cardId"), Resolve: r.deleteCard},
			"createReview": {
				Type: t.review,
				Args: graphql.FieldConfigArgument{
					"productId": {Type: graphql.NewNonNull(graphql.ID)},
					"rating":    {Type: graphql.NewNonNull(graphql.Int)},
					"comment":   {Type: graphql.String},
				},
				Resolve: r.createReview,
			},
			"placeOrder": {
				Type: t.order,
				Args: graphql.FieldConfigArgument{
					"items":          {Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t.orderItemInput)))},
					"couponCode":     {Type: graphql.String},
					"deliveryMethod": {Type: graphql.String, DefaultValue: string(models.DeliveryPickup)},
					"address":        {Type: graphql.String},
					"paymentToken":   {Type: graphql.String},
					"saveCard":       {Type: graphql.Boolean, DefaultValue: false},
					"cardLast4":      {Type: graphql.String},
					"cardBrand":      {Type: graphql.String},
				},
				Resolve: r.placeOrder,
			},
			"cancelOrder": {Type: t.order, Args: id("orderId"), Resolve: r.cancelOrder},
		},
	})
}

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func (r *Resolver) issue(p graphql.ResolveParams, u *models.User) (*authPayload, error) {
	token, expires, err := r.Sessions.Issue(p.Context, auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return nil, err
	}
	return &authPayload{Token: token, ExpiresAt: expires, User: u}, nil
}

func (r *Resolver) register(p graphql.ResolveParams) (interface{}, error) {
	in := credentials{Email: repository.NormalizeEmail(argString(p, "email")), Password: argString(p, "password")}
	if err := r.validate.Struct(in); err != nil {
		return nil, err
	}
	u, err := r.Users.Insert(p.Context, in.Email, in.Password, models.RoleCustomer)
	if err != nil {
		return nil, err
	}

	name, phone := optString(p.Args, "name"), optString(p.Args, "phone")
	if name != nil || phone != nil {
		if u, err = r.Users.UpdateProfile(p.Context, u.ID, repository.ProfileUpdate{Name: name, Phone: phone}); err != nil {
			return nil, err
		}
	}
	r.Log.Info("user registered", "user_id", u.ID.Hex())
	return r.issue(p, u)
}

func (r *Resolver) login(p graphql.ResolveParams) (interface{}, error) {
	u, err := r.Users.Authenticate(p.Context, argString(p, "email"), argString(p, "password"))
	if err != nil {
		return nil, err
	}
	return r.issue(p, u)
}

func (r *Resolver) logout(p graphql.ResolveParams) (interface{}, error) {
	if err := r.Sessions.Revoke(p.Context, auth.TokenFromContext(p.Context)); err != nil {
		return nil, err
	}
	return true, nil
}

// requestPasswordReset answers true whether or not the email is registered.
func (r *Resolver) requestPasswordReset(p graphql.ResolveParams) (interface{}, error) {
	u, token, err := r.Users.CreateResetToken(p.Context, argString(p, "email"))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return true, nil
	}
	link := mailer.ResetLink(r.FrontendURL, token)
	if err := r.Mailer.SendPasswordReset(p.Context, u.Email, link); err != nil {
		logger.FromContext(p.Context, r.Log).Error("password reset email failed", "user_id", u.ID.Hex(), "error", err)
	}
	return true, nil
}

func (r *Resolver) resetPassword(p graphql.ResolveParams) (interface{}, error) {
	in := struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
	}{argString(p, "token"), argString(p, "newPassword")}
	if err := r.validate.Struct(in); err != nil {
		return nil, err
	}
	if err := r.Users.ResetPassword(p.Context, in.Token, in.NewPassword); err != nil {
		return nil, err
	}
	return true, nil
}

type productInput struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       float64         `json:"price" validate:"gt=0"`
	Image       string          `json:"image" validate:"omitempty,url"`
	Category    models.Category `json:"category" validate:"omitempty,oneof=starter main dessert beverage"`
	Stock       int             `json:"stock" validate:"gte=0"`
	IsAvailable *bool           `json:"isAvailable"`
}

func (r *Resolver) newProduct(raw interface{}) (*models.Product, error) {
	m, _ := raw.(map[string]interface{})
	in := productInput{
		Name:        strings.TrimSpace(argFrom(m, "name")),
		Description: argFrom(m, "description"),
		Image:       argFrom(m, "image"),
		Category:    models.Category(argFrom(m, "category")),
		IsAvailable: optBool(m, "isAvailable"),
	}
	if f := optFloat(m, "price"); f != nil {
		in.Price = *f
	}
	if n := optInt(m, "stock"); n != nil {
		in.Stock = *n
	}
	if err := r.validate.Struct(in); err != nil {
		return nil, err
	}
	p := &models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Image:       in.Image,
		Category:    in.Category,
		Stock:       in.Stock,
		IsAvailable: true,
	}
	if in.IsAvailable != nil {
		p.IsAvailable = *in.IsAvailable
	}
	return p, nil
}

func (r *Resolver) createProduct(p graphql.ResolveParams) (interface{}, error) {
	if _, err := auth.Authorize(p.Context, auth.CapManageCatalog); err != nil {
		return nil, err
	}
	prod, err := r.newProduct(p.Args["input"])
	if err != nil {
		return nil, err
	}
	if err := r.Catalog.InsertProduct(p.Context, prod); err != nil {
		return nil, err
	}
	return prod, nil
}

func (r *Resolver) bulkCreateProducts(p graphql.ResolveParams) (interface{}, error) {
	if _, err := auth.Authorize(p.Context, auth.CapManageCatalog); err != nil {
		return nil, err
	}
	list, _ := p.Args["products"].([]interface{})
	products := make([]*models.Product, 0, len(list))
	for i, raw := range list {
		prod, err := r.newProduct(raw)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i+1, err)
		}
		products = append(products, prod)
	}
	return r.Catalog.InsertProducts(p.Context, products)
}

func (r *Resolver) updateProduct(p graphql.ResolveParams) (interface{}, error) {
	if _, err := auth.Authorize(p.Context, auth.CapManageCatalog); err != nil {
		return nil, err
	}
	id, err := models.ParseID("product", argString(p, "id"))
	if err != nil {
		return nil, err
	}
	m, _ := p.Args["input"].(map[string]interface{})
	u := models.ProductUpdate{
		Name:        optString(m, "name"),
		Description: optString(m, "description"),
		Price:       optFloat(m, "price"),
		Image:       optString(m, "image"),
		Stock:       optInt(m, "stock"),
		IsAvailable: optBool(m, "isAvailable"),
	}
	if c := optString(m, "category"); c != nil {
		cat := models.Category(*c)
		u.Category = &cat
	}
	check := struct {
		Name     *string          `json:"name" validate:"omitempty,min=1"`
		Price    *float64         `json:"price" validate:"omitempty,gt=0"`
		Stock    *int             `json:"stock" validate:"omitempty,gte=0"`
		Category *models.Category `json:"category" validate:"omitempty,oneof=starter main dessert beverage"`
	}{u.Name, u.Price, u.Stock, u.Category}
	if err := r.validate.Struct(check); err != nil {
		return nil, err
	}
	return r.Catalog.UpdateProduct(p.Context, id, u)
}

func (r *Resolver) deleteProduct(p graphql.ResolveParams) (interface{}, error) {
	if _, err := auth.Authorize(p.Context, auth.CapManageCatalog); err != nil {
		return nil, err
	}
	id, err := models.ParseID("product", argString(p, "id"))
	if err != nil {
		return nil, err
	}
	if err := r.Catalog.DeleteProduct(p.Context, id); err != nil {
		return nil, err
	}
	return true, nil
}

func (r *Resolver) createCoupon(p graphql.ResolveParams) (interface{}, error) {
	if _, err := auth.Authorize(p.Context, auth.CapManageCoupons); err != nil {
		return nil, err
	}
	in := struct {
		Code               string `json:"code" validate:"required,alphanum,max=32"`
		DiscountPercentage int    `json:"discountPercentage" validate:"min=1,max=100"`
		DaysValid          int    `json:"daysValid" validate:"min=1"`
	}{models.NormalizeCouponCode(argString(p, "code")), argInt(p, "discountPercentage", 0), argInt(p, "daysValid", 0)}
	if err := r.validate.Struct(in); err != nil {
		return nil, err
	}
	c := &models.Coupon{
		Code:               in.Code,
		DiscountPercentage: in.DiscountPercentage,
		ExpirationDate:     r.now().Add(time.Duration(in.DaysValid) * 24 * time.Hour).UTC(),
		IsActive:           true,
	}
	if err := r.Coupons.InsertCoupon(p.Context, c); err != nil {
		return nil, err
	}
	return c, nil
}

// updateOrderStatus lets order managers make any allowed move. Delivery staff
// may only advance orders toward Delivered.
func (r *Resolver) updateOrderStatus(p graphql.ResolveParams) (interface{}, error) {
	caller, err := auth.Require(p.Context)
	if err != nil {
		return nil, err
	}
	status := argString(p, "status")
	switch {
	case auth.Can(caller.Role, auth.CapManageOrders):
	case auth.Can(caller.Role, auth.CapAdvanceDelivery) && status != string(models.StatusCancelled):
	default:
		return nil, fmt.Errorf("%w: %s role cannot set orders to %s", models.ErrForbidden, caller.Role, status)
	}

	id, err := models.ParseID("order", argString(p, "orderId"))
	if err != nil {
		return nil, err
	}
	return r.Checkout.UpdateStatus(p.Context, id, status, checkout.Caller{UserID: caller.UserID, Staff: true})
}

func (r *Resolver) moderateReview(status models.ReviewStatus) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		if _, err := auth.Authorize(p.Context, auth.CapModerateReviews); err != nil {
			return nil, err
		}
		id, err := models.ParseID("review", argString(p, "id"))
		if err != nil {
			return nil, err
		}
		return r.Reviews.SetReviewStatus(p.Context, id, status)
	}
}

func (r *Resolver) cleanAbandonedCarts(p graphql.ResolveParams) (interface{}, error) {
	if _, err := auth.Authorize(p.Context, auth.CapManageOrders); err != nil {
		return nil, err
	}
	deleted, err := r.Checkout.SweepAbandoned(p.Context, r.now().Add(-r.AbandonAfter))
	if err != nil {
		return nil, err
	}
	return int(deleted), nil
}

func (r *Resolver) updateProfile(p graphql.ResolveParams) (interface{}, error) {
	id, err := auth.Require(p.Context)
	if err != nil {
		return nil, err
	}
	return r.Users.UpdateProfile(p.Context, id.UserID, repository.ProfileUpdate{
		Name:  optString(p.Args, "name"),
		Phone: optString(p.Args, "phone"),
	})
}

func (r *Resolver) addAddress(p graphql.ResolveParams) (interface{}, error) {
	id, err := auth.Require(p.Context)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(argString(p, "content"))
	if content == "" {
		return nil, fmt.Errorf("%w: address is required", models.ErrValidation)
	}
	return r.Users.AddAddress(p.Context, id.UserID, content)
}

func (r *Resolver) deleteAddress(p graphql.ResolveParams) (interface{}, error) {
	id, err := auth.Require(p.Context)
	if err != nil {
		return nil, err
	}
	addrID, err := models.ParseID("address", argString(p, "addressId"))
	if err != nil {
		return nil, err
	}
	return r.Users.DeleteAddress(p.Context, id.UserID, addrID)
}

func (r *Resolver) saveCard(p graphql.ResolveParams) (interface{}, error) {
	id, err := auth.Require(p.Context)
	if err != nil {
		return nil, err
	}
	in := struct {
		Token string `json:"token" validate:"required"`
		Last4 string `json:"last4" validate:"len=4,numeric"`
		Brand string `json:"brand"`
	}{argString(p, "token"), argString(p, "last4"), argString(p, "brand")}
	if err := r.validate.Struct(in); err != nil {
		return nil, err
	}
	return r.Users.AddCard(p.Context, id.UserID, models.Card{Token: in.Token, Last4: in.Last4, Brand: in.Brand})
}

func (r *Resolver) deleteCard(p graphql.ResolveParams) (interface{}, error) {
	id, err := auth.Require(p.Context)
	if err != nil {
		return nil, err
	}
	cardID, err := models.ParseID("card", argString(p, "cardId"))
	if err != nil {
		return nil, err
	}
	return r.Users.DeleteCard(p.Context, id.UserID, cardID)
}

func (r *Resolver) createReview(p graphql.ResolveParams) (interface{}, error) {
	id, err := auth.Require(p.Context)
	if err != nil {
		return nil, err
	}
	in := struct {
		Rating  int    `json:"rating" validate:"min=1,max=5"`
		Comment string `json:"comment" validate:"max=1000"`
	}{argInt(p, "rating", 0), strings.TrimSpace(argString(p, "comment"))}
	if err := r.validate.Struct(in); err != nil {
		return nil, err
	}
	prod, err := r.Catalog.GetProduct(p.Context, argString(p, "productId"))
	if err != nil {
		return nil, err
	}
	review := &models.Review{ProductID: prod.ID, UserID: id.UserID, Rating: in.Rating, Comment: in.Comment}
	if err := r.Reviews.AddReview(p.Context, review); err != nil {
		return nil, err
	}
	return review, nil
}

func (r *Resolver) placeOrder(p graphql.ResolveParams) (interface{}, error) {
	id, err := auth.Require(p.Context)
	if err != nil {
		return nil, err
	}
	items, err := cartItems(p.Args["items"])
	if err != nil {
		return nil, err
	}
	return r.Checkout.PlaceOrder(p.Context, checkout.PlaceOrderRequest{
		UserID:          id.UserID,
		Items:           items,
		CouponCode:      argString(p, "couponCode"),
		DeliveryMethod:  models.DeliveryMethod(argString(p, "deliveryMethod")),
		ShippingAddress: strings.TrimSpace(argString(p, "address")),
		PaymentToken:    argString(p, "paymentToken"),
		SaveCard:        argBool(p, "saveCard"),
		CardLast4:       argString(p, "cardLast4"),
		CardBrand:       argString(p, "cardBrand"),
	})
}

func (r *Resolver) cancelOrder(p graphql.ResolveParams) (interface{}, error) {
	id, err := auth.Require(p.Context)
	if err != nil {
		return nil, err
	}
	orderID, err := models.ParseID("order", argString(p, "orderId"))
	if err != nil {
		return nil, err
	}
	return r.Checkout.Cancel(p.Context, orderID, checkout.Caller{UserID: id.UserID, Staff: auth.IsStaff(id.Role)})
}
