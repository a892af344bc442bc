// Package graph exposes the store over GraphQL.
package graph

import (
	"context"
	"net/http"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/auth"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/checkout"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/logger"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/mailer"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/repository"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/validate"
)

type Catalog interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Product, error)
	ListProducts(ctx context.Context, f models.ProductFilter) ([]*models.Product, error)
	InsertProduct(ctx context.Context, p *models.Product) error
	InsertProducts(ctx context.Context, products []*models.Product) (int, error)
	UpdateProduct(ctx context.Context, id primitive.ObjectID, u models.ProductUpdate) (*models.Product, error)
	DeleteProduct(ctx context.Context, id primitive.ObjectID) error
}

type OrderHistory interface {
	GetOrdersByUser(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]*models.Order, error)
}

type CouponStore interface {
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	InsertCoupon(ctx context.Context, c *models.Coupon) error
}

type ReviewStore interface {
	AddReview(ctx context.Context, r *models.Review) error
	GetPendingReviews(ctx context.Context) ([]*models.Review, error)
	GetProductReviews(ctx context.Context, productID primitive.ObjectID) ([]*models.Review, error)
	SetReviewStatus(ctx context.Context, id primitive.ObjectID, status models.ReviewStatus) (*models.Review, error)
	AverageRating(ctx context.Context, productID primitive.ObjectID) (float64, error)
}

type Reports interface {
	BestSellers(ctx context.Context, limit int, sortBy string) ([]*models.BestSeller, error)
	SalesReport(ctx context.Context, from, to time.Time) ([]*models.SalesReportItem, error)
}

type Users interface {
	Insert(ctx context.Context, email, password string, role models.Role) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, p repository.ProfileUpdate) (*models.User, error)
	AddAddress(ctx context.Context, id primitive.ObjectID, content string) (*models.User, error)
	DeleteAddress(ctx context.Context, id, addressID primitive.ObjectID) (*models.User, error)
	AddCard(ctx context.Context, id primitive.ObjectID, card models.Card) (*models.User, error)
	DeleteCard(ctx context.Context, id, cardID primitive.ObjectID) (*models.User, error)
	CreateResetToken(ctx context.Context, email string) (*models.User, string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type Sessions interface {
	Issue(ctx context.Context, id auth.Identity) (string, time.Time, error)
	Revoke(ctx context.Context, token string) error
}

// Resolver holds everything the schema's resolvers reach into.
type Resolver struct {
	Catalog  Catalog
	Orders   OrderHistory
	Coupons  CouponStore
	Reviews  ReviewStore
	Reports  Reports
	Users    Users
	Sessions Sessions
	Checkout *checkout.Service
	Mailer   mailer.Mailer
	Log      *logger.Logger

	FrontendURL  string
	AbandonAfter time.Duration
	Now          func() time.Time

	validate *validate.Validator
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Request is a GraphQL request as posted by clients.
type Request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// Executor runs requests against a built schema.
type Executor struct {
	schema graphql.Schema
	http   *handler.Handler
}

func NewExecutor(r *Resolver) (*Executor, error) {
	if r.Log == nil {
		r.Log = logger.Discard()
	}
	if r.validate == nil {
		r.validate = validate.New()
	}
	schema, err := newSchema(r)
	if err != nil {
		return nil, err
	}
	e := &Executor{schema: schema}
	e.http = handler.New(&handler.Config{Schema: &e.schema})
	return e, nil
}

// ServeHTTP reads the query from a JSON, GraphQL or form POST body, or
// from GET parameters, and runs it with the request context.
func (e *Executor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.http.ServeHTTP(w, r)
}

func (e *Executor) Execute(ctx context.Context, req Request) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         e.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})
}
