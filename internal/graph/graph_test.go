package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/auth"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/checkout"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/checkout/checkouttest"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/repository"
)

type fakeUsers struct {
	mu        sync.Mutex
	users     map[primitive.ObjectID]*models.User
	passwords map[primitive.ObjectID]string
	resets    map[string]primitive.ObjectID
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users:     map[primitive.ObjectID]*models.User{},
		passwords: map[primitive.ObjectID]string{},
		resets:    map[string]primitive.ObjectID{},
	}
}

func (f *fakeUsers) byEmail(email string) *models.User {
	for _, u := range f.users {
		if u.Email == repository.NormalizeEmail(email) {
			return u
		}
	}
	return nil
}

func (f *fakeUsers) Insert(_ context.Context, email, password string, role models.Role) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byEmail(email) != nil {
		return nil, fmt.Errorf("%w: email %s is already registered", models.ErrDuplicate, email)
	}
	u := &models.User{ID: primitive.NewObjectID(), Email: repository.NormalizeEmail(email), Role: role}
	f.users[u.ID] = u
	f.passwords[u.ID] = password
	return u, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byEmail(email)
	if u == nil || f.passwords[u.ID] != password {
		return nil, models.ErrInvalidCredentials
	}
	return u, nil
}

func (f *fakeUsers) Get(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, id.Hex())
	}
	return u, nil
}

func (f *fakeUsers) UpdateProfile(ctx context.Context, id primitive.ObjectID, p repository.ProfileUpdate) (*models.User, error) {
	u, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	return u, nil
}

func (f *fakeUsers) AddAddress(ctx context.Context, id primitive.ObjectID, content string) (*models.User, error) {
	u, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Addresses = append(u.Addresses, models.Address{ID: primitive.NewObjectID(), Content: content})
	return u, nil
}

func (f *fakeUsers) DeleteAddress(ctx context.Context, id, addressID primitive.ObjectID) (*models.User, error) {
	u, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	kept := u.Addresses[:0]
	for _, a := range u.Addresses {
		if a.ID != addressID {
			kept = append(kept, a)
		}
	}
	u.Addresses = kept
	return u, nil
}

func (f *fakeUsers) AddCard(ctx context.Context, id primitive.ObjectID, card models.Card) (*models.User, error) {
	u, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.HasCardToken(card.Token) {
		card.ID = primitive.NewObjectID()
		u.SavedCards = append(u.SavedCards, card)
	}
	return u, nil
}

func (f *fakeUsers) DeleteCard(ctx context.Context, id, cardID primitive.ObjectID) (*models.User, error) {
	u, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	kept := u.SavedCards[:0]
	for _, c := range u.SavedCards {
		if c.ID != cardID {
			kept = append(kept, c)
		}
	}
	u.SavedCards = kept
	return u, nil
}

func (f *fakeUsers) CreateResetToken(_ context.Context, email string) (*models.User, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byEmail(email)
	if u == nil {
		return nil, "", nil
	}
	token := "tok-" + u.ID.Hex()
	f.resets[token] = u.ID
	return u, token, nil
}

func (f *fakeUsers) ResetPassword(_ context.Context, token, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.resets[token]
	if !ok {
		return fmt.Errorf("%w: reset token is invalid or expired", models.ErrValidation)
	}
	delete(f.resets, token)
	f.passwords[id] = newPassword
	return nil
}

type captureMailer struct {
	mu   sync.Mutex
	sent map[string]string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = map[string]string{}
	}
	m.sent[to] = link
	return nil
}

type testEnv struct {
	exec     *Executor
	store    *checkouttest.Store
	users    *fakeUsers
	sessions *auth.Sessions
	mail     *captureMailer
}

var testNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := checkouttest.NewStore()
	users := newFakeUsers()
	sessions := auth.NewSessions(time.Hour)
	mail := &captureMailer{}

	svc := checkout.NewService(store, store, store, users, checkout.Config{}, nil)
	svc.Now = func() time.Time { return testNow }

	exec, err := NewExecutor(&Resolver{
		Catalog:      store,
		Orders:       store,
		Coupons:      store,
		Users:        users,
		Sessions:     sessions,
		Checkout:     svc,
		Mailer:       mail,
		FrontendURL:  "http://shop.test",
		AbandonAfter: 720 * time.Hour,
		Now:          func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return &testEnv{exec: exec, store: store, users: users, sessions: sessions, mail: mail}
}

func (e *testEnv) as(t *testing.T, role models.Role) context.Context {
	t.Helper()
	u, err := e.users.Insert(context.Background(), strings.ToLower(string(role))+primitive.NewObjectID().Hex()+"@masala.test", "secret123", role)
	require.NoError(t, err)
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: u.ID, Email: u.Email, Role: role})
}

func (e *testEnv) run(ctx context.Context, query string, vars map[string]interface{}) *graphql.Result {
	return e.exec.Execute(ctx, Request{Query: query, Variables: vars})
}

func dataOf(t *testing.T, res *graphql.Result) map[string]interface{} {
	t.Helper()
	require.Empty(t, res.Errors)
	data, ok := res.Data.(map[string]interface{})
	require.True(t, ok)
	return data
}

func errorOf(t *testing.T, res *graphql.Result) string {
	t.Helper()
	require.NotEmpty(t, res.Errors)
	return res.Errors[0].Message
}

const placeOrderMutation = `
mutation Place($items: [OrderItemInput!]!, $coupon: String) {
  placeOrder(items: $items, couponCode: $coupon) {
    id status subtotal discountTotal total couponCode
    items { quantity priceAtPurchase product { name } }
  }
}`

func cart(id primitive.ObjectID, qty int) []interface{} {
	return []interface{}{map[string]interface{}{"productId": id.Hex(), "quantity": qty}}
}

func TestPlaceOrderMutation(t *testing.T) {
	env := newTestEnv(t)
	p := env.store.AddProduct("Butter Chicken", 1000, 10)
	env.store.AddCoupon("VERANO2025", 10, testNow.Add(24*time.Hour), true)
	ctx := env.as(t, models.RoleCustomer)

	res := env.run(ctx, placeOrderMutation, map[string]interface{}{"items": cart(p.ID, 3), "coupon": "verano2025"})
	order := dataOf(t, res)["placeOrder"].(map[string]interface{})

	assert.Equal(t, "Preparing", order["status"])
	assert.Equal(t, 3000.0, order["subtotal"])
	assert.Equal(t, 300.0, order["discountTotal"])
	assert.Equal(t, 2700.0, order["total"])
	assert.Equal(t, "VERANO2025", order["couponCode"])

	items := order["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, 3, item["quantity"])
	assert.Equal(t, "Butter Chicken", item["product"].(map[string]interface{})["name"])
	assert.Equal(t, 7, env.store.Stock(p.ID))
}

func TestOrderUser(t *testing.T) {
	env := newTestEnv(t)
	p := env.store.AddProduct("Samosa", 3, 10)
	ctx := env.as(t, models.RoleCustomer)
	id := auth.FromContext(ctx)

	res := env.run(ctx, `mutation($items: [OrderItemInput!]!) { placeOrder(items: $items) { userId user { id email } } }`,
		map[string]interface{}{"items": cart(p.ID, 1)})
	order := dataOf(t, res)["placeOrder"].(map[string]interface{})
	assert.Equal(t, id.UserID.Hex(), order["userId"])
	user := order["user"].(map[string]interface{})
	assert.Equal(t, id.UserID.Hex(), user["id"])
	assert.Equal(t, id.Email, user["email"])
}

func TestPasswordLengthLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	long := strings.Repeat("x", 73)

	res := env.run(ctx, `mutation($p: String!) { register(email: "ana@masala.test", password: $p) { token } }`,
		map[string]interface{}{"p": long})
	assert.Contains(t, errorOf(t, res), "password")
	assert.Nil(t, env.users.byEmail("ana@masala.test"))

	res = env.run(ctx, `mutation($p: String!) { resetPassword(token: "abc", newPassword: $p) }`,
		map[string]interface{}{"p": long})
	assert.Contains(t, errorOf(t, res), "newPassword")

	res = env.run(ctx, `mutation($p: String!) { register(email: "ana@masala.test", password: $p) { token } }`,
		map[string]interface{}{"p": strings.Repeat("x", 72)})
	dataOf(t, res)
}

func TestPlaceOrderRequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	p := env.store.AddProduct("Naan", 2, 10)

	res := env.run(context.Background(), placeOrderMutation, map[string]interface{}{"items": cart(p.ID, 1)})
	assert.Contains(t, errorOf(t, res), "not authenticated")
	assert.Equal(t, 10, env.store.Stock(p.ID))
}

func TestPlaceOrderSurfacesStockError(t *testing.T) {
	env := newTestEnv(t)
	p := env.store.AddProduct("Lassi", 2, 1)
	ctx := env.as(t, models.RoleCustomer)

	res := env.run(ctx, placeOrderMutation, map[string]interface{}{"items": cart(p.ID, 2)})
	msg := errorOf(t, res)
	assert.Contains(t, msg, "insufficient stock")
	assert.Contains(t, msg, "Lassi")
}

func TestCancelOrderMutation(t *testing.T) {
	env := newTestEnv(t)
	p := env.store.AddProduct("Korma", 12, 10)
	ctx := env.as(t, models.RoleCustomer)

	res := env.run(ctx, placeOrderMutation, map[string]interface{}{"items": cart(p.ID, 4)})
	orderID := dataOf(t, res)["placeOrder"].(map[string]interface{})["id"].(string)

	cancel := `mutation($id: ID!) { cancelOrder(orderId: $id) { status items { product { name } } } }`
	res = env.run(ctx, cancel, map[string]interface{}{"id": orderID})
	order := dataOf(t, res)["cancelOrder"].(map[string]interface{})
	assert.Equal(t, "Cancelled", order["status"])
	item := order["items"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Korma", item["product"].(map[string]interface{})["name"])
	assert.Equal(t, 10, env.store.Stock(p.ID))

	res = env.run(ctx, cancel, map[string]interface{}{"id": orderID})
	assert.Contains(t, errorOf(t, res), "invalid status transition")

	stranger := env.as(t, models.RoleCustomer)
	res = env.run(stranger, cancel, map[string]interface{}{"id": orderID})
	assert.Contains(t, errorOf(t, res), "not found")
}

func TestUpdateOrderStatusPermissions(t *testing.T) {
	env := newTestEnv(t)
	p := env.store.AddProduct("Momo", 5, 10)
	customer := env.as(t, models.RoleCustomer)

	res := env.run(customer, placeOrderMutation, map[string]interface{}{"items": cart(p.ID, 1)})
	orderID := dataOf(t, res)["placeOrder"].(map[string]interface{})["id"].(string)

	update := `mutation($id: ID!, $s: String!) { updateOrderStatus(orderId: $id, status: $s) { status } }`

	res = env.run(customer, update, map[string]interface{}{"id": orderID, "s": "Shipped"})
	assert.Contains(t, errorOf(t, res), "access denied")

	delivery := env.as(t, models.RoleDelivery)
	res = env.run(delivery, update, map[string]interface{}{"id": orderID, "s": "Cancelled"})
	assert.Contains(t, errorOf(t, res), "access denied")

	res = env.run(delivery, update, map[string]interface{}{"id": orderID, "s": "Shipped"})
	assert.Equal(t, "Shipped", dataOf(t, res)["updateOrderStatus"].(map[string]interface{})["status"])

	admin := env.as(t, models.RoleAdmin)
	res = env.run(admin, update, map[string]interface{}{"id": orderID, "s": "Preparing"})
	assert.Contains(t, errorOf(t, res), "invalid status transition")
}

func TestCatalogAdmin(t *testing.T) {
	env := newTestEnv(t)
	create := `mutation($in: ProductInput!) { createProduct(input: $in) { id name price category stock isAvailable } }`
	input := map[string]interface{}{"name": "Paneer Tikka", "price": 9.5, "category": "starter", "stock": 20}

	res := env.run(env.as(t, models.RoleCustomer), create, map[string]interface{}{"in": input})
	assert.Contains(t, errorOf(t, res), "access denied")

	admin := env.as(t, models.RoleAdmin)
	res = env.run(admin, create, map[string]interface{}{"in": map[string]interface{}{"name": "Nothing", "price": 0}})
	assert.Contains(t, errorOf(t, res), "price")

	res = env.run(admin, create, map[string]interface{}{"in": input})
	prod := dataOf(t, res)["createProduct"].(map[string]interface{})
	assert.Equal(t, "Paneer Tikka", prod["name"])
	assert.Equal(t, "starter", prod["category"])
	assert.Equal(t, true, prod["isAvailable"])

	res = env.run(context.Background(), `{ getProducts(category: "starter") { name averageRating } }`, nil)
	list := dataOf(t, res)["getProducts"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "Paneer Tikka", list[0].(map[string]interface{})["name"])

	update := `mutation($id: ID!, $in: ProductInput!) { updateProduct(id: $id, input: $in) { price stock } }`
	res = env.run(admin, update, map[string]interface{}{"id": prod["id"], "in": map[string]interface{}{"price": 11}})
	updated := dataOf(t, res)["updateProduct"].(map[string]interface{})
	assert.Equal(t, 11.0, updated["price"])
	assert.Equal(t, 20, updated["stock"])
}

func TestCouponAdminAndValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.as(t, models.RoleAdmin)

	create := `mutation { createCoupon(code: "verano2025", discountPercentage: 10, daysValid: 30) { code isActive } }`
	coupon := dataOf(t, env.run(admin, create, nil))["createCoupon"].(map[string]interface{})
	assert.Equal(t, "VERANO2025", coupon["code"])

	res := env.run(admin, create, nil)
	assert.Contains(t, errorOf(t, res), "already exists")

	res = env.run(admin, `mutation { createCoupon(code: "HALF", discountPercentage: 150, daysValid: 1) { code } }`, nil)
	assert.Contains(t, errorOf(t, res), "discountPercentage")

	res = env.run(context.Background(), `{ validateCoupon(code: "Verano2025") { discountPercentage } }`, nil)
	assert.Equal(t, 10, dataOf(t, res)["validateCoupon"].(map[string]interface{})["discountPercentage"])

	env.store.AddCoupon("GONE", 5, testNow.Add(-time.Hour), true)
	res = env.run(context.Background(), `{ validateCoupon(code: "gone") { code } }`, nil)
	assert.Contains(t, errorOf(t, res), "expired")

	res = env.run(context.Background(), `{ validateCoupon(code: "nope") { code } }`, nil)
	assert.Contains(t, errorOf(t, res), "invalid coupon")
}

func TestQuoteOrder(t *testing.T) {
	env := newTestEnv(t)
	p := env.store.AddProduct("Thali", 1000, 10)
	env.store.AddCoupon("VERANO2025", 10, testNow.Add(time.Hour), true)

	q := `query($items: [OrderItemInput!]!) { quoteOrder(items: $items, couponCode: "verano2025") { subtotal discount total items { lineTotal } } }`
	quote := dataOf(t, env.run(context.Background(), q, map[string]interface{}{"items": cart(p.ID, 3)}))["quoteOrder"].(map[string]interface{})
	assert.Equal(t, 3000.0, quote["subtotal"])
	assert.Equal(t, 300.0, quote["discount"])
	assert.Equal(t, 2700.0, quote["total"])
	assert.Equal(t, 10, env.store.Stock(p.ID))
}

func TestAccountFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.run(ctx, `mutation { register(email: "Ana@Masala.test", password: "secret1", name: "Ana") { token user { email role name } } }`, nil)
	payload := dataOf(t, res)["register"].(map[string]interface{})
	user := payload["user"].(map[string]interface{})
	assert.Equal(t, "ana@masala.test", user["email"])
	assert.Equal(t, "customer", user["role"])
	assert.Equal(t, "Ana", user["name"])

	res = env.run(ctx, `mutation { register(email: "not-an-email", password: "secret1") { token } }`, nil)
	assert.Contains(t, errorOf(t, res), "email")

	res = env.run(ctx, `mutation { login(email: "ana@masala.test", password: "wrong") { token } }`, nil)
	assert.Contains(t, errorOf(t, res), "invalid credentials")

	res = env.run(ctx, `mutation { login(email: "ana@masala.test", password: "secret1") { token } }`, nil)
	token := dataOf(t, res)["login"].(map[string]interface{})["token"].(string)

	id, err := env.sessions.Resolve(ctx, token)
	require.NoError(t, err)
	authed := auth.WithToken(auth.WithIdentity(ctx, id), token)

	res = env.run(authed, `mutation { addAddress(content: "Av. Siempre Viva 742") { addresses { id content } } }`, nil)
	addrs := dataOf(t, res)["addAddress"].(map[string]interface{})["addresses"].([]interface{})
	require.Len(t, addrs, 1)

	res = env.run(authed, `{ myProfile { email addresses { content } } }`, nil)
	profile := dataOf(t, res)["myProfile"].(map[string]interface{})
	assert.Equal(t, "ana@masala.test", profile["email"])

	res = env.run(authed, `mutation { logout }`, nil)
	assert.Equal(t, true, dataOf(t, res)["logout"])

	id, err = env.sessions.Resolve(ctx, token)
	require.NoError(t, err)
	assert.False(t, id.Authenticated())
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.users.Insert(ctx, "ana@masala.test", "secret1", models.RoleCustomer)
	require.NoError(t, err)

	res := env.run(ctx, `mutation { requestPasswordReset(email: "ghost@masala.test") }`, nil)
	assert.Equal(t, true, dataOf(t, res)["requestPasswordReset"])
	assert.Empty(t, env.mail.sent)

	res = env.run(ctx, `mutation { requestPasswordReset(email: "ana@masala.test") }`, nil)
	assert.Equal(t, true, dataOf(t, res)["requestPasswordReset"])
	link := env.mail.sent["ana@masala.test"]
	require.NotEmpty(t, link)
	assert.True(t, strings.HasPrefix(link, "http://shop.test/reset-password?token="))

	token := strings.TrimPrefix(link, "http://shop.test/reset-password?token=")
	res = env.run(ctx, `mutation($t: String!) { resetPassword(token: $t, newPassword: "brandnew") }`, map[string]interface{}{"t": token})
	assert.Equal(t, true, dataOf(t, res)["resetPassword"])

	_, err = env.users.Authenticate(ctx, "ana@masala.test", "brandnew")
	require.NoError(t, err)
}

func TestMyOrders(t *testing.T) {
	env := newTestEnv(t)
	a := env.store.AddProduct("Dosa", 4, 10)
	b := env.store.AddProduct("Idli", 3, 10)
	ctx := env.as(t, models.RoleCustomer)

	dataOf(t, env.run(ctx, placeOrderMutation, map[string]interface{}{"items": cart(a.ID, 1)}))
	dataOf(t, env.run(ctx, placeOrderMutation, map[string]interface{}{"items": cart(b.ID, 2)}))

	res := env.run(ctx, `{ myOrders { total items { product { name } } } }`, nil)
	orders := dataOf(t, res)["myOrders"].([]interface{})
	require.Len(t, orders, 2)

	names := map[string]bool{}
	for _, o := range orders {
		item := o.(map[string]interface{})["items"].([]interface{})[0].(map[string]interface{})
		names[item["product"].(map[string]interface{})["name"].(string)] = true
	}
	assert.Equal(t, map[string]bool{"Dosa": true, "Idli": true}, names)

	res = env.run(context.Background(), `{ myOrders { total } }`, nil)
	assert.Contains(t, errorOf(t, res), "not authenticated")
}

func TestCleanAbandonedCarts(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(env.as(t, models.RoleCustomer), `mutation { cleanAbandonedCarts }`, nil)
	assert.Contains(t, errorOf(t, res), "access denied")

	res = env.run(env.as(t, models.RoleAdmin), `mutation { cleanAbandonedCarts }`, nil)
	assert.Equal(t, 0, dataOf(t, res)["cleanAbandonedCarts"])
}
