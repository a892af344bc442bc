package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/auth"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/checkout"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/checkout/checkouttest"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/config"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/graph"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/logger"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
)

type testApp struct {
	app      *application
	store    *checkouttest.Store
	sessions *auth.Sessions
	srv      *httptest.Server
}

func newTestApplication(t *testing.T) *testApp {
	t.Helper()
	store := checkouttest.NewStore()
	sessions := auth.NewSessions(time.Hour)
	svc := checkout.NewService(store, store, store, store, checkout.Config{}, nil)

	exec, err := graph.NewExecutor(&graph.Resolver{
		Catalog:  store,
		Orders:   store,
		Coupons:  store,
		Sessions: sessions,
		Checkout: svc,
	})
	require.NoError(t, err)

	app := &application{
		logger:   logger.Discard(),
		config:   config.Config{AllowedOrigins: []string{"http://localhost:5500"}, StaticDir: t.TempDir()},
		sessions: sessions,
		graph:    exec,
		checkout: svc,
	}
	srv := httptest.NewServer(app.routes())
	t.Cleanup(srv.Close)
	return &testApp{app: app, store: store, sessions: sessions, srv: srv}
}

type gqlResponse struct {
	Data   map[string]interface{} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (ta *testApp) post(t *testing.T, token, body string) (*http.Response, gqlResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ta.srv.URL+"/graphql", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := ta.srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var out gqlResponse
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	if strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return res, out
}

func TestHello(t *testing.T) {
	ta := newTestApplication(t)

	res, out := ta.post(t, "", `{"query":"{ hello }"}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Masala API is running", out.Data["hello"])
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))

	get, err := ta.srv.Client().Get(ta.srv.URL + "/graphql?query=" + url.QueryEscape("{ hello }"))
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)
}

func TestGraphQLBadRequests(t *testing.T) {
	ta := newTestApplication(t)

	res, out := ta.post(t, "", `not json`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Nil(t, out.Data)
	require.NotEmpty(t, out.Errors)

	res, out = ta.post(t, "", `{"query":""}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, out.Errors)

	get, err := ta.srv.Client().Get(ta.srv.URL + "/graphql?query=" + url.QueryEscape("{ hello }") + "&variables=" + url.QueryEscape(`{"unused":1}`))
	require.NoError(t, err)
	defer get.Body.Close()
	var gout gqlResponse
	require.NoError(t, json.NewDecoder(get.Body).Decode(&gout))
	assert.Empty(t, gout.Errors)
	assert.Equal(t, "Masala API is running", gout.Data["hello"])
}

func TestBearerTokenReachesResolvers(t *testing.T) {
	ta := newTestApplication(t)
	p := ta.store.AddProduct("Samosa", 2.5, 10)

	user := auth.Identity{UserID: primitive.NewObjectID(), Email: "ana@masala.test", Role: models.RoleCustomer}
	token, _, err := ta.sessions.Issue(context.Background(), user)
	require.NoError(t, err)

	body := `{"query":"mutation($items:[OrderItemInput!]!){ placeOrder(items:$items){ total status } }",` +
		`"variables":{"items":[{"productId":"` + p.ID.Hex() + `","quantity":4}]}}`

	_, out := ta.post(t, "", body)
	require.NotEmpty(t, out.Errors)
	assert.Contains(t, out.Errors[0].Message, "not authenticated")

	_, out = ta.post(t, "bogus", body)
	require.NotEmpty(t, out.Errors)

	_, out = ta.post(t, token, body)
	require.Empty(t, out.Errors)
	order := out.Data["placeOrder"].(map[string]interface{})
	assert.Equal(t, 10.0, order["total"])
	assert.Equal(t, "Preparing", order["status"])
	assert.Equal(t, 6, ta.store.Stock(p.ID))
}

func TestCORSPreflight(t *testing.T) {
	ta := newTestApplication(t)

	req, err := http.NewRequest(http.MethodOptions, ta.srv.URL+"/graphql", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5500")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	res, err := ta.srv.Client().Do(req)
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "http://localhost:5500", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(res.Header.Get("Access-Control-Allow-Headers")), "authorization")
	assert.Equal(t, "600", res.Header.Get("Access-Control-Max-Age"))

	req.Header.Set("Origin", "http://evil.test")
	res, err = ta.srv.Client().Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthz(t *testing.T) {
	ta := newTestApplication(t)

	rr := httptest.NewRecorder()
	ta.app.healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	ta.app.ping = func(context.Context) error { return errors.New("no primary") }
	rr = httptest.NewRecorder()
	ta.app.healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rr.Body.String())
}

func TestRecoverPanic(t *testing.T) {
	ta := newTestApplication(t)
	h := ta.app.recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
}

func TestSweeperStopsWithContext(t *testing.T) {
	ta := newTestApplication(t)
	ta.app.config.CleanupInterval = 10 * time.Millisecond
	ta.app.config.AbandonAfter = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ta.app.sweeper(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
