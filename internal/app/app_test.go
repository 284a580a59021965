//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const testSecret = "integration-secret"

// Response types are declared locally so the tests only see the wire format.

type productResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type cartResponse struct {
	Items    []json.RawMessage `json:"items"`
	Subtotal string            `json:"subtotal"`
}

type orderResponse struct {
	ID             int64  `json:"id"`
	Status         string `json:"status"`
	TotalAmount    string `json:"total_amount"`
	DiscountAmount string `json:"discount_amount"`
	FinalAmount    string `json:"final_amount"`
	Items          []struct {
		ProductName string `json:"product_name"`
		UnitPrice   string `json:"unit_price"`
	} `json:"items"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type client struct {
	t       *testing.T
	baseURL string
	http    *http.Client
}

func startServer(t *testing.T) *client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ctr, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("storefront"),
		tcpostgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.RunMigrations(ctx, pool))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &Config{
		Catalog:   CatalogConfig{CacheTTL: time.Minute},
		Auth:      AuthConfig{JWTSecret: testSecret},
		RateLimit: RateLimitConfig{RPS: 1000, Burst: 1000},
	}
	root, healthSvc, err := newHandler(ctx, zaptest.NewLogger(t), tracenoop.NewTracerProvider(),
		metricnoop.NewMeterProvider(), cfg, pool, rdb)
	require.NoError(t, err)

	go func() { _ = healthSvc.Run(ctx, 100*time.Millisecond) }()
	healthSvc.SetReady(true)

	srv := httptest.NewServer(root)
	t.Cleanup(srv.Close)

	return &client{t: t, baseURL: srv.URL, http: srv.Client()}
}

func token(t *testing.T, userID int64, role string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, handler.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return raw
}

func (c *client) do(method, path, bearer string, body any) *http.Response {
	c.t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, r)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthEndpoints(t *testing.T) {
	c := startServer(t)

	resp := c.do(http.MethodGet, "/livez", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp := c.do(http.MethodGet, "/readyz", "", nil)
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 100*time.Millisecond)
}

func TestMiddlewareHeaders(t *testing.T) {
	c := startServer(t)

	resp := c.do(http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(httpmiddleware.RequestIDHeader))
	assert.Equal(t, "1000", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	resp = c.do(http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCheckoutFlow(t *testing.T) {
	c := startServer(t)
	admin := token(t, 1, handler.RoleAdmin)
	alice := token(t, 7, "")
	bob := token(t, 8, "")

	// Catalog.
	resp := c.do(http.MethodPost, "/api/products", admin, map[string]any{"name": "Widget", "price": "10.00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	widget := decode[productResponse](t, resp)

	resp = c.do(http.MethodPost, "/api/products", admin, map[string]any{"name": "Gadget", "price": "5.00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	gadget := decode[productResponse](t, resp)

	resp = c.do(http.MethodPost, "/api/products", alice, map[string]any{"name": "Nope", "price": "1.00"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	for range 2 {
		resp = c.do(http.MethodGet, "/api/products", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, decode[[]productResponse](t, resp), 2)
	}

	// Coupon.
	resp = c.do(http.MethodPost, "/api/coupons", admin, map[string]any{
		"code":           "welcome10",
		"discount_type":  "percentage",
		"discount_value": "10",
		"minimum_amount": "20.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Cart.
	resp = c.do(http.MethodPost, "/api/cart/items", alice, map[string]any{"product_id": widget.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = c.do(http.MethodPost, "/api/cart/items", alice, map[string]any{"product_id": gadget.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = c.do(http.MethodGet, "/api/cart", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "25.00", decode[cartResponse](t, resp).Subtotal)

	resp = c.do(http.MethodPost, "/api/coupons/validate", alice, map[string]any{"code": "WELCOME10", "subtotal": "25.00"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Price changes after checkout must not touch the order snapshot.
	resp = c.do(http.MethodPost, "/api/orders", alice, map[string]any{"coupon_code": "WELCOME10"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	placed := decode[orderResponse](t, resp)
	assert.Equal(t, "pending", placed.Status)
	assert.Equal(t, "25.00", placed.TotalAmount)
	assert.Equal(t, "2.50", placed.DiscountAmount)
	assert.Equal(t, "22.50", placed.FinalAmount)
	require.Len(t, placed.Items, 2)

	resp = c.do(http.MethodPatch, fmt.Sprintf("/api/products/%d", widget.ID), admin, map[string]any{"price": "12.00"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = c.do(http.MethodGet, fmt.Sprintf("/api/products/%d", widget.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "12.00", decode[productResponse](t, resp).Price)

	resp = c.do(http.MethodGet, fmt.Sprintf("/api/orders/%d", placed.ID), alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[orderResponse](t, resp)
	for _, it := range got.Items {
		if it.ProductName == "Widget" {
			assert.Equal(t, "10.00", it.UnitPrice)
		}
	}

	// The cart is consumed by the order.
	resp = c.do(http.MethodGet, "/api/cart", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[cartResponse](t, resp).Items)

	resp = c.do(http.MethodPost, "/api/orders", alice, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Orders are private.
	resp = c.do(http.MethodGet, fmt.Sprintf("/api/orders/%d", placed.ID), bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = c.do(http.MethodGet, "/api/orders", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]orderResponse](t, resp))

	// Status machine.
	path := fmt.Sprintf("/api/orders/%d/status", placed.ID)
	resp = c.do(http.MethodPatch, path, admin, map[string]any{"status": "processing"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "processing", decode[orderResponse](t, resp).Status)

	resp = c.do(http.MethodPatch, path, admin, map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, http.StatusUnprocessableEntity, decode[errorResponse](t, resp).Code)
}

func TestCheckout_CouponBelowMinimum(t *testing.T) {
	c := startServer(t)
	admin := token(t, 1, handler.RoleAdmin)
	alice := token(t, 7, "")

	resp := c.do(http.MethodPost, "/api/products", admin, map[string]any{"name": "Sticker", "price": "3.00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sticker := decode[productResponse](t, resp)

	resp = c.do(http.MethodPost, "/api/coupons", admin, map[string]any{
		"code":           "BIGSPENDER",
		"discount_type":  "fixed",
		"discount_value": "5.00",
		"minimum_amount": "20.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/cart/items", alice, map[string]any{"product_id": sticker.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/orders", alice, map[string]any{"coupon_code": "BIGSPENDER"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decode[errorResponse](t, resp).Message, "20.00")

	// Nothing was consumed.
	resp = c.do(http.MethodGet, "/api/cart", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[cartResponse](t, resp).Items, 1)
}
