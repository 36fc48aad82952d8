package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/auth"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/cache"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/cart"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/catalog"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/checkout"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/repository"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/session"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/storefront"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	roasted250 = "8f0c6d52-3c1e-4a5b-9f2e-000000000001"
	ground250  = "8f0c6d52-3c1e-4a5b-9f2e-000000000004"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()

	repo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations())
	t.Cleanup(func() { repo.Close() })

	log := zap.NewNop()
	authSvc := auth.NewService(repo, auth.Config{
		Secret:            []byte("test-secret"),
		TokenTTL:          time.Hour,
		MinPasswordLength: 6,
		BcryptCost:        bcrypt.MinCost,
	}, log)

	reg := storefront.NewRegistry(storefront.Deps{
		Auth:              authSvc,
		Carts:             repo,
		Orders:            repo,
		Log:               log,
		MinPasswordLength: 6,
	})
	t.Cleanup(reg.Close)

	return NewRouter(reg, catalog.NewService(repo, cache.Noop{}, log), RouterConfig{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
		AuthRateLimit:      100,
		AuthRateBurst:      100,
	}, log)
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type cartEnvelope struct {
	Data          cart.View             `json:"data"`
	Notifications []domain.Notification `json:"notifications"`
}

type orderEnvelope struct {
	Data          domain.Order          `json:"data"`
	Notifications []domain.Notification `json:"notifications"`
}

func signUp(t *testing.T, h http.Handler, email string) string {
	t.Helper()

	rr := doRequest(t, h, http.MethodPost, "/api/v1/auth/signup", "", CredentialsRequestDTO{Email: email, Password: "secret1"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp AuthResponseDTO
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	h := setupRouter(t)

	rr := doRequest(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestAuthHandler_SignUp(t *testing.T) {
	h := setupRouter(t)

	rr := doRequest(t, h, http.MethodPost, "/api/v1/auth/signup", "",
		CredentialsRequestDTO{Email: "Abebe@Example.com", Password: "secret1"})
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp AuthResponseDTO
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "abebe@example.com", resp.User.Email)
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, "Account created!", resp.Notifications[0].Title)

	rr = doRequest(t, h, http.MethodPost, "/api/v1/auth/signup", "",
		CredentialsRequestDTO{Email: "abebe@example.com", Password: "secret1"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	errResp := decodeError(t, rr)
	assert.Equal(t, session.MsgAlreadyRegistered, errResp.Error)
	assert.Equal(t, "already_registered", errResp.Code)
}

func TestAuthHandler_SignUpValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  string
	}{
		{
			name:       "empty fields",
			body:       CredentialsRequestDTO{},
			wantStatus: http.StatusBadRequest,
			wantError:  session.MsgFillAllFields,
		},
		{
			name:       "short password",
			body:       CredentialsRequestDTO{Email: "a@b.c", Password: "123"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Password must be at least 6 characters",
		},
		{
			name:       "short multibyte password",
			body:       CredentialsRequestDTO{Email: "a@b.c", Password: "ééé"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Password must be at least 6 characters",
		},
		{
			name:       "password over bcrypt limit",
			body:       CredentialsRequestDTO{Email: "a@b.c", Password: strings.Repeat("€", 30)},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  auth.MsgPasswordTooLong,
		},
		{
			name:       "bad email",
			body:       CredentialsRequestDTO{Email: "not-an-email", Password: "secret1"},
			wantStatus: http.StatusBadRequest,
			wantError:  auth.MsgInvalidEmail,
		},
		{
			name:       "unknown field",
			body:       map[string]string{"email": "a@b.c", "password": "secret1", "role": "admin"},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupRouter(t)
			rr := doRequest(t, h, http.MethodPost, "/api/v1/auth/signup", "", tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantError, decodeError(t, rr).Error)
		})
	}
}

func TestAuthHandler_SignIn(t *testing.T) {
	h := setupRouter(t)
	signUp(t, h, "abebe@example.com")

	rr := doRequest(t, h, http.MethodPost, "/api/v1/auth/signin", "",
		CredentialsRequestDTO{Email: "abebe@example.com", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, session.MsgInvalidCredentials, decodeError(t, rr).Error)

	rr = doRequest(t, h, http.MethodPost, "/api/v1/auth/signin", "",
		CredentialsRequestDTO{Email: "abebe@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp AuthResponseDTO
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, "Welcome back!", resp.Notifications[0].Title)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/auth/session", resp.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"email":"abebe@example.com"`)
}

func TestAuthHandler_SignOutRevokesToken(t *testing.T) {
	h := setupRouter(t)
	token := signUp(t, h, "abebe@example.com")

	rr := doRequest(t, h, http.MethodPost, "/api/v1/auth/signout", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/cart", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthMiddleware(t *testing.T) {
	h := setupRouter(t)

	rr := doRequest(t, h, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "missing bearer token", decodeError(t, rr).Error)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/cart", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, auth.MsgInvalidToken, decodeError(t, rr).Error)
}

func TestProductHandler(t *testing.T) {
	h := setupRouter(t)

	rr := doRequest(t, h, http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list ProductsResponseDTO
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	assert.Len(t, list.Products, 5)
	assert.Equal(t, domain.Currency, list.Currency)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/products/"+roasted250, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var product domain.Product
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&product))
	assert.Equal(t, "250g", product.Size)
	assert.True(t, decimal.NewFromInt(450).Equal(product.Price))

	rr = doRequest(t, h, http.MethodGet, "/api/v1/products/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCartHandler_Lifecycle(t *testing.T) {
	h := setupRouter(t)
	token := signUp(t, h, "abebe@example.com")

	rr := doRequest(t, h, http.MethodPost, "/api/v1/cart/items", token, AddItemRequestDTO{ProductID: roasted250, Quantity: 2})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp cartEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Data.TotalItems)
	assert.True(t, decimal.NewFromInt(900).Equal(resp.Data.TotalPrice))
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, "Added to cart", resp.Notifications[0].Title)

	// adding the same product again is additive
	rr = doRequest(t, h, http.MethodPost, "/api/v1/cart/items", token, AddItemRequestDTO{ProductID: roasted250})
	require.Equal(t, http.StatusCreated, rr.Code)
	resp = cartEnvelope{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, 3, resp.Data.Items[0].Quantity)
	itemID := resp.Data.Items[0].ID

	qty := 1
	rr = doRequest(t, h, http.MethodPut, "/api/v1/cart/items/"+itemID, token, UpdateQuantityRequestDTO{Quantity: &qty})
	require.Equal(t, http.StatusOK, rr.Code)
	resp = cartEnvelope{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Data.TotalItems)
	assert.Empty(t, resp.Notifications)

	rr = doRequest(t, h, http.MethodDelete, "/api/v1/cart/items/"+itemID, token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp = cartEnvelope{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Empty(t, resp.Data.Items)
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, "Removed", resp.Notifications[0].Title)
}

func TestCartHandler_Errors(t *testing.T) {
	h := setupRouter(t)
	token := signUp(t, h, "abebe@example.com")

	rr := doRequest(t, h, http.MethodPost, "/api/v1/cart/items", token, AddItemRequestDTO{ProductID: "missing"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "product_not_found", decodeError(t, rr).Code)

	rr = doRequest(t, h, http.MethodPost, "/api/v1/cart/items", token, AddItemRequestDTO{ProductID: roasted250, Quantity: -1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, h, http.MethodPost, "/api/v1/cart/items", token, AddItemRequestDTO{ProductID: roasted250, Quantity: 99})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = doRequest(t, h, http.MethodPost, "/api/v1/cart/items", token, AddItemRequestDTO{ProductID: roasted250, Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_quantity", decodeError(t, rr).Code)

	rr = doRequest(t, h, http.MethodPut, "/api/v1/cart/items/nope", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	qty := 2
	rr = doRequest(t, h, http.MethodPut, "/api/v1/cart/items/nope", token, UpdateQuantityRequestDTO{Quantity: &qty})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	errResp := decodeError(t, rr)
	assert.Equal(t, "cart_item_not_found", errResp.Code)
	require.Len(t, errResp.Notifications, 1)
	assert.Equal(t, "Failed to update quantity", errResp.Notifications[0].Description)
	assert.Equal(t, domain.VariantDestructive, errResp.Notifications[0].Variant)
}

func TestCartHandler_Clear(t *testing.T) {
	h := setupRouter(t)
	token := signUp(t, h, "abebe@example.com")

	doRequest(t, h, http.MethodPost, "/api/v1/cart/items", token, AddItemRequestDTO{ProductID: roasted250})
	doRequest(t, h, http.MethodPost, "/api/v1/cart/items", token, AddItemRequestDTO{ProductID: ground250})

	rr := doRequest(t, h, http.MethodDelete, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp cartEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Empty(t, resp.Data.Items)
	assert.Zero(t, resp.Data.TotalItems)
}

func TestCheckoutHandler(t *testing.T) {
	h := setupRouter(t)
	token := signUp(t, h, "abebe@example.com")

	rr := doRequest(t, h, http.MethodPost, "/api/v1/checkout", token, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "empty_cart", decodeError(t, rr).Code)

	doRequest(t, h, http.MethodPost, "/api/v1/cart/items", token, AddItemRequestDTO{ProductID: roasted250, Quantity: 2})
	doRequest(t, h, http.MethodPost, "/api/v1/cart/items", token, AddItemRequestDTO{ProductID: ground250})

	rr = doRequest(t, h, http.MethodPost, "/api/v1/checkout", token, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var placed orderEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&placed))
	assert.True(t, decimal.NewFromInt(1320).Equal(placed.Data.Total))
	assert.Equal(t, domain.OrderStatusPending, placed.Data.Status)
	assert.Len(t, placed.Data.Items, 2)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/cart", token, nil)
	var cartResp cartEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&cartResp))
	assert.Empty(t, cartResp.Data.Items)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/orders", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var history struct {
		Data []domain.Order `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&history))
	require.Len(t, history.Data, 1)
	assert.Equal(t, placed.Data.ID, history.Data[0].ID)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/orders/"+placed.Data.ID, token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var one orderEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&one))
	assert.Equal(t, placed.Data.ID, one.Data.ID)
	assert.Len(t, one.Data.Items, 2)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/orders/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "order_not_found", decodeError(t, rr).Code)

	// another user cannot read the order
	other := signUp(t, h, "tigist@example.com")
	rr = doRequest(t, h, http.MethodGet, "/api/v1/orders/"+placed.Data.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCheckoutErrorStatus(t *testing.T) {
	status, code, msg := checkoutErrorStatus(&checkout.OrderItemsError{Err: repository.ErrOrderItemsInsert})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "order_items_failed", code)
	assert.Equal(t, "Failed to save order items", msg)

	status, _, msg = checkoutErrorStatus(&checkout.OrderCreationError{Err: repository.ErrOrderInsert})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "Failed to create order", msg)

	status, code, _ = checkoutErrorStatus(checkout.ErrCheckoutInProgress)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "checkout_in_progress", code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	handler := rl.Middleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
