package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	appexchange "main/internal/application/service/exchange"
	appusers "main/internal/application/service/users"
	"main/internal/config"
	"main/internal/infrastructure/ledger/memory"
	infrahttp "main/internal/interfaces/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHandler() (*infrahttp.Handler, *memory.Store) {
	store := memory.NewStore()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := config.MatchingConfig{LockTimeout: 2 * time.Second, MarketMakerMarker: "bank"}
	exchangeService := appexchange.NewService(store, store, cfg, nil, logger)
	usersService := appusers.NewService(store)
	return infrahttp.NewHandler(exchangeService, usersService, nil, 0), store
}

func perform(h *infrahttp.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

// registerAndLogin provisions an account through the API and returns its token.
func registerAndLogin(t *testing.T, h *infrahttp.Handler, email string) string {
	t.Helper()
	creds := map[string]string{"email": email, "password": "password-1"}
	rec := perform(h, nethttp.MethodPost, "/api/v1/users", "", creds)
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())

	rec = perform(h, nethttp.MethodPost, "/api/v1/users/token", "", creds)
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	var token struct {
		Token string `json:"token"`
	}
	decode(t, rec, &token)
	require.NotEmpty(t, token.Token)
	return token.Token
}

func createInstrumentAPI(t *testing.T, h *infrahttp.Handler, token, name string) string {
	t.Helper()
	rec := perform(h, nethttp.MethodPost, "/api/v1/instruments", token, map[string]string{"name": name})
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	var instrument struct {
		UID string `json:"uid"`
	}
	decode(t, rec, &instrument)
	return instrument.UID
}

func setCash(t *testing.T, h *infrahttp.Handler, token, amount string) {
	t.Helper()
	rec := perform(h, nethttp.MethodPut, "/api/v1/balances/cash", token, map[string]string{"amount": amount})
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
}

func setQuantity(t *testing.T, h *infrahttp.Handler, token, instrumentUID, amount string) {
	t.Helper()
	rec := perform(h, nethttp.MethodPut, "/api/v1/balances/instrument", token, map[string]string{
		"instrument_uid": instrumentUID,
		"amount":         amount,
	})
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
}

func TestRegisterEndpoint(t *testing.T) {
	h, _ := newTestHandler()

	rec := perform(h, nethttp.MethodPost, "/api/v1/users", "", map[string]string{
		"email": "alice@example.com", "password": "password-1",
	})
	require.Equal(t, nethttp.StatusCreated, rec.Code)
	var user struct {
		Email string `json:"email"`
	}
	decode(t, rec, &user)
	require.Equal(t, "alice@example.com", user.Email)

	// Duplicate email.
	rec = perform(h, nethttp.MethodPost, "/api/v1/users", "", map[string]string{
		"email": "alice@example.com", "password": "password-2",
	})
	require.Equal(t, nethttp.StatusConflict, rec.Code)

	// Short password.
	rec = perform(h, nethttp.MethodPost, "/api/v1/users", "", map[string]string{
		"email": "bob@example.com", "password": "short",
	})
	require.Equal(t, nethttp.StatusBadRequest, rec.Code)
}

func TestTokenEndpoint(t *testing.T) {
	h, _ := newTestHandler()
	registerAndLogin(t, h, "alice@example.com")

	rec := perform(h, nethttp.MethodPost, "/api/v1/users/token", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	require.Equal(t, nethttp.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	h, _ := newTestHandler()
	token := registerAndLogin(t, h, "alice@example.com")

	rec := perform(h, nethttp.MethodGet, "/api/v1/users/me", "", nil)
	require.Equal(t, nethttp.StatusUnauthorized, rec.Code)

	rec = perform(h, nethttp.MethodGet, "/api/v1/users/me", "not-a-token", nil)
	require.Equal(t, nethttp.StatusUnauthorized, rec.Code)

	rec = perform(h, nethttp.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var me struct {
		Email string `json:"email"`
	}
	decode(t, rec, &me)
	require.Equal(t, "alice@example.com", me.Email)

	// The Token scheme is accepted alongside Bearer.
	req := httptest.NewRequest(nethttp.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Token "+token)
	alt := httptest.NewRecorder()
	h.ServeHTTP(alt, req)
	require.Equal(t, nethttp.StatusOK, alt.Code)
}

func TestOrderFlow(t *testing.T) {
	h, _ := newTestHandler()
	sellerToken := registerAndLogin(t, h, "seller@example.com")
	buyerToken := registerAndLogin(t, h, "buyer@example.com")
	instrumentUID := createInstrumentAPI(t, h, sellerToken, "GOLD")

	setCash(t, h, buyerToken, "1000")
	setQuantity(t, h, sellerToken, instrumentUID, "100")

	rec := perform(h, nethttp.MethodPost, "/api/v1/orders", sellerToken, map[string]any{
		"instrument_uid": instrumentUID,
		"side":           "sell",
		"price":          "5",
		"quantity":       "50",
	})
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	var placed struct {
		Order struct {
			UID    string `json:"uid"`
			Status string `json:"status"`
		} `json:"order"`
		Trades []json.RawMessage `json:"trades"`
	}
	decode(t, rec, &placed)
	require.Equal(t, "active", placed.Order.Status)
	require.Empty(t, placed.Trades)
	sellOrderUID := placed.Order.UID

	rec = perform(h, nethttp.MethodPost, "/api/v1/orders", buyerToken, map[string]any{
		"instrument_uid": instrumentUID,
		"side":           "buy",
		"price":          "6",
		"quantity":       "50",
	})
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	var matched struct {
		Order struct {
			Status          string `json:"status"`
			SettlementPrice string `json:"settlement_price"`
		} `json:"order"`
		Trades []struct {
			Price    decimal.Decimal `json:"price"`
			Quantity decimal.Decimal `json:"quantity"`
		} `json:"trades"`
	}
	decode(t, rec, &matched)
	require.Equal(t, "completed", matched.Order.Status)
	require.Len(t, matched.Trades, 1)
	require.True(t, matched.Trades[0].Price.Equal(decimal.NewFromInt(5)))

	// Owner sees the order, a stranger gets 404.
	rec = perform(h, nethttp.MethodGet, "/api/v1/orders/"+sellOrderUID, sellerToken, nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	rec = perform(h, nethttp.MethodGet, "/api/v1/orders/"+sellOrderUID, buyerToken, nil)
	require.Equal(t, nethttp.StatusNotFound, rec.Code)

	rec = perform(h, nethttp.MethodGet, "/api/v1/orders", sellerToken, nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var orders []json.RawMessage
	decode(t, rec, &orders)
	require.Len(t, orders, 1)

	// Settlement moved the balances.
	rec = perform(h, nethttp.MethodGet, "/api/v1/balances/cash", sellerToken, nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var cash struct {
		Amount decimal.Decimal `json:"amount"`
	}
	decode(t, rec, &cash)
	require.True(t, cash.Amount.Equal(decimal.NewFromInt(250)))

	rec = perform(h, nethttp.MethodGet,
		fmt.Sprintf("/api/v1/balances/instrument?instrument_uid=%s", instrumentUID), buyerToken, nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var quantity struct {
		Amount decimal.Decimal `json:"amount"`
	}
	decode(t, rec, &quantity)
	require.True(t, quantity.Amount.Equal(decimal.NewFromInt(50)))
}

func TestCancelOrdersEndpoint(t *testing.T) {
	h, _ := newTestHandler()
	token := registerAndLogin(t, h, "alice@example.com")
	instrumentUID := createInstrumentAPI(t, h, token, "GOLD")
	setCash(t, h, token, "100")

	rec := perform(h, nethttp.MethodPost, "/api/v1/orders", token, map[string]any{
		"instrument_uid": instrumentUID,
		"side":           "buy",
		"price":          "1",
		"quantity":       "1",
	})
	require.Equal(t, nethttp.StatusCreated, rec.Code)

	rec = perform(h, nethttp.MethodDelete, "/api/v1/orders", token, nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var result struct {
		Cancelled int64 `json:"cancelled"`
	}
	decode(t, rec, &result)
	require.EqualValues(t, 1, result.Cancelled)
}

func TestOrderErrorMapping(t *testing.T) {
	h, _ := newTestHandler()
	token := registerAndLogin(t, h, "alice@example.com")
	instrumentUID := createInstrumentAPI(t, h, token, "GOLD")

	// Invalid side.
	rec := perform(h, nethttp.MethodPost, "/api/v1/orders", token, map[string]any{
		"instrument_uid": instrumentUID,
		"side":           "hold",
		"price":          "1",
		"quantity":       "1",
	})
	require.Equal(t, nethttp.StatusBadRequest, rec.Code)

	// Insufficient cash on settlement.
	otherToken := registerAndLogin(t, h, "seller@example.com")
	setQuantity(t, h, otherToken, instrumentUID, "10")
	rec = perform(h, nethttp.MethodPost, "/api/v1/orders", otherToken, map[string]any{
		"instrument_uid": instrumentUID,
		"side":           "sell",
		"price":          "5",
		"quantity":       "1",
	})
	require.Equal(t, nethttp.StatusCreated, rec.Code)

	rec = perform(h, nethttp.MethodPost, "/api/v1/orders", token, map[string]any{
		"instrument_uid": instrumentUID,
		"side":           "buy",
		"price":          "5",
		"quantity":       "1",
	})
	require.Equal(t, nethttp.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	var body struct {
		Error string `json:"error"`
	}
	decode(t, rec, &body)
	require.NotEmpty(t, body.Error)

	// Orders against a deleted instrument are rejected.
	rec = perform(h, nethttp.MethodDelete, "/api/v1/instruments/"+instrumentUID, token, nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	setCash(t, h, token, "100")
	rec = perform(h, nethttp.MethodPost, "/api/v1/orders", token, map[string]any{
		"instrument_uid": instrumentUID,
		"side":           "buy",
		"price":          "1",
		"quantity":       "1",
	})
	require.Equal(t, nethttp.StatusUnprocessableEntity, rec.Code)
}

func TestBalanceEndpoints(t *testing.T) {
	h, _ := newTestHandler()
	token := registerAndLogin(t, h, "alice@example.com")

	// Registration seeds a zero cash balance.
	rec := perform(h, nethttp.MethodGet, "/api/v1/balances/cash", token, nil)
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	var cash struct {
		Amount decimal.Decimal `json:"amount"`
	}
	decode(t, rec, &cash)
	require.True(t, cash.Amount.IsZero())

	rec = perform(h, nethttp.MethodPut, "/api/v1/balances/cash", token, map[string]string{"amount": "-5"})
	require.Equal(t, nethttp.StatusBadRequest, rec.Code)

	setCash(t, h, token, "250.5")
	rec = perform(h, nethttp.MethodGet, "/api/v1/balances/cash", token, nil)
	decode(t, rec, &cash)
	require.True(t, cash.Amount.Equal(decimal.RequireFromString("250.5")))

	// Quantity balance requires the instrument_uid query param.
	rec = perform(h, nethttp.MethodGet, "/api/v1/balances/instrument", token, nil)
	require.Equal(t, nethttp.StatusBadRequest, rec.Code)
}

func TestInstrumentEndpoints(t *testing.T) {
	h, _ := newTestHandler()
	token := registerAndLogin(t, h, "alice@example.com")

	// Creation requires auth.
	rec := perform(h, nethttp.MethodPost, "/api/v1/instruments", "", map[string]string{"name": "GOLD"})
	require.Equal(t, nethttp.StatusUnauthorized, rec.Code)

	instrumentUID := createInstrumentAPI(t, h, token, "GOLD")

	// The catalog is public.
	rec = perform(h, nethttp.MethodGet, "/api/v1/instruments", "", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var list []struct {
		UID  string `json:"uid"`
		Name string `json:"name"`
	}
	decode(t, rec, &list)
	require.Len(t, list, 1)
	require.Equal(t, "GOLD", list[0].Name)

	rec = perform(h, nethttp.MethodGet, "/api/v1/instruments/"+instrumentUID, "", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)

	rec = perform(h, nethttp.MethodGet, "/api/v1/instruments/"+uuidZero, "", nil)
	require.Equal(t, nethttp.StatusNotFound, rec.Code)

	rec = perform(h, nethttp.MethodPut, "/api/v1/instruments/"+instrumentUID, token, map[string]string{
		"name": "GOLD-2", "status": "inactive",
	})
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var updated struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	decode(t, rec, &updated)
	require.Equal(t, "GOLD-2", updated.Name)
	require.Equal(t, "inactive", updated.Status)
}

const uuidZero = "00000000-0000-0000-0000-000000000001"

func TestStatsEndpoints(t *testing.T) {
	h, _ := newTestHandler()
	token := registerAndLogin(t, h, "bank@example.com")
	instrumentUID := createInstrumentAPI(t, h, token, "GOLD")
	setQuantity(t, h, token, instrumentUID, "40")

	rec := perform(h, nethttp.MethodGet, "/api/v1/stats/price", "", nil)
	require.Equal(t, nethttp.StatusBadRequest, rec.Code, "instrument_uid is required")

	rec = perform(h, nethttp.MethodPost, "/api/v1/orders", token, map[string]any{
		"instrument_uid": instrumentUID,
		"side":           "sell",
		"price":          "10",
		"quantity":       "10",
	})
	require.Equal(t, nethttp.StatusCreated, rec.Code)

	for path, want := range map[string]string{
		"/api/v1/stats/price?instrument_uid=" + instrumentUID:     "10",
		"/api/v1/stats/liquidity?instrument_uid=" + instrumentUID: "0",
		"/api/v1/stats/inventory?instrument_uid=" + instrumentUID: "40",
	} {
		rec = perform(h, nethttp.MethodGet, path, "", nil)
		require.Equal(t, nethttp.StatusOK, rec.Code, path)
		var stat struct {
			Value decimal.Decimal `json:"value"`
		}
		decode(t, rec, &stat)
		require.True(t, stat.Value.Equal(decimal.RequireFromString(want)), "%s: got %s", path, stat.Value)
	}

	rec = perform(h, nethttp.MethodPost, "/api/v1/stats", token, map[string]string{
		"instrument_uid": instrumentUID,
		"run_uid":        "7c9e6679-7425-40de-944b-e07fc1f90ae7",
	})
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	var snapshot struct {
		VolumeWeightedPrice decimal.Decimal `json:"volume_weighted_price"`
	}
	decode(t, rec, &snapshot)
	require.True(t, snapshot.VolumeWeightedPrice.Equal(decimal.NewFromInt(10)))
}
