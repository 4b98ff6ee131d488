package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	domainexchange "main/internal/domain/entity/exchange"
	domainusers "main/internal/domain/entity/users"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// apiClient is a thin typed client over the exchange HTTP API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return &apiError{Status: resp.StatusCode, Body: string(payload)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(payload, out)
}

type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Body)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *apiClient) Register(ctx context.Context, email, password string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/users", "", credentials{Email: email, Password: password}, nil)
}

// Token authenticates, registering the account first when it does not
// exist yet.
func (c *apiClient) Token(ctx context.Context, email, password string) (string, error) {
	var token domainusers.Token
	err := c.do(ctx, http.MethodPost, "/api/v1/users/token", "", credentials{Email: email, Password: password}, &token)
	if err == nil {
		return token.Value, nil
	}
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		return "", err
	}
	if err := c.Register(ctx, email, password); err != nil {
		return "", err
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/users/token", "", credentials{Email: email, Password: password}, &token); err != nil {
		return "", err
	}
	return token.Value, nil
}

func (c *apiClient) CreateInstrument(ctx context.Context, token, name string) (uuid.UUID, error) {
	var instrument domainexchange.Instrument
	payload := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/api/v1/instruments", token, payload, &instrument); err != nil {
		return uuid.Nil, err
	}
	return instrument.UID, nil
}

func (c *apiClient) GetCashBalance(ctx context.Context, token string) (decimal.Decimal, error) {
	var balance domainexchange.CashBalance
	if err := c.do(ctx, http.MethodGet, "/api/v1/balances/cash", token, nil, &balance); err != nil {
		return decimal.Zero, err
	}
	return balance.Amount, nil
}

func (c *apiClient) SetCashBalance(ctx context.Context, token string, amount decimal.Decimal) error {
	payload := map[string]decimal.Decimal{"amount": amount}
	return c.do(ctx, http.MethodPut, "/api/v1/balances/cash", token, payload, nil)
}

func (c *apiClient) GetQuantityBalance(ctx context.Context, token string, instrumentUID uuid.UUID) (decimal.Decimal, error) {
	var balance domainexchange.QuantityBalance
	path := "/api/v1/balances/instrument?instrument_uid=" + instrumentUID.String()
	if err := c.do(ctx, http.MethodGet, path, token, nil, &balance); err != nil {
		return decimal.Zero, err
	}
	return balance.Amount, nil
}

func (c *apiClient) SetQuantityBalance(ctx context.Context, token string, instrumentUID uuid.UUID, amount decimal.Decimal) error {
	payload := map[string]interface{}{
		"instrument_uid": instrumentUID.String(),
		"amount":         amount,
	}
	return c.do(ctx, http.MethodPut, "/api/v1/balances/instrument", token, payload, nil)
}

type placedOrder struct {
	Order  *domainexchange.Order  `json:"order"`
	Trades []domainexchange.Trade `json:"trades"`
}

func (c *apiClient) PlaceOrder(ctx context.Context, token string, instrumentUID uuid.UUID, side string, price, quantity decimal.Decimal) (*placedOrder, error) {
	payload := map[string]interface{}{
		"instrument_uid": instrumentUID.String(),
		"side":           side,
		"price":          price,
		"quantity":       quantity,
	}
	var result placedOrder
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", token, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *apiClient) CancelOrders(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/orders", token, nil, nil)
}

type statValue struct {
	InstrumentUID uuid.UUID       `json:"instrument_uid"`
	Value         decimal.Decimal `json:"value"`
}

func (c *apiClient) Price(ctx context.Context, instrumentUID uuid.UUID) (decimal.Decimal, error) {
	var stat statValue
	path := "/api/v1/stats/price?instrument_uid=" + instrumentUID.String()
	if err := c.do(ctx, http.MethodGet, path, "", nil, &stat); err != nil {
		return decimal.Zero, err
	}
	return stat.Value, nil
}

func (c *apiClient) WriteStats(ctx context.Context, token string, instrumentUID, runUID uuid.UUID) error {
	payload := map[string]string{
		"instrument_uid": instrumentUID.String(),
		"run_uid":        runUID.String(),
	}
	return c.do(ctx, http.MethodPost, "/api/v1/stats", token, payload, nil)
}
