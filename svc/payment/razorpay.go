package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// OrderRequest is the body of POST /v1/orders. Amount is in minor units.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// GatewayOrder is the subset of the gateway order entity we keep.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Gateway creates orders at the payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (GatewayOrder, error)
}

// Razorpay talks to the Razorpay Orders API with basic auth.
type Razorpay struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

func NewRazorpay(cfg Config) *Razorpay {
	return &Razorpay{
		baseURL:   cfg.BaseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (GatewayOrder, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return GatewayOrder{}, errors.Join(ErrGateway, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return GatewayOrder{}, errors.Join(ErrGateway, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(r.keyID, r.keySecret)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return GatewayOrder{}, errors.Join(ErrGateway, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return GatewayOrder{}, errors.Join(ErrGateway, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr razorpayError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Description != "" {
			return GatewayOrder{}, fmt.Errorf("%w: %s: %s", ErrGateway, apiErr.Error.Code, apiErr.Error.Description)
		}
		return GatewayOrder{}, fmt.Errorf("%w: unexpected status %d", ErrGateway, resp.StatusCode)
	}

	var order GatewayOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return GatewayOrder{}, errors.Join(ErrGateway, err)
	}
	if order.ID == "" {
		return GatewayOrder{}, fmt.Errorf("%w: order id missing in response", ErrGateway)
	}
	return order, nil
}

// Receipt builds a receipt id that stays within the provider's 40 character limit.
func Receipt(userID string, now time.Time) string {
	return "rcpt_" + lastN(userID, 8) + "_" + lastN(strconv.FormatInt(now.UnixMilli(), 10), 8)
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
