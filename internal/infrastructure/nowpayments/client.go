// Package nowpayments is a client for the NOWPayments crypto payment gateway.
package nowpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lendi-api/internal/config"
)

const (
	maxResponseSize = 64 << 10
	priceCurrency   = "usd"
)

// Gateway payment statuses reported by NOWPayments.
const (
	StatusWaiting       = "waiting"
	StatusConfirming    = "confirming"
	StatusConfirmed     = "confirmed"
	StatusSending       = "sending"
	StatusPartiallyPaid = "partially_paid"
	StatusFinished      = "finished"
	StatusFailed        = "failed"
	StatusRefunded      = "refunded"
	StatusExpired       = "expired"
)

// IsTerminalFailure reports whether status ends a payment without funds.
func IsTerminalFailure(status string) bool {
	switch status {
	case StatusFailed, StatusExpired, StatusRefunded:
		return true
	}
	return false
}

// ID is a gateway identifier that may arrive as a JSON number or string.
type ID string

func (i *ID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*i = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*i = ID(n.String())
	return nil
}

type Payment struct {
	PaymentID     ID      `json:"payment_id"`
	PaymentStatus string  `json:"payment_status"`
	PayAddress    string  `json:"pay_address"`
	PaymentURL    string  `json:"payment_url,omitempty"`
	PriceAmount   float64 `json:"price_amount"`
	PriceCurrency string  `json:"price_currency"`
	PayAmount     float64 `json:"pay_amount"`
	PayCurrency   string  `json:"pay_currency"`
	OrderID       string  `json:"order_id"`
	OrderDesc     string  `json:"order_description"`
}

type Estimate struct {
	AmountFrom      float64 `json:"amount_from"`
	CurrencyFrom    string  `json:"currency_from"`
	CurrencyTo      string  `json:"currency_to"`
	EstimatedAmount float64 `json:"estimated_amount"`
}

// IPN is the body NOWPayments posts to the callback URL.
type IPN struct {
	PaymentID     ID      `json:"payment_id"`
	PaymentStatus string  `json:"payment_status"`
	PayAddress    string  `json:"pay_address"`
	PriceAmount   float64 `json:"price_amount"`
	PriceCurrency string  `json:"price_currency"`
	PayAmount     float64 `json:"pay_amount"`
	ActuallyPaid  float64 `json:"actually_paid"`
	PayCurrency   string  `json:"pay_currency"`
	OrderID       string  `json:"order_id"`
}

type createPaymentRequest struct {
	PriceAmount    float64 `json:"price_amount"`
	PriceCurrency  string  `json:"price_currency"`
	PayCurrency    string  `json:"pay_currency"`
	OrderID        string  `json:"order_id"`
	OrderDesc      string  `json:"order_description"`
	IPNCallbackURL string  `json:"ipn_callback_url,omitempty"`
	SuccessURL     string  `json:"success_url,omitempty"`
	CancelURL      string  `json:"cancel_url,omitempty"`
}

type apiError struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Client calls the NOWPayments REST API and verifies its IPN signatures.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	ipnSecret   []byte
	payCurrency string
	callbackURL string
	successURL  string
	cancelURL   string
}

func NewClient(cfg config.NowPayments) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		ipnSecret:   []byte(cfg.IPNSecret),
		payCurrency: cfg.PayCurrency,
		callbackURL: cfg.CallbackURL,
		successURL:  cfg.SuccessURL,
		cancelURL:   cfg.CancelURL,
	}
}

// Estimate returns the crypto amount NOWPayments quotes for usd dollars.
func (c *Client) Estimate(ctx context.Context, usd float64) (*Estimate, error) {
	q := url.Values{}
	q.Set("amount", strconv.FormatFloat(usd, 'f', 2, 64))
	q.Set("currency_from", priceCurrency)
	q.Set("currency_to", c.payCurrency)
	var out Estimate
	if err := c.do(ctx, http.MethodGet, "/estimate?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("estimate: %w", err)
	}
	return &out, nil
}

// CreatePayment opens a payment for usd dollars tagged with orderID.
func (c *Client) CreatePayment(ctx context.Context, usd float64, orderID, description string) (*Payment, error) {
	body := createPaymentRequest{
		PriceAmount:    usd,
		PriceCurrency:  priceCurrency,
		PayCurrency:    c.payCurrency,
		OrderID:        orderID,
		OrderDesc:      description,
		IPNCallbackURL: c.callbackURL,
		SuccessURL:     c.successURL,
		CancelURL:      c.cancelURL,
	}
	var out Payment
	if err := c.do(ctx, http.MethodPost, "/payment", body, &out); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	if out.PaymentID == "" {
		return nil, errors.New("create payment: response has no payment_id")
	}
	return &out, nil
}

func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/payment/"+url.PathEscape(paymentID), nil, &out); err != nil {
		return nil, fmt.Errorf("payment status: %w", err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Message != "" {
			return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, ae.Message)
		}
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
