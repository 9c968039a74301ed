// Package gateway talks to the external payment processor's REST API.
// Only order creation happens server-side; payment collection itself runs
// in the processor's embedded client flow and comes back as a signed
// callback.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Order is the processor's record of a payable amount, created before the
// user sees the collection UI.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// Processor creates remote orders with the external payment processor.
type Processor interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (Order, error)
}

// Error is a failed call to the processor, carrying the raw collaborator
// message when one was returned.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("payment gateway: %s (status %d)", e.Message, e.StatusCode)
}

type Client struct {
	baseURL   *url.URL
	keyID     string
	keySecret string
	http      *http.Client
}

func NewClient(baseURL, keyID, keySecret string, httpClient *http.Client) *Client {
	u, err := url.Parse(baseURL)
	if err != nil {
		// Fail fast: config error
		panic(fmt.Sprintf("invalid gateway base url %q: %v", baseURL, err))
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: u, keyID: keyID, keySecret: keySecret, http: httpClient}
}

// KeyID is the public key identifier the collection UI needs.
func (c *Client) KeyID() string { return c.keyID }

func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (Order, error) {
	body, err := json.Marshal(map[string]any{
		"amount":          amount, // minor units
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1, // auto capture
	})
	if err != nil {
		return Order{}, fmt.Errorf("marshal order request: %w", err)
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: "/v1/orders"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return Order{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return Order{}, &Error{StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Order{}, &Error{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	var out Order
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Order{}, fmt.Errorf("decode order response: %w", err)
	}
	return out, nil
}

func readErrorMessage(r io.Reader) string {
	var body struct {
		Error struct {
			Description string `json:"description"`
		} `json:"error"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error.Description != "" {
			return body.Error.Description
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return "request failed"
}
