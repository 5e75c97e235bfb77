// Package posapi talks to the external order API that owns persisted orders,
// order items and store settings.
package posapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/tabletill/internal/domain"
	"github.com/dukerupert/tabletill/internal/pricing"
	"github.com/dukerupert/tabletill/internal/telemetry"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every order API call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// Config holds order API client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a JSON client for the order API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *telemetry.BusinessMetrics
	logger     *zerolog.Logger
}

// NewClient creates an order API client.
func NewClient(cfg Config, metrics *telemetry.BusinessMetrics, logger *zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// StoreSettings is the subset of store settings that affects pricing.
type StoreSettings struct {
	StoreName        string `json:"storeName,omitempty"`
	PriceIncludesTax bool   `json:"priceIncludesTax"`
}

// ItemUpdate is the body of an order item update.
type ItemUpdate struct {
	Quantity       int    `json:"quantity"`
	UnitPrice      string `json:"unitPrice"`
	Discount       string `json:"discount"`
	Tax            string `json:"tax"`
	PriceBeforeTax string `json:"priceBeforeTax"`
	Total          string `json:"total"`
}

// NewItemUpdate converts an encoded line into an update body.
func NewItemUpdate(p pricing.ItemPayload) ItemUpdate {
	return ItemUpdate{
		Quantity:       p.Quantity,
		UnitPrice:      p.UnitPrice,
		Discount:       p.Discount,
		Tax:            p.Tax,
		PriceBeforeTax: p.PriceBeforeTax,
		Total:          p.Total,
	}
}

// Order identifies an order returned by the order API.
type Order struct {
	ID          ID     `json:"id"`
	OrderNumber string `json:"orderNumber,omitempty"`
}

// ID accepts both numeric and string identifiers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("order id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

type createOrderBody struct {
	Order pricing.TotalsPayload `json:"order"`
	Items []pricing.ItemPayload `json:"items"`
}

type addItemsBody struct {
	Items []pricing.ItemPayload `json:"items"`
}

// GetStoreSettings fetches the store settings.
func (c *Client) GetStoreSettings(ctx context.Context) (StoreSettings, error) {
	var settings StoreSettings
	err := c.do(ctx, "get_store_settings", http.MethodGet, "/api/store-settings", nil, &settings)
	return settings, err
}

// UpdateOrderItem writes the new state of an existing order item.
func (c *Client) UpdateOrderItem(ctx context.Context, itemID string, item ItemUpdate) error {
	return c.do(ctx, "update_order_item", http.MethodPut, "/api/order-items/"+url.PathEscape(itemID), item, nil)
}

// DeleteOrderItem removes an order item.
func (c *Client) DeleteOrderItem(ctx context.Context, itemID string) error {
	return c.do(ctx, "delete_order_item", http.MethodDelete, "/api/order-items/"+url.PathEscape(itemID), nil, nil)
}

// AddOrderItems appends new items to an existing order.
func (c *Client) AddOrderItems(ctx context.Context, orderID string, items []pricing.ItemPayload) error {
	if len(items) == 0 {
		return nil
	}
	return c.do(ctx, "add_order_items", http.MethodPost, "/api/orders/"+url.PathEscape(orderID)+"/items", addItemsBody{Items: items}, nil)
}

// UpdateOrder writes the order-level totals.
func (c *Client) UpdateOrder(ctx context.Context, orderID string, totals pricing.TotalsPayload) error {
	return c.do(ctx, "update_order", http.MethodPut, "/api/orders/"+url.PathEscape(orderID), totals, nil)
}

// CreateOrder creates a new order with its items.
func (c *Client) CreateOrder(ctx context.Context, order pricing.OrderPayload) (*Order, error) {
	var created Order
	body := createOrderBody{Order: order.TotalsPayload, Items: order.Items}
	if err := c.do(ctx, "create_order", http.MethodPost, "/api/orders", body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, in, out any) (err error) {
	op := "posapi." + operation
	start := time.Now()
	defer func() { c.metrics.ObserveOrderAPI(operation, start, err) }()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return domain.Internal(err, op, "failed to encode request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return domain.Internal(err, op, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("order api request failed")
		return domain.Unavailable(err, op, "Order API is unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Body: string(b)}
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("order api returned error")
		return apiErr
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("order api request")

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.Internal(err, op, "failed to decode response")
	}
	return nil
}
