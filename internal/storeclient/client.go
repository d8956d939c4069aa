// Package storeclient talks to the order storage API over HTTP. It implements
// the reconcile store, catalog and settings interfaces so an edit session can
// run against a remote server.
package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-pos/internal/reconcile"
	"github.com/noah-isme/backend-pos/internal/resilience"
)

// Config controls the client.
type Config struct {
	BaseURL      string
	TenantID     string
	TenantHeader string
	Timeout      time.Duration
	MaxAttempts  int
	BaseBackoff  time.Duration
	HTTPClient   *http.Client
	Breaker      *resilience.Breaker
}

// Client is a storage API client scoped to one tenant.
type Client struct {
	base   *url.URL
	tenant string
	header string
	http   resilience.HTTPClient
}

var (
	_ reconcile.OrderStore          = (*Client)(nil)
	_ reconcile.AtomicOrderStore    = (*Client)(nil)
	_ reconcile.PurchaseStore       = (*Client)(nil)
	_ reconcile.AtomicPurchaseStore = (*Client)(nil)
	_ reconcile.Catalog             = (*Client)(nil)
	_ reconcile.SettingsSource      = (*Client)(nil)
)

// New validates cfg and builds a client. Requests are traced through an
// otelhttp transport unless a custom http.Client is supplied.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("storeclient: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("storeclient: parse base url: %w", err)
	}
	header := cfg.TenantHeader
	if header == "" {
		header = "X-Tenant-ID"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("storage-api")
	}
	return &Client{
		base:   base,
		tenant: cfg.TenantID,
		header: header,
		http: resilience.HTTPClient{
			Client:      hc,
			Breaker:     breaker,
			BaseBackoff: cfg.BaseBackoff,
			MaxAttempts: cfg.MaxAttempts,
			Jitter:      0.2,
			Timeout:     cfg.Timeout,
			Retryable:   retryable,
		},
	}, nil
}

// reconcile endpoints are idempotent by client refs so they may be retried
func retryable(req *http.Request) bool {
	return resilience.IdempotentMethod(req) || strings.HasSuffix(req.URL.Path, "/reconcile")
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, headers ...string) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("storeclient: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reader)
	if err != nil {
		return fmt.Errorf("storeclient: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tenant != "" {
		req.Header.Set(c.header, c.tenant)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	if resp.StatusCode >= 400 {
		herr := &HTTPError{Method: method, Path: path, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.Error != nil {
			herr.Code, herr.Message = env.Error.Code, env.Error.Message
		}
		return herr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(raw) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("storeclient: decode %s %s: %w", method, path, err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("storeclient: decode %s %s data: %w", method, path, err)
	}
	return nil
}

func orderPath(id int64, rest ...string) string {
	return strings.Join(append([]string{fmt.Sprintf("/orders/%d", id)}, rest...), "/")
}

func purchasePath(id int64, rest ...string) string {
	return strings.Join(append([]string{fmt.Sprintf("/purchase-orders/%d", id)}, rest...), "/")
}

// CreateOrder creates an order with its initial lines. The server assigns
// the order number. A fresh idempotency key guards against double submits.
func (c *Client) CreateOrder(ctx context.Context, order reconcile.OrderSnapshot) (reconcile.OrderSnapshot, error) {
	var out reconcile.OrderSnapshot
	err := c.do(ctx, http.MethodPost, "/orders", order, &out, "Idempotency-Key", uuid.NewString())
	return out, err
}

// GetOrder fetches an order header.
func (c *Client) GetOrder(ctx context.Context, orderID int64) (reconcile.OrderHeader, error) {
	var out reconcile.OrderSnapshot
	if err := c.do(ctx, http.MethodGet, orderPath(orderID), nil, &out); err != nil {
		return reconcile.OrderHeader{}, err
	}
	return out.Order, nil
}

// ListOrderItems fetches the stored lines of an order.
func (c *Client) ListOrderItems(ctx context.Context, orderID int64) ([]reconcile.LineItem, error) {
	var out []reconcile.LineItem
	err := c.do(ctx, http.MethodGet, orderPath(orderID, "items"), nil, &out)
	return out, err
}

// AddOrderItems appends lines to an order and returns the stored rows.
func (c *Client) AddOrderItems(ctx context.Context, orderID int64, items []reconcile.LineItem) ([]reconcile.LineItem, error) {
	var out []reconcile.LineItem
	err := c.do(ctx, http.MethodPost, orderPath(orderID, "items"), map[string]any{"items": items}, &out)
	return out, err
}

// UpdateOrderItem patches discount, tax and price before tax of a line.
func (c *Client) UpdateOrderItem(ctx context.Context, itemID int64, patch reconcile.ItemPatch) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/order-items/%d", itemID), patch, nil)
}

// UpdateOrder writes the order header including its totals.
func (c *Client) UpdateOrder(ctx context.Context, orderID int64, header reconcile.OrderHeader) error {
	return c.do(ctx, http.MethodPut, orderPath(orderID), header, nil)
}

// DeleteOrderItem removes one line.
func (c *Client) DeleteOrderItem(ctx context.Context, itemID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/order-items/%d", itemID), nil, nil)
}

// ReconcileOrder sends the edited order for a single transactional save.
func (c *Client) ReconcileOrder(ctx context.Context, orderID int64, desired reconcile.OrderSnapshot) (reconcile.OrderSnapshot, error) {
	var out reconcile.OrderSnapshot
	err := c.do(ctx, http.MethodPost, orderPath(orderID, "reconcile"), desired, &out)
	return out, err
}

// CreatePurchase creates a purchase receipt with its initial lines.
func (c *Client) CreatePurchase(ctx context.Context, purchase reconcile.PurchaseSnapshot) (reconcile.PurchaseSnapshot, error) {
	var out reconcile.PurchaseSnapshot
	err := c.do(ctx, http.MethodPost, "/purchase-orders", purchase, &out, "Idempotency-Key", uuid.NewString())
	return out, err
}

// GetPurchase fetches a purchase receipt header.
func (c *Client) GetPurchase(ctx context.Context, purchaseID int64) (reconcile.PurchaseHeader, error) {
	var out reconcile.PurchaseSnapshot
	if err := c.do(ctx, http.MethodGet, purchasePath(purchaseID), nil, &out); err != nil {
		return reconcile.PurchaseHeader{}, err
	}
	return out.Purchase, nil
}

// ListPurchaseItems fetches the stored lines of a receipt in row order.
func (c *Client) ListPurchaseItems(ctx context.Context, purchaseID int64) ([]reconcile.LineItem, error) {
	var out []reconcile.LineItem
	err := c.do(ctx, http.MethodGet, purchasePath(purchaseID, "items"), nil, &out)
	return out, err
}

type purchaseItemRequest struct {
	PurchaseOrderID int64 `json:"purchaseOrderId"`
	reconcile.LineItem
}

// CreatePurchaseItem inserts one receipt line.
func (c *Client) CreatePurchaseItem(ctx context.Context, purchaseID int64, item reconcile.LineItem) (reconcile.LineItem, error) {
	var out reconcile.LineItem
	err := c.do(ctx, http.MethodPost, "/purchase-order-items", purchaseItemRequest{PurchaseOrderID: purchaseID, LineItem: item}, &out)
	return out, err
}

// DeletePurchaseItem removes one receipt line.
func (c *Client) DeletePurchaseItem(ctx context.Context, itemID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/purchase-order-items/%d", itemID), nil, nil)
}

// UpdatePurchase writes the receipt header including its totals.
func (c *Client) UpdatePurchase(ctx context.Context, purchaseID int64, header reconcile.PurchaseHeader) error {
	return c.do(ctx, http.MethodPut, purchasePath(purchaseID), header, nil)
}

// ReconcilePurchase replaces a receipt's lines and header in one call.
func (c *Client) ReconcilePurchase(ctx context.Context, purchaseID int64, desired reconcile.PurchaseSnapshot) (reconcile.PurchaseSnapshot, error) {
	var out reconcile.PurchaseSnapshot
	err := c.do(ctx, http.MethodPost, purchasePath(purchaseID, "reconcile"), desired, &out)
	return out, err
}

// Product looks up a catalog product.
func (c *Client) Product(ctx context.Context, productID int64) (reconcile.Product, error) {
	var out reconcile.Product
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", productID), nil, &out)
	return out, err
}

// StoreSettings reads the store tax configuration.
func (c *Client) StoreSettings(ctx context.Context) (reconcile.Settings, error) {
	var out reconcile.Settings
	err := c.do(ctx, http.MethodGet, "/settings", nil, &out)
	return out, err
}
