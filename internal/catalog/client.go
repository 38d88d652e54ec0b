// Package catalog is the product/promotion lookup used to price
// commissions: the commission rule captured on a promotion and the lines
// of an order.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/httpretry"
)

// Client calls the catalog service over HTTP with retries.
type Client struct {
	baseURL string
	apiKey  string
	http    httpretry.HTTPDoer
}

// NewClient creates a catalog client. doer is usually a
// *httpretry.RetryClient.
func NewClient(baseURL, apiKey string, doer httpretry.HTTPDoer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    doer,
	}
}

// CommissionRule fetches the rule on the promotion linking promoterID to
// productID.
func (c *Client) CommissionRule(ctx context.Context, productID, promoterID string) (*domain.CommissionRule, error) {
	q := url.Values{}
	q.Set("product_id", productID)
	q.Set("promoter_id", promoterID)

	var rule domain.CommissionRule
	if err := c.get(ctx, "/v1/promotions/commission-rule?"+q.Encode(), &rule); err != nil {
		return nil, fmt.Errorf("get commission rule for %s/%s: %w", productID, promoterID, err)
	}
	return &rule, nil
}

// Order fetches an order's lines.
func (c *Client) Order(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	if err := c.get(ctx, "/v1/orders/"+url.PathEscape(orderID), &order); err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return &order, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("catalog returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}
