/**
 * @description
 * This package provides a client for an external reference-price feed. The
 * quote is informational only: it is logged alongside redemptions for audit
 * dashboards and never participates in the deterministic reward formula.
 *
 * @dependencies
 * - context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package priceclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a client for the reference-price feed.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new price-feed client with a bounded timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Quote is a spot quote for a trading pair.
type Quote struct {
	Pair   string `json:"pair"`
	Amount string `json:"amount"`
}

type spotResponse struct {
	Data struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"data"`
}

// GetSpotPrice fetches the current spot price for a pair such as "BTC-USD".
func (c *Client) GetSpotPrice(ctx context.Context, pair string) (*Quote, error) {
	url := c.BaseURL + "/v2/prices/" + pair + "/spot"

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute price request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read price response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("price request failed (status %d)", resp.StatusCode)
	}

	var parsed spotResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}
	return &Quote{Pair: pair, Amount: parsed.Data.Amount}, nil
}
