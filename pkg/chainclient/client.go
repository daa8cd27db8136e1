/**
 * @description
 * This package provides a client for the source-chain inspection service. It
 * encapsulates the logic for fetching transaction detail (confirmation status
 * and output list) over authenticated HTTP, handling response parsing, and
 * mapping upstream failures to typed errors the verifier can act on.
 *
 * @dependencies
 * - context, encoding/json, errors, fmt, net/http, time: Standard Go libraries.
 */
package chainclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

var (
	// ErrTxNotFound means the inspection service has no record of the
	// transaction id.
	ErrTxNotFound = errors.New("transaction not found on source chain")
	// ErrTimeout means the inspection service did not answer within the
	// configured bound.
	ErrTimeout = errors.New("inspection service timed out")
)

// Client is a client for the source-chain inspection service.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new inspection-service client with a bounded timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// TxOutput is a single output of an inspected transaction.
type TxOutput struct {
	Address   string `json:"scriptpubkey_address"`
	ValueSats int64  `json:"value"`
}

// TxStatus is the confirmation state of an inspected transaction.
type TxStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"block_height,omitempty"`
	BlockHash   string `json:"block_hash,omitempty"`
}

// Transaction is the inspection service's view of a source-chain transaction.
type Transaction struct {
	TxID    string     `json:"txid"`
	Status  TxStatus   `json:"status"`
	Outputs []TxOutput `json:"vout"`
}

// ErrorResponse represents a structured error from the inspection service.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e *ErrorResponse) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("inspection service error: %s", e.Message)
	}
	return "unknown inspection service error"
}

// GetTransaction fetches transaction detail for the given id.
func (c *Client) GetTransaction(ctx context.Context, txID string) (*Transaction, error) {
	url := c.BaseURL + "/api/tx/" + txID

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create inspection request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to execute inspection request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to read inspection response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTxNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil || errResp.Message == "" {
			log.Printf("level=warn component=chain_client op=get_tx status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return nil, fmt.Errorf("inspection request failed (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=chain_client op=get_tx status=%d detail=%q", resp.StatusCode, errResp.Message)
		return nil, &errResp
	}

	var tx Transaction
	if err := json.Unmarshal(bodyBytes, &tx); err != nil {
		return nil, fmt.Errorf("failed to decode inspection response: %w", err)
	}
	return &tx, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
