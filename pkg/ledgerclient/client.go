/**
 * @description
 * This package provides a client for the target account-ledger node. It covers
 * the three calls the bridge needs: reading an account balance, submitting a
 * signed transfer from the custodial treasury identity, and looking transfers
 * up again by the bridge-supplied idempotency reference (used by the
 * reconciliation pass when a submission outcome is unknown).
 *
 * Failure classification matters here: a structured rejection response proves
 * the ledger refused the transfer before broadcast (safe to retry), while a
 * transport failure after the request was written proves nothing; those are
 * surfaced as ErrSubmissionAmbiguous and must never be blindly retried.
 *
 * @dependencies
 * - bytes, context, encoding/json, errors, fmt, net/http, time: Standard Go libraries.
 * - github.com/google/uuid: Transfer idempotency references.
 */
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Transfer states reported by the ledger node.
const (
	TransferStatePending   = "pending"
	TransferStateConfirmed = "confirmed"
	TransferStateFailed    = "failed"
)

var (
	// ErrSubmissionAmbiguous means the submission outcome is unknown: the
	// request may or may not have reached the ledger. Callers must go through
	// reconciliation, not retry.
	ErrSubmissionAmbiguous = errors.New("transfer submission outcome unknown")
	// ErrNotFound means the ledger has no record of the requested account or
	// transfer reference.
	ErrNotFound = errors.New("not found on target ledger")
	// ErrTimeout means the ledger node did not answer a read within the bound.
	ErrTimeout = errors.New("ledger node timed out")
)

// RejectionError is a structured pre-broadcast refusal from the ledger node.
// Nothing was submitted, so the attempt is safely retryable.
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("ledger rejected transfer (status %d): %s", e.StatusCode, e.Message)
}

// Client is a client for the target ledger node, bound to one signing identity.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new ledger-node client with a bounded timeout.
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

// Balance is an account balance in the ledger's smallest unit.
type Balance struct {
	Account string `json:"account"`
	Units   int64  `json:"units"`
}

// TransferRequest is the submission payload. Reference is the bridge-generated
// attempt id; the ledger deduplicates on it and indexes transfers by it.
type TransferRequest struct {
	Reference   uuid.UUID `json:"reference"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	AmountUnits int64     `json:"amount_units"`
	Memo        string    `json:"memo,omitempty"`
}

// Transfer is the ledger's view of a submitted transfer.
type Transfer struct {
	Reference uuid.UUID `json:"reference"`
	TxHash    string    `json:"tx_hash,omitempty"`
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// GetBalance fetches the current balance for an account.
func (c *Client) GetBalance(ctx context.Context, account string) (*Balance, error) {
	var balance Balance
	if err := c.getJSON(ctx, "/v1/accounts/"+account+"/balance", &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// SubmitTransfer submits a transfer from the signing identity. A 2xx response
// returns the pending transfer; a structured 4xx returns *RejectionError; any
// transport failure after the request was sent returns ErrSubmissionAmbiguous.
func (c *Client) SubmitTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/transfers", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		// The request may have been written before the failure, so the
		// transfer could still land. Surface as ambiguous, not retryable.
		log.Printf("level=warn component=ledger_client op=submit reference=%s msg=\"transport failure during submission\" err=%v", req.Reference, err)
		return nil, ErrSubmissionAmbiguous
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("level=warn component=ledger_client op=submit reference=%s msg=\"response read failure\" err=%v", req.Reference, err)
		return nil, ErrSubmissionAmbiguous
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		var errResp errorResponse
		if jsonErr := json.Unmarshal(bodyBytes, &errResp); jsonErr == nil && errResp.Message != "" {
			log.Printf("level=warn component=ledger_client op=submit reference=%s status=%d detail=%q", req.Reference, resp.StatusCode, errResp.Message)
			return nil, &RejectionError{StatusCode: resp.StatusCode, Message: errResp.Message}
		}
		return nil, &RejectionError{StatusCode: resp.StatusCode, Message: "transfer rejected"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 5xx: the node may have accepted the transfer before failing.
		log.Printf("level=warn component=ledger_client op=submit reference=%s status=%d msg=\"non-2xx submission response\"", req.Reference, resp.StatusCode)
		return nil, ErrSubmissionAmbiguous
	}

	var transfer Transfer
	if err := json.Unmarshal(bodyBytes, &transfer); err != nil {
		return nil, ErrSubmissionAmbiguous
	}
	return &transfer, nil
}

// GetTransferByReference looks a transfer up by its idempotency reference.
func (c *Client) GetTransferByReference(ctx context.Context, reference uuid.UUID) (*Transfer, error) {
	var transfer Transfer
	if err := c.getJSON(ctx, "/v1/transfers/by-reference/"+reference.String(), &transfer); err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create ledger request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return ErrTimeout
		}
		return fmt.Errorf("failed to execute ledger request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return ErrTimeout
		}
		return fmt.Errorf("failed to read ledger response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		if jsonErr := json.Unmarshal(bodyBytes, &errResp); jsonErr == nil && errResp.Message != "" {
			log.Printf("level=warn component=ledger_client op=get path=%s status=%d detail=%q", path, resp.StatusCode, errResp.Message)
			return fmt.Errorf("ledger request failed (status %d): %s", resp.StatusCode, errResp.Message)
		}
		log.Printf("level=warn component=ledger_client op=get path=%s status=%d msg=\"non-2xx response (unparsable error body)\"", path, resp.StatusCode)
		return fmt.Errorf("ledger request failed (status %d)", resp.StatusCode)
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode ledger response: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
