package chainclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetTransaction_ParsesTransactionDetail(t *testing.T) {
	var gotPath, gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("x-api-key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"txid": "f3b1",
			"status": {"confirmed": true, "block_height": 850000},
			"vout": [
				{"scriptpubkey_address": "bc1qvault", "value": 50000},
				{"scriptpubkey_address": "bc1qchange", "value": 1234}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key", time.Second)
	tx, err := client.GetTransaction(context.Background(), "f3b1")
	if err != nil {
		t.Fatalf("GetTransaction returned error: %v", err)
	}

	if gotPath != "/api/tx/f3b1" {
		t.Fatalf("expected path /api/tx/f3b1, got %s", gotPath)
	}
	if gotAPIKey != "secret-key" {
		t.Fatalf("expected api key header, got %q", gotAPIKey)
	}
	if !tx.Status.Confirmed {
		t.Fatal("expected confirmed transaction")
	}
	if len(tx.Outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(tx.Outputs))
	}
	if tx.Outputs[0].Address != "bc1qvault" || tx.Outputs[0].ValueSats != 50000 {
		t.Fatalf("unexpected first output: %+v", tx.Outputs[0])
	}
}

func TestGetTransaction_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	_, err := client.GetTransaction(context.Background(), "deadbeef")
	if !errors.Is(err, ErrTxNotFound) {
		t.Fatalf("expected ErrTxNotFound, got %v", err)
	}
}

func TestGetTransaction_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 10*time.Millisecond)
	_, err := client.GetTransaction(context.Background(), "f3b1")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestGetTransaction_StructuredUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "malformed txid"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	_, err := client.GetTransaction(context.Background(), "zzz")

	var upstream *ErrorResponse
	if !errors.As(err, &upstream) {
		t.Fatalf("expected ErrorResponse, got %v", err)
	}
	if upstream.Message != "malformed txid" {
		t.Fatalf("expected upstream detail, got %q", upstream.Message)
	}
}
