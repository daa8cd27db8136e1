package priceclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetSpotPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/prices/BTC-USD/spot" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"amount": "64250.12", "currency": "USD"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	quote, err := client.GetSpotPrice(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("GetSpotPrice returned error: %v", err)
	}
	if quote.Pair != "BTC-USD" || quote.Amount != "64250.12" {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}

func TestGetSpotPrice_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	if _, err := client.GetSpotPrice(context.Background(), "BTC-USD"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
