package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mintbridge/redemption-service/pkg/chainclient"
)

const testReceivingAddress = "bc1qbridgevault000000000000000000000000000"

type inspectorStub struct {
	tx    *chainclient.Transaction
	err   error
	calls int
}

func (s *inspectorStub) GetTransaction(ctx context.Context, txID string) (*chainclient.Transaction, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.tx, nil
}

func confirmedTx(outputs ...chainclient.TxOutput) *chainclient.Transaction {
	return &chainclient.Transaction{
		TxID:    "f3b1",
		Status:  chainclient.TxStatus{Confirmed: true},
		Outputs: outputs,
	}
}

func TestVerify_AcceptsConfirmedMatchingPayment(t *testing.T) {
	inspector := &inspectorStub{tx: confirmedTx(
		chainclient.TxOutput{Address: testReceivingAddress, ValueSats: 60000},
		chainclient.TxOutput{Address: "bc1qchange", ValueSats: 1000},
	)}
	verifier := NewPaymentVerifier(inspector, testReceivingAddress, time.Second)

	proof, err := verifier.Verify(context.Background(), "f3b1", 50000)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if proof.MatchedSats != 60000 {
		t.Fatalf("expected 60000 matched sats, got %d", proof.MatchedSats)
	}
	if !proof.Confirmed {
		t.Fatal("expected proof to be confirmed")
	}
}

func TestVerify_SumsMultipleOutputsToReceivingAddress(t *testing.T) {
	inspector := &inspectorStub{tx: confirmedTx(
		chainclient.TxOutput{Address: testReceivingAddress, ValueSats: 30000},
		chainclient.TxOutput{Address: testReceivingAddress, ValueSats: 25000},
	)}
	verifier := NewPaymentVerifier(inspector, testReceivingAddress, time.Second)

	proof, err := verifier.Verify(context.Background(), "f3b1", 50000)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if proof.MatchedSats != 55000 {
		t.Fatalf("expected 55000 matched sats, got %d", proof.MatchedSats)
	}
}

func TestVerify_RejectsUnconfirmedPayment(t *testing.T) {
	inspector := &inspectorStub{tx: &chainclient.Transaction{
		TxID:    "f3b1",
		Status:  chainclient.TxStatus{Confirmed: false},
		Outputs: []chainclient.TxOutput{{Address: testReceivingAddress, ValueSats: 50000}},
	}}
	verifier := NewPaymentVerifier(inspector, testReceivingAddress, time.Second)

	_, err := verifier.Verify(context.Background(), "f3b1", 50000)
	if !errors.Is(err, ErrUnconfirmedPayment) {
		t.Fatalf("expected ErrUnconfirmedPayment, got %v", err)
	}
}

func TestVerify_RejectsAddressMismatchWithObservedList(t *testing.T) {
	inspector := &inspectorStub{tx: confirmedTx(
		chainclient.TxOutput{Address: "bc1qsomeoneelse", ValueSats: 50000},
		chainclient.TxOutput{Address: "bc1qchange", ValueSats: 1000},
	)}
	verifier := NewPaymentVerifier(inspector, testReceivingAddress, time.Second)

	_, err := verifier.Verify(context.Background(), "f3b1", 50000)

	var mismatch *AddressMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected AddressMismatchError, got %v", err)
	}
	if mismatch.Expected != testReceivingAddress {
		t.Fatalf("expected address %s in error, got %s", testReceivingAddress, mismatch.Expected)
	}
	if len(mismatch.Observed) != 2 {
		t.Fatalf("expected 2 observed destinations, got %d", len(mismatch.Observed))
	}
}

func TestVerify_RejectsInsufficientPayment(t *testing.T) {
	inspector := &inspectorStub{tx: confirmedTx(
		chainclient.TxOutput{Address: testReceivingAddress, ValueSats: 40000},
	)}
	verifier := NewPaymentVerifier(inspector, testReceivingAddress, time.Second)

	_, err := verifier.Verify(context.Background(), "f3b1", 50000)

	var insufficient *InsufficientPaymentError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientPaymentError, got %v", err)
	}
	if insufficient.ExpectedSats != 50000 || insufficient.ObservedSats != 40000 {
		t.Fatalf("expected 50000/40000 in error, got %d/%d", insufficient.ExpectedSats, insufficient.ObservedSats)
	}
}

func TestVerify_MapsUpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "not found", err: chainclient.ErrTxNotFound, wantErr: ErrUpstreamNotFound},
		{name: "timeout", err: chainclient.ErrTimeout, wantErr: ErrUpstreamTimeout},
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantErr: ErrUpstreamTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inspector := &inspectorStub{err: tt.err}
			verifier := NewPaymentVerifier(inspector, testReceivingAddress, time.Second)

			_, err := verifier.Verify(context.Background(), "f3b1", 50000)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
