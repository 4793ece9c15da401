package store

import (
	"testing"

	"github.com/autoprint/print-service/internal/domain"
)

func TestPaymentCoversCost(t *testing.T) {
	tests := []struct {
		name      string
		status    string
		amount    int64
		totalCost int64
		want      bool
	}{
		{name: "verified payment covering the cost", status: domain.PaymentStatusVerified, amount: 1600, totalCost: 1600, want: true},
		{name: "completed payment exceeding the cost", status: domain.PaymentStatusCompleted, amount: 2000, totalCost: 1600, want: true},
		{name: "verified payment smaller than the cost", status: domain.PaymentStatusVerified, amount: 100, totalCost: 1600, want: false},
		{name: "pending payment is not funds", status: domain.PaymentStatusPending, amount: 5000, totalCost: 1600, want: false},
		{name: "failed payment is not funds", status: domain.PaymentStatusFailed, amount: 5000, totalCost: 1600, want: false},
		{name: "zero cost is covered by any funded payment", status: domain.PaymentStatusVerified, amount: 0, totalCost: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := paymentCoversCost(tt.status, tt.amount, tt.totalCost); got != tt.want {
				t.Fatalf("paymentCoversCost(%q, %d, %d) = %t, want %t", tt.status, tt.amount, tt.totalCost, got, tt.want)
			}
		})
	}
}

func TestSettlementAmountMismatch(t *testing.T) {
	tests := []struct {
		name     string
		reported int64
		stored   int64
		want     bool
	}{
		{name: "matching amounts agree", reported: 1000, stored: 1000, want: false},
		{name: "omitted amount skips the check", reported: 0, stored: 1000, want: false},
		{name: "short report is a dispute", reported: 100, stored: 1000, want: true},
		{name: "inflated report is a dispute", reported: 2000, stored: 1000, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := settlementAmountMismatch(tt.reported, tt.stored); got != tt.want {
				t.Fatalf("settlementAmountMismatch(%d, %d) = %t, want %t", tt.reported, tt.stored, got, tt.want)
			}
		})
	}
}
