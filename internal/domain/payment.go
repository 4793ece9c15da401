/**
 * @description
 * This file defines the payment and account domain models for the
 * print-service. A Payment records money handed to the service through one
 * of the supported channels; an Account carries the spendable balance that
 * funds print jobs.
 *
 * @notes
 * - A payment becomes spendable exactly once: either an operator verifies it
 *   (`pending -> verified`) or the payment gateway confirms it
 *   (`pending -> completed`). Both finalize the payment and credit the
 *   account in the same database transaction.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusVerified  = "verified"
	PaymentStatusFailed    = "failed"
)

// Payment methods.
const (
	PaymentMethodMobileWallet = "mobile_wallet"
	PaymentMethodCard         = "card"
	PaymentMethodBalance      = "balance"
	PaymentMethodTransfer     = "transfer"
)

// IsFinalPaymentStatus reports whether the payment can no longer change.
func IsFinalPaymentStatus(status string) bool {
	return status == PaymentStatusVerified || status == PaymentStatusCompleted || status == PaymentStatusFailed
}

// IsFundedPaymentStatus reports whether the payment counts toward the
// funding guard. Gateway-confirmed payments fund a job the same way
// operator-verified ones do.
func IsFundedPaymentStatus(status string) bool {
	return status == PaymentStatusVerified || status == PaymentStatusCompleted
}

// IsValidPaymentMethod reports whether the string names a supported channel.
func IsValidPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodMobileWallet, PaymentMethodCard, PaymentMethodBalance, PaymentMethodTransfer:
		return true
	}
	return false
}

// Payment maps directly to the `payments` table.
type Payment struct {
	ID            uuid.UUID  `json:"id"`
	AccountID     uuid.UUID  `json:"account_id"`
	Amount        int64      `json:"amount"` // in poisha
	Currency      string     `json:"currency"`
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	ExternalTxID  *string    `json:"external_tx_id,omitempty"`
	VerifiedBy    *string    `json:"verified_by,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Account represents a student or operator account. The balance is mutated
// only inside store-level transactions.
type Account struct {
	ID           uuid.UUID `json:"id"`
	StudentID    string    `json:"student_id"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`    // 'student' or 'admin'
	Balance      int64     `json:"balance"` // in poisha
	IsActive     bool      `json:"is_active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OperatorLoginRequest carries the operator console credentials.
type OperatorLoginRequest struct {
	StudentID string `json:"student_id"`
	Password  string `json:"password"`
}

// AdjustBalanceRequest is the operator DTO for manual ledger corrections.
// Positive amounts credit the account, negative amounts debit it.
type AdjustBalanceRequest struct {
	Amount int64  `json:"amount"` // in poisha
	Reason string `json:"reason"`
}

// CreatePaymentRequest is the DTO for lodging a pending payment.
type CreatePaymentRequest struct {
	Amount       int64   `json:"amount"` // in poisha
	Method       string  `json:"method"`
	ExternalTxID *string `json:"external_tx_id,omitempty"`
}

// VerifyPaymentRequest carries the operator's verification input.
type VerifyPaymentRequest struct {
	Notes string `json:"notes"`
}

// RejectPaymentRequest carries the operator's rejection reason.
type RejectPaymentRequest struct {
	Reason string `json:"reason"`
}

// GatewayCallbackRequest is the payload posted by the payment gateway when a
// mobile-wallet or card payment settles.
type GatewayCallbackRequest struct {
	ExternalTxID string `json:"external_tx_id"`
	Amount       int64  `json:"amount"`
	Status       string `json:"status"` // 'successful' or 'failed'
	Reason       string `json:"reason,omitempty"`
}

// PaymentListOptions filters paginated operator payment listings.
type PaymentListOptions struct {
	Status    string
	Method    string
	AccountID *uuid.UUID
	Limit     int
	Offset    int
}
