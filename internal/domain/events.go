/**
 * @description
 * Event payloads published to RabbitMQ when jobs and payments change state.
 * Downstream consumers (notification display boards, SMS senders) subscribe
 * to these; this service only publishes.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// PrintJobEvent is published on every job status transition.
type PrintJobEvent struct {
	JobID         uuid.UUID `json:"job_id"`
	JobNumber     string    `json:"job_number"`
	AccountID     uuid.UUID `json:"account_id"`
	Status        string    `json:"status"`
	QueuePosition *int      `json:"queue_position,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// PaymentEvent is published when a payment is finalized.
type PaymentEvent struct {
	PaymentID uuid.UUID `json:"payment_id"`
	AccountID uuid.UUID `json:"account_id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
