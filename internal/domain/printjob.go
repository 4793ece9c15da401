/**
 * @description
 * This file defines the print-job domain models for the print-service.
 * A PrintJob moves through a fixed lifecycle from creation to a terminal
 * status, and the transition table in this file is the single source of
 * truth for which moves are legal. The store layer enforces the same
 * rules with guarded SQL updates; handlers and the service layer consult
 * this table before touching the database.
 *
 * @notes
 * - Monetary amounts are `int64` values in poisha (the smallest BDT unit)
 *   to avoid floating-point inaccuracies with money.
 * - `QueuePosition` is only meaningful while a job is queued; it is nil in
 *   every other status.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Print job lifecycle statuses.
const (
	JobStatusAwaitingPayment   = "awaiting_payment"
	JobStatusQueued            = "queued"
	JobStatusPrinting          = "printing"
	JobStatusWaitingForConfirm = "waiting_for_confirm"
	JobStatusCompleted         = "completed"
	JobStatusFailed            = "failed"
)

// jobTransitions is the canonical transition table. A nil entry means the
// status is terminal. Only a printing job fails through the table; failing
// any other non-terminal job is the operator override handled by the store's
// force path.
var jobTransitions = map[string][]string{
	JobStatusAwaitingPayment:   {JobStatusQueued},
	JobStatusQueued:            {JobStatusPrinting, JobStatusWaitingForConfirm},
	JobStatusPrinting:          {JobStatusCompleted, JobStatusFailed},
	JobStatusWaitingForConfirm: {JobStatusQueued},
	JobStatusCompleted:         nil,
	JobStatusFailed:            nil,
}

// CanTransition reports whether a job may move from one status to another.
// Terminal statuses permit no outgoing transitions.
func CanTransition(from, to string) bool {
	for _, allowed := range jobTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminalJobStatus reports whether the status is absorbing.
func IsTerminalJobStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// IsValidJobStatus reports whether the string names a known job status.
func IsValidJobStatus(status string) bool {
	_, ok := jobTransitions[status]
	return ok
}

// PrintJob is the central record for one print request. It maps directly to
// the `print_jobs` table.
type PrintJob struct {
	ID            uuid.UUID  `json:"id"`
	JobNumber     string     `json:"job_number"`
	PickupCode    string     `json:"pickup_code"`
	AccountID     uuid.UUID  `json:"account_id"`
	DocumentID    uuid.UUID  `json:"document_id"`
	PaymentID     *uuid.UUID `json:"payment_id,omitempty"`
	Status        string     `json:"status"`
	QueuePosition *int       `json:"queue_position,omitempty"`
	TotalPages    int        `json:"total_pages"`
	TotalCost     int64      `json:"total_cost"` // in poisha
	OperatorNotes *string    `json:"operator_notes,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Document is an immutable reference to an uploaded file plus the print
// settings chosen at upload time. Created once, read-only afterwards.
type Document struct {
	ID           uuid.UUID `json:"id"`
	AccountID    uuid.UUID `json:"account_id"`
	OriginalName string    `json:"original_name"`
	FileSize     int64     `json:"file_size"`
	PageCount    int       `json:"page_count"`
	Copies       int       `json:"copies"`
	ColorMode    string    `json:"color_mode"` // 'black_and_white' or 'color'
	PaperSize    string    `json:"paper_size"` // e.g. 'A4'
	Orientation  string    `json:"orientation"`
	DoubleSided  bool      `json:"double_sided"`
	CreatedAt    time.Time `json:"created_at"`
}

// TotalPages derives the sheet count a job for this document will consume.
func (d *Document) TotalPages() int {
	copies := d.Copies
	if copies < 1 {
		copies = 1
	}
	return d.PageCount * copies
}

// CreateDocumentRequest is the DTO for registering an uploaded document.
// The upload subsystem stores the file itself; this service only keeps the
// metadata needed to price and queue jobs.
type CreateDocumentRequest struct {
	OriginalName string `json:"original_name"`
	FileSize     int64  `json:"file_size"`
	PageCount    int    `json:"page_count"`
	Copies       int    `json:"copies"`
	ColorMode    string `json:"color_mode"`
	PaperSize    string `json:"paper_size"`
	Orientation  string `json:"orientation"`
	DoubleSided  bool   `json:"double_sided"`
}

// CreatePrintJobRequest is the DTO for submitting a print job.
type CreatePrintJobRequest struct {
	DocumentID uuid.UUID  `json:"document_id"`
	PaymentID  *uuid.UUID `json:"payment_id,omitempty"`
}

// QueueSnapshot groups the live queue for the operator console.
type QueueSnapshot struct {
	Queued            []PrintJob `json:"queued"`
	Printing          []PrintJob `json:"printing"`
	WaitingForConfirm []PrintJob `json:"waiting_for_confirm"`
	EstimatedWaitMin  int        `json:"estimated_wait_minutes"`
}

// PrintJobListOptions filters paginated operator job listings.
type PrintJobListOptions struct {
	Status    string
	AccountID *uuid.UUID
	Limit     int
	Offset    int
}
