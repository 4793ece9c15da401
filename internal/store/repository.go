/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the print-service needs. The interface decouples the business logic
 * from PostgreSQL so that the service layer can be tested against stubs.
 *
 * Every method that represents a lifecycle transition (verify, admit, start,
 * complete, fail, hold, resume) is atomic: the implementation wraps the whole
 * transition, including any balance mutation, in a single database
 * transaction. Callers never compose partial mutations themselves.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For record identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/autoprint/print-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Account methods
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	FindAccountByStudentID(ctx context.Context, studentID string) (*domain.Account, error)
	// GetAccountBalance returns a point-in-time snapshot. It may be stale
	// under concurrent writes; funding decisions are made inside
	// AdmitPrintJob's transaction, never from this read.
	GetAccountBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
	CreditAccountBalance(ctx context.Context, accountID uuid.UUID, amount int64) error
	DebitAccountBalance(ctx context.Context, accountID uuid.UUID, amount int64) error

	// Document methods
	CreateDocument(ctx context.Context, doc *domain.Document) error
	FindDocumentByID(ctx context.Context, documentID uuid.UUID) (*domain.Document, error)

	// Payment methods
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	FindPaymentByID(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error)
	ListPayments(ctx context.Context, opts domain.PaymentListOptions) ([]domain.Payment, error)
	// VerifyPayment finalizes a pending payment as operator-verified and
	// credits the owning account, atomically. Already-finalized payments are
	// rejected with ErrPaymentAlreadyFinalized, never re-credited.
	VerifyPayment(ctx context.Context, paymentID uuid.UUID, verifiedBy, notes string) (*domain.Payment, error)
	RejectPayment(ctx context.Context, paymentID uuid.UUID, reason string) (*domain.Payment, error)
	// SettleGatewayPayment finalizes a pending payment from a gateway
	// callback, keyed by external transaction id. A successful settlement
	// credits the account in the same transaction; a reported amount that
	// disagrees with the stored payment fails with ErrPaymentAmountMismatch.
	SettleGatewayPayment(ctx context.Context, externalTxID string, reportedAmount int64, succeeded bool, reason string) (*domain.Payment, error)

	// Print job methods
	CreatePrintJob(ctx context.Context, job *domain.PrintJob) error
	FindPrintJobByID(ctx context.Context, jobID uuid.UUID) (*domain.PrintJob, error)
	ListPrintJobs(ctx context.Context, opts domain.PrintJobListOptions) ([]domain.PrintJob, error)
	FindAwaitingJobsByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.PrintJob, error)

	// Queue methods
	// ListQueueJobs returns every job in the given status, ordered by queue
	// position then creation time.
	ListQueueJobs(ctx context.Context, status string) ([]domain.PrintJob, error)
	NextToPrint(ctx context.Context) (*domain.PrintJob, error)
	// AdmitPrintJob runs the funding guard and, when it passes, appends the
	// job to the queue tail. The funding check, any balance debit, and the
	// position assignment share one transaction under the queue lock.
	AdmitPrintJob(ctx context.Context, jobID uuid.UUID) (*domain.PrintJob, error)
	StartPrintJob(ctx context.Context, jobID uuid.UUID) (*domain.PrintJob, error)
	CompletePrintJob(ctx context.Context, jobID uuid.UUID, notes string) (*domain.PrintJob, error)
	// FailPrintJob moves a job to failed per the transition table. With force
	// set it is the administrative override and accepts any non-terminal
	// status.
	FailPrintJob(ctx context.Context, jobID uuid.UUID, reason string, force bool) (*domain.PrintJob, error)
	HoldPrintJob(ctx context.Context, jobID uuid.UUID, notes string) (*domain.PrintJob, error)
	ResumePrintJob(ctx context.Context, jobID uuid.UUID) (*domain.PrintJob, error)
	ListStaleHeldJobs(ctx context.Context, heldBefore time.Time) ([]domain.PrintJob, error)
}
