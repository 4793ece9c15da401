/**
 * @description
 * This file contains the core business logic for the print-service. The
 * `Service` struct orchestrates the print-job lifecycle, coordinating
 * between the database repository, the operator session store, and the
 * message broker.
 *
 * Key features:
 * - Implements the main use cases: document registration, job submission,
 *   payment verification, and the operator queue transitions.
 * - Admission is funding-gated: a job enters the queue only once its linked
 *   payment is funded or its cost is debited from the account balance.
 * - Publishes events to RabbitMQ for asynchronous processing by other
 *   services; publish failures never fail the originating operation.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - golang.org/x/crypto/bcrypt: Operator password verification.
 * - internal/domain, internal/store, internal/session: Domain models, data
 *   access, and operator sessions.
 * - pkg/rabbitmq: For event publishing.
 */

package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/autoprint/print-service/internal/domain"
	"github.com/autoprint/print-service/internal/session"
	"github.com/autoprint/print-service/internal/store"
	"github.com/autoprint/print-service/pkg/rabbitmq"
)

// MinutesPerQueuedJob is the flat per-job estimate used for wait times.
const MinutesPerQueuedJob = 5

var (
	// ErrInvalidCredentials is returned on a failed operator login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotOperator is returned when a non-admin account tries to open an
	// operator session.
	ErrNotOperator = errors.New("account is not an operator")
	// ErrValidation wraps request-level validation failures.
	ErrValidation = errors.New("validation failed")
)

// Service provides the core business logic for the print-service.
type Service struct {
	repo          store.Repository
	sessions      session.Store
	eventProducer rabbitmq.Publisher
	costPerPage   int64 // in poisha
	currency      string
	holdMaxAge    time.Duration
}

// NewService creates a new print service instance.
func NewService(repo store.Repository, sessions session.Store, producer rabbitmq.Publisher, costPerPage int64, currency string, holdMaxAge time.Duration) *Service {
	return &Service{
		repo:          repo,
		sessions:      sessions,
		eventProducer: producer,
		costPerPage:   costPerPage,
		currency:      currency,
		holdMaxAge:    holdMaxAge,
	}
}

// Currency returns the ISO currency code amounts are denominated in.
func (s *Service) Currency() string {
	return s.currency
}

// --- Operator sessions ---

// Login verifies operator credentials and opens a console session.
func (s *Service) Login(ctx context.Context, req domain.OperatorLoginRequest) (string, *domain.Account, error) {
	account, err := s.repo.FindAccountByStudentID(ctx, strings.TrimSpace(req.StudentID))
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to look up operator account: %w", err)
	}
	if account.Role != "admin" || !account.IsActive {
		return "", nil, ErrNotOperator
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.sessions.Create(ctx, account.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}
	log.Printf("Login: operator %s opened a session", account.ID)
	return token, account, nil
}

// Logout destroys an operator session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// ResolveOperator maps a session token to the operator account id,
// refreshing the sliding expiry.
func (s *Service) ResolveOperator(ctx context.Context, token string) (uuid.UUID, error) {
	return s.sessions.Resolve(ctx, token)
}

// --- Documents and job submission ---

// RegisterDocument records the metadata of an uploaded document.
func (s *Service) RegisterDocument(ctx context.Context, accountID uuid.UUID, req domain.CreateDocumentRequest) (*domain.Document, error) {
	if strings.TrimSpace(req.OriginalName) == "" {
		return nil, fmt.Errorf("%w: original_name is required", ErrValidation)
	}
	if req.PageCount < 1 {
		return nil, fmt.Errorf("%w: page_count must be at least 1", ErrValidation)
	}
	copies := req.Copies
	if copies < 1 {
		copies = 1
	}

	doc := &domain.Document{
		ID:           uuid.New(),
		AccountID:    accountID,
		OriginalName: req.OriginalName,
		FileSize:     req.FileSize,
		PageCount:    req.PageCount,
		Copies:       copies,
		ColorMode:    defaultString(req.ColorMode, "black_and_white"),
		PaperSize:    defaultString(req.PaperSize, "A4"),
		Orientation:  defaultString(req.Orientation, "portrait"),
		DoubleSided:  req.DoubleSided,
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return doc, nil
}

// GetDocument returns a document owned by the given account.
func (s *Service) GetDocument(ctx context.Context, accountID, documentID uuid.UUID) (*domain.Document, error) {
	doc, err := s.repo.FindDocumentByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.AccountID != accountID {
		return nil, store.ErrDocumentNotFound
	}
	return doc, nil
}

// SubmitPrintJob prices a document, creates the job in awaiting_payment, and
// immediately attempts admission. An unfunded job is not an error; it stays
// in awaiting_payment until its payment is verified.
func (s *Service) SubmitPrintJob(ctx context.Context, accountID uuid.UUID, req domain.CreatePrintJobRequest) (*domain.PrintJob, error) {
	doc, err := s.GetDocument(ctx, accountID, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if req.PaymentID != nil {
		// A payment may only fund jobs of the account it belongs to.
		if _, err := s.GetPayment(ctx, accountID, *req.PaymentID); err != nil {
			return nil, err
		}
	}

	totalPages := doc.TotalPages()
	job := &domain.PrintJob{
		ID:         uuid.New(),
		JobNumber:  generateJobNumber(),
		PickupCode: generatePickupCode(),
		AccountID:  accountID,
		DocumentID: doc.ID,
		PaymentID:  req.PaymentID,
		Status:     domain.JobStatusAwaitingPayment,
		TotalPages: totalPages,
		TotalCost:  int64(totalPages) * s.costPerPage,
	}
	if err := s.repo.CreatePrintJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create print job: %w", err)
	}
	log.Printf("SubmitPrintJob: created job %s (%s) for account %s, cost %d", job.ID, job.JobNumber, accountID, job.TotalCost)

	if admitted, err := s.TryAdmitPrintJob(ctx, job.ID); err == nil {
		return admitted, nil
	} else if !errors.Is(err, store.ErrJobUnfunded) {
		log.Printf("SubmitPrintJob: admission attempt for job %s failed: %v", job.ID, err)
	}
	return job, nil
}

// GetPrintJob returns a job owned by the given account.
func (s *Service) GetPrintJob(ctx context.Context, accountID, jobID uuid.UUID) (*domain.PrintJob, error) {
	job, err := s.repo.FindPrintJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.AccountID != accountID {
		return nil, store.ErrPrintJobNotFound
	}
	return job, nil
}

// ListAccountPrintJobs returns the account's jobs, newest first.
func (s *Service) ListAccountPrintJobs(ctx context.Context, accountID uuid.UUID, opts domain.PrintJobListOptions) ([]domain.PrintJob, error) {
	opts.AccountID = &accountID
	return s.repo.ListPrintJobs(ctx, opts)
}

// ListPrintJobs returns jobs for the operator console.
func (s *Service) ListPrintJobs(ctx context.Context, opts domain.PrintJobListOptions) ([]domain.PrintJob, error) {
	return s.repo.ListPrintJobs(ctx, opts)
}

// --- Payments ---

// LodgePayment records a pending payment awaiting verification.
func (s *Service) LodgePayment(ctx context.Context, accountID uuid.UUID, req domain.CreatePaymentRequest) (*domain.Payment, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !domain.IsValidPaymentMethod(req.Method) {
		return nil, fmt.Errorf("%w: unsupported payment method %q", ErrValidation, req.Method)
	}

	payment := &domain.Payment{
		ID:           uuid.New(),
		AccountID:    accountID,
		Amount:       req.Amount,
		Currency:     s.currency,
		Method:       req.Method,
		Status:       domain.PaymentStatusPending,
		ExternalTxID: req.ExternalTxID,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	log.Printf("LodgePayment: payment %s of %d %s via %s for account %s", payment.ID, payment.Amount, payment.Currency, payment.Method, accountID)
	return payment, nil
}

// GetPayment returns a payment owned by the given account.
func (s *Service) GetPayment(ctx context.Context, accountID, paymentID uuid.UUID) (*domain.Payment, error) {
	payment, err := s.repo.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.AccountID != accountID {
		return nil, store.ErrPaymentNotFound
	}
	return payment, nil
}

// ListAccountPayments returns the account's payments, newest first.
func (s *Service) ListAccountPayments(ctx context.Context, accountID uuid.UUID, opts domain.PaymentListOptions) ([]domain.Payment, error) {
	opts.AccountID = &accountID
	return s.repo.ListPayments(ctx, opts)
}

// ListPayments returns payments for the operator console.
func (s *Service) ListPayments(ctx context.Context, opts domain.PaymentListOptions) ([]domain.Payment, error) {
	return s.repo.ListPayments(ctx, opts)
}

// VerifyPayment finalizes a pending payment as verified, credits the
// account, and admits any jobs that were waiting on it.
func (s *Service) VerifyPayment(ctx context.Context, paymentID uuid.UUID, operatorID uuid.UUID, notes string) (*domain.Payment, error) {
	payment, err := s.repo.VerifyPayment(ctx, paymentID, operatorID.String(), notes)
	if err != nil {
		return nil, err
	}
	log.Printf("VerifyPayment: payment %s verified by operator %s", paymentID, operatorID)

	s.publishPaymentEvent(ctx, payment)
	s.admitJobsAwaitingPayment(ctx, paymentID)
	return payment, nil
}

// RejectPayment finalizes a pending payment as failed. No credit occurs.
func (s *Service) RejectPayment(ctx context.Context, paymentID uuid.UUID, reason string) (*domain.Payment, error) {
	payment, err := s.repo.RejectPayment(ctx, paymentID, reason)
	if err != nil {
		return nil, err
	}
	log.Printf("RejectPayment: payment %s rejected: %s", paymentID, reason)
	s.publishPaymentEvent(ctx, payment)
	return payment, nil
}

// RecordGatewayCallback settles a pending payment from the gateway's
// server-to-server callback and admits any jobs waiting on it.
func (s *Service) RecordGatewayCallback(ctx context.Context, req domain.GatewayCallbackRequest) (*domain.Payment, error) {
	if strings.TrimSpace(req.ExternalTxID) == "" {
		return nil, fmt.Errorf("%w: external_tx_id is required", ErrValidation)
	}
	if req.Amount < 0 {
		return nil, fmt.Errorf("%w: amount cannot be negative", ErrValidation)
	}
	succeeded := req.Status == "successful"
	if !succeeded && req.Status != "failed" {
		return nil, fmt.Errorf("%w: unknown gateway status %q", ErrValidation, req.Status)
	}

	payment, err := s.repo.SettleGatewayPayment(ctx, req.ExternalTxID, req.Amount, succeeded, req.Reason)
	if err != nil {
		return nil, err
	}
	log.Printf("RecordGatewayCallback: payment %s settled as %s (tx %s)", payment.ID, payment.Status, req.ExternalTxID)

	s.publishPaymentEvent(ctx, payment)
	if succeeded {
		s.admitJobsAwaitingPayment(ctx, payment.ID)
	}
	return payment, nil
}

// admitJobsAwaitingPayment attempts admission for every awaiting job linked
// to the payment, oldest first. Individual failures are logged, not fatal:
// the job simply stays in awaiting_payment.
func (s *Service) admitJobsAwaitingPayment(ctx context.Context, paymentID uuid.UUID) {
	jobs, err := s.repo.FindAwaitingJobsByPaymentID(ctx, paymentID)
	if err != nil {
		log.Printf("WARN: failed to list jobs awaiting payment %s: %v", paymentID, err)
		return
	}
	for _, job := range jobs {
		if _, err := s.TryAdmitPrintJob(ctx, job.ID); err != nil {
			log.Printf("WARN: admission of job %s after payment %s failed: %v", job.ID, paymentID, err)
		}
	}
}

// --- Ledger ---

// GetBalance returns a snapshot of the account's balance in poisha.
func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return s.repo.GetAccountBalance(ctx, accountID)
}

// GetAccount returns the account record.
func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return s.repo.FindAccountByID(ctx, accountID)
}

// AdjustBalance applies a manual operator correction to an account balance.
// Positive amounts credit, negative amounts debit with the usual
// insufficient-funds guard.
func (s *Service) AdjustBalance(ctx context.Context, operatorID, accountID uuid.UUID, req domain.AdjustBalanceRequest) error {
	if req.Amount == 0 {
		return fmt.Errorf("%w: amount must be non-zero", ErrValidation)
	}
	var err error
	if req.Amount > 0 {
		err = s.repo.CreditAccountBalance(ctx, accountID, req.Amount)
	} else {
		err = s.repo.DebitAccountBalance(ctx, accountID, -req.Amount)
	}
	if err != nil {
		return err
	}
	log.Printf("AdjustBalance: operator %s adjusted account %s by %d (%s)", operatorID, accountID, req.Amount, req.Reason)
	return nil
}

// --- Queue operations ---

// TryAdmitPrintJob runs the funding-gated admission for one job and
// publishes the queued event when it succeeds.
func (s *Service) TryAdmitPrintJob(ctx context.Context, jobID uuid.UUID) (*domain.PrintJob, error) {
	job, err := s.repo.AdmitPrintJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	log.Printf("TryAdmitPrintJob: job %s (%s) admitted at position %d", job.ID, job.JobNumber, derefInt(job.QueuePosition))
	s.publishJobEvent(ctx, job)
	return job, nil
}

// QueueSnapshot assembles the operator console's live view of the queue.
func (s *Service) QueueSnapshot(ctx context.Context) (*domain.QueueSnapshot, error) {
	queued, err := s.repo.ListQueueJobs(ctx, domain.JobStatusQueued)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued jobs: %w", err)
	}
	printing, err := s.repo.ListQueueJobs(ctx, domain.JobStatusPrinting)
	if err != nil {
		return nil, fmt.Errorf("failed to list printing jobs: %w", err)
	}
	waiting, err := s.repo.ListQueueJobs(ctx, domain.JobStatusWaitingForConfirm)
	if err != nil {
		return nil, fmt.Errorf("failed to list held jobs: %w", err)
	}

	return &domain.QueueSnapshot{
		Queued:            queued,
		Printing:          printing,
		WaitingForConfirm: waiting,
		EstimatedWaitMin:  len(queued) * MinutesPerQueuedJob,
	}, nil
}

// NextToPrint returns the queued job at the head of the queue.
func (s *Service) NextToPrint(ctx context.Context) (*domain.PrintJob, error) {
	return s.repo.NextToPrint(ctx)
}

// StartPrintJob moves a queued job to printing.
func (s *Service) StartPrintJob(ctx context.Context, jobID uuid.UUID) (*domain.PrintJob, error) {
	job, err := s.repo.StartPrintJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	log.Printf("StartPrintJob: job %s (%s) is printing", job.ID, job.JobNumber)
	s.publishJobEvent(ctx, job)
	return job, nil
}

// CompletePrintJob moves a printing job to completed.
func (s *Service) CompletePrintJob(ctx context.Context, jobID uuid.UUID, notes string) (*domain.PrintJob, error) {
	job, err := s.repo.CompletePrintJob(ctx, jobID, notes)
	if err != nil {
		return nil, err
	}
	log.Printf("CompletePrintJob: job %s (%s) completed", job.ID, job.JobNumber)
	s.publishJobEvent(ctx, job)
	return job, nil
}

// FailPrintJob moves a job to failed. force is the administrative override
// that accepts any non-terminal status.
func (s *Service) FailPrintJob(ctx context.Context, jobID uuid.UUID, reason string, force bool) (*domain.PrintJob, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: a failure reason is required", ErrValidation)
	}
	job, err := s.repo.FailPrintJob(ctx, jobID, reason, force)
	if err != nil {
		return nil, err
	}
	log.Printf("FailPrintJob: job %s (%s) failed: %s", job.ID, job.JobNumber, reason)
	s.publishJobEvent(ctx, job)
	return job, nil
}

// HoldPrintJob parks a queued job in waiting_for_confirm.
func (s *Service) HoldPrintJob(ctx context.Context, jobID uuid.UUID, notes string) (*domain.PrintJob, error) {
	job, err := s.repo.HoldPrintJob(ctx, jobID, notes)
	if err != nil {
		return nil, err
	}
	log.Printf("HoldPrintJob: job %s (%s) held", job.ID, job.JobNumber)
	s.publishJobEvent(ctx, job)
	return job, nil
}

// ResumePrintJob returns a held job to the tail of the queue.
func (s *Service) ResumePrintJob(ctx context.Context, jobID uuid.UUID) (*domain.PrintJob, error) {
	job, err := s.repo.ResumePrintJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	log.Printf("ResumePrintJob: job %s (%s) re-queued at position %d", job.ID, job.JobNumber, derefInt(job.QueuePosition))
	s.publishJobEvent(ctx, job)
	return job, nil
}

// --- Event publishing ---

func (s *Service) publishJobEvent(ctx context.Context, job *domain.PrintJob) {
	if s.eventProducer == nil {
		return
	}
	event := domain.PrintJobEvent{
		JobID:         job.ID,
		JobNumber:     job.JobNumber,
		AccountID:     job.AccountID,
		Status:        job.Status,
		QueuePosition: job.QueuePosition,
		Timestamp:     time.Now().UTC(),
	}
	routingKey := "print.job." + job.Status
	if err := s.eventProducer.Publish(ctx, rabbitmq.EventsExchange, routingKey, event); err != nil {
		log.Printf("WARN: failed to publish %s for job %s: %v", routingKey, job.ID, err)
	}
}

func (s *Service) publishPaymentEvent(ctx context.Context, payment *domain.Payment) {
	if s.eventProducer == nil {
		return
	}
	event := domain.PaymentEvent{
		PaymentID: payment.ID,
		AccountID: payment.AccountID,
		Amount:    payment.Amount,
		Status:    payment.Status,
		Timestamp: time.Now().UTC(),
	}
	routingKey := "payment." + payment.Status
	if err := s.eventProducer.Publish(ctx, rabbitmq.EventsExchange, routingKey, event); err != nil {
		log.Printf("WARN: failed to publish %s for payment %s: %v", routingKey, payment.ID, err)
	}
}

// --- Helpers ---

// generateJobNumber produces a human-readable job reference, e.g.
// "PJ20250901-3F2A1C".
func generateJobNumber() string {
	return fmt.Sprintf("PJ%s-%s", time.Now().UTC().Format("20060102"), randomHex(3))
}

// generatePickupCode produces the short code students quote at the counter.
func generatePickupCode() string {
	return randomHex(3)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for token generation
		panic(fmt.Sprintf("rand.Read: %v", err))
	}
	return strings.ToUpper(hex.EncodeToString(buf))
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
