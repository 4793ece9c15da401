package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/autoprint/print-service/internal/domain"
	"github.com/autoprint/print-service/internal/session"
	"github.com/autoprint/print-service/internal/store"
)

type printRepoStub struct {
	store.Repository

	document *domain.Document
	payment  *domain.Payment

	createdJob *domain.PrintJob

	admitErr    error
	admitCalls  int
	admittedIDs []uuid.UUID

	verifyResult *domain.Payment
	verifyErr    error

	settleResult  *domain.Payment
	settleErr     error
	settleCalls   int
	settledAsOK   bool
	settledAmount int64

	awaitingJobs []domain.PrintJob

	creditCalled bool
	creditAmount int64
	debitCalled  bool
	debitAmount  int64

	staleJobs []domain.PrintJob
	resumeErr map[uuid.UUID]error
	resumed   []uuid.UUID
}

func (s *printRepoStub) FindDocumentByID(ctx context.Context, documentID uuid.UUID) (*domain.Document, error) {
	if s.document == nil || s.document.ID != documentID {
		return nil, store.ErrDocumentNotFound
	}
	return s.document, nil
}

func (s *printRepoStub) CreatePrintJob(ctx context.Context, job *domain.PrintJob) error {
	s.createdJob = job
	return nil
}

func (s *printRepoStub) AdmitPrintJob(ctx context.Context, jobID uuid.UUID) (*domain.PrintJob, error) {
	s.admitCalls++
	s.admittedIDs = append(s.admittedIDs, jobID)
	if s.admitErr != nil {
		return nil, s.admitErr
	}
	position := s.admitCalls
	return &domain.PrintJob{
		ID:            jobID,
		Status:        domain.JobStatusQueued,
		QueuePosition: &position,
	}, nil
}

func (s *printRepoStub) VerifyPayment(ctx context.Context, paymentID uuid.UUID, verifiedBy, notes string) (*domain.Payment, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return s.verifyResult, nil
}

func (s *printRepoStub) SettleGatewayPayment(ctx context.Context, externalTxID string, reportedAmount int64, succeeded bool, reason string) (*domain.Payment, error) {
	s.settleCalls++
	s.settledAsOK = succeeded
	s.settledAmount = reportedAmount
	if s.settleErr != nil {
		return nil, s.settleErr
	}
	return s.settleResult, nil
}

func (s *printRepoStub) FindPaymentByID(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	if s.payment == nil || s.payment.ID != paymentID {
		return nil, store.ErrPaymentNotFound
	}
	return s.payment, nil
}

func (s *printRepoStub) FindAwaitingJobsByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.PrintJob, error) {
	return s.awaitingJobs, nil
}

func (s *printRepoStub) CreditAccountBalance(ctx context.Context, accountID uuid.UUID, amount int64) error {
	s.creditCalled = true
	s.creditAmount = amount
	return nil
}

func (s *printRepoStub) DebitAccountBalance(ctx context.Context, accountID uuid.UUID, amount int64) error {
	s.debitCalled = true
	s.debitAmount = amount
	return nil
}

func (s *printRepoStub) ListStaleHeldJobs(ctx context.Context, heldBefore time.Time) ([]domain.PrintJob, error) {
	return s.staleJobs, nil
}

func (s *printRepoStub) ResumePrintJob(ctx context.Context, jobID uuid.UUID) (*domain.PrintJob, error) {
	if err, ok := s.resumeErr[jobID]; ok && err != nil {
		return nil, err
	}
	s.resumed = append(s.resumed, jobID)
	position := len(s.resumed)
	return &domain.PrintJob{ID: jobID, Status: domain.JobStatusQueued, QueuePosition: &position}, nil
}

func (s *printRepoStub) FindPrintJobByID(ctx context.Context, jobID uuid.UUID) (*domain.PrintJob, error) {
	if s.createdJob == nil || s.createdJob.ID != jobID {
		return nil, store.ErrPrintJobNotFound
	}
	return s.createdJob, nil
}

func newTestService(repo store.Repository) *Service {
	return NewService(repo, session.NewMemoryStore(time.Hour), nil, 200, "BDT", time.Hour)
}

func TestSubmitPrintJob_AdmitsFundedJob(t *testing.T) {
	accountID := uuid.New()
	doc := &domain.Document{
		ID:        uuid.New(),
		AccountID: accountID,
		PageCount: 4,
		Copies:    2,
	}
	repo := &printRepoStub{document: doc}
	svc := newTestService(repo)

	job, err := svc.SubmitPrintJob(context.Background(), accountID, domain.CreatePrintJobRequest{DocumentID: doc.ID})
	if err != nil {
		t.Fatalf("SubmitPrintJob returned error: %v", err)
	}
	if repo.createdJob == nil {
		t.Fatal("expected a job to be created")
	}
	if repo.createdJob.TotalPages != 8 {
		t.Fatalf("expected 8 total pages, got %d", repo.createdJob.TotalPages)
	}
	if repo.createdJob.TotalCost != 1600 {
		t.Fatalf("expected cost of 1600 poisha, got %d", repo.createdJob.TotalCost)
	}
	if repo.createdJob.Status != domain.JobStatusAwaitingPayment {
		t.Fatalf("expected job to be created awaiting payment, got %q", repo.createdJob.Status)
	}
	if job.Status != domain.JobStatusQueued {
		t.Fatalf("expected funded job to be admitted, got %q", job.Status)
	}
	if job.QueuePosition == nil || *job.QueuePosition != 1 {
		t.Fatalf("expected queue position 1, got %v", job.QueuePosition)
	}
	if repo.createdJob.JobNumber == "" || repo.createdJob.PickupCode == "" {
		t.Fatal("expected job number and pickup code to be generated")
	}
}

func TestSubmitPrintJob_UnfundedJobStaysAwaitingPayment(t *testing.T) {
	accountID := uuid.New()
	doc := &domain.Document{ID: uuid.New(), AccountID: accountID, PageCount: 2, Copies: 1}
	repo := &printRepoStub{document: doc, admitErr: store.ErrJobUnfunded}
	svc := newTestService(repo)

	job, err := svc.SubmitPrintJob(context.Background(), accountID, domain.CreatePrintJobRequest{DocumentID: doc.ID})
	if err != nil {
		t.Fatalf("SubmitPrintJob returned error: %v", err)
	}
	if job.Status != domain.JobStatusAwaitingPayment {
		t.Fatalf("expected unfunded job to stay awaiting payment, got %q", job.Status)
	}
	if repo.admitCalls != 1 {
		t.Fatalf("expected one admission attempt, got %d", repo.admitCalls)
	}
}

func TestSubmitPrintJob_RejectsForeignDocument(t *testing.T) {
	doc := &domain.Document{ID: uuid.New(), AccountID: uuid.New(), PageCount: 2, Copies: 1}
	repo := &printRepoStub{document: doc}
	svc := newTestService(repo)

	_, err := svc.SubmitPrintJob(context.Background(), uuid.New(), domain.CreatePrintJobRequest{DocumentID: doc.ID})
	if !errors.Is(err, store.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound for a foreign document, got %v", err)
	}
}

func TestSubmitPrintJob_RejectsForeignPayment(t *testing.T) {
	accountID := uuid.New()
	doc := &domain.Document{ID: uuid.New(), AccountID: accountID, PageCount: 2, Copies: 1}
	foreignPayment := &domain.Payment{ID: uuid.New(), AccountID: uuid.New(), Amount: 5000, Status: domain.PaymentStatusVerified}
	repo := &printRepoStub{document: doc, payment: foreignPayment}
	svc := newTestService(repo)

	_, err := svc.SubmitPrintJob(context.Background(), accountID, domain.CreatePrintJobRequest{DocumentID: doc.ID, PaymentID: &foreignPayment.ID})
	if !errors.Is(err, store.ErrPaymentNotFound) {
		t.Fatalf("expected a foreign payment to be hidden, got %v", err)
	}
	if repo.createdJob != nil {
		t.Fatal("expected no job to be created against a foreign payment")
	}
	if repo.admitCalls != 0 {
		t.Fatalf("expected no admission attempts, got %d", repo.admitCalls)
	}
}

func TestSubmitPrintJob_AcceptsOwnLinkedPayment(t *testing.T) {
	accountID := uuid.New()
	doc := &domain.Document{ID: uuid.New(), AccountID: accountID, PageCount: 2, Copies: 1}
	payment := &domain.Payment{ID: uuid.New(), AccountID: accountID, Amount: 5000, Status: domain.PaymentStatusVerified}
	repo := &printRepoStub{document: doc, payment: payment}
	svc := newTestService(repo)

	job, err := svc.SubmitPrintJob(context.Background(), accountID, domain.CreatePrintJobRequest{DocumentID: doc.ID, PaymentID: &payment.ID})
	if err != nil {
		t.Fatalf("SubmitPrintJob returned error: %v", err)
	}
	if repo.createdJob.PaymentID == nil || *repo.createdJob.PaymentID != payment.ID {
		t.Fatal("expected the job to carry its linked payment")
	}
	if job.Status != domain.JobStatusQueued {
		t.Fatalf("expected the funded job to be admitted, got %q", job.Status)
	}
}

func TestVerifyPayment_AdmitsJobsAwaitingThePayment(t *testing.T) {
	paymentID := uuid.New()
	jobA := domain.PrintJob{ID: uuid.New(), Status: domain.JobStatusAwaitingPayment}
	jobB := domain.PrintJob{ID: uuid.New(), Status: domain.JobStatusAwaitingPayment}
	repo := &printRepoStub{
		verifyResult: &domain.Payment{ID: paymentID, Status: domain.PaymentStatusVerified, Amount: 5000},
		awaitingJobs: []domain.PrintJob{jobA, jobB},
	}
	svc := newTestService(repo)

	payment, err := svc.VerifyPayment(context.Background(), paymentID, uuid.New(), "counter receipt 42")
	if err != nil {
		t.Fatalf("VerifyPayment returned error: %v", err)
	}
	if payment.Status != domain.PaymentStatusVerified {
		t.Fatalf("expected verified payment, got %q", payment.Status)
	}
	if repo.admitCalls != 2 {
		t.Fatalf("expected both awaiting jobs to be admitted, got %d attempts", repo.admitCalls)
	}
	if repo.admittedIDs[0] != jobA.ID || repo.admittedIDs[1] != jobB.ID {
		t.Fatal("expected jobs to be admitted in submission order")
	}
}

func TestVerifyPayment_AlreadyFinalizedDoesNotAdmit(t *testing.T) {
	repo := &printRepoStub{verifyErr: store.ErrPaymentAlreadyFinalized}
	svc := newTestService(repo)

	_, err := svc.VerifyPayment(context.Background(), uuid.New(), uuid.New(), "")
	if !errors.Is(err, store.ErrPaymentAlreadyFinalized) {
		t.Fatalf("expected ErrPaymentAlreadyFinalized, got %v", err)
	}
	if repo.admitCalls != 0 {
		t.Fatalf("expected no admission attempts, got %d", repo.admitCalls)
	}
}

func TestRecordGatewayCallback(t *testing.T) {
	paymentID := uuid.New()
	awaiting := []domain.PrintJob{{ID: uuid.New(), Status: domain.JobStatusAwaitingPayment}}

	tests := []struct {
		name          string
		req           domain.GatewayCallbackRequest
		wantErr       error
		wantSucceeded bool
		wantAdmits    int
	}{
		{
			name:          "successful settlement admits waiting jobs",
			req:           domain.GatewayCallbackRequest{ExternalTxID: "bkash-001", Amount: 2500, Status: "successful"},
			wantSucceeded: true,
			wantAdmits:    1,
		},
		{
			name:       "failed settlement admits nothing",
			req:        domain.GatewayCallbackRequest{ExternalTxID: "bkash-002", Status: "failed", Reason: "insufficient wallet balance"},
			wantAdmits: 0,
		},
		{
			name:    "unknown status is rejected",
			req:     domain.GatewayCallbackRequest{ExternalTxID: "bkash-003", Status: "maybe"},
			wantErr: ErrValidation,
		},
		{
			name:    "missing external tx id is rejected",
			req:     domain.GatewayCallbackRequest{Status: "successful"},
			wantErr: ErrValidation,
		},
		{
			name:    "negative amount is rejected",
			req:     domain.GatewayCallbackRequest{ExternalTxID: "bkash-004", Amount: -1, Status: "successful"},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := domain.PaymentStatusCompleted
			if tt.req.Status == "failed" {
				status = domain.PaymentStatusFailed
			}
			repo := &printRepoStub{
				settleResult: &domain.Payment{ID: paymentID, Status: status},
				awaitingJobs: awaiting,
			}
			svc := newTestService(repo)

			_, err := svc.RecordGatewayCallback(context.Background(), tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if repo.settleCalls != 0 {
					t.Fatal("expected no settlement attempt for invalid input")
				}
				return
			}
			if err != nil {
				t.Fatalf("RecordGatewayCallback returned error: %v", err)
			}
			if repo.settledAsOK != tt.wantSucceeded {
				t.Fatalf("expected succeeded=%t, got %t", tt.wantSucceeded, repo.settledAsOK)
			}
			if repo.settledAmount != tt.req.Amount {
				t.Fatalf("expected the gateway amount %d to reach settlement, got %d", tt.req.Amount, repo.settledAmount)
			}
			if repo.admitCalls != tt.wantAdmits {
				t.Fatalf("expected %d admission attempts, got %d", tt.wantAdmits, repo.admitCalls)
			}
		})
	}
}

func TestRecordGatewayCallback_AmountMismatchDoesNotAdmit(t *testing.T) {
	repo := &printRepoStub{
		settleErr:    store.ErrPaymentAmountMismatch,
		awaitingJobs: []domain.PrintJob{{ID: uuid.New(), Status: domain.JobStatusAwaitingPayment}},
	}
	svc := newTestService(repo)

	req := domain.GatewayCallbackRequest{ExternalTxID: "bkash-009", Amount: 100, Status: "successful"}
	if _, err := svc.RecordGatewayCallback(context.Background(), req); !errors.Is(err, store.ErrPaymentAmountMismatch) {
		t.Fatalf("expected ErrPaymentAmountMismatch, got %v", err)
	}
	if repo.admitCalls != 0 {
		t.Fatalf("expected no admission attempts after a disputed amount, got %d", repo.admitCalls)
	}
}

func TestFailPrintJob_RequiresReason(t *testing.T) {
	repo := &printRepoStub{}
	svc := newTestService(repo)

	_, err := svc.FailPrintJob(context.Background(), uuid.New(), "   ", false)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank reason, got %v", err)
	}
}

func TestAdjustBalance(t *testing.T) {
	repo := &printRepoStub{}
	svc := newTestService(repo)
	operatorID, accountID := uuid.New(), uuid.New()

	if err := svc.AdjustBalance(context.Background(), operatorID, accountID, domain.AdjustBalanceRequest{Amount: 1500, Reason: "counter top-up"}); err != nil {
		t.Fatalf("credit adjustment returned error: %v", err)
	}
	if !repo.creditCalled || repo.creditAmount != 1500 {
		t.Fatalf("expected credit of 1500, got called=%t amount=%d", repo.creditCalled, repo.creditAmount)
	}

	if err := svc.AdjustBalance(context.Background(), operatorID, accountID, domain.AdjustBalanceRequest{Amount: -700, Reason: "correction"}); err != nil {
		t.Fatalf("debit adjustment returned error: %v", err)
	}
	if !repo.debitCalled || repo.debitAmount != 700 {
		t.Fatalf("expected debit of 700, got called=%t amount=%d", repo.debitCalled, repo.debitAmount)
	}

	if err := svc.AdjustBalance(context.Background(), operatorID, accountID, domain.AdjustBalanceRequest{Amount: 0}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero amount, got %v", err)
	}
}

func TestResumeStaleHolds_SkipsJobsLostToRaces(t *testing.T) {
	staleA := domain.PrintJob{ID: uuid.New(), Status: domain.JobStatusWaitingForConfirm}
	staleB := domain.PrintJob{ID: uuid.New(), Status: domain.JobStatusWaitingForConfirm}
	repo := &printRepoStub{
		staleJobs: []domain.PrintJob{staleA, staleB},
		resumeErr: map[uuid.UUID]error{staleB.ID: store.ErrInvalidJobState},
	}
	svc := newTestService(repo)

	resumed, err := svc.ResumeStaleHolds(context.Background())
	if err != nil {
		t.Fatalf("ResumeStaleHolds returned error: %v", err)
	}
	if resumed != 1 {
		t.Fatalf("expected 1 resumed job, got %d", resumed)
	}
	if len(repo.resumed) != 1 || repo.resumed[0] != staleA.ID {
		t.Fatal("expected only the uncontended job to be resumed")
	}
}

func TestGetPrintJob_HidesForeignJobs(t *testing.T) {
	owner := uuid.New()
	job := &domain.PrintJob{ID: uuid.New(), AccountID: owner, Status: domain.JobStatusQueued}
	repo := &printRepoStub{createdJob: job}
	svc := newTestService(repo)

	if _, err := svc.GetPrintJob(context.Background(), owner, job.ID); err != nil {
		t.Fatalf("owner lookup returned error: %v", err)
	}
	if _, err := svc.GetPrintJob(context.Background(), uuid.New(), job.ID); !errors.Is(err, store.ErrPrintJobNotFound) {
		t.Fatalf("expected foreign job to be hidden, got %v", err)
	}
}

func TestLodgePayment_Validation(t *testing.T) {
	svc := newTestService(&printRepoStub{})

	if _, err := svc.LodgePayment(context.Background(), uuid.New(), domain.CreatePaymentRequest{Amount: 0, Method: domain.PaymentMethodCard}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero amount, got %v", err)
	}
	if _, err := svc.LodgePayment(context.Background(), uuid.New(), domain.CreatePaymentRequest{Amount: 100, Method: "cheque"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unsupported method, got %v", err)
	}
}
