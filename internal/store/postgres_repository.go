/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface for accounts, documents, and payments. Print-job and queue
 * operations live in postgres_repository_jobs.go.
 *
 * All balance mutations lock the account row (`FOR UPDATE`) and run inside
 * an explicit transaction together with the status write that triggered
 * them, so a payment can never be credited twice and a credit can never be
 * recorded against a payment that did not durably finalize.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autoprint/print-service/internal/domain"
)

var (
	ErrAccountNotFound         = errors.New("account not found")
	ErrDocumentNotFound        = errors.New("document not found")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrPrintJobNotFound        = errors.New("print job not found")
	ErrPaymentAlreadyFinalized = errors.New("payment already finalized")
	ErrPaymentAmountMismatch   = errors.New("gateway amount does not match payment")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrJobUnfunded             = errors.New("print job is not funded")
	ErrInvalidJobState         = errors.New("print job is not in a valid state for this transition")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, student_id, full_name, role, balance, is_active, password_hash, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.StudentID, &a.FullName, &a.Role, &a.Balance, &a.IsActive, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindAccountByID retrieves an account by its ID.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)
	return scanAccount(r.db.QueryRow(ctx, query, accountID))
}

// FindAccountByStudentID retrieves an account by its campus student id.
func (r *PostgresRepository) FindAccountByStudentID(ctx context.Context, studentID string) (*domain.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE student_id = $1`, accountColumns)
	return scanAccount(r.db.QueryRow(ctx, query, studentID))
}

// GetAccountBalance returns a snapshot of the account's spendable balance.
func (r *PostgresRepository) GetAccountBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return balance, nil
}

// CreditAccountBalance performs an atomic credit operation on an account.
func (r *PostgresRepository) CreditAccountBalance(ctx context.Context, accountID uuid.UUID, amount int64) error {
	result, err := r.db.Exec(ctx,
		`UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2`,
		amount, accountID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DebitAccountBalance performs an atomic debit operation on an account.
// It fails with ErrInsufficientFunds if the balance would go negative.
func (r *PostgresRepository) DebitAccountBalance(ctx context.Context, accountID uuid.UUID, amount int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var balance int64
	// Use FOR UPDATE to lock the row, preventing race conditions.
	err = tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrAccountNotFound
		}
		return err
	}

	if balance < amount {
		return ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx, `UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE id = $2`, amount, accountID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CreateDocument inserts a new document metadata record.
func (r *PostgresRepository) CreateDocument(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (
			id, account_id, original_name, file_size, page_count, copies,
			color_mode, paper_size, orientation, double_sided
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		doc.ID,
		doc.AccountID,
		doc.OriginalName,
		doc.FileSize,
		doc.PageCount,
		doc.Copies,
		doc.ColorMode,
		doc.PaperSize,
		doc.Orientation,
		doc.DoubleSided,
	).Scan(&doc.CreatedAt)
}

// FindDocumentByID retrieves a document by its ID.
func (r *PostgresRepository) FindDocumentByID(ctx context.Context, documentID uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	query := `
		SELECT id, account_id, original_name, file_size, page_count, copies,
		       color_mode, paper_size, orientation, double_sided, created_at
		FROM documents
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, documentID).Scan(
		&doc.ID,
		&doc.AccountID,
		&doc.OriginalName,
		&doc.FileSize,
		&doc.PageCount,
		&doc.Copies,
		&doc.ColorMode,
		&doc.PaperSize,
		&doc.Orientation,
		&doc.DoubleSided,
		&doc.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

const paymentColumns = `id, account_id, amount, currency, method, status, external_tx_id,
	       verified_by, verified_at, notes, failure_reason, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.Amount,
		&p.Currency,
		&p.Method,
		&p.Status,
		&p.ExternalTxID,
		&p.VerifiedBy,
		&p.VerifiedAt,
		&p.Notes,
		&p.FailureReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreatePayment inserts a new pending payment record.
func (r *PostgresRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, account_id, amount, currency, method, status, external_tx_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		payment.ID,
		payment.AccountID,
		payment.Amount,
		payment.Currency,
		payment.Method,
		payment.Status,
		payment.ExternalTxID,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
}

// FindPaymentByID retrieves a payment by its ID.
func (r *PostgresRepository) FindPaymentByID(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	return scanPayment(r.db.QueryRow(ctx, query, paymentID))
}

// ListPayments retrieves payments matching the given filters, newest first.
func (r *PostgresRepository) ListPayments(ctx context.Context, opts domain.PaymentListOptions) ([]domain.Payment, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM payments WHERE 1=1`, paymentColumns)
	args := []interface{}{}
	argPos := 1
	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, opts.Status)
		argPos++
	}
	if opts.Method != "" {
		query += fmt.Sprintf(" AND method = $%d", argPos)
		args = append(args, opts.Method)
		argPos++
	}
	if opts.AccountID != nil {
		query += fmt.Sprintf(" AND account_id = $%d", argPos)
		args = append(args, *opts.AccountID)
		argPos++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// VerifyPayment transitions a pending payment to verified and credits the
// owning account in the same transaction. The payment row is locked first so
// concurrent verify calls serialize; the loser sees a finalized status and
// gets ErrPaymentAlreadyFinalized instead of a second credit.
func (r *PostgresRepository) VerifyPayment(ctx context.Context, paymentID uuid.UUID, verifiedBy, notes string) (*domain.Payment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var accountID uuid.UUID
	var amount int64
	var status string
	err = tx.QueryRow(ctx,
		`SELECT account_id, amount, status FROM payments WHERE id = $1 FOR UPDATE`,
		paymentID).Scan(&accountID, &amount, &status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if status != domain.PaymentStatusPending {
		return nil, ErrPaymentAlreadyFinalized
	}

	updateQuery := fmt.Sprintf(`
		UPDATE payments
		SET status = $2, verified_by = $3, verified_at = NOW(), notes = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, paymentColumns)
	payment, err := scanPayment(tx.QueryRow(ctx, updateQuery, paymentID, domain.PaymentStatusVerified, verifiedBy, notes))
	if err != nil {
		return nil, err
	}

	result, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2`,
		amount, accountID)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected() == 0 {
		return nil, ErrAccountNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return payment, nil
}

// RejectPayment transitions a pending payment to failed. No ledger effect.
func (r *PostgresRepository) RejectPayment(ctx context.Context, paymentID uuid.UUID, reason string) (*domain.Payment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM payments WHERE id = $1 FOR UPDATE`, paymentID).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if status != domain.PaymentStatusPending {
		return nil, ErrPaymentAlreadyFinalized
	}

	updateQuery := fmt.Sprintf(`
		UPDATE payments
		SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, paymentColumns)
	payment, err := scanPayment(tx.QueryRow(ctx, updateQuery, paymentID, domain.PaymentStatusFailed, reason))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return payment, nil
}

// settlementAmountMismatch reports whether a gateway-reported amount disputes
// the stored payment amount. Gateways that omit the amount report zero and
// skip the check.
func settlementAmountMismatch(reported, stored int64) bool {
	return reported > 0 && reported != stored
}

// SettleGatewayPayment finalizes a pending payment identified by its external
// transaction id. Successful settlements credit the account atomically with
// the status write; failures record the gateway reason. A successful callback
// whose reported amount disagrees with the stored payment is rejected before
// any state changes.
func (r *PostgresRepository) SettleGatewayPayment(ctx context.Context, externalTxID string, reportedAmount int64, succeeded bool, reason string) (*domain.Payment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var paymentID, accountID uuid.UUID
	var amount int64
	var status string
	err = tx.QueryRow(ctx,
		`SELECT id, account_id, amount, status FROM payments WHERE external_tx_id = $1 FOR UPDATE`,
		externalTxID).Scan(&paymentID, &accountID, &amount, &status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if status != domain.PaymentStatusPending {
		return nil, ErrPaymentAlreadyFinalized
	}
	if succeeded && settlementAmountMismatch(reportedAmount, amount) {
		return nil, ErrPaymentAmountMismatch
	}

	newStatus := domain.PaymentStatusCompleted
	var failureReason *string
	if !succeeded {
		newStatus = domain.PaymentStatusFailed
		failureReason = &reason
	}

	updateQuery := fmt.Sprintf(`
		UPDATE payments
		SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, paymentColumns)
	payment, err := scanPayment(tx.QueryRow(ctx, updateQuery, paymentID, newStatus, failureReason))
	if err != nil {
		return nil, err
	}

	if succeeded {
		result, err := tx.Exec(ctx,
			`UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2`,
			amount, accountID)
		if err != nil {
			return nil, err
		}
		if result.RowsAffected() == 0 {
			return nil, ErrAccountNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return payment, nil
}
