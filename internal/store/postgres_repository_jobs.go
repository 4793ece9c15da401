/**
 * @description
 * This file implements the print-job and queue portions of the Repository
 * interface. Each lifecycle transition is one short transaction that locks
 * the job row, checks the current status, and applies the guarded update,
 * so an illegal transition can never be committed no matter how requests
 * interleave.
 *
 * Queue position assignment serializes on a Postgres advisory lock: every
 * admission takes `pg_advisory_xact_lock` before reading MAX(queue_position),
 * which rules out two jobs receiving the same position under concurrency.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/autoprint/print-service/internal/domain"
)

// queueLockID keys the advisory lock that serializes queue admissions.
const queueLockID = 874421

// paymentCoversCost reports whether a linked payment on its own funds a job.
// The payment must have durably reached a funded status and its amount must
// cover the whole cost. A smaller payment does not part-fund the job here:
// verification already credited its amount to the balance, so the shortfall
// case falls through to the balance debit path.
func paymentCoversCost(status string, amount, totalCost int64) bool {
	return domain.IsFundedPaymentStatus(status) && amount >= totalCost
}

const printJobColumns = `id, job_number, pickup_code, account_id, document_id, payment_id,
	       status, queue_position, total_pages, total_cost, operator_notes,
	       failure_reason, started_at, completed_at, created_at, updated_at`

func scanPrintJob(row pgx.Row) (*domain.PrintJob, error) {
	var j domain.PrintJob
	err := row.Scan(
		&j.ID,
		&j.JobNumber,
		&j.PickupCode,
		&j.AccountID,
		&j.DocumentID,
		&j.PaymentID,
		&j.Status,
		&j.QueuePosition,
		&j.TotalPages,
		&j.TotalCost,
		&j.OperatorNotes,
		&j.FailureReason,
		&j.StartedAt,
		&j.CompletedAt,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPrintJobNotFound
		}
		return nil, err
	}
	return &j, nil
}

// CreatePrintJob inserts a new print job in the awaiting_payment status.
func (r *PostgresRepository) CreatePrintJob(ctx context.Context, job *domain.PrintJob) error {
	query := `
		INSERT INTO print_jobs (
			id, job_number, pickup_code, account_id, document_id, payment_id,
			status, total_pages, total_cost
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		job.ID,
		job.JobNumber,
		job.PickupCode,
		job.AccountID,
		job.DocumentID,
		job.PaymentID,
		job.Status,
		job.TotalPages,
		job.TotalCost,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
}

// FindPrintJobByID retrieves a print job by its ID.
func (r *PostgresRepository) FindPrintJobByID(ctx context.Context, jobID uuid.UUID) (*domain.PrintJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM print_jobs WHERE id = $1`, printJobColumns)
	return scanPrintJob(r.db.QueryRow(ctx, query, jobID))
}

// ListPrintJobs retrieves jobs matching the given filters, newest first.
func (r *PostgresRepository) ListPrintJobs(ctx context.Context, opts domain.PrintJobListOptions) ([]domain.PrintJob, error) {
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

	query := fmt.Sprintf(`SELECT %s FROM print_jobs WHERE 1=1`, printJobColumns)
	args := []interface{}{}
	argPos := 1
	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, opts.Status)
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

	return collectPrintJobs(rows)
}

// FindAwaitingJobsByPaymentID returns unfunded jobs linked to a payment,
// oldest first, so verification admits them in submission order.
func (r *PostgresRepository) FindAwaitingJobsByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.PrintJob, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM print_jobs
		WHERE payment_id = $1 AND status = $2
		ORDER BY created_at ASC
	`, printJobColumns)
	rows, err := r.db.Query(ctx, query, paymentID, domain.JobStatusAwaitingPayment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPrintJobs(rows)
}

// ListQueueJobs returns all jobs in the given status in queue order.
func (r *PostgresRepository) ListQueueJobs(ctx context.Context, status string) ([]domain.PrintJob, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM print_jobs
		WHERE status = $1
		ORDER BY queue_position ASC NULLS LAST, created_at ASC
	`, printJobColumns)
	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPrintJobs(rows)
}

// NextToPrint returns the queued job with the lowest queue position, or
// ErrPrintJobNotFound when the queue is empty.
func (r *PostgresRepository) NextToPrint(ctx context.Context) (*domain.PrintJob, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM print_jobs
		WHERE status = $1
		ORDER BY queue_position ASC, created_at ASC
		LIMIT 1
	`, printJobColumns)
	return scanPrintJob(r.db.QueryRow(ctx, query, domain.JobStatusQueued))
}

// AdmitPrintJob moves an awaiting_payment job into the queue at the tail
// position. Funding is checked inside the transaction: either the linked
// payment has durably reached a funded status, or the job's cost is debited
// from the account balance. An unfunded job stays put and ErrJobUnfunded is
// returned.
func (r *PostgresRepository) AdmitPrintJob(ctx context.Context, jobID uuid.UUID) (*domain.PrintJob, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, queueLockID); err != nil {
		return nil, err
	}

	var accountID uuid.UUID
	var paymentID *uuid.UUID
	var status string
	var totalCost int64
	err = tx.QueryRow(ctx,
		`SELECT account_id, payment_id, status, total_cost FROM print_jobs WHERE id = $1 FOR UPDATE`,
		jobID).Scan(&accountID, &paymentID, &status, &totalCost)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPrintJobNotFound
		}
		return nil, err
	}
	if status != domain.JobStatusAwaitingPayment {
		return nil, ErrInvalidJobState
	}

	funded := false
	if paymentID != nil {
		var paymentStatus string
		var paymentAmount int64
		err = tx.QueryRow(ctx,
			`SELECT status, amount FROM payments WHERE id = $1 AND account_id = $2`,
			*paymentID, accountID).Scan(&paymentStatus, &paymentAmount)
		if err != nil && err != pgx.ErrNoRows {
			return nil, err
		}
		funded = err == nil && paymentCoversCost(paymentStatus, paymentAmount, totalCost)
	}

	if !funded {
		var balance int64
		err = tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, ErrAccountNotFound
			}
			return nil, err
		}
		if balance < totalCost {
			return nil, ErrJobUnfunded
		}
		_, err = tx.Exec(ctx,
			`UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE id = $2`,
			totalCost, accountID)
		if err != nil {
			return nil, err
		}
	}

	var position int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(queue_position), 0) + 1 FROM print_jobs WHERE status = $1`,
		domain.JobStatusQueued).Scan(&position)
	if err != nil {
		return nil, err
	}

	updateQuery := fmt.Sprintf(`
		UPDATE print_jobs
		SET status = $2, queue_position = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, printJobColumns)
	job, err := scanPrintJob(tx.QueryRow(ctx, updateQuery, jobID, domain.JobStatusQueued, position))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// StartPrintJob moves a queued job to printing. started_at is set once and
// never overwritten on later passes through the queue.
func (r *PostgresRepository) StartPrintJob(ctx context.Context, jobID uuid.UUID) (*domain.PrintJob, error) {
	return r.transitionPrintJob(ctx, jobID, domain.JobStatusQueued, fmt.Sprintf(`
		UPDATE print_jobs
		SET status = '%s', queue_position = NULL,
		    started_at = COALESCE(started_at, NOW()), updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, domain.JobStatusPrinting, printJobColumns))
}

// CompletePrintJob moves a printing job to completed and stamps completed_at.
func (r *PostgresRepository) CompletePrintJob(ctx context.Context, jobID uuid.UUID, notes string) (*domain.PrintJob, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockJobInStatus(ctx, tx, jobID, domain.JobStatusPrinting); err != nil {
		return nil, err
	}

	updateQuery := fmt.Sprintf(`
		UPDATE print_jobs
		SET status = $2, operator_notes = COALESCE(NULLIF($3, ''), operator_notes),
		    completed_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, printJobColumns)
	job, err := scanPrintJob(tx.QueryRow(ctx, updateQuery, jobID, domain.JobStatusCompleted, notes))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// FailPrintJob moves a job to failed with a reason. With force set, any
// non-terminal job may be failed; otherwise the transition table applies.
func (r *PostgresRepository) FailPrintJob(ctx context.Context, jobID uuid.UUID, reason string, force bool) (*domain.PrintJob, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM print_jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPrintJobNotFound
		}
		return nil, err
	}
	if domain.IsTerminalJobStatus(status) {
		return nil, ErrInvalidJobState
	}
	if !force && !domain.CanTransition(status, domain.JobStatusFailed) {
		return nil, ErrInvalidJobState
	}

	updateQuery := fmt.Sprintf(`
		UPDATE print_jobs
		SET status = $2, failure_reason = $3, queue_position = NULL, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, printJobColumns)
	job, err := scanPrintJob(tx.QueryRow(ctx, updateQuery, jobID, domain.JobStatusFailed, reason))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// HoldPrintJob moves a queued job to waiting_for_confirm, releasing its
// queue position so jobs behind it advance.
func (r *PostgresRepository) HoldPrintJob(ctx context.Context, jobID uuid.UUID, notes string) (*domain.PrintJob, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockJobInStatus(ctx, tx, jobID, domain.JobStatusQueued); err != nil {
		return nil, err
	}

	updateQuery := fmt.Sprintf(`
		UPDATE print_jobs
		SET status = $2, queue_position = NULL,
		    operator_notes = COALESCE(NULLIF($3, ''), operator_notes), updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, printJobColumns)
	job, err := scanPrintJob(tx.QueryRow(ctx, updateQuery, jobID, domain.JobStatusWaitingForConfirm, notes))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// ResumePrintJob returns a held job to the queue at the tail position. It
// takes the same advisory lock as AdmitPrintJob so positions stay unique.
func (r *PostgresRepository) ResumePrintJob(ctx context.Context, jobID uuid.UUID) (*domain.PrintJob, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, queueLockID); err != nil {
		return nil, err
	}

	if err := lockJobInStatus(ctx, tx, jobID, domain.JobStatusWaitingForConfirm); err != nil {
		return nil, err
	}

	var position int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(queue_position), 0) + 1 FROM print_jobs WHERE status = $1`,
		domain.JobStatusQueued).Scan(&position)
	if err != nil {
		return nil, err
	}

	updateQuery := fmt.Sprintf(`
		UPDATE print_jobs
		SET status = $2, queue_position = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, printJobColumns)
	job, err := scanPrintJob(tx.QueryRow(ctx, updateQuery, jobID, domain.JobStatusQueued, position))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// ListStaleHeldJobs returns held jobs whose last update is older than the
// given cutoff. Used by the sweeper to auto-resume forgotten holds.
func (r *PostgresRepository) ListStaleHeldJobs(ctx context.Context, heldBefore time.Time) ([]domain.PrintJob, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM print_jobs
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
	`, printJobColumns)
	rows, err := r.db.Query(ctx, query, domain.JobStatusWaitingForConfirm, heldBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPrintJobs(rows)
}

// transitionPrintJob runs a guarded single-row transition: lock the job,
// require the expected current status, apply the update.
func (r *PostgresRepository) transitionPrintJob(ctx context.Context, jobID uuid.UUID, fromStatus, updateQuery string) (*domain.PrintJob, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockJobInStatus(ctx, tx, jobID, fromStatus); err != nil {
		return nil, err
	}

	job, err := scanPrintJob(tx.QueryRow(ctx, updateQuery, jobID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

func lockJobInStatus(ctx context.Context, tx pgx.Tx, jobID uuid.UUID, expected string) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM print_jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrPrintJobNotFound
		}
		return err
	}
	if status != expected {
		return ErrInvalidJobState
	}
	return nil
}

func collectPrintJobs(rows pgx.Rows) ([]domain.PrintJob, error) {
	var jobs []domain.PrintJob
	for rows.Next() {
		j, err := scanPrintJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}
