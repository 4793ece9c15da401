/**
 * @description
 * HTTP handlers for the operator console: login and logout, the live queue
 * view, the job lifecycle transitions, payment verification, and manual
 * balance adjustments. All handlers except login sit behind the operator
 * session middleware.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/autoprint/print-service/internal/domain"
	"github.com/autoprint/print-service/internal/store"
)

// loginResponse carries the session token plus the operator's identity.
type loginResponse struct {
	Token    string       `json:"token"`
	Operator operatorInfo `json:"operator"`
}

type operatorInfo struct {
	ID        uuid.UUID `json:"id"`
	StudentID string    `json:"student_id"`
	FullName  string    `json:"full_name"`
}

// LoginHandler opens an operator console session.
func (h *PrintServiceHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.OperatorLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, account, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		Operator: operatorInfo{
			ID:        account.ID,
			StudentID: account.StudentID,
			FullName:  account.FullName,
		},
	})
}

// LogoutHandler destroys the operator's session.
func (h *PrintServiceHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := GetSessionToken(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "No active session")
		return
	}
	if err := h.service.Logout(r.Context(), token); err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// QueueHandler returns the live queue grouped by status.
func (h *PrintServiceHandlers) QueueHandler(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.QueueSnapshot(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

// NextToPrintHandler returns the job at the head of the queue.
func (h *PrintServiceHandlers) NextToPrintHandler(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.NextToPrint(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrPrintJobNotFound) {
			h.writeJSON(w, http.StatusOK, map[string]interface{}{"job": nil})
			return
		}
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"job": job})
}

// AdmitJobHandler retries admission for a job stuck in awaiting_payment,
// e.g. after a manual balance adjustment.
func (h *PrintServiceHandlers) AdmitJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDParam(w, r)
	if !ok {
		return
	}
	job, err := h.service.TryAdmitPrintJob(r.Context(), jobID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// StartJobHandler moves a queued job to printing.
func (h *PrintServiceHandlers) StartJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDParam(w, r)
	if !ok {
		return
	}
	job, err := h.service.StartPrintJob(r.Context(), jobID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// CompleteJobHandler moves a printing job to completed.
func (h *PrintServiceHandlers) CompleteJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	// Body is optional for completion.
	_ = json.NewDecoder(r.Body).Decode(&body)

	job, err := h.service.CompletePrintJob(r.Context(), jobID, body.Notes)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// FailJobHandler moves a job to failed with a reason. `force` in the body
// invokes the administrative override for stuck jobs.
func (h *PrintServiceHandlers) FailJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
		Force  bool   `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	job, err := h.service.FailPrintJob(r.Context(), jobID, body.Reason, body.Force)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// HoldJobHandler parks a queued job in waiting_for_confirm.
func (h *PrintServiceHandlers) HoldJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	job, err := h.service.HoldPrintJob(r.Context(), jobID, body.Notes)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// ResumeJobHandler returns a held job to the queue tail.
func (h *PrintServiceHandlers) ResumeJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDParam(w, r)
	if !ok {
		return
	}
	job, err := h.service.ResumePrintJob(r.Context(), jobID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// ListAllPrintJobsHandler returns jobs across all accounts for the console.
func (h *PrintServiceHandlers) ListAllPrintJobsHandler(w http.ResponseWriter, r *http.Request) {
	opts := domain.PrintJobListOptions{
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	if rawAccount := r.URL.Query().Get("account_id"); rawAccount != "" {
		accountID, err := uuid.Parse(rawAccount)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid account_id filter")
			return
		}
		opts.AccountID = &accountID
	}

	jobs, err := h.service.ListPrintJobs(r.Context(), opts)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// ListAllPaymentsHandler returns payments across all accounts.
func (h *PrintServiceHandlers) ListAllPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	opts := domain.PaymentListOptions{
		Status: r.URL.Query().Get("status"),
		Method: r.URL.Query().Get("method"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	if rawAccount := r.URL.Query().Get("account_id"); rawAccount != "" {
		accountID, err := uuid.Parse(rawAccount)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid account_id filter")
			return
		}
		opts.AccountID = &accountID
	}

	payments, err := h.service.ListPayments(r.Context(), opts)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

// VerifyPaymentHandler finalizes a pending payment as verified.
func (h *PrintServiceHandlers) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := GetOperatorID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Operator ID not found in request context")
		return
	}
	paymentID, err := uuid.Parse(chi.URLParam(r, "paymentID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid payment ID")
		return
	}
	var req domain.VerifyPaymentRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	payment, err := h.service.VerifyPayment(r.Context(), paymentID, operatorID, req.Notes)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, payment)
}

// RejectPaymentHandler finalizes a pending payment as failed.
func (h *PrintServiceHandlers) RejectPaymentHandler(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "paymentID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid payment ID")
		return
	}
	var req domain.RejectPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payment, err := h.service.RejectPayment(r.Context(), paymentID, req.Reason)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, payment)
}

// AdjustBalanceHandler applies a manual ledger correction to an account.
func (h *PrintServiceHandlers) AdjustBalanceHandler(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := GetOperatorID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Operator ID not found in request context")
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}
	var req domain.AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.AdjustBalance(r.Context(), operatorID, accountID, req); err != nil {
		h.handleServiceError(w, err)
		return
	}
	balance, err := h.service.GetBalance(r.Context(), accountID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balanceResponse{
		AccountID: accountID,
		Balance:   balance,
		Currency:  h.service.Currency(),
	})
}

func (h *PrintServiceHandlers) jobIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid job ID")
		return uuid.Nil, false
	}
	return jobID, true
}
