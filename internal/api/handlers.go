/**
 * @description
 * This file contains the HTTP handlers for the student-facing API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer. Operator console handlers live in handlers_admin.go.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/autoprint/print-service/internal/app"
	"github.com/autoprint/print-service/internal/domain"
	"github.com/autoprint/print-service/internal/store"
)

// PrintServiceHandlers holds the application service that handlers will use.
type PrintServiceHandlers struct {
	service *app.Service
}

// NewPrintServiceHandlers creates a new instance of PrintServiceHandlers.
func NewPrintServiceHandlers(service *app.Service) *PrintServiceHandlers {
	return &PrintServiceHandlers{service: service}
}

// balanceResponse is the student's view of their ledger.
type balanceResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Balance   int64     `json:"balance"` // in poisha
	Currency  string    `json:"currency"`
}

// RegisterDocumentHandler records an uploaded document's metadata.
func (h *PrintServiceHandlers) RegisterDocumentHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Account ID not found in request context")
		return
	}

	var req domain.CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	doc, err := h.service.RegisterDocument(r.Context(), accountID, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, doc)
}

// GetDocumentHandler returns one of the student's documents.
func (h *PrintServiceHandlers) GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Account ID not found in request context")
		return
	}
	documentID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid document ID")
		return
	}

	doc, err := h.service.GetDocument(r.Context(), accountID, documentID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// SubmitPrintJobHandler creates a print job for a previously registered
// document. The job is admitted to the queue immediately if it is funded.
func (h *PrintServiceHandlers) SubmitPrintJobHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Account ID not found in request context")
		return
	}

	var req domain.CreatePrintJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DocumentID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}

	job, err := h.service.SubmitPrintJob(r.Context(), accountID, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, job)
}

// GetPrintJobHandler returns one of the student's jobs.
func (h *PrintServiceHandlers) GetPrintJobHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Account ID not found in request context")
		return
	}
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.service.GetPrintJob(r.Context(), accountID, jobID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// ListMyPrintJobsHandler returns the student's jobs, newest first.
func (h *PrintServiceHandlers) ListMyPrintJobsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Account ID not found in request context")
		return
	}

	opts := domain.PrintJobListOptions{
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	jobs, err := h.service.ListAccountPrintJobs(r.Context(), accountID, opts)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// LodgePaymentHandler records a pending payment awaiting verification.
func (h *PrintServiceHandlers) LodgePaymentHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Account ID not found in request context")
		return
	}

	var req domain.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payment, err := h.service.LodgePayment(r.Context(), accountID, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, payment)
}

// GetPaymentHandler returns one of the student's payments.
func (h *PrintServiceHandlers) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Account ID not found in request context")
		return
	}
	paymentID, err := uuid.Parse(chi.URLParam(r, "paymentID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid payment ID")
		return
	}

	payment, err := h.service.GetPayment(r.Context(), accountID, paymentID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, payment)
}

// ListMyPaymentsHandler returns the student's payments, newest first.
func (h *PrintServiceHandlers) ListMyPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Account ID not found in request context")
		return
	}

	opts := domain.PaymentListOptions{
		Status: r.URL.Query().Get("status"),
		Method: r.URL.Query().Get("method"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	payments, err := h.service.ListAccountPayments(r.Context(), accountID, opts)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

// GetBalanceHandler returns the student's current balance snapshot.
func (h *PrintServiceHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Account ID not found in request context")
		return
	}

	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balanceResponse{
		AccountID: account.ID,
		Balance:   account.Balance,
		Currency:  h.service.Currency(),
	})
}

// GatewayCallbackHandler receives the payment gateway's settlement callback.
// Guarded by the internal key middleware, never exposed to browsers.
func (h *PrintServiceHandlers) GatewayCallbackHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.GatewayCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payment, err := h.service.RecordGatewayCallback(r.Context(), req)
	if err != nil {
		// The gateway retries on non-2xx. An already-settled payment must
		// ack so retries stop.
		if errors.Is(err, store.ErrPaymentAlreadyFinalized) {
			h.writeJSON(w, http.StatusOK, map[string]string{"status": "already_settled"})
			return
		}
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, payment)
}

// handleServiceError maps service and store errors onto HTTP statuses.
func (h *PrintServiceHandlers) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrDocumentNotFound),
		errors.Is(err, store.ErrPaymentNotFound),
		errors.Is(err, store.ErrPrintJobNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrPaymentAlreadyFinalized):
		h.writeError(w, http.StatusConflict, "Payment is already finalized")
	case errors.Is(err, store.ErrPaymentAmountMismatch):
		h.writeError(w, http.StatusConflict, "Reported amount does not match the payment")
	case errors.Is(err, store.ErrInvalidJobState):
		h.writeError(w, http.StatusConflict, "Job is not in a valid state for this transition")
	case errors.Is(err, store.ErrJobUnfunded):
		h.writeError(w, http.StatusPaymentRequired, "Job is not funded")
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, "Insufficient funds")
	case errors.Is(err, app.ErrInvalidCredentials), errors.Is(err, app.ErrNotOperator):
		h.writeError(w, http.StatusUnauthorized, "Invalid credentials")
	default:
		log.Printf("level=error component=api msg=\"unhandled service error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *PrintServiceHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}

// writeError is a helper for writing a JSON error response.
func (h *PrintServiceHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}
