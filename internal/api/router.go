/**
 * @description
 * This file sets up the HTTP router for the print-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies the middleware stack: logging, panic recovery, timeouts, CORS for
 * the browser-based operator console, and the three authentication schemes.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for the operator console.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/autoprint/print-service/internal/app"
)

// RouterConfig carries the secrets and settings the middleware stack needs.
type RouterConfig struct {
	JWTSecret      string
	InternalAPIKey string
	AllowedOrigins []string
}

// PrintServiceRoutes creates and returns the router for the print service.
func PrintServiceRoutes(h *PrintServiceHandlers, service *app.Service, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Gateway callbacks are server-to-server, guarded by the shared key.
	r.Group(func(r chi.Router) {
		r.Use(InternalKeyMiddleware(cfg.InternalAPIKey))
		r.Post("/api/payments/gateway-callback", h.GatewayCallbackHandler)
	})

	// Student endpoints, authenticated by the campus identity JWT.
	r.Group(func(r chi.Router) {
		r.Use(StudentAuthMiddleware(cfg.JWTSecret))

		r.Post("/api/documents", h.RegisterDocumentHandler)
		r.Get("/api/documents/{documentID}", h.GetDocumentHandler)

		r.Post("/api/jobs", h.SubmitPrintJobHandler)
		r.Get("/api/jobs", h.ListMyPrintJobsHandler)
		r.Get("/api/jobs/{jobID}", h.GetPrintJobHandler)

		r.Post("/api/payments", h.LodgePaymentHandler)
		r.Get("/api/payments", h.ListMyPaymentsHandler)
		r.Get("/api/payments/{paymentID}", h.GetPaymentHandler)

		r.Get("/api/balance", h.GetBalanceHandler)
	})

	// Operator console endpoints.
	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", h.LoginHandler)

		r.Group(func(r chi.Router) {
			r.Use(OperatorAuthMiddleware(service))

			r.Post("/logout", h.LogoutHandler)

			r.Get("/queue", h.QueueHandler)
			r.Get("/queue/next", h.NextToPrintHandler)
			r.Post("/queue/{jobID}/admit", h.AdmitJobHandler)
			r.Post("/queue/{jobID}/start", h.StartJobHandler)
			r.Post("/queue/{jobID}/complete", h.CompleteJobHandler)
			r.Post("/queue/{jobID}/fail", h.FailJobHandler)
			r.Post("/queue/{jobID}/hold", h.HoldJobHandler)
			r.Post("/queue/{jobID}/resume", h.ResumeJobHandler)

			r.Get("/print-jobs", h.ListAllPrintJobsHandler)

			r.Get("/payments", h.ListAllPaymentsHandler)
			r.Post("/payments/{paymentID}/verify", h.VerifyPaymentHandler)
			r.Post("/payments/{paymentID}/reject", h.RejectPaymentHandler)

			r.Put("/accounts/{accountID}/balance", h.AdjustBalanceHandler)
		})
	})

	return r
}
