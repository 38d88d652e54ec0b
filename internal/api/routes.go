package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/affiliate-ledger/internal/auth"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, authManager *auth.AuthManager, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.HeaderActorID, auth.HeaderActorRole},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health checks (no auth required)
	r.Get("/health", h.health.HandleHealth)
	r.Get("/health/live", h.health.HandleLiveness)
	r.Get("/health/ready", h.health.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		// Engagement events accept anonymous viewers.
		r.Group(func(r chi.Router) {
			r.Use(authManager.Optional)
			r.Post("/events/views", h.RecordView)
			r.Post("/events/clicks", h.RecordClick)
			r.Post("/events/conversions", h.RecordConversion)
		})

		r.Group(func(r chi.Router) {
			r.Use(authManager.RequireAuth)

			r.Route("/promoters/me", func(r chi.Router) {
				r.Get("/sales", h.ListMySales)
				r.Get("/commissions", h.ListMyCommissions)
				r.Get("/wallet", h.GetMyWallet)
				r.Get("/wallet/transactions", h.ListMyTransactions)
				r.Get("/analytics", h.GetMyAnalytics)
			})

			r.Route("/withdrawals", func(r chi.Router) {
				r.Post("/", h.RequestWithdrawal)
				r.Get("/history", h.WithdrawalHistory)
				r.Get("/stats", h.WithdrawalStats)
			})

			// Admin routes: the review service enforces the role.
			r.Route("/admin", func(r chi.Router) {
				r.Route("/withdrawals", func(r chi.Router) {
					r.Get("/", h.AdminListWithdrawals)
					r.Get("/{id}", h.AdminGetWithdrawal)
					r.Post("/{id}/approve", h.AdminApproveWithdrawal)
					r.Post("/{id}/reject", h.AdminRejectWithdrawal)
					r.Post("/{id}/complete", h.AdminCompleteWithdrawal)
					r.Post("/{id}/reverse", h.AdminReverseWithdrawal)
				})
				r.Route("/sales", func(r chi.Router) {
					r.Get("/", h.AdminListSales)
					r.Post("/{id}/approve", h.AdminApproveSale)
					r.Post("/{id}/reject", h.AdminRejectSale)
					r.Post("/{id}/mark-paid", h.AdminMarkSalePaid)
				})
				r.Get("/wallets/{promoterId}", h.AdminGetWallet)
				r.Post("/wallets/{promoterId}/reconcile", h.AdminReconcileWallet)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, errNoRoute)
	})
	return r
}
