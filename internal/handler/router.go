package handler

import (
	"net/http"
	"time"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/infra/observability"
	"github.com/eddostedson/eddo-budg-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Ledger   *service.LedgerService
	Pipeline *service.MutationPipeline
	Rent     *service.RentService
	Balances *service.BalanceService
	Deleter  *service.DeletionController
	Agg      *service.AggregationService
	Metrics  *observability.Metrics
	Logger   *zap.Logger

	// JWTSecret verifies Supabase Auth session tokens. Identity is owned by
	// the auth collaborator; this service only validates and extracts it.
	JWTSecret string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(d.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Ledger, d.Metrics, d.Logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	undos := newUndoRegistry()

	// --- API v1 (all routes require an authenticated session) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(d.JWTSecret, d.Logger))

		// Income sources
		r.Get("/incomes", listIncomesHandler(d.Ledger, d.Logger))
		r.Post("/incomes", createIncomeHandler(d.Pipeline, d.Logger))
		r.Get("/incomes/{incomeId}", getIncomeHandler(d.Ledger, d.Logger))
		r.Put("/incomes/{incomeId}", updateIncomeHandler(d.Pipeline, d.Logger))
		r.Delete("/incomes/{incomeId}", deleteIncomeHandler(d.Deleter, undos, d.Logger))

		// Expenses
		r.Get("/expenses", listExpensesHandler(d.Ledger, d.Logger))
		r.Post("/expenses", createExpenseHandler(d.Pipeline, d.Logger))
		r.Get("/expenses/{expenseId}", getExpenseHandler(d.Ledger, d.Logger))
		r.Put("/expenses/{expenseId}", updateExpenseHandler(d.Pipeline, d.Logger))
		r.Delete("/expenses/{expenseId}", deleteExpenseHandler(d.Deleter, undos, d.Logger))

		// Bank accounts & ledger transactions
		r.Get("/accounts", listAccountsHandler(d.Ledger, d.Logger))
		r.Post("/accounts", createAccountHandler(d.Pipeline, d.Logger))
		r.Get("/accounts/{accountId}", getAccountHandler(d.Ledger, d.Logger))
		r.Put("/accounts/{accountId}", updateAccountHandler(d.Pipeline, d.Logger))
		r.Delete("/accounts/{accountId}", deleteAccountHandler(d.Deleter, undos, d.Logger))
		r.Get("/accounts/{accountId}/transactions", listTransactionsHandler(d.Ledger, d.Logger))
		r.Post("/accounts/{accountId}/transactions", createTransactionHandler(d.Pipeline, d.Logger))
		r.Delete("/transactions/{txId}", deleteTransactionHandler(d.Deleter, undos, d.Logger))

		// Rent invoices & settlements
		r.Get("/rent/invoices", listRentInvoicesHandler(d.Rent, d.Logger))
		r.Post("/rent/invoices", createRentInvoiceHandler(d.Rent, d.Logger))
		r.Get("/rent/invoices/{invoiceId}", getRentInvoiceHandler(d.Rent, d.Logger))
		r.Get("/rent/invoices/{invoiceId}/settlements", listRentSettlementsHandler(d.Rent, d.Logger))
		r.Post("/rent/invoices/{invoiceId}/settlements", allocateRentHandler(d.Rent, d.Logger))

		// Restore (undo a prior removal)
		r.Post("/restore/{tokenId}", applyUndoHandler(undos, d.Logger))

		// Balances
		r.Get("/balances/total", totalBalanceHandler(d.Agg, d.Logger))
		r.Get("/balances/flow", netFlowHandler(d.Agg, d.Logger))
		r.Post("/balances/recompute", recomputeHandler(d.Balances, d.Logger))

		// Optimistic view
		r.Get("/view/{recordId}", viewRecordHandler(d.Pipeline, d.Logger))
		r.Get("/view/failed/records", listFailedRecordsHandler(d.Pipeline, d.Logger))
	})

	return r
}

// healthzHandler probes the backing store with a cheap read and reports
// degraded rather than failing the check when it errors. The payload also
// carries a mutation-counter snapshot so operators can eyeball write health
// without scraping /metrics.
func healthzHandler(ledger *service.LedgerService, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	collections := []domain.Collection{
		domain.CollectionIncomeSources,
		domain.CollectionExpenses,
		domain.CollectionBankAccounts,
		domain.CollectionTransactions,
		domain.CollectionRentInvoices,
		domain.CollectionSettlements,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		start := time.Now()
		if ledger != nil {
			if _, err := ledger.ListBankAccounts(r.Context(), "health-check"); err != nil {
				status = "degraded"
				logger.Warn("health probe failed", zap.Error(err))
			}
		}

		var committed, failed float64
		for _, coll := range collections {
			committed += metrics.MutationCount(string(coll), "committed")
			failed += metrics.MutationCount(string(coll), "failed")
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"checked_at": time.Now().Format(time.RFC3339),
			"mutations": map[string]float64{
				"committed": committed,
				"failed":    failed,
			},
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func listFailedRecordsHandler(pipeline *service.MutationPipeline, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		failed := pipeline.View().Failed()
		if failed == nil {
			failed = []*service.ViewRecord{}
		}
		writeJSON(w, http.StatusOK, failed)
	}
}
