package handler

import (
	"net/http"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Expenses
// ============================================================

func listExpensesHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := ledger.ListExpenses(r.Context(), UserIDFromContext(r.Context()))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func getExpenseHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, err := ledger.GetExpense(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "expenseId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

func createExpenseHandler(pipeline *service.MutationPipeline, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft domain.ExpenseDraft
		if !decodeBody(w, r, &draft) {
			return
		}

		h, err := pipeline.SubmitExpense(UserIDFromContext(r.Context()), &draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, mutationResponse{TempID: h.TempID, State: string(h.State())})
	}
}

func updateExpenseHandler(pipeline *service.MutationPipeline, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft domain.ExpenseDraft
		if !decodeBody(w, r, &draft) {
			return
		}

		h, err := pipeline.SubmitExpenseUpdate(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "expenseId"), &draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, mutationResponse{TempID: h.TempID, State: string(h.State())})
	}
}

func deleteExpenseHandler(deleter *service.DeletionController, undos *undoRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := deleter.Remove(r.Context(), UserIDFromContext(r.Context()), domain.CollectionExpenses, chi.URLParam(r, "expenseId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		undos.put(token)
		writeJSON(w, http.StatusOK, removalResponse{
			UndoToken:          token.ID,
			Strategy:           string(token.Strategy),
			CascadedDependents: token.CascadedDependents,
		})
	}
}

// viewRecordHandler reports the optimistic state of a submitted mutation:
// pending, committed (with canonical id), or failed.
func viewRecordHandler(pipeline *service.MutationPipeline, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := pipeline.View().Get(chi.URLParam(r, "recordId"))
		if !ok {
			writeError(w, http.StatusNotFound, "no such view record")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}
