package handler

import (
	"net/http"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Bank accounts
// ============================================================

func listAccountsHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := ledger.ListBankAccounts(r.Context(), UserIDFromContext(r.Context()))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func getAccountHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, err := ledger.GetBankAccount(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

func createAccountHandler(pipeline *service.MutationPipeline, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft domain.BankAccountDraft
		if !decodeBody(w, r, &draft) {
			return
		}

		h, err := pipeline.SubmitBankAccount(UserIDFromContext(r.Context()), &draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, mutationResponse{TempID: h.TempID, State: string(h.State())})
	}
}

func updateAccountHandler(pipeline *service.MutationPipeline, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft domain.BankAccountDraft
		if !decodeBody(w, r, &draft) {
			return
		}

		h, err := pipeline.SubmitBankAccountUpdate(UserIDFromContext(r.Context()), chi.URLParam(r, "accountId"), &draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, mutationResponse{TempID: h.TempID, State: string(h.State())})
	}
}

func deleteAccountHandler(deleter *service.DeletionController, undos *undoRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := deleter.Remove(r.Context(), UserIDFromContext(r.Context()), domain.CollectionBankAccounts, chi.URLParam(r, "accountId"))
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

// ============================================================
// Ledger transactions
// ============================================================

func listTransactionsHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := ledger.ListTransactions(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func createTransactionHandler(pipeline *service.MutationPipeline, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft domain.TransactionDraft
		if !decodeBody(w, r, &draft) {
			return
		}
		draft.AccountRef = chi.URLParam(r, "accountId")

		h, err := pipeline.SubmitTransaction(UserIDFromContext(r.Context()), &draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, mutationResponse{TempID: h.TempID, State: string(h.State())})
	}
}

func deleteTransactionHandler(deleter *service.DeletionController, undos *undoRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := deleter.Remove(r.Context(), UserIDFromContext(r.Context()), domain.CollectionTransactions, chi.URLParam(r, "txId"))
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
