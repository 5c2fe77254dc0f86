package handler

import (
	"net/http"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Income sources
// ============================================================

func listIncomesHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := ledger.ListIncomeSources(r.Context(), UserIDFromContext(r.Context()))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func getIncomeHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, err := ledger.GetIncomeSource(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "incomeId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

// mutationResponse is what every optimistic submit returns: the record is
// already visible in the session view under TempID while the durable write
// is still in flight.
type mutationResponse struct {
	TempID string `json:"temp_id"`
	State  string `json:"state"`
}

func createIncomeHandler(pipeline *service.MutationPipeline, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft domain.IncomeSourceDraft
		if !decodeBody(w, r, &draft) {
			return
		}

		h, err := pipeline.SubmitIncomeSource(UserIDFromContext(r.Context()), &draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, mutationResponse{TempID: h.TempID, State: string(h.State())})
	}
}

func updateIncomeHandler(pipeline *service.MutationPipeline, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft domain.IncomeSourceDraft
		if !decodeBody(w, r, &draft) {
			return
		}

		h, err := pipeline.SubmitIncomeSourceUpdate(UserIDFromContext(r.Context()), chi.URLParam(r, "incomeId"), &draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, mutationResponse{TempID: h.TempID, State: string(h.State())})
	}
}

// removalResponse carries the undo affordance. On the hard fallback path
// CascadedDependents tells the caller how many dependents were physically
// removed and will NOT come back on undo.
type removalResponse struct {
	UndoToken          string `json:"undo_token"`
	Strategy           string `json:"strategy"`
	CascadedDependents int    `json:"cascaded_dependents"`
}

func deleteIncomeHandler(deleter *service.DeletionController, undos *undoRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := deleter.Remove(r.Context(), UserIDFromContext(r.Context()), domain.CollectionIncomeSources, chi.URLParam(r, "incomeId"))
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

// applyUndoHandler restores a previously removed entity of any collection.
func applyUndoHandler(undos *undoRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := undos.get(chi.URLParam(r, "tokenId"))
		if !ok {
			writeError(w, http.StatusNotFound, "unknown undo token")
			return
		}

		if err := token.Apply(r.Context()); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"entity_id":           token.EntityID,
			"new_entity_id":       token.NewEntityID,
			"restored_dependents": token.RestoredDependents,
		})
	}
}
