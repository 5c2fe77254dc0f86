package handler

import (
	"net/http"

	"github.com/eddostedson/eddo-budg-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type totalResponse struct {
	Total decimal.Decimal `json:"total"`
}

type flowResponse struct {
	NetExternalFlow decimal.Decimal `json:"net_external_flow"`
}

func totalBalanceHandler(agg *service.AggregationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		excludeOptedOut := r.URL.Query().Get("exclude_opted_out") == "true"
		total, err := agg.TotalBalance(r.Context(), UserIDFromContext(r.Context()), excludeOptedOut)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, totalResponse{Total: total})
	}
}

func netFlowHandler(agg *service.AggregationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flow, err := agg.NetExternalFlow(r.Context(), UserIDFromContext(r.Context()))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, flowResponse{NetExternalFlow: flow})
	}
}

type recomputeRequest struct {
	Kind     string `json:"kind"`
	EntityID string `json:"entity_id"`
}

// recomputeHandler triggers an on-demand rescan of one derived balance,
// for repairing drift without waiting on the next mutation.
func recomputeHandler(balances *service.BalanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recomputeRequest
		if !decodeBody(w, r, &req) {
			return
		}

		derived, err := balances.Recompute(r.Context(), UserIDFromContext(r.Context()), service.BalanceKind(req.Kind), req.EntityID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, derived)
	}
}
