package handler

import (
	"net/http"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================
// Rent invoices & settlements
// ============================================================

func listRentInvoicesHandler(rent *service.RentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := rent.ListInvoices(r.Context(), UserIDFromContext(r.Context()))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func getRentInvoiceHandler(rent *service.RentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, err := rent.GetInvoice(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "invoiceId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

func createRentInvoiceHandler(rent *service.RentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft domain.RentInvoiceDraft
		if !decodeBody(w, r, &draft) {
			return
		}

		inv, err := rent.CreateInvoice(r.Context(), UserIDFromContext(r.Context()), &draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	}
}

func listRentSettlementsHandler(rent *service.RentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := rent.ListSettlements(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "invoiceId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

type settlementRequest struct {
	Amount               decimal.Decimal `json:"amount"`
	LinkedTransactionRef string          `json:"linked_transaction_ref,omitempty"`
}

func allocateRentHandler(rent *service.RentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settlementRequest
		if !decodeBody(w, r, &req) {
			return
		}

		alloc, err := rent.Allocate(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "invoiceId"), req.Amount, req.LinkedTransactionRef)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, alloc)
	}
}
