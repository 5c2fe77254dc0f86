package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Rent invoices & settlements
// ============================================================

// Rent invoice statuses.
const (
	RentStatusInProgress = "in_progress"
	RentStatusPartial    = "partial"
	RentStatusSettled    = "settled"
)

// RentInvoice tracks the rent owed by a tenant for one period.
// RemainingAmount is a cached column: total_amount minus the sum of all
// settlements, clamped at zero. The clamp is asymmetric with income-source
// balances on purpose; see the allocator's overpayment policy.
type RentInvoice struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	TenantName      string          `json:"tenant_name"`
	VillaRef        string          `json:"villa_ref,omitempty"`
	Month           int             `json:"month"`
	Year            int             `json:"year"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Status          string          `json:"status"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Deleted reports whether the row is soft-deleted.
func (r *RentInvoice) Deleted() bool {
	return r.DeletedAt != nil
}

// RentSettlement is an immutable record of a (possibly partial) payment
// applied against a rent invoice. Settlement rows are append-only history:
// never updated, never deleted.
type RentSettlement struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"user_id"`
	InvoiceRef           string          `json:"invoice_ref"`
	Amount               decimal.Decimal `json:"amount"`
	BalanceAfter         decimal.Decimal `json:"balance_after"`
	LinkedTransactionRef string          `json:"linked_transaction_ref,omitempty"`
	Timestamp            time.Time       `json:"timestamp"`
}

// RentInvoiceDraft is the client-supplied payload for creating a rent invoice.
type RentInvoiceDraft struct {
	TenantName  string          `json:"tenant_name"`
	VillaRef    string          `json:"villa_ref,omitempty"`
	Month       int             `json:"month"`
	Year        int             `json:"year"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// RentStatusFor derives the invoice status from its amounts: in_progress
// before any settlement, partial while something has been paid but a balance
// remains, settled once the remaining amount reaches zero.
func RentStatusFor(total, remaining decimal.Decimal, settlementCount int) string {
	switch {
	case settlementCount == 0:
		return RentStatusInProgress
	case remaining.IsZero():
		return RentStatusSettled
	case remaining.Equal(total):
		// Settlements exist but none allocated anything (all zero-applied).
		return RentStatusInProgress
	default:
		return RentStatusPartial
	}
}
