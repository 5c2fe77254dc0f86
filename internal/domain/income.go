package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Income sources
// ============================================================

// Income source statuses.
const (
	IncomeStatusReceived  = "received"
	IncomeStatusPending   = "pending"
	IncomeStatusCancelled = "cancelled"
)

// IncomeSource is a tracked inflow with a fixed original amount and a derived
// available balance. AvailableBalance is a cached column maintained by the
// balance recomputation service; it is never edited directly and is NOT
// clamped at zero (overspending an income source drives it negative).
type IncomeSource struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Label            string          `json:"label"`
	OriginalAmount   decimal.Decimal `json:"amount"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Description      string          `json:"description,omitempty"`
	ReceivedDate     string          `json:"received_date,omitempty"` // YYYY-MM-DD
	Status           string          `json:"status"`
	ReceiptRef       string          `json:"receipt_ref,omitempty"`
	DeletedAt        *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Deleted reports whether the row is soft-deleted and therefore excluded
// from every aggregate and balance sum.
func (i *IncomeSource) Deleted() bool {
	return i.DeletedAt != nil
}

// IncomeSourceDraft is the client-supplied payload for creating an income source.
type IncomeSourceDraft struct {
	Label          string          `json:"label"`
	OriginalAmount decimal.Decimal `json:"amount"`
	Description    string          `json:"description,omitempty"`
	ReceivedDate   string          `json:"received_date,omitempty"`
	Status         string          `json:"status,omitempty"`
	ReceiptRef     string          `json:"receipt_ref,omitempty"`
}
