package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Expenses
// ============================================================

// Expense is an outflow optionally linked to one income source and/or one
// bank account. Both references are weak: deleting the referenced income
// source does not delete the expense (except on the hard-delete fallback
// path, which cascades).
type Expense struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Label           string          `json:"label"`
	Amount          decimal.Decimal `json:"amount"`
	Date            string          `json:"date,omitempty"` // YYYY-MM-DD
	Description     string          `json:"description,omitempty"`
	Category        string          `json:"category,omitempty"`
	IncomeSourceRef string          `json:"income_source_ref,omitempty"`
	BankAccountRef  string          `json:"bank_account_ref,omitempty"`
	ReceiptRef      string          `json:"receipt_ref,omitempty"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Deleted reports whether the row is soft-deleted.
func (e *Expense) Deleted() bool {
	return e.DeletedAt != nil
}

// ExpenseDraft is the client-supplied payload for creating an expense.
type ExpenseDraft struct {
	Label           string          `json:"label"`
	Amount          decimal.Decimal `json:"amount"`
	Date            string          `json:"date,omitempty"`
	Description     string          `json:"description,omitempty"`
	Category        string          `json:"category,omitempty"`
	IncomeSourceRef string          `json:"income_source_ref,omitempty"`
	BankAccountRef  string          `json:"bank_account_ref,omitempty"`
	ReceiptRef      string          `json:"receipt_ref,omitempty"`
}
