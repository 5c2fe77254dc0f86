package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Bank accounts & ledger transactions
// ============================================================

// Ledger transaction kinds.
const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

// BankAccount holds a manually-tracked bank account. CurrentBalance is a
// cached column maintained by the balance recomputation service:
// initial_balance plus credits minus debits over non-deleted transactions.
type BankAccount struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Name             string          `json:"name"`
	BankName         string          `json:"bank_name,omitempty"`
	AccountType      string          `json:"account_type,omitempty"`
	InitialBalance   decimal.Decimal `json:"initial_balance"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	ExcludeFromTotal bool            `json:"exclude_from_total"`
	Active           bool            `json:"active"`
	DeletedAt        *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Deleted reports whether the row is soft-deleted.
func (a *BankAccount) Deleted() bool {
	return a.DeletedAt != nil
}

// LedgerTransaction is a credit or debit posted against exactly one bank
// account.
type LedgerTransaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	AccountRef  string          `json:"account_ref"`
	Kind        string          `json:"kind"` // credit, debit
	Amount      decimal.Decimal `json:"amount"`
	Label       string          `json:"label,omitempty"`
	Description string          `json:"description,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Category    string          `json:"category,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Deleted reports whether the row is soft-deleted.
func (t *LedgerTransaction) Deleted() bool {
	return t.DeletedAt != nil
}

// BankAccountDraft is the client-supplied payload for creating a bank account.
type BankAccountDraft struct {
	Name             string          `json:"name"`
	BankName         string          `json:"bank_name,omitempty"`
	AccountType      string          `json:"account_type,omitempty"`
	InitialBalance   decimal.Decimal `json:"initial_balance"`
	ExcludeFromTotal bool            `json:"exclude_from_total"`
}

// TransactionDraft is the client-supplied payload for posting a transaction.
type TransactionDraft struct {
	AccountRef  string          `json:"account_ref"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Label       string          `json:"label,omitempty"`
	Description string          `json:"description,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Category    string          `json:"category,omitempty"`
}
