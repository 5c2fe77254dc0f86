// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// SchemaProber checks at startup whether the backing store supports a
// soft-delete marker column on a given collection. A probe failure defaults
// conservatively to hard deletion; it never blocks startup.
type SchemaProber interface {
	ProbeSoftDelete(ctx context.Context, collection domain.Collection) (bool, error)
}

// EventPublisher broadcasts entity lifecycle events to dependent views.
// Publishing is fire-and-forget: slow or absent subscribers never block a
// mutation path.
type EventPublisher interface {
	Publish(ev domain.Event)
}

// LedgerStore defines all data operations against the backing store.
// Implemented by the PostgREST adapter (or any other persistence layer).
// List and Get methods return canonical rows with soft-deleted entries
// already excluded wherever the collection supports the marker column;
// the *IncludingDeleted variants bypass that filter for undo handling.
type LedgerStore interface {
	// Income sources
	CreateIncomeSource(ctx context.Context, userID string, src *domain.IncomeSource) (*domain.IncomeSource, error)
	GetIncomeSource(ctx context.Context, userID, id string) (*domain.IncomeSource, error)
	GetIncomeSourceIncludingDeleted(ctx context.Context, userID, id string) (*domain.IncomeSource, error)
	ListIncomeSources(ctx context.Context, userID string) ([]domain.IncomeSource, error)
	UpdateIncomeSource(ctx context.Context, userID, id string, updates map[string]any) error
	DeleteIncomeSource(ctx context.Context, userID, id string) error

	// Expenses
	CreateExpense(ctx context.Context, userID string, exp *domain.Expense) (*domain.Expense, error)
	GetExpense(ctx context.Context, userID, id string) (*domain.Expense, error)
	GetExpenseIncludingDeleted(ctx context.Context, userID, id string) (*domain.Expense, error)
	ListExpenses(ctx context.Context, userID string) ([]domain.Expense, error)
	ListExpensesByIncomeSource(ctx context.Context, userID, incomeSourceID string) ([]domain.Expense, error)
	UpdateExpense(ctx context.Context, userID, id string, updates map[string]any) error
	DeleteExpense(ctx context.Context, userID, id string) error
	DeleteExpensesByIncomeSource(ctx context.Context, userID, incomeSourceID string) error

	// Bank accounts
	CreateBankAccount(ctx context.Context, userID string, acc *domain.BankAccount) (*domain.BankAccount, error)
	GetBankAccount(ctx context.Context, userID, id string) (*domain.BankAccount, error)
	GetBankAccountIncludingDeleted(ctx context.Context, userID, id string) (*domain.BankAccount, error)
	ListBankAccounts(ctx context.Context, userID string) ([]domain.BankAccount, error)
	UpdateBankAccount(ctx context.Context, userID, id string, updates map[string]any) error
	DeleteBankAccount(ctx context.Context, userID, id string) error

	// Ledger transactions
	CreateTransaction(ctx context.Context, userID string, tx *domain.LedgerTransaction) (*domain.LedgerTransaction, error)
	GetTransaction(ctx context.Context, userID, id string) (*domain.LedgerTransaction, error)
	GetTransactionIncludingDeleted(ctx context.Context, userID, id string) (*domain.LedgerTransaction, error)
	ListTransactionsByAccount(ctx context.Context, userID, accountID string) ([]domain.LedgerTransaction, error)
	UpdateTransaction(ctx context.Context, userID, id string, updates map[string]any) error
	DeleteTransaction(ctx context.Context, userID, id string) error
	DeleteTransactionsByAccount(ctx context.Context, userID, accountID string) error

	// Rent invoices
	CreateRentInvoice(ctx context.Context, userID string, inv *domain.RentInvoice) (*domain.RentInvoice, error)
	GetRentInvoice(ctx context.Context, userID, id string) (*domain.RentInvoice, error)
	ListRentInvoices(ctx context.Context, userID string) ([]domain.RentInvoice, error)
	UpdateRentInvoice(ctx context.Context, userID, id string, updates map[string]any) error

	// Rent settlements (append-only)
	CreateRentSettlement(ctx context.Context, userID string, st *domain.RentSettlement) (*domain.RentSettlement, error)
	ListRentSettlements(ctx context.Context, userID, invoiceID string) ([]domain.RentSettlement, error)
}
