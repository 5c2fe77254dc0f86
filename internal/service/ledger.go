package service

import (
	"context"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// LedgerService is the read side: canonical rows straight from the backing
// store, soft-deleted entries already excluded. Optimistic records live in
// the pipeline's LocalView, not here.
type LedgerService struct {
	store  port.LedgerStore
	logger *zap.Logger
}

// NewLedgerService creates a read-side service.
func NewLedgerService(store port.LedgerStore, logger *zap.Logger) *LedgerService {
	return &LedgerService{store: store, logger: logger}
}

func (s *LedgerService) ListIncomeSources(ctx context.Context, userID string) ([]domain.IncomeSource, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListIncomeSources")
	defer span.End()

	return s.store.ListIncomeSources(ctx, userID)
}

func (s *LedgerService) GetIncomeSource(ctx context.Context, userID, id string) (*domain.IncomeSource, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetIncomeSource")
	defer span.End()

	return s.store.GetIncomeSource(ctx, userID, id)
}

func (s *LedgerService) ListExpenses(ctx context.Context, userID string) ([]domain.Expense, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListExpenses")
	defer span.End()

	return s.store.ListExpenses(ctx, userID)
}

func (s *LedgerService) GetExpense(ctx context.Context, userID, id string) (*domain.Expense, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetExpense")
	defer span.End()

	return s.store.GetExpense(ctx, userID, id)
}

func (s *LedgerService) ListBankAccounts(ctx context.Context, userID string) ([]domain.BankAccount, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListBankAccounts")
	defer span.End()

	return s.store.ListBankAccounts(ctx, userID)
}

func (s *LedgerService) GetBankAccount(ctx context.Context, userID, id string) (*domain.BankAccount, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetBankAccount")
	defer span.End()

	return s.store.GetBankAccount(ctx, userID, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID, accountID string) ([]domain.LedgerTransaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListTransactions")
	defer span.End()

	return s.store.ListTransactionsByAccount(ctx, userID, accountID)
}
