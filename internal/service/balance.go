// Package service provides the business logic layer: balance recomputation,
// rent settlement allocation, the optimistic mutation pipeline, soft-delete
// with undo, and ledger aggregation.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/infra/observability"
	"github.com/eddostedson/eddo-budg-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var balanceTracer = otel.Tracer("service/balance")

// BalanceKind identifies which derived balance a recompute targets.
type BalanceKind string

const (
	BalanceIncomeSource BalanceKind = "income_source"
	BalanceBankAccount  BalanceKind = "bank_account"
	BalanceRentInvoice  BalanceKind = "rent_invoice"
)

// DerivedBalance is the result of one recomputation.
type DerivedBalance struct {
	Kind     BalanceKind     `json:"kind"`
	EntityID string          `json:"entity_id"`
	Value    decimal.Decimal `json:"value"`
	// Skipped is true when the parent vanished mid-recompute; nothing was
	// written and no error is raised.
	Skipped bool `json:"skipped,omitempty"`
}

// BalanceTarget names one balance affected by a mutation.
type BalanceTarget struct {
	Kind BalanceKind
	ID   string
}

// BalanceService re-derives cached balances from canonical store state.
// Every recomputation is a full rescan of the linked transaction set: no
// incremental deltas, so drift from a partially-failed earlier mutation
// cannot compound. Recompute-and-write is serialized per entity id.
type BalanceService struct {
	store   port.LedgerStore
	locks   *entityLocks
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewBalanceService creates a balance recomputation service.
func NewBalanceService(store port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger) *BalanceService {
	return &BalanceService{
		store:   store,
		locks:   newEntityLocks(),
		metrics: metrics,
		logger:  logger,
	}
}

// Recompute re-derives one cached balance from the canonical record plus its
// full set of non-deleted linked transactions, and writes the result back.
// A parent that vanished mid-recompute is skipped silently. Store failures
// surface as ErrStoreUnavailable with no partial write.
func (s *BalanceService) Recompute(ctx context.Context, userID string, kind BalanceKind, id string) (*DerivedBalance, error) {
	lock := s.locks.forID(id)
	lock.Lock()
	defer lock.Unlock()

	return s.recomputeLocked(ctx, userID, kind, id)
}

// recomputeLocked is Recompute without lock acquisition, for callers that
// already hold the entity lock (the pipeline serializes its durable write
// and the follow-up recompute under one critical section).
func (s *BalanceService) recomputeLocked(ctx context.Context, userID string, kind BalanceKind, id string) (*DerivedBalance, error) {
	ctx, span := balanceTracer.Start(ctx, "BalanceService.Recompute")
	defer span.End()
	span.SetAttributes(
		attribute.String("balance.kind", string(kind)),
		attribute.String("entity.id", id),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRecompute(string(kind), time.Since(start))
	}()

	var (
		value decimal.Decimal
		err   error
	)

	switch kind {
	case BalanceIncomeSource:
		value, err = s.recomputeIncomeSource(ctx, userID, id)
	case BalanceBankAccount:
		value, err = s.recomputeBankAccount(ctx, userID, id)
	case BalanceRentInvoice:
		value, err = s.recomputeRentInvoice(ctx, userID, id)
	default:
		return nil, &domain.ErrValidation{Field: "kind", Message: "unknown balance kind: " + string(kind)}
	}

	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		// Parent vanished mid-recompute. Skip silently.
		s.metrics.IncrRecomputeSkipped(string(kind))
		s.logger.Debug("recompute skipped: parent vanished",
			zap.String("kind", string(kind)),
			zap.String("id", id),
		)
		return &DerivedBalance{Kind: kind, EntityID: id, Skipped: true}, nil
	}
	if err != nil {
		s.metrics.IncrStoreError(string(kind))
		return nil, &domain.ErrStoreUnavailable{Err: err}
	}

	return &DerivedBalance{Kind: kind, EntityID: id, Value: value}, nil
}

// recomputeIncomeSource applies: available = original − Σ expense amounts
// over non-deleted expenses referencing the source. Deliberately unclamped:
// overspending drives the balance negative.
func (s *BalanceService) recomputeIncomeSource(ctx context.Context, userID, id string) (decimal.Decimal, error) {
	src, err := s.store.GetIncomeSource(ctx, userID, id)
	if err != nil {
		return decimal.Zero, err
	}

	expenses, err := s.store.ListExpensesByIncomeSource(ctx, userID, id)
	if err != nil {
		return decimal.Zero, err
	}

	available := src.OriginalAmount
	for i := range expenses {
		if expenses[i].Deleted() {
			continue
		}
		available = available.Sub(expenses[i].Amount)
	}

	if err := s.store.UpdateIncomeSource(ctx, userID, id, map[string]any{
		"available_balance": available,
	}); err != nil {
		return decimal.Zero, err
	}
	return available, nil
}

// recomputeBankAccount applies: current = initial + Σ credits − Σ debits
// over non-deleted transactions on the account.
func (s *BalanceService) recomputeBankAccount(ctx context.Context, userID, id string) (decimal.Decimal, error) {
	acc, err := s.store.GetBankAccount(ctx, userID, id)
	if err != nil {
		return decimal.Zero, err
	}

	txs, err := s.store.ListTransactionsByAccount(ctx, userID, id)
	if err != nil {
		return decimal.Zero, err
	}

	current := acc.InitialBalance
	for i := range txs {
		if txs[i].Deleted() {
			continue
		}
		switch txs[i].Kind {
		case domain.TransactionCredit:
			current = current.Add(txs[i].Amount)
		case domain.TransactionDebit:
			current = current.Sub(txs[i].Amount)
		}
	}

	if err := s.store.UpdateBankAccount(ctx, userID, id, map[string]any{
		"current_balance": current,
	}); err != nil {
		return decimal.Zero, err
	}
	return current, nil
}

// recomputeRentInvoice applies: remaining = max(0, total − Σ settlements),
// clamped at zero, and re-derives the invoice status.
func (s *BalanceService) recomputeRentInvoice(ctx context.Context, userID, id string) (decimal.Decimal, error) {
	inv, err := s.store.GetRentInvoice(ctx, userID, id)
	if err != nil {
		return decimal.Zero, err
	}

	settlements, err := s.store.ListRentSettlements(ctx, userID, id)
	if err != nil {
		return decimal.Zero, err
	}

	remaining := inv.TotalAmount
	for i := range settlements {
		remaining = remaining.Sub(settlements[i].Amount)
	}
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	status := domain.RentStatusFor(inv.TotalAmount, remaining, len(settlements))
	if err := s.store.UpdateRentInvoice(ctx, userID, id, map[string]any{
		"remaining_amount": remaining,
		"status":           status,
	}); err != nil {
		return decimal.Zero, err
	}
	return remaining, nil
}

// RecomputeMany re-derives several balances concurrently. Each target is
// still serialized on its own entity lock.
func (s *BalanceService) RecomputeMany(ctx context.Context, userID string, targets []BalanceTarget) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			_, err := s.Recompute(ctx, userID, t.Kind, t.ID)
			return err
		})
	}
	return g.Wait()
}
