package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/infra/observability"
	"github.com/eddostedson/eddo-budg-go/internal/infra/resilience"
	"github.com/eddostedson/eddo-budg-go/internal/service"

	"go.uber.org/zap"
)

func newDeleter(store *mockStore, strategies map[domain.Collection]service.DeletionStrategy) (*service.DeletionController, *service.BalanceService) {
	balances := newBalanceService(store)
	ctrl := service.NewDeletionController(store, balances, nopBus{}, observability.NewMetrics(), zap.NewNop(), strategies)
	return ctrl, balances
}

func allSoft() map[domain.Collection]service.DeletionStrategy {
	return map[domain.Collection]service.DeletionStrategy{
		domain.CollectionIncomeSources: service.StrategySoft,
		domain.CollectionExpenses:      service.StrategySoft,
		domain.CollectionBankAccounts:  service.StrategySoft,
		domain.CollectionTransactions:  service.StrategySoft,
	}
}

func allHard() map[domain.Collection]service.DeletionStrategy {
	return map[domain.Collection]service.DeletionStrategy{
		domain.CollectionIncomeSources: service.StrategyHard,
		domain.CollectionExpenses:      service.StrategyHard,
		domain.CollectionBankAccounts:  service.StrategyHard,
		domain.CollectionTransactions:  service.StrategyHard,
	}
}

func TestRemoveExpense_SoftThenUndo_RestoresExactBalance(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	ctrl, balances := newDeleter(store, allSoft())

	src := seedIncome(t, store, "500000")
	exp := seedExpense(t, store, src.ID, "", "120000")
	if _, err := balances.Recompute(ctx, testUser, service.BalanceIncomeSource, src.ID); err != nil {
		t.Fatalf("initial recompute: %v", err)
	}

	token, err := ctrl.Remove(ctx, testUser, domain.CollectionExpenses, exp.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if token.Strategy != service.StrategySoft {
		t.Errorf("expected soft strategy, got %s", token.Strategy)
	}

	// Removal releases the expense back into the source's balance.
	got, _ := store.GetIncomeSource(ctx, testUser, src.ID)
	if !got.AvailableBalance.Equal(dec("500000")) {
		t.Errorf("expected 500000 after removal, got %s", got.AvailableBalance)
	}
	if _, err := store.GetExpense(ctx, testUser, exp.ID); err == nil {
		t.Error("expected soft-deleted expense hidden from plain reads")
	}

	if err := token.Apply(ctx); err != nil {
		t.Fatalf("undo: %v", err)
	}

	// Undo restores the row and the pre-deletion balance exactly.
	got, _ = store.GetIncomeSource(ctx, testUser, src.ID)
	if !got.AvailableBalance.Equal(dec("380000")) {
		t.Errorf("expected 380000 after undo, got %s", got.AvailableBalance)
	}
	restored, err := store.GetExpense(ctx, testUser, exp.ID)
	if err != nil {
		t.Fatalf("expected expense visible after undo: %v", err)
	}
	if restored.Deleted() {
		t.Error("expected deleted_at cleared")
	}
}

func TestUndo_AppliedTwice_IsStale(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	ctrl, _ := newDeleter(store, allSoft())

	src := seedIncome(t, store, "100000")
	exp := seedExpense(t, store, src.ID, "", "10000")

	token, err := ctrl.Remove(ctx, testUser, domain.CollectionExpenses, exp.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := token.Apply(ctx); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	err = token.Apply(ctx)
	var stale *domain.ErrStaleUndo
	if !errors.As(err, &stale) {
		t.Fatalf("expected ErrStaleUndo on second apply, got %v", err)
	}
}

func TestUndo_AfterInterveningMutation_IsStale(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	ctrl, _ := newDeleter(store, allSoft())

	src := seedIncome(t, store, "100000")
	token, err := ctrl.Remove(ctx, testUser, domain.CollectionIncomeSources, src.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}

	// Another path touches the row while the token is outstanding.
	if err := store.UpdateIncomeSource(ctx, testUser, src.ID, map[string]any{"label": "renamed"}); err != nil {
		t.Fatalf("intervening update: %v", err)
	}

	err = token.Apply(ctx)
	var stale *domain.ErrStaleUndo
	if !errors.As(err, &stale) {
		t.Fatalf("expected ErrStaleUndo after intervening mutation, got %v", err)
	}
}

func TestRemoveIncomeSource_HardCascadesDependents(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	ctrl, _ := newDeleter(store, allHard())

	src := seedIncome(t, store, "300000")
	acc := seedAccount(t, store, "100000")
	seedExpense(t, store, src.ID, acc.ID, "40000")
	seedExpense(t, store, src.ID, "", "20000")

	token, err := ctrl.Remove(ctx, testUser, domain.CollectionIncomeSources, src.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if token.Strategy != service.StrategyHard {
		t.Errorf("expected hard strategy, got %s", token.Strategy)
	}
	if token.CascadedDependents != 2 {
		t.Errorf("expected 2 cascaded dependents, got %d", token.CascadedDependents)
	}

	// Row and dependents are physically gone.
	if _, err := store.GetIncomeSource(ctx, testUser, src.ID); err == nil {
		t.Error("expected income source gone")
	}
	deps, _ := store.ListExpensesByIncomeSource(ctx, testUser, src.ID)
	if len(deps) != 0 {
		t.Errorf("expected cascaded expenses gone, got %d", len(deps))
	}
}

func TestUndo_HardPath_ReinsertsWithoutDependents(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	ctrl, _ := newDeleter(store, allHard())

	src := seedIncome(t, store, "300000")
	seedExpense(t, store, src.ID, "", "40000")

	token, err := ctrl.Remove(ctx, testUser, domain.CollectionIncomeSources, src.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := token.Apply(ctx); err != nil {
		t.Fatalf("undo: %v", err)
	}

	if token.NewEntityID == "" || token.NewEntityID == src.ID {
		t.Errorf("expected freshly minted id, got %q", token.NewEntityID)
	}
	if token.RestoredDependents {
		t.Error("expected RestoredDependents=false when dependents were cascaded")
	}

	restored, err := store.GetIncomeSource(ctx, testUser, token.NewEntityID)
	if err != nil {
		t.Fatalf("expected reinserted income source: %v", err)
	}
	if !restored.OriginalAmount.Equal(dec("300000")) {
		t.Errorf("expected snapshot amount 300000, got %s", restored.OriginalAmount)
	}
	// The cascaded expense stays gone; the restored balance reflects that.
	if !restored.AvailableBalance.Equal(dec("300000")) {
		t.Errorf("expected recomputed balance 300000, got %s", restored.AvailableBalance)
	}
}

func TestRemoveBankAccount_HardCascadesTransactions(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	ctrl, _ := newDeleter(store, allHard())

	acc := seedAccount(t, store, "100000")
	seedTransaction(t, store, acc.ID, domain.TransactionCredit, "10000")
	seedTransaction(t, store, acc.ID, domain.TransactionDebit, "5000")

	token, err := ctrl.Remove(ctx, testUser, domain.CollectionBankAccounts, acc.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if token.CascadedDependents != 2 {
		t.Errorf("expected 2 cascaded transactions, got %d", token.CascadedDependents)
	}
	txs, _ := store.ListTransactionsByAccount(ctx, testUser, acc.ID)
	if len(txs) != 0 {
		t.Errorf("expected transactions gone, got %d", len(txs))
	}
}

func TestRemoveTransaction_SoftThenUndo(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	ctrl, balances := newDeleter(store, allSoft())

	acc := seedAccount(t, store, "100000")
	tx := seedTransaction(t, store, acc.ID, domain.TransactionDebit, "30000")
	if _, err := balances.Recompute(ctx, testUser, service.BalanceBankAccount, acc.ID); err != nil {
		t.Fatalf("initial recompute: %v", err)
	}

	token, err := ctrl.Remove(ctx, testUser, domain.CollectionTransactions, tx.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, _ := store.GetBankAccount(ctx, testUser, acc.ID)
	if !got.CurrentBalance.Equal(dec("100000")) {
		t.Errorf("expected 100000 after removal, got %s", got.CurrentBalance)
	}

	if err := token.Apply(ctx); err != nil {
		t.Fatalf("undo: %v", err)
	}
	got, _ = store.GetBankAccount(ctx, testUser, acc.ID)
	if !got.CurrentBalance.Equal(dec("70000")) {
		t.Errorf("expected 70000 after undo, got %s", got.CurrentBalance)
	}
}

func TestRemove_RentInvoice_Rejected(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	ctrl, _ := newDeleter(store, allSoft())

	_, err := ctrl.Remove(ctx, testUser, domain.CollectionRentInvoices, "rent-1")
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error for rent invoice removal, got %v", err)
	}
}

func TestRemove_ConcurrentPipelineWrite_BothSettle(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	balances := newBalanceService(store)
	ctrl := service.NewDeletionController(store, balances, nopBus{}, observability.NewMetrics(), zap.NewNop(), allHard())
	pipeline := service.NewMutationPipeline(
		store,
		balances,
		service.NewLocalView(),
		nopBus{},
		resilience.NewBulkhead(4),
		observability.NewMetrics(),
		zap.NewNop(),
		5*time.Second,
	)

	// The account id sorts before the income id, so the removal and the
	// pipeline write contend on the same two locks from opposite ends.
	acc := seedAccount(t, store, "100000")
	src := seedIncome(t, store, "500000")
	seedExpense(t, store, src.ID, acc.ID, "30000")

	// Park the removal inside its critical section with both locks held.
	release := store.blockOn("DeleteIncomeSource")

	removeDone := make(chan error, 1)
	go func() {
		_, err := ctrl.Remove(ctx, testUser, domain.CollectionIncomeSources, src.ID)
		removeDone <- err
	}()

	time.Sleep(50 * time.Millisecond)

	h, err := pipeline.SubmitExpense(testUser, &domain.ExpenseDraft{
		Label:           "racing",
		Amount:          dec("10000"),
		IncomeSourceRef: src.ID,
		BankAccountRef:  acc.ID,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	release()

	select {
	case rerr := <-removeDone:
		if rerr != nil {
			t.Fatalf("remove: %v", rerr)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("removal never settled while a pipeline write raced it")
	}

	waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := h.Wait(waitCtx); err != nil {
		t.Fatalf("racing write never settled: %v", err)
	}
}

func TestUndo_SoftExpense_RowVanished_IsStale(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	// Expenses carry the marker column but income sources do not, so
	// removing the source cascades even soft-deleted expenses away.
	ctrl, _ := newDeleter(store, map[domain.Collection]service.DeletionStrategy{
		domain.CollectionExpenses:      service.StrategySoft,
		domain.CollectionIncomeSources: service.StrategyHard,
	})

	src := seedIncome(t, store, "300000")
	exp := seedExpense(t, store, src.ID, "", "40000")
	seedExpense(t, store, src.ID, "", "20000")

	token, err := ctrl.Remove(ctx, testUser, domain.CollectionExpenses, exp.ID)
	if err != nil {
		t.Fatalf("remove expense: %v", err)
	}
	if _, err := ctrl.Remove(ctx, testUser, domain.CollectionIncomeSources, src.ID); err != nil {
		t.Fatalf("remove income source: %v", err)
	}

	err = token.Apply(ctx)
	var stale *domain.ErrStaleUndo
	if !errors.As(err, &stale) {
		t.Fatalf("expected ErrStaleUndo for vanished expense, got %v", err)
	}
	if _, err := store.GetExpense(ctx, testUser, exp.ID); err == nil {
		t.Error("expected the cascaded expense to stay gone")
	}
}

func TestUndo_SoftExpense_AfterInterveningMutation_IsStale(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	ctrl, _ := newDeleter(store, allSoft())

	src := seedIncome(t, store, "300000")
	exp := seedExpense(t, store, src.ID, "", "40000")

	token, err := ctrl.Remove(ctx, testUser, domain.CollectionExpenses, exp.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}

	// Another path touches the deleted row while the token is outstanding.
	if err := store.UpdateExpense(ctx, testUser, exp.ID, map[string]any{"label": "renamed"}); err != nil {
		t.Fatalf("intervening update: %v", err)
	}

	err = token.Apply(ctx)
	var stale *domain.ErrStaleUndo
	if !errors.As(err, &stale) {
		t.Fatalf("expected ErrStaleUndo after intervening mutation, got %v", err)
	}
}

func TestUndo_SoftTransaction_RowVanished_IsStale(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	ctrl, _ := newDeleter(store, map[domain.Collection]service.DeletionStrategy{
		domain.CollectionTransactions: service.StrategySoft,
		domain.CollectionBankAccounts: service.StrategyHard,
	})

	acc := seedAccount(t, store, "100000")
	tx := seedTransaction(t, store, acc.ID, domain.TransactionDebit, "30000")
	seedTransaction(t, store, acc.ID, domain.TransactionCredit, "10000")

	token, err := ctrl.Remove(ctx, testUser, domain.CollectionTransactions, tx.ID)
	if err != nil {
		t.Fatalf("remove transaction: %v", err)
	}
	if _, err := ctrl.Remove(ctx, testUser, domain.CollectionBankAccounts, acc.ID); err != nil {
		t.Fatalf("remove account: %v", err)
	}

	err = token.Apply(ctx)
	var stale *domain.ErrStaleUndo
	if !errors.As(err, &stale) {
		t.Fatalf("expected ErrStaleUndo for vanished transaction, got %v", err)
	}
}

type stubProber struct {
	soft map[domain.Collection]bool
	errs map[domain.Collection]error
}

func (p *stubProber) ProbeSoftDelete(_ context.Context, col domain.Collection) (bool, error) {
	return p.soft[col], p.errs[col]
}

func TestResolveDeletionStrategies_ProbeErrorFallsBackToHard(t *testing.T) {
	prober := &stubProber{
		soft: map[domain.Collection]bool{domain.CollectionIncomeSources: true},
		errs: map[domain.Collection]error{domain.CollectionBankAccounts: errors.New("upstream unavailable")},
	}

	got := service.ResolveDeletionStrategies(
		context.Background(),
		prober,
		[]domain.Collection{
			domain.CollectionIncomeSources,
			domain.CollectionExpenses,
			domain.CollectionBankAccounts,
		},
		observability.NewMetrics(),
		zap.NewNop(),
	)

	if got[domain.CollectionIncomeSources] != service.StrategySoft {
		t.Errorf("expected income_sources soft, got %s", got[domain.CollectionIncomeSources])
	}
	if got[domain.CollectionExpenses] != service.StrategyHard {
		t.Errorf("expected expenses hard, got %s", got[domain.CollectionExpenses])
	}
	if got[domain.CollectionBankAccounts] != service.StrategyHard {
		t.Errorf("expected probe error to fall back hard, got %s", got[domain.CollectionBankAccounts])
	}
}

func TestStrategyFor_DefaultsToHard(t *testing.T) {
	store := newMockStore()
	ctrl, _ := newDeleter(store, nil)

	if got := ctrl.StrategyFor(domain.CollectionExpenses); got != service.StrategyHard {
		t.Errorf("expected hard default, got %s", got)
	}
}
