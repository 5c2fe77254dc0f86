package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/infra/cache"
	"github.com/eddostedson/eddo-budg-go/internal/infra/events"
	"github.com/eddostedson/eddo-budg-go/internal/infra/observability"
	"github.com/eddostedson/eddo-budg-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newAggregation(store *mockStore, ev <-chan domain.Event) *service.AggregationService {
	return service.NewAggregationService(
		store,
		cache.New[decimal.Decimal](time.Minute),
		ev,
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func TestTotalBalance(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	agg := newAggregation(store, nil)
	defer agg.Close()

	seedAccount(t, store, "100000")
	seedAccount(t, store, "50000")

	store.CreateBankAccount(ctx, testUser, &domain.BankAccount{
		Name: "savings", InitialBalance: dec("999"), CurrentBalance: dec("999"),
		ExcludeFromTotal: true, Active: true,
	})
	store.CreateBankAccount(ctx, testUser, &domain.BankAccount{
		Name: "closed", InitialBalance: dec("777"), CurrentBalance: dec("777"),
		Active: false,
	})

	total, err := agg.TotalBalance(ctx, testUser, true)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if !total.Equal(dec("150000")) {
		t.Errorf("expected 150000 excluding opted-out, got %s", total)
	}

	all, err := agg.TotalBalance(ctx, testUser, false)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if !all.Equal(dec("150999")) {
		t.Errorf("expected 150999 including opted-out, got %s", all)
	}
}

func TestTotalBalance_CachedUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	bus := events.NewBus()
	defer bus.Close()
	agg := newAggregation(store, bus.Subscribe())
	defer agg.Close()

	acc := seedAccount(t, store, "100000")

	total, err := agg.TotalBalance(ctx, testUser, false)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if !total.Equal(dec("100000")) {
		t.Fatalf("expected 100000, got %s", total)
	}

	// A store change without an event keeps serving the cached total.
	if err := store.UpdateBankAccount(ctx, testUser, acc.ID, map[string]any{
		"current_balance": dec("999999"),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	total, _ = agg.TotalBalance(ctx, testUser, false)
	if !total.Equal(dec("100000")) {
		t.Errorf("expected cached 100000, got %s", total)
	}

	// The lifecycle event invalidates it.
	bus.Publish(domain.Event{
		Kind:       domain.EventUpdated,
		Collection: domain.CollectionBankAccounts,
		EntityID:   acc.ID,
		UserID:     testUser,
		At:         time.Now(),
	})

	deadline := time.After(2 * time.Second)
	for {
		total, err = agg.TotalBalance(ctx, testUser, false)
		if err != nil {
			t.Fatalf("total: %v", err)
		}
		if total.Equal(dec("999999")) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("cache never invalidated; still serving %s", total)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestNetExternalFlow_SkipsInternalTransfers(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	agg := newAggregation(store, nil)
	defer agg.Close()

	a := seedAccount(t, store, "0")
	b := seedAccount(t, store, "0")

	// External inflows.
	seedTransaction(t, store, a.ID, domain.TransactionCredit, "100000")
	seedTransaction(t, store, b.ID, domain.TransactionCredit, "50000")
	// Debits never count as inflow.
	seedTransaction(t, store, a.ID, domain.TransactionDebit, "30000")

	// Movements between own accounts, flagged by category or label.
	store.CreateTransaction(ctx, testUser, &domain.LedgerTransaction{
		AccountRef: b.ID, Kind: domain.TransactionCredit,
		Amount: dec("20000"), Category: "virement_interne",
	})
	store.CreateTransaction(ctx, testUser, &domain.LedgerTransaction{
		AccountRef: a.ID, Kind: domain.TransactionCredit,
		Amount: dec("15000"), Label: "Transfer from savings",
	})

	flow, err := agg.NetExternalFlow(ctx, testUser)
	if err != nil {
		t.Fatalf("flow: %v", err)
	}
	if !flow.Equal(dec("150000")) {
		t.Errorf("expected 150000 external inflow, got %s", flow)
	}
}
