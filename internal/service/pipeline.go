package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/infra/observability"
	"github.com/eddostedson/eddo-budg-go/internal/infra/resilience"
	"github.com/eddostedson/eddo-budg-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var pipelineTracer = otel.Tracer("service/pipeline")

// Handle tracks one submitted mutation from optimistic apply to settlement.
type Handle struct {
	// TempID is the temporary identifier the draft is visible under until
	// the durable write settles.
	TempID string

	mu          sync.Mutex
	state       MutationState
	canonicalID string
	err         error
	done        chan struct{}
}

func newHandle(tempID string) *Handle {
	return &Handle{TempID: tempID, state: StatePending, done: make(chan struct{})}
}

// State returns the current mutation state.
func (h *Handle) State() MutationState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// CanonicalID returns the durable identifier once the mutation committed.
func (h *Handle) CanonicalID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.canonicalID
}

// Wait blocks until the mutation settles and returns the canonical id, or
// the settlement error for failed mutations.
func (h *Handle) Wait(ctx context.Context) (string, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.canonicalID, h.err
}

func (h *Handle) settle(canonicalID string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.state = StateFailed
		h.err = err
	} else {
		h.state = StateCommitted
		h.canonicalID = canonicalID
	}
	close(h.done)
}

// MutationPipeline is the local-first write path: drafts are applied to the
// in-memory view immediately under a temporary identifier, the durable
// write is issued asynchronously with a bounded timeout, and on settlement
// the affected balances are re-derived from canonical store state.
//
// Durable write plus recompute runs as one critical section under the locks
// of every affected entity, so back-to-back mutations against the same
// parent cannot interleave into a lost update.
type MutationPipeline struct {
	store    port.LedgerStore
	balances *BalanceService
	view     *LocalView
	bus      port.EventPublisher
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger

	writeTimeout time.Duration
	seq          atomic.Int64
	inflight     sync.WaitGroup
}

// NewMutationPipeline creates the optimistic mutation pipeline.
// writeTimeout bounds every durable mutation, regardless of kind.
func NewMutationPipeline(store port.LedgerStore, balances *BalanceService, view *LocalView, bus port.EventPublisher, bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger, writeTimeout time.Duration) *MutationPipeline {
	return &MutationPipeline{
		store:        store,
		balances:     balances,
		view:         view,
		bus:          bus,
		bulkhead:     bulkhead,
		metrics:      metrics,
		logger:       logger,
		writeTimeout: writeTimeout,
	}
}

// View exposes the session's optimistic view for read paths.
func (p *MutationPipeline) View() *LocalView {
	return p.view
}

// Drain blocks until every in-flight durable write has settled.
func (p *MutationPipeline) Drain() {
	p.inflight.Wait()
}

// nextTempID mints a monotonic, collision-free temporary identifier.
func (p *MutationPipeline) nextTempID() string {
	return fmt.Sprintf("tmp-%d", p.seq.Add(1))
}

// dispatch runs the durable side of a mutation: bulkhead slot, per-entity
// locks (sorted to keep lock order stable across mutations), the write
// itself, then recomputation of every affected balance.
//
// commit runs inside the critical section and must confine its recompute
// targets to lockIDs.
func (p *MutationPipeline) dispatch(userID string, h *Handle, collection domain.Collection, lockIDs []string, commit func(ctx context.Context) (string, []BalanceTarget, error)) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
		defer cancel()

		ctx, span := pipelineTracer.Start(ctx, "MutationPipeline.dispatch")
		defer span.End()

		if err := p.bulkhead.Acquire(ctx); err != nil {
			p.fail(h, collection, err)
			return
		}
		defer p.bulkhead.Release()

		unlock := p.balances.locks.lockAll(lockIDs)
		defer unlock()

		canonicalID, targets, err := commit(ctx)
		if err != nil {
			p.fail(h, collection, err)
			return
		}

		for _, t := range targets {
			if _, rerr := p.balances.recomputeLocked(ctx, userID, t.Kind, t.ID); rerr != nil {
				// The write is durable; only the cached balance is stale.
				// The next recompute on this entity repairs it.
				p.logger.Warn("post-mutation recompute failed",
					zap.String("kind", string(t.Kind)),
					zap.String("id", t.ID),
					zap.Error(rerr),
				)
			}
		}

		p.metrics.IncrMutation(string(collection), "committed")
		h.settle(canonicalID, nil)
	}()
}

// fail settles a mutation that did not reach the store. No rollback: the
// optimistic record stays in the view, flagged failed, for the caller to
// retry or discard.
func (p *MutationPipeline) fail(h *Handle, collection domain.Collection, err error) {
	var settleErr error
	if errors.Is(err, context.DeadlineExceeded) {
		settleErr = &domain.ErrTimeout{Operation: string(collection) + " write"}
	} else {
		settleErr = &domain.ErrRemoteWrite{Operation: string(collection) + " write", Err: err}
	}

	p.view.MarkFailed(h.TempID, settleErr)
	p.metrics.IncrMutation(string(collection), "failed")
	p.logger.Warn("durable write did not settle; optimistic record retained",
		zap.String("collection", string(collection)),
		zap.String("temp_id", h.TempID),
		zap.Error(err),
	)
	h.settle("", settleErr)
}

// publish emits a lifecycle event.
func (p *MutationPipeline) publish(kind string, collection domain.Collection, entityID, userID string) {
	p.bus.Publish(domain.Event{
		Kind:       kind,
		Collection: collection,
		EntityID:   entityID,
		UserID:     userID,
		At:         time.Now(),
	})
}

// ============================================================
// Income sources
// ============================================================

// SubmitIncomeSource creates an income source through the optimistic path.
func (p *MutationPipeline) SubmitIncomeSource(userID string, draft *domain.IncomeSourceDraft) (*Handle, error) {
	if draft.Label == "" {
		return nil, &domain.ErrValidation{Field: "label", Message: "label is required"}
	}
	if !draft.OriginalAmount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}
	status := draft.Status
	if status == "" {
		status = domain.IncomeStatusReceived
	}
	switch status {
	case domain.IncomeStatusReceived, domain.IncomeStatusPending, domain.IncomeStatusCancelled:
	default:
		return nil, &domain.ErrValidation{Field: "status", Message: "unknown status: " + status}
	}

	h := newHandle(p.nextTempID())
	optimistic := &domain.IncomeSource{
		ID:               h.TempID,
		UserID:           userID,
		Label:            draft.Label,
		OriginalAmount:   draft.OriginalAmount,
		AvailableBalance: draft.OriginalAmount,
		Description:      draft.Description,
		ReceivedDate:     draft.ReceivedDate,
		Status:           status,
		ReceiptRef:       draft.ReceiptRef,
		CreatedAt:        time.Now(),
	}
	p.view.Apply(h.TempID, domain.CollectionIncomeSources, optimistic)

	p.dispatch(userID, h, domain.CollectionIncomeSources, nil, func(ctx context.Context) (string, []BalanceTarget, error) {
		created, err := p.store.CreateIncomeSource(ctx, userID, optimistic)
		if err != nil {
			return "", nil, err
		}
		p.view.Splice(h.TempID, created.ID, created)
		p.publish(domain.EventCreated, domain.CollectionIncomeSources, created.ID, userID)
		return created.ID, nil, nil
	})
	return h, nil
}

// SubmitIncomeSourceUpdate edits an income source. An edit to the original
// amount re-derives the available balance.
func (p *MutationPipeline) SubmitIncomeSourceUpdate(userID, id string, draft *domain.IncomeSourceDraft) (*Handle, error) {
	if draft.Label == "" {
		return nil, &domain.ErrValidation{Field: "label", Message: "label is required"}
	}
	if !draft.OriginalAmount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}

	h := newHandle(p.nextTempID())
	p.dispatch(userID, h, domain.CollectionIncomeSources, []string{id}, func(ctx context.Context) (string, []BalanceTarget, error) {
		updates := map[string]any{
			"label":         draft.Label,
			"amount":        draft.OriginalAmount,
			"description":   draft.Description,
			"received_date": draft.ReceivedDate,
		}
		if draft.Status != "" {
			updates["status"] = draft.Status
		}
		if err := p.store.UpdateIncomeSource(ctx, userID, id, updates); err != nil {
			return "", nil, err
		}
		p.publish(domain.EventUpdated, domain.CollectionIncomeSources, id, userID)
		return id, []BalanceTarget{{Kind: BalanceIncomeSource, ID: id}}, nil
	})
	return h, nil
}

// ============================================================
// Expenses
// ============================================================

// SubmitExpense creates an expense through the optimistic path and
// re-derives every balance it feeds (linked income source and/or account).
func (p *MutationPipeline) SubmitExpense(userID string, draft *domain.ExpenseDraft) (*Handle, error) {
	if draft.Label == "" {
		return nil, &domain.ErrValidation{Field: "label", Message: "label is required"}
	}
	if !draft.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}

	h := newHandle(p.nextTempID())
	optimistic := &domain.Expense{
		ID:              h.TempID,
		UserID:          userID,
		Label:           draft.Label,
		Amount:          draft.Amount,
		Date:            draft.Date,
		Description:     draft.Description,
		Category:        draft.Category,
		IncomeSourceRef: draft.IncomeSourceRef,
		BankAccountRef:  draft.BankAccountRef,
		ReceiptRef:      draft.ReceiptRef,
		CreatedAt:       time.Now(),
	}
	p.view.Apply(h.TempID, domain.CollectionExpenses, optimistic)

	targets := expenseTargets(draft.IncomeSourceRef, draft.BankAccountRef)
	p.dispatch(userID, h, domain.CollectionExpenses, targetIDs(targets), func(ctx context.Context) (string, []BalanceTarget, error) {
		created, err := p.store.CreateExpense(ctx, userID, optimistic)
		if err != nil {
			return "", nil, err
		}
		p.view.Splice(h.TempID, created.ID, created)
		p.publish(domain.EventCreated, domain.CollectionExpenses, created.ID, userID)
		return created.ID, targets, nil
	})
	return h, nil
}

// SubmitExpenseUpdate edits an expense. Balances of both the old and the
// new linked parents are re-derived, covering re-linking to a different
// income source or account.
func (p *MutationPipeline) SubmitExpenseUpdate(ctx context.Context, userID, id string, draft *domain.ExpenseDraft) (*Handle, error) {
	if draft.Label == "" {
		return nil, &domain.ErrValidation{Field: "label", Message: "label is required"}
	}
	if !draft.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}

	// Read the current row first: the previous parents need recomputing too.
	current, err := p.store.GetExpense(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	h := newHandle(p.nextTempID())
	targets := mergeTargets(
		expenseTargets(current.IncomeSourceRef, current.BankAccountRef),
		expenseTargets(draft.IncomeSourceRef, draft.BankAccountRef),
	)
	p.dispatch(userID, h, domain.CollectionExpenses, targetIDs(targets), func(ctx context.Context) (string, []BalanceTarget, error) {
		updates := map[string]any{
			"label":             draft.Label,
			"amount":            draft.Amount,
			"date":              draft.Date,
			"description":       draft.Description,
			"category":          draft.Category,
			"income_source_ref": nullable(draft.IncomeSourceRef),
			"bank_account_ref":  nullable(draft.BankAccountRef),
		}
		if err := p.store.UpdateExpense(ctx, userID, id, updates); err != nil {
			return "", nil, err
		}
		p.publish(domain.EventUpdated, domain.CollectionExpenses, id, userID)
		return id, targets, nil
	})
	return h, nil
}

// ============================================================
// Bank accounts & transactions
// ============================================================

// SubmitBankAccount creates a bank account through the optimistic path.
func (p *MutationPipeline) SubmitBankAccount(userID string, draft *domain.BankAccountDraft) (*Handle, error) {
	if draft.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "name is required"}
	}

	h := newHandle(p.nextTempID())
	optimistic := &domain.BankAccount{
		ID:               h.TempID,
		UserID:           userID,
		Name:             draft.Name,
		BankName:         draft.BankName,
		AccountType:      draft.AccountType,
		InitialBalance:   draft.InitialBalance,
		CurrentBalance:   draft.InitialBalance,
		ExcludeFromTotal: draft.ExcludeFromTotal,
		Active:           true,
		CreatedAt:        time.Now(),
	}
	p.view.Apply(h.TempID, domain.CollectionBankAccounts, optimistic)

	p.dispatch(userID, h, domain.CollectionBankAccounts, nil, func(ctx context.Context) (string, []BalanceTarget, error) {
		created, err := p.store.CreateBankAccount(ctx, userID, optimistic)
		if err != nil {
			return "", nil, err
		}
		p.view.Splice(h.TempID, created.ID, created)
		p.publish(domain.EventCreated, domain.CollectionBankAccounts, created.ID, userID)
		return created.ID, nil, nil
	})
	return h, nil
}

// SubmitBankAccountUpdate edits a bank account. An edit to the initial
// balance re-derives the running balance.
func (p *MutationPipeline) SubmitBankAccountUpdate(userID, id string, draft *domain.BankAccountDraft) (*Handle, error) {
	if draft.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "name is required"}
	}

	h := newHandle(p.nextTempID())
	p.dispatch(userID, h, domain.CollectionBankAccounts, []string{id}, func(ctx context.Context) (string, []BalanceTarget, error) {
		updates := map[string]any{
			"name":               draft.Name,
			"bank_name":          draft.BankName,
			"account_type":       draft.AccountType,
			"initial_balance":    draft.InitialBalance,
			"exclude_from_total": draft.ExcludeFromTotal,
		}
		if err := p.store.UpdateBankAccount(ctx, userID, id, updates); err != nil {
			return "", nil, err
		}
		p.publish(domain.EventUpdated, domain.CollectionBankAccounts, id, userID)
		return id, []BalanceTarget{{Kind: BalanceBankAccount, ID: id}}, nil
	})
	return h, nil
}

// SubmitTransaction posts a credit or debit against an account and
// re-derives the running balance.
func (p *MutationPipeline) SubmitTransaction(userID string, draft *domain.TransactionDraft) (*Handle, error) {
	if draft.AccountRef == "" {
		return nil, &domain.ErrValidation{Field: "account_ref", Message: "account reference is required"}
	}
	if draft.Kind != domain.TransactionCredit && draft.Kind != domain.TransactionDebit {
		return nil, &domain.ErrValidation{Field: "kind", Message: "kind must be credit or debit"}
	}
	if !draft.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}

	h := newHandle(p.nextTempID())
	optimistic := &domain.LedgerTransaction{
		ID:          h.TempID,
		UserID:      userID,
		AccountRef:  draft.AccountRef,
		Kind:        draft.Kind,
		Amount:      draft.Amount,
		Label:       draft.Label,
		Description: draft.Description,
		Reference:   draft.Reference,
		Category:    draft.Category,
		Timestamp:   time.Now(),
	}
	p.view.Apply(h.TempID, domain.CollectionTransactions, optimistic)

	targets := []BalanceTarget{{Kind: BalanceBankAccount, ID: draft.AccountRef}}
	p.dispatch(userID, h, domain.CollectionTransactions, targetIDs(targets), func(ctx context.Context) (string, []BalanceTarget, error) {
		created, err := p.store.CreateTransaction(ctx, userID, optimistic)
		if err != nil {
			return "", nil, err
		}
		p.view.Splice(h.TempID, created.ID, created)
		p.publish(domain.EventCreated, domain.CollectionTransactions, created.ID, userID)
		return created.ID, targets, nil
	})
	return h, nil
}

// ============================================================
// Target helpers
// ============================================================

func expenseTargets(incomeSourceRef, bankAccountRef string) []BalanceTarget {
	var targets []BalanceTarget
	if incomeSourceRef != "" {
		targets = append(targets, BalanceTarget{Kind: BalanceIncomeSource, ID: incomeSourceRef})
	}
	if bankAccountRef != "" {
		targets = append(targets, BalanceTarget{Kind: BalanceBankAccount, ID: bankAccountRef})
	}
	return targets
}

func mergeTargets(a, b []BalanceTarget) []BalanceTarget {
	seen := make(map[string]bool, len(a)+len(b))
	var out []BalanceTarget
	for _, t := range append(a, b...) {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

func targetIDs(targets []BalanceTarget) []string {
	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.ID)
	}
	return ids
}

// nullable maps an empty weak reference to NULL instead of an empty string.
func nullable(ref string) any {
	if ref == "" {
		return nil
	}
	return ref
}
