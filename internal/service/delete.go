package service

import (
	"context"
	"errors"
	"time"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/infra/observability"
	"github.com/eddostedson/eddo-budg-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var deleteTracer = otel.Tracer("service/delete")

// DeletionStrategy selects how removal is executed for a collection.
type DeletionStrategy string

const (
	// StrategySoft marks rows with deleted_at; undo clears the marker.
	StrategySoft DeletionStrategy = "soft"
	// StrategyHard physically deletes rows, cascading over dependents.
	// The fallback when the schema has no deleted_at column.
	StrategyHard DeletionStrategy = "hard"
)

// ResolveDeletionStrategies probes each collection once at session start
// and maps the answer to a removal strategy. A probe failure is logged and
// falls back to hard deletion; it never blocks startup.
func ResolveDeletionStrategies(ctx context.Context, prober port.SchemaProber, collections []domain.Collection, metrics *observability.Metrics, logger *zap.Logger) map[domain.Collection]DeletionStrategy {
	strategies := make(map[domain.Collection]DeletionStrategy, len(collections))
	for _, col := range collections {
		soft, err := prober.ProbeSoftDelete(ctx, col)
		if err != nil {
			logger.Warn("capability probe failed; falling back to hard delete",
				zap.String("collection", string(col)),
				zap.Error(err),
			)
		}
		strategy := StrategyHard
		if soft {
			strategy = StrategySoft
		}
		strategies[col] = strategy

		metrics.RecordProbe(string(col), string(strategy))
		logger.Info("deletion strategy resolved",
			zap.String("collection", string(col)),
			zap.String("strategy", string(strategy)),
		)
	}
	return strategies
}

// UndoToken can restore a removed entity at any later point in the session.
//
// On the hard path the token re-inserts a reconstructed entity from the
// pre-deletion snapshot but CANNOT restore cascaded dependents: they were
// physically removed. Callers must check RestoredDependents after Apply.
type UndoToken struct {
	ID         string            `json:"id"`
	Collection domain.Collection `json:"collection"`
	EntityID   string            `json:"entity_id"`
	Strategy   DeletionStrategy  `json:"strategy"`

	// CascadedDependents counts dependents removed alongside the entity on
	// the hard path.
	CascadedDependents int `json:"cascaded_dependents"`
	// RestoredDependents reports, after Apply, whether dependents came back.
	// Always false on the hard path when anything was cascaded.
	RestoredDependents bool `json:"restored_dependents"`
	// NewEntityID is set after a hard-path Apply: re-insertion mints a new
	// canonical id.
	NewEntityID string `json:"new_entity_id,omitempty"`

	userID string
	// deletedStamp is the row's updated_at observed right after deletion.
	// Any divergence on Apply means the entity was mutated by another path
	// and the token is stale.
	deletedStamp time.Time
	snapshot any
	applied  bool

	ctrl *DeletionController
}

// DeletionController removes entities and hands back undo tokens, branching
// on the deletion strategy probed at startup for each collection.
type DeletionController struct {
	store      port.LedgerStore
	balances   *BalanceService
	bus        port.EventPublisher
	metrics    *observability.Metrics
	logger     *zap.Logger
	strategies map[domain.Collection]DeletionStrategy
}

// NewDeletionController creates a deletion controller with the strategies
// resolved by the startup capability probe.
func NewDeletionController(store port.LedgerStore, balances *BalanceService, bus port.EventPublisher, metrics *observability.Metrics, logger *zap.Logger, strategies map[domain.Collection]DeletionStrategy) *DeletionController {
	return &DeletionController{
		store:      store,
		balances:   balances,
		bus:        bus,
		metrics:    metrics,
		logger:     logger,
		strategies: strategies,
	}
}

// StrategyFor returns the resolved strategy for a collection, defaulting to
// hard deletion when nothing was probed.
func (c *DeletionController) StrategyFor(collection domain.Collection) DeletionStrategy {
	if s, ok := c.strategies[collection]; ok {
		return s
	}
	return StrategyHard
}

// Remove deletes an entity and returns an undo token. Rent invoices are not
// removable: their settlement history is append-only.
//
// Every lock the removal may need, for the entity and for the balances it
// re-derives, is acquired up front in the same sorted order the mutation
// pipeline uses. Nesting an acquisition under a held lock would invert the
// order against a concurrent pipeline dispatch and wedge both.
func (c *DeletionController) Remove(ctx context.Context, userID string, collection domain.Collection, id string) (*UndoToken, error) {
	ctx, span := deleteTracer.Start(ctx, "DeletionController.Remove")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", string(collection)),
		attribute.String("entity.id", id),
	)

	lockIDs, err := c.removalLockSet(ctx, userID, collection, id)
	if err != nil {
		return nil, err
	}
	unlock := c.balances.locks.lockAll(lockIDs)

	token := &UndoToken{
		ID:         uuid.New().String(),
		Collection: collection,
		EntityID:   id,
		Strategy:   c.StrategyFor(collection),
		userID:     userID,
		ctrl:       c,
	}

	var targets []BalanceTarget
	switch collection {
	case domain.CollectionIncomeSources:
		targets, err = c.removeIncomeSource(ctx, userID, id, token)
	case domain.CollectionExpenses:
		targets, err = c.removeExpense(ctx, userID, id, token)
	case domain.CollectionBankAccounts:
		targets, err = c.removeBankAccount(ctx, userID, id, token)
	case domain.CollectionTransactions:
		targets, err = c.removeTransaction(ctx, userID, id, token)
	}
	if err != nil {
		unlock()
		return nil, err
	}

	deferred := c.recomputeHeld(ctx, userID, lockIDs, targets)
	unlock()
	c.recomputeFree(ctx, userID, deferred)

	c.bus.Publish(domain.Event{
		Kind:       domain.EventDeleted,
		Collection: collection,
		EntityID:   id,
		UserID:     userID,
		At:         time.Now(),
	})
	return token, nil
}

// removalLockSet derives every entity id a removal may write or re-derive.
// The reads here are advisory: a dependent that appears between this scan
// and the critical section is re-derived after the locks are released.
func (c *DeletionController) removalLockSet(ctx context.Context, userID string, collection domain.Collection, id string) ([]string, error) {
	ids := []string{id}
	switch collection {
	case domain.CollectionIncomeSources:
		if c.StrategyFor(collection) == StrategyHard {
			deps, err := c.store.ListExpensesByIncomeSource(ctx, userID, id)
			if err != nil {
				return nil, err
			}
			for i := range deps {
				if ref := deps[i].BankAccountRef; ref != "" {
					ids = append(ids, ref)
				}
			}
		}
	case domain.CollectionExpenses:
		exp, err := c.store.GetExpense(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if exp.IncomeSourceRef != "" {
			ids = append(ids, exp.IncomeSourceRef)
		}
		if exp.BankAccountRef != "" {
			ids = append(ids, exp.BankAccountRef)
		}
	case domain.CollectionBankAccounts:
		// The account is its own only balance target.
	case domain.CollectionTransactions:
		tx, err := c.store.GetTransaction(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if tx.AccountRef != "" {
			ids = append(ids, tx.AccountRef)
		}
	default:
		return nil, &domain.ErrValidation{Field: "collection", Message: "collection does not support removal: " + string(collection)}
	}
	return ids, nil
}

// recomputeHeld re-derives targets whose locks the caller already holds.
// Targets outside the held set are returned for recomputation after the
// locks are released, so no lock is ever acquired under another.
func (c *DeletionController) recomputeHeld(ctx context.Context, userID string, heldIDs []string, targets []BalanceTarget) []BalanceTarget {
	held := make(map[string]bool, len(heldIDs))
	for _, id := range heldIDs {
		held[id] = true
	}

	var deferred []BalanceTarget
	for _, t := range targets {
		if !held[t.ID] {
			deferred = append(deferred, t)
			continue
		}
		if _, err := c.balances.recomputeLocked(ctx, userID, t.Kind, t.ID); err != nil {
			c.logger.Warn("post-removal recompute failed",
				zap.String("kind", string(t.Kind)),
				zap.String("id", t.ID),
				zap.Error(err),
			)
		}
	}
	return deferred
}

// recomputeFree re-derives targets with no locks held; each takes its own.
func (c *DeletionController) recomputeFree(ctx context.Context, userID string, targets []BalanceTarget) {
	for _, t := range targets {
		if _, err := c.balances.Recompute(ctx, userID, t.Kind, t.ID); err != nil {
			c.logger.Warn("post-removal recompute failed",
				zap.String("kind", string(t.Kind)),
				zap.String("id", t.ID),
				zap.Error(err),
			)
		}
	}
}

func (c *DeletionController) removeIncomeSource(ctx context.Context, userID, id string, token *UndoToken) ([]BalanceTarget, error) {
	src, err := c.store.GetIncomeSource(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	token.snapshot = src

	if token.Strategy == StrategySoft {
		if err := c.softDelete(ctx, userID, domain.CollectionIncomeSources, id); err != nil {
			return nil, err
		}
		if err := c.stampAfterDelete(ctx, userID, token); err != nil {
			return nil, err
		}
		return nil, nil
	}

	// Hard fallback: cascade-delete dependent expenses, then the row.
	// Cascaded expenses may have fed bank-account balances.
	deps, err := c.store.ListExpensesByIncomeSource(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	token.CascadedDependents = len(deps)
	seen := make(map[string]bool)
	var targets []BalanceTarget
	for i := range deps {
		ref := deps[i].BankAccountRef
		if ref != "" && !seen[ref] {
			seen[ref] = true
			targets = append(targets, BalanceTarget{Kind: BalanceBankAccount, ID: ref})
		}
	}

	if len(deps) > 0 {
		if err := c.store.DeleteExpensesByIncomeSource(ctx, userID, id); err != nil {
			return nil, &domain.ErrRemoteWrite{Operation: "cascade delete expenses", Err: err}
		}
		c.logger.Warn("hard delete cascaded dependent expenses; undo cannot restore them",
			zap.String("income_source_id", id),
			zap.Int("cascaded", len(deps)),
		)
	}
	if err := c.store.DeleteIncomeSource(ctx, userID, id); err != nil {
		return nil, &domain.ErrRemoteWrite{Operation: "delete income source", Err: err}
	}
	return targets, nil
}

func (c *DeletionController) removeExpense(ctx context.Context, userID, id string, token *UndoToken) ([]BalanceTarget, error) {
	exp, err := c.store.GetExpense(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	token.snapshot = exp
	targets := expenseTargets(exp.IncomeSourceRef, exp.BankAccountRef)

	if token.Strategy == StrategySoft {
		if err := c.softDelete(ctx, userID, domain.CollectionExpenses, id); err != nil {
			return nil, err
		}
		if err := c.stampAfterDelete(ctx, userID, token); err != nil {
			return nil, err
		}
		return targets, nil
	}

	if err := c.store.DeleteExpense(ctx, userID, id); err != nil {
		return nil, &domain.ErrRemoteWrite{Operation: "delete expense", Err: err}
	}
	return targets, nil
}

func (c *DeletionController) removeBankAccount(ctx context.Context, userID, id string, token *UndoToken) ([]BalanceTarget, error) {
	acc, err := c.store.GetBankAccount(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	token.snapshot = acc

	if token.Strategy == StrategySoft {
		if err := c.softDelete(ctx, userID, domain.CollectionBankAccounts, id); err != nil {
			return nil, err
		}
		if err := c.stampAfterDelete(ctx, userID, token); err != nil {
			return nil, err
		}
		return nil, nil
	}

	txs, err := c.store.ListTransactionsByAccount(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	token.CascadedDependents = len(txs)
	if len(txs) > 0 {
		if err := c.store.DeleteTransactionsByAccount(ctx, userID, id); err != nil {
			return nil, &domain.ErrRemoteWrite{Operation: "cascade delete transactions", Err: err}
		}
		c.logger.Warn("hard delete cascaded account transactions; undo cannot restore them",
			zap.String("bank_account_id", id),
			zap.Int("cascaded", len(txs)),
		)
	}
	if err := c.store.DeleteBankAccount(ctx, userID, id); err != nil {
		return nil, &domain.ErrRemoteWrite{Operation: "delete bank account", Err: err}
	}
	return nil, nil
}

func (c *DeletionController) removeTransaction(ctx context.Context, userID, id string, token *UndoToken) ([]BalanceTarget, error) {
	tx, err := c.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	token.snapshot = tx
	targets := []BalanceTarget{{Kind: BalanceBankAccount, ID: tx.AccountRef}}

	if token.Strategy == StrategySoft {
		if err := c.softDelete(ctx, userID, domain.CollectionTransactions, id); err != nil {
			return nil, err
		}
		if err := c.stampAfterDelete(ctx, userID, token); err != nil {
			return nil, err
		}
		return targets, nil
	}

	if err := c.store.DeleteTransaction(ctx, userID, id); err != nil {
		return nil, &domain.ErrRemoteWrite{Operation: "delete transaction", Err: err}
	}
	return targets, nil
}

// softDelete sets the deleted_at marker on one row.
func (c *DeletionController) softDelete(ctx context.Context, userID string, collection domain.Collection, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	updates := map[string]any{"deleted_at": now}

	var err error
	switch collection {
	case domain.CollectionIncomeSources:
		err = c.store.UpdateIncomeSource(ctx, userID, id, updates)
	case domain.CollectionExpenses:
		err = c.store.UpdateExpense(ctx, userID, id, updates)
	case domain.CollectionBankAccounts:
		err = c.store.UpdateBankAccount(ctx, userID, id, updates)
	case domain.CollectionTransactions:
		err = c.store.UpdateTransaction(ctx, userID, id, updates)
	}
	if err != nil {
		return &domain.ErrRemoteWrite{Operation: "soft delete " + string(collection), Err: err}
	}
	return nil
}

// stampAfterDelete records the row's updated_at right after the soft
// delete; Apply compares against it to detect intervening mutations.
func (c *DeletionController) stampAfterDelete(ctx context.Context, userID string, token *UndoToken) error {
	switch token.Collection {
	case domain.CollectionIncomeSources:
		row, err := c.store.GetIncomeSourceIncludingDeleted(ctx, userID, token.EntityID)
		if err != nil {
			return err
		}
		token.deletedStamp = row.UpdatedAt
	case domain.CollectionBankAccounts:
		row, err := c.store.GetBankAccountIncludingDeleted(ctx, userID, token.EntityID)
		if err != nil {
			return err
		}
		token.deletedStamp = row.UpdatedAt
	case domain.CollectionExpenses:
		row, err := c.store.GetExpenseIncludingDeleted(ctx, userID, token.EntityID)
		if err != nil {
			return err
		}
		token.deletedStamp = row.UpdatedAt
	case domain.CollectionTransactions:
		row, err := c.store.GetTransactionIncludingDeleted(ctx, userID, token.EntityID)
		if err != nil {
			return err
		}
		token.deletedStamp = row.UpdatedAt
	}
	return nil
}

// Apply restores the removed entity. Invoking a token after the entity was
// mutated again by another path fails with ErrStaleUndo rather than
// silently corrupting state; so does applying a token twice.
//
// Locks follow the same discipline as Remove: the full set up front, sorted,
// never nested. A hard-path re-insertion mints a fresh id nothing can
// contend on yet; its recompute runs after release under its own lock.
func (t *UndoToken) Apply(ctx context.Context) error {
	c := t.ctrl

	ctx, span := deleteTracer.Start(ctx, "UndoToken.Apply")
	defer span.End()
	span.SetAttributes(attribute.String("entity.id", t.EntityID))

	lockIDs := t.undoLockSet()
	unlock := c.balances.locks.lockAll(lockIDs)

	if t.applied {
		unlock()
		c.metrics.IncrUndo("stale")
		return &domain.ErrStaleUndo{Resource: string(t.Collection), ID: t.EntityID}
	}

	var (
		targets []BalanceTarget
		err     error
	)
	if t.Strategy == StrategySoft {
		targets, err = c.applySoftUndo(ctx, t)
	} else {
		targets, err = c.applyHardUndo(ctx, t)
	}
	if err != nil {
		unlock()
		var stale *domain.ErrStaleUndo
		if errors.As(err, &stale) {
			c.metrics.IncrUndo("stale")
		}
		return err
	}

	t.applied = true
	c.metrics.IncrUndo("applied")
	deferred := c.recomputeHeld(ctx, t.userID, lockIDs, targets)
	unlock()
	c.recomputeFree(ctx, t.userID, deferred)

	c.bus.Publish(domain.Event{
		Kind:       domain.EventRestored,
		Collection: t.Collection,
		EntityID:   t.restoredID(),
		UserID:     t.userID,
		At:         time.Now(),
	})
	return nil
}

// undoLockSet derives Apply's lock set from the token alone, with no store
// reads: the entity itself plus the parents its restore re-derives.
func (t *UndoToken) undoLockSet() []string {
	ids := []string{t.EntityID}
	switch snap := t.snapshot.(type) {
	case *domain.Expense:
		if snap.IncomeSourceRef != "" {
			ids = append(ids, snap.IncomeSourceRef)
		}
		if snap.BankAccountRef != "" {
			ids = append(ids, snap.BankAccountRef)
		}
	case *domain.LedgerTransaction:
		if snap.AccountRef != "" {
			ids = append(ids, snap.AccountRef)
		}
	}
	return ids
}

func (t *UndoToken) restoredID() string {
	if t.NewEntityID != "" {
		return t.NewEntityID
	}
	return t.EntityID
}

// applySoftUndo clears the deleted_at marker after verifying the row was
// not touched since deletion.
func (c *DeletionController) applySoftUndo(ctx context.Context, t *UndoToken) ([]BalanceTarget, error) {
	updates := map[string]any{"deleted_at": nil}

	switch t.Collection {
	case domain.CollectionIncomeSources:
		row, err := c.store.GetIncomeSourceIncludingDeleted(ctx, t.userID, t.EntityID)
		if err != nil {
			return nil, c.staleIfGone(err, t)
		}
		if row.DeletedAt == nil || !row.UpdatedAt.Equal(t.deletedStamp) {
			return nil, &domain.ErrStaleUndo{Resource: string(t.Collection), ID: t.EntityID}
		}
		if err := c.store.UpdateIncomeSource(ctx, t.userID, t.EntityID, updates); err != nil {
			return nil, &domain.ErrRemoteWrite{Operation: "restore income source", Err: err}
		}
		return []BalanceTarget{{Kind: BalanceIncomeSource, ID: t.EntityID}}, nil

	case domain.CollectionBankAccounts:
		row, err := c.store.GetBankAccountIncludingDeleted(ctx, t.userID, t.EntityID)
		if err != nil {
			return nil, c.staleIfGone(err, t)
		}
		if row.DeletedAt == nil || !row.UpdatedAt.Equal(t.deletedStamp) {
			return nil, &domain.ErrStaleUndo{Resource: string(t.Collection), ID: t.EntityID}
		}
		if err := c.store.UpdateBankAccount(ctx, t.userID, t.EntityID, updates); err != nil {
			return nil, &domain.ErrRemoteWrite{Operation: "restore bank account", Err: err}
		}
		return []BalanceTarget{{Kind: BalanceBankAccount, ID: t.EntityID}}, nil

	case domain.CollectionExpenses:
		// A PATCH matching zero rows succeeds on the wire, so a vanished or
		// already-restored row must be caught by re-reading it first.
		row, err := c.store.GetExpenseIncludingDeleted(ctx, t.userID, t.EntityID)
		if err != nil {
			return nil, c.staleIfGone(err, t)
		}
		if row.DeletedAt == nil || !row.UpdatedAt.Equal(t.deletedStamp) {
			return nil, &domain.ErrStaleUndo{Resource: string(t.Collection), ID: t.EntityID}
		}
		if err := c.store.UpdateExpense(ctx, t.userID, t.EntityID, updates); err != nil {
			return nil, &domain.ErrRemoteWrite{Operation: "restore expense", Err: err}
		}
		return expenseTargets(row.IncomeSourceRef, row.BankAccountRef), nil

	case domain.CollectionTransactions:
		row, err := c.store.GetTransactionIncludingDeleted(ctx, t.userID, t.EntityID)
		if err != nil {
			return nil, c.staleIfGone(err, t)
		}
		if row.DeletedAt == nil || !row.UpdatedAt.Equal(t.deletedStamp) {
			return nil, &domain.ErrStaleUndo{Resource: string(t.Collection), ID: t.EntityID}
		}
		if err := c.store.UpdateTransaction(ctx, t.userID, t.EntityID, updates); err != nil {
			return nil, &domain.ErrRemoteWrite{Operation: "restore transaction", Err: err}
		}
		return []BalanceTarget{{Kind: BalanceBankAccount, ID: row.AccountRef}}, nil
	}
	return nil, &domain.ErrValidation{Field: "collection", Message: "unsupported undo collection"}
}

// applyHardUndo re-inserts the pre-deletion snapshot. Cascaded dependents
// stay gone; the token says so instead of hiding it.
func (c *DeletionController) applyHardUndo(ctx context.Context, t *UndoToken) ([]BalanceTarget, error) {
	switch t.Collection {
	case domain.CollectionIncomeSources:
		if _, err := c.store.GetIncomeSource(ctx, t.userID, t.EntityID); err == nil {
			// Something re-occupied the id; the token no longer describes
			// reality.
			return nil, &domain.ErrStaleUndo{Resource: string(t.Collection), ID: t.EntityID}
		}
		src := t.snapshot.(*domain.IncomeSource)
		restored, err := c.store.CreateIncomeSource(ctx, t.userID, src)
		if err != nil {
			return nil, &domain.ErrRemoteWrite{Operation: "reinsert income source", Err: err}
		}
		t.NewEntityID = restored.ID
		t.RestoredDependents = t.CascadedDependents == 0
		if !t.RestoredDependents {
			c.logger.Warn("undo restored income source without its cascaded expenses",
				zap.String("income_source_id", restored.ID),
				zap.Int("lost", t.CascadedDependents),
			)
		}
		return []BalanceTarget{{Kind: BalanceIncomeSource, ID: restored.ID}}, nil

	case domain.CollectionExpenses:
		exp := t.snapshot.(*domain.Expense)
		restored, err := c.store.CreateExpense(ctx, t.userID, exp)
		if err != nil {
			return nil, &domain.ErrRemoteWrite{Operation: "reinsert expense", Err: err}
		}
		t.NewEntityID = restored.ID
		t.RestoredDependents = true
		return expenseTargets(exp.IncomeSourceRef, exp.BankAccountRef), nil

	case domain.CollectionBankAccounts:
		if _, err := c.store.GetBankAccount(ctx, t.userID, t.EntityID); err == nil {
			return nil, &domain.ErrStaleUndo{Resource: string(t.Collection), ID: t.EntityID}
		}
		acc := t.snapshot.(*domain.BankAccount)
		restored, err := c.store.CreateBankAccount(ctx, t.userID, acc)
		if err != nil {
			return nil, &domain.ErrRemoteWrite{Operation: "reinsert bank account", Err: err}
		}
		t.NewEntityID = restored.ID
		t.RestoredDependents = t.CascadedDependents == 0
		return []BalanceTarget{{Kind: BalanceBankAccount, ID: restored.ID}}, nil

	case domain.CollectionTransactions:
		tx := t.snapshot.(*domain.LedgerTransaction)
		restored, err := c.store.CreateTransaction(ctx, t.userID, tx)
		if err != nil {
			return nil, &domain.ErrRemoteWrite{Operation: "reinsert transaction", Err: err}
		}
		t.NewEntityID = restored.ID
		t.RestoredDependents = true
		return []BalanceTarget{{Kind: BalanceBankAccount, ID: tx.AccountRef}}, nil
	}
	return nil, &domain.ErrValidation{Field: "collection", Message: "unsupported undo collection"}
}

// staleIfGone converts a vanished row into a stale-undo error.
func (c *DeletionController) staleIfGone(err error, t *UndoToken) error {
	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		return &domain.ErrStaleUndo{Resource: string(t.Collection), ID: t.EntityID}
	}
	return err
}
