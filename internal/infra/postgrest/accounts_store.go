package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
)

// ============================================================
// Bank accounts & ledger transactions
// ============================================================

func (c *Client) CreateBankAccount(ctx context.Context, userID string, acc *domain.BankAccount) (*domain.BankAccount, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.CreateBankAccount")
	defer span.End()

	row := map[string]any{
		"user_id":            userID,
		"name":               acc.Name,
		"bank_name":          acc.BankName,
		"account_type":       acc.AccountType,
		"initial_balance":    acc.InitialBalance,
		"current_balance":    acc.InitialBalance, // no transactions yet
		"exclude_from_total": acc.ExcludeFromTotal,
		"active":             true,
	}

	body, err := c.doPost(ctx, domain.CollectionBankAccounts, row)
	if err != nil {
		return nil, err
	}
	created, err := firstRow[domain.BankAccount](body)
	if err != nil {
		return nil, fmt.Errorf("decode bank account: %w", err)
	}
	if created == nil {
		return nil, fmt.Errorf("bank account insert returned no representation")
	}
	return created, nil
}

func (c *Client) GetBankAccount(ctx context.Context, userID, id string) (*domain.BankAccount, error) {
	return c.getBankAccount(ctx, userID, id, false)
}

// GetBankAccountIncludingDeleted bypasses the soft-delete filter for undo
// handling.
func (c *Client) GetBankAccountIncludingDeleted(ctx context.Context, userID, id string) (*domain.BankAccount, error) {
	return c.getBankAccount(ctx, userID, id, true)
}

func (c *Client) getBankAccount(ctx context.Context, userID, id string, includeDeleted bool) (*domain.BankAccount, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.GetBankAccount")
	defer span.End()

	path := fmt.Sprintf("bank_accounts?user_id=eq.%s&id=eq.%s&limit=1", userID, id)
	if !includeDeleted {
		path += c.aliveFilter(domain.CollectionBankAccounts)
	}
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	row, err := firstRow[domain.BankAccount](body)
	if err != nil {
		return nil, fmt.Errorf("decode bank account: %w", err)
	}
	if row == nil {
		return nil, &domain.ErrNotFound{Resource: "bank_account", ID: id}
	}
	return row, nil
}

func (c *Client) ListBankAccounts(ctx context.Context, userID string) ([]domain.BankAccount, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListBankAccounts")
	defer span.End()

	path := fmt.Sprintf("bank_accounts?user_id=eq.%s&order=created_at.asc%s", userID, c.aliveFilter(domain.CollectionBankAccounts))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.BankAccount
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode bank accounts: %w", err)
	}
	return rows, nil
}

func (c *Client) UpdateBankAccount(ctx context.Context, userID, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Postgrest.UpdateBankAccount")
	defer span.End()

	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	path := fmt.Sprintf("bank_accounts?user_id=eq.%s&id=eq.%s", userID, id)
	return c.doPatch(ctx, path, updates)
}

func (c *Client) DeleteBankAccount(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.DeleteBankAccount")
	defer span.End()

	path := fmt.Sprintf("bank_accounts?user_id=eq.%s&id=eq.%s", userID, id)
	return c.doDelete(ctx, path)
}

// --- Ledger transactions ---

func (c *Client) CreateTransaction(ctx context.Context, userID string, tx *domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.CreateTransaction")
	defer span.End()

	row := map[string]any{
		"user_id":     userID,
		"account_ref": tx.AccountRef,
		"kind":        tx.Kind,
		"amount":      tx.Amount,
		"label":       tx.Label,
		"description": tx.Description,
		"reference":   tx.Reference,
		"category":    tx.Category,
	}

	body, err := c.doPost(ctx, domain.CollectionTransactions, row)
	if err != nil {
		return nil, err
	}
	created, err := firstRow[domain.LedgerTransaction](body)
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if created == nil {
		return nil, fmt.Errorf("transaction insert returned no representation")
	}
	return created, nil
}

func (c *Client) GetTransaction(ctx context.Context, userID, id string) (*domain.LedgerTransaction, error) {
	return c.getTransaction(ctx, userID, id, false)
}

// GetTransactionIncludingDeleted bypasses the soft-delete filter for undo
// handling.
func (c *Client) GetTransactionIncludingDeleted(ctx context.Context, userID, id string) (*domain.LedgerTransaction, error) {
	return c.getTransaction(ctx, userID, id, true)
}

func (c *Client) getTransaction(ctx context.Context, userID, id string, includeDeleted bool) (*domain.LedgerTransaction, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.GetTransaction")
	defer span.End()

	path := fmt.Sprintf("bank_transactions?user_id=eq.%s&id=eq.%s&limit=1", userID, id)
	if !includeDeleted {
		path += c.aliveFilter(domain.CollectionTransactions)
	}
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	row, err := firstRow[domain.LedgerTransaction](body)
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if row == nil {
		return nil, &domain.ErrNotFound{Resource: "bank_transaction", ID: id}
	}
	return row, nil
}

func (c *Client) ListTransactionsByAccount(ctx context.Context, userID, accountID string) ([]domain.LedgerTransaction, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListTransactionsByAccount")
	defer span.End()

	path := fmt.Sprintf("bank_transactions?user_id=eq.%s&account_ref=eq.%s&order=timestamp.desc%s", userID, accountID, c.aliveFilter(domain.CollectionTransactions))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.LedgerTransaction
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return rows, nil
}

func (c *Client) UpdateTransaction(ctx context.Context, userID, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Postgrest.UpdateTransaction")
	defer span.End()

	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	path := fmt.Sprintf("bank_transactions?user_id=eq.%s&id=eq.%s", userID, id)
	return c.doPatch(ctx, path, updates)
}

func (c *Client) DeleteTransaction(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.DeleteTransaction")
	defer span.End()

	path := fmt.Sprintf("bank_transactions?user_id=eq.%s&id=eq.%s", userID, id)
	return c.doDelete(ctx, path)
}

// DeleteTransactionsByAccount physically removes every transaction on an
// account. Only the hard-delete fallback path cascades like this.
func (c *Client) DeleteTransactionsByAccount(ctx context.Context, userID, accountID string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.DeleteTransactionsByAccount")
	defer span.End()

	path := fmt.Sprintf("bank_transactions?user_id=eq.%s&account_ref=eq.%s", userID, accountID)
	return c.doDelete(ctx, path)
}
