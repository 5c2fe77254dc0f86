package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
)

// ============================================================
// Expenses
// ============================================================

func (c *Client) CreateExpense(ctx context.Context, userID string, exp *domain.Expense) (*domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.CreateExpense")
	defer span.End()

	row := map[string]any{
		"user_id":     userID,
		"label":       exp.Label,
		"amount":      exp.Amount,
		"date":        exp.Date,
		"description": exp.Description,
		"category":    exp.Category,
	}
	// Weak references: omitted entirely when unset so the columns stay NULL.
	if exp.IncomeSourceRef != "" {
		row["income_source_ref"] = exp.IncomeSourceRef
	}
	if exp.BankAccountRef != "" {
		row["bank_account_ref"] = exp.BankAccountRef
	}
	if exp.ReceiptRef != "" {
		row["receipt_ref"] = exp.ReceiptRef
	}

	body, err := c.doPost(ctx, domain.CollectionExpenses, row)
	if err != nil {
		return nil, err
	}
	created, err := firstRow[domain.Expense](body)
	if err != nil {
		return nil, fmt.Errorf("decode expense: %w", err)
	}
	if created == nil {
		return nil, fmt.Errorf("expense insert returned no representation")
	}
	return created, nil
}

func (c *Client) GetExpense(ctx context.Context, userID, id string) (*domain.Expense, error) {
	return c.getExpense(ctx, userID, id, false)
}

// GetExpenseIncludingDeleted bypasses the soft-delete filter; the undo path
// needs to see the marked row to tell a restorable one from a vanished one.
func (c *Client) GetExpenseIncludingDeleted(ctx context.Context, userID, id string) (*domain.Expense, error) {
	return c.getExpense(ctx, userID, id, true)
}

func (c *Client) getExpense(ctx context.Context, userID, id string, includeDeleted bool) (*domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.GetExpense")
	defer span.End()

	path := fmt.Sprintf("expenses?user_id=eq.%s&id=eq.%s&limit=1", userID, id)
	if !includeDeleted {
		path += c.aliveFilter(domain.CollectionExpenses)
	}
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	row, err := firstRow[domain.Expense](body)
	if err != nil {
		return nil, fmt.Errorf("decode expense: %w", err)
	}
	if row == nil {
		return nil, &domain.ErrNotFound{Resource: "expense", ID: id}
	}
	return row, nil
}

func (c *Client) ListExpenses(ctx context.Context, userID string) ([]domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListExpenses")
	defer span.End()

	path := fmt.Sprintf("expenses?user_id=eq.%s&order=date.desc%s", userID, c.aliveFilter(domain.CollectionExpenses))
	return c.listExpenses(ctx, path)
}

func (c *Client) ListExpensesByIncomeSource(ctx context.Context, userID, incomeSourceID string) ([]domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListExpensesByIncomeSource")
	defer span.End()

	path := fmt.Sprintf("expenses?user_id=eq.%s&income_source_ref=eq.%s%s", userID, incomeSourceID, c.aliveFilter(domain.CollectionExpenses))
	return c.listExpenses(ctx, path)
}

func (c *Client) listExpenses(ctx context.Context, path string) ([]domain.Expense, error) {
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Expense
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode expenses: %w", err)
	}
	return rows, nil
}

func (c *Client) UpdateExpense(ctx context.Context, userID, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Postgrest.UpdateExpense")
	defer span.End()

	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	path := fmt.Sprintf("expenses?user_id=eq.%s&id=eq.%s", userID, id)
	return c.doPatch(ctx, path, updates)
}

func (c *Client) DeleteExpense(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.DeleteExpense")
	defer span.End()

	path := fmt.Sprintf("expenses?user_id=eq.%s&id=eq.%s", userID, id)
	return c.doDelete(ctx, path)
}

// DeleteExpensesByIncomeSource physically removes every expense referencing
// an income source. Only the hard-delete fallback path cascades like this.
func (c *Client) DeleteExpensesByIncomeSource(ctx context.Context, userID, incomeSourceID string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.DeleteExpensesByIncomeSource")
	defer span.End()

	path := fmt.Sprintf("expenses?user_id=eq.%s&income_source_ref=eq.%s", userID, incomeSourceID)
	return c.doDelete(ctx, path)
}
