package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
)

// ============================================================
// Income sources
// ============================================================

func (c *Client) CreateIncomeSource(ctx context.Context, userID string, src *domain.IncomeSource) (*domain.IncomeSource, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.CreateIncomeSource")
	defer span.End()

	row := map[string]any{
		"user_id":           userID,
		"label":             src.Label,
		"amount":            src.OriginalAmount,
		"available_balance": src.OriginalAmount, // no expenses yet
		"description":       src.Description,
		"received_date":     src.ReceivedDate,
		"status":            src.Status,
		"receipt_ref":       src.ReceiptRef,
	}

	body, err := c.doPost(ctx, domain.CollectionIncomeSources, row)
	if err != nil {
		return nil, err
	}
	created, err := firstRow[domain.IncomeSource](body)
	if err != nil {
		return nil, fmt.Errorf("decode income source: %w", err)
	}
	if created == nil {
		return nil, fmt.Errorf("income source insert returned no representation")
	}
	return created, nil
}

func (c *Client) GetIncomeSource(ctx context.Context, userID, id string) (*domain.IncomeSource, error) {
	return c.getIncomeSource(ctx, userID, id, false)
}

// GetIncomeSourceIncludingDeleted bypasses the soft-delete filter; the undo
// controller needs to see rows that are currently invisible to aggregates.
func (c *Client) GetIncomeSourceIncludingDeleted(ctx context.Context, userID, id string) (*domain.IncomeSource, error) {
	return c.getIncomeSource(ctx, userID, id, true)
}

func (c *Client) getIncomeSource(ctx context.Context, userID, id string, includeDeleted bool) (*domain.IncomeSource, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.GetIncomeSource")
	defer span.End()

	path := fmt.Sprintf("income_sources?user_id=eq.%s&id=eq.%s&limit=1", userID, id)
	if !includeDeleted {
		path += c.aliveFilter(domain.CollectionIncomeSources)
	}
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	row, err := firstRow[domain.IncomeSource](body)
	if err != nil {
		return nil, fmt.Errorf("decode income source: %w", err)
	}
	if row == nil {
		return nil, &domain.ErrNotFound{Resource: "income_source", ID: id}
	}
	return row, nil
}

func (c *Client) ListIncomeSources(ctx context.Context, userID string) ([]domain.IncomeSource, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListIncomeSources")
	defer span.End()

	path := fmt.Sprintf("income_sources?user_id=eq.%s&order=received_date.desc%s", userID, c.aliveFilter(domain.CollectionIncomeSources))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.IncomeSource
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode income sources: %w", err)
	}
	return rows, nil
}

func (c *Client) UpdateIncomeSource(ctx context.Context, userID, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Postgrest.UpdateIncomeSource")
	defer span.End()

	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	path := fmt.Sprintf("income_sources?user_id=eq.%s&id=eq.%s", userID, id)
	return c.doPatch(ctx, path, updates)
}

func (c *Client) DeleteIncomeSource(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.DeleteIncomeSource")
	defer span.End()

	path := fmt.Sprintf("income_sources?user_id=eq.%s&id=eq.%s", userID, id)
	return c.doDelete(ctx, path)
}
