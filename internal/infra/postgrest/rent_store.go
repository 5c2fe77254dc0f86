package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
)

// ============================================================
// Rent invoices & settlements
// ============================================================

func (c *Client) CreateRentInvoice(ctx context.Context, userID string, inv *domain.RentInvoice) (*domain.RentInvoice, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.CreateRentInvoice")
	defer span.End()

	row := map[string]any{
		"user_id":          userID,
		"tenant_name":      inv.TenantName,
		"month":            inv.Month,
		"year":             inv.Year,
		"total_amount":     inv.TotalAmount,
		"remaining_amount": inv.TotalAmount, // nothing settled yet
		"status":           domain.RentStatusInProgress,
	}
	if inv.VillaRef != "" {
		row["villa_ref"] = inv.VillaRef
	}

	body, err := c.doPost(ctx, domain.CollectionRentInvoices, row)
	if err != nil {
		return nil, err
	}
	created, err := firstRow[domain.RentInvoice](body)
	if err != nil {
		return nil, fmt.Errorf("decode rent invoice: %w", err)
	}
	if created == nil {
		return nil, fmt.Errorf("rent invoice insert returned no representation")
	}
	return created, nil
}

func (c *Client) GetRentInvoice(ctx context.Context, userID, id string) (*domain.RentInvoice, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.GetRentInvoice")
	defer span.End()

	path := fmt.Sprintf("rent_invoices?user_id=eq.%s&id=eq.%s&limit=1%s", userID, id, c.aliveFilter(domain.CollectionRentInvoices))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	row, err := firstRow[domain.RentInvoice](body)
	if err != nil {
		return nil, fmt.Errorf("decode rent invoice: %w", err)
	}
	if row == nil {
		return nil, &domain.ErrNotFound{Resource: "rent_invoice", ID: id}
	}
	return row, nil
}

func (c *Client) ListRentInvoices(ctx context.Context, userID string) ([]domain.RentInvoice, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListRentInvoices")
	defer span.End()

	path := fmt.Sprintf("rent_invoices?user_id=eq.%s&order=year.desc,month.desc%s", userID, c.aliveFilter(domain.CollectionRentInvoices))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.RentInvoice
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode rent invoices: %w", err)
	}
	return rows, nil
}

func (c *Client) UpdateRentInvoice(ctx context.Context, userID, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Postgrest.UpdateRentInvoice")
	defer span.End()

	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	path := fmt.Sprintf("rent_invoices?user_id=eq.%s&id=eq.%s", userID, id)
	return c.doPatch(ctx, path, updates)
}

// CreateRentSettlement appends an immutable settlement snapshot. There is no
// corresponding update or delete: settlement rows are history.
func (c *Client) CreateRentSettlement(ctx context.Context, userID string, st *domain.RentSettlement) (*domain.RentSettlement, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.CreateRentSettlement")
	defer span.End()

	row := map[string]any{
		"id":            st.ID,
		"user_id":       userID,
		"invoice_ref":   st.InvoiceRef,
		"amount":        st.Amount,
		"balance_after": st.BalanceAfter,
		"timestamp":     st.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if st.LinkedTransactionRef != "" {
		row["linked_transaction_ref"] = st.LinkedTransactionRef
	}

	body, err := c.doPost(ctx, domain.CollectionSettlements, row)
	if err != nil {
		return nil, err
	}
	created, err := firstRow[domain.RentSettlement](body)
	if err != nil {
		return nil, fmt.Errorf("decode rent settlement: %w", err)
	}
	if created == nil {
		return nil, fmt.Errorf("rent settlement insert returned no representation")
	}
	return created, nil
}

func (c *Client) ListRentSettlements(ctx context.Context, userID, invoiceID string) ([]domain.RentSettlement, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListRentSettlements")
	defer span.End()

	path := fmt.Sprintf("rent_settlements?user_id=eq.%s&invoice_ref=eq.%s&order=timestamp.asc", userID, invoiceID)
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.RentSettlement
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode rent settlements: %w", err)
	}
	return rows, nil
}
