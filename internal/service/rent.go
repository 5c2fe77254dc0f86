package service

import (
	"context"
	"time"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/infra/observability"
	"github.com/eddostedson/eddo-budg-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var rentTracer = otel.Tracer("service/rent")

// Allocation is the result of applying a payment against a rent invoice.
type Allocation struct {
	Settlement *domain.RentSettlement `json:"settlement"`
	Invoice    *domain.RentInvoice    `json:"invoice"`
}

// RentService manages rent invoices and applies (possibly partial) payments
// against them.
type RentService struct {
	store    port.LedgerStore
	balances *BalanceService
	bus      port.EventPublisher
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewRentService creates a rent service.
func NewRentService(store port.LedgerStore, balances *BalanceService, bus port.EventPublisher, metrics *observability.Metrics, logger *zap.Logger) *RentService {
	return &RentService{store: store, balances: balances, bus: bus, metrics: metrics, logger: logger}
}

// CreateInvoice creates a rent invoice for one tenant and period.
func (s *RentService) CreateInvoice(ctx context.Context, userID string, draft *domain.RentInvoiceDraft) (*domain.RentInvoice, error) {
	ctx, span := rentTracer.Start(ctx, "RentService.CreateInvoice")
	defer span.End()

	if draft.TenantName == "" {
		return nil, &domain.ErrValidation{Field: "tenant_name", Message: "tenant name is required"}
	}
	if draft.Month < 1 || draft.Month > 12 {
		return nil, &domain.ErrValidation{Field: "month", Message: "month must be between 1 and 12"}
	}
	if !draft.TotalAmount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "total_amount", Message: "total amount must be positive"}
	}

	inv, err := s.store.CreateRentInvoice(ctx, userID, &domain.RentInvoice{
		TenantName:  draft.TenantName,
		VillaRef:    draft.VillaRef,
		Month:       draft.Month,
		Year:        draft.Year,
		TotalAmount: draft.TotalAmount,
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(domain.Event{
		Kind:       domain.EventCreated,
		Collection: domain.CollectionRentInvoices,
		EntityID:   inv.ID,
		UserID:     userID,
		At:         time.Now(),
	})
	return inv, nil
}

// GetInvoice returns one rent invoice.
func (s *RentService) GetInvoice(ctx context.Context, userID, id string) (*domain.RentInvoice, error) {
	ctx, span := rentTracer.Start(ctx, "RentService.GetInvoice")
	defer span.End()

	return s.store.GetRentInvoice(ctx, userID, id)
}

// ListInvoices returns all non-deleted rent invoices.
func (s *RentService) ListInvoices(ctx context.Context, userID string) ([]domain.RentInvoice, error) {
	ctx, span := rentTracer.Start(ctx, "RentService.ListInvoices")
	defer span.End()

	return s.store.ListRentInvoices(ctx, userID)
}

// ListSettlements returns the settlement history for one invoice.
func (s *RentService) ListSettlements(ctx context.Context, userID, invoiceID string) ([]domain.RentSettlement, error) {
	ctx, span := rentTracer.Start(ctx, "RentService.ListSettlements")
	defer span.End()

	return s.store.ListRentSettlements(ctx, userID, invoiceID)
}

// Allocate applies a payment against an invoice: the applied amount is
// min(requested, remaining), and the excess is silently discarded: not
// carried forward, not refunded. A settlement on an already-settled
// invoice is accepted but allocates zero. The settlement snapshot is
// appended before the invoice is updated, and the whole sequence runs under
// the invoice's entity lock.
func (s *RentService) Allocate(ctx context.Context, userID, invoiceID string, requested decimal.Decimal, linkedTransactionRef string) (*Allocation, error) {
	ctx, span := rentTracer.Start(ctx, "RentService.Allocate")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", invoiceID))

	if !requested.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "settlement amount must be positive"}
	}

	lock := s.balances.locks.forID(invoiceID)
	lock.Lock()
	defer lock.Unlock()

	inv, err := s.store.GetRentInvoice(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}

	remaining := inv.RemainingAmount
	applied := decimal.Min(requested, remaining)
	newRemaining := remaining.Sub(applied)

	if requested.GreaterThan(applied) {
		s.logger.Debug("settlement overpayment discarded",
			zap.String("invoice_id", invoiceID),
			zap.String("requested", requested.String()),
			zap.String("applied", applied.String()),
		)
	}

	settlement := &domain.RentSettlement{
		ID:                   uuid.New().String(),
		InvoiceRef:           invoiceID,
		Amount:               applied,
		BalanceAfter:         newRemaining,
		LinkedTransactionRef: linkedTransactionRef,
		Timestamp:            time.Now().UTC(),
	}

	created, err := s.store.CreateRentSettlement(ctx, userID, settlement)
	if err != nil {
		return nil, &domain.ErrRemoteWrite{Operation: "rent settlement", Err: err}
	}

	var status string
	if newRemaining.IsZero() {
		status = domain.RentStatusSettled
	} else {
		status = domain.RentStatusPartial
	}

	if err := s.store.UpdateRentInvoice(ctx, userID, invoiceID, map[string]any{
		"remaining_amount": newRemaining,
		"status":           status,
	}); err != nil {
		// The settlement row is durable but the invoice update is not.
		// Re-derive from history rather than leaving the cached column stale.
		s.logger.Warn("invoice update failed after settlement append; recomputing",
			zap.String("invoice_id", invoiceID),
			zap.Error(err),
		)
		if _, rerr := s.balances.recomputeLocked(ctx, userID, BalanceRentInvoice, invoiceID); rerr != nil {
			return nil, &domain.ErrRemoteWrite{Operation: "rent invoice update", Err: err}
		}
	}

	inv.RemainingAmount = newRemaining
	inv.Status = status

	s.metrics.IncrMutation(string(domain.CollectionSettlements), "committed")
	s.bus.Publish(domain.Event{
		Kind:       domain.EventUpdated,
		Collection: domain.CollectionRentInvoices,
		EntityID:   invoiceID,
		UserID:     userID,
		At:         time.Now(),
	})

	return &Allocation{Settlement: created, Invoice: inv}, nil
}
