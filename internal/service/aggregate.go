package service

import (
	"context"
	"strings"
	"sync"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/infra/observability"
	"github.com/eddostedson/eddo-budg-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var aggTracer = otel.Tracer("service/aggregate")

// transferCategories and transferMarkers drive the heuristic that spots
// movements between the user's own accounts. There is no structural
// transfer record in the store, so classification goes by category and
// label and stays approximate.
var transferCategories = map[string]bool{
	"transfer":          true,
	"internal_transfer": true,
	"virement":          true,
	"virement_interne":  true,
}

var transferMarkers = []string{"transfer", "virement"}

// AggregationService computes cross-account totals. Results are cached with
// a short TTL and invalidated by entity lifecycle events.
type AggregationService struct {
	store   port.LedgerStore
	cache   port.Cache[decimal.Decimal]
	metrics *observability.Metrics
	logger  *zap.Logger

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewAggregationService creates an aggregation service. When events is
// non-nil, a background goroutine invalidates cached totals on every
// account or transaction lifecycle event.
func NewAggregationService(store port.LedgerStore, cache port.Cache[decimal.Decimal], events <-chan domain.Event, metrics *observability.Metrics, logger *zap.Logger) *AggregationService {
	s := &AggregationService{
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		closeCh: make(chan struct{}),
	}
	if events != nil {
		go s.invalidate(events)
	}
	return s
}

// Close stops the invalidation goroutine.
func (s *AggregationService) Close() {
	s.closeOnce.Do(func() { close(s.closeCh) })
}

func (s *AggregationService) invalidate(events <-chan domain.Event) {
	for {
		select {
		case <-s.closeCh:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Collection {
			case domain.CollectionBankAccounts, domain.CollectionTransactions:
				s.cache.Delete(totalKey(ev.UserID, true))
				s.cache.Delete(totalKey(ev.UserID, false))
			}
		}
	}
}

func totalKey(userID string, excludeOptedOut bool) string {
	if excludeOptedOut {
		return "total:" + userID + ":opted"
	}
	return "total:" + userID + ":all"
}

// TotalBalance sums current balances over active, non-deleted accounts,
// optionally skipping accounts flagged exclude_from_total.
func (s *AggregationService) TotalBalance(ctx context.Context, userID string, excludeOptedOut bool) (decimal.Decimal, error) {
	ctx, span := aggTracer.Start(ctx, "AggregationService.TotalBalance")
	defer span.End()

	key := totalKey(userID, excludeOptedOut)
	if v, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("totals")
		return v, nil
	}
	s.metrics.IncrCacheMiss("totals")

	accounts, err := s.store.ListBankAccounts(ctx, userID)
	if err != nil {
		return decimal.Zero, &domain.ErrStoreUnavailable{Err: err}
	}

	total := decimal.Zero
	for i := range accounts {
		acc := &accounts[i]
		if !acc.Active || acc.Deleted() {
			continue
		}
		if excludeOptedOut && acc.ExcludeFromTotal {
			continue
		}
		total = total.Add(acc.CurrentBalance)
	}

	s.cache.Set(key, total)
	return total, nil
}

// NetExternalFlow computes gross credits minus the transfer-classified
// subset, so money moved between the user's own accounts is not
// double-counted as income.
func (s *AggregationService) NetExternalFlow(ctx context.Context, userID string) (decimal.Decimal, error) {
	ctx, span := aggTracer.Start(ctx, "AggregationService.NetExternalFlow")
	defer span.End()

	accounts, err := s.store.ListBankAccounts(ctx, userID)
	if err != nil {
		return decimal.Zero, &domain.ErrStoreUnavailable{Err: err}
	}

	var mu sync.Mutex
	flow := decimal.Zero

	g, ctx := errgroup.WithContext(ctx)
	for i := range accounts {
		acc := &accounts[i]
		if !acc.Active || acc.Deleted() {
			continue
		}
		g.Go(func() error {
			txs, err := s.store.ListTransactionsByAccount(ctx, userID, acc.ID)
			if err != nil {
				return &domain.ErrStoreUnavailable{Err: err}
			}
			sub := decimal.Zero
			for j := range txs {
				tx := &txs[j]
				if tx.Deleted() || tx.Kind != domain.TransactionCredit {
					continue
				}
				if isInternalTransfer(tx.Category, tx.Label) {
					continue
				}
				sub = sub.Add(tx.Amount)
			}
			mu.Lock()
			flow = flow.Add(sub)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return decimal.Zero, err
	}
	return flow, nil
}

// isInternalTransfer classifies a credit as a movement between the user's
// own accounts.
func isInternalTransfer(category, label string) bool {
	if transferCategories[strings.ToLower(strings.TrimSpace(category))] {
		return true
	}
	lower := strings.ToLower(label)
	for _, marker := range transferMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
