package domain

import "time"

// ============================================================
// Entity lifecycle events
// ============================================================

// Lifecycle event kinds broadcast to dependent views so aggregates
// re-render. Fire-and-forget notifications, not acknowledged messages.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventDeleted  = "deleted"
	EventRestored = "restored"
)

// Collection names entity collections in the backing store.
type Collection string

const (
	CollectionIncomeSources Collection = "income_sources"
	CollectionExpenses      Collection = "expenses"
	CollectionBankAccounts  Collection = "bank_accounts"
	CollectionTransactions  Collection = "bank_transactions"
	CollectionRentInvoices  Collection = "rent_invoices"
	CollectionSettlements   Collection = "rent_settlements"
)

// Event is a lifecycle notification for one entity.
type Event struct {
	Kind       string     `json:"kind"`
	Collection Collection `json:"collection"`
	EntityID   string     `json:"entity_id"`
	UserID     string     `json:"user_id"`
	At         time.Time  `json:"at"`
}
