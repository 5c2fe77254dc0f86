package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eddostedson/eddo-budg-go/internal/domain"

	"github.com/shopspring/decimal"
)

// --- Mocks ---

// mockStore is an in-memory LedgerStore. It mirrors the backing store's
// observable behavior: minted ids, updated_at bumps on every update,
// soft-deleted rows filtered out of plain reads, and updates that match
// zero rows reporting success the way a PATCH does on the wire.
type mockStore struct {
	mu  sync.Mutex
	seq int

	incomes     map[string]*domain.IncomeSource
	expenses    map[string]*domain.Expense
	accounts    map[string]*domain.BankAccount
	txs         map[string]*domain.LedgerTransaction
	invoices    map[string]*domain.RentInvoice
	settlements map[string][]domain.RentSettlement

	// failures maps an operation name to an error injected on its next call.
	failures map[string]error
	// blocks maps an operation name to a gate the call waits on, so tests
	// can observe in-flight state deterministically.
	blocks map[string]chan struct{}
}

func newMockStore() *mockStore {
	return &mockStore{
		incomes:     make(map[string]*domain.IncomeSource),
		expenses:    make(map[string]*domain.Expense),
		accounts:    make(map[string]*domain.BankAccount),
		txs:         make(map[string]*domain.LedgerTransaction),
		invoices:    make(map[string]*domain.RentInvoice),
		settlements: make(map[string][]domain.RentSettlement),
		failures:    make(map[string]error),
		blocks:      make(map[string]chan struct{}),
	}
}

// blockOn parks the named operation until the returned release func runs.
func (m *mockStore) blockOn(op string) func() {
	ch := make(chan struct{})
	m.mu.Lock()
	m.blocks[op] = ch
	m.mu.Unlock()
	return func() { close(ch) }
}

func (m *mockStore) waitBlock(op string) {
	m.mu.Lock()
	ch := m.blocks[op]
	m.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

func (m *mockStore) failOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

func (m *mockStore) checkFail(op string) error {
	if err, ok := m.failures[op]; ok {
		return err
	}
	return nil
}

func (m *mockStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

// --- Income sources ---

func (m *mockStore) CreateIncomeSource(_ context.Context, userID string, src *domain.IncomeSource) (*domain.IncomeSource, error) {
	m.waitBlock("CreateIncomeSource")
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("CreateIncomeSource"); err != nil {
		return nil, err
	}
	row := *src
	row.ID = m.nextID("inc")
	row.UserID = userID
	row.DeletedAt = nil
	row.CreatedAt = time.Now()
	row.UpdatedAt = time.Now()
	m.incomes[row.ID] = &row
	out := row
	return &out, nil
}

func (m *mockStore) GetIncomeSource(_ context.Context, userID, id string) (*domain.IncomeSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("GetIncomeSource"); err != nil {
		return nil, err
	}
	row, ok := m.incomes[id]
	if !ok || row.UserID != userID || row.Deleted() {
		return nil, &domain.ErrNotFound{Resource: "income_sources", ID: id}
	}
	out := *row
	return &out, nil
}

func (m *mockStore) GetIncomeSourceIncludingDeleted(_ context.Context, userID, id string) (*domain.IncomeSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.incomes[id]
	if !ok || row.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "income_sources", ID: id}
	}
	out := *row
	return &out, nil
}

func (m *mockStore) ListIncomeSources(_ context.Context, userID string) ([]domain.IncomeSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("ListIncomeSources"); err != nil {
		return nil, err
	}
	var out []domain.IncomeSource
	for _, row := range m.incomes {
		if row.UserID == userID && !row.Deleted() {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateIncomeSource(_ context.Context, userID, id string, updates map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("UpdateIncomeSource"); err != nil {
		return err
	}
	row, ok := m.incomes[id]
	if !ok || row.UserID != userID {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "label":
			row.Label = v.(string)
		case "amount":
			row.OriginalAmount = v.(decimal.Decimal)
		case "available_balance":
			row.AvailableBalance = v.(decimal.Decimal)
		case "description":
			row.Description = v.(string)
		case "received_date":
			row.ReceivedDate = v.(string)
		case "status":
			row.Status = v.(string)
		case "deleted_at":
			row.DeletedAt = parseDeletedAt(v)
		}
	}
	row.UpdatedAt = time.Now()
	return nil
}

func (m *mockStore) DeleteIncomeSource(_ context.Context, userID, id string) error {
	m.waitBlock("DeleteIncomeSource")
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("DeleteIncomeSource"); err != nil {
		return err
	}
	delete(m.incomes, id)
	return nil
}

// --- Expenses ---

func (m *mockStore) CreateExpense(_ context.Context, userID string, exp *domain.Expense) (*domain.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("CreateExpense"); err != nil {
		return nil, err
	}
	row := *exp
	row.ID = m.nextID("exp")
	row.UserID = userID
	row.DeletedAt = nil
	row.CreatedAt = time.Now()
	row.UpdatedAt = time.Now()
	m.expenses[row.ID] = &row
	out := row
	return &out, nil
}

func (m *mockStore) GetExpense(_ context.Context, userID, id string) (*domain.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("GetExpense"); err != nil {
		return nil, err
	}
	row, ok := m.expenses[id]
	if !ok || row.UserID != userID || row.Deleted() {
		return nil, &domain.ErrNotFound{Resource: "expenses", ID: id}
	}
	out := *row
	return &out, nil
}

func (m *mockStore) GetExpenseIncludingDeleted(_ context.Context, userID, id string) (*domain.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.expenses[id]
	if !ok || row.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "expenses", ID: id}
	}
	out := *row
	return &out, nil
}

func (m *mockStore) ListExpenses(_ context.Context, userID string) ([]domain.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Expense
	for _, row := range m.expenses {
		if row.UserID == userID && !row.Deleted() {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *mockStore) ListExpensesByIncomeSource(_ context.Context, userID, incomeSourceID string) ([]domain.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("ListExpensesByIncomeSource"); err != nil {
		return nil, err
	}
	var out []domain.Expense
	for _, row := range m.expenses {
		if row.UserID == userID && row.IncomeSourceRef == incomeSourceID && !row.Deleted() {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateExpense(_ context.Context, userID, id string, updates map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("UpdateExpense"); err != nil {
		return err
	}
	row, ok := m.expenses[id]
	if !ok || row.UserID != userID {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "label":
			row.Label = v.(string)
		case "amount":
			row.Amount = v.(decimal.Decimal)
		case "date":
			row.Date = v.(string)
		case "description":
			row.Description = v.(string)
		case "category":
			row.Category = v.(string)
		case "income_source_ref":
			row.IncomeSourceRef = refString(v)
		case "bank_account_ref":
			row.BankAccountRef = refString(v)
		case "deleted_at":
			row.DeletedAt = parseDeletedAt(v)
		}
	}
	row.UpdatedAt = time.Now()
	return nil
}

func (m *mockStore) DeleteExpense(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("DeleteExpense"); err != nil {
		return err
	}
	delete(m.expenses, id)
	return nil
}

func (m *mockStore) DeleteExpensesByIncomeSource(_ context.Context, userID, incomeSourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("DeleteExpensesByIncomeSource"); err != nil {
		return err
	}
	for id, row := range m.expenses {
		if row.UserID == userID && row.IncomeSourceRef == incomeSourceID {
			delete(m.expenses, id)
		}
	}
	return nil
}

// --- Bank accounts ---

func (m *mockStore) CreateBankAccount(_ context.Context, userID string, acc *domain.BankAccount) (*domain.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("CreateBankAccount"); err != nil {
		return nil, err
	}
	row := *acc
	row.ID = m.nextID("acc")
	row.UserID = userID
	row.DeletedAt = nil
	row.CreatedAt = time.Now()
	row.UpdatedAt = time.Now()
	m.accounts[row.ID] = &row
	out := row
	return &out, nil
}

func (m *mockStore) GetBankAccount(_ context.Context, userID, id string) (*domain.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("GetBankAccount"); err != nil {
		return nil, err
	}
	row, ok := m.accounts[id]
	if !ok || row.UserID != userID || row.Deleted() {
		return nil, &domain.ErrNotFound{Resource: "bank_accounts", ID: id}
	}
	out := *row
	return &out, nil
}

func (m *mockStore) GetBankAccountIncludingDeleted(_ context.Context, userID, id string) (*domain.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.accounts[id]
	if !ok || row.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "bank_accounts", ID: id}
	}
	out := *row
	return &out, nil
}

func (m *mockStore) ListBankAccounts(_ context.Context, userID string) ([]domain.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("ListBankAccounts"); err != nil {
		return nil, err
	}
	var out []domain.BankAccount
	for _, row := range m.accounts {
		if row.UserID == userID && !row.Deleted() {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateBankAccount(_ context.Context, userID, id string, updates map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("UpdateBankAccount"); err != nil {
		return err
	}
	row, ok := m.accounts[id]
	if !ok || row.UserID != userID {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "name":
			row.Name = v.(string)
		case "bank_name":
			row.BankName = v.(string)
		case "account_type":
			row.AccountType = v.(string)
		case "initial_balance":
			row.InitialBalance = v.(decimal.Decimal)
		case "current_balance":
			row.CurrentBalance = v.(decimal.Decimal)
		case "exclude_from_total":
			row.ExcludeFromTotal = v.(bool)
		case "deleted_at":
			row.DeletedAt = parseDeletedAt(v)
		}
	}
	row.UpdatedAt = time.Now()
	return nil
}

func (m *mockStore) DeleteBankAccount(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("DeleteBankAccount"); err != nil {
		return err
	}
	delete(m.accounts, id)
	return nil
}

// --- Ledger transactions ---

func (m *mockStore) CreateTransaction(_ context.Context, userID string, tx *domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("CreateTransaction"); err != nil {
		return nil, err
	}
	row := *tx
	row.ID = m.nextID("tx")
	row.UserID = userID
	row.DeletedAt = nil
	row.UpdatedAt = time.Now()
	m.txs[row.ID] = &row
	out := row
	return &out, nil
}

func (m *mockStore) GetTransaction(_ context.Context, userID, id string) (*domain.LedgerTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.txs[id]
	if !ok || row.UserID != userID || row.Deleted() {
		return nil, &domain.ErrNotFound{Resource: "bank_transactions", ID: id}
	}
	out := *row
	return &out, nil
}

func (m *mockStore) GetTransactionIncludingDeleted(_ context.Context, userID, id string) (*domain.LedgerTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.txs[id]
	if !ok || row.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "bank_transactions", ID: id}
	}
	out := *row
	return &out, nil
}

func (m *mockStore) ListTransactionsByAccount(_ context.Context, userID, accountID string) ([]domain.LedgerTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("ListTransactionsByAccount"); err != nil {
		return nil, err
	}
	var out []domain.LedgerTransaction
	for _, row := range m.txs {
		if row.UserID == userID && row.AccountRef == accountID && !row.Deleted() {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateTransaction(_ context.Context, userID, id string, updates map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("UpdateTransaction"); err != nil {
		return err
	}
	row, ok := m.txs[id]
	if !ok || row.UserID != userID {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "label":
			row.Label = v.(string)
		case "amount":
			row.Amount = v.(decimal.Decimal)
		case "category":
			row.Category = v.(string)
		case "deleted_at":
			row.DeletedAt = parseDeletedAt(v)
		}
	}
	row.UpdatedAt = time.Now()
	return nil
}

func (m *mockStore) DeleteTransaction(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("DeleteTransaction"); err != nil {
		return err
	}
	delete(m.txs, id)
	return nil
}

func (m *mockStore) DeleteTransactionsByAccount(_ context.Context, userID, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, row := range m.txs {
		if row.UserID == userID && row.AccountRef == accountID {
			delete(m.txs, id)
		}
	}
	return nil
}

// --- Rent ---

func (m *mockStore) CreateRentInvoice(_ context.Context, userID string, inv *domain.RentInvoice) (*domain.RentInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("CreateRentInvoice"); err != nil {
		return nil, err
	}
	row := *inv
	row.ID = m.nextID("rent")
	row.UserID = userID
	row.RemainingAmount = row.TotalAmount
	row.Status = domain.RentStatusInProgress
	row.CreatedAt = time.Now()
	row.UpdatedAt = time.Now()
	m.invoices[row.ID] = &row
	out := row
	return &out, nil
}

func (m *mockStore) GetRentInvoice(_ context.Context, userID, id string) (*domain.RentInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("GetRentInvoice"); err != nil {
		return nil, err
	}
	row, ok := m.invoices[id]
	if !ok || row.UserID != userID || row.Deleted() {
		return nil, &domain.ErrNotFound{Resource: "rent_invoices", ID: id}
	}
	out := *row
	return &out, nil
}

func (m *mockStore) ListRentInvoices(_ context.Context, userID string) ([]domain.RentInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RentInvoice
	for _, row := range m.invoices {
		if row.UserID == userID && !row.Deleted() {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateRentInvoice(_ context.Context, userID, id string, updates map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("UpdateRentInvoice"); err != nil {
		return err
	}
	row, ok := m.invoices[id]
	if !ok || row.UserID != userID {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "remaining_amount":
			row.RemainingAmount = v.(decimal.Decimal)
		case "status":
			row.Status = v.(string)
		}
	}
	row.UpdatedAt = time.Now()
	return nil
}

func (m *mockStore) CreateRentSettlement(_ context.Context, userID string, st *domain.RentSettlement) (*domain.RentSettlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("CreateRentSettlement"); err != nil {
		return nil, err
	}
	row := *st
	row.UserID = userID
	m.settlements[row.InvoiceRef] = append(m.settlements[row.InvoiceRef], row)
	out := row
	return &out, nil
}

func (m *mockStore) ListRentSettlements(_ context.Context, userID, invoiceID string) ([]domain.RentSettlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFail("ListRentSettlements"); err != nil {
		return nil, err
	}
	return append([]domain.RentSettlement(nil), m.settlements[invoiceID]...), nil
}

// --- Helpers ---

func parseDeletedAt(v any) *time.Time {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &ts
}

func refString(v any) string {
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// nopBus swallows events.
type nopBus struct{}

func (nopBus) Publish(domain.Event) {}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
