package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fuelos/backend/internal/domain"
	"fuelos/backend/internal/reconcile"
	"fuelos/backend/internal/store"
	"fuelos/backend/internal/xid"
)

func (s *Store) ListCreditCustomers(_ context.Context, includeInactive bool) ([]domain.CreditCustomer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.CreditCustomer, 0, len(s.creditCustomers))
	for _, c := range s.creditCustomers {
		if !includeInactive && !c.Active {
			continue
		}
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.CreditCustomer) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return customers, nil
}

func (s *Store) GetCreditCustomer(_ context.Context, id string) (*domain.CreditCustomer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.creditCustomers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateCreditCustomer(_ context.Context, customer domain.CreditCustomer) (*domain.CreditCustomer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if _, exists := s.creditCustomers[customer.ID]; exists {
		return nil, store.ErrConflict
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.UpdatedAt = customer.CreatedAt
	customer.Balance = decimal.Zero
	s.creditCustomers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) UpdateCreditCustomer(_ context.Context, customer domain.CreditCustomer) (*domain.CreditCustomer, error) {
	if customer.ID == "" || strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.creditCustomers[customer.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	current.Name = customer.Name
	current.Phone = customer.Phone
	current.VehicleNo = customer.VehicleNo
	current.CreditLimit = customer.CreditLimit
	current.Active = customer.Active
	current.UpdatedAt = customer.UpdatedAt
	if current.UpdatedAt.IsZero() {
		current.UpdatedAt = time.Now().UTC()
	}
	s.creditCustomers[customer.ID] = current
	updated := current
	return &updated, nil
}

func (s *Store) PostCreditTransaction(_ context.Context, txn domain.CreditTransaction) (*domain.CreditTransaction, error) {
	if txn.CustomerID == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	planned, err := s.planCharges([]domain.CreditTransaction{txn})
	if err != nil {
		return nil, err
	}
	s.applyCharges(planned)
	posted := planned[0]
	return &posted, nil
}

func (s *Store) ListCreditTransactions(_ context.Context, customerID string, limit int) ([]domain.CreditTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.creditCustomers[customerID]; !ok {
		return nil, store.ErrNotFound
	}
	result := make([]domain.CreditTransaction, 0, 16)
	for i := len(s.creditTxns) - 1; i >= 0; i-- {
		if s.creditTxns[i].CustomerID == customerID {
			result = append(result, s.creditTxns[i])
		}
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// planCharges resolves each line's balance without touching the store.
// Callers hold the write lock and apply the result with applyCharges.
func (s *Store) planCharges(txns []domain.CreditTransaction) ([]domain.CreditTransaction, error) {
	if len(txns) == 0 {
		return nil, nil
	}
	balances := make(map[string]decimal.Decimal, len(txns))
	out := make([]domain.CreditTransaction, 0, len(txns))
	for _, txn := range txns {
		balance, ok := balances[txn.CustomerID]
		if !ok {
			c, exists := s.creditCustomers[txn.CustomerID]
			if !exists {
				return nil, store.ErrNotFound
			}
			balance = c.Balance
		}
		next, err := reconcile.ApplyCreditEntry(balance, txn.Type, txn.Amount)
		if err != nil {
			return nil, err
		}
		balances[txn.CustomerID] = next
		if txn.ID == "" {
			txn.ID = xid.New("ctx")
		}
		if txn.CreatedAt.IsZero() {
			txn.CreatedAt = time.Now().UTC()
		}
		txn.Amount = txn.Amount.Round(2)
		txn.Balance = next
		out = append(out, txn)
	}
	return out, nil
}

func (s *Store) applyCharges(txns []domain.CreditTransaction) {
	for _, txn := range txns {
		c := s.creditCustomers[txn.CustomerID]
		c.Balance = txn.Balance
		c.UpdatedAt = txn.CreatedAt
		s.creditCustomers[txn.CustomerID] = c
		s.creditTxns = append(s.creditTxns, txn)
	}
}
