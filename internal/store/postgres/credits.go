package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fuelos/backend/internal/domain"
	"fuelos/backend/internal/reconcile"
	"fuelos/backend/internal/store"
	"fuelos/backend/internal/xid"
)

const customerColumns = `id, name, phone, vehicle_no, credit_limit, balance, active, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (domain.CreditCustomer, error) {
	var c domain.CreditCustomer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.VehicleNo, &c.CreditLimit, &c.Balance, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, err
}

func (s *Store) ListCreditCustomers(ctx context.Context, includeInactive bool) ([]domain.CreditCustomer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM credit_customers
		WHERE ($1 OR active = true)
		ORDER BY lower(name), id
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.CreditCustomer, 0, 16)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCreditCustomer(ctx context.Context, id string) (*domain.CreditCustomer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM credit_customers
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCreditCustomer(ctx context.Context, customer domain.CreditCustomer) (*domain.CreditCustomer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.UpdatedAt = customer.CreatedAt
	customer.Balance = decimal.Zero

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credit_customers (id, name, phone, vehicle_no, credit_limit, balance, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, customer.ID, customer.Name, customer.Phone, customer.VehicleNo, customer.CreditLimit, customer.Balance,
		customer.Active, customer.CreatedAt, customer.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) UpdateCreditCustomer(ctx context.Context, customer domain.CreditCustomer) (*domain.CreditCustomer, error) {
	if customer.ID == "" || strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.UpdatedAt.IsZero() {
		customer.UpdatedAt = time.Now().UTC()
	}
	updated, err := scanCustomer(s.db.QueryRowContext(ctx, `
		UPDATE credit_customers
		SET name = $2, phone = $3, vehicle_no = $4, credit_limit = $5, active = $6, updated_at = $7
		WHERE id = $1
		RETURNING `+customerColumns,
		customer.ID, customer.Name, customer.Phone, customer.VehicleNo, customer.CreditLimit, customer.Active, customer.UpdatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) PostCreditTransaction(ctx context.Context, txn domain.CreditTransaction) (*domain.CreditTransaction, error) {
	if txn.CustomerID == "" {
		return nil, store.ErrInvalidInput
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	posted, err := postCredit(ctx, pgTx, txn)
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, mapWriteError(err)
	}
	return &posted, nil
}

// postCredit locks the customer row, applies one ledger line and stores it
// with the resulting balance.
func postCredit(ctx context.Context, tx *sql.Tx, txn domain.CreditTransaction) (domain.CreditTransaction, error) {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, `
		SELECT balance FROM credit_customers WHERE id = $1 FOR UPDATE
	`, txn.CustomerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CreditTransaction{}, store.ErrNotFound
		}
		return domain.CreditTransaction{}, mapWriteError(err)
	}

	next, err := reconcile.ApplyCreditEntry(balance, txn.Type, txn.Amount)
	if err != nil {
		return domain.CreditTransaction{}, err
	}
	if txn.ID == "" {
		txn.ID = xid.New("ctx")
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	txn.Amount = txn.Amount.Round(2)
	txn.Balance = next

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (
			id, customer_id, entry_type, amount, balance_after, shift_report_id, pump_id, entry_date, note, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,NULLIF($6, ''),$7,$8,$9,$10,$11)
	`, txn.ID, txn.CustomerID, string(txn.Type), txn.Amount, txn.Balance, txn.ShiftReportID, txn.PumpID, txn.Date,
		txn.Note, txn.CreatedBy, txn.CreatedAt)
	if err != nil {
		return domain.CreditTransaction{}, mapWriteError(err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE credit_customers SET balance = $2, updated_at = $3 WHERE id = $1
	`, txn.CustomerID, txn.Balance, txn.CreatedAt)
	if err != nil {
		return domain.CreditTransaction{}, mapWriteError(err)
	}
	return txn, nil
}

func (s *Store) ListCreditTransactions(ctx context.Context, customerID string, limit int) ([]domain.CreditTransaction, error) {
	if _, err := s.GetCreditCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, entry_type, amount, balance_after, COALESCE(shift_report_id, ''), pump_id,
			entry_date::text, note, created_by, created_at
		FROM credit_transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := make([]domain.CreditTransaction, 0, limit)
	for rows.Next() {
		var t domain.CreditTransaction
		var typ string
		if err := rows.Scan(&t.ID, &t.CustomerID, &typ, &t.Amount, &t.Balance, &t.ShiftReportID, &t.PumpID,
			&t.Date, &t.Note, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = domain.CreditEntryType(typ)
		t.CreatedAt = t.CreatedAt.UTC()
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txns, nil
}
