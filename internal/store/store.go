package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fuelos/backend/internal/domain"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAlreadySubmitted = errors.New("shift already submitted")
	ErrConflict         = errors.New("already exists")
)

type Repository interface {
	ListPumps(ctx context.Context) ([]domain.Pump, error)
	GetPump(ctx context.Context, pumpID string) (*domain.Pump, error)
	CreatePump(ctx context.Context, pump domain.Pump) (*domain.Pump, error)
	UpdatePump(ctx context.Context, pump domain.Pump) (*domain.Pump, error)

	ListNozzles(ctx context.Context, pumpID string, includeInactive bool) ([]domain.Nozzle, error)
	GetNozzle(ctx context.Context, pumpID string, nozzleID string) (*domain.Nozzle, error)
	CreateNozzle(ctx context.Context, nozzle domain.Nozzle) (*domain.Nozzle, error)
	SetNozzleActive(ctx context.Context, pumpID string, nozzleID string, active bool) (*domain.Nozzle, error)

	ListRates(ctx context.Context) ([]domain.FuelRate, error)
	SetRates(ctx context.Context, rates []domain.FuelRate) error
	ListRateHistory(ctx context.Context, fuel domain.FuelType, limit int) ([]domain.FuelRate, error)
	RateAt(ctx context.Context, fuel domain.FuelType, at time.Time) (decimal.Decimal, error)

	ListNozzleReadings(ctx context.Context, filter domain.NozzleReadingFilter) ([]domain.NozzleReading, error)

	CreateMachineTest(ctx context.Context, test domain.MachineTest) (*domain.MachineTest, error)
	ListMachineTests(ctx context.Context, filter domain.MachineTestFilter) ([]domain.MachineTest, error)

	FindShiftReport(ctx context.Context, pumpID string, date string, shift domain.ShiftName) (*domain.ShiftReport, error)
	GetShiftReport(ctx context.Context, id string) (*domain.ShiftReport, error)
	ListShiftReports(ctx context.Context, filter domain.ShiftReportFilter) ([]domain.ShiftReport, error)
	// CommitShiftSubmission persists the report, its readings, the nozzle
	// current readings, the daily sales delta and the credit charges in one
	// unit. A second report for the same (pump, date, shift) returns
	// ErrAlreadySubmitted; machine tests booked after the readings were
	// computed return ErrConflict.
	CommitShiftSubmission(ctx context.Context, submission domain.ShiftSubmission) (*domain.ShiftReport, error)
	CommitShiftAudit(ctx context.Context, report domain.ShiftReport, entry domain.ShiftAuditEntry) (*domain.ShiftReport, error)
	ListShiftAudits(ctx context.Context, shiftReportID string) ([]domain.ShiftAuditEntry, error)
	GetDailySales(ctx context.Context, pumpID string, date string) ([]domain.DailySales, error)

	ListCreditCustomers(ctx context.Context, includeInactive bool) ([]domain.CreditCustomer, error)
	GetCreditCustomer(ctx context.Context, id string) (*domain.CreditCustomer, error)
	CreateCreditCustomer(ctx context.Context, customer domain.CreditCustomer) (*domain.CreditCustomer, error)
	// UpdateCreditCustomer writes the profile fields only; the balance is
	// owned by PostCreditTransaction.
	UpdateCreditCustomer(ctx context.Context, customer domain.CreditCustomer) (*domain.CreditCustomer, error)
	// PostCreditTransaction appends one ledger line and moves the customer
	// balance in the same unit. The stored line carries the new balance.
	PostCreditTransaction(ctx context.Context, txn domain.CreditTransaction) (*domain.CreditTransaction, error)
	ListCreditTransactions(ctx context.Context, customerID string, limit int) ([]domain.CreditTransaction, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, pumpID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
