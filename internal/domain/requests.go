package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type OperatorCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type OperatorUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type PumpCreateRequest struct {
	ID   string `json:"id" validate:"required,max=32"`
	Name string `json:"name" validate:"required,max=80"`
}

// PumpUpdateRequest changes only the fields that are set.
type PumpUpdateRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=80"`
	Active *bool   `json:"active"`
}

type NozzleCreateRequest struct {
	NozzleID       string          `json:"nozzle_id" validate:"required,max=32"`
	FuelType       FuelType        `json:"fuel_type" validate:"required"`
	InitialReading decimal.Decimal `json:"initial_reading"`
	Operator       string          `json:"operator"`
}

type RatesUpdateRequest struct {
	Rates map[FuelType]decimal.Decimal `json:"rates" validate:"required,min=1"`
}

type RatesResponse struct {
	Rates []FuelRate `json:"rates"`
}

type MachineTestRequest struct {
	PumpID         string          `json:"pump_id" validate:"required"`
	NozzleID       string          `json:"nozzle_id" validate:"required"`
	Date           string          `json:"date" validate:"required,datetime=2006-01-02"`
	Shift          ShiftName       `json:"shift" validate:"required,oneof=Morning Afternoon Night"`
	ExtractedQty   decimal.Decimal `json:"extracted_qty"`
	MeterBefore    decimal.Decimal `json:"meter_before"`
	MeterAfter     decimal.Decimal `json:"meter_after"`
	JarReading     decimal.Decimal `json:"jar_reading"`
	ReturnedToTank bool            `json:"returned_to_tank"`
}

// NozzleClosing carries the raw close reading exactly as entered.
type NozzleClosing struct {
	NozzleID     string `json:"nozzle_id" validate:"required"`
	CloseReading string `json:"close_reading"`
}

type ShiftEntryRequest struct {
	PumpID   string          `json:"pump_id" validate:"required"`
	Date     string          `json:"date" validate:"required,datetime=2006-01-02"`
	Shift    ShiftName       `json:"shift" validate:"required,oneof=Morning Afternoon Night"`
	Operator string          `json:"operator"`
	Closings []NozzleClosing `json:"closings" validate:"dive"`
	Payments PaymentSplit    `json:"payments"`
	// Credits splits payments.credit across ledger customers. Optional.
	Credits []CreditSale `json:"credits,omitempty" validate:"dive"`
}

// NozzleResult is the per-nozzle outcome of the shift calculator.
type NozzleResult struct {
	PumpID      string          `json:"pump_id"`
	NozzleID    string          `json:"nozzle_id"`
	FuelType    FuelType        `json:"fuel_type"`
	OpenReading decimal.Decimal `json:"open_reading"`
	OpenSource  string          `json:"open_source,omitempty"`
	CloseInput  string          `json:"close_input"`
	Close       decimal.Decimal `json:"close_reading"`
	TestVolume  decimal.Decimal `json:"test_volume"`
	Rate        decimal.Decimal `json:"rate"`
	GrossVolume decimal.Decimal `json:"gross_volume"`
	NetVolume   decimal.Decimal `json:"net_volume"`
	Revenue     decimal.Decimal `json:"revenue"`
	Complete    bool            `json:"complete"`
	Issue       string          `json:"issue,omitempty"`
}

type VarianceStatus string

const (
	VarianceBalanced VarianceStatus = "Balanced"
	VarianceOver     VarianceStatus = "Over"
	VarianceShort    VarianceStatus = "Short"
)

type ShiftTotals struct {
	TotalSales     decimal.Decimal `json:"total_sales"`
	TotalVolume    decimal.Decimal `json:"total_volume"`
	Collected      decimal.Decimal `json:"collected"`
	Credit         decimal.Decimal `json:"credit"`
	Variance       decimal.Decimal `json:"variance"`
	VarianceStatus VarianceStatus  `json:"variance_status"`
	VarianceTier   string          `json:"variance_tier"`
}

type ShiftPreviewResponse struct {
	PumpID    string         `json:"pump_id"`
	Date      string         `json:"date"`
	Shift     ShiftName      `json:"shift"`
	State     string         `json:"state"`
	Nozzles   []NozzleResult `json:"nozzles"`
	Totals    *ShiftTotals   `json:"totals,omitempty"`
	CanSubmit bool           `json:"can_submit"`
	Issues    []string       `json:"issues,omitempty"`
}

type ShiftSubmitResponse struct {
	Report   ShiftReport     `json:"report"`
	Readings []NozzleReading `json:"readings"`
	Totals   ShiftTotals     `json:"totals"`
}

type ShiftStatusResponse struct {
	PumpID    string    `json:"pump_id"`
	Date      string    `json:"date"`
	Shift     ShiftName `json:"shift"`
	State     string    `json:"state"`
	Submitted bool      `json:"submitted"`
	ReportID  string    `json:"report_id,omitempty"`
}

// ShiftAuditChanges lists the editable payment fields; nil means unchanged.
type ShiftAuditChanges struct {
	Cash     *decimal.Decimal `json:"cash,omitempty"`
	Card     *decimal.Decimal `json:"card,omitempty"`
	UPI      *decimal.Decimal `json:"upi,omitempty"`
	Variance *decimal.Decimal `json:"variance,omitempty"`
}

type ShiftAuditRequest struct {
	ShiftAuditChanges
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin"`
}

type ShiftAuditResponse struct {
	Shift ShiftReport     `json:"shift"`
	Entry ShiftAuditEntry `json:"entry"`
}

type OpenReadingResponse struct {
	PumpID   string          `json:"pump_id"`
	NozzleID string          `json:"nozzle_id"`
	Date     string          `json:"date"`
	Shift    ShiftName       `json:"shift"`
	Reading  decimal.Decimal `json:"reading"`
	Source   string          `json:"source"`
	FromDate string          `json:"from_date,omitempty"`
	From     ShiftName       `json:"from_shift,omitempty"`
	Gap      bool            `json:"gap"`
}

type CurrentShiftResponse struct {
	Date  string    `json:"date"`
	Shift ShiftName `json:"shift"`
	At    string    `json:"at"`
}

type DenominationCheckRequest struct {
	ShiftID      string           `json:"shift_id,omitempty"`
	DeclaredCash *decimal.Decimal `json:"declared_cash,omitempty"`
	Counts       map[int]int      `json:"counts" validate:"required,min=1"`
}

type DenominationLine struct {
	Value    int             `json:"value"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type DenominationCheck struct {
	Lines        []DenominationLine `json:"lines"`
	CountedTotal decimal.Decimal    `json:"counted_total"`
	DeclaredCash decimal.Decimal    `json:"declared_cash"`
	Difference   decimal.Decimal    `json:"difference"`
	Matches      bool               `json:"matches"`
}

type CreditCustomerCreateRequest struct {
	Name        string          `json:"name" validate:"required,max=80"`
	Phone       string          `json:"phone" validate:"omitempty,max=20"`
	VehicleNo   string          `json:"vehicle_no" validate:"omitempty,max=20"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

// CreditCustomerUpdateRequest changes only the fields that are set. The
// balance moves through transactions only.
type CreditCustomerUpdateRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=80"`
	Phone       *string          `json:"phone" validate:"omitempty,max=20"`
	VehicleNo   *string          `json:"vehicle_no" validate:"omitempty,max=20"`
	CreditLimit *decimal.Decimal `json:"credit_limit"`
	Active      *bool            `json:"active"`
}

type CreditTransactionRequest struct {
	Type   CreditEntryType `json:"type" validate:"required,oneof=charge payment"`
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Note   string          `json:"note" validate:"max=200"`
}

// CreditSale attributes part of a shift's credit_out to one customer.
type CreditSale struct {
	CustomerID string          `json:"customer_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

type SalesSummaryRequest struct {
	PumpID   string
	FromDate string
	ToDate   string
}
