package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShiftName string

const (
	ShiftMorning   ShiftName = "Morning"
	ShiftAfternoon ShiftName = "Afternoon"
	ShiftNight     ShiftName = "Night"
)

// ShiftNames lists the three fixed shifts of a calendar day in order.
var ShiftNames = []ShiftName{ShiftMorning, ShiftAfternoon, ShiftNight}

type FuelType string

const (
	FuelPetrol        FuelType = "petrol"
	FuelDiesel        FuelType = "diesel"
	FuelPremiumPetrol FuelType = "premium_petrol"
	FuelCNG           FuelType = "cng"
)

var FuelTypes = []FuelType{FuelPetrol, FuelDiesel, FuelPremiumPetrol, FuelCNG}

func (f FuelType) Valid() bool {
	for _, known := range FuelTypes {
		if f == known {
			return true
		}
	}
	return false
}

const (
	ReadingStatusSubmitted = "Submitted"
)

const (
	ShiftStatusSubmitted = "Submitted"
	ShiftStatusAudited   = "Audited"
)

type TestResult string

const (
	TestPass    TestResult = "Pass"
	TestWarning TestResult = "Warning"
	TestFail    TestResult = "Fail"
)

const (
	RoleOwner    = "owner"
	RoleManager  = "manager"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

type Pump struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Nozzle struct {
	PumpID         string          `json:"pump_id"`
	NozzleID       string          `json:"nozzle_id"`
	FuelType       FuelType        `json:"fuel_type"`
	CurrentReading decimal.Decimal `json:"current_reading"`
	Operator       string          `json:"operator,omitempty"`
	Active         bool            `json:"active"`
}

type NozzleReading struct {
	ID            string          `json:"id"`
	PumpID        string          `json:"pump_id"`
	NozzleID      string          `json:"nozzle_id"`
	Date          string          `json:"date"`
	Shift         ShiftName       `json:"shift"`
	FuelType      FuelType        `json:"fuel_type"`
	OpenReading   decimal.Decimal `json:"open_reading"`
	CloseReading  decimal.Decimal `json:"close_reading"`
	TestVolume    decimal.Decimal `json:"test_volume"`
	GrossVolume   decimal.Decimal `json:"gross_volume"`
	NetVolume     decimal.Decimal `json:"net_sale_volume"`
	Revenue       decimal.Decimal `json:"revenue"`
	Rate          decimal.Decimal `json:"rate"`
	Status        string          `json:"status"`
	ShiftReportID string          `json:"shift_report_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

type MachineTest struct {
	ID             string          `json:"id"`
	PumpID         string          `json:"pump_id"`
	NozzleID       string          `json:"nozzle_id"`
	Date           string          `json:"date"`
	Shift          ShiftName       `json:"shift"`
	ExtractedQty   decimal.Decimal `json:"extracted_qty"`
	MeterBefore    decimal.Decimal `json:"meter_before"`
	MeterAfter     decimal.Decimal `json:"meter_after"`
	JarReading     decimal.Decimal `json:"jar_reading"`
	VarianceML     decimal.Decimal `json:"variance_ml"`
	Result         TestResult      `json:"result"`
	ReturnedToTank bool            `json:"returned_to_tank"`
	TestedBy       string          `json:"tested_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type PaymentSplit struct {
	Cash   decimal.Decimal `json:"cash"`
	Card   decimal.Decimal `json:"card"`
	UPI    decimal.Decimal `json:"upi"`
	Credit decimal.Decimal `json:"credit"`
}

type ShiftReport struct {
	ID          string          `json:"id"`
	PumpID      string          `json:"pump_id"`
	Date        string          `json:"date"`
	Shift       ShiftName       `json:"shift"`
	TotalSales  decimal.Decimal `json:"total_sales"`
	Cash        decimal.Decimal `json:"cash"`
	Card        decimal.Decimal `json:"card"`
	UPI         decimal.Decimal `json:"upi"`
	CreditOut   decimal.Decimal `json:"credit_out"`
	Collected   decimal.Decimal `json:"collected"`
	Variance    decimal.Decimal `json:"variance"`
	Status      string          `json:"status"`
	ReadingIDs  []string        `json:"reading_ids"`
	Operator    string          `json:"operator,omitempty"`
	SubmittedBy string          `json:"submitted_by,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type FieldChange struct {
	Field string          `json:"field"`
	From  decimal.Decimal `json:"from"`
	To    decimal.Decimal `json:"to"`
}

type ShiftAuditEntry struct {
	ID            string        `json:"id"`
	ShiftReportID string        `json:"shift_report_id"`
	Reason        string        `json:"reason"`
	Changes       []FieldChange `json:"changes"`
	ChangedBy     string        `json:"changed_by,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

type NozzleReadingUpdate struct {
	PumpID   string          `json:"pump_id"`
	NozzleID string          `json:"nozzle_id"`
	Reading  decimal.Decimal `json:"reading"`
}

type DailySales struct {
	PumpID     string          `json:"pump_id"`
	Date       string          `json:"date"`
	TotalSales decimal.Decimal `json:"total_sales"`
	Volume     decimal.Decimal `json:"volume"`
	Shifts     int             `json:"shifts"`
}

// ShiftSubmission is the write set produced by one shift submission. Stores
// must persist it atomically.
type ShiftSubmission struct {
	Report        ShiftReport           `json:"report"`
	Readings      []NozzleReading       `json:"readings"`
	NozzleUpdates []NozzleReadingUpdate `json:"nozzle_updates"`
	DailySales    DailySales            `json:"daily_sales"`
	CreditCharges []CreditTransaction   `json:"credit_charges,omitempty"`
}

type FuelRate struct {
	FuelType    FuelType        `json:"fuel_type"`
	Rate        decimal.Decimal `json:"rate"`
	EffectiveAt time.Time       `json:"effective_at"`
	ChangedBy   string          `json:"changed_by,omitempty"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	PumpID        string    `json:"pump_id,omitempty"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type ShiftReportFilter struct {
	PumpID   string
	Date     string
	FromDate string
	ToDate   string
	Status   string
	Limit    int
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Actor struct {
	Username string
	Role     string
}

type NozzleReadingFilter struct {
	PumpID        string
	NozzleID      string
	ShiftReportID string
	ToDate        string
	Limit         int
}

type MachineTestFilter struct {
	PumpID   string
	NozzleID string
	Date     string
	Shift    ShiftName
	Limit    int
}

type CreditEntryType string

const (
	// CreditCharge is fuel handed out on account; it raises the balance.
	CreditCharge CreditEntryType = "charge"
	// CreditPayment settles part of the balance.
	CreditPayment CreditEntryType = "payment"
)

func (t CreditEntryType) Valid() bool {
	return t == CreditCharge || t == CreditPayment
}

// CreditCustomer is a fleet or regular customer buying fuel on account.
type CreditCustomer struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone,omitempty"`
	VehicleNo   string          `json:"vehicle_no,omitempty"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	Balance     decimal.Decimal `json:"balance"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OverLimit reports whether the outstanding balance exceeds a non-zero limit.
func (c CreditCustomer) OverLimit() bool {
	return c.CreditLimit.IsPositive() && c.Balance.GreaterThan(c.CreditLimit)
}

// CreditTransaction is one ledger line. Balance is the customer balance
// after the line was applied.
type CreditTransaction struct {
	ID            string          `json:"id"`
	CustomerID    string          `json:"customer_id"`
	Type          CreditEntryType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Balance       decimal.Decimal `json:"balance"`
	ShiftReportID string          `json:"shift_report_id,omitempty"`
	PumpID        string          `json:"pump_id,omitempty"`
	Date          string          `json:"date"`
	Note          string          `json:"note,omitempty"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

type CreditSummary struct {
	Customers       int             `json:"customers"`
	ActiveCustomers int             `json:"active_customers"`
	OverLimit       int             `json:"over_limit"`
	Outstanding     decimal.Decimal `json:"outstanding"`
}

// SalesDay is one business date inside a SalesSummary.
type SalesDay struct {
	Date       string          `json:"date"`
	Shifts     int             `json:"shifts"`
	TotalSales decimal.Decimal `json:"total_sales"`
	Collected  decimal.Decimal `json:"collected"`
	CreditOut  decimal.Decimal `json:"credit_out"`
	Variance   decimal.Decimal `json:"variance"`
}

// SalesSummary rolls submitted shift reports up over a date range.
type SalesSummary struct {
	PumpID     string          `json:"pump_id,omitempty"`
	FromDate   string          `json:"from_date"`
	ToDate     string          `json:"to_date"`
	Shifts     int             `json:"shifts"`
	TotalSales decimal.Decimal `json:"total_sales"`
	Cash       decimal.Decimal `json:"cash"`
	Card       decimal.Decimal `json:"card"`
	UPI        decimal.Decimal `json:"upi"`
	CreditOut  decimal.Decimal `json:"credit_out"`
	Collected  decimal.Decimal `json:"collected"`
	Variance   decimal.Decimal `json:"variance"`
	Short      int             `json:"short_shifts"`
	Over       int             `json:"over_shifts"`
	Days       []SalesDay      `json:"days"`
}
