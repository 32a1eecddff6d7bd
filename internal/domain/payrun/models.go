package payrun

import (
	"time"

	"github.com/shopspring/decimal"

	"paycore/internal/domain/tax"
)

type Company struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	State         string           `json:"state"`
	SutaRate      *decimal.Decimal `json:"sutaRate,omitempty"`
	IsNewEmployer bool             `json:"isNewEmployer"`
}

type Employee struct {
	ID        string `json:"id"`
	CompanyID string `json:"companyId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`

	State      string `json:"state"`
	City       string `json:"city"`
	County     string `json:"county"`
	WorkCity   string `json:"workCity"`
	WorkState  string `json:"workState"`
	IsResident bool   `json:"isResident"`

	FilingStatus          tax.FilingStatus `json:"filingStatus"`
	Allowances            int              `json:"allowances"`
	AdditionalWithholding decimal.Decimal  `json:"additionalWithholding"`
	OtherIncome           decimal.Decimal  `json:"otherIncome"`
	Deductions            decimal.Decimal  `json:"deductions"`

	PayType           string          `json:"payType"`
	PayRate           decimal.Decimal `json:"payRate"`
	PayPeriodsPerYear int             `json:"payPeriodsPerYear"`
}

type PayPeriod struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"companyId"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	PayDate   time.Time `json:"payDate"`
	Status    string    `json:"status"`
}

// EmployeeInput is the per-employee variable pay for one period. Hours only
// apply to hourly employees; salaried gross is derived from the annual rate.
type EmployeeInput struct {
	EmployeeID    string          `json:"employeeId"`
	HoursWorked   decimal.Decimal `json:"hoursWorked"`
	OvertimeHours decimal.Decimal `json:"overtimeHours"`
	Bonus         decimal.Decimal `json:"bonus"`
	Commission    decimal.Decimal `json:"commission"`
	Tips          decimal.Decimal `json:"tips"`
}

type Earnings struct {
	Regular    decimal.Decimal `json:"regular"`
	Overtime   decimal.Decimal `json:"overtime"`
	Bonus      decimal.Decimal `json:"bonus"`
	Commission decimal.Decimal `json:"commission"`
	Tips       decimal.Decimal `json:"tips"`
	Gross      decimal.Decimal `json:"gross"`
}

type YTDTotals struct {
	GrossPay           decimal.Decimal `json:"grossPay"`
	FederalWithholding decimal.Decimal `json:"federalWithholding"`
	SocialSecurity     decimal.Decimal `json:"socialSecurity"`
	Medicare           decimal.Decimal `json:"medicare"`
	StateWithholding   decimal.Decimal `json:"stateWithholding"`
}

type EmployeeResult struct {
	EmployeeID    string             `json:"employeeId"`
	Earnings      Earnings           `json:"earnings"`
	Federal       tax.FederalResult  `json:"federal"`
	State         tax.StateResult    `json:"state"`
	Local         tax.LocalResult    `json:"local"`
	Employer      tax.EmployerResult `json:"employer"`
	TotalWithheld decimal.Decimal    `json:"totalWithheld"`
	NetPay        decimal.Decimal    `json:"netPay"`
	// YTD as of and including this paycheck.
	YTD YTDTotals `json:"ytd"`
}

type RunTotals struct {
	GrossPay      decimal.Decimal `json:"grossPay"`
	EmployeeTaxes decimal.Decimal `json:"employeeTaxes"`
	EmployerTaxes decimal.Decimal `json:"employerTaxes"`
	NetPay        decimal.Decimal `json:"netPay"`
	EmployeeCount int             `json:"employeeCount"`
}

type RunResult struct {
	RunID          string           `json:"runId"`
	CompanyID      string           `json:"companyId"`
	PeriodID       string           `json:"periodId"`
	IdempotencyKey string           `json:"idempotencyKey"`
	Employees      []EmployeeResult `json:"employees"`
	Totals         RunTotals        `json:"totals"`
	ProcessedAt    time.Time        `json:"processedAt"`
	// Replayed marks a result served from a prior run under the same
	// idempotency key instead of a fresh transaction.
	Replayed bool `json:"replayed,omitempty"`
}

// PreviewResult is per-employee and non-fatal: a calculation error for one
// employee is reported inline without failing the batch.
type PreviewResult struct {
	EmployeeID string          `json:"employeeId"`
	Result     *EmployeeResult `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type RunLock struct {
	CompanyID      string    `json:"companyId"`
	PeriodStart    time.Time `json:"periodStart"`
	PeriodEnd      time.Time `json:"periodEnd"`
	IdempotencyKey string    `json:"idempotencyKey"`
	Holder         string    `json:"holder"`
	State          string    `json:"state"`
	ExpiresAt      time.Time `json:"expiresAt"`
	ResultJSON     []byte    `json:"-"`
}

// Payroll is one employee's persisted paycheck for a period. Once PROCESSED
// the monetary fields are immutable; only the status may move on.
type Payroll struct {
	ID         string    `json:"id"`
	PeriodID   string    `json:"periodId"`
	EmployeeID string    `json:"employeeId"`
	PayDate    time.Time `json:"payDate"`
	Status     string    `json:"status"`

	Earnings Earnings           `json:"earnings"`
	Federal  tax.FederalResult  `json:"federal"`
	State    tax.StateResult    `json:"state"`
	Local    tax.LocalResult    `json:"local"`
	Employer tax.EmployerResult `json:"employer"`

	TotalWithheld decimal.Decimal `json:"totalWithheld"`
	NetPay        decimal.Decimal `json:"netPay"`
	YTD           YTDTotals       `json:"ytd"`

	CreatedAt time.Time `json:"createdAt"`
}
