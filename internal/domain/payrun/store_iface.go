package payrun

import (
	"context"
	"time"
)

// LockKey identifies one company pay period window. At most one live lock
// exists per key across all processes.
type LockKey struct {
	CompanyID   string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

type LockOutcome string

const (
	// LockAcquired means this caller now holds the lock.
	LockAcquired LockOutcome = "acquired"
	// LockHeldByOther means a live lock belongs to another run.
	LockHeldByOther LockOutcome = "held"
	// LockCompleted means a prior run finished under this key; Existing
	// carries its idempotency key and stored result.
	LockCompleted LockOutcome = "completed"
)

type LockAcquisition struct {
	Outcome  LockOutcome
	Existing RunLock
}

type StoreAPI interface {
	GetCompany(ctx context.Context, companyID string) (Company, error)
	GetPeriod(ctx context.Context, periodID string) (PayPeriod, error)
	CreatePeriod(ctx context.Context, period PayPeriod) (PayPeriod, error)
	ListPeriods(ctx context.Context, companyID string, from, to time.Time, limit, offset int) ([]PayPeriod, error)
	ListEmployees(ctx context.Context, companyID string) ([]Employee, error)

	// UpdatePeriodStatusFrom moves a period only when its status still
	// matches from, reporting whether the move happened.
	UpdatePeriodStatusFrom(ctx context.Context, periodID, from, to string) (bool, error)

	// YTD sums all non-void paychecks with a pay date in [yearStart, asOf).
	YTD(ctx context.Context, employeeID string, yearStart, asOf time.Time) (YTDTotals, error)

	AcquireLock(ctx context.Context, key LockKey, idempotencyKey, holder string, ttl time.Duration) (LockAcquisition, error)
	// ReleaseLock updates the lock only while it is still held under the
	// given idempotency key, so a superseded holder cannot overwrite a
	// takeover's result.
	ReleaseLock(ctx context.Context, key LockKey, idempotencyKey, state string, resultJSON []byte) error
	GetLock(ctx context.Context, key LockKey) (RunLock, bool, error)

	// RunInTransaction executes fn atomically; any error rolls back every
	// write made through the TxStore.
	RunInTransaction(ctx context.Context, fn func(tx TxStore) error) error
}

// TxStore is the write surface available inside a run transaction.
type TxStore interface {
	YTD(ctx context.Context, employeeID string, yearStart, asOf time.Time) (YTDTotals, error)
	InsertPayroll(ctx context.Context, row Payroll) error
	UpdatePeriodStatusFrom(ctx context.Context, periodID, from, to string) (bool, error)
}
