package payrun

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory StoreAPI with the same lock and transaction
// semantics as the database store, for exercising the orchestrator without
// a database.
type memStore struct {
	mu        sync.Mutex
	companies map[string]Company
	periods   map[string]PayPeriod
	employees map[string][]Employee
	payrolls  []Payroll
	locks     map[LockKey]RunLock

	failInsertFor string // employee ID whose insert fails, for rollback tests

	afterAcquire func(holder string) // runs after a successful acquire, for stall tests
}

func newMemStore() *memStore {
	return &memStore{
		companies: map[string]Company{},
		periods:   map[string]PayPeriod{},
		employees: map[string][]Employee{},
		locks:     map[LockKey]RunLock{},
	}
}

func (m *memStore) GetCompany(_ context.Context, companyID string) (Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	company, ok := m.companies[companyID]
	if !ok {
		return Company{}, ErrCompanyNotFound
	}
	return company, nil
}

func (m *memStore) GetPeriod(_ context.Context, periodID string) (PayPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	period, ok := m.periods[periodID]
	if !ok {
		return PayPeriod{}, ErrPeriodNotFound
	}
	return period, nil
}

func (m *memStore) CreatePeriod(_ context.Context, period PayPeriod) (PayPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if period.ID == "" {
		period.ID = "period-" + period.StartDate.Format("2006-01-02")
	}
	m.periods[period.ID] = period
	return period, nil
}

func (m *memStore) ListPeriods(_ context.Context, companyID string, from, to time.Time, limit, offset int) ([]PayPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []PayPeriod
	for _, period := range m.periods {
		if period.CompanyID != companyID || period.StartDate.Before(from) || period.EndDate.After(to) {
			continue
		}
		matched = append(matched, period)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartDate.After(matched[j].StartDate) })
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *memStore) ListEmployees(_ context.Context, companyID string) ([]Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Employee(nil), m.employees[companyID]...), nil
}

func (m *memStore) UpdatePeriodStatusFrom(_ context.Context, periodID, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateStatusFromLocked(periodID, from, to), nil
}

func (m *memStore) updateStatusFromLocked(periodID, from, to string) bool {
	period, ok := m.periods[periodID]
	if !ok || period.Status != from {
		return false
	}
	period.Status = to
	m.periods[periodID] = period
	return true
}

func (m *memStore) YTD(_ context.Context, employeeID string, yearStart, asOf time.Time) (YTDTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ytdLocked(employeeID, yearStart, asOf), nil
}

func (m *memStore) ytdLocked(employeeID string, yearStart, asOf time.Time) YTDTotals {
	var ytd YTDTotals
	for _, row := range m.payrolls {
		if row.EmployeeID != employeeID || row.Status == PayrollStatusVoid {
			continue
		}
		if row.PayDate.Before(yearStart) || !row.PayDate.Before(asOf) {
			continue
		}
		ytd.GrossPay = ytd.GrossPay.Add(row.Earnings.Gross)
		ytd.FederalWithholding = ytd.FederalWithholding.Add(row.Federal.IncomeTax)
		ytd.SocialSecurity = ytd.SocialSecurity.Add(row.Federal.SocialSecurity)
		ytd.Medicare = ytd.Medicare.Add(row.Federal.Medicare)
		ytd.StateWithholding = ytd.StateWithholding.Add(row.State.IncomeTax)
	}
	return ytd
}

func (m *memStore) AcquireLock(_ context.Context, key LockKey, idempotencyKey, holder string, ttl time.Duration) (LockAcquisition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	existing, found := m.locks[key]
	if found {
		if existing.State == LockStateSucceeded {
			return LockAcquisition{Outcome: LockCompleted, Existing: existing}, nil
		}
		if existing.State == LockStateHeld && existing.ExpiresAt.After(now) {
			return LockAcquisition{Outcome: LockHeldByOther, Existing: existing}, nil
		}
	}
	m.locks[key] = RunLock{
		CompanyID:      key.CompanyID,
		PeriodStart:    key.PeriodStart,
		PeriodEnd:      key.PeriodEnd,
		IdempotencyKey: idempotencyKey,
		Holder:         holder,
		State:          LockStateHeld,
		ExpiresAt:      now.Add(ttl),
	}
	hook := m.afterAcquire
	m.mu.Unlock()
	if hook != nil {
		hook(holder)
	}
	m.mu.Lock()
	return LockAcquisition{Outcome: LockAcquired}, nil
}

func (m *memStore) ReleaseLock(_ context.Context, key LockKey, idempotencyKey, state string, resultJSON []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, found := m.locks[key]
	if !found || lock.IdempotencyKey != idempotencyKey {
		// Matches the zero-row UPDATE in the database store: a superseded
		// holder's release touches nothing.
		return nil
	}
	lock.State = state
	lock.ResultJSON = resultJSON
	m.locks[key] = lock
	return nil
}

func (m *memStore) GetLock(_ context.Context, key LockKey) (RunLock, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, found := m.locks[key]
	return lock, found, nil
}

// RunInTransaction stages writes and applies them only when fn succeeds,
// mirroring database rollback behavior.
func (m *memStore) RunInTransaction(_ context.Context, fn func(tx TxStore) error) error {
	tx := &memTx{store: m, statuses: map[string]statusMove{}}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range tx.inserted {
		for _, existing := range m.payrolls {
			if existing.PeriodID == row.PeriodID && existing.EmployeeID == row.EmployeeID {
				return errors.New("duplicate payroll for period and employee")
			}
		}
		m.payrolls = append(m.payrolls, row)
	}
	for periodID, move := range tx.statuses {
		m.updateStatusFromLocked(periodID, move.from, move.to)
	}
	return nil
}

type statusMove struct {
	from, to string
}

type memTx struct {
	store    *memStore
	inserted []Payroll
	statuses map[string]statusMove
}

func (t *memTx) YTD(_ context.Context, employeeID string, yearStart, asOf time.Time) (YTDTotals, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.ytdLocked(employeeID, yearStart, asOf), nil
}

func (t *memTx) InsertPayroll(_ context.Context, row Payroll) error {
	if t.store.failInsertFor != "" && t.store.failInsertFor == row.EmployeeID {
		return errors.New("simulated insert failure")
	}
	t.inserted = append(t.inserted, row)
	return nil
}

func (t *memTx) UpdatePeriodStatusFrom(_ context.Context, periodID, from, to string) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	period, ok := t.store.periods[periodID]
	if !ok || period.Status != from {
		return false, nil
	}
	t.statuses[periodID] = statusMove{from: from, to: to}
	return true, nil
}

func (m *memStore) payrollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payrolls)
}
