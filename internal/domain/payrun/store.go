package payrun

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// querier is satisfied by both the pool and a transaction, so the YTD query
// runs identically inside and outside a run transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) GetCompany(ctx context.Context, companyID string) (Company, error) {
	var company Company
	var sutaRate decimal.NullDecimal
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, state, suta_rate, is_new_employer
    FROM companies
    WHERE id = $1
  `, companyID).Scan(&company.ID, &company.Name, &company.State, &sutaRate, &company.IsNewEmployer)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrCompanyNotFound
	}
	if err != nil {
		return Company{}, err
	}
	if sutaRate.Valid {
		company.SutaRate = &sutaRate.Decimal
	}
	return company, nil
}

func (s *Store) GetPeriod(ctx context.Context, periodID string) (PayPeriod, error) {
	var period PayPeriod
	err := s.DB.QueryRow(ctx, `
    SELECT id, company_id, start_date, end_date, pay_date, status
    FROM pay_periods
    WHERE id = $1
  `, periodID).Scan(&period.ID, &period.CompanyID, &period.StartDate, &period.EndDate, &period.PayDate, &period.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return PayPeriod{}, ErrPeriodNotFound
	}
	if err != nil {
		return PayPeriod{}, err
	}
	return period, nil
}

func (s *Store) CreatePeriod(ctx context.Context, period PayPeriod) (PayPeriod, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO pay_periods (company_id, start_date, end_date, pay_date, status)
    VALUES ($1, $2, $3, $4, $5)
    RETURNING id
  `, period.CompanyID, period.StartDate, period.EndDate, period.PayDate, period.Status).Scan(&period.ID)
	if err != nil {
		return PayPeriod{}, err
	}
	return period, nil
}

func (s *Store) ListPeriods(ctx context.Context, companyID string, from, to time.Time, limit, offset int) ([]PayPeriod, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, company_id, start_date, end_date, pay_date, status
    FROM pay_periods
    WHERE company_id = $1 AND start_date >= $2 AND end_date <= $3
    ORDER BY start_date DESC
    LIMIT $4 OFFSET $5
  `, companyID, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []PayPeriod
	for rows.Next() {
		var period PayPeriod
		if err := rows.Scan(&period.ID, &period.CompanyID, &period.StartDate, &period.EndDate, &period.PayDate, &period.Status); err != nil {
			return nil, err
		}
		periods = append(periods, period)
	}
	return periods, rows.Err()
}

func (s *Store) ListEmployees(ctx context.Context, companyID string) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, company_id, first_name, last_name,
           state, COALESCE(city, ''), COALESCE(county, ''),
           COALESCE(work_city, ''), COALESCE(work_state, ''), is_resident,
           filing_status, allowances, additional_withholding, other_income, deductions,
           pay_type, pay_rate, pay_periods_per_year
    FROM employees
    WHERE company_id = $1
    ORDER BY last_name, first_name
  `, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var employee Employee
		if err := rows.Scan(
			&employee.ID, &employee.CompanyID, &employee.FirstName, &employee.LastName,
			&employee.State, &employee.City, &employee.County,
			&employee.WorkCity, &employee.WorkState, &employee.IsResident,
			&employee.FilingStatus, &employee.Allowances, &employee.AdditionalWithholding,
			&employee.OtherIncome, &employee.Deductions,
			&employee.PayType, &employee.PayRate, &employee.PayPeriodsPerYear,
		); err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	return employees, rows.Err()
}

func (s *Store) UpdatePeriodStatusFrom(ctx context.Context, periodID, from, to string) (bool, error) {
	return updatePeriodStatusFrom(ctx, s.DB, periodID, from, to)
}

func (s *Store) YTD(ctx context.Context, employeeID string, yearStart, asOf time.Time) (YTDTotals, error) {
	return ytdTotals(ctx, s.DB, employeeID, yearStart, asOf)
}

// updatePeriodStatusFrom only moves a period that is still in the expected
// state, so a stalled run cannot clobber a takeover's progress.
func updatePeriodStatusFrom(ctx context.Context, q querier, periodID, from, to string) (bool, error) {
	tag, err := q.Exec(ctx, `
    UPDATE pay_periods SET status = $3, updated_at = now()
    WHERE id = $1 AND status = $2
  `, periodID, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ytdTotals sums every non-void paycheck with a pay date in [yearStart, asOf).
// The upper bound is exclusive so the check being computed never counts itself.
func ytdTotals(ctx context.Context, q querier, employeeID string, yearStart, asOf time.Time) (YTDTotals, error) {
	var ytd YTDTotals
	err := q.QueryRow(ctx, `
    SELECT COALESCE(SUM(gross_pay), 0),
           COALESCE(SUM(federal_withholding), 0),
           COALESCE(SUM(social_security), 0),
           COALESCE(SUM(medicare), 0),
           COALESCE(SUM(state_withholding), 0)
    FROM payrolls
    WHERE employee_id = $1
      AND status <> 'VOID'
      AND pay_date >= $2
      AND pay_date < $3
  `, employeeID, yearStart, asOf).Scan(
		&ytd.GrossPay, &ytd.FederalWithholding, &ytd.SocialSecurity, &ytd.Medicare, &ytd.StateWithholding,
	)
	return ytd, err
}

func (s *Store) AcquireLock(ctx context.Context, key LockKey, idempotencyKey, holder string, ttl time.Duration) (LockAcquisition, error) {
	expiresAt := time.Now().UTC().Add(ttl)
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO run_locks (company_id, period_start, period_end, idempotency_key, holder, state, expires_at)
    VALUES ($1,$2,$3,$4,$5,'HELD',$6)
    ON CONFLICT (company_id, period_start, period_end) DO NOTHING
  `, key.CompanyID, key.PeriodStart, key.PeriodEnd, idempotencyKey, holder, expiresAt)
	if err != nil {
		return LockAcquisition{}, err
	}
	if tag.RowsAffected() == 1 {
		return LockAcquisition{Outcome: LockAcquired}, nil
	}

	existing, found, err := s.GetLock(ctx, key)
	if err != nil {
		return LockAcquisition{}, err
	}
	if !found {
		// Row vanished between insert and read; treat as contention.
		return LockAcquisition{Outcome: LockHeldByOther}, nil
	}
	if existing.State == LockStateSucceeded {
		return LockAcquisition{Outcome: LockCompleted, Existing: existing}, nil
	}
	if existing.State == LockStateHeld && existing.ExpiresAt.After(time.Now().UTC()) {
		return LockAcquisition{Outcome: LockHeldByOther, Existing: existing}, nil
	}

	// Expired or failed holder: take the lock over. The guard re-checks the
	// state so a concurrent taker or a late success cannot be clobbered.
	tag, err = s.DB.Exec(ctx, `
    UPDATE run_locks
    SET idempotency_key = $4, holder = $5, state = 'HELD', expires_at = $6, result_json = NULL
    WHERE company_id = $1 AND period_start = $2 AND period_end = $3
      AND (state = 'FAILED' OR (state = 'HELD' AND expires_at <= now()))
  `, key.CompanyID, key.PeriodStart, key.PeriodEnd, idempotencyKey, holder, expiresAt)
	if err != nil {
		return LockAcquisition{}, err
	}
	if tag.RowsAffected() == 1 {
		return LockAcquisition{Outcome: LockAcquired}, nil
	}
	return LockAcquisition{Outcome: LockHeldByOther, Existing: existing}, nil
}

// ReleaseLock only touches a lock still held under the releasing run's
// idempotency key; a takeover's lock row is left alone.
func (s *Store) ReleaseLock(ctx context.Context, key LockKey, idempotencyKey, state string, resultJSON []byte) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE run_locks
    SET state = $5, result_json = $6
    WHERE company_id = $1 AND period_start = $2 AND period_end = $3
      AND idempotency_key = $4
  `, key.CompanyID, key.PeriodStart, key.PeriodEnd, idempotencyKey, state, resultJSON)
	return err
}

func (s *Store) GetLock(ctx context.Context, key LockKey) (RunLock, bool, error) {
	lock := RunLock{CompanyID: key.CompanyID, PeriodStart: key.PeriodStart, PeriodEnd: key.PeriodEnd}
	err := s.DB.QueryRow(ctx, `
    SELECT idempotency_key, holder, state, expires_at, result_json
    FROM run_locks
    WHERE company_id = $1 AND period_start = $2 AND period_end = $3
  `, key.CompanyID, key.PeriodStart, key.PeriodEnd).Scan(
		&lock.IdempotencyKey, &lock.Holder, &lock.State, &lock.ExpiresAt, &lock.ResultJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return RunLock{}, false, nil
	}
	if err != nil {
		return RunLock{}, false, err
	}
	return lock, true, nil
}

func (s *Store) RunInTransaction(ctx context.Context, fn func(tx TxStore) error) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) YTD(ctx context.Context, employeeID string, yearStart, asOf time.Time) (YTDTotals, error) {
	return ytdTotals(ctx, t.tx, employeeID, yearStart, asOf)
}

func (t *txStore) UpdatePeriodStatusFrom(ctx context.Context, periodID, from, to string) (bool, error) {
	return updatePeriodStatusFrom(ctx, t.tx, periodID, from, to)
}

func (t *txStore) InsertPayroll(ctx context.Context, row Payroll) error {
	earningsJSON, err := json.Marshal(row.Earnings)
	if err != nil {
		return err
	}
	federalJSON, err := json.Marshal(row.Federal)
	if err != nil {
		return err
	}
	stateJSON, err := json.Marshal(row.State)
	if err != nil {
		return err
	}
	localJSON, err := json.Marshal(row.Local)
	if err != nil {
		return err
	}
	employerJSON, err := json.Marshal(row.Employer)
	if err != nil {
		return err
	}
	ytdJSON, err := json.Marshal(row.YTD)
	if err != nil {
		return err
	}

	_, err = t.tx.Exec(ctx, `
    INSERT INTO payrolls (
      id, period_id, employee_id, pay_date, status,
      gross_pay, federal_withholding, social_security, medicare,
      state_withholding, local_withholding, employer_taxes,
      total_withheld, net_pay,
      earnings_json, federal_json, state_json, local_json, employer_json, ytd_json
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
  `,
		row.ID, row.PeriodID, row.EmployeeID, row.PayDate, row.Status,
		row.Earnings.Gross, row.Federal.IncomeTax, row.Federal.SocialSecurity, row.Federal.Medicare,
		row.State.IncomeTax, row.Local.Total, row.Employer.Total,
		row.TotalWithheld, row.NetPay,
		earningsJSON, federalJSON, stateJSON, localJSON, employerJSON, ytdJSON,
	)
	return err
}
