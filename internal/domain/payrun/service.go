package payrun

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paycore/internal/domain/tax"
)

const (
	LockStatusIdle             = "idle"
	LockStatusLocked           = "locked"
	LockStatusAlreadyProcessed = "alreadyProcessed"
)

// standard working hours per year, used to derive a salaried employee's
// hourly-equivalent rate for overtime
const annualWorkHours = 2080

type Service struct {
	store   StoreAPI
	engine  *tax.Engine
	lockTTL time.Duration
	workers int
}

func NewService(store StoreAPI, engine *tax.Engine, lockTTL time.Duration, workers int) *Service {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	if workers <= 0 {
		workers = 4
	}
	return &Service{store: store, engine: engine, lockTTL: lockTTL, workers: workers}
}

// DeriveIdempotencyKey produces a stable key for a company pay period, used
// when the caller does not supply one. Retrying the same period without a
// client key still replays instead of re-processing.
func DeriveIdempotencyKey(companyID string, periodStart, periodEnd time.Time) string {
	payload := companyID + "|" + periodStart.Format("2006-01-02") + "|" + periodEnd.Format("2006-01-02")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// RunPayroll processes one company pay period end to end: validates every
// employee, takes the run lock, computes and persists each paycheck inside a
// single transaction, and stores the result on the lock for replays.
func (s *Service) RunPayroll(ctx context.Context, companyID, periodID string, inputs []EmployeeInput, idempotencyKey, holder string) (RunResult, error) {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return RunResult{}, err
	}
	if period.CompanyID != companyID {
		return RunResult{}, ErrCompanyMismatch
	}

	if idempotencyKey == "" {
		idempotencyKey = DeriveIdempotencyKey(companyID, period.StartDate, period.EndDate)
	}
	key := LockKey{CompanyID: companyID, PeriodStart: period.StartDate, PeriodEnd: period.EndDate}

	// A completed period is not a dead end: a retry under the key that
	// processed it replays the stored result instead of erroring.
	if period.Status == PeriodStatusProcessed || period.Status == PeriodStatusPaid {
		return s.replayCompleted(ctx, key, idempotencyKey)
	}
	if !canRun(period.Status) {
		return RunResult{}, fmt.Errorf("%w: %s", ErrInvalidStatus, period.Status)
	}

	company, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		return RunResult{}, err
	}
	employees, err := s.store.ListEmployees(ctx, companyID)
	if err != nil {
		return RunResult{}, err
	}
	if len(employees) == 0 {
		return RunResult{}, ErrNoEmployees
	}

	inputsByID, issues := s.validateRun(employees, inputs)
	if len(issues) > 0 {
		return RunResult{}, &ValidationError{Issues: issues}
	}

	acquisition, err := s.store.AcquireLock(ctx, key, idempotencyKey, holder, s.lockTTL)
	if err != nil {
		return RunResult{}, err
	}
	switch acquisition.Outcome {
	case LockHeldByOther:
		return RunResult{}, ErrLockHeld
	case LockCompleted:
		if acquisition.Existing.IdempotencyKey == idempotencyKey {
			var prior RunResult
			if err := json.Unmarshal(acquisition.Existing.ResultJSON, &prior); err != nil {
				return RunResult{}, fmt.Errorf("decode stored run result: %w", err)
			}
			prior.Replayed = true
			return prior, nil
		}
		return RunResult{}, ErrPeriodProcessed
	}

	moved, err := s.store.UpdatePeriodStatusFrom(ctx, periodID, period.Status, PeriodStatusProcessing)
	if err != nil {
		_ = s.store.ReleaseLock(ctx, key, idempotencyKey, LockStateFailed, nil)
		return RunResult{}, err
	}
	if !moved {
		_ = s.store.ReleaseLock(ctx, key, idempotencyKey, LockStateFailed, nil)
		return RunResult{}, fmt.Errorf("%w: period status changed concurrently", ErrInvalidStatus)
	}

	result := RunResult{
		RunID:          uuid.NewString(),
		CompanyID:      companyID,
		PeriodID:       periodID,
		IdempotencyKey: idempotencyKey,
	}

	err = s.store.RunInTransaction(ctx, func(tx TxStore) error {
		yearStart := time.Date(period.PayDate.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

		// YTD reads are sequential; the pure calculations then fan out to
		// workers since no employee depends on a sibling's output.
		ytds := make([]YTDTotals, len(employees))
		for i, employee := range employees {
			ytd, err := tx.YTD(ctx, employee.ID, yearStart, period.PayDate)
			if err != nil {
				return err
			}
			ytds[i] = ytd
		}

		results := make([]EmployeeResult, len(employees))
		errs := make([]error, len(employees))
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < s.workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					results[i], errs[i] = s.computeEmployee(company, employees[i], inputsByID[employees[i].ID], ytds[i])
				}
			}()
		}
		for i := range employees {
			jobs <- i
		}
		close(jobs)
		wg.Wait()

		for i, employee := range employees {
			if errs[i] != nil {
				return fmt.Errorf("employee %s: %w", employee.ID, errs[i])
			}
			row := Payroll{
				ID:            uuid.NewString(),
				PeriodID:      periodID,
				EmployeeID:    employee.ID,
				PayDate:       period.PayDate,
				Status:        PayrollStatusProcessed,
				Earnings:      results[i].Earnings,
				Federal:       results[i].Federal,
				State:         results[i].State,
				Local:         results[i].Local,
				Employer:      results[i].Employer,
				TotalWithheld: results[i].TotalWithheld,
				NetPay:        results[i].NetPay,
				YTD:           results[i].YTD,
			}
			if err := tx.InsertPayroll(ctx, row); err != nil {
				return err
			}
		}
		result.Employees = results

		// The period must still be in this run's hands. If a takeover
		// finished it while this holder stalled, abort instead of writing a
		// second set of paychecks.
		moved, err := tx.UpdatePeriodStatusFrom(ctx, periodID, PeriodStatusProcessing, PeriodStatusProcessed)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("%w: period no longer processing", ErrInvalidStatus)
		}
		return nil
	})
	if err != nil {
		_ = s.store.ReleaseLock(ctx, key, idempotencyKey, LockStateFailed, nil)
		_, _ = s.store.UpdatePeriodStatusFrom(ctx, periodID, PeriodStatusProcessing, period.Status)
		return RunResult{}, err
	}

	result.Totals = sumTotals(result.Employees)
	result.ProcessedAt = time.Now().UTC()

	payload, err := json.Marshal(result)
	if err != nil {
		return RunResult{}, err
	}
	if err := s.store.ReleaseLock(ctx, key, idempotencyKey, LockStateSucceeded, payload); err != nil {
		return RunResult{}, err
	}
	return result, nil
}

// replayCompleted serves a finished period's stored result when the retry
// carries the idempotency key that processed it. Any other key conflicts.
func (s *Service) replayCompleted(ctx context.Context, key LockKey, idempotencyKey string) (RunResult, error) {
	lock, found, err := s.store.GetLock(ctx, key)
	if err != nil {
		return RunResult{}, err
	}
	if !found || lock.State != LockStateSucceeded || lock.IdempotencyKey != idempotencyKey {
		return RunResult{}, ErrPeriodProcessed
	}
	var prior RunResult
	if err := json.Unmarshal(lock.ResultJSON, &prior); err != nil {
		return RunResult{}, fmt.Errorf("decode stored run result: %w", err)
	}
	prior.Replayed = true
	return prior, nil
}

// CalculatePreview computes every employee's paycheck without persisting
// anything. Errors are per employee and never fail the batch.
func (s *Service) CalculatePreview(ctx context.Context, companyID, periodID string, inputs []EmployeeInput) ([]PreviewResult, error) {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.CompanyID != companyID {
		return nil, ErrCompanyMismatch
	}
	company, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	employees, err := s.store.ListEmployees(ctx, companyID)
	if err != nil {
		return nil, err
	}

	inputsByID := indexInputs(inputs)
	yearStart := time.Date(period.PayDate.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	previews := make([]PreviewResult, 0, len(employees))
	for _, employee := range employees {
		preview := PreviewResult{EmployeeID: employee.ID}
		if err := s.engine.CheckJurisdiction(employee.State, employee.County); err != nil {
			preview.Error = err.Error()
			previews = append(previews, preview)
			continue
		}
		ytd, err := s.store.YTD(ctx, employee.ID, yearStart, period.PayDate)
		if err != nil {
			preview.Error = err.Error()
			previews = append(previews, preview)
			continue
		}
		result, err := s.computeEmployee(company, employee, inputsByID[employee.ID], ytd)
		if err != nil {
			preview.Error = err.Error()
		} else {
			preview.Result = &result
		}
		previews = append(previews, preview)
	}
	return previews, nil
}

// CreatePeriod opens a new draft pay period for the company.
func (s *Service) CreatePeriod(ctx context.Context, companyID string, start, end, payDate time.Time) (PayPeriod, error) {
	if _, err := s.store.GetCompany(ctx, companyID); err != nil {
		return PayPeriod{}, err
	}
	return s.store.CreatePeriod(ctx, PayPeriod{
		CompanyID: companyID,
		StartDate: start,
		EndDate:   end,
		PayDate:   payDate,
		Status:    PeriodStatusDraft,
	})
}

// ListPeriods returns the company's pay periods, newest first. Zero from/to
// bounds mean unbounded.
func (s *Service) ListPeriods(ctx context.Context, companyID string, from, to time.Time, limit, offset int) ([]PayPeriod, error) {
	if from.IsZero() {
		from = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if to.IsZero() {
		to = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListPeriods(ctx, companyID, from, to, limit, offset)
}

// TransitionPeriod moves a pay period through its workflow. Monetary fields
// of processed paychecks are never touched; only the status advances.
func (s *Service) TransitionPeriod(ctx context.Context, companyID, periodID, to string) error {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if period.CompanyID != companyID {
		return ErrCompanyMismatch
	}
	if !CanTransition(period.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, period.Status, to)
	}
	moved, err := s.store.UpdatePeriodStatusFrom(ctx, periodID, period.Status, to)
	if err != nil {
		return err
	}
	if !moved {
		return fmt.Errorf("%w: period status changed concurrently", ErrInvalidTransition)
	}
	return nil
}

// LockStatus reports whether a period is idle, locked by a live run, or
// already processed.
func (s *Service) LockStatus(ctx context.Context, companyID, periodID string) (string, error) {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return "", err
	}
	if period.CompanyID != companyID {
		return "", ErrCompanyMismatch
	}
	key := LockKey{CompanyID: companyID, PeriodStart: period.StartDate, PeriodEnd: period.EndDate}
	lock, found, err := s.store.GetLock(ctx, key)
	if err != nil {
		return "", err
	}
	if !found {
		return LockStatusIdle, nil
	}
	switch {
	case lock.State == LockStateSucceeded:
		return LockStatusAlreadyProcessed, nil
	case lock.State == LockStateHeld && lock.ExpiresAt.After(time.Now().UTC()):
		return LockStatusLocked, nil
	default:
		return LockStatusIdle, nil
	}
}

func indexInputs(inputs []EmployeeInput) map[string]EmployeeInput {
	byID := make(map[string]EmployeeInput, len(inputs))
	for _, input := range inputs {
		byID[input.EmployeeID] = input
	}
	return byID
}

// validateRun checks every employee before anything mutates, collecting all
// issues so the caller sees the complete list in one response.
func (s *Service) validateRun(employees []Employee, inputs []EmployeeInput) (map[string]EmployeeInput, []Issue) {
	known := make(map[string]bool, len(employees))
	for _, employee := range employees {
		known[employee.ID] = true
	}

	var issues []Issue
	byID := make(map[string]EmployeeInput, len(inputs))
	for _, input := range inputs {
		if !known[input.EmployeeID] {
			issues = append(issues, Issue{EmployeeID: input.EmployeeID, Field: "employeeId", Detail: "no such employee in this company"})
			continue
		}
		for field, amount := range map[string]decimal.Decimal{
			"hoursWorked":   input.HoursWorked,
			"overtimeHours": input.OvertimeHours,
			"bonus":         input.Bonus,
			"commission":    input.Commission,
			"tips":          input.Tips,
		} {
			if amount.IsNegative() {
				issues = append(issues, Issue{EmployeeID: input.EmployeeID, Field: field, Detail: "must not be negative"})
			}
		}
		byID[input.EmployeeID] = input
	}

	for _, employee := range employees {
		if err := s.engine.CheckJurisdiction(employee.State, employee.County); err != nil {
			issues = append(issues, Issue{EmployeeID: employee.ID, Field: "state", Detail: err.Error()})
		}
		if employee.PayRate.IsNegative() {
			issues = append(issues, Issue{EmployeeID: employee.ID, Field: "payRate", Detail: "must not be negative"})
		}
	}
	return byID, issues
}

func (s *Service) computeEmployee(company Company, employee Employee, input EmployeeInput, ytd YTDTotals) (EmployeeResult, error) {
	earnings := deriveEarnings(employee, input)

	wages := tax.WageInput{
		GrossPay:              earnings.Gross,
		FilingStatus:          employee.FilingStatus,
		Allowances:            employee.Allowances,
		AdditionalWithholding: employee.AdditionalWithholding,
		OtherIncome:           employee.OtherIncome,
		Deductions:            employee.Deductions,
		PayPeriodsPerYear:     employee.PayPeriodsPerYear,
		YTDGrossWages:         ytd.GrossPay,
	}

	federal, err := s.engine.Federal(wages)
	if err != nil {
		return EmployeeResult{}, err
	}
	state, err := s.engine.State(employee.State, wages)
	if err != nil {
		return EmployeeResult{}, err
	}
	local, err := s.engine.Local(tax.LocalInput{
		City:       employee.City,
		County:     employee.County,
		State:      employee.State,
		WorkCity:   employee.WorkCity,
		WorkState:  employee.WorkState,
		IsResident: employee.IsResident,
		Wages:      wages,
	})
	if err != nil {
		return EmployeeResult{}, err
	}
	employer, err := s.engine.Employer(tax.EmployerInput{
		GrossPay:      earnings.Gross,
		State:         company.State,
		YTDGrossWages: ytd.GrossPay,
		SutaRate:      company.SutaRate,
		IsNewEmployer: company.IsNewEmployer,
	})
	if err != nil {
		return EmployeeResult{}, err
	}

	totalWithheld := federal.Total.Add(state.Total).Add(local.Total).Round(2)
	netPay := earnings.Gross.Sub(totalWithheld).Round(2)

	return EmployeeResult{
		EmployeeID:    employee.ID,
		Earnings:      earnings,
		Federal:       federal,
		State:         state,
		Local:         local,
		Employer:      employer,
		TotalWithheld: totalWithheld,
		NetPay:        netPay,
		YTD: YTDTotals{
			GrossPay:           ytd.GrossPay.Add(earnings.Gross),
			FederalWithholding: ytd.FederalWithholding.Add(federal.IncomeTax),
			SocialSecurity:     ytd.SocialSecurity.Add(federal.SocialSecurity),
			Medicare:           ytd.Medicare.Add(federal.Medicare),
			StateWithholding:   ytd.StateWithholding.Add(state.IncomeTax),
		},
	}, nil
}

// deriveEarnings turns pay type plus variable inputs into the earnings
// breakdown. Salaried overtime uses the hourly-equivalent annual rate.
func deriveEarnings(employee Employee, input EmployeeInput) Earnings {
	oneAndHalf := decimal.NewFromFloat(1.5)
	var regular, overtime decimal.Decimal

	switch employee.PayType {
	case PayTypeHourly:
		regular = employee.PayRate.Mul(input.HoursWorked)
		overtime = employee.PayRate.Mul(oneAndHalf).Mul(input.OvertimeHours)
	default:
		periods := int64(employee.PayPeriodsPerYear)
		if periods <= 0 {
			periods = 26
		}
		regular = employee.PayRate.Div(decimal.NewFromInt(periods))
		if input.OvertimeHours.IsPositive() {
			hourly := employee.PayRate.Div(decimal.NewFromInt(annualWorkHours))
			overtime = hourly.Mul(oneAndHalf).Mul(input.OvertimeHours)
		}
	}

	earnings := Earnings{
		Regular:    regular.Round(2),
		Overtime:   overtime.Round(2),
		Bonus:      input.Bonus.Round(2),
		Commission: input.Commission.Round(2),
		Tips:       input.Tips.Round(2),
	}
	earnings.Gross = earnings.Regular.
		Add(earnings.Overtime).
		Add(earnings.Bonus).
		Add(earnings.Commission).
		Add(earnings.Tips).
		Round(2)
	return earnings
}

func sumTotals(results []EmployeeResult) RunTotals {
	totals := RunTotals{EmployeeCount: len(results)}
	for _, result := range results {
		totals.GrossPay = totals.GrossPay.Add(result.Earnings.Gross)
		totals.EmployeeTaxes = totals.EmployeeTaxes.Add(result.TotalWithheld)
		totals.EmployerTaxes = totals.EmployerTaxes.Add(result.Employer.Total)
		totals.NetPay = totals.NetPay.Add(result.NetPay)
	}
	totals.GrossPay = totals.GrossPay.Round(2)
	totals.EmployeeTaxes = totals.EmployeeTaxes.Round(2)
	totals.EmployerTaxes = totals.EmployerTaxes.Round(2)
	totals.NetPay = totals.NetPay.Round(2)
	return totals
}
