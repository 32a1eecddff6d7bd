package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"paycore/internal/platform/config"
)

// Seed inserts a demo company with employees across several jurisdictions
// and an open pay period. Skipped when data already exists.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if !cfg.RunSeed {
		return nil
	}

	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM companies").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var companyID string
	err := pool.QueryRow(ctx, `
    INSERT INTO companies (name, state, is_new_employer)
    VALUES ('Demo Payroll Co', 'CA', true)
    RETURNING id
  `).Scan(&companyID)
	if err != nil {
		return err
	}

	employees := []struct {
		first, last, state, city, county, payType string
		isResident                                bool
		payRate                                   float64
	}{
		{"Ada", "Reyes", "CA", "Sacramento", "", "SALARY", true, 130000},
		{"Ben", "Okafor", "PA", "Philadelphia", "", "HOURLY", true, 25},
		{"Cleo", "Marsh", "TX", "Austin", "", "SALARY", true, 95000},
		{"Dev", "Patel", "MD", "Rockville", "Montgomery", "SALARY", true, 110000},
		{"Elena", "Sosa", "NY", "New York City", "", "SALARY", true, 150000},
	}
	for _, employee := range employees {
		_, err := pool.Exec(ctx, `
      INSERT INTO employees (
        company_id, first_name, last_name, state, city, county,
        is_resident, filing_status, pay_type, pay_rate, pay_periods_per_year
      )
      VALUES ($1,$2,$3,$4,$5,$6,$7,'SINGLE',$8,$9,26)
    `, companyID, employee.first, employee.last, employee.state, employee.city,
			employee.county, employee.isResident, employee.payType, employee.payRate)
		if err != nil {
			return err
		}
	}

	start := time.Date(time.Now().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	_, err = pool.Exec(ctx, `
    INSERT INTO pay_periods (company_id, start_date, end_date, pay_date, status)
    VALUES ($1, $2, $3, $4, 'APPROVED')
  `, companyID, start, start.AddDate(0, 0, 13), start.AddDate(0, 0, 19))
	if err != nil {
		return err
	}

	slog.Info("seeded demo company", "companyId", companyID, "employees", len(employees))
	return nil
}
