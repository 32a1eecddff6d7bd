package payrun

import (
	"errors"
	"fmt"
)

var (
	ErrPeriodNotFound    = errors.New("pay period not found")
	ErrCompanyNotFound   = errors.New("company not found")
	ErrCompanyMismatch   = errors.New("pay period belongs to a different company")
	ErrNoEmployees       = errors.New("company has no employees to process")
	ErrInvalidStatus     = errors.New("pay period is not in a runnable status")
	ErrPeriodProcessed   = errors.New("pay period has already been processed")
	ErrLockHeld          = errors.New("another run holds the lock for this period")
	ErrInvalidTransition = errors.New("invalid pay period status transition")
)

// Issue is one employee-level validation failure. A run reports every issue
// in the batch at once, never just the first.
type Issue struct {
	EmployeeID string `json:"employeeId"`
	Field      string `json:"field"`
	Detail     string `json:"detail"`
}

type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("payroll run validation failed for %d employee(s)", len(e.Issues))
}
