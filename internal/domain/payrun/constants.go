package payrun

const (
	PeriodStatusDraft           = "DRAFT"
	PeriodStatusPendingApproval = "PENDING_APPROVAL"
	PeriodStatusApproved        = "APPROVED"
	PeriodStatusProcessing      = "PROCESSING"
	PeriodStatusProcessed       = "PROCESSED"
	PeriodStatusPaid            = "PAID"
	PeriodStatusRejected        = "REJECTED"
	PeriodStatusVoid            = "VOID"

	PayrollStatusProcessed = "PROCESSED"
	PayrollStatusPaid      = "PAID"
	PayrollStatusVoid      = "VOID"

	LockStateHeld      = "HELD"
	LockStateSucceeded = "SUCCEEDED"
	LockStateFailed    = "FAILED"

	PayTypeSalary = "SALARY"
	PayTypeHourly = "HOURLY"
)

// periodTransitions is the pay period workflow. PAID and VOID are terminal.
var periodTransitions = map[string][]string{
	PeriodStatusDraft:           {PeriodStatusPendingApproval, PeriodStatusProcessing, PeriodStatusVoid},
	PeriodStatusPendingApproval: {PeriodStatusApproved, PeriodStatusRejected, PeriodStatusVoid},
	PeriodStatusApproved:        {PeriodStatusProcessing, PeriodStatusRejected, PeriodStatusVoid},
	PeriodStatusProcessing:      {PeriodStatusProcessed, PeriodStatusApproved},
	PeriodStatusProcessed:       {PeriodStatusPaid, PeriodStatusVoid},
	PeriodStatusRejected:        {PeriodStatusDraft, PeriodStatusVoid},
}

func CanTransition(from, to string) bool {
	for _, allowed := range periodTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// runnable statuses: approved periods plus draft ones run directly.
func canRun(status string) bool {
	return status == PeriodStatusApproved || status == PeriodStatusDraft
}
