package tax

import "github.com/shopspring/decimal"

type StateDetails struct {
	TaxableWages decimal.Decimal `json:"taxableWages"`
	MarginalRate decimal.Decimal `json:"marginalRate"`
}

type StateResult struct {
	IncomeTax decimal.Decimal `json:"incomeTax"`
	SDI       decimal.Decimal `json:"sdi"`
	SUI       decimal.Decimal `json:"sui"`
	Total     decimal.Decimal `json:"total"`
	Details   StateDetails    `json:"details"`
}

// stateBrackets resolves the bracket table for a filing status, applying the
// per-state rule that married-filing-separately uses the single table.
func stateBrackets(cfg StateConfig, status FilingStatus) []Bracket {
	if status == FilingMarriedSeparately && cfg.MFSUsesSingleBrackets {
		status = FilingSingle
	}
	if brackets, ok := cfg.Brackets[status]; ok {
		return brackets
	}
	if status == FilingQualifyingSurvivor {
		if brackets, ok := cfg.Brackets[FilingMarriedJointly]; ok {
			return brackets
		}
	}
	return cfg.Brackets[FilingSingle]
}

func stateDeduction(cfg StateConfig, status FilingStatus) decimal.Decimal {
	if deduction, ok := cfg.StandardDeduction[status]; ok {
		return deduction
	}
	if status == FilingMarriedSeparately || status == FilingHeadOfHousehold {
		return cfg.StandardDeduction[FilingSingle]
	}
	if status == FilingQualifyingSurvivor {
		if deduction, ok := cfg.StandardDeduction[FilingMarriedJointly]; ok {
			return deduction
		}
	}
	return cfg.StandardDeduction[FilingSingle]
}

// fundContribution applies an employee-paid state fund (SDI, SUI) with its
// own wage cap. A zero cap means the fund is uncapped.
func fundContribution(fund *FundConfig, grossPay, ytdWages decimal.Decimal) decimal.Decimal {
	if fund == nil {
		return decimal.Zero
	}
	wages := grossPay
	if !fund.WageCap.IsZero() {
		wages = cappedWages(grossPay, ytdWages, fund.WageCap)
	}
	return round2(wages.Mul(fund.Rate))
}

// State computes state income tax plus SDI/SUI contributions. Unknown state
// codes fail with UnsupportedStateError; state income tax never defaults.
func (e *Engine) State(code string, in WageInput) (StateResult, error) {
	cfg, ok := e.cfg.State(code)
	if !ok {
		return StateResult{}, &UnsupportedStateError{Code: code, Supported: e.cfg.SupportedStates()}
	}

	periods := in.periods()
	var incomeTax, taxable, marginal decimal.Decimal

	switch cfg.Kind {
	case StateKindNone:
		// No income tax; fall through with zeros.
	case StateKindFlat:
		deduction := stateDeduction(cfg, in.FilingStatus)
		taxable = nonNegative(in.GrossPay.Sub(deduction.Div(periods)))
		incomeTax = round2(taxable.Mul(cfg.FlatRate))
		marginal = cfg.FlatRate
	case StateKindProgressive:
		brackets := stateBrackets(cfg, in.FilingStatus)
		deduction := stateDeduction(cfg, in.FilingStatus)
		taxable = nonNegative(in.GrossPay.Sub(deduction.Div(periods)))
		annual := taxable.Mul(periods)
		annualTax := bracketTax(brackets, annual)
		if !cfg.ExemptionCredit.IsZero() {
			credit := cfg.ExemptionCredit.Mul(decimal.NewFromInt(int64(in.Allowances + 1)))
			annualTax = nonNegative(annualTax.Sub(credit))
		}
		incomeTax = round2(annualTax.Div(periods))
		marginal = findBracket(brackets, annual).Rate
	}

	sdi := fundContribution(cfg.Disability, in.GrossPay, in.YTDGrossWages)
	sui := fundContribution(cfg.Unemployment, in.GrossPay, in.YTDGrossWages)

	total := round2(incomeTax.Add(sdi).Add(sui))
	if err := guardResult("state "+cfg.Code, incomeTax, sdi, sui, total); err != nil {
		return StateResult{}, err
	}

	return StateResult{
		IncomeTax: incomeTax,
		SDI:       sdi,
		SUI:       sui,
		Total:     total,
		Details: StateDetails{
			TaxableWages: round2(taxable),
			MarginalRate: marginal,
		},
	}, nil
}
