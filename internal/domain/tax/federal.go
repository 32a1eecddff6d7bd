package tax

import "github.com/shopspring/decimal"

// WageInput carries the per-paycheck wage and W-4 figures shared by the
// federal and state calculators. Steps 3, 4a, 4b and 4c of the W-4 map to
// Allowances, OtherIncome, Deductions and AdditionalWithholding.
type WageInput struct {
	GrossPay              decimal.Decimal `json:"grossPay"`
	FilingStatus          FilingStatus    `json:"filingStatus"`
	Allowances            int             `json:"allowances"`
	AdditionalWithholding decimal.Decimal `json:"additionalWithholding"`
	OtherIncome           decimal.Decimal `json:"otherIncome"`
	Deductions            decimal.Decimal `json:"deductions"`
	PayPeriodsPerYear     int             `json:"payPeriodsPerYear"`
	YTDGrossWages         decimal.Decimal `json:"ytdGrossWages"`
}

func (in WageInput) periods() decimal.Decimal {
	if in.PayPeriodsPerYear <= 0 {
		return decimal.NewFromInt(26)
	}
	return decimal.NewFromInt(int64(in.PayPeriodsPerYear))
}

type FederalDetails struct {
	TaxableWages      decimal.Decimal `json:"taxableWages"`
	StandardDeduction decimal.Decimal `json:"standardDeduction"`
	DependentCredit   decimal.Decimal `json:"dependentCredit"`
}

type FederalResult struct {
	IncomeTax          decimal.Decimal `json:"incomeTax"`
	SocialSecurity     decimal.Decimal `json:"socialSecurity"`
	Medicare           decimal.Decimal `json:"medicare"`
	AdditionalMedicare decimal.Decimal `json:"additionalMedicare"`
	Total              decimal.Decimal `json:"total"`
	Details            FederalDetails  `json:"details"`
}

// findBracket returns the row covering annualized wages. Brackets are sorted
// ascending and the top row has a zero Max, so the first row whose Max is
// unbounded or at least the amount wins. Zero wages land in the first row.
func findBracket(brackets []Bracket, annual decimal.Decimal) Bracket {
	for _, bracket := range brackets {
		if bracket.Max.IsZero() || annual.LessThanOrEqual(bracket.Max) {
			return bracket
		}
	}
	return brackets[len(brackets)-1]
}

func bracketTax(brackets []Bracket, annual decimal.Decimal) decimal.Decimal {
	bracket := findBracket(brackets, annual)
	return bracket.Base.Add(annual.Sub(bracket.Min).Mul(bracket.Rate))
}

// Federal computes income tax withholding by the annualized percentage
// method, plus Social Security, Medicare and Additional Medicare.
func (e *Engine) Federal(in WageInput) (FederalResult, error) {
	fed := e.cfg.Federal
	periods := in.periods()

	deduction, ok := fed.StandardDeduction[in.FilingStatus]
	if !ok {
		deduction = fed.StandardDeduction[FilingSingle]
	}
	brackets, ok := fed.Brackets[in.FilingStatus]
	if !ok {
		brackets = fed.Brackets[FilingSingle]
	}

	taxable := nonNegative(in.GrossPay.
		Add(in.OtherIncome.Div(periods)).
		Sub(deduction.Div(periods)).
		Sub(in.Deductions.Div(periods)))
	annual := taxable.Mul(periods)
	annualTax := bracketTax(brackets, annual)

	credit := fed.DependentCredit.Mul(decimal.NewFromInt(int64(in.Allowances)))
	incomeTax := round2(nonNegative(annualTax.Div(periods).Sub(credit.Div(periods))).
		Add(in.AdditionalWithholding))

	ssWages := cappedWages(in.GrossPay, in.YTDGrossWages, fed.SocialSecurityWageCap)
	socialSecurity := round2(ssWages.Mul(fed.SocialSecurityRate))

	medicare := round2(in.GrossPay.Mul(fed.MedicareRate))

	// Withholding threshold is a flat 200k regardless of filing status; the
	// per-status liability threshold is reconciled on the employee's return.
	overThreshold := nonNegative(in.YTDGrossWages.Add(in.GrossPay).Sub(fed.AdditionalMedicareThreshold))
	additional := round2(decimal.Min(in.GrossPay, overThreshold).Mul(fed.AdditionalMedicareRate))

	total := round2(incomeTax.Add(socialSecurity).Add(medicare).Add(additional))
	if err := guardResult("federal", incomeTax, socialSecurity, medicare, additional, total); err != nil {
		return FederalResult{}, err
	}

	return FederalResult{
		IncomeTax:          incomeTax,
		SocialSecurity:     socialSecurity,
		Medicare:           medicare,
		AdditionalMedicare: additional,
		Total:              total,
		Details: FederalDetails{
			TaxableWages:      round2(taxable),
			StandardDeduction: deduction,
			DependentCredit:   credit,
		},
	}, nil
}
