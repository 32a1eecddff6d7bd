package tax

import "github.com/shopspring/decimal"

// EmployerInput drives the employer-side calculation. SutaRate is the
// company's experience rating when known; nil means the state's new-employer
// rate applies. New employers have no experience rating yet, so their
// SutaRate is ignored.
type EmployerInput struct {
	GrossPay      decimal.Decimal  `json:"grossPay"`
	State         string           `json:"state"`
	YTDGrossWages decimal.Decimal  `json:"ytdGrossWages"`
	SutaRate      *decimal.Decimal `json:"sutaRate,omitempty"`
	IsNewEmployer bool             `json:"isNewEmployer"`
}

type EmployerDetails struct {
	FutaWages       decimal.Decimal `json:"futaWages"`
	SutaWages       decimal.Decimal `json:"sutaWages"`
	AppliedSutaRate decimal.Decimal `json:"appliedSutaRate"`
}

type EmployerResult struct {
	Futa           decimal.Decimal `json:"futa"`
	Suta           decimal.Decimal `json:"suta"`
	SocialSecurity decimal.Decimal `json:"socialSecurity"`
	Medicare       decimal.Decimal `json:"medicare"`
	Total          decimal.Decimal `json:"total"`
	Details        EmployerDetails `json:"details"`
}

func clampRate(rate, min, max decimal.Decimal) decimal.Decimal {
	if rate.LessThan(min) {
		return min
	}
	if rate.GreaterThan(max) {
		return max
	}
	return rate
}

// Employer computes FUTA, SUTA and the employer FICA match. Unknown states
// fall back to the default SUTA table; employer tax always computes.
func (e *Engine) Employer(in EmployerInput) (EmployerResult, error) {
	fed := e.cfg.Federal

	futaWages := cappedWages(in.GrossPay, in.YTDGrossWages, e.cfg.Futa.WageCap)
	futa := round2(futaWages.Mul(e.cfg.Futa.EffectiveRate))

	suta, ok := e.cfg.Suta[normalize(in.State)]
	if !ok {
		suta = e.cfg.DefaultSuta
	}
	rate := suta.NewEmployerRate
	if !in.IsNewEmployer && in.SutaRate != nil {
		rate = clampRate(*in.SutaRate, suta.MinRate, suta.MaxRate)
	}
	sutaWages := cappedWages(in.GrossPay, in.YTDGrossWages, suta.WageBase)
	sutaTax := round2(sutaWages.Mul(rate))

	// Employer FICA mirrors the employee side with no Additional Medicare;
	// the surtax is employee-only.
	ssWages := cappedWages(in.GrossPay, in.YTDGrossWages, fed.SocialSecurityWageCap)
	socialSecurity := round2(ssWages.Mul(fed.SocialSecurityRate))
	medicare := round2(in.GrossPay.Mul(fed.MedicareRate))

	total := round2(futa.Add(sutaTax).Add(socialSecurity).Add(medicare))
	if err := guardResult("employer", futa, sutaTax, socialSecurity, medicare, total); err != nil {
		return EmployerResult{}, err
	}

	return EmployerResult{
		Futa:           futa,
		Suta:           sutaTax,
		SocialSecurity: socialSecurity,
		Medicare:       medicare,
		Total:          total,
		Details: EmployerDetails{
			FutaWages:       round2(futaWages),
			SutaWages:       round2(sutaWages),
			AppliedSutaRate: rate,
		},
	}, nil
}
