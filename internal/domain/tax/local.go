package tax

import "github.com/shopspring/decimal"

// LocalInput identifies where an employee lives and works. City, county and
// state strings are matched case-insensitively after trimming.
type LocalInput struct {
	City       string `json:"city"`
	County     string `json:"county"`
	State      string `json:"state"`
	WorkCity   string `json:"workCity"`
	WorkState  string `json:"workState"`
	IsResident bool   `json:"isResident"`

	Wages WageInput `json:"wages"`
}

type LocalDetails struct {
	Jurisdiction string          `json:"jurisdiction"`
	AppliedRate  decimal.Decimal `json:"appliedRate"`
}

type LocalResult struct {
	CityTax           decimal.Decimal `json:"cityTax"`
	CountyTax         decimal.Decimal `json:"countyTax"`
	SchoolDistrictTax decimal.Decimal `json:"schoolDistrictTax"`
	OtherLocalTax     decimal.Decimal `json:"otherLocalTax"`
	Total             decimal.Decimal `json:"total"`
	TaxType           string          `json:"taxType"`
	Details           LocalDetails    `json:"details"`
}

func zeroLocalResult() LocalResult {
	return LocalResult{TaxType: "None"}
}

// worksInCity reports whether the employee's work location is the taxing
// city. An unset work city means the employee works where the tax applies.
func worksInCity(in LocalInput, cfg LocalConfig) bool {
	if normalize(in.WorkCity) == "" {
		return true
	}
	if normalize(in.WorkCity) != normalize(cfg.City) {
		return false
	}
	return normalize(in.WorkState) == "" || normalize(in.WorkState) == normalize(cfg.State)
}

func (e *Engine) countyRate(cfg LocalConfig, in LocalInput) decimal.Decimal {
	if county := normalize(in.County); county != "" {
		if rate, ok := cfg.CountyRates[county]; ok {
			return rate
		}
	}
	if rate, ok := cfg.CountyRates[normalize(in.City)]; ok {
		return rate
	}
	return cfg.DefaultCountyRate
}

// Local computes city, county, school district and service taxes for one
// paycheck. A (city, state) pair with no configured tax is not an error; it
// returns an explicit zero result with tax type "None".
func (e *Engine) Local(in LocalInput) (LocalResult, error) {
	cfg, ok := e.cfg.Local(in.City, in.State)
	if !ok {
		return zeroLocalResult(), nil
	}

	gross := in.Wages.GrossPay
	periods := in.Wages.periods()
	result := LocalResult{TaxType: cfg.TaxType}
	var applied decimal.Decimal

	switch cfg.Kind {
	case LocalKindResident:
		if in.IsResident {
			applied = cfg.ResidentRate
			result.CityTax = round2(gross.Mul(applied))
		}
	case LocalKindReciprocal:
		switch {
		case in.IsResident:
			applied = cfg.ResidentRate
		case worksInCity(in, cfg):
			applied = cfg.NonResidentRate
		}
		result.CityTax = round2(gross.Mul(applied))
	case LocalKindCounty:
		// Residency-based regardless of work location.
		if in.IsResident {
			applied = e.countyRate(cfg, in)
			result.CountyTax = round2(gross.Mul(applied))
		}
	}

	if !cfg.SchoolDistrictRate.IsZero() && in.IsResident {
		result.SchoolDistrictTax = round2(gross.Mul(cfg.SchoolDistrictRate))
	}

	// Flat annual service taxes are prorated by the employee's actual period
	// count and levied only once projected annual earnings clear the floor.
	if !cfg.ServiceTaxAnnual.IsZero() && (in.IsResident || worksInCity(in, cfg)) {
		projected := gross.Mul(periods)
		if projected.GreaterThanOrEqual(cfg.ServiceTaxFloor) {
			result.OtherLocalTax = round2(cfg.ServiceTaxAnnual.Div(periods))
		}
	}

	result.Total = round2(result.CityTax.
		Add(result.CountyTax).
		Add(result.SchoolDistrictTax).
		Add(result.OtherLocalTax))
	if err := guardResult("local "+cfg.City, result.CityTax, result.CountyTax, result.SchoolDistrictTax, result.OtherLocalTax, result.Total); err != nil {
		return LocalResult{}, err
	}

	result.Details = LocalDetails{
		Jurisdiction: normalize(in.City) + ", " + normalize(in.State),
		AppliedRate:  applied,
	}
	return result, nil
}
