package tax

import "github.com/shopspring/decimal"

// Built-in jurisdiction tables. 2024 is the reference year; Load falls back
// to it for unknown years so a missing override file never leaves the engine
// without rates.

func d(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

func pct(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value).Div(decimal.NewFromInt(100))
}

type bracketRow struct {
	upper float64 // 0 = unbounded top bracket
	rate  float64 // percent
}

// progressive expands upper-bound/rate rows into brackets with cumulative
// base amounts, so bracket lookup never re-sums lower brackets.
func progressive(rows ...bracketRow) []Bracket {
	out := make([]Bracket, 0, len(rows))
	min := decimal.Zero
	base := decimal.Zero
	for _, row := range rows {
		bracket := Bracket{Min: min, Base: base, Rate: pct(row.rate)}
		if row.upper > 0 {
			bracket.Max = d(row.upper)
			base = base.Add(bracket.Max.Sub(min).Mul(bracket.Rate))
			min = bracket.Max
		}
		out = append(out, bracket)
	}
	return out
}

func doubled(brackets []Bracket) []Bracket {
	two := decimal.NewFromInt(2)
	out := make([]Bracket, len(brackets))
	for i, b := range brackets {
		out[i] = Bracket{Min: b.Min.Mul(two), Max: b.Max.Mul(two), Base: b.Base.Mul(two), Rate: b.Rate}
	}
	return out
}

func federal2024() FederalConfig {
	single := progressive(
		bracketRow{11600, 10}, bracketRow{47150, 12}, bracketRow{100525, 22},
		bracketRow{191950, 24}, bracketRow{243725, 32}, bracketRow{609350, 35},
		bracketRow{0, 37},
	)
	joint := progressive(
		bracketRow{23200, 10}, bracketRow{94300, 12}, bracketRow{201050, 22},
		bracketRow{383900, 24}, bracketRow{487450, 32}, bracketRow{731200, 35},
		bracketRow{0, 37},
	)
	separate := progressive(
		bracketRow{11600, 10}, bracketRow{47150, 12}, bracketRow{100525, 22},
		bracketRow{191950, 24}, bracketRow{243725, 32}, bracketRow{365600, 35},
		bracketRow{0, 37},
	)
	household := progressive(
		bracketRow{16550, 10}, bracketRow{63100, 12}, bracketRow{100500, 22},
		bracketRow{191950, 24}, bracketRow{243725, 32}, bracketRow{609350, 35},
		bracketRow{0, 37},
	)
	return FederalConfig{
		Brackets: map[FilingStatus][]Bracket{
			FilingSingle:             single,
			FilingMarriedJointly:     joint,
			FilingMarriedSeparately:  separate,
			FilingHeadOfHousehold:    household,
			FilingQualifyingSurvivor: joint,
		},
		StandardDeduction: map[FilingStatus]decimal.Decimal{
			FilingSingle:             d(14600),
			FilingMarriedJointly:     d(29200),
			FilingMarriedSeparately:  d(14600),
			FilingHeadOfHousehold:    d(21900),
			FilingQualifyingSurvivor: d(29200),
		},
		DependentCredit:             d(2000),
		SocialSecurityRate:          pct(6.2),
		SocialSecurityWageCap:       d(168600),
		MedicareRate:                pct(1.45),
		AdditionalMedicareRate:      pct(0.9),
		AdditionalMedicareThreshold: d(200000),
	}
}

func noTaxState(code, name string) StateConfig {
	return StateConfig{Code: code, Name: name, Kind: StateKindNone}
}

func flatState(code, name string, ratePct, deduction float64) StateConfig {
	return StateConfig{
		Code:     code,
		Name:     name,
		Kind:     StateKindFlat,
		FlatRate: pct(ratePct),
		StandardDeduction: map[FilingStatus]decimal.Decimal{
			FilingSingle: d(deduction),
		},
	}
}

func states2024() map[string]StateConfig {
	out := map[string]StateConfig{}
	add := func(cfg StateConfig) { out[cfg.Code] = cfg }

	// No-income-tax states.
	add(noTaxState("AK", "Alaska"))
	add(noTaxState("FL", "Florida"))
	add(noTaxState("NV", "Nevada"))
	add(noTaxState("NH", "New Hampshire"))
	add(noTaxState("SD", "South Dakota"))
	add(noTaxState("TN", "Tennessee"))
	add(noTaxState("TX", "Texas"))
	add(noTaxState("WA", "Washington"))
	add(noTaxState("WY", "Wyoming"))

	// Progressive-bracket states with full tables.
	caSingle := progressive(
		bracketRow{10412, 1}, bracketRow{24684, 2}, bracketRow{38959, 4},
		bracketRow{53980, 6}, bracketRow{66842, 8}, bracketRow{338639, 9.3},
		bracketRow{406364, 10.3}, bracketRow{677275, 11.3}, bracketRow{0, 12.3},
	)
	add(StateConfig{
		Code: "CA", Name: "California", Kind: StateKindProgressive,
		Brackets: map[FilingStatus][]Bracket{
			FilingSingle:          caSingle,
			FilingMarriedJointly:  doubled(caSingle),
			FilingHeadOfHousehold: caSingle,
		},
		MFSUsesSingleBrackets: true,
		StandardDeduction: map[FilingStatus]decimal.Decimal{
			FilingSingle:         d(5363),
			FilingMarriedJointly: d(10726),
		},
		ExemptionCredit: d(144),
		Disability:      &FundConfig{Rate: pct(1.1)}, // SDI cap repealed in 2024
	})

	nySingle := progressive(
		bracketRow{8500, 4}, bracketRow{11700, 4.5}, bracketRow{13900, 5.25},
		bracketRow{80650, 5.5}, bracketRow{215400, 6}, bracketRow{1077550, 6.85},
		bracketRow{5000000, 9.65}, bracketRow{25000000, 10.3}, bracketRow{0, 10.9},
	)
	add(StateConfig{
		Code: "NY", Name: "New York", Kind: StateKindProgressive,
		Brackets: map[FilingStatus][]Bracket{
			FilingSingle:          nySingle,
			FilingMarriedJointly:  doubled(nySingle),
			FilingHeadOfHousehold: nySingle,
		},
		MFSUsesSingleBrackets: true,
		StandardDeduction: map[FilingStatus]decimal.Decimal{
			FilingSingle:         d(8000),
			FilingMarriedJointly: d(16050),
		},
	})

	mdBrackets := progressive(
		bracketRow{1000, 2}, bracketRow{2000, 3}, bracketRow{3000, 4},
		bracketRow{100000, 4.75}, bracketRow{125000, 5}, bracketRow{150000, 5.25},
		bracketRow{250000, 5.5}, bracketRow{0, 5.75},
	)
	add(StateConfig{
		Code: "MD", Name: "Maryland", Kind: StateKindProgressive,
		Brackets: map[FilingStatus][]Bracket{
			FilingSingle:         mdBrackets,
			FilingMarriedJointly: mdBrackets,
		},
		MFSUsesSingleBrackets: true,
		StandardDeduction: map[FilingStatus]decimal.Decimal{
			FilingSingle:         d(2550),
			FilingMarriedJointly: d(5150),
		},
		RequiresCounty: true,
	})

	njSingle := progressive(
		bracketRow{20000, 1.4}, bracketRow{35000, 1.75}, bracketRow{40000, 3.5},
		bracketRow{75000, 5.525}, bracketRow{500000, 6.37}, bracketRow{1000000, 8.97},
		bracketRow{0, 10.75},
	)
	add(StateConfig{
		Code: "NJ", Name: "New Jersey", Kind: StateKindProgressive,
		Brackets: map[FilingStatus][]Bracket{
			FilingSingle:         njSingle,
			FilingMarriedJointly: doubled(njSingle),
		},
		MFSUsesSingleBrackets: true,
		Disability:            &FundConfig{Rate: pct(0.14), WageCap: d(161400)},
		Unemployment:          &FundConfig{Rate: pct(0.3825), WageCap: d(42300)},
	})

	ohBrackets := progressive(
		bracketRow{26050, 0}, bracketRow{100000, 2.75}, bracketRow{0, 3.5},
	)
	add(StateConfig{
		Code: "OH", Name: "Ohio", Kind: StateKindProgressive,
		Brackets: map[FilingStatus][]Bracket{
			FilingSingle:         ohBrackets,
			FilingMarriedJointly: ohBrackets,
		},
		MFSUsesSingleBrackets: true,
	})

	vaBrackets := progressive(
		bracketRow{3000, 2}, bracketRow{5000, 3}, bracketRow{17000, 5}, bracketRow{0, 5.75},
	)
	add(StateConfig{
		Code: "VA", Name: "Virginia", Kind: StateKindProgressive,
		Brackets: map[FilingStatus][]Bracket{
			FilingSingle:         vaBrackets,
			FilingMarriedJointly: vaBrackets,
		},
		StandardDeduction: map[FilingStatus]decimal.Decimal{
			FilingSingle:         d(8000),
			FilingMarriedJointly: d(16000),
		},
	})

	// Flat-rate states.
	add(flatState("AZ", "Arizona", 2.5, 0))
	add(flatState("CO", "Colorado", 4.4, 0))
	add(flatState("GA", "Georgia", 5.49, 12000))
	add(flatState("IL", "Illinois", 4.95, 0))
	add(flatState("IN", "Indiana", 3.05, 0))
	add(flatState("KY", "Kentucky", 4.0, 3160))
	add(flatState("MA", "Massachusetts", 5.0, 0))
	add(flatState("MI", "Michigan", 4.25, 0))
	add(flatState("NC", "North Carolina", 4.5, 12750))
	add(flatState("PA", "Pennsylvania", 3.07, 0))
	add(flatState("UT", "Utah", 4.65, 0))

	// Remaining jurisdictions carry single effective rates until their full
	// bracket tables are transcribed for the year.
	add(flatState("AL", "Alabama", 5.0, 2500))
	add(flatState("AR", "Arkansas", 4.4, 2200))
	add(flatState("CT", "Connecticut", 5.5, 0))
	add(flatState("DC", "District of Columbia", 8.5, 0))
	add(flatState("DE", "Delaware", 5.5, 3250))
	add(flatState("HI", "Hawaii", 7.25, 2200))
	add(flatState("IA", "Iowa", 5.7, 0))
	add(flatState("ID", "Idaho", 5.8, 0))
	add(flatState("KS", "Kansas", 5.25, 3500))
	add(flatState("LA", "Louisiana", 4.25, 0))
	add(flatState("ME", "Maine", 7.15, 0))
	add(flatState("MN", "Minnesota", 7.05, 0))
	add(flatState("MO", "Missouri", 4.8, 0))
	add(flatState("MS", "Mississippi", 4.7, 2300))
	add(flatState("MT", "Montana", 5.9, 0))
	add(flatState("ND", "North Dakota", 2.5, 0))
	add(flatState("NE", "Nebraska", 5.84, 0))
	add(flatState("NM", "New Mexico", 4.9, 0))
	add(flatState("OK", "Oklahoma", 4.75, 0))
	add(flatState("OR", "Oregon", 8.75, 0))
	add(flatState("RI", "Rhode Island", 4.75, 0))
	add(flatState("SC", "South Carolina", 6.4, 0))
	add(flatState("VT", "Vermont", 6.6, 0))
	add(flatState("WV", "West Virginia", 5.12, 0))
	add(flatState("WI", "Wisconsin", 5.3, 0))

	return out
}

func locals2024() map[string]LocalConfig {
	out := map[string]LocalConfig{}
	add := func(cfg LocalConfig) { out[localKey(cfg.City, cfg.State)] = cfg }

	add(LocalConfig{
		City: "NEW YORK CITY", State: "NY", Kind: LocalKindResident,
		TaxType: "CityIncome", ResidentRate: pct(3.078),
	})
	add(LocalConfig{
		City: "PHILADELPHIA", State: "PA", Kind: LocalKindReciprocal,
		TaxType: "CityWage", ResidentRate: pct(3.75), NonResidentRate: pct(3.44),
	})
	add(LocalConfig{
		City: "PITTSBURGH", State: "PA", Kind: LocalKindReciprocal,
		TaxType: "CityWage", ResidentRate: pct(1.0), NonResidentRate: pct(1.0),
		SchoolDistrictRate: pct(2.0),
		ServiceTaxAnnual:   d(52),
		ServiceTaxFloor:    d(12000),
	})
	add(LocalConfig{
		City: "COLUMBUS", State: "OH", Kind: LocalKindReciprocal,
		TaxType: "MunicipalIncome", ResidentRate: pct(2.5), NonResidentRate: pct(2.5),
	})
	add(LocalConfig{
		City: "CLEVELAND", State: "OH", Kind: LocalKindReciprocal,
		TaxType: "MunicipalIncome", ResidentRate: pct(2.5), NonResidentRate: pct(2.5),
	})
	add(LocalConfig{
		City: "CINCINNATI", State: "OH", Kind: LocalKindReciprocal,
		TaxType: "MunicipalIncome", ResidentRate: pct(1.8), NonResidentRate: pct(1.8),
	})
	add(LocalConfig{
		City: "DETROIT", State: "MI", Kind: LocalKindReciprocal,
		TaxType: "CityIncome", ResidentRate: pct(2.4), NonResidentRate: pct(1.2),
	})
	add(LocalConfig{
		City: "ST. LOUIS", State: "MO", Kind: LocalKindReciprocal,
		TaxType: "EarningsTax", ResidentRate: pct(1.0), NonResidentRate: pct(1.0),
	})
	add(LocalConfig{
		City: "KANSAS CITY", State: "MO", Kind: LocalKindReciprocal,
		TaxType: "EarningsTax", ResidentRate: pct(1.0), NonResidentRate: pct(1.0),
	})
	add(LocalConfig{
		City: "BIRMINGHAM", State: "AL", Kind: LocalKindReciprocal,
		TaxType: "Occupational", ResidentRate: pct(1.0), NonResidentRate: pct(1.0),
	})
	add(LocalConfig{
		City: "WILMINGTON", State: "DE", Kind: LocalKindReciprocal,
		TaxType: "EarnedIncome", ResidentRate: pct(1.25), NonResidentRate: pct(1.25),
	})

	// Maryland's county tax is residency-based and state-wide; the wildcard
	// city entry catches every Maryland address.
	add(LocalConfig{
		City: "*", State: "MD", Kind: LocalKindCounty,
		TaxType: "CountyIncome",
		CountyRates: map[string]decimal.Decimal{
			"ALLEGANY":       pct(3.03),
			"ANNE ARUNDEL":   pct(2.81),
			"BALTIMORE":      pct(3.20),
			"BALTIMORE CITY": pct(3.20),
			"CALVERT":        pct(3.00),
			"CARROLL":        pct(3.03),
			"FREDERICK":      pct(2.96),
			"HARFORD":        pct(3.06),
			"HOWARD":         pct(3.20),
			"MONTGOMERY":     pct(3.20),
			"PRINCE GEORGES": pct(3.20),
			"WASHINGTON":     pct(2.95),
		},
		DefaultCountyRate: pct(3.20),
	})

	return out
}

func suta2024() (map[string]SutaConfig, SutaConfig) {
	table := map[string]SutaConfig{
		"CA": {WageBase: d(7000), NewEmployerRate: pct(3.4), MinRate: pct(1.5), MaxRate: pct(6.2)},
		"CO": {WageBase: d(23800), NewEmployerRate: pct(1.7), MinRate: pct(0.75), MaxRate: pct(10.39)},
		"FL": {WageBase: d(7000), NewEmployerRate: pct(2.7), MinRate: pct(0.1), MaxRate: pct(5.4)},
		"GA": {WageBase: d(9500), NewEmployerRate: pct(2.7), MinRate: pct(0.04), MaxRate: pct(8.1)},
		"IL": {WageBase: d(13590), NewEmployerRate: pct(3.95), MinRate: pct(0.85), MaxRate: pct(8.65)},
		"MA": {WageBase: d(15000), NewEmployerRate: pct(2.42), MinRate: pct(0.73), MaxRate: pct(11.13)},
		"MD": {WageBase: d(8500), NewEmployerRate: pct(2.6), MinRate: pct(1.0), MaxRate: pct(10.5)},
		"MI": {WageBase: d(9500), NewEmployerRate: pct(2.7), MinRate: pct(0.06), MaxRate: pct(10.3)},
		"NC": {WageBase: d(31400), NewEmployerRate: pct(1.0), MinRate: pct(0.06), MaxRate: pct(5.76)},
		"NJ": {WageBase: d(42300), NewEmployerRate: pct(3.4), MinRate: pct(1.2), MaxRate: pct(7.0)},
		"NY": {WageBase: d(12500), NewEmployerRate: pct(4.1), MinRate: pct(2.1), MaxRate: pct(9.9)},
		"OH": {WageBase: d(9000), NewEmployerRate: pct(2.7), MinRate: pct(0.8), MaxRate: pct(10.2)},
		"PA": {WageBase: d(10000), NewEmployerRate: pct(3.822), MinRate: pct(1.419), MaxRate: pct(10.3734)},
		"TX": {WageBase: d(9000), NewEmployerRate: pct(2.7), MinRate: pct(0.25), MaxRate: pct(6.25)},
		"VA": {WageBase: d(8000), NewEmployerRate: pct(2.5), MinRate: pct(0.1), MaxRate: pct(6.2)},
		"WA": {WageBase: d(68500), NewEmployerRate: pct(1.25), MinRate: pct(0.27), MaxRate: pct(8.15)},
	}
	fallback := SutaConfig{WageBase: d(7000), NewEmployerRate: pct(2.7), MinRate: pct(0.5), MaxRate: pct(6.2)}
	return table, fallback
}

// Load builds the immutable snapshot for a tax year. Years without their own
// tables use the 2024 reference tables.
func Load(year int) *Config {
	if year == 0 {
		year = 2024
	}
	suta, fallback := suta2024()
	cfg := &Config{
		Year:        year,
		Federal:     federal2024(),
		Futa:        FutaConfig{WageCap: d(7000), EffectiveRate: pct(0.6)},
		States:      states2024(),
		Locals:      locals2024(),
		Suta:        suta,
		DefaultSuta: fallback,
	}
	return cfg.finalize()
}
