package tax

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type FilingStatus string

const (
	FilingSingle             FilingStatus = "SINGLE"
	FilingMarriedJointly     FilingStatus = "MARRIED_FILING_JOINTLY"
	FilingMarriedSeparately  FilingStatus = "MARRIED_FILING_SEPARATELY"
	FilingHeadOfHousehold    FilingStatus = "HEAD_OF_HOUSEHOLD"
	FilingQualifyingSurvivor FilingStatus = "QUALIFYING_SURVIVING_SPOUSE"
)

// Bracket is one row of a percentage-method table. Tax on annualized wages w
// with Min < w <= Max is Base + (w-Min)*Rate. A zero Max marks the top
// bracket (unbounded).
type Bracket struct {
	Min  decimal.Decimal
	Max  decimal.Decimal
	Base decimal.Decimal
	Rate decimal.Decimal
}

type FederalConfig struct {
	Brackets                    map[FilingStatus][]Bracket
	StandardDeduction           map[FilingStatus]decimal.Decimal
	DependentCredit             decimal.Decimal
	SocialSecurityRate          decimal.Decimal
	SocialSecurityWageCap       decimal.Decimal
	MedicareRate                decimal.Decimal
	AdditionalMedicareRate      decimal.Decimal
	AdditionalMedicareThreshold decimal.Decimal
}

type StateKind string

const (
	StateKindNone        StateKind = "none"
	StateKindFlat        StateKind = "flat"
	StateKindProgressive StateKind = "progressive"
)

// FundConfig describes an employee-paid state fund contribution (SDI, SUI,
// family leave). Independently wage-capped; a zero WageCap means uncapped.
type FundConfig struct {
	Rate    decimal.Decimal
	WageCap decimal.Decimal
}

type StateConfig struct {
	Code                  string
	Name                  string
	Kind                  StateKind
	FlatRate              decimal.Decimal
	StandardDeduction     map[FilingStatus]decimal.Decimal
	Brackets              map[FilingStatus][]Bracket
	MFSUsesSingleBrackets bool
	ExemptionCredit       decimal.Decimal
	Disability            *FundConfig
	Unemployment          *FundConfig
	RequiresCounty        bool
}

type LocalKind string

const (
	LocalKindNone       LocalKind = "none"
	LocalKindResident   LocalKind = "resident"
	LocalKindReciprocal LocalKind = "reciprocal"
	LocalKindCounty     LocalKind = "county"
)

type LocalConfig struct {
	City               string
	State              string
	Kind               LocalKind
	TaxType            string
	ResidentRate       decimal.Decimal
	NonResidentRate    decimal.Decimal
	SchoolDistrictRate decimal.Decimal
	CountyRates        map[string]decimal.Decimal
	DefaultCountyRate  decimal.Decimal
	// Flat annual service tax (e.g. a $52/year LST), prorated per period and
	// levied only above ServiceTaxFloor of annual earnings.
	ServiceTaxAnnual decimal.Decimal
	ServiceTaxFloor  decimal.Decimal
}

type SutaConfig struct {
	WageBase        decimal.Decimal
	NewEmployerRate decimal.Decimal
	MinRate         decimal.Decimal
	MaxRate         decimal.Decimal
}

type FutaConfig struct {
	WageCap       decimal.Decimal
	EffectiveRate decimal.Decimal
}

// Config is the immutable, versioned-by-year snapshot of all jurisdiction
// tables. Built once per tax year and shared by reference; a new year means
// a new snapshot, never edits of the old one.
type Config struct {
	Year        int
	Federal     FederalConfig
	Futa        FutaConfig
	States      map[string]StateConfig
	Locals      map[string]LocalConfig
	Suta        map[string]SutaConfig
	DefaultSuta SutaConfig

	supported []string
}

func localKey(city, state string) string {
	return normalize(city) + "|" + normalize(state)
}

func normalize(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// State resolves a state code case-insensitively.
func (c *Config) State(code string) (StateConfig, bool) {
	cfg, ok := c.States[normalize(code)]
	return cfg, ok
}

// Local resolves a (city, state) pair. A state-wide entry registered under
// city "*" (Maryland's county tax) matches any city in that state.
func (c *Config) Local(city, state string) (LocalConfig, bool) {
	if cfg, ok := c.Locals[localKey(city, state)]; ok {
		return cfg, true
	}
	cfg, ok := c.Locals[localKey("*", state)]
	return cfg, ok
}

// SupportedStates returns the sorted list of configured state codes.
func (c *Config) SupportedStates() []string {
	return c.supported
}

func (c *Config) finalize() *Config {
	codes := make([]string, 0, len(c.States))
	for code := range c.States {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	c.supported = codes
	return c
}

// fileOverrides is the YAML override shape. Only the values operators
// actually tune between years are exposed; everything else comes from the
// built-in tables.
type fileOverrides struct {
	Year    int `yaml:"year"`
	Federal struct {
		SocialSecurityWageCap       *decimal.Decimal `yaml:"socialSecurityWageCap"`
		AdditionalMedicareThreshold *decimal.Decimal `yaml:"additionalMedicareThreshold"`
		DependentCredit             *decimal.Decimal `yaml:"dependentCredit"`
	} `yaml:"federal"`
	Futa struct {
		WageCap       *decimal.Decimal `yaml:"wageCap"`
		EffectiveRate *decimal.Decimal `yaml:"effectiveRate"`
	} `yaml:"futa"`
	States map[string]struct {
		FlatRate          *decimal.Decimal `yaml:"flatRate"`
		DisabilityRate    *decimal.Decimal `yaml:"disabilityRate"`
		DisabilityWageCap *decimal.Decimal `yaml:"disabilityWageCap"`
	} `yaml:"states"`
	Suta map[string]struct {
		WageBase        *decimal.Decimal `yaml:"wageBase"`
		NewEmployerRate *decimal.Decimal `yaml:"newEmployerRate"`
		MinRate         *decimal.Decimal `yaml:"minRate"`
		MaxRate         *decimal.Decimal `yaml:"maxRate"`
	} `yaml:"suta"`
}

// LoadFile builds the snapshot for the built-in year and applies overrides
// from a YAML file on top. The returned snapshot is a fresh value; built-in
// tables are never mutated.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var overrides fileOverrides
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse tax config %s: %w", path, err)
	}

	cfg := Load(overrides.Year)
	if overrides.Federal.SocialSecurityWageCap != nil {
		cfg.Federal.SocialSecurityWageCap = *overrides.Federal.SocialSecurityWageCap
	}
	if overrides.Federal.AdditionalMedicareThreshold != nil {
		cfg.Federal.AdditionalMedicareThreshold = *overrides.Federal.AdditionalMedicareThreshold
	}
	if overrides.Federal.DependentCredit != nil {
		cfg.Federal.DependentCredit = *overrides.Federal.DependentCredit
	}
	if overrides.Futa.WageCap != nil {
		cfg.Futa.WageCap = *overrides.Futa.WageCap
	}
	if overrides.Futa.EffectiveRate != nil {
		cfg.Futa.EffectiveRate = *overrides.Futa.EffectiveRate
	}
	for code, patch := range overrides.States {
		state, ok := cfg.States[normalize(code)]
		if !ok {
			return nil, fmt.Errorf("tax config %s overrides unknown state %q", path, code)
		}
		if patch.FlatRate != nil {
			state.FlatRate = *patch.FlatRate
		}
		if patch.DisabilityRate != nil || patch.DisabilityWageCap != nil {
			fund := FundConfig{}
			if state.Disability != nil {
				fund = *state.Disability
			}
			if patch.DisabilityRate != nil {
				fund.Rate = *patch.DisabilityRate
			}
			if patch.DisabilityWageCap != nil {
				fund.WageCap = *patch.DisabilityWageCap
			}
			state.Disability = &fund
		}
		cfg.States[normalize(code)] = state
	}
	for code, patch := range overrides.Suta {
		suta := cfg.Suta[normalize(code)]
		if patch.WageBase != nil {
			suta.WageBase = *patch.WageBase
		}
		if patch.NewEmployerRate != nil {
			suta.NewEmployerRate = *patch.NewEmployerRate
		}
		if patch.MinRate != nil {
			suta.MinRate = *patch.MinRate
		}
		if patch.MaxRate != nil {
			suta.MaxRate = *patch.MaxRate
		}
		cfg.Suta[normalize(code)] = suta
	}
	return cfg, nil
}
