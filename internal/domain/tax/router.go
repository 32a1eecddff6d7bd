package tax

// Engine routes jurisdiction strings to the calculators backed by one
// immutable year snapshot. Safe for concurrent use; it never mutates the
// snapshot after construction.
type Engine struct {
	cfg *Config
}

func NewEngine(cfg *Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Year() int {
	return e.cfg.Year
}

func (e *Engine) SupportedStates() []string {
	return e.cfg.SupportedStates()
}

// CheckJurisdiction verifies that an employee's addresses can be routed
// before any calculation starts. States requiring a county for local tax
// (Maryland) fail without one.
func (e *Engine) CheckJurisdiction(stateCode, county string) error {
	cfg, ok := e.cfg.State(stateCode)
	if !ok {
		return &UnsupportedStateError{Code: stateCode, Supported: e.cfg.SupportedStates()}
	}
	if cfg.RequiresCounty && normalize(county) == "" {
		return &MissingFieldError{Field: "county", Detail: cfg.Name + " residents must have a county for local tax"}
	}
	return nil
}
