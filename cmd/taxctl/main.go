package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"paycore/internal/domain/tax"
)

var (
	flagYear       int
	flagConfigFile string

	flagGross        string
	flagFilingStatus string
	flagPeriods      int
	flagAllowances   int
	flagExtra        string
	flagYTD          string
	flagState        string
	flagCity         string
	flagCounty       string
	flagResident     bool
	flagSutaRate     string
	flagNewEmployer  bool
)

func main() {
	root := &cobra.Command{
		Use:          "taxctl",
		Short:        "Payroll tax calculations from the command line",
		SilenceUsage: true,
	}
	root.PersistentFlags().IntVar(&flagYear, "year", 2024, "tax year")
	root.PersistentFlags().StringVar(&flagConfigFile, "config", "", "tax table override file (YAML)")

	root.AddCommand(newStatesCmd(), newPreviewCmd(), newEmployerCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newEngine() (*tax.Engine, error) {
	if flagConfigFile != "" {
		cfg, err := tax.LoadFile(flagConfigFile)
		if err != nil {
			return nil, err
		}
		return tax.NewEngine(cfg), nil
	}
	return tax.NewEngine(tax.Load(flagYear)), nil
}

func newStatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "states",
		Short: "List states with configured withholding tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			for _, code := range engine.SupportedStates() {
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		},
	}
}

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Calculate withholding for a single paycheck",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}

			gross, err := decimal.NewFromString(flagGross)
			if err != nil {
				return fmt.Errorf("invalid --gross: %w", err)
			}
			ytd := decimal.Zero
			if flagYTD != "" {
				if ytd, err = decimal.NewFromString(flagYTD); err != nil {
					return fmt.Errorf("invalid --ytd: %w", err)
				}
			}
			extra := decimal.Zero
			if flagExtra != "" {
				if extra, err = decimal.NewFromString(flagExtra); err != nil {
					return fmt.Errorf("invalid --extra: %w", err)
				}
			}

			wage := tax.WageInput{
				GrossPay:              gross,
				FilingStatus:          tax.FilingStatus(flagFilingStatus),
				Allowances:            flagAllowances,
				AdditionalWithholding: extra,
				PayPeriodsPerYear:     flagPeriods,
				YTDGrossWages:         ytd,
			}

			out := map[string]any{}

			federal, err := engine.Federal(wage)
			if err != nil {
				return err
			}
			out["federal"] = federal

			if flagState != "" {
				state, err := engine.State(flagState, wage)
				if err != nil {
					return err
				}
				out["state"] = state
			}

			if flagCity != "" {
				local, err := engine.Local(tax.LocalInput{
					City:       flagCity,
					County:     flagCounty,
					State:      flagState,
					IsResident: flagResident,
					Wages:      wage,
				})
				if err != nil {
					return err
				}
				out["local"] = local
			}

			return writeJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&flagGross, "gross", "", "gross pay for the period")
	cmd.Flags().StringVar(&flagFilingStatus, "filing-status", "SINGLE", "federal filing status")
	cmd.Flags().IntVar(&flagPeriods, "periods", 26, "pay periods per year")
	cmd.Flags().IntVar(&flagAllowances, "allowances", 0, "dependent allowances")
	cmd.Flags().StringVar(&flagExtra, "extra", "", "additional withholding per period")
	cmd.Flags().StringVar(&flagYTD, "ytd", "", "year to date gross wages before this paycheck")
	cmd.Flags().StringVar(&flagState, "state", "", "work state code")
	cmd.Flags().StringVar(&flagCity, "city", "", "city for local tax")
	cmd.Flags().StringVar(&flagCounty, "county", "", "county for local tax")
	cmd.Flags().BoolVar(&flagResident, "resident", true, "employee lives in the taxing city")
	_ = cmd.MarkFlagRequired("gross")
	return cmd
}

func newEmployerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "employer",
		Short: "Calculate employer-side taxes for a single paycheck",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}

			gross, err := decimal.NewFromString(flagGross)
			if err != nil {
				return fmt.Errorf("invalid --gross: %w", err)
			}
			ytd := decimal.Zero
			if flagYTD != "" {
				if ytd, err = decimal.NewFromString(flagYTD); err != nil {
					return fmt.Errorf("invalid --ytd: %w", err)
				}
			}

			input := tax.EmployerInput{
				GrossPay:      gross,
				State:         flagState,
				YTDGrossWages: ytd,
				IsNewEmployer: flagNewEmployer,
			}
			if flagSutaRate != "" {
				rate, err := decimal.NewFromString(flagSutaRate)
				if err != nil {
					return fmt.Errorf("invalid --suta-rate: %w", err)
				}
				input.SutaRate = &rate
			}

			result, err := engine.Employer(input)
			if err != nil {
				return err
			}
			return writeJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&flagGross, "gross", "", "gross pay for the period")
	cmd.Flags().StringVar(&flagYTD, "ytd", "", "year to date gross wages before this paycheck")
	cmd.Flags().StringVar(&flagState, "state", "", "work state code")
	cmd.Flags().StringVar(&flagSutaRate, "suta-rate", "", "assigned SUTA experience rate")
	cmd.Flags().BoolVar(&flagNewEmployer, "new-employer", false, "use the state's new employer SUTA rate")
	_ = cmd.MarkFlagRequired("gross")
	_ = cmd.MarkFlagRequired("state")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
