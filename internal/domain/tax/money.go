package tax

import "github.com/shopspring/decimal"

// Monetary amounts are rounded to cents at each calculator boundary, never
// mid-formula. Summing already-rounded components rounds again.
func round2(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

func nonNegative(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// cappedWages returns the portion of grossPay still under an annual wage cap
// given the wages already accumulated this year. Zero once ytd >= cap.
func cappedWages(grossPay, ytdWages, cap decimal.Decimal) decimal.Decimal {
	remaining := nonNegative(cap.Sub(ytdWages))
	return decimal.Min(grossPay, remaining)
}

// guardResult rejects negative outputs before they can leak into business
// data. Bracket and cap math never legitimately produces one.
func guardResult(op string, amounts ...decimal.Decimal) error {
	for _, amount := range amounts {
		if amount.IsNegative() {
			return &InvariantError{Op: op, Detail: "negative amount " + amount.String()}
		}
	}
	return nil
}
