// Package core provides the accrual domain: documents, journals, settings and
// the variance arithmetic used when a supplier bill is reconciled.
//
// This file contains the money helpers. Amounts are decimal values with two
// decimal places of currency precision; floats are never used.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the rounding precision of posted amounts.
const CurrencyPlaces = 2

// VarianceDirection tells which side of the ledger a variance journal debits.
type VarianceDirection string

const (
	// VarianceNone means the bill matched the accrual and nothing is posted.
	VarianceNone VarianceDirection = "none"
	// VarianceAdditionalCost means the bill exceeded the accrual: debit cost, credit accrual.
	VarianceAdditionalCost VarianceDirection = "additional_cost"
	// VarianceRelease means the accrual overstated the cost: debit accrual, credit cost.
	VarianceRelease VarianceDirection = "release"
)

// ParseAmount parses a decimal currency amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Unlike the
// posting helpers it does not round; callers decide when precision is lost.
//
// Examples:
//
//	ParseAmount("8000")    -> 8000
//	ParseAmount("8000,50") -> 8000.5
//	ParseAmount("abc")     -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// NetAmount sums unit amount times quantity across the lines.
func NetAmount(lines []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}

// Variance returns net minus baseline rounded to currency precision.
// Positive means the bill exceeds the accrual.
//
// Examples:
//
//	Variance(8500, 8000)     -> 500
//	Variance(7500, 8000)     -> -500
//	Variance(8000.004, 8000) -> 0
func Variance(net, baseline decimal.Decimal) decimal.Decimal {
	return net.Sub(baseline).Round(CurrencyPlaces)
}

// DirectionOf classifies a variance by sign.
func DirectionOf(variance decimal.Decimal) VarianceDirection {
	switch variance.Sign() {
	case 1:
		return VarianceAdditionalCost
	case -1:
		return VarianceRelease
	default:
		return VarianceNone
	}
}

// AccrualJournal builds the journal recognizing the expected cost of a campaign:
// debit the cost account, credit the accrual liability. No tax is applied.
func AccrualJournal(s Settings, campaignRef string, amount decimal.Decimal) Journal {
	amount = amount.Round(CurrencyPlaces)
	narration := fmt.Sprintf("Accrued cost for campaign %s", campaignRef)
	return Journal{
		Narration: narration,
		Status:    JournalStatusPosted,
		Lines: []JournalLine{
			{AccountCode: s.CostCode, Description: narration, Amount: amount, TaxType: TaxTypeNone},
			{AccountCode: s.AccrualCode, Description: narration, Amount: amount.Neg(), TaxType: TaxTypeNone},
		},
	}
}

// VarianceJournal builds the journal for a reconciled bill, or returns nil when
// the variance is zero. The absolute variance is posted; the direction decides
// which account is debited.
func VarianceJournal(s Settings, campaignRef string, variance decimal.Decimal) *Journal {
	variance = variance.Round(CurrencyPlaces)
	abs := variance.Abs()

	var debit, credit, narration string
	switch DirectionOf(variance) {
	case VarianceAdditionalCost:
		debit, credit = s.CostCode, s.AccrualCode
		narration = fmt.Sprintf("Cost variance for campaign %s: bill exceeded accrual by %s", campaignRef, abs.StringFixed(CurrencyPlaces))
	case VarianceRelease:
		debit, credit = s.AccrualCode, s.CostCode
		narration = fmt.Sprintf("Cost variance for campaign %s: accrual released by %s", campaignRef, abs.StringFixed(CurrencyPlaces))
	default:
		return nil
	}

	return &Journal{
		Narration: narration,
		Status:    JournalStatusPosted,
		Lines: []JournalLine{
			{AccountCode: debit, Description: narration, Amount: abs, TaxType: TaxTypeNone},
			{AccountCode: credit, Description: narration, Amount: abs.Neg(), TaxType: TaxTypeNone},
		},
	}
}

// RecodeLines points every line at the given account, keeping description,
// quantity, unit amount and tax type.
func RecodeLines(lines []LineItem, accountCode string) []LineItem {
	out := make([]LineItem, len(lines))
	for i, l := range lines {
		out[i] = LineItem{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitAmount:  l.UnitAmount,
			AccountCode: accountCode,
			TaxType:     l.TaxType,
		}
	}
	return out
}
