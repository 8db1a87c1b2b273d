package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fintrack-dev/fintrack/internal/model"
)

var (
	// ErrColumnNotSpecified means the Mapping leaves a required field unset.
	ErrColumnNotSpecified = errors.New("required column not specified")
	// ErrMissingColumn means the mapped column is not in the record.
	ErrMissingColumn = errors.New("missing column")
)

// ParseRow converts one record into a Row using m. It never panics or
// aborts: the first failing step yields a FailedRow carrying the fields
// resolved so far.
func ParseRow(rec Record, m model.Mapping) model.RowResult {
	var row model.Row
	fail := func(err error) model.RowResult {
		return model.FailedRow{Partial: row, Err: err}
	}

	rawDate, err := requiredValue(rec, m.Date)
	if err != nil {
		return fail(err)
	}
	date, err := ParseDate(rawDate, m.DateFormat)
	if err != nil {
		return fail(err)
	}
	row.Date = date

	signed, err := signedAmount(rec, m)
	if err != nil {
		return fail(err)
	}
	expense := signed.IsNegative()
	row.Amount = signed.Abs()

	desc, err := requiredValue(rec, m.Description)
	if err != nil {
		return fail(err)
	}
	row.Description = desc

	switch cat := optionalValue(rec, m.Category); {
	case cat != "":
		row.Category = NormalizeCategory(cat)
	case expense:
		row.Category = model.CategoryOther
	default:
		row.Category = model.CategoryIncome
	}

	return model.ParsedRow{Row: row}
}

// NormalizeCategory trims, upper-cases and replaces spaces with underscores.
func NormalizeCategory(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "_")
}

func signedAmount(rec Record, m model.Mapping) (decimal.Decimal, error) {
	if strings.TrimSpace(m.Amount) != "" {
		v, err := requiredValue(rec, m.Amount)
		if err != nil {
			return decimal.Zero, err
		}
		return ParseAmount(v)
	}

	if strings.TrimSpace(m.Debit) == "" && strings.TrimSpace(m.Credit) == "" {
		return decimal.Zero, fmt.Errorf("%w: amount", ErrColumnNotSpecified)
	}

	debit := amountOrZero(rec, m.Debit)
	credit := amountOrZero(rec, m.Credit)
	if m.AmountIsCreditMinusDebit {
		return credit.Sub(debit), nil
	}
	return debit.Sub(credit), nil
}

func requiredValue(rec Record, column string) (string, error) {
	if strings.TrimSpace(column) == "" {
		return "", ErrColumnNotSpecified
	}
	v, ok := rec.Lookup(column)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingColumn, column)
	}
	return v, nil
}

func optionalValue(rec Record, column string) string {
	if strings.TrimSpace(column) == "" {
		return ""
	}
	v, _ := rec.Lookup(column)
	return v
}
