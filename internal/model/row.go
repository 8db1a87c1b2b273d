package model

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Fallback categories used when the statement has no category value.
const (
	CategoryOther  = "OTHER"
	CategoryIncome = "INCOME"
)

// Row is one normalized statement record awaiting review.
type Row struct {
	Date        civil.Date
	Amount      decimal.Decimal // always >= 0
	Description string
	Category    string
}

// RowResult is the outcome of parsing one record: either a ParsedRow or a
// FailedRow. Callers switch on the concrete type.
type RowResult interface {
	rowResult()
	// Value returns the row fields, which are partial for a FailedRow.
	Value() Row
}

// ParsedRow is a record that parsed cleanly.
type ParsedRow struct {
	Row
}

// FailedRow is a record that failed at some step. Partial holds whatever was
// resolved before the failure.
type FailedRow struct {
	Partial Row
	Err     error
}

func (ParsedRow) rowResult() {}
func (FailedRow) rowResult() {}

// Value returns the parsed row.
func (p ParsedRow) Value() Row { return p.Row }

// Value returns the partially resolved row.
func (f FailedRow) Value() Row { return f.Partial }

// Reason returns the failure message.
func (f FailedRow) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}
