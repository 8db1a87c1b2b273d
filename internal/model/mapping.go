package model

// Mapping names the source columns that feed each Row field.
// Empty strings mean the field is unset.
type Mapping struct {
	Date        string `json:"date,omitempty" yaml:"date,omitempty"`
	Amount      string `json:"amount,omitempty" yaml:"amount,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
	Debit       string `json:"debit,omitempty" yaml:"debit,omitempty"`
	Credit      string `json:"credit,omitempty" yaml:"credit,omitempty"`
	DateFormat  string `json:"dateFormat,omitempty" yaml:"date_format,omitempty"`

	// AmountIsCreditMinusDebit picks the sign when only debit/credit columns exist.
	AmountIsCreditMinusDebit bool `json:"amountIsCreditMinusDebit" yaml:"amount_is_credit_minus_debit"`
}

// IsZero reports whether no column is mapped. DateFormat and
// AmountIsCreditMinusDebit are parsing options and do not count.
func (m Mapping) IsZero() bool {
	return m.Date == "" && m.Amount == "" && m.Description == "" &&
		m.Category == "" && m.Debit == "" && m.Credit == ""
}
