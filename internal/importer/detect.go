package importer

import (
	"strings"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// aliasRule lists, in priority order, the header names accepted for one
// Mapping field. Order matters: the first alias with a matching header wins.
type aliasRule struct {
	field   string
	aliases []string
	assign  func(m *model.Mapping, header string)
}

var detectionRules = []aliasRule{
	{
		field:   "date",
		aliases: []string{"date", "txn date", "posting date", "transaction date", "value date"},
		assign:  func(m *model.Mapping, h string) { m.Date = h },
	},
	{
		field:   "amount",
		aliases: []string{"amount", "amt"},
		assign:  func(m *model.Mapping, h string) { m.Amount = h },
	},
	{
		field:   "description",
		aliases: []string{"description", "narration", "details", "desc", "merchant", "memo", "payee"},
		assign:  func(m *model.Mapping, h string) { m.Description = h },
	},
	{
		field:   "category",
		aliases: []string{"category", "cat"},
		assign:  func(m *model.Mapping, h string) { m.Category = h },
	},
	{
		field:   "debit",
		aliases: []string{"debit", "withdrawal", "withdrawals", "money out"},
		assign:  func(m *model.Mapping, h string) { m.Debit = h },
	},
	{
		field:   "credit",
		aliases: []string{"credit", "deposit", "deposits", "money in"},
		assign:  func(m *model.Mapping, h string) { m.Credit = h },
	},
}

// Detect guesses a Mapping from header names. Fields with no matching header
// stay empty. When there is no amount column but a debit or credit column was
// found, the amount is taken as credit minus debit.
func Detect(headers []string) model.Mapping {
	var m model.Mapping
	for _, rule := range detectionRules {
		if h, ok := firstMatch(headers, rule.aliases); ok {
			rule.assign(&m, h)
		}
	}
	if m.Amount == "" && (m.Debit != "" || m.Credit != "") {
		m.AmountIsCreditMinusDebit = true
	}
	return m
}

// firstMatch returns the original text of the first header equal to the
// highest-priority alias that appears at all.
func firstMatch(headers, aliases []string) (string, bool) {
	for _, alias := range aliases {
		for _, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), alias) {
				return h, true
			}
		}
	}
	return "", false
}
