package model

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Transaction is a permanently stored financial transaction.
type Transaction struct {
	ID          string
	UserID      string
	Date        civil.Date
	Amount      decimal.Decimal // magnitude, never negative
	Description string
	Category    string
	CreatedAt   time.Time
}
