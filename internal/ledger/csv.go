package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// Header is the CSV header for transactions.csv.
const Header = "txn_id,user_id,date,amount,category,description,created_at"

const (
	numFields    = 7
	colTxnID     = 0
	colUserID    = 1
	colDate      = 2
	colAmount    = 3
	colCategory  = 4
	colDesc      = 5
	colCreatedAt = 6
)

// ReadTransactions reads all transactions from a transactions.csv reader.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	txns := make([]model.Transaction, 0, len(records)-1)
	for i, rec := range records[1:] {
		txn, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// WriteTransactions writes transactions including the header.
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, txn := range txns {
		if err := cw.Write(MarshalTransaction(txn)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// AppendTransactions appends transactions without a header.
func AppendTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	for i, txn := range txns {
		if err := cw.Write(MarshalTransaction(txn)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(txn model.Transaction) []string {
	row := make([]string, numFields)
	row[colTxnID] = txn.ID
	row[colUserID] = txn.UserID
	row[colDate] = txn.Date.String()
	row[colAmount] = txn.Amount.String()
	row[colCategory] = txn.Category
	row[colDesc] = txn.Description
	if !txn.CreatedAt.IsZero() {
		row[colCreatedAt] = txn.CreatedAt.UTC().Format(time.RFC3339)
	}
	return row
}

// UnmarshalTransaction converts a CSV row to a Transaction.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := civil.ParseDate(record[colDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	var createdAt time.Time
	if record[colCreatedAt] != "" {
		createdAt, err = time.Parse(time.RFC3339, record[colCreatedAt])
		if err != nil {
			return model.Transaction{}, fmt.Errorf("parsing created_at %q: %w", record[colCreatedAt], err)
		}
	}

	return model.Transaction{
		ID:          record[colTxnID],
		UserID:      record[colUserID],
		Date:        date,
		Amount:      amount,
		Category:    record[colCategory],
		Description: record[colDesc],
		CreatedAt:   createdAt,
	}, nil
}
