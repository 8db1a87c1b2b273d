// Package ledger stores committed transactions as monthly CSV files under
// <root>/YYYY/MM/transactions.csv.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"github.com/fintrack-dev/fintrack/internal/id"
	"github.com/fintrack-dev/fintrack/internal/model"
)

// Store is a file-backed transaction store. It is safe for concurrent use
// within one process.
type Store struct {
	root string
	now  func() time.Time

	mu sync.Mutex
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir, now: time.Now}
}

// Save validates txn, assigns it the next ID for its month and appends it to
// that month's file.
func (s *Store) Save(_ context.Context, txn model.Transaction) (model.Transaction, error) {
	if err := Validate(txn); err != nil {
		return model.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	year, month := txn.Date.Year, int(txn.Date.Month)
	existing, err := s.readMonth(year, month)
	if err != nil {
		return model.Transaction{}, err
	}

	txn.ID = id.FormatTxnID(year, month, nextSeq(existing))
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = s.now().UTC().Truncate(time.Second)
	}

	path := s.monthPath(year, month)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return model.Transaction{}, fmt.Errorf("creating ledger dir: %w", err)
	}

	isNew := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	write := AppendTransactions
	if isNew {
		write = WriteTransactions
	}
	if err := write(f, []model.Transaction{txn}); err != nil {
		return model.Transaction{}, fmt.Errorf("appending transaction: %w", err)
	}
	return txn, nil
}

// FindByUserAndDateRange returns userID's transactions dated within
// [from, to], in file order.
func (s *Store) FindByUserAndDateRange(_ context.Context, userID string, from, to civil.Date) ([]model.Transaction, error) {
	if to.Before(from) {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Transaction
	year, month := from.Year, from.Month
	for year < to.Year || (year == to.Year && month <= to.Month) {
		txns, err := s.readMonth(year, int(month))
		if err != nil {
			return nil, err
		}
		for _, txn := range txns {
			if txn.UserID != userID || txn.Date.Before(from) || txn.Date.After(to) {
				continue
			}
			out = append(out, txn)
		}

		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return out, nil
}

// ReadMonth returns every transaction stored for year/month.
func (s *Store) ReadMonth(year, month int) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMonth(year, month)
}

func (s *Store) readMonth(year, month int) ([]model.Transaction, error) {
	path := s.monthPath(year, month)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	txns, err := ReadTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	return txns, nil
}

func (s *Store) monthPath(year, month int) string {
	return filepath.Join(s.root, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month), "transactions.csv")
}

func nextSeq(txns []model.Transaction) int {
	maxSeq := 0
	for _, txn := range txns {
		_, _, seq, err := id.ParseTxnID(txn.ID)
		if err != nil {
			continue
		}
		maxSeq = max(maxSeq, seq)
	}
	return maxSeq + 1
}

// Validate checks the fields every stored transaction must have.
func Validate(txn model.Transaction) error {
	switch {
	case txn.UserID == "":
		return errors.New("transaction has no owner")
	case !txn.Date.IsValid():
		return fmt.Errorf("invalid transaction date %s", txn.Date)
	case txn.Amount.IsNegative():
		return fmt.Errorf("negative amount %s", txn.Amount)
	case txn.Category == "":
		return errors.New("transaction has no category")
	}
	return nil
}
