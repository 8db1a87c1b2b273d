package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/fintrack-dev/fintrack/internal/importlog"
	"github.com/fintrack-dev/fintrack/internal/logging"
	"github.com/fintrack-dev/fintrack/internal/model"
	"github.com/fintrack-dev/fintrack/internal/staging"
)

// DefaultSampleSize is the number of rows returned by Preview.
const DefaultSampleSize = 50

// Repository is the permanent transaction store.
type Repository interface {
	FindByUserAndDateRange(ctx context.Context, userID string, from, to civil.Date) ([]model.Transaction, error)
	Save(ctx context.Context, txn model.Transaction) (model.Transaction, error)
}

// CommitLog records a summary of every commit.
type CommitLog interface {
	Append(entries ...importlog.Entry) error
}

// Preview is the result of staging an upload.
type Preview struct {
	UploadID    string
	TotalRows   int
	Sample      []model.RowResult
	MappingUsed model.Mapping
}

// CommitResult counts the outcome of a commit.
type CommitResult struct {
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// Service runs the two-phase import: Preview parses and stages an upload,
// Commit persists a selection of the staged rows.
type Service struct {
	staged     staging.Store
	repo       Repository
	log        CommitLog
	sampleSize int
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSampleSize sets how many rows Preview returns. Non-positive values are
// ignored.
func WithSampleSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sampleSize = n
		}
	}
}

// WithCommitLog records every commit to l.
func WithCommitLog(l CommitLog) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a Service staging uploads in staged and committing to
// repo.
func NewService(staged staging.Store, repo Repository, opts ...Option) *Service {
	s := &Service{
		staged:     staged,
		repo:       repo,
		sampleSize: DefaultSampleSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preview reads a statement from r, parses every record and stages the rows.
// A nil or empty mapping is replaced by one detected from the header. Only a
// failure to read r is returned as an error; bad rows are part of the result.
func (s *Service) Preview(ctx context.Context, r io.Reader, mapping *model.Mapping, userID string) (*Preview, error) {
	st, err := ReadStatement(r)
	if err != nil {
		return nil, fmt.Errorf("reading statement: %w", err)
	}

	m, detected := resolveMapping(st.Header, mapping)

	rows := make([]model.RowResult, len(st.Records))
	failed := 0
	for i, rec := range st.Records {
		rows[i] = ParseRow(rec, m)
		if _, ok := rows[i].(model.FailedRow); ok {
			failed++
		}
	}

	token, err := s.staged.Put(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("staging upload: %w", err)
	}

	log := logging.WithFields(ctx, "upload_id", token, "user_id", userID)
	log.Info().
		Int("rows", len(rows)).
		Int("failed", failed).
		Bool("detected_mapping", detected).
		Msg("upload staged")

	return &Preview{
		UploadID:    token,
		TotalRows:   len(rows),
		Sample:      slices.Clone(rows[:min(len(rows), s.sampleSize)]),
		MappingUsed: m,
	}, nil
}

// resolveMapping returns mapping, or one detected from header when mapping
// names no columns. Parsing options set on an otherwise empty mapping are
// kept on the detected one.
func resolveMapping(header []string, mapping *model.Mapping) (m model.Mapping, detected bool) {
	if mapping != nil && !mapping.IsZero() {
		return *mapping, false
	}
	m = Detect(header)
	if mapping != nil {
		if mapping.DateFormat != "" {
			m.DateFormat = mapping.DateFormat
		}
		if mapping.AmountIsCreditMinusDebit {
			m.AmountIsCreditMinusDebit = true
		}
	}
	return m, true
}

// PreviewFile is Preview over the file at path.
func (s *Service) PreviewFile(ctx context.Context, path string, mapping *model.Mapping, userID string) (*Preview, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return s.Preview(ctx, f, mapping, userID)
}

// Commit persists the selected staged rows of uploadID for userID. A nil
// selection means every row; out-of-range indices are ignored. The upload is
// consumed whatever the outcome, so an unknown, expired or already committed
// uploadID yields a zero result.
func (s *Service) Commit(ctx context.Context, uploadID string, selected []int, userID string) CommitResult {
	log := logging.WithFields(ctx, "upload_id", uploadID, "user_id", userID)

	var res CommitResult
	rows, ok := s.staged.Take(ctx, uploadID)
	if !ok {
		log.Debug().Msg("commit of unknown upload")
		return res
	}

	want := selection(selected)
	for i, rr := range rows {
		if want != nil && !want[i] {
			continue
		}

		switch row := rr.(type) {
		case model.FailedRow:
			res.Failed++
		case model.ParsedRow:
			dup, err := s.isDuplicate(ctx, userID, row.Row)
			if err != nil {
				log.Warn().Err(err).Int("row", i).Msg("duplicate lookup failed")
				res.Failed++
				continue
			}
			if dup {
				res.Duplicates++
				continue
			}
			if _, err := s.repo.Save(ctx, model.Transaction{
				UserID:      userID,
				Date:        row.Date,
				Amount:      row.Amount,
				Description: row.Description,
				Category:    row.Category,
			}); err != nil {
				log.Warn().Err(err).Int("row", i).Msg("saving transaction failed")
				res.Failed++
				continue
			}
			res.Imported++
		}
	}

	log.Info().
		Int("imported", res.Imported).
		Int("duplicates", res.Duplicates).
		Int("failed", res.Failed).
		Msg("upload committed")

	if s.log != nil {
		if err := s.log.Append(importlog.Entry{
			Timestamp:  s.now().UTC().Truncate(time.Second),
			UserID:     userID,
			UploadID:   uploadID,
			Imported:   res.Imported,
			Duplicates: res.Duplicates,
			Failed:     res.Failed,
		}); err != nil {
			log.Error().Err(err).Msg("writing import log")
		}
	}
	return res
}

// isDuplicate reports whether userID already has a transaction matching row
// on the same date.
func (s *Service) isDuplicate(ctx context.Context, userID string, row model.Row) (bool, error) {
	existing, err := s.repo.FindByUserAndDateRange(ctx, userID, row.Date, row.Date)
	if err != nil {
		return false, err
	}
	for _, txn := range existing {
		if sameTransaction(txn, row) {
			return true, nil
		}
	}
	return false, nil
}

func sameTransaction(txn model.Transaction, row model.Row) bool {
	return txn.Date == row.Date &&
		txn.Amount.Equal(row.Amount) &&
		strings.EqualFold(strings.TrimSpace(txn.Description), strings.TrimSpace(row.Description)) &&
		strings.EqualFold(strings.TrimSpace(txn.Category), strings.TrimSpace(row.Category))
}

// selection turns a list of indices into a set. nil means no filter; a
// non-nil empty list selects nothing.
func selection(indices []int) map[int]bool {
	if indices == nil {
		return nil
	}
	set := make(map[int]bool, len(indices))
	for _, i := range indices {
		set[i] = true
	}
	return set
}
