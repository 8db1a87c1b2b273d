package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const utf8BOM = "\ufeff"

// Statement is a decoded header-first upload.
type Statement struct {
	Header  []string
	Records []Record
}

// Record is one data line addressed by header name.
type Record struct {
	index  headerIndex
	values []string
}

// headerIndex maps lower-cased header names to column positions.
type headerIndex map[string]int

func makeHeaderIndex(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		// First occurrence wins for repeated headers.
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// NewRecord builds a Record from a header row and its values.
func NewRecord(header, values []string) Record {
	return Record{index: makeHeaderIndex(header), values: values}
}

// Lookup returns the trimmed value under the named column, matched
// case-insensitively. ok is false when the header is absent or the line is
// too short to hold that column.
func (r Record) Lookup(column string) (value string, ok bool) {
	pos, ok := r.index[strings.ToLower(strings.TrimSpace(column))]
	if !ok || pos >= len(r.values) {
		return "", false
	}
	return strings.TrimSpace(r.values[pos]), true
}

// ReadStatement decodes comma-delimited text whose first line is the header.
// An input with no header yields an empty Statement.
func ReadStatement(r io.Reader) (*Statement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Statement{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	header[0] = strings.TrimPrefix(header[0], utf8BOM)
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	st := &Statement{Header: header}
	idx := makeHeaderIndex(header)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(st.Records)+2, err)
		}
		st.Records = append(st.Records, Record{index: idx, values: rec})
	}
	return st, nil
}
