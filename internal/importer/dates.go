package importer

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"cloud.google.com/go/civil"
)

var (
	// ErrUnparseableDate is returned when no accepted layout fits a date value.
	ErrUnparseableDate = errors.New("unparseable date")
	// ErrUnsupportedDatePattern is returned for a date format using a pattern
	// letter LayoutFromPattern does not translate.
	ErrUnsupportedDatePattern = errors.New("unsupported date pattern")
)

// defaultDateLayouts are tried in order when no explicit format is given:
// yyyy-MM-dd, dd/MM/yyyy, MM/dd/yyyy, dd-MMM-yyyy, d/M/yyyy.
var defaultDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-Jan-2006",
	"2/1/2006",
}

// ParseDate parses s as a calendar date. A non-empty pattern is the only
// layout tried; otherwise the default layouts are tried in priority order.
// Any time of day in s is discarded.
func ParseDate(s, pattern string) (civil.Date, error) {
	s = strings.TrimSpace(s)

	if pattern = strings.TrimSpace(pattern); pattern != "" {
		layout, err := LayoutFromPattern(pattern)
		if err != nil {
			return civil.Date{}, err
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			return civil.Date{}, ErrUnparseableDate
		}
		return civil.DateOf(t), nil
	}

	for _, layout := range defaultDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, ErrUnparseableDate
}

// LayoutFromPattern converts a pattern such as "dd/MM/yyyy" into a Go time
// layout. Supported letters:
//
//	yyyy, uuuu  four-digit year     yy, uu  two-digit year
//	M, MM       month number        MMM     short month name   MMMM+  full month name
//	d, dd       day of month
//	H, HH       hour (0-23)
//	m, mm       minute              s, ss   second
//
// Text inside single quotes is literal and every non-letter is copied as is.
// Any other letter yields ErrUnsupportedDatePattern. A pattern containing a
// digit is taken to be a Go layout (e.g. "02 Jan 2006") and returned
// unchanged.
func LayoutFromPattern(pattern string) (string, error) {
	if strings.IndexFunc(pattern, unicode.IsDigit) >= 0 {
		return pattern, nil
	}

	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		c := runes[i]

		if c == '\'' {
			end := i + 1
			for end < len(runes) && runes[end] != '\'' {
				end++
			}
			b.WriteString(string(runes[i+1 : min(end, len(runes))]))
			i = end + 1
			continue
		}

		n := 1
		for i+n < len(runes) && runes[i+n] == c {
			n++
		}
		tok, ok := layoutToken(c, n)
		if !ok {
			return "", fmt.Errorf("%w: %q in %q", ErrUnsupportedDatePattern, strings.Repeat(string(c), n), pattern)
		}
		b.WriteString(tok)
		i += n
	}
	return b.String(), nil
}

func layoutToken(c rune, n int) (string, bool) {
	switch c {
	case 'y', 'u':
		if n == 2 {
			return "06", true
		}
		return "2006", true
	case 'M':
		switch {
		case n == 1:
			return "1", true
		case n == 2:
			return "01", true
		case n == 3:
			return "Jan", true
		default:
			return "January", true
		}
	case 'd':
		if n == 1 {
			return "2", true
		}
		return "02", true
	case 'H':
		return "15", true
	case 'm':
		if n == 1 {
			return "4", true
		}
		return "04", true
	case 's':
		if n == 1 {
			return "5", true
		}
		return "05", true
	}
	if unicode.IsLetter(c) {
		return "", false
	}
	return strings.Repeat(string(c), n), true
}
