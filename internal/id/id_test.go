package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTxnID(t *testing.T) {
	tests := []struct {
		year, month, seq int
		want             string
	}{
		{2025, 1, 1, "2025-01-001"},
		{2025, 12, 99, "2025-12-099"},
		{2025, 1, 123, "2025-01-123"},
		{2025, 3, 1234, "2025-03-1234"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTxnID(tt.year, tt.month, tt.seq))
	}
}

func TestParseTxnID(t *testing.T) {
	year, month, seq, err := ParseTxnID("2025-03-042")
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
	assert.Equal(t, 3, month)
	assert.Equal(t, 42, seq)
}

func TestParseTxnID_RoundTrip(t *testing.T) {
	id := FormatTxnID(2024, 11, 7)
	year, month, seq, err := ParseTxnID(id)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 11, 7}, []int{year, month, seq})
}

func TestParseTxnID_Invalid(t *testing.T) {
	for _, bad := range []string{"", "2025-01", "abcd-01-001", "2025-13-001", "2025-00-001", "2025-01-xyz"} {
		_, _, _, err := ParseTxnID(bad)
		assert.Error(t, err, "ParseTxnID(%q)", bad)
	}
}
