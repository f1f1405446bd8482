package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipq/critq/types"
)

func TestParseParam(t *testing.T) {
	tests := []struct {
		kind types.Kind
		in   string
		want any
	}{
		{types.BigInt, "42", int64(42)},
		{types.SmallInt, "-3", int64(-3)},
		{types.Decimal, "9.5", 9.5},
		{types.Boolean, "true", true},
		{types.VarChar, "hello", "hello"},
		{types.Text, "NULL", nil},
		{types.JSON, `{"a":1}`, json.RawMessage(`{"a":1}`)},
		{types.Binary, "ab", []byte("ab")},
		{types.Date, "2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{types.Timestamp, "2024-05-01T10:00:00Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{types.Time, "10:30:00", "10:30:00"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+tt.in, func(t *testing.T) {
			got, err := parseParam(types.Of(tt.kind), tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseParam_Errors(t *testing.T) {
	tests := []struct {
		kind types.Kind
		in   string
	}{
		{types.BigInt, "seven"},
		{types.Boolean, "maybe"},
		{types.JSON, "{"},
		{types.Timestamp, "yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+tt.in, func(t *testing.T) {
			_, err := parseParam(types.Of(tt.kind), tt.in)
			assert.Error(t, err)
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", formatValue(nil))
	assert.Equal(t, `"a%"`, formatValue("a%"))
	assert.Equal(t, "<3 bytes>", formatValue([]byte("abc")))
	assert.Equal(t, "2024-05-01T10:00:00Z", formatValue(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "7", formatValue(int64(7)))
}
