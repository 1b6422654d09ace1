package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	d, err := Parse(" 1500.5 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("1500.5")))

	_, err = Parse("")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = Parse("12abc")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCell(t *testing.T) {
	assert.Equal(t, "2000", Cell(decimal.NewFromInt(2000)))
	assert.Equal(t, "12.5", Cell(decimal.RequireFromString("12.50")))
}

func TestFormat(t *testing.T) {
	assert.Contains(t, Format(decimal.NewFromInt(2000), "VND"), "2")
	assert.Equal(t, "$12.50", Format(decimal.RequireFromString("12.5"), "USD"))
}
