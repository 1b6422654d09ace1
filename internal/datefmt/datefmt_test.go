package datefmt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AcceptedForms(t *testing.T) {
	loc := time.UTC
	cases := []struct {
		in      string
		want    time.Time
		hasTime bool
	}{
		{"4/2/2026", time.Date(2026, 2, 4, 0, 0, 0, 0, loc), false},
		{"04/02/2026", time.Date(2026, 2, 4, 0, 0, 0, 0, loc), false},
		{"12:33:22 4/2/2026", time.Date(2026, 2, 4, 12, 33, 22, 0, loc), true},
		{"4/2/2026, 12:33:22", time.Date(2026, 2, 4, 12, 33, 22, 0, loc), true},
		{"4/2/2026 9:05", time.Date(2026, 2, 4, 9, 5, 0, 0, loc), true},
		{"  31/12/2025 23:59:59 ", time.Date(2025, 12, 31, 23, 59, 59, 0, loc), true},
		{"29/2/2024", time.Date(2024, 2, 29, 0, 0, 0, 0, loc), false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in, loc)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got.Time), "got %v", got.Time)
			assert.Equal(t, tc.hasTime, got.HasTime)
		})
	}
}

func TestParse_Rejected(t *testing.T) {
	for _, in := range []string{
		"",
		"2026-02-04",
		"30/2/2026",
		"4/13/2026",
		"4/2/26",
		"4/2/1999",
		"25:00 4/2/2026",
		"4/2/2026 10:61",
		"4/2/2026 10:00 extra",
		"a/b/cdef",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in, time.UTC)
			assert.True(t, errors.Is(err, ErrInvalidDate), "input %q: %v", in, err)
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 7, 8, 9, 10, 0, time.UTC)

	assert.Equal(t, "7/3/2026 08:09:10", FormatDateTime(ts))
	assert.Equal(t, "7/3/2026", FormatDate(ts))

	back, err := ParseDateTime(FormatDateTime(ts), time.UTC)
	require.NoError(t, err)
	assert.True(t, ts.Equal(back))
}

func TestWithDateKeepsClock(t *testing.T) {
	ts := time.Date(2026, 3, 7, 14, 30, 5, 0, time.UTC)
	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	got := WithDate(ts, day)
	assert.Equal(t, time.Date(2026, 4, 1, 14, 30, 5, 0, time.UTC), got)
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2026-02", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), m)

	_, err = ParseMonth("02/2026", time.UTC)
	assert.ErrorIs(t, err, ErrInvalidDate)
}
