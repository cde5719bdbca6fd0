package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDayNormalisesLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	late := time.Date(2024, 3, 10, 23, 30, 0, 0, loc)
	assert.Equal(t, "2024-03-10", DayKey(late))
	assert.Equal(t, time.UTC, Day(late).Location())
}

func TestParseDayAcceptsTimestamps(t *testing.T) {
	d, err := ParseDay("2024-02-29T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, day("2024-02-29"), d)

	_, err = ParseDay("29/02/2024")
	require.ErrorIs(t, err, ErrValidation)
}

func TestDateRangeContains(t *testing.T) {
	cases := []struct {
		name string
		r    DateRange
		at   string
		want bool
	}{
		{"unbounded", DateRange{}, "1999-01-01", true},
		{"both bounds inside", Between(day("2024-01-01"), day("2024-01-31")), "2024-01-31", true},
		{"both bounds before", Between(day("2024-01-01"), day("2024-01-31")), "2023-12-31", false},
		{"start only", mustRange(t, "2024-01-10", ""), "2024-01-10", true},
		{"start only before", mustRange(t, "2024-01-10", ""), "2024-01-09", false},
		{"end only", mustRange(t, "", "2024-01-10"), "2023-01-01", true},
		{"end only after", mustRange(t, "", "2024-01-10"), "2024-01-11", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.r.Contains(day(tc.at)))
		})
	}
}

func TestParseDateRangeRejectsInvertedBounds(t *testing.T) {
	_, err := ParseDateRange("2024-02-01", "2024-01-01")
	require.ErrorIs(t, err, ErrValidation)
}

func TestEachDayIsInclusive(t *testing.T) {
	var keys []string
	EachDay(day("2024-02-27"), day("2024-03-01"), func(d time.Time) {
		keys = append(keys, DayKey(d))
	})
	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}, keys)
}

func TestNewPageClamps(t *testing.T) {
	assert.Equal(t, Page{Limit: 50, Offset: 0}, NewPage(0, -3, 50, 100))
	assert.Equal(t, Page{Limit: 100, Offset: 20}, NewPage(500, 20, 50, 100))
}

func mustRange(t *testing.T, start, end string) DateRange {
	t.Helper()
	r, err := ParseDateRange(start, end)
	require.NoError(t, err)
	return r
}
