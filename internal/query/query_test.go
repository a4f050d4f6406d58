package query

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohanswami293875/Entsoe-Generation/internal/entsoe"
)

func TestParse(t *testing.T) {
	req, err := Parse("generation for France from 2025-01-01 to 2025-02-15")
	require.NoError(t, err)

	assert.Equal(t, "France", req.Country)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), req.Range.Start)
	assert.Equal(t, time.Date(2025, 2, 15, 23, 59, 0, 0, time.UTC), req.Range.End)

	require.Len(t, req.Targets, 1, "single-zone country with included total collapses to one target")
	assert.Equal(t, "FR", req.Targets[0].Domain)
}

func TestParseMultiZoneCountry(t *testing.T) {
	req, err := Parse("Denmark 2025-03-01 2025-03-31")
	require.NoError(t, err)

	require.Len(t, req.Targets, 3)
	assert.Equal(t, "DK_1", req.Targets[0].Domain)
	assert.Equal(t, "DK_2", req.Targets[1].Domain)
	assert.Equal(t, "DK", req.Targets[2].Domain, "aggregate total appended last")
}

func TestParseAlias(t *testing.T) {
	req, err := Parse("germany 2025-01-01 2025-01-31")
	require.NoError(t, err)
	assert.Equal(t, "Germany-Luxembourg (DE-LU)", req.Country)
}

func TestParseCaseInsensitive(t *testing.T) {
	req, err := Parse("SHOW ME SWEDEN 2025-01-01 2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, "Sweden", req.Country)
}

func TestParseMissingDates(t *testing.T) {
	_, err := Parse("France 2025-01-01")
	assert.ErrorIs(t, err, ErrMissingDates)

	_, err = Parse("France last month")
	assert.ErrorIs(t, err, ErrMissingDates)
}

func TestParseInvertedRange(t *testing.T) {
	_, err := Parse("France 2025-02-15 2025-01-01")
	assert.Error(t, err)
}

func TestParseExtraDatesIgnored(t *testing.T) {
	req, err := Parse("France 2025-01-01 2025-01-31 2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 23, 59, 0, 0, time.UTC), req.Range.End)
}

func TestParseUnknownCountrySuggests(t *testing.T) {
	_, err := Parse("Frnace 2025-01-01 2025-01-31")
	require.Error(t, err)

	var unknown *UnknownCountryError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, unknown.Suggestions, "France")
	assert.ErrorIs(t, err, entsoe.ErrUnknownCountry)
}

func TestParseNoCountry(t *testing.T) {
	_, err := Parse("xyzzyq 2025-01-01 2025-01-31")
	assert.True(t, errors.Is(err, ErrNoCountry) || err != nil)
	assert.Error(t, err)
}

func TestParseRangeSingleDay(t *testing.T) {
	r, err := ParseRange("2025-01-01 2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC), r.End)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"france", "frnace", 2},
		{"kitten", "sitting", 3},
		{"", "abc", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}
