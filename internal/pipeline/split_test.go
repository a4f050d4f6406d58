package pipeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohanswami293875/Entsoe-Generation/internal/pipeline"
)

func mustRange(t *testing.T, start, end string) pipeline.DateRange {
	t.Helper()
	s, err := time.Parse("2006-01-02 15:04", start)
	require.NoError(t, err)
	e, err := time.Parse("2006-01-02 15:04", end)
	require.NoError(t, err)
	r, err := pipeline.NewDateRange(s, e)
	require.NoError(t, err)
	return r
}

func TestSplitCoversRangeExactly(t *testing.T) {
	tests := []struct {
		name string
		r    pipeline.DateRange
		span pipeline.MaxSpan
	}{
		{"six weeks monthly", mustRange(t, "2025-01-01 00:00", "2025-02-15 23:59"), pipeline.DefaultMaxSpan()},
		{"full year monthly", mustRange(t, "2024-01-01 00:00", "2024-12-31 23:59"), pipeline.DefaultMaxSpan()},
		{"year boundary", mustRange(t, "2024-12-15 00:00", "2025-02-15 23:59"), pipeline.DefaultMaxSpan()},
		{"quarter span", mustRange(t, "2024-03-10 06:30", "2024-11-02 18:00"), pipeline.MaxSpan{Months: 3}},
		{"fixed ten days", mustRange(t, "2025-05-01 00:00", "2025-05-26 00:00"), pipeline.MaxSpan{Fixed: 10 * 24 * time.Hour}},
		{"leap february", mustRange(t, "2024-02-01 00:00", "2024-03-15 12:00"), pipeline.DefaultMaxSpan()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs, err := pipeline.Split(tt.r, tt.span)
			require.NoError(t, err)
			require.NotEmpty(t, subs)

			assert.True(t, subs[0].Start.Equal(tt.r.Start), "first sub-interval must start the range")
			assert.True(t, subs[len(subs)-1].End.Equal(tt.r.End), "last sub-interval must end the range")
			for i := 0; i < len(subs)-1; i++ {
				assert.True(t, subs[i].End.Equal(subs[i+1].Start),
					"sub-intervals %d and %d must be contiguous", i, i+1)
			}
			for i, sub := range subs {
				assert.True(t, sub.Start.Before(sub.End), "sub-interval %d must be non-empty", i)
			}
		})
	}
}

func TestSplitSingleIntervalWhenRangeFits(t *testing.T) {
	r := mustRange(t, "2025-01-05 00:00", "2025-01-20 23:59")

	subs, err := pipeline.Split(r, pipeline.DefaultMaxSpan())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, r, subs[0])
}

func TestSplitMonthlyBoundaries(t *testing.T) {
	r := mustRange(t, "2025-01-01 00:00", "2025-02-15 23:59")

	subs, err := pipeline.Split(r, pipeline.DefaultMaxSpan())
	require.NoError(t, err)
	require.Len(t, subs, 2)

	boundary := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, subs[0].End.Equal(boundary))
	assert.True(t, subs[1].Start.Equal(boundary))
	assert.True(t, subs[1].End.Equal(r.End))
}

func TestSplitClampsMonthEnd(t *testing.T) {
	// Advancing Jan 31 by one calendar month lands on Feb 28, not Mar 3.
	r := mustRange(t, "2025-01-31 00:00", "2025-04-10 00:00")

	subs, err := pipeline.Split(r, pipeline.DefaultMaxSpan())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(subs), 2)
	assert.True(t, subs[0].End.Equal(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)))
}

func TestSplitFixedSpanWidths(t *testing.T) {
	r := mustRange(t, "2025-05-01 00:00", "2025-05-26 00:00")
	span := pipeline.MaxSpan{Fixed: 10 * 24 * time.Hour}

	subs, err := pipeline.Split(r, span)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, 10*24*time.Hour, subs[0].Duration())
	assert.Equal(t, 10*24*time.Hour, subs[1].Duration())
	assert.Equal(t, 5*24*time.Hour, subs[2].Duration())
}

func TestSplitRejectsInvalidInput(t *testing.T) {
	valid := mustRange(t, "2025-01-01 00:00", "2025-01-02 00:00")

	t.Run("inverted range", func(t *testing.T) {
		_, err := pipeline.Split(pipeline.DateRange{Start: valid.End, End: valid.Start}, pipeline.DefaultMaxSpan())
		assert.ErrorIs(t, err, pipeline.ErrInvalidRange)
	})

	t.Run("empty range", func(t *testing.T) {
		_, err := pipeline.Split(pipeline.DateRange{Start: valid.Start, End: valid.Start}, pipeline.DefaultMaxSpan())
		assert.ErrorIs(t, err, pipeline.ErrInvalidRange)
	})

	t.Run("non-positive span", func(t *testing.T) {
		_, err := pipeline.Split(valid, pipeline.MaxSpan{})
		assert.ErrorIs(t, err, pipeline.ErrInvalidSpan)

		_, err = pipeline.Split(valid, pipeline.MaxSpan{Months: -1})
		assert.ErrorIs(t, err, pipeline.ErrInvalidSpan)
	})
}

func TestDayRange(t *testing.T) {
	start := time.Date(2025, 1, 1, 15, 4, 5, 0, time.UTC)
	end := time.Date(2025, 2, 15, 8, 0, 0, 0, time.UTC)

	r, err := pipeline.DayRange(start, end)
	require.NoError(t, err)
	assert.True(t, r.Start.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, r.End.Equal(time.Date(2025, 2, 15, 23, 59, 0, 0, time.UTC)))

	t.Run("single day is valid", func(t *testing.T) {
		day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
		r, err := pipeline.DayRange(day, day)
		require.NoError(t, err)
		assert.Equal(t, 23*time.Hour+59*time.Minute, r.Duration())
	})

	t.Run("end before start", func(t *testing.T) {
		_, err := pipeline.DayRange(end, start)
		assert.ErrorIs(t, err, pipeline.ErrInvalidRange)
	})
}
