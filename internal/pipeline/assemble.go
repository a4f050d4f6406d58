package pipeline

import (
	"math"
	"sort"
	"time"
)

// Assemble merges chunks, given in interval order, into a single resampled
// series. Timestamps are normalized to UTC; on exact duplicate timestamps
// the later chunk's row replaces the earlier one entirely (a re-fetch is
// authoritative). Readings are then averaged into fixed buckets of step
// width (one hour when step is zero), and the result carries one
// contiguous row per bucket from the first populated bucket through the
// last, with NaN where a category has no reading. Assembly is
// deterministic: the same chunks always produce the same series. No
// chunks, or all-empty chunks, produce an empty series.
func Assemble(chunks []Chunk, step time.Duration) *AssembledSeries {
	if step <= 0 {
		step = time.Hour
	}

	byTS := make(map[time.Time]map[string]float64)
	for _, c := range chunks {
		for _, row := range c.Rows {
			vals := make(map[string]float64, len(row.Values))
			for k, v := range row.Values {
				vals[k] = v
			}
			byTS[row.TS.UTC()] = vals
		}
	}
	if len(byTS) == 0 {
		return &AssembledSeries{}
	}

	catSet := make(map[string]struct{})
	for _, vals := range byTS {
		for k := range vals {
			catSet[k] = struct{}{}
		}
	}
	cats := make([]string, 0, len(catSet))
	for k := range catSet {
		cats = append(cats, k)
	}
	sort.Strings(cats)
	colIdx := make(map[string]int, len(cats))
	for j, c := range cats {
		colIdx[c] = j
	}

	// Accumulate in timestamp order so the floating-point sums are
	// bitwise identical across runs.
	stamps := make([]time.Time, 0, len(byTS))
	for ts := range byTS {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	sums := make(map[time.Time][]float64)
	counts := make(map[time.Time][]int)
	var first, last time.Time
	for _, ts := range stamps {
		vals := byTS[ts]
		bucket := ts.Truncate(step)
		if first.IsZero() || bucket.Before(first) {
			first = bucket
		}
		if last.IsZero() || bucket.After(last) {
			last = bucket
		}
		s := sums[bucket]
		if s == nil {
			s = make([]float64, len(cats))
			sums[bucket] = s
			counts[bucket] = make([]int, len(cats))
		}
		n := counts[bucket]
		for k, v := range vals {
			if math.IsNaN(v) {
				continue
			}
			j := colIdx[k]
			s[j] += v
			n[j]++
		}
	}

	total := int(last.Sub(first)/step) + 1
	times := make([]time.Time, total)
	values := make([][]float64, total)
	for i := 0; i < total; i++ {
		t := first.Add(time.Duration(i) * step)
		times[i] = t
		row := make([]float64, len(cats))
		s, n := sums[t], counts[t]
		for j := range cats {
			if n != nil && n[j] > 0 {
				row[j] = s[j] / float64(n[j])
			} else {
				row[j] = math.NaN()
			}
		}
		values[i] = row
	}

	return &AssembledSeries{Categories: cats, Times: times, Values: values}
}
