package pipeline

// Split decomposes r into contiguous, non-overlapping sub-intervals of at
// most span each. The sequence covers r exactly; only the final element
// may be shorter than the span. A range that already fits within the span
// yields a single element equal to r.
func Split(r DateRange, span MaxSpan) ([]DateRange, error) {
	if !r.Start.Before(r.End) {
		return nil, ErrInvalidRange
	}
	if err := span.validate(); err != nil {
		return nil, err
	}

	subs := make([]DateRange, 0, 4)
	cur := r.Start
	for cur.Before(r.End) {
		next := span.next(cur)
		if !next.Before(r.End) {
			subs = append(subs, DateRange{Start: cur, End: r.End})
			break
		}
		subs = append(subs, DateRange{Start: cur, End: next})
		cur = next
	}
	return subs, nil
}
