package curve

// Quote is a mutable holder of one rate value for one tenor. Mutating a quote
// invalidates any curve derived from it; the owning Builder recalibrates on
// the next Curve call.
type Quote struct {
	value float64
	owner *Builder
}

// Value returns the current rate as a decimal (0.0425 for 4.25%).
func (q *Quote) Value() float64 {
	return q.value
}

// Set replaces the quote's rate and marks the owning builder's curve stale.
func (q *Quote) Set(v float64) {
	if q.value == v {
		return
	}
	q.value = v
	if q.owner != nil {
		q.owner.invalidate()
	}
}
