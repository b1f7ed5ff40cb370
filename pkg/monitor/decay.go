package monitor

// DecayState tracks one cumulative counter (CPU ticks, context switches or
// page faults) between ticks.
type DecayState struct {
	// LastDelta1 is the counter delta observed in the most recent tick.
	LastDelta1 uint64
	// LastDecayed10 approximates a ten-tick sum with a 0.9-per-tick
	// exponential decay. Integer truncation biases it slightly low.
	LastDecayed10 uint64
	// LastCumulative is the raw counter value read at the most recent tick.
	LastCumulative uint64

	primed bool
}

// Advance folds a new cumulative reading into the state and returns the
// one-tick delta. The first reading only establishes the baseline. A reading
// lower than the previous one (counter reset, recycled thread id) yields a
// zero delta and re-takes the baseline.
func (s *DecayState) Advance(current uint64) uint64 {
	if !s.primed {
		*s = DecayState{LastCumulative: current, primed: true}
		return 0
	}

	var delta uint64
	if current > s.LastCumulative {
		delta = current - s.LastCumulative
	}

	s.LastDecayed10 = delta + (s.LastDecayed10*9)/10
	s.LastDelta1 = delta
	s.LastCumulative = current
	return delta
}

// Observed reports whether Advance has been called at least once.
func (s DecayState) Observed() bool {
	return s.primed
}
