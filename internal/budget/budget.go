package budget

import "time"

// DefaultMargin is the safety margin for one bounded run, chosen
// conservatively below the hard kill timeout of the environments that
// schedule the builder, so a run can always reach a graceful stopping point.
const DefaultMargin = 240 * time.Second

// Guard tracks elapsed wall-clock time since a run started. It is created
// explicitly at run start and threaded through the walk; nothing reads
// ambient global state.
type Guard struct {
	start  time.Time
	margin time.Duration
	now    func() time.Time
}

// NewGuard starts a guard with the given margin. A non-positive margin
// falls back to DefaultMargin.
func NewGuard(margin time.Duration) *Guard {
	return NewGuardAt(margin, time.Now)
}

// NewGuardAt starts a guard with an injectable clock, for tests.
func NewGuardAt(margin time.Duration, now func() time.Time) *Guard {
	if margin <= 0 {
		margin = DefaultMargin
	}
	return &Guard{start: now(), margin: margin, now: now}
}

// Expired reports whether elapsed time strictly exceeds the margin.
// It has no side effects.
func (g *Guard) Expired() bool {
	return g.Elapsed() > g.margin
}

// Elapsed returns wall-clock time since the run started.
func (g *Guard) Elapsed() time.Duration {
	return g.now().Sub(g.start)
}
