package builder

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dgallion1/formforge/internal/budget"
	"github.com/dgallion1/formforge/internal/checkpoint"
	"github.com/dgallion1/formforge/internal/grouping"
	"github.com/dgallion1/formforge/internal/source"
	"github.com/dgallion1/formforge/internal/target"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func neverExpires() *budget.Guard {
	return budget.NewGuardAt(time.Hour, time.Now)
}

// expireAfterChecks returns a guard that stays fresh for the first n
// Expired checks and reports expired on check n+1. The constructor itself
// consumes one clock read.
func expireAfterChecks(n int) *budget.Guard {
	start := time.Unix(0, 0)
	calls := 0
	return budget.NewGuardAt(time.Minute, func() time.Time {
		calls++
		if calls <= n+1 {
			return start
		}
		return start.Add(time.Hour)
	})
}

func parkTree() *grouping.Tree {
	records := []source.Record{
		{Fields: map[string]string{"Borough": "Bronx", "Park": "A"}},
		{Fields: map[string]string{"Borough": "Bronx", "Park": "B"}},
		{Fields: map[string]string{"Borough": "Queens", "Park": "C"}},
	}
	return grouping.GroupBy(records, []string{"Borough", "Park"})
}

var parkTitles = []string{"Borough", "Park"}

func TestRun_EndToEnd(t *testing.T) {
	mem := target.NewMemory()
	cursors := checkpoint.NewMemStore()
	b := New(mem, cursors, discardLogger())

	outcome, err := b.Run(parkTree(), parkTitles, neverExpires())
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome)
	require.Equal(t, StateCompleted, b.State())

	// Creation order: Bronx/A, Bronx/B, Queens/C.
	want := []string{
		"selector Borough@",
		"selector Park@Bronx",
		"section A@Bronx/A",
		"fields @Bronx/A",
		"section B@Bronx/B",
		"fields @Bronx/B",
		"selector Park@Queens",
		"section C@Queens/C",
		"fields @Queens/C",
	}
	require.Equal(t, want, mem.Created)

	// Exactly 2 borough-level choices, in lexicographic order.
	boroughSel, err := mem.GetOrCreateSelector("Borough", "")
	require.NoError(t, err)
	choices := mem.Choices(boroughSel)
	require.Len(t, choices, 2)
	require.Equal(t, "Bronx", choices[0].Label)
	require.Equal(t, "Queens", choices[1].Label)

	// Both levels completed their pass, so cursors are reset.
	c0, _ := cursors.Cursor(checkpoint.LevelFor(0))
	c1, _ := cursors.Cursor(checkpoint.LevelFor(1))
	require.Empty(t, c0)
	require.Empty(t, c1)

	stats := b.Stats()
	require.Equal(t, 3, stats.LeavesBuilt)
	require.Equal(t, 5, stats.KeysProcessed) // A, B, Bronx, C, Queens
	require.Equal(t, 3, stats.ChoiceListsBuilt)
}

func TestRun_Idempotence(t *testing.T) {
	mem := target.NewMemory()
	cursors := checkpoint.NewMemStore()

	_, err := New(mem, cursors, discardLogger()).Run(parkTree(), parkTitles, neverExpires())
	require.NoError(t, err)
	after1 := mem.NodeCount()

	_, err = New(mem, cursors, discardLogger()).Run(parkTree(), parkTitles, neverExpires())
	require.NoError(t, err)

	require.Equal(t, after1, mem.NodeCount(), "second full run must not create nodes")
}

func TestRun_CursorSkip(t *testing.T) {
	mem := target.NewMemory()
	cursors := checkpoint.NewMemStore()
	require.NoError(t, cursors.SetCursor(checkpoint.LevelFor(0), "Bronx"))

	b := New(mem, cursors, discardLogger())
	outcome, err := b.Run(parkTree(), parkTitles, neverExpires())
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome)

	stats := b.Stats()
	require.Equal(t, 1, stats.KeysSkipped, "Bronx is already complete")
	require.Equal(t, 1, stats.LeavesBuilt, "only Queens/C is processed")

	// No descent into the skipped subtree.
	require.NotContains(t, mem.Created, "section A@Bronx/A")
	require.NotContains(t, mem.Created, "section B@Bronx/B")

	// The completed pass still rebuilds the full borough choice list.
	boroughSel, err := mem.GetOrCreateSelector("Borough", "")
	require.NoError(t, err)
	require.Len(t, mem.Choices(boroughSel), 2)
}

func TestRun_InterruptAfterKeyThenResume(t *testing.T) {
	mem := target.NewMemory()
	cursors := checkpoint.NewMemStore()

	// Checks run in order: Bronx, A, B, Queens. Expire on the fourth, right
	// after Bronx is fully processed.
	b := New(mem, cursors, discardLogger())
	outcome, err := b.Run(parkTree(), parkTitles, expireAfterChecks(3))
	require.NoError(t, err, "a resumable interrupt is not an error")
	require.Equal(t, OutcomeInterrupted, outcome)
	require.Equal(t, StateInterrupted, b.State())

	// Cursor sits at the last fully completed key; the inner level's pass
	// finished and was reset.
	c0, _ := cursors.Cursor(checkpoint.LevelFor(0))
	c1, _ := cursors.Cursor(checkpoint.LevelFor(1))
	require.Equal(t, "Bronx", c0)
	require.Empty(t, c1)

	// The interrupted level's choice list was not rebuilt.
	boroughSel, err := mem.GetOrCreateSelector("Borough", "")
	require.NoError(t, err)
	require.Empty(t, mem.Choices(boroughSel))

	// Resume: the final document matches an uninterrupted run.
	outcome, err = New(mem, cursors, discardLogger()).Run(parkTree(), parkTitles, neverExpires())
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome)

	baseline := target.NewMemory()
	_, err = New(baseline, checkpoint.NewMemStore(), discardLogger()).Run(parkTree(), parkTitles, neverExpires())
	require.NoError(t, err)

	require.Equal(t, baseline.Created, mem.Created)
	require.Equal(t, baseline.NodeCount(), mem.NodeCount())
	require.Equal(t, baseline.Choices(boroughSel), mem.Choices(boroughSel))
}

func TestRun_InterruptMidLevelThenResume(t *testing.T) {
	mem := target.NewMemory()
	cursors := checkpoint.NewMemStore()

	// Expire on the third check: after Bronx/A completes, before Bronx/B.
	outcome, err := New(mem, cursors, discardLogger()).Run(parkTree(), parkTitles, expireAfterChecks(2))
	require.NoError(t, err)
	require.Equal(t, OutcomeInterrupted, outcome)

	c0, _ := cursors.Cursor(checkpoint.LevelFor(0))
	c1, _ := cursors.Cursor(checkpoint.LevelFor(1))
	require.Empty(t, c0, "Bronx is not fully processed")
	require.Equal(t, "A", c1)

	outcome, err = New(mem, cursors, discardLogger()).Run(parkTree(), parkTitles, neverExpires())
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome)

	baseline := target.NewMemory()
	_, err = New(baseline, checkpoint.NewMemStore(), discardLogger()).Run(parkTree(), parkTitles, neverExpires())
	require.NoError(t, err)

	require.ElementsMatch(t, baseline.Created, mem.Created)
	require.Equal(t, baseline.NodeCount(), mem.NodeCount())
}

func TestRun_LeafOnlyTree(t *testing.T) {
	records := []source.Record{
		{Fields: map[string]string{"Park": "A"}},
	}
	tree := grouping.GroupBy(records, nil)

	mem := target.NewMemory()
	b := New(mem, checkpoint.NewMemStore(), discardLogger())
	outcome, err := b.Run(tree, nil, neverExpires())
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome)
	require.Equal(t, []string{"fields @"}, mem.Created)
}

func TestRun_EmptyTree(t *testing.T) {
	tree := grouping.GroupBy(nil, []string{"Borough"})

	mem := target.NewMemory()
	b := New(mem, checkpoint.NewMemStore(), discardLogger())
	outcome, err := b.Run(tree, []string{"Borough"}, neverExpires())
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome)

	sel, err := mem.GetOrCreateSelector("Borough", "")
	require.NoError(t, err)
	require.Empty(t, mem.Choices(sel))
}
