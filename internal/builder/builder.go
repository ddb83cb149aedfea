package builder

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/formforge/internal/budget"
	"github.com/dgallion1/formforge/internal/checkpoint"
	"github.com/dgallion1/formforge/internal/grouping"
	"github.com/dgallion1/formforge/internal/target"
)

// ErrBudgetExceeded is the resumable interrupt. It is a return value, never
// a panic: each recursive level checks it and propagates it upward, so the
// walk unwinds cleanly with every cursor left at the last fully completed
// key. It is not a defect; the caller schedules a re-invocation.
var ErrBudgetExceeded = errors.New("time budget exceeded")

// Outcome of one bounded run.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeInterrupted
)

func (o Outcome) String() string {
	if o == OutcomeInterrupted {
		return "interrupted"
	}
	return "completed"
}

// State of the builder walk.
type State int

const (
	StateNotStarted State = iota
	StateWalking
	StateInterrupted
	StateCompleted
)

// Stats counts work done during one run.
type Stats struct {
	KeysProcessed    int `json:"keys_processed"`
	KeysSkipped      int `json:"keys_skipped"`
	LeavesBuilt      int `json:"leaves_built"`
	ChoiceListsBuilt int `json:"choice_lists_built"`
}

// Builder walks a grouped tree against persisted cursors and a time guard,
// driving idempotent upserts into the document target. Single-threaded: at
// most one sibling per level is in progress at a time, and the only state
// that survives an interrupt is what the cursor store and the target hold.
type Builder struct {
	target  target.DocumentTarget
	cursors checkpoint.Store
	log     *slog.Logger

	state State
	stats Stats
}

func New(t target.DocumentTarget, cursors checkpoint.Store, log *slog.Logger) *Builder {
	return &Builder{target: t, cursors: cursors, log: log}
}

func (b *Builder) State() State { return b.state }
func (b *Builder) Stats() Stats { return b.stats }

// Run materializes the grouped tree into the document target, one sibling
// at a time. levelTitles names the selector created at each depth (e.g.
// ["Borough", "Park"]) and must have one entry per grouping column.
//
// A run that exhausts the guard returns OutcomeInterrupted with a nil error:
// cursors persist, so a later invocation resumes exactly where this one
// stopped. Enclosing levels' choice lists are left as they were; they are
// rebuilt only by a pass that completes the level (accepted behavior, not
// auto-repaired).
func (b *Builder) Run(tree *grouping.Tree, levelTitles []string, guard *budget.Guard) (Outcome, error) {
	b.state = StateWalking
	err := b.walk(tree, levelTitles, 0, "", guard)
	if errors.Is(err, ErrBudgetExceeded) {
		b.state = StateInterrupted
		b.log.Info("run interrupted", "elapsed", guard.Elapsed(), "stats", b.stats)
		return OutcomeInterrupted, nil
	}
	if err != nil {
		return OutcomeCompleted, err
	}
	b.state = StateCompleted
	b.log.Info("run completed", "elapsed", guard.Elapsed(), "stats", b.stats)
	return OutcomeCompleted, nil
}

func (b *Builder) walk(node *grouping.Tree, titles []string, depth int, scope target.Scope, guard *budget.Guard) error {
	if node.IsLeaf() {
		// Zero grouping columns: the whole record set is one leaf.
		if err := b.target.GetOrCreateLeafFields(scope, node.Records); err != nil {
			return fmt.Errorf("leaf fields %q: %w", scope, err)
		}
		b.stats.LeavesBuilt++
		return nil
	}
	if depth >= len(titles) {
		return fmt.Errorf("no level title for depth %d", depth)
	}

	level := checkpoint.LevelFor(depth)
	title := titles[depth]

	sel, err := b.target.GetOrCreateSelector(title, scope)
	if err != nil {
		return fmt.Errorf("selector %q at %q: %w", title, scope, err)
	}

	cursor, err := b.cursors.Cursor(level)
	if err != nil {
		return fmt.Errorf("cursor %s: %w", level, err)
	}

	keys := node.Keys()
	for _, key := range keys {
		// An empty cursor means no progress yet; nothing is skipped.
		if cursor != "" && key <= cursor {
			b.stats.KeysSkipped++
			continue
		}
		if guard.Expired() {
			b.log.Info("budget exceeded, suspending",
				"level", level, "next_key", key, "cursor", cursor)
			return ErrBudgetExceeded
		}

		child := node.Groups[key]
		childScope := scope.Child(key)
		if child.IsLeaf() {
			if _, err := b.target.GetOrCreateSectionBreak(key, childScope); err != nil {
				return fmt.Errorf("section %q: %w", childScope, err)
			}
			if err := b.target.GetOrCreateLeafFields(childScope, child.Records); err != nil {
				return fmt.Errorf("leaf fields %q: %w", childScope, err)
			}
			b.stats.LeavesBuilt++
		} else if err := b.walk(child, titles, depth+1, childScope, guard); err != nil {
			return err
		}

		// The key is fully processed: every descendant is materialized.
		// Only now may the cursor advance past it.
		if err := b.cursors.SetCursor(level, key); err != nil {
			return fmt.Errorf("set cursor %s: %w", level, err)
		}
		cursor = key
		b.stats.KeysProcessed++
		b.log.Debug("key completed", "level", level, "key", key)
	}

	// Pass complete. Reset the cursor so a sibling-scoped re-entry at a
	// higher level starts this level fresh.
	if err := b.cursors.SetCursor(level, ""); err != nil {
		return fmt.Errorf("reset cursor %s: %w", level, err)
	}

	// Rebuild the selector's full choice list now that every child exists.
	// Each lookup is an idempotent upsert, so this never duplicates nodes.
	choices := make([]target.Choice, 0, len(keys))
	for _, key := range keys {
		childScope := scope.Child(key)
		var ref target.NodeRef
		if node.Groups[key].IsLeaf() {
			ref, err = b.target.GetOrCreateSectionBreak(key, childScope)
		} else {
			ref, err = b.target.GetOrCreateSelector(titles[depth+1], childScope)
		}
		if err != nil {
			return fmt.Errorf("choice target %q: %w", childScope, err)
		}
		choices = append(choices, target.Choice{Label: key, Target: ref})
	}
	if err := b.target.SetSelectorChoices(sel, choices); err != nil {
		return fmt.Errorf("choices for %q at %q: %w", title, scope, err)
	}
	b.stats.ChoiceListsBuilt++
	return nil
}
