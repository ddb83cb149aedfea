package target

import (
	"crypto/sha256"
	"fmt"

	"github.com/dgallion1/formforge/internal/source"
)

// NodeRef is an opaque identifier for a node in the target document. The
// document target exclusively owns the underlying structure; callers only
// hold refs transiently during a run.
type NodeRef string

// Scope identifies where in the document hierarchy a node lives, e.g.
// "Bronx/A". The root scope is the empty string.
type Scope string

// Child returns the scope one level below this one.
func (s Scope) Child(key string) Scope {
	if s == "" {
		return Scope(key)
	}
	return Scope(string(s) + "/" + key)
}

// Choice is one selectable entry in a selector's choice list.
type Choice struct {
	Label  string  `json:"label"`
	Target NodeRef `json:"target"`
}

// DocumentTarget exposes idempotent get-or-create operations on nodes of the
// target hierarchy. All get-or-create operations are keyed by (title, scope):
// calling one twice with the same key returns the same NodeRef and never
// creates a duplicate.
type DocumentTarget interface {
	// GetOrCreateSelector upserts a choice control titled title within scope.
	GetOrCreateSelector(title string, scope Scope) (NodeRef, error)

	// GetOrCreateSectionBreak upserts a section heading within scope.
	GetOrCreateSectionBreak(title string, scope Scope) (NodeRef, error)

	// GetOrCreateLeafFields upserts the fixed content field set for a record
	// group. Deterministic for a given group and scope.
	GetOrCreateLeafFields(scope Scope, group []source.Record) error

	// SetSelectorChoices replaces the selector's choice list.
	SetSelectorChoices(sel NodeRef, choices []Choice) error
}

// refFor derives the stable identifier for a node. The same (kind, title,
// scope) always hashes to the same ref, across runs and process restarts.
func refFor(kind, title string, scope Scope) NodeRef {
	h := sha256.Sum256([]byte(kind + "\x00" + title + "\x00" + string(scope)))
	return NodeRef(fmt.Sprintf("%x", h[:8]))
}
