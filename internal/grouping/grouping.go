package grouping

import (
	"sort"

	"github.com/dgallion1/formforge/internal/source"
)

// Tree is a recursive partition of records by an ordered list of key columns.
// A leaf holds an ordered record group; an internal node maps each distinct
// key value to a child subtree. Depth equals the number of key columns.
type Tree struct {
	Records []source.Record  // leaf payload, nil for internal nodes
	Groups  map[string]*Tree // child subtrees, nil for leaves
}

// IsLeaf reports whether this node holds records rather than children.
func (t *Tree) IsLeaf() bool {
	return t.Groups == nil
}

// Keys returns the distinct key values at this node in ascending
// lexicographic order. Key values compare as opaque strings.
func (t *Tree) Keys() []string {
	keys := make([]string, 0, len(t.Groups))
	for k := range t.Groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Depth returns the number of grouping levels below this node.
func (t *Tree) Depth() int {
	if t.IsLeaf() {
		return 0
	}
	max := 0
	for _, child := range t.Groups {
		if d := child.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// GroupBy partitions records into a nested tree by the given key columns.
// An empty key list returns the records unchanged as a single leaf. Within
// each group the member records keep their first-occurrence order; order
// across sibling groups is not significant (consumers sort keys themselves).
// The key column slice is never modified.
func GroupBy(records []source.Record, keyColumns []string) *Tree {
	return groupAt(records, keyColumns, 0)
}

func groupAt(records []source.Record, keyColumns []string, depth int) *Tree {
	if depth >= len(keyColumns) {
		return &Tree{Records: records}
	}

	column := keyColumns[depth]
	members := make(map[string][]source.Record)
	for _, rec := range records {
		v := rec.Get(column)
		members[v] = append(members[v], rec)
	}

	node := &Tree{Groups: make(map[string]*Tree, len(members))}
	for key, group := range members {
		node.Groups[key] = groupAt(group, keyColumns, depth+1)
	}
	return node
}
