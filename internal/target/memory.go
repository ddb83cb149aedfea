package target

import (
	"fmt"
	"sync"

	"github.com/dgallion1/formforge/internal/source"
)

// Memory is an in-memory DocumentTarget for tests. It records every
// creation in order and counts upsert calls so tests can assert both
// idempotence and walk order.
type Memory struct {
	mu sync.Mutex

	nodes   map[string]*Node // key -> node
	byRef   map[NodeRef]*Node
	Created []string // "kind title@scope" in creation order
	Calls   int      // total get-or-create calls, including hits
}

func NewMemory() *Memory {
	return &Memory{
		nodes: make(map[string]*Node),
		byRef: make(map[NodeRef]*Node),
	}
}

func (m *Memory) upsert(kind, title string, scope Scope) *Node {
	m.Calls++
	key := nodeKey(kind, title, scope)
	if n, ok := m.nodes[key]; ok {
		return n
	}
	n := &Node{Ref: refFor(kind, title, scope), Kind: kind, Title: title, Scope: scope}
	m.nodes[key] = n
	m.byRef[n.Ref] = n
	m.Created = append(m.Created, fmt.Sprintf("%s %s@%s", kind, title, scope))
	return n
}

func (m *Memory) GetOrCreateSelector(title string, scope Scope) (NodeRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsert(kindSelector, title, scope).Ref, nil
}

func (m *Memory) GetOrCreateSectionBreak(title string, scope Scope) (NodeRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsert(kindSection, title, scope).Ref, nil
}

func (m *Memory) GetOrCreateLeafFields(scope Scope, group []source.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.upsert(kindFields, "", scope)
	if n.Fields == nil {
		n.Fields = buildLeafFields("", group)
	}
	return nil
}

func (m *Memory) SetSelectorChoices(sel NodeRef, choices []Choice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byRef[sel]
	if !ok {
		return fmt.Errorf("set choices: unknown node %s", sel)
	}
	n.Choices = choices
	return nil
}

// Choices returns the current choice list of a selector.
func (m *Memory) Choices(sel NodeRef) []Choice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.byRef[sel]; ok {
		return n.Choices
	}
	return nil
}

// NodeCount returns the number of distinct nodes created.
func (m *Memory) NodeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes)
}
