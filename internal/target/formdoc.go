package target

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/fumiama/go-docx"
	"github.com/natefinch/atomic"

	"github.com/dgallion1/formforge/internal/source"
)

// Node kinds stored in the form document.
const (
	kindSelector = "selector"
	kindSection  = "section"
	kindFields   = "fields"
)

// Node is one materialized element of the form document.
type Node struct {
	Ref     NodeRef  `json:"ref"`
	Kind    string   `json:"kind"`
	Title   string   `json:"title"`
	Scope   Scope    `json:"scope"`
	Choices []Choice `json:"choices,omitempty"`
	Fields  []Field  `json:"fields,omitempty"`
}

// FormDoc is a DocumentTarget backed by a DOCX file plus a durable sidecar
// index. The sidecar holds nodes in creation order and a (kind, title, scope)
// key map, giving O(1) idempotent lookup instead of scanning the document.
// Every mutation rewrites the sidecar atomically; Flush renders the DOCX
// deterministically from the node model.
type FormDoc struct {
	path        string // docx output
	indexPath   string // sidecar index
	title       string
	valueColumn string

	mu    sync.Mutex
	nodes []*Node
	byKey map[string]*Node
	byRef map[NodeRef]*Node
}

// sidecar is the persisted shape of the index file.
type sidecar struct {
	Title string  `json:"title"`
	Nodes []*Node `json:"nodes"`
}

// OpenOrCreate opens the form document at path, reloading its sidecar index
// if one exists so get-or-create stays idempotent across process restarts.
func OpenOrCreate(path, title, valueColumn string) (*FormDoc, error) {
	d := &FormDoc{
		path:        path,
		indexPath:   path + ".index.json",
		title:       title,
		valueColumn: valueColumn,
		byKey:       make(map[string]*Node),
		byRef:       make(map[NodeRef]*Node),
	}

	data, err := os.ReadFile(d.indexPath)
	if errors.Is(err, fs.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", d.indexPath, err)
	}
	if sc.Title != "" {
		d.title = sc.Title
	}
	d.nodes = sc.Nodes
	for _, n := range d.nodes {
		d.byKey[nodeKey(n.Kind, n.Title, n.Scope)] = n
		d.byRef[n.Ref] = n
	}
	return d, nil
}

func nodeKey(kind, title string, scope Scope) string {
	return kind + "\x00" + title + "\x00" + string(scope)
}

// getOrCreate returns the existing node for (kind, title, scope) or appends
// a new one and persists the index. Callers hold d.mu.
func (d *FormDoc) getOrCreate(kind, title string, scope Scope) (*Node, error) {
	key := nodeKey(kind, title, scope)
	if n, ok := d.byKey[key]; ok {
		return n, nil
	}

	n := &Node{
		Ref:   refFor(kind, title, scope),
		Kind:  kind,
		Title: title,
		Scope: scope,
	}
	d.nodes = append(d.nodes, n)
	d.byKey[key] = n
	d.byRef[n.Ref] = n

	if err := d.persist(); err != nil {
		// Roll back so a failed write is not observable.
		d.nodes = d.nodes[:len(d.nodes)-1]
		delete(d.byKey, key)
		delete(d.byRef, n.Ref)
		return nil, err
	}
	return n, nil
}

func (d *FormDoc) GetOrCreateSelector(title string, scope Scope) (NodeRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.getOrCreate(kindSelector, title, scope)
	if err != nil {
		return "", fmt.Errorf("upsert selector %q: %w", title, err)
	}
	return n.Ref, nil
}

func (d *FormDoc) GetOrCreateSectionBreak(title string, scope Scope) (NodeRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.getOrCreate(kindSection, title, scope)
	if err != nil {
		return "", fmt.Errorf("upsert section %q: %w", title, err)
	}
	return n.Ref, nil
}

func (d *FormDoc) GetOrCreateLeafFields(scope Scope, group []source.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := nodeKey(kindFields, "", scope)
	if _, ok := d.byKey[key]; ok {
		return nil
	}

	n := &Node{
		Ref:    refFor(kindFields, "", scope),
		Kind:   kindFields,
		Scope:  scope,
		Fields: buildLeafFields(d.valueColumn, group),
	}
	d.nodes = append(d.nodes, n)
	d.byKey[key] = n
	d.byRef[n.Ref] = n

	if err := d.persist(); err != nil {
		d.nodes = d.nodes[:len(d.nodes)-1]
		delete(d.byKey, key)
		delete(d.byRef, n.Ref)
		return fmt.Errorf("upsert leaf fields %q: %w", scope, err)
	}
	return nil
}

func (d *FormDoc) SetSelectorChoices(sel NodeRef, choices []Choice) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.byRef[sel]
	if !ok {
		return fmt.Errorf("set choices: unknown node %s", sel)
	}
	if n.Kind != kindSelector {
		return fmt.Errorf("set choices: node %s is a %s, not a selector", sel, n.Kind)
	}
	prev := n.Choices
	n.Choices = choices
	if err := d.persist(); err != nil {
		n.Choices = prev
		return fmt.Errorf("set choices: %w", err)
	}
	return nil
}

// NodeCount returns the number of materialized nodes.
func (d *FormDoc) NodeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.nodes)
}

// Nodes returns the nodes in creation order.
func (d *FormDoc) Nodes() []*Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Node, len(d.nodes))
	copy(out, d.nodes)
	return out
}

func (d *FormDoc) persist() error {
	data, err := json.MarshalIndent(sidecar{Title: d.title, Nodes: d.nodes}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := atomic.WriteFile(d.indexPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// Flush renders the DOCX from the node model and writes it atomically. The
// rendering is a pure function of the model, so repeated flushes after
// identical runs produce identical documents.
func (d *FormDoc) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	w := docx.New().WithDefaultTheme()
	w.AddParagraph().AddText(d.title).Size("36")

	for _, n := range d.nodes {
		switch n.Kind {
		case kindSection:
			w.AddParagraph()
			w.AddParagraph().AddText(sectionHeading(n)).Size("30")
		case kindSelector:
			w.AddParagraph().AddText(selectorHeading(n)).Size("28")
			for _, c := range n.Choices {
				w.AddParagraph().AddText("    ○ " + c.Label)
			}
		case kindFields:
			for _, f := range n.Fields {
				w.AddParagraph().AddText("    " + renderField(f))
			}
		}
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return fmt.Errorf("render docx: %w", err)
	}
	if err := atomic.WriteFile(d.path, &buf); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

func sectionHeading(n *Node) string {
	if n.Scope == "" {
		return n.Title
	}
	return n.Title + " (" + string(n.Scope) + ")"
}

func selectorHeading(n *Node) string {
	if n.Scope == "" {
		return n.Title
	}
	return string(n.Scope) + " — " + n.Title
}

func renderField(f Field) string {
	switch f.Kind {
	case "choice":
		return f.Label + ": ▢ " + strings.Join(f.Options, "  ▢ ")
	case "scale":
		return fmt.Sprintf("%s (%d–%d): ____", f.Label, f.Min, f.Max)
	case "time":
		return f.Label + ": __:__"
	default:
		return f.Label + ": ____________________"
	}
}
