// Package view holds the selector's presentation state: which tree nodes are
// expanded and which identities the focus filter keeps on screen.
//
// View state is never persisted and never part of a save payload. It is kept
// apart from selection.State; the only coupling is ApplyFocus.
package view

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/audienced/pkg/labels"
	"github.com/fyrsmithlabs/audienced/pkg/selection"
	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
)

// State is an immutable expand/focus value. The zero value has everything
// collapsed and no focus.
type State struct {
	expanded map[taxonomy.NodeKey]struct{}
	focus    []string
}

// New returns a collapsed view with the given expanded keys.
func New(expanded ...taxonomy.NodeKey) State {
	return State{}.Expand(expanded...)
}

// IsExpanded reports whether key is expanded.
func (v State) IsExpanded(key taxonomy.NodeKey) bool {
	_, ok := v.expanded[key]
	return ok
}

// Toggle flips one node between collapsed and expanded. Parents and children
// are not touched.
func (v State) Toggle(key taxonomy.NodeKey) State {
	out := v.clone()
	if _, ok := out.expanded[key]; ok {
		delete(out.expanded, key)
	} else {
		out.expanded[key] = struct{}{}
	}
	return out
}

// Expand returns a view with keys expanded.
func (v State) Expand(keys ...taxonomy.NodeKey) State {
	out := v.clone()
	for _, k := range keys {
		out.expanded[k] = struct{}{}
	}
	return out
}

// CollapseAll clears every expand flag and keeps the focus.
func (v State) CollapseAll() State {
	return State{focus: v.focus}
}

// Expanded returns the expanded keys, sorted.
func (v State) Expanded() []taxonomy.NodeKey {
	keys := make([]taxonomy.NodeKey, 0, len(v.expanded))
	for k := range v.expanded {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Focus returns the identity names the view is restricted to. Empty means
// no restriction.
func (v State) Focus() []string {
	return append([]string(nil), v.focus...)
}

func (v State) clone() State {
	out := State{
		expanded: make(map[taxonomy.NodeKey]struct{}, len(v.expanded)+1),
		focus:    v.focus,
	}
	for k := range v.expanded {
		out.expanded[k] = struct{}{}
	}
	return out
}

// Visible returns the identities shown under the current focus, in tree
// order.
func (v State) Visible(tree *taxonomy.Tree) []taxonomy.Identity {
	all := tree.All()
	if len(v.focus) == 0 {
		return all
	}
	var out []taxonomy.Identity
	for _, ident := range all {
		if v.focused(ident.Name) {
			out = append(out, ident)
		}
	}
	return out
}

func (v State) focused(name string) bool {
	for _, f := range v.focus {
		if f == name {
			return true
		}
	}
	return false
}

// ApplyFocus sets a new focus filter. When the focus changes to a different
// non-empty value, every expand flag is cleared, the matching identities are
// expanded and the selection is reset with selection.ClearAll. Clearing the
// focus, or setting the focus it already has, keeps both values as they are.
func ApplyFocus(tree *taxonomy.Tree, v State, sel selection.State, focus []string) (State, selection.State) {
	focus = normalizeFocus(focus)
	if sameFocus(v.focus, focus) {
		return v, sel
	}
	if len(focus) == 0 {
		out := v.clone()
		out.focus = nil
		return out, sel
	}

	out := State{expanded: make(map[taxonomy.NodeKey]struct{}), focus: focus}
	for _, ident := range out.Visible(tree) {
		out.expanded[ident.Key()] = struct{}{}
	}
	return out, selection.ClearAll(sel)
}

func normalizeFocus(focus []string) []string {
	var out []string
	seen := make(map[string]bool, len(focus))
	for _, f := range focus {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func sameFocus(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, f := range a {
		set[f] = true
	}
	for _, f := range b {
		if !set[f] {
			return false
		}
	}
	return true
}

// Row is one rendered line of the selector.
type Row struct {
	Node        taxonomy.Node    `json:"node"`
	Key         taxonomy.NodeKey `json:"key"`
	Depth       int              `json:"depth"`
	Label       string           `json:"label"`
	Checked     bool             `json:"checked"`
	Expanded    bool             `json:"expanded"`
	HasChildren bool             `json:"has_children"`
}

// Selectable reports whether the row and its ancestors carry ids. Rows
// without an id render but cannot be persisted.
func (r Row) Selectable() bool {
	n := r.Node
	if n.ID.IsZero() {
		return false
	}
	switch n.Level {
	case taxonomy.LevelSubsub:
		return !n.SubcategoryID.IsZero() && !n.CategoryID.IsZero() && !n.IdentityID.IsZero()
	case taxonomy.LevelSubcategory:
		return !n.CategoryID.IsZero() && !n.IdentityID.IsZero()
	case taxonomy.LevelCategory:
		return !n.IdentityID.IsZero()
	}
	return true
}

// Action returns the action for clicking the row's checkbox.
func (r Row) Action(checked bool) selection.Action {
	return selection.ActionFor(r.Node, checked)
}

// Rows flattens the visible, expanded part of tree into render rows.
func (v State) Rows(tree *taxonomy.Tree, sel selection.State) []Row {
	rows := []Row{}
	add := func(n taxonomy.Node, depth int, children bool) bool {
		label := strings.TrimSpace(n.Name)
		if label == "" {
			label = labels.FallbackLabel(n.Level, n.ID)
		}
		r := Row{
			Node:        n,
			Key:         n.Key(),
			Depth:       depth,
			Label:       label,
			Checked:     !n.ID.IsZero() && sel.Has(n.Level, n.ID),
			Expanded:    children && v.IsExpanded(n.Key()),
			HasChildren: children,
		}
		rows = append(rows, r)
		return r.Expanded
	}

	for _, ident := range v.Visible(tree) {
		in := taxonomy.Node{Level: taxonomy.LevelIdentity, ID: ident.ID, Name: ident.Name}
		if !add(in, 0, len(ident.Categories) > 0) {
			continue
		}
		for _, cat := range ident.Categories {
			cn := taxonomy.Node{Level: taxonomy.LevelCategory, ID: cat.ID, Name: cat.Name, IdentityID: ident.ID}
			if !add(cn, 1, len(cat.Subcategories) > 0) {
				continue
			}
			for _, sub := range cat.Subcategories {
				sn := taxonomy.Node{Level: taxonomy.LevelSubcategory, ID: sub.ID, Name: sub.Name, IdentityID: ident.ID, CategoryID: cat.ID}
				if !add(sn, 2, len(sub.Subsubs) > 0) {
					continue
				}
				for _, ss := range sub.Subsubs {
					add(taxonomy.Node{
						Level: taxonomy.LevelSubsub, ID: ss.ID, Name: ss.Name,
						IdentityID: ident.ID, CategoryID: cat.ID, SubcategoryID: sub.ID,
					}, 3, false)
				}
			}
		}
	}
	return rows
}

type wireState struct {
	Expanded []taxonomy.NodeKey `json:"expanded"`
	Focus    []string           `json:"focus"`
}

// MarshalJSON implements json.Marshaler.
func (v State) MarshalJSON() ([]byte, error) {
	focus := v.Focus()
	if focus == nil {
		focus = []string{}
	}
	return json.Marshal(wireState{Expanded: v.Expanded(), Focus: focus})
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *State) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := New(w.Expanded...)
	out.focus = normalizeFocus(w.Focus)
	*v = out
	return nil
}
