package taxonomy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Identity is a top-level audience segment.
type Identity struct {
	ID         ID         `json:"id" toml:"id"`
	Name       string     `json:"name" toml:"name"`
	Categories []Category `json:"categories" toml:"categories"`
}

// Category sits under an Identity.
type Category struct {
	ID            ID            `json:"id" toml:"id"`
	Name          string        `json:"name" toml:"name"`
	Subcategories []Subcategory `json:"subcategories" toml:"subcategories"`
}

// Subcategory sits under a Category.
type Subcategory struct {
	ID      ID               `json:"id" toml:"id"`
	Name    string           `json:"name" toml:"name"`
	Subsubs []SubsubCategory `json:"subsubs" toml:"subsubs"`
}

// SubsubCategory is a leaf.
type SubsubCategory struct {
	ID   ID     `json:"id" toml:"id"`
	Name string `json:"name" toml:"name"`
}

// Key returns the UI key of the identity.
func (i Identity) Key() NodeKey { return KeyFor(LevelIdentity, i.ID, i.Name) }

// Key returns the UI key of the category.
func (c Category) Key() NodeKey { return KeyFor(LevelCategory, c.ID, c.Name) }

// Key returns the UI key of the subcategory.
func (s Subcategory) Key() NodeKey { return KeyFor(LevelSubcategory, s.ID, s.Name) }

// Key returns the UI key of the sub-subcategory.
func (s SubsubCategory) Key() NodeKey { return KeyFor(LevelSubsub, s.ID, s.Name) }

// Tree is the externally supplied taxonomy. Treat it as read-only once
// loaded: indexes and label maps built from it are not refreshed.
type Tree struct {
	Identities []Identity `json:"identities" toml:"identities"`
}

// NewTree wraps identities in a Tree.
func NewTree(identities ...Identity) *Tree {
	return &Tree{Identities: identities}
}

// UnmarshalJSON accepts either a bare identity array or an object with an
// "identities" field. null decodes to an empty tree.
func (t *Tree) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Identities = nil
		return nil
	}
	if data[0] == '[' {
		var ids []Identity
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		t.Identities = ids
		return nil
	}
	var wrapped struct {
		Identities []Identity `json:"identities"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	t.Identities = wrapped.Identities
	return nil
}

// Len returns the number of identities. Safe on a nil tree.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Identities)
}

// All returns the identities. Safe on a nil tree.
func (t *Tree) All() []Identity {
	if t == nil {
		return nil
	}
	return t.Identities
}

// IdentityByName returns the first identity whose name matches exactly.
func (t *Tree) IdentityByName(name string) (Identity, bool) {
	for _, ident := range t.All() {
		if ident.Name == name {
			return ident, true
		}
	}
	return Identity{}, false
}

// Walk calls fn for every node, parents before children. The ancestor ids
// are passed along so callers can build parent lookups in one traversal.
func (t *Tree) Walk(fn func(n Node)) {
	for _, ident := range t.All() {
		fn(Node{Level: LevelIdentity, ID: ident.ID, Name: ident.Name})
		for _, cat := range ident.Categories {
			fn(Node{Level: LevelCategory, ID: cat.ID, Name: cat.Name, IdentityID: ident.ID})
			for _, sub := range cat.Subcategories {
				fn(Node{Level: LevelSubcategory, ID: sub.ID, Name: sub.Name, IdentityID: ident.ID, CategoryID: cat.ID})
				for _, ss := range sub.Subsubs {
					fn(Node{Level: LevelSubsub, ID: ss.ID, Name: ss.Name, IdentityID: ident.ID, CategoryID: cat.ID, SubcategoryID: sub.ID})
				}
			}
		}
	}
}

// Node is a flattened view of one tree node with its ancestor chain.
type Node struct {
	Level         Level  `json:"level"`
	ID            ID     `json:"id"`
	Name          string `json:"name"`
	IdentityID    ID     `json:"identity_id,omitempty"`
	CategoryID    ID     `json:"category_id,omitempty"`
	SubcategoryID ID     `json:"subcategory_id,omitempty"`
}

// Key returns the UI key of the node.
func (n Node) Key() NodeKey { return KeyFor(n.Level, n.ID, n.Name) }

// ErrDuplicateID is wrapped by Validate for every id repeated within a level.
var ErrDuplicateID = errors.New("duplicate taxonomy id")

// ErrMissingID is wrapped by Validate for every node without an id.
var ErrMissingID = errors.New("taxonomy node without id")

// Validate reports nodes that break the per-level uniqueness rule or lack
// an id. Such trees are still usable; callers decide whether to warn or
// refuse them.
func (t *Tree) Validate() error {
	seen := make(map[Level]map[ID]bool, len(Levels))
	for _, l := range Levels {
		seen[l] = make(map[ID]bool)
	}

	var errs []error
	t.Walk(func(n Node) {
		if n.ID.IsZero() {
			errs = append(errs, fmt.Errorf("%w: %s %q", ErrMissingID, n.Level, n.Name))
			return
		}
		if seen[n.Level][n.ID] {
			errs = append(errs, fmt.Errorf("%w: %s %s", ErrDuplicateID, n.Level, n.ID))
			return
		}
		seen[n.Level][n.ID] = true
	})
	return errors.Join(errs...)
}

// Count returns the number of nodes per level.
func (t *Tree) Count() map[Level]int {
	counts := make(map[Level]int, len(Levels))
	t.Walk(func(n Node) {
		counts[n.Level]++
	})
	return counts
}

// String renders a compact outline, mainly for debugging and CLI output.
func (t *Tree) String() string {
	var b strings.Builder
	t.Walk(func(n Node) {
		b.WriteString(strings.Repeat("  ", int(n.Level)))
		b.WriteString(n.Name)
		if !n.ID.IsZero() {
			b.WriteString(" [")
			b.WriteString(string(n.ID))
			b.WriteString("]")
		}
		b.WriteString("\n")
	})
	return b.String()
}
