package selection

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
)

// Policy selects the cascade rules an Engine applies on deselect. One policy
// is fixed per engine; the two rule sets are never mixed.
type Policy struct {
	// PruneEmptyAncestors removes a subcategory when its last selected
	// sub-subcategory is deselected, and a category when its last selected
	// subcategory is deselected. Identities are never pruned.
	//
	// Off by default: deselecting a child leaves its parents selected.
	PruneEmptyAncestors bool `json:"prune_empty_ancestors" koanf:"prune_empty_ancestors"`
}

// Engine applies toggles by id against one tree snapshot. Ids that are not
// in the tree, or ancestor ids that do not own the node, make the toggle a
// no-op: trees may be refreshed between renders.
//
// Engine is immutable and safe for concurrent use.
type Engine struct {
	index  *taxonomy.Index
	policy Policy
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy sets the deselect policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// NewEngine builds an engine over tree. A nil tree gives an engine on which
// every toggle is a no-op.
func NewEngine(tree *taxonomy.Tree, opts ...Option) *Engine {
	return NewEngineFromIndex(taxonomy.NewIndex(tree), opts...)
}

// NewEngineFromIndex builds an engine over an existing index.
func NewEngineFromIndex(idx *taxonomy.Index, opts ...Option) *Engine {
	if idx == nil {
		idx = taxonomy.NewIndex(nil)
	}
	e := &Engine{index: idx}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Index returns the engine's tree index.
func (e *Engine) Index() *taxonomy.Index {
	return e.index
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// ToggleIdentity toggles a known identity.
func (e *Engine) ToggleIdentity(s State, identityID taxonomy.ID, checked bool) State {
	if _, ok := e.index.Identity(identityID); !ok {
		return s
	}
	return ToggleIdentity(s, identityID, checked)
}

// ToggleCategory toggles a known category owned by identityID.
func (e *Engine) ToggleCategory(s State, identityID, categoryID taxonomy.ID, checked bool) State {
	cat, owner, ok := e.index.Category(categoryID)
	if !ok || owner != identityID {
		return s
	}
	return ToggleCategory(s, identityID, *cat, checked)
}

// ToggleSubcategory toggles a known subcategory owned by categoryID, which
// in turn must be owned by identityID.
func (e *Engine) ToggleSubcategory(s State, identityID, categoryID, subcategoryID taxonomy.ID, checked bool) State {
	sub, parent, ok := e.index.Subcategory(subcategoryID)
	if !ok || parent != categoryID || !e.owns(identityID, categoryID) {
		return s
	}
	next := ToggleSubcategory(s, identityID, categoryID, *sub, checked)
	// Only a deselect that removed something can leave a parent empty.
	if !checked && e.policy.PruneEmptyAncestors && s.subcategories.Has(subcategoryID) {
		next = e.pruneCategory(next, categoryID)
	}
	return next
}

// ToggleSubsub toggles a known sub-subcategory with a matching ancestor
// chain.
func (e *Engine) ToggleSubsub(s State, identityID, categoryID, subcategoryID, subsubID taxonomy.ID, checked bool) State {
	ss, parent, ok := e.index.Subsub(subsubID)
	if !ok || parent != subcategoryID {
		return s
	}
	if _, cat, ok := e.index.Subcategory(subcategoryID); !ok || cat != categoryID || !e.owns(identityID, categoryID) {
		return s
	}
	next := ToggleSubsub(s, identityID, categoryID, subcategoryID, *ss, checked)
	if !checked && e.policy.PruneEmptyAncestors && s.subsubs.Has(subsubID) {
		next = e.pruneSubcategory(next, subcategoryID)
		next = e.pruneCategory(next, categoryID)
	}
	return next
}

// Clear resets the selection.
func (e *Engine) Clear(s State) State {
	return ClearAll(s)
}

func (e *Engine) owns(identityID, categoryID taxonomy.ID) bool {
	_, owner, ok := e.index.Category(categoryID)
	return ok && owner == identityID
}

// pruneSubcategory drops a selected subcategory with no selected children.
// A subcategory without any sub-subcategories in the tree is a leaf choice
// of its own and is kept.
func (e *Engine) pruneSubcategory(s State, subcategoryID taxonomy.ID) State {
	sub, _, ok := e.index.Subcategory(subcategoryID)
	if !ok || !s.subcategories.Has(subcategoryID) || len(sub.Subsubs) == 0 {
		return s
	}
	for _, ss := range sub.Subsubs {
		if s.subsubs.Has(ss.ID) {
			return s
		}
	}
	s.subcategories = s.subcategories.Without(subcategoryID)
	return s
}

// pruneCategory drops a selected category with no selected children. A
// category without subcategories in the tree is kept.
func (e *Engine) pruneCategory(s State, categoryID taxonomy.ID) State {
	cat, _, ok := e.index.Category(categoryID)
	if !ok || !s.categories.Has(categoryID) || len(cat.Subcategories) == 0 {
		return s
	}
	for _, sub := range cat.Subcategories {
		if s.subcategories.Has(sub.ID) {
			return s
		}
	}
	s.categories = s.categories.Without(categoryID)
	return s
}

// Repair reconciles a hydrated state with the tree: ids unknown to the tree
// are dropped and every known descendant gets its full ancestor chain
// (including the owning identity), exactly as if it had been re-selected.
// With an empty tree there is nothing to check against and s is returned
// unchanged.
func (e *Engine) Repair(s State) State {
	if e.index.Empty() {
		return s
	}

	out := State{}
	for _, id := range s.identities.IDs() {
		if e.index.Has(taxonomy.LevelIdentity, id) {
			out.identities = out.identities.With(id)
		}
	}
	for _, level := range taxonomy.Levels[1:] {
		for _, id := range s.Level(level).IDs() {
			n, ok := e.index.Chain(level, id)
			if !ok || n.IdentityID.IsZero() {
				continue
			}
			out.identities = out.identities.With(n.IdentityID)
			out.categories = out.categories.With(n.CategoryID)
			out.subcategories = out.subcategories.With(n.SubcategoryID)
			out = out.withLevel(level, out.Level(level).With(id))
		}
	}
	return out
}

// ErrInvariant is wrapped by every Violation.
var ErrInvariant = errors.New("selection invariant violated")

// Violation describes one selected id that breaks downward soundness or is
// unknown to the tree.
type Violation struct {
	Level   taxonomy.Level
	ID      taxonomy.ID
	Missing taxonomy.Level // ancestor level that is not selected
	Unknown bool
}

func (v Violation) Error() string {
	if v.Unknown {
		return fmt.Sprintf("%v: %s %s is not in the taxonomy", ErrInvariant, v.Level, v.ID)
	}
	return fmt.Sprintf("%v: %s %s selected without its %s", ErrInvariant, v.Level, v.ID, v.Missing)
}

// Unwrap returns ErrInvariant.
func (v Violation) Unwrap() error {
	return ErrInvariant
}

// Validate checks downward soundness against the tree. It returns nil or
// an errors.Join of Violation values.
func (e *Engine) Validate(s State) error {
	var errs []error
	for _, id := range s.identities.IDs() {
		if !e.index.Has(taxonomy.LevelIdentity, id) {
			errs = append(errs, Violation{Level: taxonomy.LevelIdentity, ID: id, Unknown: true})
		}
	}
	for _, level := range taxonomy.Levels[1:] {
		for _, id := range s.Level(level).IDs() {
			n, ok := e.index.Chain(level, id)
			if !ok {
				errs = append(errs, Violation{Level: level, ID: id, Unknown: true})
				continue
			}
			if level >= taxonomy.LevelSubcategory && !s.categories.Has(n.CategoryID) {
				errs = append(errs, Violation{Level: level, ID: id, Missing: taxonomy.LevelCategory})
			}
			if level == taxonomy.LevelSubsub && !s.subcategories.Has(n.SubcategoryID) {
				errs = append(errs, Violation{Level: level, ID: id, Missing: taxonomy.LevelSubcategory})
			}
		}
	}
	return errors.Join(errs...)
}
