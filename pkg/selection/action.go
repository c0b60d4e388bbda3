package selection

import (
	"fmt"

	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
)

// Action is a serialisable user action: a checkbox click on one node. ID is
// the clicked node; the ancestor fields are required for the levels below
// it and ignored above.
type Action struct {
	Level         taxonomy.Level `json:"level" validate:"min=0,max=3"`
	IdentityID    taxonomy.ID    `json:"identity_id,omitempty"`
	CategoryID    taxonomy.ID    `json:"category_id,omitempty"`
	SubcategoryID taxonomy.ID    `json:"subcategory_id,omitempty"`
	ID            taxonomy.ID    `json:"id" validate:"required,max=128"`
	Checked       bool           `json:"checked"`
}

// Verb returns "select" or "deselect".
func (a Action) Verb() string {
	if a.Checked {
		return "select"
	}
	return "deselect"
}

// String implements fmt.Stringer.
func (a Action) String() string {
	return fmt.Sprintf("%s %s %s", a.Verb(), a.Level, a.ID)
}

// Apply dispatches a to the matching toggle. Unknown levels are a no-op.
func (e *Engine) Apply(s State, a Action) State {
	switch a.Level {
	case taxonomy.LevelIdentity:
		return e.ToggleIdentity(s, a.ID, a.Checked)
	case taxonomy.LevelCategory:
		return e.ToggleCategory(s, a.IdentityID, a.ID, a.Checked)
	case taxonomy.LevelSubcategory:
		return e.ToggleSubcategory(s, a.IdentityID, a.CategoryID, a.ID, a.Checked)
	case taxonomy.LevelSubsub:
		return e.ToggleSubsub(s, a.IdentityID, a.CategoryID, a.SubcategoryID, a.ID, a.Checked)
	}
	return s
}

// ActionFor builds the action for clicking node n.
func ActionFor(n taxonomy.Node, checked bool) Action {
	return Action{
		Level:         n.Level,
		IdentityID:    n.IdentityID,
		CategoryID:    n.CategoryID,
		SubcategoryID: n.SubcategoryID,
		ID:            n.ID,
		Checked:       checked,
	}
}
