package selection

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
)

// State is a four-level audience selection. It is a value: every operation
// in this package returns a new State and leaves its input untouched, so a
// host can keep the previous value around (undo, diffing) without copying.
type State struct {
	identities    Set
	categories    Set
	subcategories Set
	subsubs       Set
}

// Empty returns the empty selection ("Everyone").
func Empty() State {
	return State{}
}

// Identities returns the selected identity ids.
func (s State) Identities() Set { return s.identities }

// Categories returns the selected category ids.
func (s State) Categories() Set { return s.categories }

// Subcategories returns the selected subcategory ids.
func (s State) Subcategories() Set { return s.subcategories }

// Subsubs returns the selected sub-subcategory ids.
func (s State) Subsubs() Set { return s.subsubs }

// Level returns the set for level.
func (s State) Level(level taxonomy.Level) Set {
	switch level {
	case taxonomy.LevelIdentity:
		return s.identities
	case taxonomy.LevelCategory:
		return s.categories
	case taxonomy.LevelSubcategory:
		return s.subcategories
	case taxonomy.LevelSubsub:
		return s.subsubs
	}
	return Set{}
}

// Has reports whether id is selected at level.
func (s State) Has(level taxonomy.Level, id taxonomy.ID) bool {
	return s.Level(level).Has(id)
}

// IsEmpty reports whether nothing is selected at any level.
func (s State) IsEmpty() bool {
	return s.identities.Len() == 0 && s.categories.Len() == 0 &&
		s.subcategories.Len() == 0 && s.subsubs.Len() == 0
}

// Len returns the total number of selected ids across levels.
func (s State) Len() int {
	return s.identities.Len() + s.categories.Len() + s.subcategories.Len() + s.subsubs.Len()
}

// Equal reports per-level set equality.
func (s State) Equal(o State) bool {
	return s.identities.Equal(o.identities) &&
		s.categories.Equal(o.categories) &&
		s.subcategories.Equal(o.subcategories) &&
		s.subsubs.Equal(o.subsubs)
}

// String renders the selection for logs and test failures.
func (s State) String() string {
	join := func(set Set) string {
		ids := set.IDs()
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = string(id)
		}
		return "{" + strings.Join(parts, ",") + "}"
	}
	return fmt.Sprintf("identities=%s categories=%s subcategories=%s subsubs=%s",
		join(s.identities), join(s.categories), join(s.subcategories), join(s.subsubs))
}

// MarshalJSON encodes the flattened Payload.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Payload())
}

// UnmarshalJSON decodes a Payload.
func (s *State) UnmarshalJSON(data []byte) error {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = FromPayload(p)
	return nil
}

func (s State) withLevel(level taxonomy.Level, set Set) State {
	switch level {
	case taxonomy.LevelIdentity:
		s.identities = set
	case taxonomy.LevelCategory:
		s.categories = set
	case taxonomy.LevelSubcategory:
		s.subcategories = set
	case taxonomy.LevelSubsub:
		s.subsubs = set
	}
	return s
}
