// Package labels renders a selection as display names.
//
// Tree and selection may come from different snapshots. Ids missing from the
// tree are dropped, never reported; a node with an empty name gets a
// synthetic label such as "Category 12" so nothing renders blank.
package labels

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/audienced/pkg/selection"
	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
)

// Everyone is shown for an empty selection: no targeting restriction.
const Everyone = "Everyone"

type entry struct {
	name string
	rank int
}

// Maps holds one id to name lookup per level, built in a single walk of the
// tree. The rank of each entry is its position in the walk, so projected
// labels keep tree order.
type Maps struct {
	levels [4]map[taxonomy.ID]entry
}

// BuildMaps walks tree once. A nil tree gives empty maps. Nodes without an
// id cannot be selected and are skipped; on duplicate ids the first node
// wins.
func BuildMaps(tree *taxonomy.Tree) *Maps {
	m := &Maps{}
	for i := range m.levels {
		m.levels[i] = make(map[taxonomy.ID]entry)
	}
	rank := 0
	tree.Walk(func(n taxonomy.Node) {
		rank++
		if n.ID.IsZero() {
			return
		}
		lvl := m.levels[n.Level]
		if _, dup := lvl[n.ID]; dup {
			return
		}
		name := strings.TrimSpace(n.Name)
		if name == "" {
			name = FallbackLabel(n.Level, n.ID)
		}
		lvl[n.ID] = entry{name: name, rank: rank}
	})
	return m
}

// FallbackLabel is the synthetic label for a node with no name.
func FallbackLabel(level taxonomy.Level, id taxonomy.ID) string {
	return fmt.Sprintf("%s %s", level.Title(), id)
}

// Name looks up the label of id at level.
func (m *Maps) Name(level taxonomy.Level, id taxonomy.ID) (string, bool) {
	if m == nil || level < taxonomy.LevelIdentity || level > taxonomy.LevelSubsub {
		return "", false
	}
	e, ok := m.levels[level][id]
	return e.name, ok
}

// Len returns the number of named nodes at level.
func (m *Maps) Len(level taxonomy.Level) int {
	if m == nil || level < taxonomy.LevelIdentity || level > taxonomy.LevelSubsub {
		return 0
	}
	return len(m.levels[level])
}

// Labels is a selection rendered per level. Lists are never nil.
type Labels struct {
	Identities    []string `json:"identities"`
	Categories    []string `json:"categories"`
	Subcategories []string `json:"subcategories"`
	Subsubs       []string `json:"subsubs"`
}

// Project renders s through m.
func Project(s selection.State, m *Maps) Labels {
	return Labels{
		Identities:    m.project(taxonomy.LevelIdentity, s.Identities()),
		Categories:    m.project(taxonomy.LevelCategory, s.Categories()),
		Subcategories: m.project(taxonomy.LevelSubcategory, s.Subcategories()),
		Subsubs:       m.project(taxonomy.LevelSubsub, s.Subsubs()),
	}
}

func (m *Maps) project(level taxonomy.Level, set selection.Set) []string {
	found := make([]entry, 0, set.Len())
	for _, id := range set.IDs() {
		if m == nil {
			break
		}
		if e, ok := m.levels[level][id]; ok {
			found = append(found, e)
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].rank < found[j].rank })

	out := make([]string, len(found))
	for i, e := range found {
		out[i] = e.name
	}
	return out
}

// Level returns the labels of one level.
func (l Labels) Level(level taxonomy.Level) []string {
	switch level {
	case taxonomy.LevelIdentity:
		return l.Identities
	case taxonomy.LevelCategory:
		return l.Categories
	case taxonomy.LevelSubcategory:
		return l.Subcategories
	case taxonomy.LevelSubsub:
		return l.Subsubs
	}
	return nil
}

// IsEveryone reports whether every list is empty.
func (l Labels) IsEveryone() bool {
	return len(l.Identities) == 0 && len(l.Categories) == 0 &&
		len(l.Subcategories) == 0 && len(l.Subsubs) == 0
}

// Summary is a one-line rendering: Everyone, or every label joined with
// ", ", identities first.
func (l Labels) Summary() string {
	if l.IsEveryone() {
		return Everyone
	}
	var all []string
	for _, level := range taxonomy.Levels {
		all = append(all, l.Level(level)...)
	}
	return strings.Join(all, ", ")
}

// String implements fmt.Stringer.
func (l Labels) String() string {
	return l.Summary()
}
