package taxonomy

import (
	"fmt"
	"strings"
)

// Level is one of the four fixed taxonomy levels.
type Level int

const (
	LevelIdentity Level = iota
	LevelCategory
	LevelSubcategory
	LevelSubsub
)

// Levels lists every level from the root down.
var Levels = []Level{LevelIdentity, LevelCategory, LevelSubcategory, LevelSubsub}

var levelNames = [...]string{"identity", "category", "subcategory", "subsub"}

// String returns the wire name of the level.
func (l Level) String() string {
	if l < LevelIdentity || l > LevelSubsub {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Title returns the human-readable level name used in synthetic labels.
func (l Level) Title() string {
	switch l {
	case LevelIdentity:
		return "Identity"
	case LevelCategory:
		return "Category"
	case LevelSubcategory:
		return "Subcategory"
	case LevelSubsub:
		return "Sub-subcategory"
	}
	return l.String()
}

// ParseLevel parses a wire level name. "subsubcategory" and
// "sub-subcategory" are accepted as aliases for "subsub".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "identity":
		return LevelIdentity, nil
	case "category":
		return LevelCategory, nil
	case "subcategory":
		return LevelSubcategory, nil
	case "subsub", "subsubcategory", "sub-subcategory":
		return LevelSubsub, nil
	}
	return 0, fmt.Errorf("unknown taxonomy level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if l < LevelIdentity || l > LevelSubsub {
		return nil, fmt.Errorf("invalid taxonomy level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// NodeKey identifies a node for UI purposes (expand/collapse state). Ids are
// only unique per level, so the key carries the level. A node without an id
// falls back to its name.
type NodeKey string

// KeyFor builds the key for a node at level.
func KeyFor(level Level, id ID, name string) NodeKey {
	if id.IsZero() {
		return NodeKey(level.String() + "#" + name)
	}
	return NodeKey(level.String() + ":" + string(id))
}
