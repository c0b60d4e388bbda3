package labels

import (
	"testing"

	"github.com/fyrsmithlabs/audienced/pkg/selection"
	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree() *taxonomy.Tree {
	return taxonomy.NewTree(
		taxonomy.Identity{ID: "I1", Name: "Entrepreneurs", Categories: []taxonomy.Category{
			{ID: "C2", Name: "Tech", Subcategories: []taxonomy.Subcategory{
				{ID: "S1", Name: "Fintech", Subsubs: []taxonomy.SubsubCategory{
					{ID: "X1", Name: "Payments"},
					{ID: "X2", Name: "  "},
				}},
			}},
			{ID: "C1", Name: "Retail"},
		}},
		taxonomy.Identity{ID: "I2", Name: "Investors"},
		taxonomy.Identity{Name: "No id"},
	)
}

func TestBuildMaps(t *testing.T) {
	m := BuildMaps(testTree())

	name, ok := m.Name(taxonomy.LevelCategory, "C2")
	require.True(t, ok)
	assert.Equal(t, "Tech", name)

	name, ok = m.Name(taxonomy.LevelSubsub, "X2")
	require.True(t, ok)
	assert.Equal(t, "Sub-subcategory X2", name)

	_, ok = m.Name(taxonomy.LevelIdentity, "")
	assert.False(t, ok, "nodes without id are not selectable")

	_, ok = m.Name(taxonomy.Level(7), "I1")
	assert.False(t, ok)

	assert.Equal(t, 2, m.Len(taxonomy.LevelIdentity))
	assert.Equal(t, 2, m.Len(taxonomy.LevelSubsub))
}

func TestFallbackLabel(t *testing.T) {
	tests := []struct {
		level taxonomy.Level
		want  string
	}{
		{taxonomy.LevelIdentity, "Identity 4"},
		{taxonomy.LevelCategory, "Category 4"},
		{taxonomy.LevelSubcategory, "Subcategory 4"},
		{taxonomy.LevelSubsub, "Sub-subcategory 4"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackLabel(tt.level, "4"))
		})
	}
}

func TestProject(t *testing.T) {
	tree := testTree()
	engine := selection.NewEngine(tree)
	m := BuildMaps(tree)

	s := engine.ToggleSubsub(selection.Empty(), "I1", "C2", "S1", "X2", true)
	s = engine.ToggleCategory(s, "I1", "C1", true)
	s = engine.ToggleIdentity(s, "I2", true)

	got := Project(s, m)
	assert.Equal(t, []string{"Entrepreneurs", "Investors"}, got.Identities)
	assert.Equal(t, []string{"Tech", "Retail"}, got.Categories, "tree order, not id order")
	assert.Equal(t, []string{"Fintech"}, got.Subcategories)
	assert.Equal(t, []string{"Sub-subcategory X2"}, got.Subsubs)
	assert.False(t, got.IsEveryone())
	assert.Equal(t, "Entrepreneurs, Investors, Tech, Retail, Fintech, Sub-subcategory X2", got.Summary())
}

func TestProject_DropsUnknownIDs(t *testing.T) {
	s := selection.FromPayload(selection.Payload{
		IdentityIDs: []taxonomy.ID{"I1", "gone"},
		CategoryIDs: []taxonomy.ID{"C404"},
	})

	got := Project(s, BuildMaps(testTree()))
	assert.Equal(t, []string{"Entrepreneurs"}, got.Identities)
	assert.Empty(t, got.Categories)
	assert.NotNil(t, got.Categories)
}

func TestProject_Everyone(t *testing.T) {
	got := Project(selection.Empty(), BuildMaps(testTree()))

	for _, level := range taxonomy.Levels {
		assert.NotNil(t, got.Level(level))
		assert.Empty(t, got.Level(level))
	}
	assert.True(t, got.IsEveryone())
	assert.Equal(t, Everyone, got.Summary())
	assert.Equal(t, Everyone, got.String())
}

func TestProject_NilMaps(t *testing.T) {
	s := selection.FromPayload(selection.Payload{IdentityIDs: []taxonomy.ID{"I1"}})

	got := Project(s, nil)
	assert.True(t, got.IsEveryone())

	got = Project(s, BuildMaps(nil))
	assert.True(t, got.IsEveryone())
}
