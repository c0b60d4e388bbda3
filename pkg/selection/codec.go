package selection

import "github.com/fyrsmithlabs/audienced/pkg/taxonomy"

// Record is one persisted reference as the content backend returns it.
type Record struct {
	ID taxonomy.ID `json:"id"`
}

// Records is the hydration input for editing existing content.
type Records struct {
	Identities    []Record `json:"audienceIdentities"`
	Categories    []Record `json:"audienceCategories"`
	Subcategories []Record `json:"audienceSubcategories"`
	Subsubs       []Record `json:"audienceSubsubs"`
}

// Payload is the flattened selection attached to a save request. An empty
// array for a level means "unrestricted" at that level.
type Payload struct {
	IdentityIDs       []taxonomy.ID `json:"identityIds"`
	CategoryIDs       []taxonomy.ID `json:"categoryIds"`
	SubcategoryIDs    []taxonomy.ID `json:"subcategoryIds"`
	SubsubCategoryIDs []taxonomy.ID `json:"subsubCategoryIds"`
}

// Hydrate converts persisted records into a State. Records without an id
// are skipped. No tree is consulted; use Engine.Repair to reconcile with
// the current tree.
func Hydrate(r Records) State {
	ids := func(recs []Record) []taxonomy.ID {
		out := make([]taxonomy.ID, 0, len(recs))
		for _, rec := range recs {
			out = append(out, rec.ID)
		}
		return out
	}
	return State{
		identities:    NewSet(ids(r.Identities)...),
		categories:    NewSet(ids(r.Categories)...),
		subcategories: NewSet(ids(r.Subcategories)...),
		subsubs:       NewSet(ids(r.Subsubs)...),
	}
}

// Records converts the state back to the record shape.
func (s State) Records() Records {
	recs := func(set Set) []Record {
		ids := set.IDs()
		out := make([]Record, len(ids))
		for i, id := range ids {
			out[i] = Record{ID: id}
		}
		return out
	}
	return Records{
		Identities:    recs(s.identities),
		Categories:    recs(s.categories),
		Subcategories: recs(s.subcategories),
		Subsubs:       recs(s.subsubs),
	}
}

// Payload flattens the state. Slices are never nil so they encode as [].
func (s State) Payload() Payload {
	return Payload{
		IdentityIDs:       s.identities.IDs(),
		CategoryIDs:       s.categories.IDs(),
		SubcategoryIDs:    s.subcategories.IDs(),
		SubsubCategoryIDs: s.subsubs.IDs(),
	}
}

// FromPayload rebuilds a State from a flattened payload.
func FromPayload(p Payload) State {
	return State{
		identities:    NewSet(p.IdentityIDs...),
		categories:    NewSet(p.CategoryIDs...),
		subcategories: NewSet(p.SubcategoryIDs...),
		subsubs:       NewSet(p.SubsubCategoryIDs...),
	}
}
