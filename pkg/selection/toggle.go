package selection

import "github.com/fyrsmithlabs/audienced/pkg/taxonomy"

// ToggleIdentity adds or removes an identity id. It never cascades: the
// identity checkbox is a standalone broad-audience marker.
func ToggleIdentity(s State, identityID taxonomy.ID, checked bool) State {
	if checked {
		s.identities = s.identities.With(identityID)
	} else {
		s.identities = s.identities.Without(identityID)
	}
	return s
}

// ToggleCategory selects a category (adding its identity) or deselects it
// together with every subcategory and sub-subcategory beneath it. The
// identity is left alone on deselect; sibling categories may still be
// selected.
func ToggleCategory(s State, identityID taxonomy.ID, category taxonomy.Category, checked bool) State {
	if checked {
		if identityID.IsZero() || category.ID.IsZero() {
			return s
		}
		s.identities = s.identities.With(identityID)
		s.categories = s.categories.With(category.ID)
		return s
	}

	s.categories = s.categories.Without(category.ID)
	subIDs := make([]taxonomy.ID, 0, len(category.Subcategories))
	var subsubIDs []taxonomy.ID
	for _, sub := range category.Subcategories {
		subIDs = append(subIDs, sub.ID)
		for _, ss := range sub.Subsubs {
			subsubIDs = append(subsubIDs, ss.ID)
		}
	}
	s.subcategories = s.subcategories.Without(subIDs...)
	s.subsubs = s.subsubs.Without(subsubIDs...)
	return s
}

// ToggleSubcategory selects a subcategory with its full ancestor chain, or
// deselects it together with its sub-subcategories. Category and identity
// stay selected on deselect; Engine applies PruneEmptyAncestors when asked.
func ToggleSubcategory(s State, identityID, categoryID taxonomy.ID, subcategory taxonomy.Subcategory, checked bool) State {
	if checked {
		if identityID.IsZero() || categoryID.IsZero() || subcategory.ID.IsZero() {
			return s
		}
		s.identities = s.identities.With(identityID)
		s.categories = s.categories.With(categoryID)
		s.subcategories = s.subcategories.With(subcategory.ID)
		return s
	}

	s.subcategories = s.subcategories.Without(subcategory.ID)
	subsubIDs := make([]taxonomy.ID, 0, len(subcategory.Subsubs))
	for _, ss := range subcategory.Subsubs {
		subsubIDs = append(subsubIDs, ss.ID)
	}
	s.subsubs = s.subsubs.Without(subsubIDs...)
	return s
}

// ToggleSubsub selects a sub-subcategory with all three ancestors, or
// removes only the sub-subcategory.
func ToggleSubsub(s State, identityID, categoryID, subcategoryID taxonomy.ID, subsub taxonomy.SubsubCategory, checked bool) State {
	if checked {
		if identityID.IsZero() || categoryID.IsZero() || subcategoryID.IsZero() || subsub.ID.IsZero() {
			return s
		}
		s.identities = s.identities.With(identityID)
		s.categories = s.categories.With(categoryID)
		s.subcategories = s.subcategories.With(subcategoryID)
		s.subsubs = s.subsubs.With(subsub.ID)
		return s
	}

	s.subsubs = s.subsubs.Without(subsub.ID)
	return s
}

// ClearAll returns the empty selection. Used by the explicit "Clear" action
// and when a selector switches context (see view.ApplyFocus).
func ClearAll(State) State {
	return Empty()
}
