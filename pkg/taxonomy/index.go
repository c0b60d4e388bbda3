package taxonomy

// Index maps ids to nodes and owning parents for one tree snapshot.
type Index struct {
	tree          *Tree
	identities    map[ID]*Identity
	categories    map[ID]categoryEntry
	subcategories map[ID]subcategoryEntry
	subsubs       map[ID]subsubEntry
}

type categoryEntry struct {
	node     *Category
	identity ID
}

type subcategoryEntry struct {
	node     *Subcategory
	category ID
}

type subsubEntry struct {
	node        *SubsubCategory
	subcategory ID
}

// NewIndex indexes tree. Nodes without ids are skipped; the first node wins
// on duplicate ids. A nil tree yields an empty index.
func NewIndex(tree *Tree) *Index {
	idx := &Index{
		tree:          tree,
		identities:    make(map[ID]*Identity),
		categories:    make(map[ID]categoryEntry),
		subcategories: make(map[ID]subcategoryEntry),
		subsubs:       make(map[ID]subsubEntry),
	}
	if tree == nil {
		return idx
	}

	for i := range tree.Identities {
		ident := &tree.Identities[i]
		if !ident.ID.IsZero() {
			if _, dup := idx.identities[ident.ID]; !dup {
				idx.identities[ident.ID] = ident
			}
		}
		for j := range ident.Categories {
			cat := &ident.Categories[j]
			if !cat.ID.IsZero() {
				if _, dup := idx.categories[cat.ID]; !dup {
					idx.categories[cat.ID] = categoryEntry{node: cat, identity: ident.ID}
				}
			}
			for k := range cat.Subcategories {
				sub := &cat.Subcategories[k]
				if !sub.ID.IsZero() {
					if _, dup := idx.subcategories[sub.ID]; !dup {
						idx.subcategories[sub.ID] = subcategoryEntry{node: sub, category: cat.ID}
					}
				}
				for m := range sub.Subsubs {
					ss := &sub.Subsubs[m]
					if ss.ID.IsZero() {
						continue
					}
					if _, dup := idx.subsubs[ss.ID]; !dup {
						idx.subsubs[ss.ID] = subsubEntry{node: ss, subcategory: sub.ID}
					}
				}
			}
		}
	}
	return idx
}

// Tree returns the indexed tree (may be nil).
func (x *Index) Tree() *Tree {
	return x.tree
}

// Empty reports whether the index holds no identities.
func (x *Index) Empty() bool {
	return len(x.identities) == 0
}

// Identity looks up an identity.
func (x *Index) Identity(id ID) (*Identity, bool) {
	n, ok := x.identities[id]
	return n, ok
}

// Category looks up a category and its owning identity id.
func (x *Index) Category(id ID) (*Category, ID, bool) {
	e, ok := x.categories[id]
	return e.node, e.identity, ok
}

// Subcategory looks up a subcategory and its owning category id.
func (x *Index) Subcategory(id ID) (*Subcategory, ID, bool) {
	e, ok := x.subcategories[id]
	return e.node, e.category, ok
}

// Subsub looks up a sub-subcategory and its owning subcategory id.
func (x *Index) Subsub(id ID) (*SubsubCategory, ID, bool) {
	e, ok := x.subsubs[id]
	return e.node, e.subcategory, ok
}

// Has reports whether id exists at level.
func (x *Index) Has(level Level, id ID) bool {
	switch level {
	case LevelIdentity:
		_, ok := x.identities[id]
		return ok
	case LevelCategory:
		_, ok := x.categories[id]
		return ok
	case LevelSubcategory:
		_, ok := x.subcategories[id]
		return ok
	case LevelSubsub:
		_, ok := x.subsubs[id]
		return ok
	}
	return false
}

// Chain resolves the full ancestor chain of a node. Ancestors of level are
// filled in; ok is false when the node (or any ancestor link) is unknown.
func (x *Index) Chain(level Level, id ID) (Node, bool) {
	n := Node{Level: level, ID: id}
	switch level {
	case LevelIdentity:
		ident, ok := x.identities[id]
		if !ok {
			return n, false
		}
		n.Name = ident.Name
		return n, true
	case LevelCategory:
		e, ok := x.categories[id]
		if !ok {
			return n, false
		}
		n.Name, n.IdentityID = e.node.Name, e.identity
		return n, true
	case LevelSubcategory:
		e, ok := x.subcategories[id]
		if !ok {
			return n, false
		}
		c, ok := x.categories[e.category]
		if !ok {
			return n, false
		}
		n.Name, n.CategoryID, n.IdentityID = e.node.Name, e.category, c.identity
		return n, true
	case LevelSubsub:
		e, ok := x.subsubs[id]
		if !ok {
			return n, false
		}
		s, ok := x.subcategories[e.subcategory]
		if !ok {
			return n, false
		}
		c, ok := x.categories[s.category]
		if !ok {
			return n, false
		}
		n.Name, n.SubcategoryID, n.CategoryID, n.IdentityID = e.node.Name, e.subcategory, s.category, c.identity
		return n, true
	}
	return n, false
}
