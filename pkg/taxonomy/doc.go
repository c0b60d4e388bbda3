// Package taxonomy models the four-level audience taxonomy.
//
// # Shape
//
// The tree has exactly four fixed levels:
//
//	Identity
//	  └── Category
//	        └── Subcategory
//	              └── SubsubCategory
//
// Ids are opaque (JSON strings or numbers) and unique within their own level
// across the whole tree. A Subcategory id never collides with another
// Subcategory id, even under a different Category. That uniqueness lets a
// selection use one flat set of ids per level instead of paths.
//
// # Loading
//
// Trees arrive as JSON from the content backend, either as a bare array of
// identities or wrapped in an object:
//
//	[{"id": 1, "name": "Entrepreneurs", "categories": [...]}]
//	{"identities": [{"id": 1, "name": "Entrepreneurs", "categories": [...]}]}
//
// Local fixture trees may also be written in TOML. LoadFile picks the
// decoder by extension.
//
// A nil *Tree is valid everywhere and behaves as an empty tree.
//
// # Index
//
// Index gives O(1) lookups from an id to its node and owning parent. It is
// built once per tree and is read-only afterwards; the first node wins when
// the tree breaks the per-level uniqueness rule (see Tree.Validate).
package taxonomy
