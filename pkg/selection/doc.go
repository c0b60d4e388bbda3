// Package selection is the audience selection engine.
//
// A State holds four sets of selected ids, one per taxonomy level. Every
// operation is a pure function from a State (plus arguments) to a new State;
// nothing here mutates a value it did not just create. Hosts store the
// latest value and flatten it into a Payload when they submit.
//
// # Invariants
//
// Downward soundness: a selected subcategory implies its category is
// selected; a selected sub-subcategory implies its subcategory and category
// are selected. Every toggle either adds the full ancestor chain or removes
// the full descendant subtree, so no sequence of toggles can break it.
//
// Identity independence: the identity checkbox toggles on its own. Selecting
// anything beneath an identity adds the identity, but removing the identity
// never removes its descendants.
//
// # Two layers
//
// The package-level toggles (ToggleIdentity, ToggleCategory, ...) take tree
// nodes and never consult a tree. Engine binds a taxonomy.Index and takes
// ids instead, turning unknown ids into no-ops and applying the configured
// Policy.
//
//	engine := selection.NewEngine(tree)
//	s := selection.Empty()
//	s = engine.ToggleSubsub(s, "1", "10", "100", "1000", true)
//	payload := s.Payload()
package selection
