package selection

import (
	"sort"

	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
)

// Set is an immutable set of ids. The zero value is the empty set.
//
// With and Without never touch the receiver's map; they return the receiver
// itself when nothing changes and a fresh copy otherwise, so unchanged sets
// are shared between successive states.
type Set struct {
	m map[taxonomy.ID]struct{}
}

// NewSet builds a set from ids, skipping zero ids.
func NewSet(ids ...taxonomy.ID) Set {
	return Set{}.With(ids...)
}

// Has reports membership.
func (s Set) Has(id taxonomy.ID) bool {
	_, ok := s.m[id]
	return ok
}

// Len returns the number of ids.
func (s Set) Len() int {
	return len(s.m)
}

// IDs returns the members in taxonomy.Less order. Never nil.
func (s Set) IDs() []taxonomy.ID {
	ids := make([]taxonomy.ID, 0, len(s.m))
	for id := range s.m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return taxonomy.Less(ids[i], ids[j]) })
	return ids
}

// With returns a set that also contains ids.
func (s Set) With(ids ...taxonomy.ID) Set {
	var out map[taxonomy.ID]struct{}
	for _, id := range ids {
		if id.IsZero() || s.Has(id) {
			continue
		}
		if out == nil {
			out = s.clone(len(ids))
		}
		out[id] = struct{}{}
	}
	if out == nil {
		return s
	}
	return Set{m: out}
}

// Without returns a set that no longer contains ids.
func (s Set) Without(ids ...taxonomy.ID) Set {
	var out map[taxonomy.ID]struct{}
	for _, id := range ids {
		if out == nil {
			if !s.Has(id) {
				continue
			}
			out = s.clone(0)
		}
		delete(out, id)
	}
	if out == nil {
		return s
	}
	return Set{m: out}
}

// Equal reports set equality.
func (s Set) Equal(o Set) bool {
	if len(s.m) != len(o.m) {
		return false
	}
	for id := range s.m {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

func (s Set) clone(extra int) map[taxonomy.ID]struct{} {
	out := make(map[taxonomy.ID]struct{}, len(s.m)+extra)
	for id := range s.m {
		out[id] = struct{}{}
	}
	return out
}
