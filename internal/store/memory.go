package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store. Contents are lost on exit.
type Memory struct {
	mu   sync.RWMutex
	recs map[Ref]Record
}

// NewMemory returns an empty memory store.
func NewMemory() *Memory {
	return &Memory{recs: make(map[Ref]Record)}
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, ref Ref) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if err := ref.Validate(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recs[ref]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.Ref.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.Ref] = copyRecord(rec)
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, ref Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[ref]; !ok {
		return ErrNotFound
	}
	delete(m.recs, ref)
	return nil
}

// List implements Store.
func (m *Memory) List(ctx context.Context, kind string) ([]Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	refs := make([]Ref, 0, len(m.recs))
	for ref := range m.recs {
		if kind == "" || ref.Kind == kind {
			refs = append(refs, ref)
		}
	}
	m.mu.RUnlock()

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].ID < refs[j].ID
	})
	return refs, nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

// copyRecord detaches the payload slices from the caller's.
func copyRecord(rec Record) Record {
	p := rec.Selection
	rec.Selection.IdentityIDs = append(p.IdentityIDs[:0:0], p.IdentityIDs...)
	rec.Selection.CategoryIDs = append(p.CategoryIDs[:0:0], p.CategoryIDs...)
	rec.Selection.SubcategoryIDs = append(p.SubcategoryIDs[:0:0], p.SubcategoryIDs...)
	rec.Selection.SubsubCategoryIDs = append(p.SubsubCategoryIDs[:0:0], p.SubsubCategoryIDs...)
	return rec
}
