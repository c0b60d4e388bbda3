// Package storetest holds the behaviour every store.Store backend shares.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/audienced/internal/store"
	"github.com/fyrsmithlabs/audienced/pkg/selection"
	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a fresh backend from newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()
	ctx := context.Background()
	job := store.Ref{Kind: "job", ID: "42"}

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, job)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		rec := store.Record{
			Ref: job,
			Selection: selection.Payload{
				IdentityIDs:       []taxonomy.ID{"1"},
				CategoryIDs:       []taxonomy.ID{"10"},
				SubcategoryIDs:    []taxonomy.ID{"100"},
				SubsubCategoryIDs: []taxonomy.ID{},
			},
			TaxonomyVersion: "v1",
			UpdatedAt:       at,
		}
		require.NoError(t, s.Put(ctx, rec))

		got, err := s.Get(ctx, job)
		require.NoError(t, err)
		assert.Equal(t, job, got.Ref)
		assert.Equal(t, rec.Selection, got.Selection)
		assert.Equal(t, "v1", got.TaxonomyVersion)
		assert.True(t, at.Equal(got.UpdatedAt))
	})

	t.Run("put replaces", func(t *testing.T) {
		s := newStore(t)
		first := selection.Payload{IdentityIDs: []taxonomy.ID{"1"}, CategoryIDs: []taxonomy.ID{}, SubcategoryIDs: []taxonomy.ID{}, SubsubCategoryIDs: []taxonomy.ID{}}
		second := selection.Payload{IdentityIDs: []taxonomy.ID{"2"}, CategoryIDs: []taxonomy.ID{}, SubcategoryIDs: []taxonomy.ID{}, SubsubCategoryIDs: []taxonomy.ID{}}
		require.NoError(t, s.Put(ctx, store.Record{Ref: job, Selection: first, UpdatedAt: time.Now()}))
		require.NoError(t, s.Put(ctx, store.Record{Ref: job, Selection: second, UpdatedAt: time.Now()}))

		got, err := s.Get(ctx, job)
		require.NoError(t, err)
		assert.Equal(t, []taxonomy.ID{"2"}, got.Selection.IdentityIDs)

		refs, err := s.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, refs, 1)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, store.Record{Ref: job, UpdatedAt: time.Now()}))
		require.NoError(t, s.Delete(ctx, job))
		_, err := s.Get(ctx, job)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, job), store.ErrNotFound)
	})

	t.Run("list orders by kind then id", func(t *testing.T) {
		s := newStore(t)
		for _, ref := range []store.Ref{
			{Kind: "post", ID: "b"},
			{Kind: "job", ID: "2"},
			{Kind: "post", ID: "a"},
			{Kind: "job", ID: "1"},
		} {
			require.NoError(t, s.Put(ctx, store.Record{Ref: ref, UpdatedAt: time.Now()}))
		}

		all, err := s.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []store.Ref{
			{Kind: "job", ID: "1"},
			{Kind: "job", ID: "2"},
			{Kind: "post", ID: "a"},
			{Kind: "post", ID: "b"},
		}, all)

		posts, err := s.List(ctx, "post")
		require.NoError(t, err)
		assert.Equal(t, []store.Ref{{Kind: "post", ID: "a"}, {Kind: "post", ID: "b"}}, posts)

		none, err := s.List(ctx, "event")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("invalid ref", func(t *testing.T) {
		s := newStore(t)
		bad := store.Ref{Kind: "job", ID: "../etc"}
		_, err := s.Get(ctx, bad)
		assert.ErrorIs(t, err, store.ErrInvalidRef)
		assert.ErrorIs(t, s.Put(ctx, store.Record{Ref: bad}), store.ErrInvalidRef)
		assert.ErrorIs(t, s.Delete(ctx, bad), store.ErrInvalidRef)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Get(cctx, job)
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, s.Put(cctx, store.Record{Ref: job}), context.Canceled)
	})
}
