// Package sqlite is a SQLite-backed selection store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/audienced/internal/store"
	"github.com/fyrsmithlabs/audienced/internal/store/sqlite/migrations"
	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
	_ "modernc.org/sqlite"
)

// Store persists selections in one SQLite file.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Open opens (creating if needed) the database at path and applies the
// embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, ref store.Ref) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, err
	}
	if err := ref.Validate(); err != nil {
		return store.Record{}, err
	}

	var (
		identities, categories, subcategories, subsubs string
		version                                        string
		updatedAt                                      int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT identity_ids, category_ids, subcategory_ids, subsub_ids, taxonomy_version, updated_at
FROM selections WHERE kind = ? AND content_id = ?`, ref.Kind, ref.ID,
	).Scan(&identities, &categories, &subcategories, &subsubs, &version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, store.ErrNotFound
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("get selection %s: %w", ref, err)
	}

	rec := store.Record{Ref: ref, TaxonomyVersion: version, UpdatedAt: fromMillis(updatedAt)}
	for _, col := range []struct {
		raw string
		dst *[]taxonomy.ID
	}{
		{identities, &rec.Selection.IdentityIDs},
		{categories, &rec.Selection.CategoryIDs},
		{subcategories, &rec.Selection.SubcategoryIDs},
		{subsubs, &rec.Selection.SubsubCategoryIDs},
	} {
		ids, err := decodeIDs(col.raw)
		if err != nil {
			return store.Record{}, fmt.Errorf("decode selection %s: %w", ref, err)
		}
		*col.dst = ids
	}
	return rec, nil
}

// Put implements store.Store.
func (s *Store) Put(ctx context.Context, rec store.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.Ref.Validate(); err != nil {
		return err
	}
	cols := make([]string, 0, 4)
	for _, ids := range [][]taxonomy.ID{
		rec.Selection.IdentityIDs,
		rec.Selection.CategoryIDs,
		rec.Selection.SubcategoryIDs,
		rec.Selection.SubsubCategoryIDs,
	} {
		raw, err := encodeIDs(ids)
		if err != nil {
			return fmt.Errorf("encode selection %s: %w", rec.Ref, err)
		}
		cols = append(cols, raw)
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO selections (kind, content_id, identity_ids, category_ids, subcategory_ids, subsub_ids, taxonomy_version, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (kind, content_id) DO UPDATE SET
    identity_ids = excluded.identity_ids,
    category_ids = excluded.category_ids,
    subcategory_ids = excluded.subcategory_ids,
    subsub_ids = excluded.subsub_ids,
    taxonomy_version = excluded.taxonomy_version,
    updated_at = excluded.updated_at`,
		rec.Ref.Kind, rec.Ref.ID, cols[0], cols[1], cols[2], cols[3], rec.TaxonomyVersion, toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put selection %s: %w", rec.Ref, err)
	}
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, ref store.Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM selections WHERE kind = ? AND content_id = ?`, ref.Kind, ref.ID)
	if err != nil {
		return fmt.Errorf("delete selection %s: %w", ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete selection %s: %w", ref, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, kind string) ([]store.Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT kind, content_id FROM selections
WHERE (? = '' OR kind = ?)
ORDER BY kind, content_id`, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	defer rows.Close()

	refs := make([]store.Ref, 0)
	for rows.Next() {
		var ref store.Ref
		if err := rows.Scan(&ref.Kind, &ref.ID); err != nil {
			return nil, fmt.Errorf("scan selection ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	return refs, nil
}

// Ids are stored as JSON arrays of strings so numeric and opaque ids
// round-trip unchanged.
func encodeIDs(ids []taxonomy.ID) (string, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeIDs(s string) ([]taxonomy.ID, error) {
	var raw []string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	ids := make([]taxonomy.ID, len(raw))
	for i, id := range raw {
		ids[i] = taxonomy.ID(id)
	}
	return ids, nil
}
