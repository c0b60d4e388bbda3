// Package store persists saved selections per piece of content.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/fyrsmithlabs/audienced/pkg/selection"
)

var (
	// ErrNotFound is returned when no selection is stored for a ref.
	ErrNotFound = errors.New("selection not found")

	// ErrInvalidRef is returned for malformed content refs.
	ErrInvalidRef = errors.New("invalid content ref")
)

var refPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

// Ref names the content a selection is attached to, e.g. {job, 42}.
type Ref struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Validate checks both parts against [A-Za-z0-9_.:-]{1,128}.
func (r Ref) Validate() error {
	if !refPattern.MatchString(r.Kind) {
		return fmt.Errorf("%w: kind %q", ErrInvalidRef, r.Kind)
	}
	if !refPattern.MatchString(r.ID) {
		return fmt.Errorf("%w: id %q", ErrInvalidRef, r.ID)
	}
	return nil
}

func (r Ref) String() string {
	return r.Kind + "/" + r.ID
}

// Record is one stored selection.
type Record struct {
	Ref             Ref               `json:"ref"`
	Selection       selection.Payload `json:"selection"`
	TaxonomyVersion string            `json:"taxonomy_version,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Store is implemented by the memory and sqlite backends.
type Store interface {
	// Get returns ErrNotFound when nothing is stored for ref.
	Get(ctx context.Context, ref Ref) (Record, error)
	// Put inserts or replaces the record for rec.Ref.
	Put(ctx context.Context, rec Record) error
	// Delete returns ErrNotFound when nothing is stored for ref.
	Delete(ctx context.Context, ref Ref) error
	// List returns stored refs ordered by kind then id. An empty kind lists
	// every kind.
	List(ctx context.Context, kind string) ([]Ref, error)
	Close() error
}
