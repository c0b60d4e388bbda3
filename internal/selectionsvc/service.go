// Package selectionsvc is the application service behind the HTTP API and
// the CLI. It binds the current taxonomy snapshot to the pure selection
// engine and persists, loads and announces saved selections.
package selectionsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/audienced/internal/catalog"
	"github.com/fyrsmithlabs/audienced/internal/events"
	"github.com/fyrsmithlabs/audienced/internal/logging"
	"github.com/fyrsmithlabs/audienced/internal/metrics"
	"github.com/fyrsmithlabs/audienced/internal/store"
	"github.com/fyrsmithlabs/audienced/pkg/labels"
	"github.com/fyrsmithlabs/audienced/pkg/selection"
	"github.com/fyrsmithlabs/audienced/pkg/view"
)

const instrumentationName = "github.com/fyrsmithlabs/audienced/internal/selectionsvc"

// ErrInvalidSelection wraps the violations that block a save.
var ErrInvalidSelection = errors.New("invalid selection")

// Snapshots yields the taxonomy snapshot to act on. *catalog.Catalog
// implements it.
type Snapshots interface {
	Current() *catalog.Snapshot
}

// Options holds the service dependencies. Catalog and Store are required.
type Options struct {
	Catalog   Snapshots
	Store     store.Store
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    *logging.Logger
	Tracer    trace.Tracer

	// RepairOnSave reconciles the selection with the current tree before
	// validating it. Without it a save with unknown ids is rejected.
	RepairOnSave bool
}

// Service implements the selection operations.
type Service struct {
	catalog      Snapshots
	store        store.Store
	publisher    events.Publisher
	metrics      *metrics.Metrics
	logger       *logging.Logger
	tracer       trace.Tracer
	repairOnSave bool
}

// New validates opts and returns a service.
func New(opts Options) (*Service, error) {
	if opts.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	s := &Service{
		catalog:      opts.Catalog,
		store:        opts.Store,
		publisher:    opts.Publisher,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		tracer:       opts.Tracer,
		repairOnSave: opts.RepairOnSave,
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(instrumentationName)
	}
	return s, nil
}

// Snapshot returns the taxonomy snapshot currently served.
func (s *Service) Snapshot() *catalog.Snapshot {
	return s.catalog.Current()
}

// Toggle applies one checkbox action. Actions naming ids that are not in the
// current tree return the state unchanged.
func (s *Service) Toggle(ctx context.Context, state selection.State, a selection.Action) selection.State {
	snap := s.catalog.Current()
	if !snap.Index.Has(a.Level, a.ID) {
		s.logger.Debug(ctx, "toggle ignored, unknown node",
			zap.Stringer("level", a.Level),
			zap.String("id", a.ID.String()),
			zap.String("taxonomy.version", snap.Version))
		return state
	}

	next := snap.Engine.Apply(state, a)
	if next.Equal(state) {
		s.logger.Debug(ctx, "toggle had no effect",
			zap.Stringer("action", a),
			zap.String("taxonomy.version", snap.Version))
		return state
	}
	s.metrics.ObserveToggle(a.Level.String(), a.Verb())
	s.logger.Trace(ctx, "selection toggled",
		zap.Stringer("action", a),
		zap.Int("selected", next.Len()))
	return next
}

// Clear returns the empty selection.
func (s *Service) Clear(ctx context.Context, state selection.State) selection.State {
	s.metrics.ObserveClear()
	s.logger.Trace(ctx, "selection cleared", zap.Int("dropped", state.Len()))
	return s.catalog.Current().Engine.Clear(state)
}

// Labels projects state to display labels against the current tree.
func (s *Service) Labels(ctx context.Context, state selection.State) labels.Labels {
	s.metrics.ObserveProjection()
	return labels.Project(state, s.catalog.Current().Labels)
}

// Focus applies a focus change. A new non-empty focus clears the selection.
func (s *Service) Focus(ctx context.Context, v view.State, state selection.State, focus []string) (view.State, selection.State) {
	nextView, nextSel := view.ApplyFocus(s.catalog.Current().Tree, v, state, focus)
	if !state.IsEmpty() && nextSel.IsEmpty() {
		s.metrics.ObserveFocusReset()
		s.logger.Debug(ctx, "focus changed, selection reset",
			zap.Strings("focus", nextView.Focus()),
			zap.Int("dropped", state.Len()))
	}
	return nextView, nextSel
}

// Loaded is a stored selection reconciled with the current tree.
type Loaded struct {
	Record store.Record
	State  selection.State
	Labels labels.Labels
	// Stale is set when the record was saved against another taxonomy
	// version. State has already been repaired.
	Stale bool
}

// Save validates state against the current tree, stores it for ref and
// publishes a saved event. Publish failures are logged, not returned.
func (s *Service) Save(ctx context.Context, ref store.Ref, state selection.State) (rec store.Record, err error) {
	ctx = logging.WithContent(ctx, ref.Kind, ref.ID)
	ctx, span := s.tracer.Start(ctx, "selection.save")
	defer span.End()
	span.SetAttributes(
		attribute.String("content.kind", ref.Kind),
		attribute.String("content.id", ref.ID),
	)
	defer func() {
		s.metrics.ObserveSave(err, state.Len())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := ref.Validate(); err != nil {
		return store.Record{}, err
	}

	snap := s.catalog.Current()
	if s.repairOnSave {
		state = snap.Engine.Repair(state)
	}
	if verr := snap.Engine.Validate(state); verr != nil {
		s.logger.Warn(ctx, "selection rejected", zap.Error(verr))
		return store.Record{}, fmt.Errorf("%w: %w", ErrInvalidSelection, verr)
	}
	span.SetAttributes(
		attribute.Int("selection.size", state.Len()),
		attribute.String("taxonomy.version", snap.Version),
	)

	rec = store.Record{
		Ref:             ref,
		Selection:       state.Payload(),
		TaxonomyVersion: snap.Version,
		UpdatedAt:       time.Now().UTC(),
	}
	start := time.Now()
	err = s.store.Put(ctx, rec)
	s.metrics.ObserveStore("put", start)
	if err != nil {
		return store.Record{}, fmt.Errorf("storing selection: %w", err)
	}

	lbl := labels.Project(state, snap.Labels)
	ev := events.NewEvent(events.TypeSaved, ref)
	ev.Selection = &rec.Selection
	ev.Summary = lbl.Summary()
	ev.TaxonomyVersion = snap.Version
	s.publish(ctx, ev)

	s.logger.Info(ctx, "selection saved",
		zap.Int("selected", state.Len()),
		zap.String("summary", ev.Summary))
	return rec, nil
}

// Load returns the stored selection for ref, repaired against the current
// tree.
func (s *Service) Load(ctx context.Context, ref store.Ref) (Loaded, error) {
	ctx, span := s.tracer.Start(ctx, "selection.load")
	defer span.End()
	span.SetAttributes(
		attribute.String("content.kind", ref.Kind),
		attribute.String("content.id", ref.ID),
	)

	start := time.Now()
	rec, err := s.store.Get(ctx, ref)
	s.metrics.ObserveStore("get", start)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return Loaded{}, err
	}

	snap := s.catalog.Current()
	state := snap.Engine.Repair(selection.FromPayload(rec.Selection))
	return Loaded{
		Record: rec,
		State:  state,
		Labels: labels.Project(state, snap.Labels),
		Stale:  rec.TaxonomyVersion != snap.Version,
	}, nil
}

// Delete removes the stored selection for ref and publishes a deleted event.
func (s *Service) Delete(ctx context.Context, ref store.Ref) error {
	ctx = logging.WithContent(ctx, ref.Kind, ref.ID)
	ctx, span := s.tracer.Start(ctx, "selection.delete")
	defer span.End()

	start := time.Now()
	err := s.store.Delete(ctx, ref)
	s.metrics.ObserveStore("delete", start)
	if err != nil {
		return err
	}

	s.publish(ctx, events.NewEvent(events.TypeDeleted, ref))
	s.logger.Info(ctx, "selection deleted")
	return nil
}

// List returns stored refs, optionally restricted to one kind.
func (s *Service) List(ctx context.Context, kind string) ([]store.Ref, error) {
	start := time.Now()
	refs, err := s.store.List(ctx, kind)
	s.metrics.ObserveStore("list", start)
	if err != nil {
		return nil, fmt.Errorf("listing selections: %w", err)
	}
	if kind == "" {
		s.metrics.SetStored(len(refs))
	}
	return refs, nil
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn(ctx, "selection event not published",
			zap.String("event.type", string(ev.Type)),
			zap.Error(err))
	}
}
