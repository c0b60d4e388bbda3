package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/audienced/internal/selectionsvc"
	"github.com/fyrsmithlabs/audienced/internal/store"
	"github.com/fyrsmithlabs/audienced/pkg/selection"
	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.config.Version})
}

func (s *Server) handleStatus(c echo.Context) error {
	ctx := c.Request().Context()
	snap := s.svc.Snapshot()
	resp := StatusResponse{
		Status:  "ok",
		Version: s.config.Version,
		Taxonomy: TaxonomyStatus{
			Version:  snap.Version,
			Source:   snap.Source,
			LoadedAt: snap.LoadedAt,
		},
		Counts: countSelections(ctx, s.svc, snap),
	}
	if s.health != nil {
		h := s.health()
		resp.Telemetry = &h
		if h.Degraded {
			resp.Status = "degraded"
		}
	}
	if resp.Counts.Selections < 0 {
		resp.Status = "degraded"
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTaxonomy(c echo.Context) error {
	snap := s.svc.Snapshot()
	resp := TaxonomyResponse{Version: snap.Version, Identities: snap.Tree.All()}
	if resp.Identities == nil {
		resp.Identities = []taxonomy.Identity{}
	}
	c.Response().Header().Set("ETag", `"`+snap.Version+`"`)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleToggle(c echo.Context) error {
	var req ToggleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	next := s.svc.Toggle(ctx, req.State, req.Action)
	return c.JSON(http.StatusOK, s.selectionResponse(ctx, next))
}

func (s *Server) handleClear(c echo.Context) error {
	var req StateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	next := s.svc.Clear(ctx, req.State)
	return c.JSON(http.StatusOK, s.selectionResponse(ctx, next))
}

func (s *Server) handleLabels(c echo.Context) error {
	var req StateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	lbl := s.svc.Labels(c.Request().Context(), req.State)
	return c.JSON(http.StatusOK, LabelsResponse{
		Labels:   lbl,
		Summary:  lbl.Summary(),
		Everyone: lbl.IsEveryone(),
	})
}

func (s *Server) handleFocus(c echo.Context) error {
	var req FocusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	v, sel := s.svc.Focus(c.Request().Context(), req.View, req.State, req.Focus)
	return c.JSON(http.StatusOK, ViewResponse{
		View:  v,
		State: sel,
		Rows:  v.Rows(s.svc.Snapshot().Tree, sel),
	})
}

func (s *Server) handleRows(c echo.Context) error {
	var req RowsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ViewResponse{
		View:  req.View,
		State: req.State,
		Rows:  req.View.Rows(s.svc.Snapshot().Tree, req.State),
	})
}

func (s *Server) handleListSelections(c echo.Context) error {
	kind := c.QueryParam("kind")
	if kind != "" && !refPattern.MatchString(kind) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid kind")
	}
	refs, err := s.svc.List(c.Request().Context(), kind)
	if err != nil {
		return s.mapError(c.Request().Context(), err)
	}
	return c.JSON(http.StatusOK, ListResponse{Selections: refs})
}

func (s *Server) handleGetSelection(c echo.Context) error {
	ref, err := s.bindRef(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	loaded, err := s.svc.Load(ctx, ref)
	if err != nil {
		return s.mapError(ctx, err)
	}
	return c.JSON(http.StatusOK, StoredSelectionResponse{
		Ref:             loaded.Record.Ref,
		Selection:       loaded.State,
		Labels:          loaded.Labels,
		Summary:         loaded.Labels.Summary(),
		TaxonomyVersion: loaded.Record.TaxonomyVersion,
		Stale:           loaded.Stale,
		UpdatedAt:       loaded.Record.UpdatedAt,
	})
}

func (s *Server) handlePutSelection(c echo.Context) error {
	ref, err := s.bindRef(c)
	if err != nil {
		return err
	}
	var req PutSelectionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	rec, err := s.svc.Save(ctx, ref, req.Selection)
	if err != nil {
		return s.mapError(ctx, err)
	}
	state := selection.FromPayload(rec.Selection)
	lbl := s.svc.Labels(ctx, state)
	return c.JSON(http.StatusOK, StoredSelectionResponse{
		Ref:             rec.Ref,
		Selection:       state,
		Labels:          lbl,
		Summary:         lbl.Summary(),
		TaxonomyVersion: rec.TaxonomyVersion,
		UpdatedAt:       rec.UpdatedAt,
	})
}

func (s *Server) handleDeleteSelection(c echo.Context) error {
	ref, err := s.bindRef(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := s.svc.Delete(ctx, ref); err != nil {
		return s.mapError(ctx, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) bindRef(c echo.Context) (store.Ref, error) {
	r := SelectionRef{Kind: c.Param("kind"), ID: c.Param("id")}
	if err := c.Validate(&r); err != nil {
		return store.Ref{}, err
	}
	return r.Ref(), nil
}

func (s *Server) selectionResponse(ctx context.Context, state selection.State) SelectionResponse {
	lbl := s.svc.Labels(ctx, state)
	return SelectionResponse{State: state, Labels: lbl, Summary: lbl.Summary()}
}

// mapError converts service errors to HTTP errors.
func (s *Server) mapError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "selection not found")
	case errors.Is(err, store.ErrInvalidRef):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, selectionsvc.ErrInvalidSelection):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "request cancelled")
	}
	s.logger.Error(ctx, "request failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
