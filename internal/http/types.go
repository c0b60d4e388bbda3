package http

import (
	"time"

	"github.com/fyrsmithlabs/audienced/internal/store"
	"github.com/fyrsmithlabs/audienced/internal/telemetry"
	"github.com/fyrsmithlabs/audienced/pkg/labels"
	"github.com/fyrsmithlabs/audienced/pkg/selection"
	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
	"github.com/fyrsmithlabs/audienced/pkg/view"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status    string                  `json:"status"`
	Version   string                  `json:"version,omitempty"`
	Taxonomy  TaxonomyStatus          `json:"taxonomy"`
	Counts    StatusCounts            `json:"counts"`
	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
}

// TaxonomyStatus describes the snapshot being served.
type TaxonomyStatus struct {
	Version  string    `json:"version"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
}

// StatusCounts holds node counts per level and the number of stored
// selections. Selections is -1 when the store could not be listed.
type StatusCounts struct {
	Nodes      map[string]int `json:"nodes"`
	Selections int            `json:"selections"`
}

// TaxonomyResponse is the response body for GET /api/v1/taxonomy.
type TaxonomyResponse struct {
	Version    string              `json:"version"`
	Identities []taxonomy.Identity `json:"identities"`
}

// ToggleRequest is the request body for POST /api/v1/selection/toggle.
type ToggleRequest struct {
	State  selection.State  `json:"state"`
	Action selection.Action `json:"action"`
}

// SelectionResponse carries a selection with its labels.
type SelectionResponse struct {
	State   selection.State `json:"state"`
	Labels  labels.Labels   `json:"labels"`
	Summary string          `json:"summary"`
}

// StateRequest is the request body for endpoints that take only a state.
type StateRequest struct {
	State selection.State `json:"state"`
}

// LabelsResponse is the response body for POST /api/v1/selection/labels.
type LabelsResponse struct {
	Labels   labels.Labels `json:"labels"`
	Summary  string        `json:"summary"`
	Everyone bool          `json:"everyone"`
}

// FocusRequest is the request body for POST /api/v1/view/focus.
type FocusRequest struct {
	View  view.State      `json:"view"`
	State selection.State `json:"state"`
	Focus []string        `json:"focus" validate:"max=64,dive,max=256"`
}

// ViewResponse is the response body for the view endpoints.
type ViewResponse struct {
	View  view.State      `json:"view"`
	State selection.State `json:"state"`
	Rows  []view.Row      `json:"rows"`
}

// RowsRequest is the request body for POST /api/v1/view/rows.
type RowsRequest struct {
	View  view.State      `json:"view"`
	State selection.State `json:"state"`
}

// SelectionRef names a stored selection in the URL.
type SelectionRef struct {
	Kind string `param:"kind" validate:"contentref"`
	ID   string `param:"id" validate:"contentref"`
}

// Ref converts to a store ref.
func (r SelectionRef) Ref() store.Ref {
	return store.Ref{Kind: r.Kind, ID: r.ID}
}

// PutSelectionRequest is the request body for PUT /api/v1/selections/:kind/:id.
type PutSelectionRequest struct {
	Selection selection.State `json:"selection"`
}

// StoredSelectionResponse is the response body for a stored selection.
type StoredSelectionResponse struct {
	Ref             store.Ref       `json:"ref"`
	Selection       selection.State `json:"selection"`
	Labels          labels.Labels   `json:"labels"`
	Summary         string          `json:"summary"`
	TaxonomyVersion string          `json:"taxonomy_version"`
	Stale           bool            `json:"stale"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ListResponse is the response body for GET /api/v1/selections.
type ListResponse struct {
	Selections []store.Ref `json:"selections"`
}
