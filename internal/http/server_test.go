package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/audienced/internal/catalog"
	"github.com/fyrsmithlabs/audienced/internal/logging"
	"github.com/fyrsmithlabs/audienced/internal/metrics"
	"github.com/fyrsmithlabs/audienced/internal/selectionsvc"
	"github.com/fyrsmithlabs/audienced/internal/store"
	"github.com/fyrsmithlabs/audienced/internal/telemetry"
	"github.com/fyrsmithlabs/audienced/pkg/selection"
	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
)

func testTree() *taxonomy.Tree {
	return taxonomy.NewTree(
		taxonomy.Identity{ID: "1", Name: "Founders", Categories: []taxonomy.Category{
			{ID: "10", Name: "Tech", Subcategories: []taxonomy.Subcategory{
				{ID: "100", Name: "Fintech", Subsubs: []taxonomy.SubsubCategory{
					{ID: "1000", Name: "Payments"},
				}},
			}},
		}},
		taxonomy.Identity{ID: "2", Name: "Investors"},
	)
}

func newTestService(t *testing.T) *selectionsvc.Service {
	t.Helper()
	svc, err := selectionsvc.New(selectionsvc.Options{
		Catalog: catalog.NewStatic(testTree()),
		Store:   store.NewMemory(),
		Metrics: metrics.New(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return svc
}

func setupTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	server, err := NewServer(newTestService(t), logging.Nop(), &Config{Host: "127.0.0.1", Port: 0, Version: "test"}, opts...)
	require.NoError(t, err)
	return server
}

func do(t *testing.T, s *Server, method, path string, body interface{}, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r *bytes.Reader
	switch b := body.(type) {
	case nil:
		r = bytes.NewReader(nil)
	case string:
		r = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(newTestService(t), logging.Nop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:8480", server.config.Addr())
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(newTestService(t), nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("returns error when service is nil", func(t *testing.T) {
		_, err := NewServer(nil, logging.Nop(), nil)
		assert.ErrorContains(t, err, "selection service cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	rec := do(t, setupTestServer(t), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestHandleStatus(t *testing.T) {
	server := setupTestServer(t, WithHealth(func() telemetry.HealthStatus {
		return telemetry.HealthStatus{Healthy: true, Degraded: true, Reason: "exporter down"}
	}))
	rec := do(t, server, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[StatusResponse](t, rec)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "static", resp.Taxonomy.Source)
	assert.Equal(t, 2, resp.Counts.Nodes["identity"])
	assert.Equal(t, 0, resp.Counts.Selections)
	require.NotNil(t, resp.Telemetry)
	assert.Equal(t, "exporter down", resp.Telemetry.Reason)
}

func TestHandleTaxonomy(t *testing.T) {
	server := setupTestServer(t)
	rec := do(t, server, http.MethodGet, "/api/v1/taxonomy", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[TaxonomyResponse](t, rec)
	assert.Equal(t, server.svc.Snapshot().Version, resp.Version)
	require.Len(t, resp.Identities, 2)
	assert.Equal(t, "Founders", resp.Identities[0].Name)
	assert.Equal(t, `"`+resp.Version+`"`, rec.Header().Get("ETag"))
	assert.Contains(t, rec.Body.String(), `"id":1`, "integer ids stay numbers on the wire")
}

func TestHandleToggle(t *testing.T) {
	server := setupTestServer(t)

	t.Run("selects with ancestors", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/selection/toggle", `{
			"state": {"identityIds": [], "categoryIds": [], "subcategoryIds": [], "subsubCategoryIds": []},
			"action": {"level": "subsub", "identity_id": 1, "category_id": 10, "subcategory_id": 100, "id": 1000, "checked": true}
		}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[SelectionResponse](t, rec)
		assert.Equal(t, []taxonomy.ID{"1"}, resp.State.Identities().IDs())
		assert.Equal(t, []taxonomy.ID{"1000"}, resp.State.Subsubs().IDs())
		assert.Equal(t, "Founders, Tech, Fintech, Payments", resp.Summary)
	})

	t.Run("deselect identity keeps descendants", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/selection/toggle", `{
			"state": {"identityIds": [1], "categoryIds": [10], "subcategoryIds": [], "subsubCategoryIds": []},
			"action": {"level": "identity", "id": 1, "checked": false}
		}`)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[SelectionResponse](t, rec)
		assert.Empty(t, resp.State.Identities().IDs())
		assert.Equal(t, []taxonomy.ID{"10"}, resp.State.Categories().IDs())
	})

	t.Run("missing id is rejected", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/selection/toggle", `{"action": {"level": "identity", "checked": true}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "required")
	})

	t.Run("invalid json", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/api/v1/selection/toggle", "invalid json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleClearAndLabels(t *testing.T) {
	server := setupTestServer(t)
	state := `{"state": {"identityIds": [2], "categoryIds": [], "subcategoryIds": [], "subsubCategoryIds": []}}`

	rec := do(t, server, http.MethodPost, "/api/v1/selection/labels", state)
	require.Equal(t, http.StatusOK, rec.Code)
	lbl := decode[LabelsResponse](t, rec)
	assert.Equal(t, "Investors", lbl.Summary)
	assert.False(t, lbl.Everyone)

	rec = do(t, server, http.MethodPost, "/api/v1/selection/clear", state)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := decode[SelectionResponse](t, rec)
	assert.True(t, cleared.State.IsEmpty())
	assert.Equal(t, "Everyone", cleared.Summary)
	assert.Contains(t, rec.Body.String(), `"identityIds":[]`)
}

func TestHandleFocus(t *testing.T) {
	server := setupTestServer(t)
	rec := do(t, server, http.MethodPost, "/api/v1/view/focus", `{
		"view": {"expanded": [], "focus": []},
		"state": {"identityIds": [1], "categoryIds": [], "subcategoryIds": [], "subsubCategoryIds": []},
		"focus": ["Investors"]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ViewResponse](t, rec)
	assert.True(t, resp.State.IsEmpty())
	assert.Equal(t, []string{"Investors"}, resp.View.Focus())
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "Investors", resp.Rows[0].Label)
}

func TestHandleRows(t *testing.T) {
	server := setupTestServer(t)
	rec := do(t, server, http.MethodPost, "/api/v1/view/rows", `{
		"view": {"expanded": ["identity:1"], "focus": []},
		"state": {"identityIds": [1], "categoryIds": [], "subcategoryIds": [], "subsubCategoryIds": []}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ViewResponse](t, rec)
	labels := make([]string, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{"Founders", "Tech", "Investors"}, labels)
	assert.True(t, resp.Rows[0].Checked)
	assert.Equal(t, 1, resp.Rows[1].Depth)
}

func TestStoredSelections(t *testing.T) {
	server := setupTestServer(t)
	body := `{"selection": {"identityIds": [1], "categoryIds": [10], "subcategoryIds": [], "subsubCategoryIds": []}}`

	rec := do(t, server, http.MethodGet, "/api/v1/selections/job/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, server, http.MethodPut, "/api/v1/selections/job/42", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[StoredSelectionResponse](t, rec)
	assert.Equal(t, store.Ref{Kind: "job", ID: "42"}, saved.Ref)
	assert.Equal(t, "Founders, Tech", saved.Summary)

	rec = do(t, server, http.MethodGet, "/api/v1/selections/job/42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[StoredSelectionResponse](t, rec)
	assert.False(t, got.Stale)
	assert.Equal(t, []taxonomy.ID{"10"}, got.Selection.Categories().IDs())

	rec = do(t, server, http.MethodGet, "/api/v1/selections?kind=job", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListResponse](t, rec)
	assert.Equal(t, []store.Ref{{Kind: "job", ID: "42"}}, list.Selections)

	rec = do(t, server, http.MethodDelete, "/api/v1/selections/job/42", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, server, http.MethodDelete, "/api/v1/selections/job/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutSelection_Errors(t *testing.T) {
	server := setupTestServer(t)

	t.Run("invariant violation", func(t *testing.T) {
		rec := do(t, server, http.MethodPut, "/api/v1/selections/job/1",
			`{"selection": {"identityIds": [], "categoryIds": [], "subcategoryIds": [100], "subsubCategoryIds": []}}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "without its category")
	})

	t.Run("invalid ref", func(t *testing.T) {
		rec := do(t, server, http.MethodPut, "/api/v1/selections/job/a%20b", `{"selection": {}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid kind filter", func(t *testing.T) {
		rec := do(t, server, http.MethodGet, "/api/v1/selections?kind=a/b", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPIToken(t *testing.T) {
	server, err := NewServer(newTestService(t), logging.Nop(), &Config{APIToken: "s3cret"})
	require.NoError(t, err)
	body := `{"selection": {"identityIds": [2]}}`

	rec := do(t, server, http.MethodPut, "/api/v1/selections/job/1", body)
	assert.NotEqual(t, http.StatusOK, rec.Code)

	rec = do(t, server, http.MethodPut, "/api/v1/selections/job/1", body, echo.HeaderAuthorization, "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, server, http.MethodPut, "/api/v1/selections/job/1", body, echo.HeaderAuthorization, "Bearer s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Reads stay open.
	rec = do(t, server, http.MethodGet, "/api/v1/selections/job/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	server, err := NewServer(newTestService(t), logging.Nop(), &Config{RateLimit: 1, RateBurst: 2})
	require.NoError(t, err)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, server, http.MethodGet, "/health", nil).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveClear()

	server := setupTestServer(t, WithGatherer(reg))
	rec := do(t, server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "audienced_selection_clears_total 1"))
}

func TestSelectionStateJSONMatchesPayload(t *testing.T) {
	// Responses carry the flattened payload shape the content backend accepts.
	data, err := json.Marshal(SelectionResponse{State: selection.Empty()})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"subsubCategoryIds":[]`)
}
