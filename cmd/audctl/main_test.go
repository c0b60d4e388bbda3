package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/audienced/internal/catalog"
	httpserver "github.com/fyrsmithlabs/audienced/internal/http"
	"github.com/fyrsmithlabs/audienced/internal/logging"
	"github.com/fyrsmithlabs/audienced/internal/metrics"
	"github.com/fyrsmithlabs/audienced/internal/selectionsvc"
	"github.com/fyrsmithlabs/audienced/internal/store"
	"github.com/fyrsmithlabs/audienced/pkg/selection"
	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
)

const treeJSON = `{"identities":[
  {"id":1,"name":"Founders","categories":[
    {"id":10,"name":"Tech","subcategories":[
      {"id":100,"name":"Fintech","subsubs":[{"id":1000,"name":"Payments"}]}
    ]}
  ]},
  {"id":2,"name":"Investors","categories":[]}
]}`

func writeTree(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.json")
	require.NoError(t, os.WriteFile(path, []byte(treeJSON), 0o600))
	return path
}

func testSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	snap, err := loadSnapshot(context.Background(), writeTree(t), false)
	require.NoError(t, err)
	return snap
}

func TestRootCommands(t *testing.T) {
	want := []string{"labels", "check", "pick", "health", "list", "get", "put", "delete"}
	var got []string
	for _, cmd := range rootCmd.Commands() {
		got = append(got, cmd.Name())
	}
	for _, name := range want {
		assert.Contains(t, got, name)
	}
	for _, name := range []string{"server", "token", "tree"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestLoadSnapshot(t *testing.T) {
	_, err := loadSnapshot(context.Background(), "", false)
	assert.ErrorContains(t, err, "--tree is required")

	_, err = loadSnapshot(context.Background(), filepath.Join(t.TempDir(), "missing.json"), false)
	assert.Error(t, err)

	snap := testSnapshot(t)
	assert.Equal(t, 2, snap.Counts()["identity"])
	assert.Equal(t, 1, snap.Counts()["subsub"])
	assert.NotEmpty(t, snap.Version)
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		wantErr bool
	}{
		{name: "empty input", input: "", wantLen: 0},
		{name: "payload", input: `{"identityIds":[1],"categoryIds":[10]}`, wantLen: 2},
		{name: "string ids", input: `{"identityIds":["1"]}`, wantLen: 1},
		{name: "malformed", input: `{"identityIds":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := parseSelection([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorContains(t, err, "invalid selection")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, s.Len())
		})
	}
}

func TestRunLabels(t *testing.T) {
	snap := testSnapshot(t)

	tests := []struct {
		name        string
		input       string
		wantSummary string
	}{
		{name: "empty is everyone", input: "", wantSummary: "Everyone"},
		{name: "tree order", input: `{"identityIds":[1],"categoryIds":[10],"subcategoryIds":[100]}`, wantSummary: "Founders, Tech, Fintech"},
		{name: "unknown ids are skipped", input: `{"identityIds":[2,99]}`, wantSummary: "Investors"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, runLabels(&buf, snap, []byte(tt.input)))

			var out labelsOutput
			require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
			assert.Equal(t, tt.wantSummary, out.Summary)
		})
	}
}

func TestRunCheck(t *testing.T) {
	snap := testSnapshot(t)

	t.Run("sound selection", func(t *testing.T) {
		var buf bytes.Buffer
		err := runCheck(&buf, snap, []byte(`{"identityIds":[1],"categoryIds":[10],"subcategoryIds":[100]}`), false)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(buf.String(), "ok: 3 id(s) checked"))
	})

	t.Run("violations listed", func(t *testing.T) {
		var buf bytes.Buffer
		err := runCheck(&buf, snap, []byte(`{"identityIds":[1,99],"subcategoryIds":[100]}`), false)
		require.Error(t, err)
		assert.Equal(t, "2 problem(s) found", err.Error())
		assert.Contains(t, buf.String(), "selected without its category")
		assert.Contains(t, buf.String(), "is not in the taxonomy")
	})

	t.Run("repair prints reconciled payload", func(t *testing.T) {
		var buf bytes.Buffer
		err := runCheck(&buf, snap, []byte(`{"subsubCategoryIds":[1000,5]}`), true)
		require.NoError(t, err)

		var p selection.Payload
		require.NoError(t, json.Unmarshal(buf.Bytes(), &p))
		assert.Equal(t, []taxonomy.ID{"1"}, p.IdentityIDs)
		assert.Equal(t, []taxonomy.ID{"10"}, p.CategoryIDs)
		assert.Equal(t, []taxonomy.ID{"100"}, p.SubcategoryIDs)
		assert.Equal(t, []taxonomy.ID{"1000"}, p.SubsubCategoryIDs)
	})
}

func startServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	tree, err := taxonomy.LoadFile(writeTree(t))
	require.NoError(t, err)

	svc, err := selectionsvc.New(selectionsvc.Options{
		Catalog:      catalog.NewStatic(tree),
		Store:        store.NewMemory(),
		Metrics:      metrics.New(prometheus.NewRegistry()),
		RepairOnSave: true,
	})
	require.NoError(t, err)

	srv, err := httpserver.NewServer(svc, logging.Nop(), &httpserver.Config{APIToken: token, Version: "test"})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_Health(t *testing.T) {
	ts := startServer(t, "")

	var buf bytes.Buffer
	require.NoError(t, newClient(ts.URL+"/", "").health(context.Background(), &buf))
	assert.Contains(t, buf.String(), "Server Status: ok")
	assert.Contains(t, buf.String(), "Server Version: test")
	assert.Contains(t, buf.String(), "Server URL: "+ts.URL+"\n")
}

func TestClient_SelectionLifecycle(t *testing.T) {
	ts := startServer(t, "secret")
	ctx := context.Background()
	c := newClient(ts.URL, "secret")
	ref := store.Ref{Kind: "post", ID: "42"}

	s, err := parseSelection([]byte(`{"subsubCategoryIds":[1000]}`))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.put(ctx, &buf, ref, s))
	assert.Equal(t, "saved post/42: Founders, Tech, Fintech, Payments\n", buf.String())

	buf.Reset()
	require.NoError(t, c.list(ctx, &buf, "post"))
	assert.Equal(t, "post/42\n", buf.String())

	buf.Reset()
	require.NoError(t, c.get(ctx, &buf, ref))
	var got storedSelection
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, ref, got.Ref)
	assert.Equal(t, 4, got.Selection.Len())
	assert.False(t, got.Stale)

	buf.Reset()
	require.NoError(t, c.delete(ctx, &buf, ref))
	assert.Equal(t, "deleted post/42\n", buf.String())

	err = c.get(ctx, &buf, ref)
	assert.ErrorContains(t, err, "server returned status 404")
}

func TestClient_Errors(t *testing.T) {
	ts := startServer(t, "secret")
	ctx := context.Background()
	ref := store.Ref{Kind: "post", ID: "1"}

	tests := []struct {
		name    string
		run     func(c *client) error
		token   string
		wantErr string
	}{
		{
			name:    "missing token",
			run:     func(c *client) error { return c.put(ctx, &bytes.Buffer{}, ref, selection.Empty()) },
			wantErr: "server returned status 4",
		},
		{
			name:    "wrong token",
			token:   "nope",
			run:     func(c *client) error { return c.delete(ctx, &bytes.Buffer{}, ref) },
			wantErr: "server returned status 401",
		},
		{
			name:    "missing selection",
			token:   "secret",
			run:     func(c *client) error { return c.delete(ctx, &bytes.Buffer{}, ref) },
			wantErr: "server returned status 404",
		},
		{
			name:    "invalid kind",
			run:     func(c *client) error { return c.list(ctx, &bytes.Buffer{}, "a b") },
			wantErr: "server returned status 400",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(newClient(ts.URL, tt.token))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	ts := startServer(t, "")
	url := ts.URL
	ts.Close()

	err := newClient(url, "").health(context.Background(), &bytes.Buffer{})
	assert.ErrorContains(t, err, "failed to send request")
}
