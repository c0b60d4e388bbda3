package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/audienced/internal/logging"
	"github.com/fyrsmithlabs/audienced/internal/metrics"
	"github.com/fyrsmithlabs/audienced/pkg/selection"
	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
)

const treeV1 = `[{"id":1,"name":"Entrepreneurs","categories":[{"id":10,"name":"Tech","subcategories":[{"id":100,"name":"Fintech","subsubs":[{"id":1000,"name":"Payments"}]}]}]}]`

const treeV2 = `[{"id":1,"name":"Founders","categories":[]},{"id":2,"name":"Investors"}]`

func writeTree(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	writeTree(t, path, treeV1)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	c, err := Open(context.Background(), path, WithMetrics(m), WithPolicy(selection.Policy{PruneEmptyAncestors: true}))
	require.NoError(t, err)

	snap := c.Current()
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.Tree.Len())
	assert.Equal(t, path, snap.Source)
	assert.NotEmpty(t, snap.Version)
	assert.True(t, snap.Engine.Policy().PruneEmptyAncestors)

	name, ok := snap.Labels.Name(taxonomy.LevelSubsub, "1000")
	assert.True(t, ok)
	assert.Equal(t, "Payments", name)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReloadsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaxonomyNodes.WithLabelValues("subsub")))
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(context.Background(), filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "tree.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("- a"), 0o644))
	_, err = Open(context.Background(), bad)
	assert.ErrorIs(t, err, taxonomy.ErrUnsupportedFormat)
}

func TestOpen_EmptyPath(t *testing.T) {
	tl := logging.NewTestLogger()
	c, err := Open(context.Background(), "", WithLogger(tl.Logger))
	require.NoError(t, err)

	assert.Equal(t, 0, c.Current().Tree.Len())
	assert.NoError(t, c.Reload(context.Background()))
	tl.AssertLogged(t, zapcore.WarnLevel, "serving empty tree")
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	writeTree(t, path, treeV1)

	c, err := Open(context.Background(), path)
	require.NoError(t, err)
	first := c.Current()

	var notified atomic.Int32
	c.OnReload(func(*Snapshot) { notified.Add(1) })

	t.Run("unchanged content keeps snapshot", func(t *testing.T) {
		require.NoError(t, c.Reload(context.Background()))
		assert.Same(t, first, c.Current())
		assert.Zero(t, notified.Load())
	})

	t.Run("new content swaps snapshot", func(t *testing.T) {
		writeTree(t, path, treeV2)
		require.NoError(t, c.Reload(context.Background()))
		assert.NotEqual(t, first.Version, c.Current().Version)
		assert.Equal(t, 2, c.Current().Tree.Len())
		assert.EqualValues(t, 1, notified.Load())
	})

	t.Run("broken file keeps last good tree", func(t *testing.T) {
		before := c.Current()
		writeTree(t, path, `{"identities": [`)
		assert.Error(t, c.Reload(context.Background()))
		assert.Same(t, before, c.Current())
	})
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	writeTree(t, path, treeV1)

	c, err := Open(context.Background(), path, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	writeTree(t, path, treeV2)

	assert.Eventually(t, func() bool {
		return c.Current().Tree.Len() == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestNewStatic(t *testing.T) {
	tree := taxonomy.NewTree(taxonomy.Identity{ID: "1", Name: "Everyone else"})
	c := NewStatic(tree)

	assert.Equal(t, "static", c.Current().Source)
	assert.Equal(t, c.Current().Version, NewStatic(tree).Current().Version)
	assert.NoError(t, c.Reload(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, c.Watch(ctx))
}
