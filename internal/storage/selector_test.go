package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNodesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodes.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestStaticSelectorPicksFirstNode(t *testing.T) {
	path := writeNodesFile(t, `["http://node-a:8060", "http://node-b:8060"]`)
	selector := NewStaticSelector(path)

	addr, err := selector.Select()
	require.NoError(t, err)
	assert.Equal(t, "http://node-a:8060", addr)
}

func TestStaticSelectorTrimsTrailingSlash(t *testing.T) {
	path := writeNodesFile(t, `["http://node-a:8060/"]`)
	selector := NewStaticSelector(path)

	addr, err := selector.Select()
	require.NoError(t, err)
	assert.Equal(t, "http://node-a:8060", addr)
}

func TestStaticSelectorMissingFile(t *testing.T) {
	selector := NewStaticSelector(filepath.Join(t.TempDir(), "absent.json"))

	_, err := selector.Select()
	assert.ErrorIs(t, err, ErrNoNodesConfigured)
}

func TestStaticSelectorEmptyList(t *testing.T) {
	for _, content := range []string{`[]`, `["", "  "]`} {
		path := writeNodesFile(t, content)
		_, err := NewStaticSelector(path).Select()
		assert.ErrorIs(t, err, ErrNoNodesConfigured, "content %s", content)
	}
}

func TestStaticSelectorInvalidJSON(t *testing.T) {
	path := writeNodesFile(t, `{"not": "a list"}`)

	_, err := NewStaticSelector(path).Select()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoNodesConfigured)
}

func TestStaticSelectorRereadsFile(t *testing.T) {
	path := writeNodesFile(t, `["http://old-node:8060"]`)
	selector := NewStaticSelector(path)

	addr, err := selector.Select()
	require.NoError(t, err)
	assert.Equal(t, "http://old-node:8060", addr)

	// Repoint without restarting
	require.NoError(t, os.WriteFile(path, []byte(`["http://new-node:8060"]`), 0644))

	addr, err = selector.Select()
	require.NoError(t, err)
	assert.Equal(t, "http://new-node:8060", addr)
}

func TestListSelector(t *testing.T) {
	selector := NewListSelector("http://a:1/", "http://b:2")
	addr, err := selector.Select()
	require.NoError(t, err)
	assert.Equal(t, "http://a:1", addr)

	_, err = NewListSelector().Select()
	assert.ErrorIs(t, err, ErrNoNodesConfigured)
}
