package storage

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gatewaySecret = "gateway-test-secret"

// fakeNode speaks the storage node wire protocol in memory.
type fakeNode struct {
	files map[string][]byte
}

func newFakeNode() *fakeNode {
	return &fakeNode{files: map[string][]byte{}}
}

func (n *fakeNode) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":           "healthy",
			"node_id":          "fake-node",
			"storage_path":     "/tmp/fake",
			"nb_files":         len(n.files),
			"total_size_bytes": 0,
		})
	})
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != gatewaySecret {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid API key"})
			return
		}
		switch r.Method {
		case http.MethodPost:
			file, header, err := r.FormFile("file")
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			id := "11111111-2222-3333-4444-555555555555"
			n.files[id] = data
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":       id,
				"filename": header.Filename,
				"node_id":  "fake-node",
				"size":     len(data),
			})
		case http.MethodGet:
			files := []map[string]interface{}{}
			for id, data := range n.files {
				files = append(files, map[string]interface{}{
					"id":       id,
					"filename": id + ".jpg",
					"size":     len(data),
					"mod_time": time.Now(),
				})
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"node_id": "fake-node",
				"files":   files,
			})
		}
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != gatewaySecret {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/files/")
		data, ok := n.files[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"detail": "File not found"})
			return
		}
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(data)
		case http.MethodDelete:
			delete(n.files, id)
			json.NewEncoder(w).Encode(map[string]string{"message": "File deleted", "id": id})
		}
	})
	return mux
}

func newTestGateway(t *testing.T) (*Gateway, *fakeNode) {
	t.Helper()
	node := newFakeNode()
	server := httptest.NewServer(node.handler())
	t.Cleanup(server.Close)
	gateway := NewGateway(NewListSelector(server.URL), gatewaySecret, 5*time.Second)
	return gateway, node
}

func TestGatewaySaveReturnsProxyReference(t *testing.T) {
	gateway, node := newTestGateway(t)

	ref, err := gateway.Save(strings.NewReader("photo bytes"), "photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/media/proxy/11111111-2222-3333-4444-555555555555", ref)
	assert.Len(t, node.files, 1)
}

func TestGatewayFetch(t *testing.T) {
	gateway, node := newTestGateway(t)
	node.files["file-a"] = []byte("stored bytes")

	result, err := gateway.Fetch("file-a")
	require.NoError(t, err)
	defer result.Body.Close()

	assert.Equal(t, "image/jpeg", result.ContentType)
	data, err := io.ReadAll(result.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("stored bytes"), data)
}

func TestGatewayFetchMissingFile(t *testing.T) {
	gateway, _ := newTestGateway(t)

	_, err := gateway.Fetch("missing")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestGatewayFetchUnreachableNode(t *testing.T) {
	// Nothing listens on this port
	gateway := NewGateway(NewListSelector("http://127.0.0.1:1"), gatewaySecret, time.Second)

	_, err := gateway.Fetch("any")
	assert.ErrorIs(t, err, ErrNodeUnavailable)
}

func TestGatewayErrorsHideNodeAddress(t *testing.T) {
	gateway := NewGateway(NewListSelector("http://127.0.0.1:1"), gatewaySecret, time.Second)

	_, err := gateway.Fetch("any")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeUnavailable)
	assert.NotContains(t, err.Error(), "127.0.0.1:1")

	// Upload and health paths wrap transport failures the same way
	_, err = gateway.Save(strings.NewReader("x"), "a.jpg")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "127.0.0.1:1")

	_, err = gateway.Health()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "127.0.0.1:1")
}

func TestGatewayDelete(t *testing.T) {
	gateway, node := newTestGateway(t)
	node.files["file-b"] = []byte("x")

	require.NoError(t, gateway.Delete("file-b"))
	assert.Empty(t, node.files)

	// Already absent is a successful no-op
	assert.NoError(t, gateway.Delete("file-b"))
}

func TestGatewayList(t *testing.T) {
	gateway, node := newTestGateway(t)
	node.files["file-c"] = []byte("abc")

	files, err := gateway.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "file-c", files[0].ID)
	assert.Equal(t, int64(3), files[0].Size)
}

func TestGatewayHealth(t *testing.T) {
	gateway, _ := newTestGateway(t)

	health, err := gateway.Health()
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "fake-node", health.NodeID)
}

func TestGatewayNoNodesFailsBeforeIO(t *testing.T) {
	gateway := NewGateway(NewListSelector(), gatewaySecret, time.Second)

	_, err := gateway.Save(strings.NewReader("x"), "a.jpg")
	assert.ErrorIs(t, err, ErrNoNodesConfigured)
	_, err = gateway.Fetch("id")
	assert.ErrorIs(t, err, ErrNoNodesConfigured)
	assert.ErrorIs(t, gateway.Delete("id"), ErrNoNodesConfigured)
	_, err = gateway.List()
	assert.ErrorIs(t, err, ErrNoNodesConfigured)
	_, err = gateway.Health()
	assert.ErrorIs(t, err, ErrNoNodesConfigured)
}

func TestGatewayUploadRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInsufficientStorage)
		w.Write([]byte(`{"detail": "disk full"}`))
	}))
	t.Cleanup(server.Close)

	gateway := NewGateway(NewListSelector(server.URL), gatewaySecret, time.Second)

	_, err := gateway.Save(strings.NewReader("x"), "a.jpg")
	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, http.StatusInsufficientStorage, uploadErr.StatusCode)
}

func TestProxyReferenceRoundTrip(t *testing.T) {
	ref := ProxyReference("abc-123")
	assert.Equal(t, "/media/proxy/abc-123", ref)

	id, ok := FileIDFromReference(ref)
	require.True(t, ok)
	assert.Equal(t, "abc-123", id)

	_, ok = FileIDFromReference("/uploads/abc-123")
	assert.False(t, ok)
	_, ok = FileIDFromReference("/media/proxy/")
	assert.False(t, ok)
	_, ok = FileIDFromReference("/media/proxy/a/b")
	assert.False(t, ok)
}
