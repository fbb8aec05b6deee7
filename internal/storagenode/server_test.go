package storagenode

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/closo/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "node-test-secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	server, err := NewServer(&config.NodeConfig{
		Port:       8060,
		NodeID:     "node-test",
		StorageDir: t.TempDir(),
		SecretKey:  testSecret,
	})
	require.NoError(t, err)
	return server
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func uploadFile(t *testing.T, server *Server, filename string, content []byte) string {
	t.Helper()
	body, contentType := multipartBody(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/files/", body)
	req.Header.Set("X-API-Key", testSecret)
	req.Header.Set("Content-Type", contentType)

	resp, err := server.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		NodeID   string `json:"node_id"`
		Size     int64  `json:"size"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.NotEmpty(t, result.ID)
	assert.Equal(t, filename, result.Filename)
	assert.Equal(t, "node-test", result.NodeID)
	assert.Equal(t, int64(len(content)), result.Size)
	return result.ID
}

func TestHealthIsOpen(t *testing.T) {
	server := newTestServer(t)

	// No API key on purpose
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status         string `json:"status"`
		NodeID         string `json:"node_id"`
		StoragePath    string `json:"storage_path"`
		NbFiles        int    `json:"nb_files"`
		TotalSizeBytes int64  `json:"total_size_bytes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "node-test", health.NodeID)
	assert.NotEmpty(t, health.StoragePath)
	assert.Equal(t, 0, health.NbFiles)
}

func TestFileRoutesRequireAPIKey(t *testing.T) {
	server := newTestServer(t)
	id := uploadFile(t, server, "a.jpg", []byte("content"))

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/files/"},
		{http.MethodGet, "/files/"},
		{http.MethodGet, "/files/" + id},
		{http.MethodDelete, "/files/" + id},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		resp, err := server.App().Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "%s %s", tc.method, tc.path)

		req = httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("X-API-Key", "wrong-key")
		resp, err = server.App().Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "%s %s with bad key", tc.method, tc.path)
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	server := newTestServer(t)
	content := []byte("\xFF\xD8\xFFjpeg body")

	id := uploadFile(t, server, "photo.jpg", content)

	req := httptest.NewRequest(http.MethodGet, "/files/"+id, nil)
	req.Header.Set("X-API-Key", testSecret)
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestGetMissingFileAnswers404(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/files/00000000-0000-0000-0000-000000000000", nil)
	req.Header.Set("X-API-Key", testSecret)
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "File not found", body.Detail)
}

func TestDeleteFile(t *testing.T) {
	server := newTestServer(t)
	id := uploadFile(t, server, "gone.png", []byte("bytes"))

	req := httptest.NewRequest(http.MethodDelete, "/files/"+id, nil)
	req.Header.Set("X-API-Key", testSecret)
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Second delete answers 404
	req = httptest.NewRequest(http.MethodDelete, "/files/"+id, nil)
	req.Header.Set("X-API-Key", testSecret)
	resp, err = server.App().Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListFiles(t *testing.T) {
	server := newTestServer(t)
	id1 := uploadFile(t, server, "a.jpg", []byte("aa"))
	id2 := uploadFile(t, server, "b.png", []byte("bbb"))

	req := httptest.NewRequest(http.MethodGet, "/files/", nil)
	req.Header.Set("X-API-Key", testSecret)
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		NodeID string     `json:"node_id"`
		Files  []FileInfo `json:"files"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "node-test", body.NodeID)
	require.Len(t, body.Files, 2)

	ids := map[string]bool{}
	for _, f := range body.Files {
		ids[f.ID] = true
	}
	assert.True(t, ids[id1])
	assert.True(t, ids[id2])
}

func TestUploadWithoutFileAnswers400(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/files/", bytes.NewReader(nil))
	req.Header.Set("X-API-Key", testSecret)
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
