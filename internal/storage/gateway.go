package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ProxyPathPrefix is the backend-relative prefix every stored file is
// addressed under. Database rows and clients only ever see these references;
// node addresses stay inside this package.
const ProxyPathPrefix = "/media/proxy/"

// DefaultTimeout bounds every node round trip so a wedged node cannot hang a
// backend request indefinitely.
const DefaultTimeout = 30 * time.Second

// ProxyReference builds the backend-relative reference for a file id.
func ProxyReference(fileID string) string {
	return ProxyPathPrefix + fileID
}

// FileIDFromReference extracts the file id from a proxy reference.
func FileIDFromReference(ref string) (string, bool) {
	if !strings.HasPrefix(ref, ProxyPathPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(ref, ProxyPathPrefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// UploadResult is the node's response to a file upload.
type UploadResult struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	NodeID   string `json:"node_id"`
	Size     int64  `json:"size"`
}

// FileDescriptor describes one stored file, as reported by a node's list call.
type FileDescriptor struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

// NodeHealth is the node's health report.
type NodeHealth struct {
	Status         string `json:"status"`
	NodeID         string `json:"node_id"`
	StoragePath    string `json:"storage_path"`
	NbFiles        int    `json:"nb_files"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
}

// FetchResult carries a downloaded file's bytes and upstream content type.
// Callers must close Body.
type FetchResult struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// Gateway is the only component that speaks the storage-node wire protocol.
// It translates application save/fetch/delete/list intents into authenticated
// node HTTP calls and rewrites node identifiers into proxy references.
type Gateway struct {
	selector Selector
	secret   string
	client   *http.Client
}

func NewGateway(selector Selector, secret string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{
		selector: selector,
		secret:   secret,
		client:   &http.Client{Timeout: timeout},
	}
}

// Save uploads a file to the selected node and returns its proxy reference.
// The raw node URL never leaves this method.
func (g *Gateway) Save(content io.Reader, filename string) (string, error) {
	node, err := g.selector.Select()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("failed to read upload content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, node+"/files", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("X-API-Key", g.secret)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNodeUnavailable, sanitize(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &UploadError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("invalid upload response from node: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("node returned an empty file id")
	}

	return ProxyReference(result.ID), nil
}

// Fetch downloads a file from the selected node. Returns ErrFileNotFound for
// a node 404 and ErrNodeUnavailable for network failures, so the proxy
// endpoint can answer 404 vs 502.
func (g *Gateway) Fetch(fileID string) (*FetchResult, error) {
	node, err := g.selector.Select()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodGet, node+"/files/"+fileID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}
	req.Header.Set("X-API-Key", g.secret)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeUnavailable, sanitize(err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return &FetchResult{
			Body:          resp.Body,
			ContentType:   contentType,
			ContentLength: resp.ContentLength,
		}, nil
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrFileNotFound
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: node answered status %d", ErrNodeUnavailable, resp.StatusCode)
	}
}

// Delete removes a file from the selected node. A node 404 is a successful
// no-op: deleting an already-gone file must never abort a post or media
// cascade delete.
func (g *Gateway) Delete(fileID string) error {
	node, err := g.selector.Select()
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodDelete, node+"/files/"+fileID, nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}
	req.Header.Set("X-API-Key", g.secret)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNodeUnavailable, sanitize(err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		// Already absent on the node - success-equivalent
		return nil
	default:
		return fmt.Errorf("%w: node answered status %d", ErrNodeUnavailable, resp.StatusCode)
	}
}

type listResponse struct {
	NodeID string           `json:"node_id"`
	Files  []FileDescriptor `json:"files"`
}

// List returns raw file descriptors from the selected node, for
// administrative tooling and the orphan sweeper.
func (g *Gateway) List() ([]FileDescriptor, error) {
	node, err := g.selector.Select()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodGet, node+"/files", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}
	req.Header.Set("X-API-Key", g.secret)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeUnavailable, sanitize(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: node answered status %d", ErrNodeUnavailable, resp.StatusCode)
	}

	var result listResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("invalid list response from node: %w", err)
	}
	return result.Files, nil
}

// Health queries the selected node's health endpoint (unauthenticated).
func (g *Gateway) Health() (*NodeHealth, error) {
	node, err := g.selector.Select()
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Get(node + "/health")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeUnavailable, sanitize(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: node answered status %d", ErrNodeUnavailable, resp.StatusCode)
	}

	var health NodeHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("invalid health response from node: %w", err)
	}
	return &health, nil
}

// sanitize reduces a transport error to its cause. url.Error embeds the full
// node URL in its text and net.OpError embeds the node host:port; stripping
// both keeps node addresses out of any API response built from a wrapped
// gateway error.
func sanitize(err error) string {
	var operr *net.OpError
	if errors.As(err, &operr) && operr.Err != nil {
		return operr.Err.Error()
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err.Error()
	}
	return err.Error()
}
