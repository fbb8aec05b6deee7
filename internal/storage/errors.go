package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNoNodesConfigured means the provisioning file is missing or empty.
	// Fatal at first use; surfaced to the operator, never retried.
	ErrNoNodesConfigured = errors.New("storage: no storage nodes configured")

	// ErrFileNotFound means the selected node does not hold the identifier.
	// Mapped to 404 on fetch, treated as already-absent on delete.
	ErrFileNotFound = errors.New("storage: file not found")

	// ErrNodeUnavailable means a network-level failure or timeout talking to
	// a node. Mapped to 502 so clients can tell "never existed" from
	// "temporarily unreachable".
	ErrNodeUnavailable = errors.New("storage: node unavailable")
)

// UploadError is returned when a node rejects or errors on an upload. It
// carries the node's HTTP status; it never carries the shared secret or the
// node address.
type UploadError struct {
	StatusCode int
	Message    string
}

func (e *UploadError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storage: upload rejected with status %d", e.StatusCode)
	}
	return fmt.Sprintf("storage: upload rejected with status %d: %s", e.StatusCode, e.Message)
}
