package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Selector picks one storage node base URL for a single operation. Selection
// is re-run for every call - nothing is sticky - so a future health-aware
// policy can slot in without touching the gateway or its callers.
type Selector interface {
	Select() (string, error)
}

// StaticSelector reads an ordered JSON list of node base URLs from a
// provisioning file and always returns the first entry. The file is re-read
// on every call so operators can repoint nodes without a restart.
type StaticSelector struct {
	path string
}

func NewStaticSelector(path string) *StaticSelector {
	return &StaticSelector{path: path}
}

// Addresses returns the full configured node list in provisioning order.
func (s *StaticSelector) Addresses() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: provisioning file %s not found", ErrNoNodesConfigured, s.path)
		}
		return nil, fmt.Errorf("failed to read node provisioning file %s: %w", s.path, err)
	}

	var addresses []string
	if err := json.Unmarshal(data, &addresses); err != nil {
		return nil, fmt.Errorf("invalid node provisioning file %s: %w", s.path, err)
	}

	cleaned := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		addr = strings.TrimRight(strings.TrimSpace(addr), "/")
		if addr != "" {
			cleaned = append(cleaned, addr)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: provisioning file %s is empty", ErrNoNodesConfigured, s.path)
	}
	return cleaned, nil
}

// Select returns the first configured node.
//
// TODO: query node /health and pick the least loaded once multi-node
// deployments exist; the Gateway already tolerates any choice here.
func (s *StaticSelector) Select() (string, error) {
	addresses, err := s.Addresses()
	if err != nil {
		return "", err
	}
	return addresses[0], nil
}

// ListSelector selects from a fixed in-memory address list. Used by tests and
// single-node embedded setups.
type ListSelector struct {
	addresses []string
}

func NewListSelector(addresses ...string) *ListSelector {
	cleaned := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		addr = strings.TrimRight(strings.TrimSpace(addr), "/")
		if addr != "" {
			cleaned = append(cleaned, addr)
		}
	}
	return &ListSelector{addresses: cleaned}
}

func (s *ListSelector) Select() (string, error) {
	if len(s.addresses) == 0 {
		return "", ErrNoNodesConfigured
	}
	return s.addresses[0], nil
}
