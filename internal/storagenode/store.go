package storagenode

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrFileNotFound means no stored file matches the requested identifier.
var ErrFileNotFound = errors.New("storagenode: file not found")

// Store owns one local directory of blobs addressed by opaque identifiers.
// Identifier uniqueness is the write concurrency mechanism: two concurrent
// Puts generate distinct UUIDs and therefore distinct filenames, so no
// locking is needed around disk writes.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the absolute storage path.
func (s *Store) Dir() string {
	abs, err := filepath.Abs(s.dir)
	if err != nil {
		return s.dir
	}
	return abs
}

// FileInfo describes one stored file.
type FileInfo struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

// Stats summarizes the store for the health endpoint.
type Stats struct {
	NbFiles        int   `json:"nb_files"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
}

// Put writes the payload under a fresh UUID, keeping the extension of the
// caller-supplied filename (empty if none). Returns the generated identifier
// and the byte count written.
func (s *Store) Put(data []byte, originalFilename string) (string, int64, error) {
	fileID := uuid.New().String()
	ext := filepath.Ext(originalFilename)
	storedName := fileID + ext

	path := filepath.Join(s.dir, storedName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", 0, fmt.Errorf("failed to write file %s: %w", storedName, err)
	}

	return fileID, int64(len(data)), nil
}

// resolve finds the on-disk path for an identifier by globbing for any
// extension, then falling back to an extensionless file.
func (s *Store) resolve(fileID string) (string, error) {
	if !validID(fileID) {
		return "", ErrFileNotFound
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, fileID+".*"))
	if err == nil && len(matches) > 0 {
		return matches[0], nil
	}

	bare := filepath.Join(s.dir, fileID)
	if _, err := os.Stat(bare); err == nil {
		return bare, nil
	}

	return "", ErrFileNotFound
}

// validID rejects identifiers that could escape the storage directory.
// Generated ids are UUIDs; anything with separators or dots is foreign.
func validID(fileID string) bool {
	if fileID == "" {
		return false
	}
	return !strings.ContainsAny(fileID, "/\\.")
}

// Get resolves an identifier to its on-disk path and content type. Content
// type is derived from the stored extension, defaulting to an opaque binary
// type when unknown.
func (s *Store) Get(fileID string) (string, string, error) {
	path, err := s.resolve(fileID)
	if err != nil {
		return "", "", err
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return path, contentType, nil
}

// Delete removes the file matching an identifier. Deleting twice yields
// ErrFileNotFound the second time; the gateway treats that as already-absent.
func (s *Store) Delete(fileID string) error {
	path, err := s.resolve(fileID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// List returns descriptors for every stored file.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		name := entry.Name()
		files = append(files, FileInfo{
			ID:       strings.TrimSuffix(name, filepath.Ext(name)),
			Filename: name,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	return files, nil
}

// Stats counts files and bytes for the health endpoint.
func (s *Store) Stats() (Stats, error) {
	files, err := s.List()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{NbFiles: len(files)}
	for _, f := range files {
		stats.TotalSizeBytes += f.Size
	}
	return stats, nil
}
