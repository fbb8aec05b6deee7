package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
)

const (
	// MaxUploadSize is the per-file byte cap (8 MB)
	MaxUploadSize = 8 * 1024 * 1024

	// MaxFilesPerPost caps the media batch of a single post
	MaxFilesPerPost = 10
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ValidationError describes why an uploaded file was rejected. Handlers map
// it to a 400 with the message as-is.
type ValidationError struct {
	Filename string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Filename, e.Reason)
}

// DetectMimeType reads magic bytes to identify the real content type,
// ignoring whatever the client claimed.
func DetectMimeType(content []byte) string {
	switch {
	case bytes.HasPrefix(content, []byte("\xFF\xD8\xFF")):
		return "image/jpeg"
	case bytes.HasPrefix(content, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case bytes.HasPrefix(content, []byte("GIF87a")), bytes.HasPrefix(content, []byte("GIF89a")):
		return "image/gif"
	case bytes.HasPrefix(content, []byte("RIFF")) && len(content) >= 16 && bytes.Contains(content[:16], []byte("WEBP")):
		return "image/webp"
	}
	return "application/octet-stream"
}

// ValidateImage checks extension, size and magic bytes of one uploaded file
// and returns its content. Runs before the storage gateway is ever invoked -
// the gateway performs no content validation itself.
func ValidateImage(fileHeader *multipart.FileHeader) ([]byte, error) {
	filename := fileHeader.Filename
	if filename == "" {
		return nil, &ValidationError{Filename: "file", Reason: "filename is required"}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, &ValidationError{
			Filename: filename,
			Reason:   "extension not allowed. Accepted: JPG, JPEG, PNG, GIF, WEBP",
		}
	}

	if fileHeader.Size > MaxUploadSize {
		return nil, &ValidationError{
			Filename: filename,
			Reason: fmt.Sprintf("file too large (%.2f MB / %d MB max)",
				float64(fileHeader.Size)/(1024*1024), MaxUploadSize/(1024*1024)),
		}
	}

	f, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file %s: %w", filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file %s: %w", filename, err)
	}

	if len(content) == 0 {
		return nil, &ValidationError{Filename: filename, Reason: "file is empty"}
	}
	if len(content) > MaxUploadSize {
		return nil, &ValidationError{
			Filename: filename,
			Reason:   fmt.Sprintf("file too large (%d MB max)", MaxUploadSize/(1024*1024)),
		}
	}

	mimeType := DetectMimeType(content)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, &ValidationError{
			Filename: filename,
			Reason:   "file type not allowed. Accepted: JPEG, PNG, GIF, WebP",
		}
	}

	return content, nil
}

// ValidateBatch validates a post's media files in order. The index of the
// offending file is folded into the error message.
func ValidateBatch(files []*multipart.FileHeader) ([][]byte, error) {
	if len(files) == 0 {
		return nil, &ValidationError{Filename: "files", Reason: "at least one file is required"}
	}
	if len(files) > MaxFilesPerPost {
		return nil, &ValidationError{
			Filename: "files",
			Reason:   fmt.Sprintf("too many files. Maximum allowed: %d", MaxFilesPerPost),
		}
	}

	contents := make([][]byte, 0, len(files))
	for idx, fh := range files {
		content, err := ValidateImage(fh)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				return nil, &ValidationError{
					Filename: fmt.Sprintf("%s (#%d)", verr.Filename, idx+1),
					Reason:   verr.Reason,
				}
			}
			return nil, err
		}
		contents = append(contents, content)
	}
	return contents, nil
}
