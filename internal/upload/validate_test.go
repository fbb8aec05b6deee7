package upload

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jpegBytes = []byte("\xFF\xD8\xFF\xE0rest of jpeg")
	pngBytes  = []byte("\x89PNG\r\n\x1a\nrest of png")
	gifBytes  = []byte("GIF89arest of gif")
	webpBytes = []byte("RIFF\x00\x00\x00\x00WEBPVP8 ")
)

// fileHeaders builds real multipart.FileHeaders from name/content pairs
func fileHeaders(t *testing.T, files map[string][]byte) []*multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["files"]
}

func singleHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	headers := fileHeaders(t, map[string][]byte{name: content})
	require.Len(t, headers, 1)
	return headers[0]
}

func TestDetectMimeType(t *testing.T) {
	cases := []struct {
		name    string
		content []byte
		want    string
	}{
		{"jpeg", jpegBytes, "image/jpeg"},
		{"png", pngBytes, "image/png"},
		{"gif89a", gifBytes, "image/gif"},
		{"gif87a", []byte("GIF87aold gif"), "image/gif"},
		{"webp", webpBytes, "image/webp"},
		{"pdf", []byte("%PDF-1.4"), "application/octet-stream"},
		{"empty", nil, "application/octet-stream"},
		{"riff but not webp", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), "application/octet-stream"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectMimeType(tc.content))
		})
	}
}

func TestValidateImageAccepts(t *testing.T) {
	for name, content := range map[string][]byte{
		"photo.jpg":   jpegBytes,
		"photo.jpeg":  jpegBytes,
		"photo.png":   pngBytes,
		"anim.gif":    gifBytes,
		"modern.webp": webpBytes,
		"UPPER.JPG":   jpegBytes,
	} {
		got, err := ValidateImage(singleHeader(t, name, content))
		require.NoError(t, err, "file %s", name)
		assert.Equal(t, content, got)
	}
}

func TestValidateImageRejectsExtension(t *testing.T) {
	_, err := ValidateImage(singleHeader(t, "document.pdf", jpegBytes))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "extension not allowed")
}

func TestValidateImageRejectsSpoofedContent(t *testing.T) {
	// JPEG extension but PDF content
	_, err := ValidateImage(singleHeader(t, "sneaky.jpg", []byte("%PDF-1.4 not an image")))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "file type not allowed")
}

func TestValidateImageRejectsOversize(t *testing.T) {
	big := make([]byte, MaxUploadSize+1)
	copy(big, jpegBytes)

	_, err := ValidateImage(singleHeader(t, "huge.jpg", big))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "too large")
}

func TestValidateImageRejectsEmpty(t *testing.T) {
	_, err := ValidateImage(singleHeader(t, "empty.jpg", nil))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "empty")
}

func TestValidateBatch(t *testing.T) {
	headers := fileHeaders(t, map[string][]byte{
		"a.jpg": jpegBytes,
		"b.png": pngBytes,
	})

	contents, err := ValidateBatch(headers)
	require.NoError(t, err)
	assert.Len(t, contents, 2)
}

func TestValidateBatchEmpty(t *testing.T) {
	_, err := ValidateBatch(nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "at least one file")
}

func TestValidateBatchTooManyFiles(t *testing.T) {
	files := make(map[string][]byte, MaxFilesPerPost+1)
	for i := 0; i <= MaxFilesPerPost; i++ {
		files[string(rune('a'+i))+".jpg"] = jpegBytes
	}

	_, err := ValidateBatch(fileHeaders(t, files))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "too many files")
}

func TestValidateBatchReportsOffendingFile(t *testing.T) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, f := range []struct {
		name    string
		content []byte
	}{
		{"good.jpg", jpegBytes},
		{"bad.pdf", []byte("%PDF")},
	} {
		part, err := writer.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))

	_, err := ValidateBatch(req.MultipartForm.File["files"])
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Filename, "bad.pdf")
	assert.Contains(t, verr.Filename, "#2")
}
