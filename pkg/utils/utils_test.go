package utils

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "upload.bin")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["image"][0]
}

func TestNewULIDFromTimestamp(t *testing.T) {
	now := time.Now()
	id, err := New().NewULIDFromTimestamp(now)
	require.NoError(t, err)

	parsed, err := ulid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(now), parsed.Time())
}

func TestReadFileHeader(t *testing.T) {
	u := NewWithLimit(8)

	data, err := u.ReadFileHeader(fileHeader(t, []byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	_, err = u.ReadFileHeader(fileHeader(t, []byte("0123456789")))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	assert.ErrorIs(t, u.ValidateImageFile(nil), ErrNoFile)
}
