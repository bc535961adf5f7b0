package media

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	gifHeader  = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

func TestReadImageAcceptsAllowedTypes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
		ext  string
	}{
		{"png", pngHeader, "image/png", ".png"},
		{"gif", gifHeader, "image/gif", ".gif"},
		{"jpeg", jpegHeader, "image/jpeg", ".jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := ReadImage(bytes.NewReader(tt.data), 1024)
			require.NoError(t, err)
			assert.Equal(t, tt.want, img.ContentType)
			assert.True(t, strings.HasSuffix(img.Name, tt.ext), img.Name)
			assert.Equal(t, tt.data, img.Data)
		})
	}
}

func TestReadImageRejectsOtherTypes(t *testing.T) {
	for name, data := range map[string][]byte{
		"text": []byte("just some plain text"),
		"pdf":  []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"),
		"html": []byte("<html><body>hi</body></html>"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadImage(bytes.NewReader(data), 1024)
			require.ErrorIs(t, err, ErrUnsupportedType)
		})
	}
}

func TestReadImageEnforcesLimit(t *testing.T) {
	data := append(append([]byte{}, pngHeader...), make([]byte, 100)...)
	_, err := ReadImage(bytes.NewReader(data), int64(len(data)-1))
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = ReadImage(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
}

func TestLocalStoreWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalStore(dir, "/uploads/")
	require.NoError(t, err)

	img, err := ReadImage(bytes.NewReader(pngHeader), 1024)
	require.NoError(t, err)
	url, err := Save(context.Background(), store, img)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/"+img.Name, url)

	written, err := os.ReadFile(filepath.Join(dir, img.Name))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, written)

	_, err = store.Put(context.Background(), "../escape.png", bytes.NewReader(pngHeader), 1, "image/png")
	require.Error(t, err)
}

func TestMinioPublicURL(t *testing.T) {
	store, err := NewMinioStore(MinioConfig{Endpoint: "127.0.0.1:9000", AccessKey: "a", SecretKey: "b", Bucket: "socialhub"})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000/socialhub", store.publicURL)

	store, err = NewMinioStore(MinioConfig{Endpoint: "s3.example.com", Bucket: "b", UseSSL: true, PublicURL: "https://cdn.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com", store.publicURL)
}
