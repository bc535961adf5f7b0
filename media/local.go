package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// LocalStore writes uploads to a directory served by the HTTP server.
type LocalStore struct {
	Dir       string
	PublicURL string
}

func NewLocalStore(dir, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create upload dir %s", dir)
	}
	return &LocalStore{Dir: dir, PublicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, name string, body io.Reader, size int64, contentType string) (string, error) {
	if name != filepath.Base(name) {
		return "", errors.Errorf("invalid object name %q", name)
	}
	f, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return "", errors.Wrap(err, "create upload file")
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", errors.Wrap(err, "write upload file")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "close upload file")
	}
	return s.PublicURL + "/" + name, nil
}
