package asset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalPathPrefix is the URL path under which LocalStore files are served.
const LocalPathPrefix = "/uploads/"

// LocalStore writes assets to a directory for development setups without a
// CDN. Its URLs are not provider managed, so record deletion leaves the file
// in place, the same as any other externally hosted image.
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("asset: local root is required")
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &LocalStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Root returns the directory files are written to.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if len(req.Data) == 0 {
		return UploadResult{}, fmt.Errorf("%w for %s", ErrEmptyPayload, req.Name)
	}
	ext := strings.ToLower(filepath.Ext(req.Name))
	if ext == "" {
		ext = ".jpg"
	}
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.root, name), req.Data, 0o644); err != nil {
		return UploadResult{}, fmt.Errorf("write asset: %w", err)
	}
	return UploadResult{
		URL:        s.baseURL + LocalPathPrefix + name,
		ProviderID: name,
		SizeBytes:  uint64(len(req.Data)),
	}, nil
}

func (s *LocalStore) Delete(ctx context.Context, providerID string) error {
	name := filepath.Base(providerID)
	if name != providerID || name == "." || name == string(filepath.Separator) {
		return fmt.Errorf("asset: invalid local id %q", providerID)
	}
	err := os.Remove(filepath.Join(s.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *LocalStore) List(ctx context.Context, prefix string) ([]Listed, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var out []Listed
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		out = append(out, Listed{ProviderID: e.Name(), URL: s.baseURL + LocalPathPrefix + e.Name()})
	}
	return out, nil
}

var (
	_ Store  = (*LocalStore)(nil)
	_ Lister = (*LocalStore)(nil)
)
