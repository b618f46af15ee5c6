package asset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps uploaded bytes in process memory and hands out URLs in
// the provider's delivery shape, so the extractor sees realistic input.
type MemoryStore struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	seq    int
	cloud  string
	folder string
	now    func() time.Time
}

// NewMemoryStore constructs a store that pretends to live in the given cloud/folder.
func NewMemoryStore(cloud, folder string) *MemoryStore {
	if cloud == "" {
		cloud = "memory"
	}
	return &MemoryStore{
		blobs:  make(map[string][]byte),
		cloud:  cloud,
		folder: strings.Trim(folder, "/"),
		now:    time.Now,
	}
}

// Upload stores the payload under a fresh provider id.
func (m *MemoryStore) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if len(req.Data) == 0 {
		return UploadResult{}, fmt.Errorf("%w for %s", ErrEmptyPayload, req.Name)
	}
	ext := strings.TrimPrefix(path.Ext(req.Name), ".")
	if ext == "" {
		ext = "jpg"
	}
	sum := sha256.Sum256(req.Data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:6]), m.seq)
	if m.folder != "" {
		id = m.folder + "/" + id
	}
	m.blobs[id] = append([]byte(nil), req.Data...)
	return UploadResult{
		URL:        fmt.Sprintf("https://%s/%s/image/upload/v%d/%s.%s", ProviderHost, m.cloud, m.now().Unix(), id, ext),
		ProviderID: id,
		SizeBytes:  uint64(len(req.Data)),
	}, nil
}

// Delete removes a payload, reporting ErrNotFound when it is already gone.
func (m *MemoryStore) Delete(ctx context.Context, providerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[providerID]; !ok {
		return ErrNotFound
	}
	delete(m.blobs, providerID)
	return nil
}

// List returns stored ids under prefix, sorted.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]Listed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Listed, 0, len(m.blobs))
	for id := range m.blobs {
		if strings.HasPrefix(id, prefix) {
			out = append(out, Listed{ProviderID: id})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out, nil
}

// Has reports whether providerID is currently stored.
func (m *MemoryStore) Has(providerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[providerID]
	return ok
}

// Len returns the number of stored assets.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Lister = (*MemoryStore)(nil)
)
