// Package asset abstracts the binary image store (CDN) that backs meme records.
package asset

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Delete when the asset is already gone.
	ErrNotFound = errors.New("asset: not found")
	// ErrEmptyPayload is returned by Upload when there are no bytes to store.
	ErrEmptyPayload = errors.New("asset: empty payload")
)

// UploadRequest carries one file to be stored.
type UploadRequest struct {
	Name     string
	MimeType string
	Data     []byte
}

// UploadResult describes a stored asset.
type UploadResult struct {
	URL        string
	ProviderID string
	SizeBytes  uint64
}

// Store is the asset-store contract the media coordinator depends on.
// Delete must report an already-missing asset as ErrNotFound.
type Store interface {
	Upload(ctx context.Context, req UploadRequest) (UploadResult, error)
	Delete(ctx context.Context, providerID string) error
}

// Listed is one asset returned by a Lister.
type Listed struct {
	ProviderID string
	URL        string
}

// Lister enumerates stored assets under a provider-id prefix. Only the
// orphan sweep needs it.
type Lister interface {
	List(ctx context.Context, prefix string) ([]Listed, error)
}
