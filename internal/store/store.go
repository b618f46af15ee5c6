// Package store provides the meme record storage interface and its backends.
package store

import (
	"context"
	"errors"

	"github.com/rcliao/memeboard/internal/model"
)

var (
	// ErrNotFound is returned when no record exists for the given key.
	ErrNotFound = errors.New("store: not found")
	// ErrLocked is returned by ApplyEdit when the record is locked.
	ErrLocked = errors.New("store: meme is locked")
	// ErrAdminExists is returned by CreateAdmin for a taken username.
	ErrAdminExists = errors.New("store: admin already exists")
)

// Listing bounds.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// CreateParams holds the caller-supplied fields of a new meme.
type CreateParams struct {
	Title    string
	Tags     []string
	ImageURL string
}

// UpdateParams holds an admin-driven partial update. Nil fields are left as is.
// Edit history and counters are never touched by Update.
type UpdateParams struct {
	Title      *string
	Tags       []string // nil means unchanged; empty slice clears
	ImageURL   *string
	IsLocked   *bool
	IsFeatured *bool
}

// ListParams holds parameters for listing memes.
type ListParams struct {
	Search string
	Limit  int
	Offset int
	SortBy model.SortBy
}

// Stats summarises the collection.
type Stats struct {
	Total    int `json:"total"`
	Locked   int `json:"locked"`
	Featured int `json:"featured"`
	Edits    int `json:"edits"`
}

// Store defines the meme record storage interface.
type Store interface {
	// Get retrieves one meme by id.
	Get(ctx context.Context, id string) (*model.Meme, error)

	// List filters, sorts and paginates memes.
	List(ctx context.Context, p ListParams) ([]model.Meme, error)

	// Create stores a new meme, assigning ID and CreatedAt.
	Create(ctx context.Context, p CreateParams) (*model.Meme, error)

	// CreateBulk creates each item independently. On failure it returns the
	// memes created so far together with the error.
	CreateBulk(ctx context.Context, items []CreateParams) ([]model.Meme, error)

	// Update applies an admin partial update.
	Update(ctx context.Context, id string, p UpdateParams) (*model.Meme, error)

	// ApplyEdit records a community edit: snapshot, overwrite, count, stamp.
	// Fails with ErrLocked without mutating when the meme is locked.
	ApplyEdit(ctx context.Context, id, title string, tags []string) (*model.Meme, error)

	// Delete removes a meme, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// Stats returns collection counters.
	Stats(ctx context.Context) (*Stats, error)

	// CreateAdmin stores a new admin account.
	CreateAdmin(ctx context.Context, a model.Admin) error

	// GetAdmin retrieves an admin by username.
	GetAdmin(ctx context.Context, username string) (*model.Admin, error)

	// Close releases backend resources.
	Close() error
}

func normalizeListParams(p ListParams) ListParams {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if !model.ValidSorts[p.SortBy] {
		p.SortBy = model.SortRecent
	}
	return p
}
