package store

import (
	"context"
	"fmt"

	"github.com/rcliao/memeboard/internal/model"
)

// ExportAll pages through every meme in recent order.
func ExportAll(ctx context.Context, s Store) ([]model.Meme, error) {
	all := []model.Meme{}
	for offset := 0; ; offset += MaxLimit {
		page, err := s.List(ctx, ListParams{Limit: MaxLimit, Offset: offset})
		if err != nil {
			return all, err
		}
		all = append(all, page...)
		if len(page) < MaxLimit {
			return all, nil
		}
	}
}

// Import recreates memes from an export, oldest first so the new ids keep
// the exported order. Ids, creation times, counters and edit history are
// not carried over; lock and feature flags are. Memes whose image URL is
// already present are skipped, so re-running an import adds nothing.
func Import(ctx context.Context, s Store, memes []model.Meme) (int, error) {
	existing, err := ExportAll(ctx, s)
	if err != nil {
		return 0, fmt.Errorf("load existing memes: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, m := range existing {
		seen[m.ImageURL] = true
	}

	imported := 0
	for i := len(memes) - 1; i >= 0; i-- {
		m := memes[i]
		if seen[m.ImageURL] {
			continue
		}
		seen[m.ImageURL] = true
		created, err := s.Create(ctx, CreateParams{Title: m.Title, Tags: m.Tags, ImageURL: m.ImageURL})
		if err != nil {
			return imported, fmt.Errorf("import %q: %w", m.Title, err)
		}
		if m.IsLocked || m.IsFeatured {
			locked, featured := m.IsLocked, m.IsFeatured
			if _, err := s.Update(ctx, created.ID, UpdateParams{IsLocked: &locked, IsFeatured: &featured}); err != nil {
				return imported, fmt.Errorf("import %q flags: %w", m.Title, err)
			}
		}
		imported++
	}
	return imported, nil
}
