package store

import (
	"sort"
	"strings"

	"github.com/rcliao/memeboard/internal/model"
)

// matchesSearch reports whether q is a case-insensitive substring of the
// title or of any tag. An empty query matches everything.
func matchesSearch(m *model.Meme, q string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(m.Title), q) {
		return true
	}
	for _, t := range m.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// lessFor returns the "comes first" ordering for a sort mode. Every mode
// falls back to createdAt DESC, then id DESC, so the order is total.
func lessFor(sortBy model.SortBy) func(a, b *model.Meme) bool {
	recent := func(a, b *model.Meme) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	}
	switch sortBy {
	case model.SortPopular:
		return func(a, b *model.Meme) bool {
			if a.EditedByUsers != b.EditedByUsers {
				return a.EditedByUsers > b.EditedByUsers
			}
			return recent(a, b)
		}
	case model.SortFeatured:
		return func(a, b *model.Meme) bool {
			if a.IsFeatured != b.IsFeatured {
				return a.IsFeatured
			}
			return recent(a, b)
		}
	default:
		return recent
	}
}

// applyListParams filters, sorts and pages an in-process snapshot.
func applyListParams(all []*model.Meme, p ListParams) []model.Meme {
	p = normalizeListParams(p)
	q := strings.TrimSpace(p.Search)

	matched := make([]*model.Meme, 0, len(all))
	for _, m := range all {
		if matchesSearch(m, q) {
			matched = append(matched, m)
		}
	}
	less := lessFor(p.SortBy)
	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })

	if p.Offset >= len(matched) {
		return []model.Meme{}
	}
	end := p.Offset + p.Limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]model.Meme, 0, end-p.Offset)
	for _, m := range matched[p.Offset:end] {
		out = append(out, m.Clone())
	}
	return out
}
