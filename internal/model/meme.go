// Package model defines the core meme data types.
package model

import "time"

// Meme is the metadata record for one uploaded image.
type Meme struct {
	ID            string             `json:"id" yaml:"id" bson:"_id"`
	Title         string             `json:"title" yaml:"title" bson:"title"`
	Tags          []string           `json:"tags" yaml:"tags" bson:"tags"`
	ImageURL      string             `json:"imageUrl" yaml:"imageUrl" bson:"imageUrl"`
	CreatedAt     time.Time          `json:"createdAt" yaml:"createdAt" bson:"createdAt"`
	EditedByUsers int                `json:"editedByUsers" yaml:"editedByUsers" bson:"editedByUsers"`
	LastEditedAt  *time.Time         `json:"lastEditedAt" yaml:"lastEditedAt" bson:"lastEditedAt"`
	EditHistory   []EditHistoryEntry `json:"editHistory" yaml:"editHistory" bson:"editHistory"`
	IsLocked      bool               `json:"isLocked" yaml:"isLocked" bson:"isLocked"`
	IsFeatured    bool               `json:"isFeatured" yaml:"isFeatured" bson:"isFeatured"`
}

// EditHistoryEntry snapshots title and tags as they were before a community edit.
type EditHistoryEntry struct {
	PreviousName string    `json:"previousName" yaml:"previousName" bson:"previousName"`
	PreviousTags []string  `json:"previousTags" yaml:"previousTags" bson:"previousTags"`
	EditedAt     time.Time `json:"editedAt" yaml:"editedAt" bson:"editedAt"`
}

// Clone returns a deep copy so callers never share slices with a store.
func (m Meme) Clone() Meme {
	out := m
	out.Tags = cloneStrings(m.Tags)
	if m.LastEditedAt != nil {
		t := *m.LastEditedAt
		out.LastEditedAt = &t
	}
	if m.EditHistory != nil {
		out.EditHistory = make([]EditHistoryEntry, len(m.EditHistory))
		for i, e := range m.EditHistory {
			e.PreviousTags = cloneStrings(e.PreviousTags)
			out.EditHistory[i] = e
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Admin is a moderator account. Credentials are checked by the auth package.
type Admin struct {
	Username     string    `json:"username" bson:"_id"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	Role         string    `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// RoleAdmin is the only role allowed through admin endpoints.
const RoleAdmin = "admin"

// Principal is an already-verified caller identity handed to admin operations.
type Principal struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// SortBy selects the ordering of a listing.
type SortBy string

const (
	SortRecent   SortBy = "recent"
	SortPopular  SortBy = "popular"
	SortFeatured SortBy = "featured"
)

// ValidSorts are the accepted sort modes.
var ValidSorts = map[SortBy]bool{
	SortRecent:   true,
	SortPopular:  true,
	SortFeatured: true,
}

// Bulk uploads carry no per-item metadata; these fill the gap until someone edits them.
const (
	PlaceholderTitle = "Untitled meme"
	PlaceholderTag   = "uncategorized"
)

// Now returns the current time truncated to the precision every backend can store.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
