package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseTags("a,b"))
	assert.Equal(t, []string{"a", "b", "c"}, ParseTags(" a , b,,c ,"))
	assert.Equal(t, []string{}, ParseTags(""))
}

func TestValidateMemeFields(t *testing.T) {
	title, tags, err := ValidateMemeFields("  Hello  ", []string{" a", "b ", "  "})
	require.NoError(t, err)
	assert.Equal(t, "Hello", title)
	assert.Equal(t, []string{"a", "b"}, tags)
}

func TestValidateMemeFieldsRejects(t *testing.T) {
	elevenTags := make([]string, 11)
	for i := range elevenTags {
		elevenTags[i] = "t"
	}

	cases := []struct {
		name  string
		title string
		tags  []string
		field string
	}{
		{"empty title", "   ", nil, "title"},
		{"long title", strings.Repeat("x", MaxTitleLength+1), nil, "title"},
		{"too many tags", "ok", elevenTags, "tags"},
		{"long tag", "ok", []string{strings.Repeat("y", MaxTagLength+1)}, "tags"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ValidateMemeFields(tc.title, tc.tags)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestValidateTitleCountsRunes(t *testing.T) {
	_, _, err := ValidateMemeFields(strings.Repeat("é", MaxTitleLength), nil)
	assert.NoError(t, err)
}

func TestMemeCloneIsDeep(t *testing.T) {
	m := Meme{Tags: []string{"a"}, EditHistory: []EditHistoryEntry{{PreviousTags: []string{"x"}}}}
	c := m.Clone()
	c.Tags[0] = "changed"
	c.EditHistory[0].PreviousTags[0] = "changed"
	assert.Equal(t, "a", m.Tags[0])
	assert.Equal(t, "x", m.EditHistory[0].PreviousTags[0])
}
