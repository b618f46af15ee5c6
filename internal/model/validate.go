package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Limits on user-supplied metadata.
const (
	MaxTitleLength = 200
	MaxTags        = 10
	MaxTagLength   = 50
)

// ValidationError reports the first field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// memeFields mirrors the user-editable part of a Meme for validation.
type memeFields struct {
	Title string   `validate:"required,max=200"`
	Tags  []string `validate:"max=10,dive,required,max=50"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseTags splits a comma-separated tag string, trimming and dropping empties.
func ParseTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// NormalizeTags trims each tag and drops the empty ones.
func NormalizeTags(in []string) []string {
	tags := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// ValidateMemeFields trims and checks title and tags, returning the
// normalized values or a *ValidationError.
func ValidateMemeFields(title string, tags []string) (string, []string, error) {
	f := memeFields{
		Title: strings.TrimSpace(title),
		Tags:  NormalizeTags(tags),
	}
	if err := validate.Struct(f); err != nil {
		return "", nil, toValidationError(err)
	}
	return f.Title, f.Tags, nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: "request", Message: err.Error()}
	}
	fe := verrs[0]
	field := "title"
	if strings.HasPrefix(fe.StructNamespace(), "memeFields.Tags") {
		field = "tags"
	}
	switch {
	case field == "title" && fe.Tag() == "required":
		return &ValidationError{Field: field, Message: "title is required"}
	case field == "title" && fe.Tag() == "max":
		return &ValidationError{Field: field, Message: fmt.Sprintf("title must be at most %d characters", MaxTitleLength)}
	case fe.Field() == "Tags" && fe.Tag() == "max":
		return &ValidationError{Field: field, Message: fmt.Sprintf("at most %d tags allowed", MaxTags)}
	case fe.Tag() == "max":
		return &ValidationError{Field: field, Message: fmt.Sprintf("each tag must be at most %d characters", MaxTagLength)}
	default:
		return &ValidationError{Field: field, Message: "tags must not be empty"}
	}
}
