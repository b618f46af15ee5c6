package asset

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// ProviderHost is the delivery host of provider-managed assets.
	ProviderHost = "res.cloudinary.com"
	// UploadMarker separates the delivery prefix from the versioned public id.
	UploadMarker = "/upload/"
)

var (
	// ErrNotProviderManaged means the URL points somewhere the asset store
	// does not own; deleting it is a no-op.
	ErrNotProviderManaged = errors.New("asset: url is not provider managed")
	// ErrMalformedProviderURL means the URL looks provider managed but its
	// public id cannot be derived.
	ErrMalformedProviderURL = errors.New("asset: malformed provider url")
)

var versionSegment = regexp.MustCompile(`^v\d+/`)

// ExtractProviderID derives the provider id from an asset URL of the form
// .../upload/[v<digits>/]<id>.<ext>.
func ExtractProviderID(rawURL string) (string, error) {
	u := rawURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}

	n := strings.Count(u, UploadMarker)
	if n == 0 {
		if strings.Contains(u, ProviderHost) {
			return "", fmt.Errorf("%w: %q has no %s segment", ErrMalformedProviderURL, rawURL, UploadMarker)
		}
		return "", ErrNotProviderManaged
	}
	if n > 1 {
		return "", fmt.Errorf("%w: %q has %d %s segments", ErrMalformedProviderURL, rawURL, n, UploadMarker)
	}

	rest := u[strings.Index(u, UploadMarker)+len(UploadMarker):]

	// Only the last segment carries an extension; folders may contain dots.
	lastSlash := strings.LastIndex(rest, "/")
	if dot := strings.LastIndex(rest, "."); dot > lastSlash {
		rest = rest[:dot]
	}

	rest = versionSegment.ReplaceAllString(rest, "")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return "", fmt.Errorf("%w: %q has an empty public id", ErrMalformedProviderURL, rawURL)
	}
	return rest, nil
}
