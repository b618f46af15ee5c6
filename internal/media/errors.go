package media

import "errors"

var (
	// ErrAssetUploadFailed means no record was touched because the upload failed.
	ErrAssetUploadFailed = errors.New("media: asset upload failed")
	// ErrAssetDeleteFailed is never returned; it tags log lines for swallowed
	// asset deletions that leave an orphan behind.
	ErrAssetDeleteFailed = errors.New("media: asset delete failed")
	// ErrRecordNotFound is returned when the target meme does not exist.
	ErrRecordNotFound = errors.New("media: record not found")
	// ErrRecordWriteFailed is returned when the record store rejects a write.
	ErrRecordWriteFailed = errors.New("media: record write failed")
	// ErrForbidden is returned when a non-admin principal reaches an admin operation.
	ErrForbidden = errors.New("media: admin role required")
)
