package asset

import (
	"context"
	"errors"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// RetryingStore retries deletes with backoff. Uploads pass straight through.
// The media coordinator never wraps its store with this; only batch tools do.
type RetryingStore struct {
	delegate     Store
	buildBackoff func() backoff.BackOff
}

// NewRetryingStore wraps delegate. A nil factory uses a short exponential policy.
func NewRetryingStore(delegate Store, factory func() backoff.BackOff) *RetryingStore {
	if factory == nil {
		factory = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return b
		}
	}
	return &RetryingStore{delegate: delegate, buildBackoff: factory}
}

func (s *RetryingStore) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	return s.delegate.Upload(ctx, req)
}

func (s *RetryingStore) Delete(ctx context.Context, providerID string) error {
	op := func() error {
		err := s.delegate.Delete(ctx, providerID)
		if errors.Is(err, ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(s.buildBackoff(), ctx))
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

var _ Store = (*RetryingStore)(nil)
