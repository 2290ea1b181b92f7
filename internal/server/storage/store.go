// Package storage defines the blob store the delivery core reads sources
// from and writes watermarked copies to, with S3 and in-memory backends.
package storage

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks BlobStore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/common"
)

// BlobStore is a path-addressed object store.
//
// Implementations return common.ErrNotFound from Read for missing objects
// and wrap transient failures in common.ErrStorageUnavailable.
type BlobStore interface {
	Exists(ctx context.Context, path string) (bool, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte, contentType string, metadata map[string]string) error
	MintReadHandle(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// TimedStore bounds every call of the wrapped store by a fixed timeout.
// A call that runs out of time fails with both common.ErrStorageUnavailable
// and common.ErrTimeout.
type TimedStore struct {
	next    BlobStore
	timeout time.Duration
}

// WithTimeout wraps s. A non-positive timeout returns s unchanged.
func WithTimeout(s BlobStore, timeout time.Duration) BlobStore {
	if timeout <= 0 {
		return s
	}
	return &TimedStore{next: s, timeout: timeout}
}

func (t *TimedStore) Exists(ctx context.Context, path string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	ok, err := t.next.Exists(ctx, path)
	return ok, classify(ctx, err)
}

func (t *TimedStore) Read(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	b, err := t.next.Read(ctx, path)
	return b, classify(ctx, err)
}

func (t *TimedStore) Write(ctx context.Context, path string, data []byte, contentType string, metadata map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return classify(ctx, t.next.Write(ctx, path, data, contentType, metadata))
}

func (t *TimedStore) MintReadHandle(ctx context.Context, path string, ttl time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	h, err := t.next.MintReadHandle(ctx, path, ttl)
	return h, classify(ctx, err)
}

func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, common.ErrTimeout)
	}
	return err
}
