package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/server/storage/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestWithTimeout_NonPositiveReturnsSame(t *testing.T) {
	m := NewMemoryStore()
	assert.Same(t, m, WithTimeout(m, 0))
}

func TestTimedStore_TimeoutIsRetryable(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockBlobStore(ctrl)

	inner.EXPECT().Read(gomock.Any(), "src/a.pdf").DoAndReturn(func(ctx context.Context, _ string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	s := WithTimeout(inner, 20*time.Millisecond)
	_, err := s.Read(context.Background(), "src/a.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
	assert.ErrorIs(t, err, common.ErrTimeout)
	assert.True(t, common.IsRetryable(err))
}

func TestTimedStore_PassesThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockBlobStore(ctrl)
	md := map[string]string{"k": "v"}

	inner.EXPECT().Exists(gomock.Any(), "p").Return(true, nil)
	inner.EXPECT().Write(gomock.Any(), "p", []byte("x"), "application/pdf", md).Return(nil)
	inner.EXPECT().MintReadHandle(gomock.Any(), "p", 5*time.Minute).Return("https://h", nil)
	inner.EXPECT().Read(gomock.Any(), "missing").Return(nil, common.ErrNotFound)

	s := WithTimeout(inner, time.Second)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "p")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Write(ctx, "p", []byte("x"), "application/pdf", md))

	h, err := s.MintReadHandle(ctx, "p", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://h", h)

	_, err = s.Read(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.False(t, errors.Is(err, common.ErrTimeout))
}
