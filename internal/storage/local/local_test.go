package local

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petition-platform/petition-platform/internal/config"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := New(&config.LocalStorageConfig{BasePath: t.TempDir()}, "https://petitions.example.org/")
	require.NoError(t, err)
	return s
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	res, err := s.Upload(ctx, "petitions/pet-1/card.png", strings.NewReader("image-bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("image-bytes")), res.Size)

	r, err := s.Download(ctx, "petitions/pet-1/card.png")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
}

func TestExistsAndDelete(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	exists, err := s.Exists(ctx, "missing.png")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.Upload(ctx, "card.png", strings.NewReader("x"))
	require.NoError(t, err)

	exists, err = s.Exists(ctx, "card.png")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Delete(ctx, "card.png"))
	exists, err = s.Exists(ctx, "card.png")
	require.NoError(t, err)
	assert.False(t, exists)

	// deleting a missing file is not an error
	assert.NoError(t, s.Delete(ctx, "card.png"))
}

func TestGetURL(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	_, err := s.Upload(ctx, "petitions/pet-1/card.png", strings.NewReader("x"))
	require.NoError(t, err)

	url, err := s.GetURL(ctx, "petitions/pet-1/card.png", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://petitions.example.org/media/petitions/pet-1/card.png", url)

	_, err = s.GetURL(ctx, "missing.png", 0)
	assert.Error(t, err)
}
