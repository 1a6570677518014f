package drafts

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/sharekit/internal/codec"
	"github.com/memohai/sharekit/internal/share"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "drafts.db"), codec.New(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	photo := share.NewPhotoFromImage(bytes.Repeat([]byte{3}, 4096), true)
	photo.SetCaption("from the beach")

	saved, err := s.Save(ctx, photo)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	got, err := s.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.True(t, photo.Equal(got.Photo))
	assert.WithinDuration(t, saved.CreatedAt, got.CreatedAt, time.Second)
}

func TestSaveKeepsMultiSourceState(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	photo := share.NewPhotoFromURL("https://example.com/a.jpg", false)
	photo.AssetID = "asset-2"
	saved, err := s.Save(ctx, photo)
	require.NoError(t, err)

	got, err := s.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, photo.Equal(got.Photo))
	assert.ErrorIs(t, got.Photo.Validate(share.ShareSheetContext()), share.ErrConflictingSources)
}

func TestGetNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := s.Save(ctx, share.NewPhotoFromAsset("a", true))
	require.NoError(t, err)
	second, err := s.Save(ctx, share.NewPhotoFromURL("https://example.com/b.jpg", true))
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Positive(t, list[0].SizeBytes)
	assert.True(t, base.Add(time.Minute).Equal(list[0].CreatedAt))

	require.NoError(t, s.Delete(ctx, first.ID))
	assert.ErrorIs(t, s.Delete(ctx, first.ID), ErrNotFound)

	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)
}

func TestSaveRejectsOversizeImage(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "drafts.db"), codec.New(codec.WithMaxImageBytes(8)), nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Save(context.Background(), share.NewPhotoFromImage(make([]byte, 9), true))
	assert.ErrorIs(t, err, codec.ErrTooLarge)
}
