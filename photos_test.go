package main

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var photoKeyPattern = regexp.MustCompile(`^meals/42/[0-9a-f-]{36}\.(jpg|png|webp|bin)$`)

func TestPhotoKey(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":               ".jpg",
		"image/png":                ".png",
		"image/webp":               ".webp",
		"image/x-icon":             ".bin",
		"application/octet-stream": ".bin",
	}
	for contentType, ext := range cases {
		key := photoKey(42, contentType)
		assert.Regexp(t, photoKeyPattern, key, contentType)
		assert.Contains(t, key, ext, contentType)
	}
}

func TestPhotoKey_Unique(t *testing.T) {
	assert.NotEqual(t, photoKey(1, "image/png"), photoKey(1, "image/png"))
}

func TestFakePhotoStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := &fakePhotoStore{}
	var photos photoStore = store

	require.NoError(t, photos.Put(ctx, "meals/1/a.png", "image/png", pngBytes))
	url, err := photos.PresignedURL(ctx, "meals/1/a.png")
	require.NoError(t, err)
	assert.Contains(t, url, "meals/1/a.png")

	require.NoError(t, photos.Delete(ctx, "meals/1/a.png"))
	assert.Empty(t, store.objects)
}

func TestNewS3PhotoStore_PresignsWithEnvCredentials(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDTEST")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_SESSION_TOKEN", "")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))

	store, err := newS3PhotoStore(context.Background(), "meal-photos", "eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "meal-photos", store.bucket)
	require.NotNil(t, store.client)
	require.NotNil(t, store.presign)

	// presigning is local, no request leaves the process
	url, err := store.PresignedURL(context.Background(), "meals/1/a.png")
	require.NoError(t, err)
	assert.Contains(t, url, "meal-photos")
	assert.Contains(t, url, "meals/1/a.png")
	assert.Contains(t, url, "X-Amz-Expires=3600")
}
