package uimage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_RejectsBadCalls(t *testing.T) {
	t.Parallel()

	_, err := Create("", 128)
	assert.Error(t, err)

	_, err = Create(filepath.Join(t.TempDir(), "img"), 4)
	assert.Error(t, err)
}

func TestCreate_WritesLengthPrelude(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "img")
	img, err := Create(path, 128)
	require.NoError(t, err)
	defer img.Close()

	assert.EqualValues(t, 128, img.Len())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 128, info.Size())
}

func TestOpen_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestOpen_TooSmall(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tiny")
	require.NoError(t, os.WriteFile(path, []byte("1234"), 0644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestSync_PersistsWrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "img")
	img, err := Create(path, 128)
	require.NoError(t, err)

	copy(img.Bytes()[9:], []byte("hello world"))
	ok, err := img.Sync()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, img.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(raw[9:20]))
}

func TestOpenThenCreate_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "img")
	created, err := Create(path, 256)
	require.NoError(t, err)
	require.NoError(t, created.Close())

	opened, err := Open(path)
	require.NoError(t, err)
	defer opened.Close()
	assert.EqualValues(t, 256, opened.Len())
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	var img *Image
	assert.NoError(t, img.Close())

	path := filepath.Join(t.TempDir(), "img")
	created, err := Create(path, 64)
	require.NoError(t, err)
	require.NoError(t, created.Close())
	require.NoError(t, created.Close())
}
