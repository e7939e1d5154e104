package blobstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyShape(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	key := store.GenerateKey("audio", "wav")
	parts := strings.Split(key, "/")
	require.Len(t, parts, 5)
	assert.Equal(t, "audio", parts[0])
	assert.True(t, strings.HasSuffix(key, ".wav"))
}

func TestPutGetDelete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	key := store.GenerateKey("audio", "wav")
	n, err := store.Put(key, strings.NewReader("hello blob"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assert.True(t, store.Exists(key))

	r, err := store.Get(key)
	require.NoError(t, err)
	defer r.Close()

	size, err := store.Size(key)
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)

	require.NoError(t, store.Delete(key))
	assert.False(t, store.Exists(key))
}

func TestDeleteMissingIsNoop(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, store.Delete("audio/2026/01/01/missing.wav"))
}
