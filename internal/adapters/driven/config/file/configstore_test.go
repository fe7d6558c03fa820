package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewConfigStore_Path(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), store.Path())
}

func TestNewConfigStore_CreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	_, err := NewConfigStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("not [valid toml"), 0o600))

	_, err := NewConfigStore(dir)
	assert.Error(t, err)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("embedding.provider", "ollama"))
	require.NoError(t, store.Set("search.limit", 25))
	require.NoError(t, store.Set("search.use_vector_index", true))
	require.NoError(t, store.Set("pipeline.processors", []string{"chunker", "whitespace"}))

	assert.Equal(t, "ollama", store.GetString("embedding.provider"))
	assert.Equal(t, 25, store.GetInt("search.limit"))
	assert.True(t, store.GetBool("search.use_vector_index"))
	assert.Equal(t, []string{"chunker", "whitespace"}, store.GetStringSlice("pipeline.processors"))

	// Wrong types and missing keys return zero values.
	assert.Empty(t, store.GetString("search.limit"))
	assert.Zero(t, store.GetInt("embedding.provider"))
	assert.False(t, store.GetBool("missing"))
	assert.Nil(t, store.GetStringSlice("missing"))
	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_GetInt_WholeFloat(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("a", 3.0))
	require.NoError(t, store.Set("b", 3.5))
	assert.Equal(t, 3, store.GetInt("a"))
	assert.Zero(t, store.GetInt("b"))
}

func TestConfigStore_SetEmptyKey(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Set(" ", "x"))
}

func TestConfigStore_WritesTables(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("embedding.provider", "openai"))
	require.NoError(t, store.Set("server.port", 8080))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[embedding]")
	assert.Contains(t, string(data), "[server]")
	assert.NoFileExists(t, store.Path()+".tmp")
}

func TestConfigStore_ReloadPreservesValues(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("embedding.model", "all-minilm"))
	require.NoError(t, store.Set("search.threshold", 0.5))
	require.NoError(t, store.Set("pipeline.chunk_size", 512))
	require.NoError(t, store.Set("scheduler.process_queue.enabled", true))

	reopened, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "all-minilm", reopened.GetString("embedding.model"))
	assert.Equal(t, 512, reopened.GetInt("pipeline.chunk_size"))
	assert.True(t, reopened.GetBool("scheduler.process_queue.enabled"))
	val, ok := reopened.Get("search.threshold")
	require.True(t, ok)
	assert.InDelta(t, 0.5, val, 1e-9)
}

func TestConfigStore_ValueAndTablePrefixCoexist(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("a.b", 1))
	require.NoError(t, store.Set("a.b.c", 2))

	reopened, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.GetInt("a.b"))
	assert.Equal(t, 2, reopened.GetInt("a.b.c"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("k", "v"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConfigStore_FailedWriteRollsBack(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("k", "v"))

	// A channel cannot be encoded as TOML.
	assert.Error(t, store.Set("bad", make(chan int)))
	_, ok := store.Get("bad")
	assert.False(t, ok)
	assert.NoError(t, store.Save())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Set("k", i)
			_ = store.GetInt("k")
		}(i)
	}
	wg.Wait()

	require.NoError(t, store.Load())
	_, ok := store.Get("k")
	assert.True(t, ok)
}
