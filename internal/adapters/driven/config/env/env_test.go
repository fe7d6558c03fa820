package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/adapters/driven/storage/memory"
)

func TestVarName(t *testing.T) {
	assert.Equal(t, "KBASE_EMBEDDING_MODEL", VarName("embedding.model"))
	assert.Equal(t, "KBASE_SCHEDULER_PROCESS_QUEUE_INTERVAL", VarName("scheduler.process_queue.interval"))
}

func TestConfigStore_EnvWins(t *testing.T) {
	base := memory.NewConfigStore()
	require.NoError(t, base.Set("embedding.model", "nomic-embed-text"))
	require.NoError(t, base.Set("search.limit", 10))
	store := NewConfigStore(base)

	t.Setenv("KBASE_EMBEDDING_MODEL", "all-minilm")
	t.Setenv("KBASE_SEARCH_LIMIT", "25")
	t.Setenv("KBASE_SEARCH_USE_VECTOR_INDEX", "true")
	t.Setenv("KBASE_PIPELINE_PROCESSORS", "chunker, whitespace,")

	assert.Equal(t, "all-minilm", store.GetString("embedding.model"))
	assert.Equal(t, 25, store.GetInt("search.limit"))
	assert.True(t, store.GetBool("search.use_vector_index"))
	assert.Equal(t, []string{"chunker", "whitespace"}, store.GetStringSlice("pipeline.processors"))

	val, ok := store.Get("search.limit")
	require.True(t, ok)
	assert.Equal(t, "25", val)
}

func TestConfigStore_FallsBackToBase(t *testing.T) {
	base := memory.NewConfigStore()
	require.NoError(t, base.Set("search.limit", 10))
	store := NewConfigStore(base)

	assert.Equal(t, 10, store.GetInt("search.limit"))
	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_Aliases(t *testing.T) {
	store := NewConfigStore(memory.NewConfigStore())

	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("DATABASE_URL", "postgres://localhost/kbase")

	assert.Equal(t, 9000, store.GetInt("server.port"))
	assert.Equal(t, "sk-env", store.GetString("embedding.api_key"))
	assert.Equal(t, "postgres://localhost/kbase", store.GetString("storage.postgres_dsn"))

	t.Setenv("KBASE_SERVER_PORT", "9100")
	assert.Equal(t, 9100, store.GetInt("server.port"))
	name, ok := store.Overridden("server.port")
	assert.True(t, ok)
	assert.Equal(t, "KBASE_SERVER_PORT", name)
}

func TestConfigStore_BadValuesReadAsZero(t *testing.T) {
	store := NewConfigStore(memory.NewConfigStore())
	t.Setenv("KBASE_SEARCH_LIMIT", "lots")
	t.Setenv("KBASE_SEARCH_USE_VECTOR_INDEX", "maybe")

	assert.Zero(t, store.GetInt("search.limit"))
	assert.False(t, store.GetBool("search.use_vector_index"))
}

func TestConfigStore_SetWritesBase(t *testing.T) {
	base := memory.NewConfigStore()
	store := NewConfigStore(base)

	require.NoError(t, store.Set("embedding.provider", "openai"))
	assert.Equal(t, "openai", base.GetString("embedding.provider"))
	assert.Equal(t, base.Path(), store.Path())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("KBASE_TEST_DOTENV=from-file\nKBASE_TEST_PRESET=from-file\n"), 0o600))

	t.Setenv("KBASE_TEST_PRESET", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("KBASE_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("KBASE_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("KBASE_TEST_PRESET"))
}
