package domain

import (
	"strconv"
	"strings"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available embedding providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// StorageBackend selects the persistence adapter.
type StorageBackend string

// Available storage backends.
const (
	// StorageSQLite is an embedded database file under the data directory.
	StorageSQLite StorageBackend = "sqlite"

	// StoragePostgres is a PostgreSQL database with the pgvector extension.
	StoragePostgres StorageBackend = "postgres"

	// StorageMemory keeps everything in process memory.
	StorageMemory StorageBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageSQLite, StoragePostgres, StorageMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b StorageBackend) String() string {
	return string(b)
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Timeout bounds a single provider call.
	Timeout time.Duration
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// SearchSettings holds search defaults.
type SearchSettings struct {
	// Limit is the default result cap.
	Limit int

	// Threshold is the default minimum similarity.
	Threshold float64

	// UseVectorIndex routes queries through the approximate index when true.
	UseVectorIndex bool
}

// DashboardSettings holds dashboard windows.
type DashboardSettings struct {
	// RecentWindow is the trailing window counted as recent uploads.
	RecentWindow time.Duration

	// Days is the length of the daily usage series.
	Days int
}

// PipelineSettings holds ingestion pipeline configuration.
type PipelineSettings struct {
	// Processors is the ordered list of post-processor names.
	Processors []string

	// ChunkSize is the target chunk length in characters.
	ChunkSize int

	// ChunkOverlap is the overlap between adjacent chunks.
	ChunkOverlap int

	// Workers is the number of items processed in parallel.
	Workers int

	// RequestsPerSecond limits embedding calls. Zero disables limiting.
	RequestsPerSecond float64
}

// StorageSettings selects and locates the persistence backend.
type StorageSettings struct {
	// Backend is the storage adapter.
	Backend StorageBackend

	// DataDir holds the sqlite database and uploaded files.
	DataDir string

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string
}

// ServerSettings holds HTTP server configuration.
type ServerSettings struct {
	// Port is the listen port.
	Port int
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	Search    SearchSettings
	Dashboard DashboardSettings
	Pipeline  PipelineSettings
	Storage   StorageSettings
	Server    ServerSettings
}

// SettingEntry is one setting rendered for display.
type SettingEntry struct {
	Key   string
	Value string
}

// Entries lists the settings under their config keys in display order.
// Secrets are masked.
func (s *AppSettings) Entries() []SettingEntry {
	return []SettingEntry{
		{"embedding.provider", string(s.Embedding.Provider)},
		{"embedding.model", s.Embedding.Model},
		{"embedding.base_url", s.Embedding.BaseURL},
		{"embedding.api_key", MaskSecret(s.Embedding.APIKey)},
		{"embedding.timeout", s.Embedding.Timeout.String()},
		{"search.limit", strconv.Itoa(s.Search.Limit)},
		{"search.threshold", strconv.FormatFloat(s.Search.Threshold, 'g', -1, 64)},
		{"search.use_vector_index", strconv.FormatBool(s.Search.UseVectorIndex)},
		{"dashboard.recent_window", s.Dashboard.RecentWindow.String()},
		{"dashboard.days", strconv.Itoa(s.Dashboard.Days)},
		{"pipeline.processors", strings.Join(s.Pipeline.Processors, ",")},
		{"pipeline.chunk_size", strconv.Itoa(s.Pipeline.ChunkSize)},
		{"pipeline.overlap", strconv.Itoa(s.Pipeline.ChunkOverlap)},
		{"pipeline.workers", strconv.Itoa(s.Pipeline.Workers)},
		{"pipeline.requests_per_second", strconv.FormatFloat(s.Pipeline.RequestsPerSecond, 'g', -1, 64)},
		{"storage.backend", string(s.Storage.Backend)},
		{"storage.data_dir", s.Storage.DataDir},
		{"storage.postgres_dsn", MaskSecret(s.Storage.PostgresDSN)},
		{"server.port", strconv.Itoa(s.Server.Port)},
	}
}

// MaskSecret hides all but the last four characters of a secret.
func MaskSecret(v string) string {
	switch {
	case v == "":
		return ""
	case len(v) <= 4:
		return "****"
	default:
		return "****" + v[len(v)-4:]
	}
}

// DefaultAppSettings returns settings with sensible defaults.
// The embedding provider defaults to a local Ollama instance.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    DefaultEmbeddingModels()[AIProviderOllama],
			BaseURL:  "http://localhost:11434",
			Timeout:  30 * time.Second,
		},
		Search: SearchSettings{
			Limit:     DefaultSearchLimit,
			Threshold: DefaultSimilarityThreshold,
		},
		Dashboard: DashboardSettings{
			RecentWindow: 24 * time.Hour,
			Days:         7,
		},
		Pipeline: PipelineSettings{
			Processors:        []string{"chunker", "whitespace"},
			ChunkSize:         1000,
			ChunkOverlap:      200,
			Workers:           4,
			RequestsPerSecond: 10,
		},
		Storage: StorageSettings{
			Backend: StorageSQLite,
		},
		Server: ServerSettings{
			Port: 2022,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
