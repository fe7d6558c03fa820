package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyEmbedTimeout      = "embedding.timeout"
	keySearchLimit       = "search.limit"
	keySearchThreshold   = "search.threshold"
	keySearchVectorIndex = "search.use_vector_index"
	keyDashboardWindow   = "dashboard.recent_window"
	keyDashboardDays     = "dashboard.days"
	keyPipelineProcs     = "pipeline.processors"
	keyPipelineChunkSize = "pipeline.chunk_size"
	keyPipelineOverlap   = "pipeline.overlap"
	keyPipelineWorkers   = "pipeline.workers"
	keyPipelineRate      = "pipeline.requests_per_second"
	keyStorageBackend    = "storage.backend"
	keyStorageDataDir    = "storage.data_dir"
	keyStoragePostgres   = "storage.postgres_dsn"
	keyServerPort        = "server.port"
)

// settingKind is how a key's string value is converted on Set.
type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
	kindList
)

var settingKinds = map[string]settingKind{
	keyEmbedProvider:     kindString,
	keyEmbedModel:        kindString,
	keyEmbedBaseURL:      kindString,
	keyEmbedAPIKey:       kindString,
	keyEmbedTimeout:      kindDuration,
	keySearchLimit:       kindInt,
	keySearchThreshold:   kindFloat,
	keySearchVectorIndex: kindBool,
	keyDashboardWindow:   kindDuration,
	keyDashboardDays:     kindInt,
	keyPipelineProcs:     kindList,
	keyPipelineChunkSize: kindInt,
	keyPipelineOverlap:   kindInt,
	keyPipelineWorkers:   kindInt,
	keyPipelineRate:      kindFloat,
	keyStorageBackend:    kindString,
	keyStorageDataDir:    kindString,
	keyStoragePostgres:   kindString,
	keyServerPort:        kindInt,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(defaults.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.getString(keyEmbedBaseURL, defaults.Embedding.BaseURL),
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
			Timeout:  s.getDuration(keyEmbedTimeout, defaults.Embedding.Timeout),
		},
		Search: domain.SearchSettings{
			Limit:          s.getInt(keySearchLimit, defaults.Search.Limit),
			Threshold:      s.getFloat(keySearchThreshold, defaults.Search.Threshold),
			UseVectorIndex: s.getBool(keySearchVectorIndex, defaults.Search.UseVectorIndex),
		},
		Dashboard: domain.DashboardSettings{
			RecentWindow: s.getDuration(keyDashboardWindow, defaults.Dashboard.RecentWindow),
			Days:         s.getInt(keyDashboardDays, defaults.Dashboard.Days),
		},
		Pipeline: domain.PipelineSettings{
			Processors:        s.getStringSlice(keyPipelineProcs, defaults.Pipeline.Processors),
			ChunkSize:         s.getInt(keyPipelineChunkSize, defaults.Pipeline.ChunkSize),
			ChunkOverlap:      s.getInt(keyPipelineOverlap, defaults.Pipeline.ChunkOverlap),
			Workers:           s.getInt(keyPipelineWorkers, defaults.Pipeline.Workers),
			RequestsPerSecond: s.getFloat(keyPipelineRate, defaults.Pipeline.RequestsPerSecond),
		},
		Storage: domain.StorageSettings{
			Backend:     s.getBackend(defaults.Storage.Backend),
			DataDir:     s.getString(keyStorageDataDir, defaults.Storage.DataDir),
			PostgresDSN: s.configStore.GetString(keyStoragePostgres),
		},
		Server: domain.ServerSettings{
			Port: s.getInt(keyServerPort, defaults.Server.Port),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedTimeout, settings.Embedding.Timeout.String()},
		{keySearchLimit, settings.Search.Limit},
		{keySearchThreshold, settings.Search.Threshold},
		{keySearchVectorIndex, settings.Search.UseVectorIndex},
		{keyDashboardWindow, settings.Dashboard.RecentWindow.String()},
		{keyDashboardDays, settings.Dashboard.Days},
		{keyPipelineProcs, settings.Pipeline.Processors},
		{keyPipelineChunkSize, settings.Pipeline.ChunkSize},
		{keyPipelineOverlap, settings.Pipeline.ChunkOverlap},
		{keyPipelineWorkers, settings.Pipeline.Workers},
		{keyPipelineRate, settings.Pipeline.RequestsPerSecond},
		{keyStorageBackend, settings.Storage.Backend.String()},
		{keyStorageDataDir, settings.Storage.DataDir},
		{keyServerPort, settings.Server.Port},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when present so an env override is never persisted as empty.
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyEmbedAPIKey, err)
		}
	}
	if settings.Storage.PostgresDSN != "" {
		if err := s.configStore.Set(keyStoragePostgres, settings.Storage.PostgresDSN); err != nil {
			return fmt.Errorf("save %s: %w", keyStoragePostgres, err)
		}
	}

	return nil
}

// Set updates a single setting by key, converting the string value.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return &domain.ValidationError{Field: key, Reason: "is not a known setting"}
	}

	var converted any
	var err error
	switch kind {
	case kindInt:
		converted, err = strconv.Atoi(value)
	case kindFloat:
		converted, err = strconv.ParseFloat(value, 64)
	case kindBool:
		converted, err = strconv.ParseBool(value)
	case kindDuration:
		var d time.Duration
		d, err = time.ParseDuration(value)
		converted = d.String()
	case kindList:
		parts := strings.Split(value, ",")
		list := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		converted = list
	default:
		converted = value
	}
	if err != nil {
		return &domain.ValidationError{Field: key, Reason: fmt.Sprintf("invalid value %q", value)}
	}

	switch key {
	case keyEmbedProvider:
		if !domain.AIProvider(value).IsValid() {
			return &domain.ValidationError{Field: key, Reason: fmt.Sprintf("unknown provider %q", value)}
		}
	case keyStorageBackend:
		if !domain.StorageBackend(value).IsValid() {
			return &domain.ValidationError{Field: key, Reason: fmt.Sprintf("unknown backend %q", value)}
		}
	case keySearchThreshold:
		if f := converted.(float64); f < 0 || f > 1 {
			return &domain.ValidationError{Field: key, Reason: "must be within [0, 1]"}
		}
	}

	return s.configStore.Set(key, converted)
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	switch provider {
	case domain.AIProviderOllama:
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	case domain.AIProviderOpenAI:
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks the current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("embedding provider %q is not configured", settings.Embedding.Provider)
	}
	if settings.Search.Threshold < 0 || settings.Search.Threshold > 1 {
		return fmt.Errorf("search threshold %v outside [0, 1]", settings.Search.Threshold)
	}
	if settings.Pipeline.ChunkOverlap >= settings.Pipeline.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d",
			settings.Pipeline.ChunkOverlap, settings.Pipeline.ChunkSize)
	}
	if settings.Storage.Backend == domain.StoragePostgres && settings.Storage.PostgresDSN == "" {
		return fmt.Errorf("postgres backend requires %s", keyStoragePostgres)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Keys returns every recognised setting key, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetSchedulerConfig returns the scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	defaults := domain.DefaultSchedulerConfig()

	// Master switch
	if _, exists := s.configStore.Get("scheduler.enabled"); exists {
		defaults.Enabled = s.configStore.GetBool("scheduler.enabled")
	}
	defaults.TickInterval = s.getDuration("scheduler.tick", defaults.TickInterval)

	// Map from task ID to config key (underscore version for TOML)
	taskKeys := map[string]string{
		domain.TaskIDProcessQueue:  "process_queue",
		domain.TaskIDUsageSnapshot: "usage_snapshot",
	}

	for taskID, configKey := range taskKeys {
		prefix := "scheduler." + configKey + "."
		taskCfg := defaults.TaskConfigs[taskID]

		if _, exists := s.configStore.Get(prefix + "enabled"); exists {
			taskCfg.Enabled = s.configStore.GetBool(prefix + "enabled")
		}
		taskCfg.Interval = s.getDuration(prefix+"interval", taskCfg.Interval)

		defaults.TaskConfigs[taskID] = taskCfg
	}

	return defaults
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, exists := s.configStore.Get(key)
	if !exists {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getStringSlice(key string, defaultVal []string) []string {
	if val := s.configStore.GetStringSlice(key); len(val) > 0 {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getProvider(defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(keyEmbedProvider))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.StorageBackend) domain.StorageBackend {
	backend := domain.StorageBackend(s.configStore.GetString(keyStorageBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
