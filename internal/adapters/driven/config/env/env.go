// Package env overlays environment variables on another config store.
//
// Every key can be overridden by KBASE_ followed by the key in upper case
// with dots replaced by underscores (embedding.model becomes
// KBASE_EMBEDDING_MODEL). A few conventional names are honoured as well:
// SERVER_PORT, OPENAI_API_KEY and DATABASE_URL.
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// Prefix is prepended to derived variable names.
const Prefix = "KBASE_"

// aliases maps conventional variable names to config keys.
// The KBASE_ form wins when both are set.
var aliases = map[string]string{
	"server.port":          "SERVER_PORT",
	"embedding.api_key":    "OPENAI_API_KEY",
	"storage.postgres_dsn": "DATABASE_URL",
}

// LoadDotEnv reads variables from the given files (default ".env") into the
// process environment. Variables that are already set are left alone and a
// missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
		logger.Debug("loaded environment from %s", f)
	}
	return nil
}

// VarName returns the KBASE_ variable that overrides key.
func VarName(key string) string {
	return Prefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// ConfigStore answers reads from the environment first, then from base.
// Writes go to base; a set variable keeps shadowing the written value.
type ConfigStore struct {
	base   driven.ConfigStore
	lookup func(string) (string, bool)
}

// NewConfigStore wraps base with environment overrides.
func NewConfigStore(base driven.ConfigStore) *ConfigStore {
	return &ConfigStore{base: base, lookup: os.LookupEnv}
}

// Overridden reports the variable currently overriding key, if any.
func (s *ConfigStore) Overridden(key string) (string, bool) {
	name := VarName(key)
	if _, ok := s.lookup(name); ok {
		return name, true
	}
	if alias, ok := aliases[key]; ok {
		if _, ok := s.lookup(alias); ok {
			return alias, true
		}
	}
	return "", false
}

func (s *ConfigStore) env(key string) (string, bool) {
	name, ok := s.Overridden(key)
	if !ok {
		return "", false
	}
	v, _ := s.lookup(name)
	return v, true
}

// Get returns the raw string from the environment or the base value.
func (s *ConfigStore) Get(key string) (any, bool) {
	if v, ok := s.env(key); ok {
		return v, true
	}
	return s.base.Get(key)
}

// GetString retrieves a string value.
func (s *ConfigStore) GetString(key string) string {
	if v, ok := s.env(key); ok {
		return v
	}
	return s.base.GetString(key)
}

// GetInt parses an overriding variable; unparsable values read as 0.
func (s *ConfigStore) GetInt(key string) int {
	if v, ok := s.env(key); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			logger.Warn("%s=%q is not an integer, ignoring", key, v)
			return 0
		}
		return n
	}
	return s.base.GetInt(key)
}

// GetBool parses an overriding variable with strconv.ParseBool.
func (s *ConfigStore) GetBool(key string) bool {
	if v, ok := s.env(key); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			logger.Warn("%s=%q is not a boolean, ignoring", key, v)
			return false
		}
		return b
	}
	return s.base.GetBool(key)
}

// GetStringSlice splits an overriding variable on commas.
func (s *ConfigStore) GetStringSlice(key string) []string {
	v, ok := s.env(key)
	if !ok {
		return s.base.GetStringSlice(key)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Set writes to the base store.
func (s *ConfigStore) Set(key string, value any) error {
	if name, ok := s.Overridden(key); ok {
		logger.Warn("%s is set in the environment and will shadow the saved value", name)
	}
	return s.base.Set(key, value)
}

// Save persists the base store.
func (s *ConfigStore) Save() error { return s.base.Save() }

// Load reloads the base store.
func (s *ConfigStore) Load() error { return s.base.Load() }

// Path returns the base store's path.
func (s *ConfigStore) Path() string { return s.base.Path() }
