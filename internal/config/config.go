// Package config loads and type-checks the pipeline/runtime config tree
// from YAML, with env-var overrides for deploys that can't ship a
// config file (spec.md §6, grounded on the teacher's own
// internal/config/loader.go, which decodes gopkg.in/yaml.v3 straight
// into a struct tree rather than going through a config-management
// library).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/langbot-app/LangBot/internal/llm"
	"github.com/langbot-app/LangBot/pkg/models"
)

// RootConfig is the top-level materialized config tree.
type RootConfig struct {
	Server   ServerConfig          `yaml:"server"`
	Database DatabaseConfig        `yaml:"database"`
	Plugins  PluginsConfig         `yaml:"plugins"`
	Bot      BotConfig             `yaml:"bot"`
	Models   []llm.ModelConfig     `yaml:"models"`
	Pipeline models.PipelineConfig `yaml:"pipeline"`
}

// BotConfig is bot.* — identity the gateway's own adapters present as.
type BotConfig struct {
	// AccountID is the id group-respond @-mention matching checks
	// inbound At components against (spec.md §4.7 GroupRespondRuleCheck,
	// "@<bot>").
	AccountID string `yaml:"account-id"`
}

// ServerConfig is server.* — gateway HTTP/WS bind address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig is database.* — the relational/vector store DSN.
type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max-open-conns"`
	VectorDBBackend string `yaml:"vector-db-backend"` // "memory" | "pgvector"

	// RedisAddr backs the conversation store and the asynq ingest task
	// queue; empty keeps both in-process. Rate-limit and cancellation-set
	// state are always in-process.
	RedisAddr string `yaml:"redis-addr"`

	// BlobRoot is the local-filesystem root FSBlobs stores KB file
	// uploads under (spec.md §4.3 ingest pre-check/post-delete).
	BlobRoot string `yaml:"blob-root"`
}

// PluginsConfig is plugins.* — where the plugin RPC connector reaches
// the plugin runtime process.
type PluginsConfig struct {
	RPCAddress string `yaml:"rpc-address"`
}

// envPrefix is the "AREA" half of the AREA__KEY=value override scheme:
// every recognized override is prefixed LANGBOT_ so arbitrary unrelated
// env vars (PATH, HOME, ...) are never mistaken for config keys.
const envPrefix = "LANGBOT"

// Load reads path as YAML into a RootConfig, then applies any matching
// LANGBOT_AREA__KEY=value environment overrides (spec.md §6: "env
// overrides are scalar-only and type-coerced to the field's type").
func Load(path string) (*RootConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg RootConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", path, err)
	}

	if err := applyEnvOverrides(&cfg, os.Environ()); err != nil {
		return nil, fmt.Errorf("config: apply env overrides: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides scans environ for LANGBOT_<AREA>__<KEY>=<value>
// entries and writes each into the matching RootConfig field, coercing
// value to the field's static type. Unrecognized AREA__KEY pairs are
// ignored rather than treated as errors, since env is a shared
// namespace the process doesn't fully own.
func applyEnvOverrides(cfg *RootConfig, environ []string) error {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if !strings.HasPrefix(key, envPrefix+"_") {
			continue
		}
		rest := strings.TrimPrefix(key, envPrefix+"_")
		area, field, ok := strings.Cut(rest, "__")
		if !ok {
			continue
		}
		if err := setOverride(cfg, area, field, value); err != nil {
			return fmt.Errorf("override %s: %w", key, err)
		}
	}
	return nil
}

// setOverride writes value (scalar only: string, int, bool, float) into
// the named area/field. Unknown area/field pairs are silently skipped;
// a type-mismatched value is an error, since a deploy that got the
// value shape wrong should fail loudly at startup rather than silently
// keep the YAML default.
func setOverride(cfg *RootConfig, area, field, value string) error {
	switch strings.ToLower(area) {
	case "server":
		switch strings.ToLower(field) {
		case "host":
			cfg.Server.Host = value
		case "port":
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			cfg.Server.Port = n
		}
	case "database":
		switch strings.ToLower(field) {
		case "dsn":
			cfg.Database.DSN = value
		case "max-open-conns", "max_open_conns":
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			cfg.Database.MaxOpenConns = n
		case "vector-db-backend", "vector_db_backend":
			cfg.Database.VectorDBBackend = value
		case "redis-addr", "redis_addr":
			cfg.Database.RedisAddr = value
		case "blob-root", "blob_root":
			cfg.Database.BlobRoot = value
		}
	case "plugins":
		switch strings.ToLower(field) {
		case "rpc-address", "rpc_address":
			cfg.Plugins.RPCAddress = value
		}
	case "bot":
		switch strings.ToLower(field) {
		case "account-id", "account_id":
			cfg.Bot.AccountID = value
		}
	}
	return nil
}
