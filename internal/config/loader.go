// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvPlaylistURL      = "XGC_PLAYLIST_URL"
	EnvGuideURLs        = "XGC_GUIDE_URLS"
	EnvOutputDir        = "XGC_OUTPUT_DIR"
	EnvPolicy           = "XGC_POLICY"
	EnvFetchTimeout     = "XGC_FETCH_TIMEOUT"
	EnvPlaylistTimeout  = "XGC_PLAYLIST_TIMEOUT"
	EnvFetchRetries     = "XGC_FETCH_RETRIES"
	EnvGuideParallelism = "XGC_GUIDE_PARALLELISM"
	EnvLogLevel         = "XGC_LOG_LEVEL"
	EnvLogFormat        = "XGC_LOG_FORMAT"
	EnvMetricsTextfile  = "XGC_METRICS_TEXTFILE"
	EnvTelemetryEnabled = "XGC_TELEMETRY_ENABLED"
	EnvTelemetryTarget  = "XGC_TELEMETRY_ENDPOINT"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Wrapper methods for mechanical connection tracking

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then
// validates the result. Validation failures wrap ErrInvalidConfig.
func (l *Loader) Load() (AppConfig, error) {
	// 1. Set defaults
	cfg := Defaults()

	// 2. Load from file (if provided)
	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	// 3. Override with environment variables (highest priority)
	l.mergeEnvConfig(&cfg)

	// 4. Derived values
	l.finalize(&cfg)
	cfg.Version = l.version

	// 5. Validate final configuration
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	return decodeStrict(data, cfg)
}

func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.Playlist.URL = l.envString(EnvPlaylistURL, cfg.Playlist.URL)

	if urls := l.envList(EnvGuideURLs, nil); len(urls) > 0 {
		cfg.Guides = cfg.Guides[:0]
		for _, u := range urls {
			cfg.Guides = append(cfg.Guides, GuideSource{URL: u})
		}
	}

	cfg.Output.Dir = l.envString(EnvOutputDir, cfg.Output.Dir)
	cfg.Filter.Policy = l.envString(EnvPolicy, cfg.Filter.Policy)
	cfg.Fetch.Timeout = l.envDuration(EnvFetchTimeout, cfg.Fetch.Timeout)
	cfg.Fetch.PlaylistTimeout = l.envDuration(EnvPlaylistTimeout, cfg.Fetch.PlaylistTimeout)
	cfg.Fetch.Retries = l.envInt(EnvFetchRetries, cfg.Fetch.Retries)
	cfg.Guide.Parallelism = l.envInt(EnvGuideParallelism, cfg.Guide.Parallelism)
	cfg.Log.Level = l.envString(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Format = l.envString(EnvLogFormat, cfg.Log.Format)
	cfg.Metrics.Textfile = l.envString(EnvMetricsTextfile, cfg.Metrics.Textfile)
	cfg.Telemetry.Enabled = l.envBool(EnvTelemetryEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Endpoint = l.envString(EnvTelemetryTarget, cfg.Telemetry.Endpoint)
}

func (l *Loader) finalize(cfg *AppConfig) {
	cfg.Playlist.URL = strings.TrimSpace(expandEnv(cfg.Playlist.URL))
	for i := range cfg.Guides {
		g := &cfg.Guides[i]
		g.URL = strings.TrimSpace(expandEnv(g.URL))
		if strings.TrimSpace(g.Name) == "" {
			g.Name = fmt.Sprintf("guide-%d", i+1)
		}
	}
	cfg.Filter.Policy = strings.ToLower(strings.TrimSpace(cfg.Filter.Policy))
	cfg.Output.Compress = strings.ToLower(strings.TrimSpace(cfg.Output.Compress))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Telemetry.Exporter = strings.ToLower(strings.TrimSpace(cfg.Telemetry.Exporter))
}
