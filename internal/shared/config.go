package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/cadence/internal/models"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Catalog  CatalogConfig  `toml:"catalog"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Engine   EngineConfig   `toml:"engine"`
	Sources  SourcesConfig  `toml:"sources"`
	Goals    []GoalConfig   `toml:"goals"`
}

// CatalogConfig contains connection settings for the remote track catalog.
type CatalogConfig struct {
	BaseURL           string  `toml:"base_url"`
	StreamBaseURL     string  `toml:"stream_base_url"`
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	TokenURL          string  `toml:"token_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	PageSize          int     `toml:"page_size"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// EngineConfig contains tunables for scoring, repetition control and playback.
type EngineConfig struct {
	ListenerID             string  `toml:"listener_id"`
	VADTolerance           float64 `toml:"vad_tolerance"`
	RepetitionThreshold    float64 `toml:"repetition_threshold"`
	HistoryLimit           int     `toml:"history_limit"`
	PlaylistLimit          int     `toml:"playlist_limit"`
	MaxConsecutiveFailures int     `toml:"max_consecutive_failures"`
	AutoAdvance            bool    `toml:"auto_advance"`
	DefaultTrackSeconds    int     `toml:"default_track_seconds"`
}

// SourcesConfig lists unreliable content sources and their substitutes.
type SourcesConfig struct {
	Skip      []string            `toml:"skip"`
	Fallbacks map[string][]string `toml:"fallbacks"`
}

// GoalConfig defines or overrides one therapeutic goal.
type GoalConfig struct {
	ID          string            `toml:"id"`
	Slug        string            `toml:"slug"`
	BackendKey  string            `toml:"backend_key"`
	Name        string            `toml:"name"`
	ShortName   string            `toml:"short_name"`
	Description string            `toml:"description"`
	BPMRange    models.BPMRange   `toml:"bpm_range"`
	VAD         models.VADProfile `toml:"vad_profile"`
	Sources     []string          `toml:"sources"`
	Synonyms    []string          `toml:"synonyms"`
}

// Descriptor converts the entry into a [models.GoalDescriptor], filling slug and backend key from the ID.
func (g GoalConfig) Descriptor() models.GoalDescriptor {
	d := models.GoalDescriptor{
		ID:          g.ID,
		Slug:        g.Slug,
		BackendKey:  g.BackendKey,
		Name:        g.Name,
		ShortName:   g.ShortName,
		Description: g.Description,
		BPMRange:    g.BPMRange,
		VAD:         g.VAD,
		Sources:     append([]string(nil), g.Sources...),
		Synonyms:    append([]string(nil), g.Synonyms...),
	}
	if d.Slug == "" {
		d.Slug = d.ID
	}
	if d.BackendKey == "" {
		d.BackendKey = d.ID
	}
	if d.Name == "" {
		d.Name = d.ID
	}
	return d
}

// Validate checks that configured values are usable by the engine.
func (c *Config) Validate() error {
	if c.Engine.VADTolerance < 0 {
		return fmt.Errorf("%w: engine.vad_tolerance must not be negative", ErrInvalidConfig)
	}
	if c.Engine.RepetitionThreshold < 0 || c.Engine.RepetitionThreshold > 1.3 {
		return fmt.Errorf("%w: engine.repetition_threshold out of range", ErrInvalidConfig)
	}
	if c.Catalog.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: catalog.requests_per_second must not be negative", ErrInvalidConfig)
	}
	for i, g := range c.Goals {
		if g.ID == "" {
			return fmt.Errorf("%w: goals[%d] is missing an id", ErrInvalidConfig, i)
		}
		if g.BPMRange.Min > g.BPMRange.Max {
			return fmt.Errorf("%w: goal %s has min bpm above max", ErrInvalidConfig, g.ID)
		}
		if g.BPMRange.Optimal < g.BPMRange.Min || g.BPMRange.Optimal > g.BPMRange.Max {
			return fmt.Errorf("%w: goal %s optimal bpm outside its range", ErrInvalidConfig, g.ID)
		}
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
