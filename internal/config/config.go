// Package config loads scribevault's runtime configuration from flags,
// environment variables, and an optional config file, via viper — the
// same layering the teacher server uses for its FDO server commands.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// MasterKeySize is the required decoded length of SERVER_MASTER_KEY.
const MasterKeySize = 32

// HTTPConfig configures the server's listening address.
type HTTPConfig struct {
	IP   string `mapstructure:"ip"`
	Port string `mapstructure:"port"`
}

// ListenAddress returns the concatenated IP:Port address for listening.
func (h HTTPConfig) ListenAddress() string {
	ip := h.IP
	if ip == "" {
		ip = "0.0.0.0"
	}
	port := h.Port
	if port == "" {
		port = "3002"
	}
	return ip + ":" + port
}

// DatabaseConfig selects and configures the metadata store backend.
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // "sqlite" or "postgres"
	DSN  string `mapstructure:"dsn"`
}

func (dc *DatabaseConfig) validate() error {
	if dc.DSN == "" {
		return errors.New("database configuration error: dsn is required")
	}
	dc.Type = strings.ToLower(dc.Type)
	if dc.Type == "" {
		dc.Type = "sqlite"
	}
	if dc.Type != "sqlite" && dc.Type != "postgres" {
		return fmt.Errorf("unsupported database type: %s (must be 'sqlite' or 'postgres')", dc.Type)
	}
	return nil
}

// VaultConfig configures the on-disk encrypted blob storage.
type VaultConfig struct {
	Dir string `mapstructure:"dir"`
}

// BotProviderConfig configures the outbound bot-provider HTTP client.
type BotProviderConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	PollPerSec int    `mapstructure:"poll_per_sec"`
}

// ProcessorSpec is a single named processor backend ("mock",
// "local-whisper", "local-llm", ...) with raw, backend-specific params.
// Mirrors the teacher's ServiceInfoOperation: the RawParams map is decoded
// into a typed struct only once the backend name is known.
type ProcessorSpec struct {
	Backend   string                 `mapstructure:"backend"`
	RawParams map[string]interface{} `mapstructure:"params"`
}

// LocalBinaryParams configures a subprocess-backed processor.
type LocalBinaryParams struct {
	Path string   `mapstructure:"path"`
	Args []string `mapstructure:"args"`
}

// Decode decodes RawParams into dst using mapstructure, the same helper
// the teacher uses for FSIM parameter blocks.
func (s ProcessorSpec) Decode(dst interface{}) error {
	if s.RawParams == nil {
		return nil
	}
	return mapstructure.Decode(s.RawParams, dst)
}

// ProcessorsConfig configures the transcription and summarization adapters.
type ProcessorsConfig struct {
	Transcriber ProcessorSpec `mapstructure:"transcriber"`
	Summarizer  ProcessorSpec `mapstructure:"summarizer"`
	AllowMock   bool          `mapstructure:"allow_mock"`
}

// Config is the fully assembled server configuration.
type Config struct {
	Debug       bool              `mapstructure:"debug"`
	MasterKey   string            `mapstructure:"master_key"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	DB          DatabaseConfig    `mapstructure:"db"`
	Vault       VaultConfig       `mapstructure:"vault"`
	BotProvider BotProviderConfig `mapstructure:"bot_provider"`
	Processors  ProcessorsConfig  `mapstructure:"processors"`

	// AuthTokens maps a bearer token to the user id it authenticates as.
	// Stands in for a production IDP integration; see api.IdentityVerifier.
	AuthTokens map[string]string `mapstructure:"auth_tokens"`

	masterKeyBytes []byte
}

// MasterKeyBytes returns the decoded 32-byte master key.
func (c *Config) MasterKeyBytes() []byte {
	return c.masterKeyBytes
}

// Load reads configuration from viper (which must already have flags bound
// and, optionally, a config file read into it) and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
	}); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if cfg.MasterKey == "" {
		return nil, errors.New("missing required master key (SERVER_MASTER_KEY / --master-key)")
	}
	keyBytes, err := hex.DecodeString(cfg.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("master key must be hex-encoded: %w", err)
	}
	if len(keyBytes) != MasterKeySize {
		return nil, fmt.Errorf("master key must decode to %d bytes, got %d", MasterKeySize, len(keyBytes))
	}
	cfg.masterKeyBytes = keyBytes

	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	if cfg.Vault.Dir == "" {
		cfg.Vault.Dir = "storage_vault"
	}
	if cfg.BotProvider.PollPerSec <= 0 {
		cfg.BotProvider.PollPerSec = 2
	}

	return &cfg, nil
}

// BindFlags wires the standard set of scribevault flags into v, mirroring
// the teacher's rootCmd.PersistentFlags() + viper.BindPFlags() idiom.
func BindFlags(v *viper.Viper, bind func(key, flag string) error) error {
	binds := map[string]string{
		"debug":                 "debug",
		"master_key":            "master-key",
		"http.ip":               "ip",
		"http.port":             "port",
		"db.type":               "db-type",
		"db.dsn":                "db-dsn",
		"vault.dir":             "vault-dir",
		"bot_provider.base_url": "bot-base-url",
		"bot_provider.api_key":  "bot-api-key",
	}
	for key, flag := range binds {
		if err := bind(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", flag, err)
		}
	}
	return nil
}
