/*
Package config manages the TOML config for pantry.

A config file is created with defaults on first run. Files ending in .yaml or
.yml are read and written as YAML instead; the keys are the same.

	[index]
	corpus = "data/recipes_search.csv"
	path = ""
	id_column = "id"
	text_column = "ingredients_serialized"
	separator = ";"
	policy = "mtime"

	[suggest]
	default_limit = 5
	max_limit = 64
	min_prefix = 2
	max_prefix = 60
	enable_filter = true
*/
package config

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bastiangx/pantry/internal/utils"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Config holds the entire config structure
type Config struct {
	Index   IndexConfig   `toml:"index" yaml:"index"`
	Suggest SuggestConfig `toml:"suggest" yaml:"suggest"`
	Server  ServerConfig  `toml:"server" yaml:"server"`
	Log     LogConfig     `toml:"log" yaml:"log"`
}

// IndexConfig describes the corpus and where its index is persisted.
type IndexConfig struct {
	Corpus     string `toml:"corpus" yaml:"corpus"`
	Path       string `toml:"path" yaml:"path"`
	IDColumn   string `toml:"id_column" yaml:"id_column"`
	TextColumn string `toml:"text_column" yaml:"text_column"`
	Separator  string `toml:"separator" yaml:"separator"`
	Comma      string `toml:"comma" yaml:"comma"`
	Policy     string `toml:"policy" yaml:"policy"`
}

// SuggestConfig bounds live queries.
type SuggestConfig struct {
	DefaultLimit int  `toml:"default_limit" yaml:"default_limit"`
	MaxLimit     int  `toml:"max_limit" yaml:"max_limit"`
	MinPrefix    int  `toml:"min_prefix" yaml:"min_prefix"`
	MaxPrefix    int  `toml:"max_prefix" yaml:"max_prefix"`
	EnableFilter bool `toml:"enable_filter" yaml:"enable_filter"`
}

// ServerConfig has server related options.
type ServerConfig struct {
	HTTPAddr       string `toml:"http_addr" yaml:"http_addr"`
	MaxRequestSize int    `toml:"max_request_size" yaml:"max_request_size"`
}

// LogConfig holds the log level name.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// DefaultIndexName is the persisted index file name used when no path is set.
const DefaultIndexName = "ingredients_trie.bin"

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Corpus:     "data/recipes_search.csv",
			Path:       "",
			IDColumn:   "id",
			TextColumn: "ingredients_serialized",
			Separator:  ";",
			Comma:      ",",
			Policy:     "mtime",
		},
		Suggest: SuggestConfig{
			DefaultLimit: 5,
			MaxLimit:     64,
			MinPrefix:    2,
			MaxPrefix:    60,
			EnableFilter: true,
		},
		Server: ServerConfig{
			HTTPAddr:       "",
			MaxRequestSize: 4096,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// SeparatorRune returns the configured cell separator, falling back to ';'
// when the value is not exactly one character.
func (c *Config) SeparatorRune() rune {
	if utf8.RuneCountInString(c.Index.Separator) != 1 {
		return ';'
	}
	r, _ := utf8.DecodeRuneInString(c.Index.Separator)
	return r
}

// CommaRune returns the configured CSV field delimiter, falling back to ','
// when the value is not exactly one usable character.
func (c *Config) CommaRune() rune {
	if !validComma(c.Index.Comma) {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(c.Index.Comma)
	return r
}

// validComma mirrors the delimiters encoding/csv accepts.
func validComma(s string) bool {
	if utf8.RuneCountInString(s) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError
}

// Sanitize clamps out of range values back to defaults.
func (c *Config) Sanitize() {
	def := DefaultConfig()
	s := &c.Suggest
	if s.DefaultLimit < 1 {
		log.Warnf("default_limit %d is invalid, using %d", s.DefaultLimit, def.Suggest.DefaultLimit)
		s.DefaultLimit = def.Suggest.DefaultLimit
	}
	if s.MaxLimit < s.DefaultLimit {
		s.MaxLimit = s.DefaultLimit
	}
	if s.MinPrefix < 1 {
		s.MinPrefix = 1
	}
	if s.MaxPrefix < s.MinPrefix {
		log.Warnf("max_prefix %d is below min_prefix, using %d", s.MaxPrefix, def.Suggest.MaxPrefix)
		s.MaxPrefix = def.Suggest.MaxPrefix
	}
	switch strings.ToLower(c.Index.Policy) {
	case "mtime", "digest":
		c.Index.Policy = strings.ToLower(c.Index.Policy)
	default:
		log.Warnf("Unknown index policy %q, using %q", c.Index.Policy, def.Index.Policy)
		c.Index.Policy = def.Index.Policy
	}
	if utf8.RuneCountInString(c.Index.Separator) != 1 {
		log.Warnf("separator %q must be one character, using %q", c.Index.Separator, def.Index.Separator)
		c.Index.Separator = def.Index.Separator
	}
	if !validComma(c.Index.Comma) {
		log.Warnf("comma %q is not a usable CSV delimiter, using %q", c.Index.Comma, def.Index.Comma)
		c.Index.Comma = def.Index.Comma
	}
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path (created with defaults when missing)
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath, defaultPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	if defaultPath == "" {
		log.Warn("No default config path. Using built-in defaults...")
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadConfig loads from a TOML or YAML file. Missing keys keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if isYAML(configPath) {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			log.Warnf("YAML parsing error in config file %s: %v. Using all defaults.", configPath, err)
			return DefaultConfig(), nil
		}
		config.Sanitize()
		return config, nil
	}

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	config.Sanitize()
	return config, nil
}

// tryPartialParse salvages whichever sections of a broken TOML file still parse
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "index"); ok {
		extractIndexConfig(section, &config.Index)
	}
	if section, ok := utils.ExtractSection(tempConfig, "suggest"); ok {
		extractSuggestConfig(section, &config.Suggest)
	}
	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "log"); ok {
		if val, ok := utils.ExtractString(section, "level"); ok {
			config.Log.Level = val
		}
	}
	config.Sanitize()
	return config, nil
}

func extractIndexConfig(data map[string]any, index *IndexConfig) {
	if val, ok := utils.ExtractString(data, "corpus"); ok {
		index.Corpus = val
	}
	if val, ok := utils.ExtractString(data, "path"); ok {
		index.Path = val
	}
	if val, ok := utils.ExtractString(data, "id_column"); ok {
		index.IDColumn = val
	}
	if val, ok := utils.ExtractString(data, "text_column"); ok {
		index.TextColumn = val
	}
	if val, ok := utils.ExtractRune(data, "separator"); ok {
		index.Separator = string(val)
	}
	if val, ok := utils.ExtractRune(data, "comma"); ok {
		index.Comma = string(val)
	}
	if val, ok := utils.ExtractString(data, "policy"); ok {
		index.Policy = val
	}
}

func extractSuggestConfig(data map[string]any, suggest *SuggestConfig) {
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		suggest.DefaultLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "max_limit"); ok {
		suggest.MaxLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "min_prefix"); ok {
		suggest.MinPrefix = val
	}
	if val, ok := utils.ExtractInt64(data, "max_prefix"); ok {
		suggest.MaxPrefix = val
	}
	if val, ok := utils.ExtractBool(data, "enable_filter"); ok {
		suggest.EnableFilter = val
	}
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractString(data, "http_addr"); ok {
		server.HTTPAddr = val
	}
	if val, ok := utils.ExtractInt64(data, "max_request_size"); ok {
		server.MaxRequestSize = val
	}
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML or YAML file depending on the extension
func SaveConfig(config *Config, configPath string) error {
	if isYAML(configPath) {
		return utils.SaveYAMLFile(config, configPath)
	}
	return utils.SaveTOMLFile(config, configPath)
}
