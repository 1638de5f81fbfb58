package telerelay

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// DefaultNumberPattern is used when a mapping enables number thresholds
// without listing patterns.
const DefaultNumberPattern = `spend\s+(\d+(?:\.\d+)?)`

// Config is the forwarder configuration file.
type Config struct {
	// APIID is the Telegram API ID from https://my.telegram.org
	APIID int `json:"api_id"`

	// APIHash is the Telegram API hash from https://my.telegram.org
	APIHash string `json:"api_hash"`

	// SessionDir is the directory holding <session>.session files.
	// Defaults to "sessions" if empty.
	SessionDir string `json:"session_dir"`

	// Sessions lists the session identifiers to run, one account each.
	Sessions []string `json:"sessions"`

	// Mappings lists the routes every account forwards.
	Mappings []Mapping `json:"mappings"`
}

// Mapping configures one source → destination route.
type Mapping struct {
	Source      ChatRef `json:"source"`
	Destination ChatRef `json:"destination"`

	// Enabled defaults to true.
	Enabled bool `json:"enabled"`

	KeywordFilteringEnabled bool     `json:"keyword_filtering_enabled"`
	KeywordsInclude         []string `json:"keywords_include"`
	KeywordsExclude         []string `json:"keywords_exclude"`

	NumberThresholdEnabled bool `json:"number_threshold_enabled"`

	// NumberThresholdMin defaults to 0.
	NumberThresholdMin float64 `json:"number_threshold_min"`

	// NumberThresholdMax defaults to +Inf. A JSON null also means unbounded.
	NumberThresholdMax float64 `json:"number_threshold_max"`

	// NumberRegexPatterns each carry one capturing group with a decimal number.
	// Defaults to DefaultNumberPattern.
	NumberRegexPatterns []string `json:"number_regex_patterns"`

	ModificationEnabled bool   `json:"modification_enabled"`
	PrefixEnabled       bool   `json:"prefix_enabled"`
	SuffixEnabled       bool   `json:"suffix_enabled"`
	Prefix              string `json:"prefix"`
	Suffix              string `json:"suffix"`
}

// DefaultMapping returns a Mapping with every default applied.
func DefaultMapping() Mapping {
	return Mapping{
		Enabled:             true,
		NumberThresholdMax:  math.Inf(1),
		NumberRegexPatterns: []string{DefaultNumberPattern},
	}
}

func (m *Mapping) UnmarshalJSON(data []byte) error {
	type plain Mapping
	v := plain(DefaultMapping())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Mapping(v)
	return nil
}

// Key identifies the route across reloads.
func (m Mapping) Key() RouteKey {
	return RouteKey{Source: m.Source.Key(), Destination: m.Destination.Key()}
}

// LoadConfig reads, decodes and validates the configuration file at path.
// Every failure is a *ConfigError.
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// ReadConfig reads and decodes the configuration file at path without
// validating it. Callers that only use part of the file validate that part
// themselves. Every failure is a *ConfigError.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	cfg, err := decodeConfig(data)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// ParseConfig decodes and validates a configuration document.
func ParseConfig(data []byte) (*Config, error) {
	cfg, err := decodeConfig(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.SessionDir == "" {
		c.SessionDir = "sessions"
	}
}

func (c *Config) validate() error {
	if c.APIID == 0 {
		return ErrMissingAPIID
	}
	if c.APIHash == "" {
		return ErrMissingAPIHash
	}

	var errs []error
	seen := make(map[string]bool, len(c.Sessions))
	for _, name := range c.Sessions {
		if err := validateSessionName(name); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("%w: %q listed twice", ErrInvalidSessionName, name))
		}
		seen[name] = true
	}

	for i, m := range c.Mappings {
		if err := m.validate(); err != nil {
			errs = append(errs, fmt.Errorf("mappings[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

func (m Mapping) validate() error {
	if m.Source.IsZero() || m.Destination.IsZero() {
		return ErrMissingChatID
	}

	var errs []error
	if _, err := NormalizeChatID(m.Destination); err != nil {
		errs = append(errs, fmt.Errorf("destination: %w", err))
	}
	if _, err := m.Source.Int64(); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}
	if m.NumberThresholdMin > m.NumberThresholdMax {
		errs = append(errs, ErrInvalidThreshold)
	}
	return errors.Join(errs...)
}

// SessionPath returns the session file for the named session.
func (c *Config) SessionPath(name string) string {
	return SessionPath(c.SessionDir, name)
}

func validateSessionName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidSessionName, name)
	}
	return nil
}
