package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Analyzer  AnalyzerConfig  `json:"analyzer"`
	Traversal TraversalConfig `json:"traversal"`
	Filters   FilterConfig    `json:"filters"`
}

// AnalyzerConfig describes the external analysis command.
type AnalyzerConfig struct {
	Command        string   `json:"command"`        // Analyzer executable
	Args           []string `json:"args"`           // Base arguments before files
	TimeoutSeconds int      `json:"timeoutSeconds"` // Per-invocation bound, 0 = unbounded
}

// Timeout returns the per-invocation analyzer bound.
func (a AnalyzerConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// TraversalConfig holds history traversal options.
type TraversalConfig struct {
	// KeepEmpty stores revisions whose analysis found nothing instead of
	// discarding them.
	KeepEmpty bool `json:"keepEmpty"`
	// RevisionTimeoutSeconds bounds one revision's pipeline pass. 0 disables.
	RevisionTimeoutSeconds int `json:"revisionTimeoutSeconds"`
	// ProgressBuffer sizes the progress event channel.
	ProgressBuffer int `json:"progressBuffer"`
}

// RevisionTimeout returns the per-revision bound.
func (t TraversalConfig) RevisionTimeout() time.Duration {
	return time.Duration(t.RevisionTimeoutSeconds) * time.Second
}

// FilterConfig holds file path filtering options.
type FilterConfig struct {
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Analyzer: AnalyzerConfig{
			TimeoutSeconds: 60,
		},
		Traversal: TraversalConfig{
			KeepEmpty:              false,
			RevisionTimeoutSeconds: 120,
			ProgressBuffer:         256,
		},
		Filters: FilterConfig{
			Include: []string{},
			Exclude: []string{},
		},
	}
}

// LoadConfig loads configuration from a file, merging with defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		// Try default locations
		candidates := []string{".histflow.json"}
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			candidates = append(candidates, filepath.Join(home, ".histflow.json"))
		} else if envHome := os.Getenv("HOME"); envHome != "" {
			candidates = append(candidates, filepath.Join(envHome, ".histflow.json"))
		}
		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig saves configuration to a file.
func SaveConfig(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
