package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".webtrail"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML configuration file schema. All fields are optional;
// pointer fields distinguish "absent" from an explicit zero value.
type File struct {
	// BlocklistURL overrides the remote blocklist location.
	BlocklistURL string `yaml:"blocklist_url"`

	// ClassifierURL is the base URL of the classification service.
	ClassifierURL string `yaml:"classifier_url"`

	// Denylist contains extra domains to block in addition to the
	// remote list.
	Denylist []string `yaml:"denylist"`

	// Threshold overrides the classification confidence threshold.
	Threshold *float64 `yaml:"threshold"`

	// SessionGapMinutes overrides the session gap, in minutes.
	SessionGapMinutes *int `yaml:"session_gap_minutes"`

	// LookbackDays overrides the ingestion/analytics window.
	LookbackDays *int `yaml:"lookback_days"`

	// DBDir overrides the database directory.
	DBDir string `yaml:"db_dir"`

	// ServeAddr overrides the query API listen address.
	ServeAddr string `yaml:"serve_addr"`
}

// LoadConfigFile loads configuration overrides from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound; callers
// decide whether that is fatal based on whether the path was explicit.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
//  1. If configPath is specified, use it directly
//  2. Look for .webtrail in the current directory
//  3. Look for .webtrail in the user's home directory
//
// Returns the path if found, or an empty string otherwise.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// Apply merges file overrides into the configuration. Only fields present
// in the file change; everything else keeps its current value.
func (c *Config) Apply(f *File) {
	if f == nil {
		return
	}
	if f.BlocklistURL != "" {
		c.BlocklistURL = f.BlocklistURL
	}
	if f.ClassifierURL != "" {
		c.ClassifierURL = f.ClassifierURL
	}
	if len(f.Denylist) > 0 {
		c.ExtraDenylist = append(c.ExtraDenylist, f.Denylist...)
	}
	if f.Threshold != nil {
		c.ClassifyThreshold = *f.Threshold
	}
	if f.SessionGapMinutes != nil {
		c.SessionGap = time.Duration(*f.SessionGapMinutes) * time.Minute
	}
	if f.LookbackDays != nil {
		c.LookbackDays = *f.LookbackDays
	}
	if f.DBDir != "" {
		c.DBDir = f.DBDir
	}
	if f.ServeAddr != "" {
		c.ServeAddr = f.ServeAddr
	}
}
