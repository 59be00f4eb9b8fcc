package config

import (
	"errors"
	"fmt"

	"github.com/brettbedarf/scopedfs/adapters"
	"github.com/brettbedarf/scopedfs/filter"
	"github.com/brettbedarf/scopedfs/internal/util"
)

// CLI verbosity levels accepted by the verbose setting
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	DefaultBackendType = adapters.OSBackendType

	DefaultFsName = "scopedfs"
	DefaultName   = "scopedfs"

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0
)

// Config contains runtime configuration values for a confined filesystem.
type Config struct {
	MountOptions

	Root    string        // Directory everything is confined to (required)
	Backend adapters.Spec // Storage the root lives on (Default os)
	Filter  filter.Rules  // Visibility rules (Default everything visible)

	AllowAbsoluteSymlinks bool // Store absolute symlink targets verbatim instead of confining them
	ConfineLinkTargets    bool // Reject relative readlink targets that climb out of the root

	LogLvl util.LogLevel // Minimum log level (Default info)

	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	Root                  *string        `yaml:"root,omitempty" json:"root,omitempty"`
	Backend               *adapters.Spec `yaml:"backend,omitempty" json:"backend,omitempty"`
	Filter                *filter.Rules  `yaml:"filter,omitempty" json:"filter,omitempty"`
	AllowAbsoluteSymlinks *bool          `yaml:"allow_absolute_symlinks,omitempty" json:"allow_absolute_symlinks,omitempty"`
	ConfineLinkTargets    *bool          `yaml:"confine_link_targets,omitempty" json:"confine_link_targets,omitempty"`
	// LogLvl is a CLI style verbosity between 1 (error) and 5 (trace)
	LogLvl       *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	AttrTimeout  *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
	FsName       *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name         *string  `yaml:"name,omitempty" json:"name,omitempty"`
	Debug        *bool    `yaml:"fuse_debug,omitempty" json:"fuse_debug,omitempty"`
	AllowOther   *bool    `yaml:"allow_other,omitempty" json:"allow_other,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		Backend:      adapters.Spec{Type: DefaultBackendType},
		LogLvl:       DefaultLogLvl,
		AttrTimeout:  DefaultAttrTimeout,
		EntryTimeout: DefaultEntryTimeout,
	}
}

// NewConfig returns the defaults with override applied; override may be nil
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.Root != nil {
		c.Root = *override.Root
	}
	if override.Backend != nil {
		c.Backend = *override.Backend
	}
	if override.Filter != nil {
		c.Filter = *override.Filter
	}
	if override.AllowAbsoluteSymlinks != nil {
		c.AllowAbsoluteSymlinks = *override.AllowAbsoluteSymlinks
	}
	if override.ConfineLinkTargets != nil {
		c.ConfineLinkTargets = *override.ConfineLinkTargets
	}
	if override.LogLvl != nil {
		c.LogLvl = util.LevelFromVerbosity(*override.LogLvl)
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.AllowOther != nil {
		c.AllowOther = *override.AllowOther
	}
}

// Validate reports settings that cannot produce a working filesystem
func (c *Config) Validate() error {
	var errs []error
	if c.Root == "" {
		errs = append(errs, errors.New("root is required"))
	}
	if c.Backend.Type == "" {
		errs = append(errs, errors.New("backend type is required"))
	}
	if err := c.Filter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("filter: %w", err))
	}
	if c.AttrTimeout < 0 || c.EntryTimeout < 0 {
		errs = append(errs, errors.New("cache timeouts must not be negative"))
	}
	return errors.Join(errs...)
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	var override ConfigOverride
	if err := util.DecodeFile(path, &override); err != nil {
		return nil, err
	}
	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
