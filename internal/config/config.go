// Package config handles loading, saving, and resolving the BranchKeeper
// configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.yaml.in/yaml/v3"
)

const (
	// LocalConfigFilename is the per-directory BranchKeeper config file.
	LocalConfigFilename = ".branchkeeper.yaml"
	// ConfigAPIVersion is the current config schema apiVersion.
	ConfigAPIVersion = "skaphos.io/branchkeeper/v1beta1"
	// ConfigKind is the current config schema kind.
	ConfigKind = "BranchKeeperConfig"
	// EnvConfig overrides the config location.
	EnvConfig = "BRANCHKEEPER_CONFIG"
)

// Strategy is how a branch absorbs upstream commits.
type Strategy string

const (
	StrategyRebase Strategy = "rebase"
	StrategyMerge  Strategy = "merge"
)

// CheckoutOptions tunes branch resolution for checkout.
type CheckoutOptions struct {
	MaxCandidates int `yaml:"max_candidates"`
	PageSize      int `yaml:"page_size"`
}

// StashOptions tunes save-point creation.
type StashOptions struct {
	IncludeUntracked bool   `yaml:"include_untracked"`
	MessagePrefix    string `yaml:"message_prefix"`
}

// Config represents the BranchKeeper configuration.
type Config struct {
	APIVersion        string          `yaml:"apiVersion"`
	Kind              string          `yaml:"kind"`
	Remote            string          `yaml:"remote"`
	ProtectedBranches []string        `yaml:"protected_branches"`
	Strategy          Strategy        `yaml:"strategy"`
	Checkout          CheckoutOptions `yaml:"checkout"`
	Stash             StashOptions    `yaml:"stash"`
	ConflictMarkers   []string        `yaml:"conflict_markers"`
}

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() Config {
	return Config{
		APIVersion:        ConfigAPIVersion,
		Kind:              ConfigKind,
		Remote:            "origin",
		ProtectedBranches: []string{"main", "master", "develop", "trunk", "release/**"},
		Strategy:          StrategyRebase,
		Checkout: CheckoutOptions{
			MaxCandidates: 10,
			PageSize:      8,
		},
		Stash: StashOptions{
			IncludeUntracked: true,
			MessagePrefix:    "branchkeeper-autostash",
		},
		ConflictMarkers: []string{"CONFLICT", "conflict", "Merge conflict", "could not apply"},
	}
}

// ConfigDir returns the platform-appropriate config directory path.
// It checks, in order: the override parameter, BRANCHKEEPER_CONFIG env var,
// and finally os.UserConfigDir()/branchkeeper.
func ConfigDir(override string) (string, error) {
	if override != "" {
		return dirOf(override), nil
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return dirOf(env), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "branchkeeper"), nil
}

// ConfigPath resolves the config file path from override/env/defaults.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return fileOf(override), nil
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return fileOf(env), nil
	}
	dir, err := ConfigDir("")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// InitConfigPath resolves where "branchkeeper init" should write config.
// Order: explicit override, BRANCHKEEPER_CONFIG, then local dotfile in cwd.
func InitConfigPath(override, cwd string) (string, error) {
	if override != "" || os.Getenv(EnvConfig) != "" {
		return ConfigPath(override)
	}
	cwd, err := workingDir(cwd)
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, LocalConfigFilename), nil
}

// ResolveConfigPath resolves config for runtime commands.
// Order: explicit override, BRANCHKEEPER_CONFIG, nearest local dotfile in
// cwd/parents, then global platform config path.
func ResolveConfigPath(override, cwd string) (string, error) {
	if override != "" || os.Getenv(EnvConfig) != "" {
		return ConfigPath(override)
	}
	cwd, err := workingDir(cwd)
	if err != nil {
		return "", err
	}
	localPath, err := FindNearestConfigPath(cwd)
	if err != nil {
		return "", err
	}
	if localPath != "" {
		return localPath, nil
	}
	return ConfigPath("")
}

// FindNearestConfigPath searches cwd and each parent directory for
// .branchkeeper.yaml. It returns an empty string when none is found.
func FindNearestConfigPath(cwd string) (string, error) {
	dir := cwd
	for {
		candidate := filepath.Join(dir, LocalConfigFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Load reads the config file from the given path. Keys absent from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyConfigGVK(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		def := DefaultConfig()
		return &def, nil
	}
	return cfg, err
}

// Save writes the config to the given path.
func Save(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	applyConfigGVK(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks schema identity and value ranges.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.APIVersion != ConfigAPIVersion {
		return fmt.Errorf("unsupported config apiVersion %q (expected %q)", c.APIVersion, ConfigAPIVersion)
	}
	if c.Kind != ConfigKind {
		return fmt.Errorf("unsupported config kind %q (expected %q)", c.Kind, ConfigKind)
	}
	switch c.Strategy {
	case StrategyRebase, StrategyMerge:
	default:
		return fmt.Errorf("unsupported strategy %q (expected %q or %q)", c.Strategy, StrategyRebase, StrategyMerge)
	}
	if c.Checkout.MaxCandidates < 1 {
		return fmt.Errorf("checkout.max_candidates must be positive, got %d", c.Checkout.MaxCandidates)
	}
	if c.Checkout.PageSize < 1 {
		return fmt.Errorf("checkout.page_size must be positive, got %d", c.Checkout.PageSize)
	}
	for _, pattern := range c.ProtectedBranches {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid protected_branches pattern %q", pattern)
		}
	}
	return nil
}

// StrategyFor returns merge when noRebase is set and the configured
// strategy otherwise.
func (c *Config) StrategyFor(noRebase bool) Strategy {
	if noRebase {
		return StrategyMerge
	}
	if c == nil || c.Strategy == "" {
		return StrategyRebase
	}
	return c.Strategy
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.Remote) == "" {
		cfg.Remote = def.Remote
	}
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.Checkout.MaxCandidates == 0 {
		cfg.Checkout.MaxCandidates = def.Checkout.MaxCandidates
	}
	if cfg.Checkout.PageSize == 0 {
		cfg.Checkout.PageSize = def.Checkout.PageSize
	}
	if strings.TrimSpace(cfg.Stash.MessagePrefix) == "" {
		cfg.Stash.MessagePrefix = def.Stash.MessagePrefix
	}
	if len(cfg.ConflictMarkers) == 0 {
		cfg.ConflictMarkers = def.ConflictMarkers
	}
}

func applyConfigGVK(cfg *Config) {
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = ConfigAPIVersion
	}
	if strings.TrimSpace(cfg.Kind) == "" {
		cfg.Kind = ConfigKind
	}
}

func workingDir(cwd string) (string, error) {
	if strings.TrimSpace(cwd) != "" {
		return cwd, nil
	}
	return os.Getwd()
}

func dirOf(path string) string {
	if isConfigFilePath(path) {
		return filepath.Dir(path)
	}
	return path
}

func fileOf(path string) string {
	if isConfigFilePath(path) {
		return path
	}
	return filepath.Join(path, "config.yaml")
}

func isConfigFilePath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
