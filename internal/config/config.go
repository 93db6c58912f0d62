// Package config resolves the root directory layout and operator settings.
//
// Everything lives under one root (default ~/.stagehand, overridable with
// STAGEHAND_ROOT or the --root flag). An optional config.yaml at the root
// overrides individual paths and the notification command; absent settings
// keep their root-relative defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvRoot overrides the default root directory.
const EnvRoot = "STAGEHAND_ROOT"

// configFile is the optional settings file at the root.
const configFile = "config.yaml"

// Duration decodes Go duration strings ("30s", "2m") from yaml.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Notify configures the external notification command. Command args accept
// {{destination}}, {{approval_id}} and {{message}} placeholders.
type Notify struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Timeout Duration `yaml:"timeout"`
}

// Config is the resolved settings set.
type Config struct {
	Root           string   `yaml:"-"`
	DBPath         string   `yaml:"dbPath"`
	DefinitionsDir string   `yaml:"definitionsDir"`
	OutboxDir      string   `yaml:"outboxDir"`
	BrandsDir      string   `yaml:"brandsDir"`
	PatternLibrary string   `yaml:"patternLibrary"`
	ExecTimeout    Duration `yaml:"execTimeout"`
	Notify         Notify   `yaml:"notify"`
}

// Default returns the root-relative defaults.
func Default(root string) Config {
	return Config{
		Root:           root,
		DBPath:         filepath.Join(root, "state.db"),
		DefinitionsDir: filepath.Join(root, "definitions"),
		OutboxDir:      filepath.Join(root, "outbox"),
		BrandsDir:      filepath.Join(root, "brands"),
		PatternLibrary: filepath.Join(root, "brands", "_shared", "pattern-library.jsonl"),
	}
}

// ResolveRoot picks the root directory: the explicit flag wins, then the
// environment, then ~/.stagehand.
func ResolveRoot(flagRoot string) (string, error) {
	if flagRoot != "" {
		return flagRoot, nil
	}
	if env := os.Getenv(EnvRoot); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".stagehand"), nil
}

// Load resolves the root and merges config.yaml over the defaults. A
// missing config file is fine; a malformed one is an error.
func Load(flagRoot string) (Config, error) {
	root, err := ResolveRoot(flagRoot)
	if err != nil {
		return Config{}, err
	}

	cfg := Default(root)
	body, err := os.ReadFile(filepath.Join(root, configFile))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Root = root
	return cfg, nil
}

// EnsureDirs creates the directories the engine writes into.
func (c Config) EnsureDirs() error {
	dirs := []string{
		c.Root,
		c.DefinitionsDir,
		c.OutboxDir,
		c.BrandsDir,
		filepath.Dir(c.PatternLibrary),
		filepath.Dir(c.DBPath),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}
