// Package config holds the settings of an export run. Settings come from built-in defaults, optionally
// overridden by a YAML file and then by command line flags.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/askiada/go-fsexport/internal/command"
	"github.com/askiada/go-fsexport/internal/layout"
)

var (
	ErrInvalidWorkers = errors.New("workers must be greater than 0")
	ErrMissingProgram = errors.New("tool programs must be set")
	ErrMissingDir     = errors.New("layout directories must be set")
)

type Config struct {
	// Workers is the number of sessions exported concurrently.
	Workers int `yaml:"workers"`
	// DryRun logs the commands without running them.
	DryRun bool `yaml:"dry_run"`
	// Subjects restricts the run to these subjects. Every subject of the experiment is exported when empty.
	Subjects []string `yaml:"subjects"`
	// Graph is the path of a DOT file describing the run. No graph is written when empty.
	Graph string `yaml:"graph"`

	Layout LayoutConfig `yaml:"layout"`
	Tools  ToolsConfig  `yaml:"tools"`
	Ledger LedgerConfig `yaml:"ledger"`
	Log    LogConfig    `yaml:"log"`
}

type LayoutConfig struct {
	SubjectsDir   string `yaml:"subjects_dir"`
	AnatomicalDir string `yaml:"anatomical_dir"`
}

type ToolsConfig struct {
	Convert  string   `yaml:"convert"`
	Reorient string   `yaml:"reorient"`
	Env      []string `yaml:"env"`
}

type LedgerConfig struct {
	Enabled bool `yaml:"enabled"`
	// Path defaults to .fsexport.db in the experiment directory.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the settings matching the standard FreeSurfer layout and tools.
func Default() *Config {
	tools := command.DefaultTools()

	return &Config{
		Workers: 1,
		Layout: LayoutConfig{
			SubjectsDir:   layout.DefaultSubjectsDir,
			AnatomicalDir: layout.DefaultAnatomicalDir,
		},
		Tools: ToolsConfig{
			Convert:  tools.ConvertProgram,
			Reorient: tools.ReorientProgram,
		},
		Ledger: LedgerConfig{Enabled: true},
		Log:    LogConfig{Level: zerolog.LevelInfoValue},
	}
}

// Load returns the default settings overridden by the YAML file at path. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read config file %s", path)
	}

	err = cfg.decode(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse config file %s", path)
	}

	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	err := dec.Decode(c)
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

// Validate checks the settings once every source has been applied.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.Tools.Convert == "" || c.Tools.Reorient == "" {
		return ErrMissingProgram
	}
	if c.Layout.SubjectsDir == "" || c.Layout.AnatomicalDir == "" {
		return ErrMissingDir
	}
	_, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}

	return nil
}

// LogLevel returns the configured level, info when it cannot be parsed.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}

	return level
}

// LayoutFor returns the directory layout below root.
func (c *Config) LayoutFor(root string) layout.Layout {
	return layout.Layout{
		Root:          root,
		SubjectsDir:   c.Layout.SubjectsDir,
		AnatomicalDir: c.Layout.AnatomicalDir,
	}
}

func (c *Config) ToolSet() command.Tools {
	return command.Tools{
		ConvertProgram:  c.Tools.Convert,
		ReorientProgram: c.Tools.Reorient,
	}
}
