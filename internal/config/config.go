// Package config loads the quality-gate configuration from an optional YAML
// file and provides the built-in tool set used when no file is present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory when no --config flag
// is given.
const DefaultFileName = "qgate.yaml"

// Tool describes one external analysis tool invocation.
type Tool struct {
	// Name identifies the tool in reports, summaries, and run history.
	Name string `yaml:"name"`
	// Command is the binary looked up in PATH.
	Command string `yaml:"command"`
	// Args are the text-mode arguments. The placeholder {target} is replaced
	// with the analysis target directory.
	Args []string `yaml:"args"`
	// JSONArgs, when set, triggers a second invocation whose output is written
	// verbatim to a .json report file.
	JSONArgs []string `yaml:"json_args,omitempty"`
	// Required tools must be installed; the run aborts before writing anything
	// if any of them is missing. Optional tools are skipped when absent and
	// their failures never abort the run.
	Required bool `yaml:"required"`
	// IssuePattern is a regular expression; output lines matching it are
	// counted as issues.
	IssuePattern string `yaml:"issue_pattern"`
	// SummaryLabel is the label used for this tool's line in the summary file.
	SummaryLabel string `yaml:"summary_label"`

	issueRe *regexp.Regexp
}

// Config is the full quality-gate configuration.
type Config struct {
	OutputDir string   `yaml:"output_dir"`
	Target    string   `yaml:"target"`
	HistoryDB string   `yaml:"history_db"`
	WatchDirs []string `yaml:"watch_dirs"`
	Tools     []Tool   `yaml:"tools"`
}

// Default returns the built-in configuration matching the conventional python
// quality gate: four hard-prerequisite linters plus best-effort tests and
// type checking.
func Default() *Config {
	return &Config{
		OutputDir: "reports",
		Target:    ".",
		Tools: []Tool{
			{
				Name:         "ruff",
				Command:      "ruff",
				Args:         []string{"check", "{target}"},
				Required:     true,
				IssuePattern: `^.+:\d+:\d+: \w+`,
				SummaryLabel: "Ruff Issues",
			},
			{
				Name:         "flake8",
				Command:      "flake8",
				Args:         []string{"--select=E9,F63,F7,F82", "{target}"},
				Required:     true,
				IssuePattern: `^.+:\d+:\d+: [EF]\d+`,
				SummaryLabel: "Flake8 Critical",
			},
			{
				Name:         "bandit",
				Command:      "bandit",
				Args:         []string{"-r", "{target}"},
				JSONArgs:     []string{"-r", "{target}", "-f", "json"},
				Required:     true,
				IssuePattern: `^>> Issue:`,
				SummaryLabel: "Bandit Findings",
			},
			{
				Name:         "black",
				Command:      "black",
				Args:         []string{"--check", "{target}"},
				Required:     true,
				IssuePattern: `^would reformat `,
				SummaryLabel: "Black Formatting",
			},
			{
				Name:         "pytest",
				Command:      "pytest",
				Args:         []string{"{target}", "-q", "--tb=short"},
				Required:     false,
				IssuePattern: `^FAILED `,
				SummaryLabel: "Pytest Failures",
			},
			{
				Name:         "mypy",
				Command:      "mypy",
				Args:         []string{"{target}", "--ignore-missing-imports"},
				Required:     false,
				IssuePattern: `: error:`,
				SummaryLabel: "Mypy Errors",
			},
		},
	}
}

// Load reads the configuration from path. An empty path means "look for
// qgate.yaml in the working directory"; a missing file is not an error and
// yields the defaults. An explicitly named file must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	// Fill anything the file left unset from the defaults.
	def := Default()
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}
	if cfg.Target == "" {
		cfg.Target = def.Target
	}
	if len(cfg.Tools) == 0 {
		cfg.Tools = def.Tools
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks tool definitions and compiles their issue patterns.
func (c *Config) Validate() error {
	c.OutputDir = expandPath(c.OutputDir)
	c.HistoryDB = expandPath(c.HistoryDB)

	seen := make(map[string]bool)
	for i := range c.Tools {
		t := &c.Tools[i]
		if t.Name == "" {
			return fmt.Errorf("tool %d: name must not be empty", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("tool %q: duplicate name", t.Name)
		}
		seen[t.Name] = true
		if t.Command == "" {
			t.Command = t.Name
		}
		if t.SummaryLabel == "" {
			t.SummaryLabel = t.Name
		}
		if t.IssuePattern != "" {
			re, err := regexp.Compile(t.IssuePattern)
			if err != nil {
				return fmt.Errorf("tool %q: invalid issue_pattern: %w", t.Name, err)
			}
			t.issueRe = re
		}
	}
	return nil
}

// HistoryPath returns the run-history database path, defaulting to a file
// inside the output directory.
func (c *Config) HistoryPath() string {
	if c.HistoryDB != "" {
		return c.HistoryDB
	}
	return filepath.Join(c.OutputDir, "qgate.db")
}

// IssueRegexp returns the compiled issue pattern, or nil when the tool has
// none. Validate (or Default followed by Validate) must have run first.
func (t *Tool) IssueRegexp() *regexp.Regexp {
	if t.issueRe == nil && t.IssuePattern != "" {
		t.issueRe = regexp.MustCompile(t.IssuePattern)
	}
	return t.issueRe
}

// ExpandArgs substitutes the {target} placeholder in the given argument list.
func ExpandArgs(args []string, target string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, "{target}", target)
	}
	return out
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if len(path) == 1 {
			return homeDir
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
