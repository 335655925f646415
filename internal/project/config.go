package project

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/semver"
)

// ConfigFileName is the name of the file that defines a project.
const ConfigFileName = "cc.toml"

type FlagConfig struct {
	Name     string   `toml:"name"`
	Default  string   `toml:"default,omitempty"`
	Help     string   `toml:"help,omitempty"`
	Choices  []string `toml:"choices,omitempty"`
	Required bool     `toml:"required,omitempty"`
}

type StageConfig struct {
	Artifact string `toml:"artifact"`
	Into     string `toml:"into"`
}

type TargetConfig struct {
	Name      string   `toml:"name"`
	Phony     bool     `toml:"phony,omitempty"`
	Deps      []string `toml:"deps,omitempty"`
	OrderOnly []string `toml:"order_only,omitempty"`
	Sources   []string `toml:"sources,omitempty"`

	// At most one of the following actions may be set.
	Command string       `toml:"command,omitempty"`
	Mkdir   bool         `toml:"mkdir,omitempty"`
	Stage   *StageConfig `toml:"stage,omitempty"`
	Clean   string       `toml:"clean,omitempty"`

	// Dir and Interactive only apply to commands.
	Dir         string `toml:"dir,omitempty"`
	Interactive bool   `toml:"interactive,omitempty"`
}

func (t *TargetConfig) actions() []string {
	var actions []string
	if t.Command != "" {
		actions = append(actions, "command")
	}
	if t.Mkdir {
		actions = append(actions, "mkdir")
	}
	if t.Stage != nil {
		actions = append(actions, "stage")
	}
	if t.Clean != "" {
		actions = append(actions, "clean")
	}
	return actions
}

type Config struct {
	Name    string `toml:"name,omitempty"`
	Version string `toml:"version,omitempty"`
	Default string `toml:"default,omitempty"`

	Flags   []FlagConfig   `toml:"flag,omitempty"`
	Targets []TargetConfig `toml:"target,omitempty"`

	// Help holds the help entries documented in the configuration's text.
	Help []HelpEntry `toml:"-"`
}

func LoadConfigFile(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadConfigBytes(contents)
}

func LoadConfigBytes(contents []byte) (*Config, error) {
	var c Config
	if err := toml.Unmarshal(contents, &c); err != nil {
		return nil, err
	}

	help, err := ListHelp(bytes.NewReader(contents))
	if err != nil {
		return nil, err
	}
	c.Help = help

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Version != "" && (!semver.IsValid(c.Version) || semver.Canonical(c.Version) != c.Version) {
		errs = append(errs, fmt.Errorf("invalid version %q", c.Version))
	}

	flags := map[string]bool{}
	for _, f := range c.Flags {
		switch {
		case f.Name == "":
			errs = append(errs, errors.New("flags must have a name"))
		case f.Name == "name" || f.Name == "version":
			errs = append(errs, fmt.Errorf("flag %q shadows the project's %v", f.Name, f.Name))
		case flags[f.Name]:
			errs = append(errs, fmt.Errorf("duplicate flag %q", f.Name))
		}
		flags[f.Name] = true

		if f.Default != "" && len(f.Choices) != 0 && !slices.Contains(f.Choices, f.Default) {
			errs = append(errs, fmt.Errorf("default value %q for flag %q is not one of its choices", f.Default, f.Name))
		}
	}

	for i, t := range c.Targets {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("target #%d has no name", i+1))
			continue
		}
		if actions := t.actions(); len(actions) > 1 {
			errs = append(errs, fmt.Errorf("target %q has multiple actions: %v", t.Name, strings.Join(actions, ", ")))
		}
		if t.Command == "" && (t.Dir != "" || t.Interactive) {
			errs = append(errs, fmt.Errorf("target %q sets dir or interactive without a command", t.Name))
		}
		if t.Stage != nil && (t.Stage.Artifact == "" || t.Stage.Into == "") {
			errs = append(errs, fmt.Errorf("target %q must set both stage.artifact and stage.into", t.Name))
		}
		if t.Mkdir && t.Phony {
			errs = append(errs, fmt.Errorf("target %q creates a directory and must not be phony", t.Name))
		}
	}

	return errors.Join(errs...)
}

func WriteConfigFile(path string, c *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	has := false
	print := func(format string, args ...any) {
		fmt.Fprintf(f, format, args...)
		has = true
	}
	printSection := func(format string, args ...any) {
		if has {
			fmt.Fprintln(f)
		}
		print(format, args...)
	}

	if len(c.Help) != 0 {
		width := 0
		for _, h := range c.Help {
			width = max(width, len(h.Name))
		}
		for _, h := range c.Help {
			print("%v %-*s : %v\n", HelpMarker, width, h.Name, h.Description)
		}
	}

	if c.Name != "" {
		printSection("name = %v\n", encodeValue(c.Name))
	}
	if c.Version != "" {
		print("version = %v\n", encodeValue(c.Version))
	}
	if c.Default != "" {
		print("default = %v\n", encodeValue(c.Default))
	}

	for _, flag := range c.Flags {
		printSection("[[flag]]\n")
		print("name = %v\n", encodeValue(flag.Name))
		if flag.Default != "" {
			print("default = %v\n", encodeValue(flag.Default))
		}
		if flag.Help != "" {
			print("help = %v\n", encodeValue(flag.Help))
		}
		if len(flag.Choices) != 0 {
			print("choices = %v\n", encodeValue(flag.Choices))
		}
		if flag.Required {
			print("required = true\n")
		}
	}

	for _, t := range c.Targets {
		printSection("[[target]]\n")
		print("name = %v\n", encodeValue(t.Name))
		if t.Phony {
			print("phony = true\n")
		}
		if len(t.Deps) != 0 {
			print("deps = %v\n", encodeValue(t.Deps))
		}
		if len(t.OrderOnly) != 0 {
			print("order_only = %v\n", encodeValue(t.OrderOnly))
		}
		if len(t.Sources) != 0 {
			print("sources = %v\n", encodeValue(t.Sources))
		}
		switch {
		case t.Command != "":
			print("command = %v\n", encodeValue(t.Command))
			if t.Dir != "" {
				print("dir = %v\n", encodeValue(t.Dir))
			}
			if t.Interactive {
				print("interactive = true\n")
			}
		case t.Mkdir:
			print("mkdir = true\n")
		case t.Stage != nil:
			print("stage = %v\n", encodeValue(t.Stage))
		case t.Clean != "":
			print("clean = %v\n", encodeValue(t.Clean))
		}
	}

	return nil
}

func encodeValue(v any) string {
	var b strings.Builder
	err := toml.NewEncoder(&b).SetTablesInline(true).Encode(map[string]any{"v": v})
	if err != nil {
		return "<invalid>"
	}
	return strings.TrimSpace(strings.TrimPrefix(b.String(), "v = "))
}
