package cc

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/thismarvin/cc/internal/project"
)

// A Flag holds information about a project configuration flag.
type Flag struct {
	// Name holds the flag's name.
	Name string `json:"name"`
	// Default holds the flag's default value.
	Default string `json:"default,omitempty"`
	// Choices holds the flag's valid values.
	Choices []string `json:"choices,omitempty"`
	// Required is true if the flag is required.
	Required bool `json:"required,omitempty"`
	// Help holds the flag's help message.
	Help string `json:"help,omitempty"`
	// Value holds the flag's value.
	Value string `json:"value"`
}

func (f *Flag) String() string { return "--" + f.Name }

// flagValue implements pflag.Value for project flags.
type flagValue struct {
	v   string
	set bool
}

func (a *flagValue) String() string {
	return a.v
}

func (a *flagValue) Set(s string) error {
	a.v, a.set = s, true
	return nil
}

func (a *flagValue) Type() string {
	return "string"
}

// parseFlags parses the values of the configured flags from args.
func parseFlags(configs []project.FlagConfig, args []string) ([]*Flag, error) {
	set := pflag.NewFlagSet("flags", pflag.ContinueOnError)
	set.SetOutput(io.Discard)

	values := make([]*flagValue, len(configs))
	for i, c := range configs {
		values[i] = &flagValue{v: c.Default}
		set.Var(values[i], c.Name, c.Help)
	}

	if err := set.Parse(args); err != nil {
		return nil, err
	}
	if rest := set.Args(); len(rest) != 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", strings.Join(rest, " "))
	}

	flags := make([]*Flag, len(configs))
	for i, c := range configs {
		v := values[i]
		if c.Required && !v.set {
			return nil, fmt.Errorf("missing required flag --%s", c.Name)
		}
		if len(c.Choices) != 0 && (v.set || v.v != "") && !slices.Contains(c.Choices, v.v) {
			return nil, fmt.Errorf("invalid value %q for flag --%v: must be one of %v", v.v, c.Name, strings.Join(c.Choices, ", "))
		}

		flags[i] = &Flag{
			Name:     c.Name,
			Default:  c.Default,
			Choices:  slices.Clone(c.Choices),
			Required: c.Required,
			Help:     c.Help,
			Value:    v.v,
		}
	}
	return flags, nil
}
