package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/thismarvin/cc"
	"github.com/thismarvin/cc/internal/project"
)

var helpCmd = &cobra.Command{
	Use:   "help [command | target | flag]",
	Short: "Help about commands, build targets, and project flags",
	Long: `Help about commands, build targets, and project flags.

With no arguments, lists the help entries declared by the project's cc.toml. Lines of the form

    ## name : description

anywhere in cc.toml declare an entry. Flags may be named with or without their leading dashes
(use "cc help -- --name" for the dashed form).`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 1 {
			return rootCmd.Help()
		}

		var command *cobra.Command
		if len(args) == 1 {
			for _, c := range rootCmd.Commands() {
				if c.Name() == args[0] || c.HasAlias(args[0]) {
					command = c
					break
				}
			}
		}
		// The shortcut commands defer to the project's docs for the target of the same name.
		if command != nil && !isShortcut(command) {
			return command.Help()
		}

		if err := work.init(); err != nil {
			switch {
			case command != nil:
				return command.Help()
			case len(args) == 0:
				return rootCmd.Help()
			}
			return err
		}
		if err := work.loadProject(nil, true); err != nil {
			if command != nil {
				return command.Help()
			}
			return err
		}

		if len(args) == 0 {
			return printHelp(os.Stdout, work.project.ConfigPath(), work.project.Help())
		}

		if name, ok := strings.CutPrefix(args[0], "--"); ok {
			flag, err := work.project.Flag(name)
			if err != nil {
				return err
			}
			return printFlagHelp(os.Stdout, flag)
		}

		t, err := work.target(args[0])
		if err != nil {
			if flag, ferr := work.project.Flag(args[0]); ferr == nil {
				return printFlagHelp(os.Stdout, flag)
			}
			if command != nil {
				return command.Help()
			}
			return err
		}
		return printTargetHelp(os.Stdout, t)
	},
	ValidArgsFunction: func(cmd *cobra.Command, args []string, completing string) ([]string, cobra.ShellCompDirective) {
		var topics []string
		for _, c := range rootCmd.Commands() {
			if !c.Hidden {
				topics = append(topics, c.Name())
			}
		}
		targets, _ := work.validTargets(cmd, args, completing)
		topics = append(topics, targets...)
		return topics, cobra.ShellCompDirectiveNoFileComp
	},
}

func isShortcut(c *cobra.Command) bool {
	for _, s := range shortcutCmds {
		if s == c {
			return true
		}
	}
	return false
}

// printHelp lists help entries in declaration order with their descriptions aligned.
func printHelp(w io.Writer, configPath string, entries []project.HelpEntry) error {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No help entries. Add lines of the form '%s name : description' to %s.\n", project.HelpMarker, configPath)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 2, 1, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.Description)
	}
	return tw.Flush()
}

func printTargetHelp(w io.Writer, t *cc.Target) error {
	fmt.Fprintf(w, "%v (%v)\n\n", t.Name(), targetKind(t))

	if doc := t.Doc(); doc != "" {
		fmt.Fprintf(w, "    %s\n\n", strings.TrimSpace(doc))
	} else {
		fmt.Fprintf(w, "    No help available.\n\n")
	}

	if a := t.Action(); a != nil {
		fmt.Fprintln(w, "Action:")
		for l := range strings.Lines(strings.TrimSpace(a.String())) {
			fmt.Fprintf(w, "    %s", l)
		}
		fmt.Fprintf(w, "\n\n")
	}

	if prereqs := t.Prerequisites(); len(prereqs) != 0 {
		fmt.Fprintln(w, "Prerequisites:")
		tw := tabwriter.NewWriter(w, 0, 2, 1, ' ', 0)
		for _, p := range prereqs {
			fmt.Fprintf(tw, "    %v\t(%v)\n", p.Name, p.Kind)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

func printFlagHelp(w io.Writer, flag *cc.Flag) error {
	fmt.Fprintf(w, "%v\n\n", flag)

	if flag.Help != "" {
		fmt.Fprintf(w, "    %s\n\n", strings.TrimSpace(flag.Help))
	} else {
		fmt.Fprintf(w, "    No help available.\n\n")
	}

	tw := tabwriter.NewWriter(w, 0, 2, 1, ' ', 0)
	if flag.Required {
		fmt.Fprintf(tw, "Required:\tyes\n")
	}
	if flag.Default != "" {
		fmt.Fprintf(tw, "Default:\t%s\n", flag.Default)
	}
	if len(flag.Choices) != 0 {
		fmt.Fprintf(tw, "Choices:\t%s\n", strings.Join(flag.Choices, ", "))
	}
	fmt.Fprintf(tw, "Value:\t%s\n", flag.Value)
	return tw.Flush()
}
