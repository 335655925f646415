package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	fxs "github.com/pgavlin/fx/v2/slices"
	"github.com/spf13/cobra"
	"github.com/thismarvin/cc"
)

var listJSON bool

func printFlagList(w io.Writer, list []*cc.Flag) error {
	if !listJSON {
		tw := tabwriter.NewWriter(w, 0, 2, 0, ' ', 0)
		for _, flag := range list {
			var details []string
			if flag.Required {
				details = append(details, "required")
			}
			if flag.Default != "" {
				details = append(details, "default "+flag.Default)
			}
			if len(flag.Choices) != 0 {
				details = append(details, strings.Join(flag.Choices, "|"))
			}
			extra := ""
			if len(details) != 0 {
				extra = fmt.Sprintf("(%s)", strings.Join(details, "; "))
			}
			fmt.Fprintf(tw, "%v\t %s\t %s\n", flag, extra, flag.Help)
		}
		return tw.Flush()
	}

	return writeJSON(w, list)
}

type targetDescription struct {
	Name          string              `json:"name"`
	Kind          string              `json:"kind"`
	Doc           string              `json:"doc,omitempty"`
	Action        string              `json:"action,omitempty"`
	Prerequisites []prereqDescription `json:"prerequisites,omitempty"`
}

type prereqDescription struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func targetKind(t *cc.Target) string {
	switch {
	case t.IsPhony():
		return "phony"
	case t.IsSource():
		return "source"
	default:
		return "file"
	}
}

func describeTarget(t *cc.Target) targetDescription {
	d := targetDescription{
		Name: t.Name(),
		Kind: targetKind(t),
		Doc:  t.Doc(),
		Prerequisites: slices.Collect(fxs.Map(t.Prerequisites(), func(p cc.Prerequisite) prereqDescription {
			return prereqDescription{Name: p.Name, Kind: p.Kind.String()}
		})),
	}
	if a := t.Action(); a != nil {
		d.Action = a.String()
	}
	return d
}

func printTargetList(w io.Writer, list []*cc.Target) error {
	if !listJSON {
		tw := tabwriter.NewWriter(w, 0, 2, 0, ' ', 0)
		for _, t := range list {
			fmt.Fprintf(tw, "%v\t %s\n", t.Name(), t.Doc())
		}
		return tw.Flush()
	}

	return writeJSON(w, slices.Collect(fxs.Map(list, describeTarget)))
}

func printStringList(w io.Writer, list []string) error {
	slices.Sort(list)
	if !listJSON {
		for _, l := range list {
			fmt.Fprintln(w, l)
		}
		return nil
	}

	return writeJSON(w, list)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List information about a project or targets",
}

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "List available flags",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := work.loadProject(args, true); err != nil {
			return err
		}
		return errors.Join(work.renderer.Close(), printFlagList(os.Stdout, work.project.Flags()))
	},
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List available targets",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := work.loadProject(args, true); err != nil {
			return err
		}
		return errors.Join(work.renderer.Close(), printTargetList(os.Stdout, work.project.Targets()))
	},
}

var dependsCmd = newTargetCommand(&targetCommand{
	Use:   "depends [target]",
	Short: "List a target's transitive dependencies",
	Run: func(_ *cobra.Command, target string, args []string) error {
		if err := work.loadProject(args, true); err != nil {
			return err
		}
		if err := work.renderer.Close(); err != nil {
			return err
		}
		names, err := work.depends(target)
		if err != nil {
			return err
		}
		return printStringList(os.Stdout, names)
	},
})

var whatDependsCmd = newTargetCommand(&targetCommand{
	Use:   "what-depends [target]",
	Short: "List a target's transitive dependents",
	Run: func(_ *cobra.Command, target string, args []string) error {
		if err := work.loadProject(args, true); err != nil {
			return err
		}
		if err := work.renderer.Close(); err != nil {
			return err
		}
		names, err := work.whatDepends(target)
		if err != nil {
			return err
		}
		return printStringList(os.Stdout, names)
	},
})

var sourcesCmd = newTargetCommand(&targetCommand{
	Use:   "sources [target]",
	Short: "List the source files a target transitively depends on",
	Run: func(_ *cobra.Command, target string, args []string) error {
		if err := work.loadProject(args, true); err != nil {
			return err
		}
		if err := work.renderer.Close(); err != nil {
			return err
		}
		paths, err := work.sources(target)
		if err != nil {
			return err
		}
		return printStringList(os.Stdout, paths)
	},
})

func init() {
	listCmd.PersistentFlags().BoolVar(&listJSON, "json", false, "write JSON output")

	listCmd.AddCommand(flagsCmd)
	listCmd.AddCommand(targetsCmd)
	listCmd.AddCommand(dependsCmd)
	listCmd.AddCommand(whatDependsCmd)
	listCmd.AddCommand(sourcesCmd)
}
