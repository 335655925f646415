package main

import (
	"github.com/spf13/cobra"
	"github.com/thismarvin/cc"
)

var (
	buildJSON    string
	buildDOT     string
	buildOptions cc.RunOptions
)

var buildCmd = newTargetCommand(&targetCommand{
	Use:   "build [target] [flags...]",
	Short: "Build a target",
	Run: func(cmd *cobra.Command, target string, args []string) error {
		if err := work.loadProject(args, false); err != nil {
			return err
		}
		return work.run(cmd.Context(), target, buildOptions)
	},
})

// shortcutCmds run the conventional targets by name.
var shortcutCmds = []*cobra.Command{
	newShortcutCommand("all", "Clean, then build and stage a release binary"),
	newShortcutCommand("debug", "Build and stage the debug profile"),
	newShortcutCommand("release", "Build and stage the release profile"),
	newShortcutCommand("dev", "Stage the debug profile, then run it"),
	newShortcutCommand("clean", "Remove build output"),
}

func newShortcutCommand(target, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:          target + " [flags...]",
		Short:        short,
		Long:         short + ".\n\nRuns the project's " + target + " target. Arguments are parsed as project flags.",
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := work.loadProject(args, false); err != nil {
				return err
			}
			return work.run(cmd.Context(), target, buildOptions)
		},
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}
	addRunFlags(cmd)

	cmd.Flags().SetInterspersed(false)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&buildOptions.Always, "always", "B", false, "consider all targets out-of-date")
	cmd.Flags().BoolVarP(&buildOptions.DryRun, "dry-run", "n", false, "print the targets that would be built, but do not build them")
	cmd.Flags().StringVar(&buildJSON, "json", "", "write JSON build events to the given path")
	cmd.Flags().StringVar(&buildDOT, "dot", "", "write a DOT graph of out-of-date targets to the given path")
}

func init() {
	addRunFlags(buildCmd)
}
