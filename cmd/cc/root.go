package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/thismarvin/cc/cmd/cc/internal/term"
	"github.com/thismarvin/cc/util"
)

var (
	prof      = &profiler{}
	work      = &workspace{}
	version   = "development"
	termWidth int
)

var rootCmd = &cobra.Command{
	Version:       version,
	Use:           "cc",
	Short:         "cc builds and packages projects described by a cc.toml.",
	Long:          `Builds and packages projects described by a cc.toml.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		termWidth, _, _ = term.GetSize(os.Stdout)

		switch cmd.Name() {
		case "init", "help":
			// These commands work outside of a project.
		default:
			if err := work.init(); err != nil {
				return err
			}
		}
		return prof.start()
	},
	RunE: buildCmd.RunE,
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return prof.stop()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&prof.cpuPath, "cpuprofile", "", "write a CPU profile to the given path")
	rootCmd.PersistentFlags().StringVar(&prof.memPath, "memprofile", "", "write a memory profile to the given path")
	rootCmd.PersistentFlags().StringVar(&prof.tracePath, "trace", "", "write a runtime trace to the given path")

	util.Must(rootCmd.PersistentFlags().MarkHidden("cpuprofile"))
	util.Must(rootCmd.PersistentFlags().MarkHidden("memprofile"))
	util.Must(rootCmd.PersistentFlags().MarkHidden("trace"))

	rootCmd.PersistentFlags().StringVarP(&work.chdir, "chdir", "C", "", "change to the given directory before doing anything else")
	rootCmd.PersistentFlags().BoolVarP(&work.verbose, "verbose", "V", false, "print verbose build output (incl. command output)")
	rootCmd.PersistentFlags().BoolVarP(&work.explain, "explain", "d", false, "print the reasons that targets are built")
	rootCmd.PersistentFlags().BoolVar(&buildOptions.Lock, "lock", false, "fail instead of running concurrently with another build of the project")

	addRunFlags(rootCmd)

	rootCmd.PersistentFlags().SetInterspersed(false)
	rootCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(buildCmd)
	for _, c := range shortcutCmds {
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(graphCmd)

	rootCmd.SetHelpCommand(helpCmd)
}
