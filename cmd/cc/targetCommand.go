package main

import (
	"github.com/spf13/cobra"
)

type targetCommand struct {
	Use               string
	Short             string
	Long              string
	Run               func(cmd *cobra.Command, target string, args []string) error
	ValidArgsFunction func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective)
}

// newTargetCommand creates a command whose first positional argument names a target. Any remaining
// arguments are parsed as project flags.
func newTargetCommand(cmd *targetCommand) *cobra.Command {
	run := cmd.Run
	cobraCmd := &cobra.Command{
		Use:          cmd.Use,
		Short:        cmd.Short,
		Long:         cmd.Long,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			target, args := work.targetArg(args)
			return run(c, target, args)
		},
		ValidArgsFunction: cmd.ValidArgsFunction,
	}
	if cobraCmd.ValidArgsFunction == nil {
		cobraCmd.ValidArgsFunction = work.validTargets
	}

	cobraCmd.PersistentFlags().SetInterspersed(false)
	cobraCmd.Flags().SetInterspersed(false)

	return cobraCmd
}
