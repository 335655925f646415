package main

import "github.com/spf13/cobra"

var watchCmd = newTargetCommand(&targetCommand{
	Use:   "watch [target] [flags...]",
	Short: "Watch for changes and rebuild a target as necessary",
	Run: func(cmd *cobra.Command, target string, args []string) error {
		if err := work.loadProject(args, false); err != nil {
			return err
		}
		return work.watch(cmd.Context(), target, buildOptions)
	},
})

func init() {
	watchCmd.Flags().StringVar(&buildJSON, "json", "", "write JSON build events to the given path")
}
