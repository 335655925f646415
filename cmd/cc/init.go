package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/thismarvin/cc/internal/project"
)

var initCmd = &cobra.Command{
	Use:          "init [name]",
	Short:        "Create a new project",
	Long:         "Create a cc.toml for a Cargo project in the current directory. The project's name defaults to the directory's name.",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := work.changeDir(); err != nil {
			return err
		}

		wd, err := os.Getwd()
		if err != nil {
			return err
		}

		name := filepath.Base(wd)
		if len(args) != 0 {
			name = args[0]
		}

		path := filepath.Join(wd, project.ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%v already contains a cc project", wd)
		} else if !os.IsNotExist(err) {
			return err
		}

		if err := project.WriteConfigFile(path, starterConfig(name)); err != nil {
			return err
		}
		fmt.Printf("created %v\n", path)
		return nil
	},
}

// starterConfig returns the configuration for a Cargo binary with debug and release profiles.
func starterConfig(name string) *project.Config {
	config := &project.Config{
		Name:    name,
		Version: "v0.1.0",
		Default: "debug",
		Help: []project.HelpEntry{
			{Name: "all", Description: "clean, then build and stage a release binary"},
			{Name: "debug", Description: "build and stage the debug profile"},
			{Name: "release", Description: "build and stage the release profile"},
			{Name: "dev", Description: "stage the debug profile, then run it"},
			{Name: "clean", Description: "remove build output"},
		},
		Flags: []project.FlagConfig{
			{Name: "features", Help: "extra cargo features"},
		},
		Targets: []project.TargetConfig{
			{Name: "all", Phony: true, Deps: []string{"clean", "release"}},
			{Name: "debug", Phony: true, Deps: []string{"build/debug/${name}"}},
			{Name: "release", Phony: true, Deps: []string{"build/release/${name}"}},
			{Name: "dev", Phony: true, Deps: []string{"debug"}, Command: "./${name}", Dir: "build/debug", Interactive: true},
			{Name: "clean", Phony: true, Clean: "build"},
		},
	}

	for _, profile := range []string{"debug", "release"} {
		flag := ""
		if profile == "release" {
			flag = " --release"
		}
		config.Targets = append(config.Targets,
			project.TargetConfig{Name: "build/" + profile, Mkdir: true},
			project.TargetConfig{
				Name:    "target/" + profile + "/${name}",
				Sources: []string{"Cargo.toml", "Cargo.lock", "src/**/*.rs"},
				Command: "cargo build" + flag + ` --features "$features"`,
			},
			project.TargetConfig{
				Name:  "build/" + profile + "/${name}",
				Stage: &project.StageConfig{Artifact: "target/" + profile + "/${name}", Into: "build/" + profile},
			},
		)
	}
	return config
}
