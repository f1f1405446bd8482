package main

import (
	"github.com/spf13/cobra"

	"github.com/shipq/critq/internal/config"
)

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a critq.ini with the default settings",
		Long: `Writes critq.ini to --dir (default: the current directory). A --dialect
or --version given on the command line is recorded as the render default.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if a.v.IsSet("dialect") || a.v.IsSet("version") {
				d, ver, err := a.target()
				if err != nil {
					return err
				}
				cfg.Render.Dialect = d.Name()
				cfg.Render.Version = ver
			}
			path, err := cfg.WriteFS(a.fs, a.dir)
			if err != nil {
				return err
			}
			a.out.Successf("wrote %s", path)
			return nil
		},
	}
}
