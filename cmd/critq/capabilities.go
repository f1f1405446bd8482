package main

import (
	"fmt"

	"github.com/hashicorp/go-version"
	"github.com/spf13/cobra"

	"github.com/shipq/critq/compile"
)

func (a *app) capabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Show which constructs each dialect supports",
		Long: `Without --dialect or --version, prints the first server version supporting
each construct for every dialect. With either, prints whether each construct
renders for the selected dialect and version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.v.IsSet("dialect") && !a.v.IsSet("version") {
				return a.printMatrix()
			}
			d, ver, err := a.target()
			if err != nil {
				return err
			}
			return a.printSupport(d, ver)
		},
	}
}

func (a *app) printMatrix() error {
	dialects := compile.Dialects()
	headers := []string{"feature"}
	for _, d := range dialects {
		headers = append(headers, d.Name())
	}

	var rows [][]string
	for _, f := range compile.Features() {
		row := []string{f.String()}
		for _, d := range dialects {
			if first, ok := d.MinVersion(f); ok {
				row = append(row, a.out.Yes(first.Original()))
			} else {
				row = append(row, a.out.No("-"))
			}
		}
		rows = append(rows, row)
	}
	if err := a.out.Table(headers, rows); err != nil {
		return err
	}
	a.out.Faint("Versions are the first server release supporting the construct.")
	return nil
}

func (a *app) printSupport(d compile.Dialect, ver string) error {
	v, err := version.NewVersion(ver)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", ver, err)
	}

	a.out.Heading(fmt.Sprintf("%s %s", d.Name(), ver))
	var rows [][]string
	for _, f := range compile.Features() {
		first, ok := d.MinVersion(f)
		var cell string
		switch {
		case !ok:
			cell = a.out.No("no")
		case v.LessThan(first):
			cell = a.out.No(fmt.Sprintf("no (requires >= %s)", first.Original()))
		default:
			cell = a.out.Yes("yes")
		}
		rows = append(rows, []string{f.String(), cell})
	}
	return a.out.Table([]string{"feature", "supported"}, rows)
}
