package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shipq/critq/cli"
	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/internal/config"
	"github.com/shipq/critq/internal/project"
	"github.com/shipq/critq/logging"
	"github.com/shipq/critq/query"
)

// envKeys maps setting keys to the environment variables that override
// critq.ini. The same names are read from .env.
var envKeys = map[string]string{
	"dialect":      "CRITQ_DIALECT",
	"version":      "CRITQ_VERSION",
	"log-level":    "CRITQ_LOG_LEVEL",
	"database-url": "DATABASE_URL",
}

// app carries what every command needs once flags are parsed. Settings
// resolve as flag > environment > .env > critq.ini > built-in default.
type app struct {
	fs     afero.Fs
	v      *viper.Viper
	dir    string
	cfg    *config.Config
	out    *cli.Printer
	logger *slog.Logger
}

func newRootCmd(fs afero.Fs, stdout, stderr io.Writer) *cobra.Command {
	a := &app{fs: fs, v: viper.New()}

	root := &cobra.Command{
		Use:   "critq",
		Short: "Render typed SQL statement documents for Postgres, MySQL and SQLite",
		Long: `critq decodes JSON statement documents, checks them against their inline
schema and renders parameterized SQL for the selected dialect and server
version.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.String("dialect", "", "dialect to render for (postgres, mysql, sqlite)")
	pf.String("version", "", "server version to render for (default: the dialect's default)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("dir", "", "directory holding critq.ini and .env (default: nearest directory upward with critq.ini)")
	pf.Bool("no-color", false, "disable colored output")

	for key, env := range envKeys {
		if f := pf.Lookup(key); f != nil {
			_ = a.v.BindPFlag(key, f)
		}
		_ = a.v.BindEnv(key, env)
	}

	root.AddCommand(
		a.capabilitiesCmd(),
		a.renderCmd(),
		a.execCmd(),
		a.watchCmd(),
		a.initCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	noColor, _ := cmd.Flags().GetBool("no-color")
	a.out = cli.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), !noColor && !color.NoColor)

	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		if dir, err = project.Dir(a.fs, wd); err != nil {
			return err
		}
	}
	a.dir = dir

	cfg, err := config.LoadFS(a.fs, dir)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.loadDotenv(); err != nil {
		return err
	}

	level := a.v.GetString("log-level")
	if level == "" {
		level = cfg.Log.Level
	}
	a.logger, err = logging.New(cfg.Log.Format, level, cmd.ErrOrStderr())
	return err
}

// loadDotenv reads dir/.env into the layer below the environment. The real
// environment is never modified.
func (a *app) loadDotenv() error {
	f, err := a.fs.Open(filepath.Join(a.dir, ".env"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open .env: %w", err)
	}
	defer f.Close()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("parse .env: %w", err)
	}
	layer := make(map[string]any)
	for key, env := range envKeys {
		if val, ok := vars[env]; ok {
			layer[key] = val
		}
	}
	return a.v.MergeConfigMap(layer)
}

// target resolves the dialect and version to render for. A dialect chosen
// above critq.ini without a version renders for that dialect's default.
func (a *app) target() (compile.Dialect, string, error) {
	name := a.v.GetString("dialect")
	if name == "" {
		name = a.cfg.Render.Dialect
	}
	name, err := config.ValidateDialect(name)
	if err != nil {
		return nil, "", err
	}
	d, err := compile.DialectByName(name)
	if err != nil {
		return nil, "", err
	}

	ver := a.v.GetString("version")
	if ver == "" {
		if name == a.cfg.Render.Dialect {
			ver = a.cfg.Render.Version
		} else {
			ver = config.DefaultVersion(name)
		}
	}
	if err := config.ValidateVersion(ver); err != nil {
		return nil, "", err
	}
	return d, ver, nil
}

// targets returns the render --all list: critq.ini's [render] targets, or
// every dialect at its default version.
func (a *app) targets() ([]query.Target, error) {
	list := a.cfg.Render.Targets
	if len(list) == 0 {
		for _, d := range compile.Dialects() {
			list = append(list, config.Target{Dialect: d.Name()})
		}
	}
	out := make([]query.Target, 0, len(list))
	for _, t := range list {
		d, err := compile.DialectByName(t.Dialect)
		if err != nil {
			return nil, err
		}
		ver := t.Version
		if ver == "" {
			ver = config.DefaultVersion(t.Dialect)
		}
		out = append(out, query.Target{Dialect: d, Version: ver})
	}
	return out, nil
}

// load decodes the statement document at path.
func (a *app) load(path string) (*query.Statement, *query.Document, error) {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	stmt, doc, err := query.DecodeDocument(data, query.WithLogger(a.logger))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return stmt, doc, nil
}
