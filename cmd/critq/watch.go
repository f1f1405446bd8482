package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func (a *app) watchCmd() *cobra.Command {
	var opts renderOptions
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Re-render a statement document whenever it changes",
		Long: `Renders FILE once, then again after every save until interrupted. Render
errors are printed and watching continues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			a.out.Faint(fmt.Sprintf("watching %s (ctrl-c to stop)", path))
			return watchFile(cmd.Context(), path, debounce, func() error {
				if err := a.render(cmd.Context(), path, opts); err != nil {
					a.out.Error(err)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.all, "all", false, "render for every configured target")
	cmd.Flags().BoolVar(&opts.describe, "describe", false, "also print the dialect-independent form")
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "quiet period before re-rendering")
	return cmd
}

// watchFile calls onChange once, then again whenever path is written or
// replaced, coalescing events that arrive within debounce of each other.
// It returns when ctx is done or onChange fails.
//
// The parent directory is watched rather than the file so that editors
// which save by renaming a temporary file are still seen.
func watchFile(ctx context.Context, path string, debounce time.Duration, onChange func() error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	if err := onChange(); err != nil {
		return err
	}

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fire = time.After(debounce)

		case <-fire:
			fire = nil
			if err := onChange(); err != nil {
				return err
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
}
