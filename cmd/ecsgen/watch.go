package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/zeusync/ecsgen/internal/core/observability/log"
	"github.com/zeusync/ecsgen/internal/watch"
)

func newWatchCmd(opts *options) *cobra.Command {
	var debounce = watch.DefaultDebounce
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate whenever the declaration file changes",
		Long: `Watch generates once, then regenerates after every change of the
declaration file. Unchanged declarations are served from the cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			regenerate := func(ctx context.Context, _ string) error {
				_, err := generate(ctx, opts, opts.input, cmd.ErrOrStderr())
				return err
			}
			if err := regenerate(ctx, opts.input); err != nil {
				opts.app.Log.Error("generate failed", log.Error(err))
			}

			w, err := watch.New(opts.app.Log, debounce, regenerate, opts.input)
			if err != nil {
				return err
			}
			opts.app.Log.Info("watching", log.String("file", opts.input))
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	addInputFlags(cmd, opts, true)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before regenerating")
	return cmd
}
