package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeusync/ecsgen/internal/codegen/decl"
)

func newCheckCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report the diagnostics of a declaration file without generating code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := decl.LoadFile(opts.input)
			if err != nil {
				return err
			}
			res, err := opts.app.Generator.Check(cmd.Context(), f)
			if err != nil {
				return err
			}
			printDiagnostics(cmd.ErrOrStderr(), res)
			if failed := res.Failed(); len(failed) > 0 {
				return fmt.Errorf("%w: %v", errDiagnostics, failed)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d declarations ok\n", opts.input, len(res.Sites))
			return nil
		},
	}
	addInputFlags(cmd, opts, false)
	return cmd
}
