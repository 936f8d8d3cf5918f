package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGenerateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the code of every declaration of a file",
		Long: `Generate renders the type handle, resolver, enumerator and scheduling
entry points of every declaration. Declarations with errors are reported
and left out of the generated file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := generate(cmd.Context(), opts, opts.input, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if failed := res.Failed(); len(failed) > 0 {
				return fmt.Errorf("%w: %v", errDiagnostics, failed)
			}
			return nil
		},
	}
	addInputFlags(cmd, opts, true)
	return cmd
}
