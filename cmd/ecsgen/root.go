package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zeusync/ecsgen/internal/codegen/decl"
	"github.com/zeusync/ecsgen/internal/codegen/generator"
	"github.com/zeusync/ecsgen/internal/core/observability/log"
	"github.com/zeusync/ecsgen/internal/injector"
)

var errDiagnostics = errors.New("declarations have errors")

type options struct {
	config  string
	verbose bool
	input   string
	output  string

	app *injector.App
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "ecsgen",
		Short:         "Generate chunk query and iteration code for ECS declarations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			app, err := injector.InitializeApp(injector.ConfigPath(opts.config), injector.Verbose(opts.verbose))
			if err != nil {
				return err
			}
			opts.app = app
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.app != nil {
				_ = opts.app.Log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&opts.config, "config", "c", "", "generator config file (YAML)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every pipeline stage")

	root.AddCommand(newGenerateCmd(opts), newCheckCmd(opts), newWatchCmd(opts))
	return root
}

func addInputFlags(cmd *cobra.Command, opts *options, withOutput bool) {
	cmd.Flags().StringVarP(&opts.input, "file", "f", "", "declaration file (YAML)")
	_ = cmd.MarkFlagRequired("file")
	if withOutput {
		cmd.Flags().StringVarP(&opts.output, "out", "o", "", "generated file, defaults to <file>_gen.go")
	}
}

// outputPath is the generated file of input when no output was given.
func outputPath(input, output string) string {
	if output != "" {
		return output
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + "_gen.go"
}

func printDiagnostics(w io.Writer, res *generator.Result) {
	for _, d := range res.Diagnostics {
		fmt.Fprintln(w, d.Error())
	}
}

// generate writes the generated file of input. The file is left untouched when
// its content did not change.
func generate(ctx context.Context, opts *options, input string, w io.Writer) (*generator.Result, error) {
	f, err := decl.LoadFile(input)
	if err != nil {
		return nil, err
	}
	res, err := opts.app.Generator.Generate(ctx, f)
	if err != nil {
		return nil, err
	}
	printDiagnostics(w, res)

	out := outputPath(input, opts.output)
	if prev, err := os.ReadFile(out); err == nil && string(prev) == string(res.Source) {
		opts.app.Log.Debug("output unchanged", log.String("path", out))
		return res, nil
	}
	if err := os.WriteFile(out, res.Source, 0o644); err != nil {
		return nil, err
	}
	opts.app.Log.Info("generated",
		log.String("path", out),
		log.Int("sites", len(res.Sites)),
		log.Strings("failed", res.Failed()),
	)
	return res, nil
}
