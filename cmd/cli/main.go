package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vk/tfgraph/internal/app"
	"github.com/vk/tfgraph/internal/diag"
	"github.com/vk/tfgraph/internal/render"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tfgraph",
		Short:         "Interpret infrastructure configuration and build its dependency graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "settings file (default tfgraph.yaml in the working directory)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")
	root.PersistentFlags().String("fetch-timeout", "30s", "timeout for fetching each remote source")
	root.PersistentFlags().Int("max-resolve-passes", 0, "cap on scope resolution passes, 0 for the built-in default")

	root.AddCommand(newGraphCmd())
	return root
}

func newGraphCmd() *cobra.Command {
	var (
		vars        []string
		varFiles    []string
		annotations string
		format      string
		outPath     string
	)

	cmd := &cobra.Command{
		Use:   "graph <source>...",
		Short: "Build and render the dependency graph of one or more sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			settings, err := app.LoadSettings(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			a := app.New(os.Stderr, settings)
			result, err := a.Run(cmd.Context(), &app.Config{
				Sources:         args,
				VarFiles:        varFiles,
				Vars:            vars,
				AnnotationsPath: annotations,
			})
			if err != nil {
				return err
			}

			for _, d := range result.Diags {
				fmt.Fprintln(os.Stderr, d.String())
			}

			var out []byte
			switch format {
			case "dot":
				out = []byte(render.Dot(result.Graph))
			case "json":
				out, err = render.JSON(result.Graph, result.Diags)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q, expected dot or json", format)
			}

			if outPath != "" {
				if err := os.WriteFile(outPath, out, 0o644); err != nil {
					return err
				}
			} else {
				cmd.OutOrStdout().Write(out)
			}

			if hasErrors(result.Diags) {
				return fmt.Errorf("completed with errors, see diagnostics above")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&vars, "var", nil, "variable override, name=value, repeatable")
	cmd.Flags().StringArrayVar(&varFiles, "var-file", nil, "variable definition file, repeatable")
	cmd.Flags().StringVar(&annotations, "annotations", "", "yaml overlay applied to resource metadata")
	cmd.Flags().StringVar(&format, "format", "dot", "output format: dot or json")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write output to a file instead of stdout")
	return cmd
}

func hasErrors(diags []diag.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == diag.SevError {
			return true
		}
	}
	return false
}
