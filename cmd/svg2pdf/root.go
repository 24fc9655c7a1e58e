package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var version = "dev" // set with -ldflags "-X main.version=..."

// newRootCmd creates the root command with all subcommands registered.
// The logger is attached to the command context, at debug level
// with --verbose.
func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "svg2pdf",
		Short:         "svg2pdf converts SVG images to PDF documents",
		Long:          `svg2pdf draws SVG images on PDF pages, using vector operations, or rasterizes them to PNG previews.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if verbose {
				level = log.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(cmd.ErrOrStderr(), level)))
		},
	}
	root.SetErr(os.Stderr)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newConvertCmd())
	root.AddCommand(newRasterCmd())
	return root
}
