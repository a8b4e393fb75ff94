package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	outputDir string
	dryRun    bool
	zipOutput bool
	asJSON    bool
	verbose   bool
	quiet     bool
	port      int
	version   = "dev"
	buildTime string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "metazip",
	Short: "Inspect and remove privacy metadata from images",
	Long: `metazip lists the metadata embedded in JPEG, PNG, WebP and TIFF images
and writes cleaned copies without EXIF and ICC data.

Features:
- Shows GPS, camera, date/time and software tags grouped by category
- Removes metadata segments without re-encoding JPEG, PNG and WebP
- Re-encodes TIFF images from their decoded pixels
- Batch cleaning of files and directories with duplicate handling
- ZIP bundling of large batches
- HTTP API with live progress over WebSocket`,
	SilenceUsage: true,
}

// inspectCmd lists the metadata of one image.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "List the metadata embedded in an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd.OutOrStdout(), args[0], asJSON)
	},
}

// stripCmd writes cleaned copies of images.
var stripCmd = &cobra.Command{
	Use:   "strip <path>...",
	Short: "Write copies of images without EXIF and ICC metadata",
	Long: `Cleans every given file and every supported image found under the given
directories. Cleaned copies are named <name>_clean.<ext> and written next to
the source unless --output is set. Sources are never modified.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStrip(cmd.Context(), cmd.OutOrStdout(), args)
	},
}

// dimensionsCmd prints the pixel size of an image.
var dimensionsCmd = &cobra.Command{
	Use:   "dimensions <file>",
	Short: "Print the pixel dimensions of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDimensions(cmd.OutOrStdout(), args[0], asJSON)
	},
}

// savingsCmd compares two sizes.
var savingsCmd = &cobra.Command{
	Use:   "savings <original-bytes> <cleaned-bytes>",
	Short: "Compute the size reduction between two byte counts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSavings(cmd.OutOrStdout(), args[0], args[1], asJSON)
	},
}

// serveCmd starts the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts an HTTP server exposing the inspect and strip operations.
Progress of batch and clean runs is broadcast on /ws.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.Version = version
	if buildTime != "" {
		rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	inspectCmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	dimensionsCmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	savingsCmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	stripCmd.Flags().StringVar(&outputDir, "output", "", "directory for cleaned files (default: next to each source)")
	stripCmd.Flags().BoolVar(&zipOutput, "zip", false, "bundle the cleaned files into one archive when the batch is large enough")
	stripCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be cleaned without writing files")

	serveCmd.Flags().IntVar(&port, "port", 0, "port to run the server on (default from config)")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(stripCmd)
	rootCmd.AddCommand(dimensionsCmd)
	rootCmd.AddCommand(savingsCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
