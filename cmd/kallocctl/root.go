package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/kalloc/internal/logger"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool

	// settings is filled from KALLOC_* environment variables before any
	// command runs.
	settings = defaultSettings()

	// numbers formats counts with digit grouping for the configured language.
	numbers = message.NewPrinter(language.English)
)

var rootCmd = &cobra.Command{
	Use:   "kallocctl",
	Short: "Build and exercise kernel resource pools",
	Long: `kallocctl drives the kernel's range, bitmap and pool allocators outside
the kernel. It can build the root pools from a boot descriptor, run random
allocation workloads, nest derived pools and walk capability lists.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and debug logging")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

// setup loads the environment and configures logging.
func setup() error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	settings = s
	numbers = message.NewPrinter(language.Make(s.Lang))

	level, err := s.level()
	if err != nil {
		return err
	}
	allocLog := os.Getenv(logger.EnvLogAlloc) != ""
	if verbose || allocLog {
		level = slog.LevelDebug
	}
	logger.Init(logger.Options{
		Enabled: verbose || allocLog || s.LogLevel != "",
		Level:   level,
		JSON:    s.LogJSON,
	})
	return nil
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// count formats n with digit grouping, e.g. 1,048,576.
func count[T ~int | ~uint64](n T) string {
	return numbers.Sprintf("%d", n)
}

// formatBytes renders a byte count in binary units.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
