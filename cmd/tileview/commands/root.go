// Package commands implements the tileview CLI.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/tileview"
)

var (
	cfgFile string
	cfg     Config
)

var rootCmd = &cobra.Command{
	Use:   "tileview",
	Short: "Tile viewer for images larger than the screen",
	Long: `tileview decodes only the parts of an image a viewport needs.

Images can be file paths, file://, http(s)://, s3://bucket/key or data: URIs.
Settings come from flags, TILEVIEW_* environment variables and an optional
config file, in that order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := LoadConfig(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = c
		return initLogger(cfg.LogLevel)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./tileview.yaml if present)")
	pf.String("log-level", "", "log level: debug, info, warn, error (default: silent)")
	pf.Int("grid-divisions", 0, "tile cells across the preload margin")
	pf.Duration("idle-timeout", 0, "decode worker idle timeout")
	pf.Int("queue-size", 0, "decode queue capacity")
	pf.Bool("suppress-orientation", false, "ignore EXIF orientation")
	pf.String("surface", "", "viewport size, WxH")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(panCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func initLogger(level string) error {
	if level == "" {
		tileview.SetLogger(nil)
		return nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	tileview.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}
