package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/corpus"
	"github.com/wippyai/wasmgen/smith"
)

var rootCmd = &cobra.Command{
	Use:           "wasmgen",
	Short:         "Generate valid WebAssembly modules from seeds",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			smith.SetLogger(l)
			corpus.SetLogger(l)
		}
		mode, _ := cmd.Flags().GetString("color")
		switch mode {
		case "on":
			color.NoColor = false
		case "off":
			color.NoColor = true
		case "auto":
		default:
			return fmt.Errorf("--color must be auto, on or off, got %q", mode)
		}
		return nil
	},
}

func main() {
	rootCmd.AddCommand(genCmd)
	rootCmd.AddCommand(corpusCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.PersistentFlags().Bool("verbose", false, "log generation phases to stderr")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")

	if err := rootCmd.Execute(); err != nil {
		failure("%v", err)
		os.Exit(1)
	}
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
)

func success(format string, args ...any) {
	_, _ = okColor.Fprint(os.Stderr, "ok ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func warning(format string, args ...any) {
	_, _ = warnColor.Fprint(os.Stderr, "warning ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func failure(format string, args ...any) {
	_, _ = errColor.Fprint(os.Stderr, "error ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// addConfigFlags registers the flags that select a configuration.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "TOML configuration file")
	cmd.Flags().String("preset", "default", "configuration preset (default|core2|gc)")
}

// loadConfig resolves --config, falling back to --preset.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	name, _ := cmd.Flags().GetString("preset")
	cfg, ok := config.Preset(name)
	if !ok {
		return config.Config{}, "", fmt.Errorf("unknown preset %q", name)
	}
	return cfg, name, nil
}
