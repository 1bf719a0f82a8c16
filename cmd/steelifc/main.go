// steelifc converts steel connection scenes into IFC4 models.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/steelifc/internal/config"
	"github.com/Faultbox/steelifc/internal/logger"
)

const (
	Version   = "0.3.0"
	BuildTime = "dev"
	appName   = "steelifc"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFile    string
	debug      bool
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Export steel connection solids to IFC4",
		Long: `steelifc meshes named solids, classifies them by name into beams,
columns, plates and fasteners, and writes an IFC4 model with a
Project/Site/Building/Storey hierarchy.

Scenes are YAML files of boxes, cylinders, I-sections and angles, or one
of the built-in samples (see "steelifc samples").`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&g.logFile, "log-file", "", "Also log to this file, rotated")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		exportCmd(g),
		samplesCmd(),
		classifyCmd(g),
		inspectCmd(),
		configCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

// loadConfig applies defaults < file < flags and validates the result.
func (g *globalFlags) loadConfig(o config.Overrides) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	o.LogLevel = g.logLevel
	o.LogFile = g.logFile
	o.Debug = g.debug
	cfg.ApplyOverrides(o)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger logs to the command's stderr and the configured file.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*zap.Logger, error) {
	opts := logger.Options{Level: cfg.Logging.Level, Console: cmd.ErrOrStderr()}
	if cfg.Logging.LogFile != "" {
		opts.File = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	return logger.Build(opts)
}
