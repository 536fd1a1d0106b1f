package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/hexselect/internal/core/config"
	"github.com/mohammed-shakir/hexselect/internal/logger"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:          "hexselect",
	Short:        "Select priority H3 hexagons from municipal category datasets",
	Long:         "Serve and run the A (hierarchical), B (weighted) and C (intersection) hexagon selection methods.",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "TOML config file (default $HEXSELECT_CONFIG)")
}

// loadConfig validates for serving; tools only need the resolved values.
func loadConfig(serving bool) (config.Config, error) {
	if serving {
		return config.Load(flagConfig)
	}
	return config.Resolve(flagConfig)
}

func newLogger(cfg config.Config, component string, out io.Writer) *slog.Logger {
	if out == nil {
		out = os.Stdout
	}
	zl := logger.Build(logger.Config{
		Level:     cfg.Log.Level,
		Console:   cfg.Log.Console,
		SampleN:   cfg.Log.SampleN,
		Service:   "hexselect",
		Component: component,
	}, out)
	return logger.NewSlog(&zl)
}
