package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oriumgames/packsync/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "packsync",
	Short:         "Inspect and maintain packsync resource pack configurations",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute starts the root command for packsync
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "config.yml", "The packsync configuration file (yml, yaml or toml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.PersistentFlags().Bool("debug", false, "Log at debug level")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

// initConfig reads in ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("packsync")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadConfig loads the configured file and installs the logger its debug option asks for.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, newLogger(slog.LevelInfo), err
	}

	level := cfg.LogLevel()
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}
	return cfg, newLogger(level), nil
}

func newLogger(level slog.Level) *slog.Logger {
	handler := log.NewWithOptions(os.Stderr, log.Options{
		Level:           log.Level(level),
		ReportTimestamp: true,
		Prefix:          "packsync",
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
