package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/thruflo/slidesync/internal/config"
	"github.com/thruflo/slidesync/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	rootDir      string
	rootLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "slidesync",
	Short: "Keep presentation followers in step with a master",
	Long: `Slidesync relays presentation navigation state from one master to any
number of followers through a central relay, without feedback loops.

Run a relay, generate a channel, then drive the channel as master and
follow it from anywhere.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("slidesync version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "C", "", "base directory holding .slidesync/ (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "warn", "log level: debug, info, warn, error")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := logging.ParseLevel(rootLogLevel)
	if err != nil {
		return err
	}
	logging.SetLevel(level)
	return nil
}

// baseDir returns the directory configuration is read from.
func baseDir() (string, error) {
	if rootDir != "" {
		return rootDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return cwd, nil
}

// loadConfig loads configuration from the base directory.
func loadConfig() (*config.Config, error) {
	dir, err := baseDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
