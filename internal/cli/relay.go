package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thruflo/slidesync/internal/config"
	"github.com/thruflo/slidesync/internal/logging"
	"github.com/thruflo/slidesync/internal/relay"
)

var (
	relayPort  int
	relayHash  string
	relayTrace bool
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the message relay",
	Long: `Runs the relay that masters publish to and followers subscribe through.

A publish is forwarded only when its secret hashes to its channel id under
the configured algorithm. Flags override the relay section of config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

func init() {
	addRelayFlags(relayCmd.Flags())
	rootCmd.AddCommand(relayCmd)
}

func addRelayFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&relayPort, "port", "p", config.DefaultRelayPort, "port to listen on")
	fs.StringVar(&relayHash, "hash", "", "secret hash algorithm: md5, sha512, sha3-512, argon2id")
	fs.BoolVar(&relayTrace, "trace", false, "log every forwarded state")
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	relayCfg, err := relaySettings(cmd.Flags(), cfg.Relay)
	if err != nil {
		return err
	}

	logger := logging.Default()
	if relayCfg.Trace && !logger.Enabled(logging.LevelInfo) {
		logger.SetLevel(logging.LevelInfo)
	}

	srv, err := relay.NewServerFromConfig(relayCfg, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Relay listening on :%d (hash %s)\n", relayCfg.Port, relayCfg.HashAlgorithm)
	return srv.Start(ctx)
}

// relaySettings applies explicitly set flags over the configured relay section.
func relaySettings(fs *pflag.FlagSet, base config.Relay) (*config.Relay, error) {
	cfg := base
	if fs.Changed("port") {
		cfg.Port = relayPort
	}
	if fs.Changed("hash") {
		cfg.HashAlgorithm = relayHash
	}
	if fs.Changed("trace") {
		cfg.Trace = relayTrace
	}
	if err := config.ValidateRelayConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
