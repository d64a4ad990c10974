package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/thruflo/slidesync/internal/auth"
	"github.com/thruflo/slidesync/internal/config"
	"github.com/thruflo/slidesync/internal/stream"
	"gopkg.in/yaml.v3"
)

var (
	channelLength int
	channelHash   string
	channelRelay  string
	channelSave   bool
)

var channelCmd = &cobra.Command{
	Use:   "channel",
	Short: "Generate a channel secret and id",
	Long: `Generates a random secret and the channel id it controls, and prints the
multiplex section of config.yaml for the master.

Followers use the same section without the secret. With --save the values
are written into .slidesync/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runChannel,
}

func init() {
	channelCmd.Flags().IntVarP(&channelLength, "length", "n", auth.DefaultSecretLength, "secret length in characters")
	channelCmd.Flags().StringVar(&channelHash, "hash", "", "secret hash algorithm (default: relay.hash_algorithm from config)")
	channelCmd.Flags().StringVar(&channelRelay, "relay", "", "relay address (default: multiplex.relay_address from config)")
	channelCmd.Flags().BoolVar(&channelSave, "save", false, "write the channel into .slidesync/config.yaml")
	rootCmd.AddCommand(channelCmd)
}

func runChannel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	hashName := cfg.Relay.HashAlgorithm
	if channelHash != "" {
		hashName = channelHash
	}
	alg, err := auth.ParseAlgorithm(hashName)
	if err != nil {
		return err
	}

	relayAddr := cfg.Multiplex.RelayAddress
	if channelRelay != "" {
		relayAddr = channelRelay
	}

	ch, err := auth.NewChannel(channelLength, alg, stream.NormalizeAddress(relayAddr))
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(map[string]*auth.Channel{"multiplex": ch})
	if err != nil {
		return fmt.Errorf("failed to marshal channel: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))

	if !channelSave {
		return nil
	}

	dir, err := baseDir()
	if err != nil {
		return err
	}
	cfg.Multiplex.ChannelID = ch.ID
	cfg.Multiplex.Secret = ch.Secret
	cfg.Multiplex.RelayAddress = ch.URL
	cfg.Relay.HashAlgorithm = string(alg)
	if err := config.Save(dir, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved channel to %s/config.yaml\n", config.DefaultDirName)
	return nil
}
