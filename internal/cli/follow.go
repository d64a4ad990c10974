package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/thruflo/slidesync/internal/config"
	"github.com/thruflo/slidesync/internal/event"
	"github.com/thruflo/slidesync/internal/logging"
	"github.com/thruflo/slidesync/internal/multiplex"
	"github.com/thruflo/slidesync/internal/presentation"
)

var followFlags sessionFlags

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Follow a channel and print each state the master sends",
	Long: `Subscribes to the configured channel as a receiver and applies every
relayed state to an in-memory deck. Each new state is printed as one JSON
line, so the output can be piped into whatever renders the slides.

A follower never broadcasts, even when the configuration holds the secret.`,
	Args: cobra.NoArgs,
	RunE: runFollow,
}

func init() {
	followFlags.register(followCmd)
	rootCmd.AddCommand(followCmd)
}

func runFollow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	followFlags.apply(cfg)

	ctx, stop := signalContext(cmd)
	defer stop()

	return follow(ctx, cfg, cmd.OutOrStdout(), logging.Default())
}

// follow runs a receiver session until ctx is cancelled, writing each newly
// applied state to out.
func follow(ctx context.Context, cfg *config.Config, out io.Writer, logger *logging.Logger) error {
	ds, err := newDeckSession(cfg, logger, multiplex.WithReceiver(true))
	if err != nil {
		return err
	}

	// Handlers run on the session goroutine, which owns last.
	var last *presentation.State
	ds.bus.SubscribeAll(func(event.Event) {
		current := ds.deck.State()
		if last != nil && last.SameAs(current) {
			return
		}
		last = &current
		line, err := json.Marshal(current)
		if err != nil {
			return
		}
		fmt.Fprintln(out, string(line))
	})

	logger.Info("following", "channel", cfg.Multiplex.ChannelID, "session", describeSession(ds.session))
	return ds.session.Run(ctx)
}
