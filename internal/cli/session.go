package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/thruflo/slidesync/internal/config"
	"github.com/thruflo/slidesync/internal/event"
	"github.com/thruflo/slidesync/internal/logging"
	"github.com/thruflo/slidesync/internal/multiplex"
	"github.com/thruflo/slidesync/internal/presentation"
	"github.com/thruflo/slidesync/internal/stream"
)

// ErrNoChannel is returned when a command needs a channel id and relay address
// but the configuration lacks one.
var ErrNoChannel = errors.New("no channel configured: set multiplex.channel_id and multiplex.relay_address")

// sessionFlags are the overrides shared by follow and drive.
type sessionFlags struct {
	channel string
	relay   string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.channel, "channel", "", "channel id (overrides multiplex.channel_id)")
	cmd.Flags().StringVar(&f.relay, "relay", "", "relay address (overrides multiplex.relay_address)")
}

func (f *sessionFlags) apply(cfg *config.Config) {
	if f.channel != "" {
		cfg.Multiplex.ChannelID = f.channel
	}
	if f.relay != "" {
		cfg.Multiplex.RelayAddress = f.relay
	}
}

// deckSession wires a Deck to a multiplex Session over a relay client.
type deckSession struct {
	bus     *event.Bus
	deck    *presentation.Deck
	session *multiplex.Session
}

func newDeckSession(cfg *config.Config, logger *logging.Logger, opts ...multiplex.Option) (*deckSession, error) {
	if cfg.Multiplex.ChannelID == "" || cfg.Multiplex.RelayAddress == "" {
		return nil, ErrNoChannel
	}

	bus := event.NewBus()
	deck := presentation.NewDeck(bus)
	client := stream.NewClient(cfg.Multiplex.RelayAddress, stream.WithLogger(logger))

	ch, cfgOpts := multiplex.FromConfig(cfg)
	ch.RelayAddress = client.BaseURL()
	opts = append(append(cfgOpts, multiplex.WithLogger(logger)), opts...)

	return &deckSession{
		bus:     bus,
		deck:    deck,
		session: multiplex.NewSession(ch, deck, client, bus, opts...),
	}, nil
}

// signalContext returns the command context cancelled on interrupt.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func describeSession(s *multiplex.Session) string {
	return fmt.Sprintf("client_id=%d role=%s", s.ID(), s.Role())
}
