package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/thruflo/slidesync/internal/auth"
	"github.com/thruflo/slidesync/internal/config"
	"github.com/thruflo/slidesync/internal/logging"
	"github.com/thruflo/slidesync/internal/presentation"
)

var (
	driveFlags        sessionFlags
	drivePromptSecret bool
	driveLinger       time.Duration
)

// ErrNoSecret is returned by drive when no secret is configured or entered.
var ErrNoSecret = errors.New("driving a channel requires its secret (multiplex.secret, SLIDESYNC_SECRET or --prompt-secret)")

// errQuit ends the command loop.
var errQuit = errors.New("quit")

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Drive a channel as master from stdin",
	Long: `Joins the configured channel as master and reads navigation commands,
one per line, from stdin. Every change is broadcast to the followers.

Commands:
  next, prev      move between columns
  down, up        move within a column
  goto H V        jump to slide (H, V)
  overview        toggle the overview
  pause, resume   pause or resume the presentation
  state           print the current state
  quit            stop driving`,
	Args: cobra.NoArgs,
	RunE: runDrive,
}

func init() {
	driveFlags.register(driveCmd)
	driveCmd.Flags().BoolVar(&drivePromptSecret, "prompt-secret", false, "read the secret from the terminal without echo")
	driveCmd.Flags().DurationVar(&driveLinger, "linger", 500*time.Millisecond, "time to keep publishing after input ends")
	rootCmd.AddCommand(driveCmd)
}

func runDrive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	driveFlags.apply(cfg)

	if drivePromptSecret {
		secret, err := auth.PromptSecret("Channel secret: ")
		if err != nil {
			return err
		}
		cfg.Multiplex.Secret = secret
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	return drive(ctx, cfg, os.Stdin, cmd.OutOrStdout(), logging.Default(), driveLinger)
}

// drive runs a master session, applying commands read from in until it ends,
// then keeps the session up for linger so pending changes are published.
func drive(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger *logging.Logger, linger time.Duration) error {
	if cfg.Multiplex.Secret == "" {
		return ErrNoSecret
	}
	ds, err := newDeckSession(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start before reading input so no change notification is missed.
	if err := ds.session.Start(ctx); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- ds.session.Run(ctx) }()

	fmt.Fprintf(out, "Driving %s as %s\n", shortChannel(cfg.Multiplex.ChannelID), describeSession(ds.session))

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		err := applyCommand(ds.deck, scanner.Text())
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, ds.deck.State())
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("reading commands", "error", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(linger):
	}
	cancel()
	return <-done
}

// applyCommand parses one command line and applies it to deck. Blank lines
// and # comments are ignored.
func applyCommand(deck *presentation.Deck, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}

	name, args := strings.ToLower(fields[0]), fields[1:]
	if name != "goto" && len(args) > 0 {
		return fmt.Errorf("%s takes no arguments", name)
	}

	moved := true
	switch name {
	case "next", "n":
		moved = deck.Next()
	case "prev", "p":
		moved = deck.Prev()
	case "down", "d":
		moved = deck.Down()
	case "up", "u":
		moved = deck.Up()
	case "goto", "g":
		h, v, err := parseGoto(args)
		if err != nil {
			return err
		}
		if cur := deck.State(); cur.IndexH == h && cur.IndexV == v {
			return nil
		}
		moved = deck.Goto(h, v)
	case "overview", "o":
		deck.SetOverview(!deck.State().Overview)
	case "pause":
		deck.SetPaused(true)
	case "resume":
		deck.SetPaused(false)
	case "state", "s":
	case "quit", "q", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q", name)
	}

	if !moved {
		return fmt.Errorf("cannot move %s from %s", name, deck.State())
	}
	return nil
}

func parseGoto(args []string) (int, int, error) {
	if len(args) < 1 || len(args) > 2 {
		return 0, 0, errors.New("usage: goto H [V]")
	}
	h, err := strconv.Atoi(args[0])
	if err != nil || h < 0 {
		return 0, 0, fmt.Errorf("invalid horizontal index %q", args[0])
	}
	v := 0
	if len(args) == 2 {
		v, err = strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return 0, 0, fmt.Errorf("invalid vertical index %q", args[1])
		}
	}
	return h, v, nil
}

func shortChannel(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}
