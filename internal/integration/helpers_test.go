//go:build integration

// helpers_test.go starts real relays and wires full sessions to them.
package integration

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/thruflo/slidesync/internal/event"
	"github.com/thruflo/slidesync/internal/logging"
	"github.com/thruflo/slidesync/internal/multiplex"
	"github.com/thruflo/slidesync/internal/presentation"
	"github.com/thruflo/slidesync/internal/relay"
	"github.com/thruflo/slidesync/internal/stream"
	"github.com/thruflo/slidesync/internal/testutil"
)

// startRelay runs a relay on port (0 for any) until the test ends or stop is
// called, and returns its address.
func startRelay(t *testing.T, port int) (srv *relay.Server, addr string, stop func()) {
	t.Helper()

	srv, err := relay.NewServer(&relay.Config{Port: port, Logger: logging.Discard()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool {
		return srv.ListenAddr() != ""
	}, testutil.DefaultEventWait, testutil.DefaultPollInterval, "relay listening")

	_, p, err := net.SplitHostPort(srv.ListenAddr())
	require.NoError(t, err)

	stopped := false
	stop = func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		require.NoError(t, <-done)
	}
	t.Cleanup(stop)
	return srv, "127.0.0.1:" + p, stop
}

// freePort returns a port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	_, p, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	return port
}

// fixedID is an identity source that always yields the same identity.
type fixedID int

func (f fixedID) IntN(n int) int { return int(f) % n }

// countingRelay counts publishes made through a relay client.
type countingRelay struct {
	*stream.Client
	published atomic.Int32
}

func (r *countingRelay) Publish(ctx context.Context, eventName string, env *stream.Envelope) error {
	r.published.Add(1)
	return r.Client.Publish(ctx, eventName, env)
}

// peer is one running presentation instance.
type peer struct {
	deck    *presentation.Deck
	relay   *countingRelay
	session *multiplex.Session
}

// startPeer runs a session on a fresh deck until the test ends. An empty
// secret makes a follower.
func startPeer(t *testing.T, addr, secret string, opts ...multiplex.Option) *peer {
	t.Helper()

	bus := event.NewBus()
	deck := presentation.NewDeck(bus)
	client := &countingRelay{Client: stream.NewClient(addr,
		stream.WithLogger(logging.Discard()),
		stream.WithReconnectInterval(50*time.Millisecond))}

	cfg := multiplex.ChannelConfig{
		ChannelID:    testutil.SampleChannelID,
		RelayAddress: addr,
		Secret:       secret,
	}
	opts = append([]multiplex.Option{
		multiplex.WithLogger(logging.Discard()),
		multiplex.WithDebug(false, false),
	}, opts...)
	s := multiplex.NewSession(cfg, deck, client, bus, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &peer{deck: deck, relay: client, session: s}
}
