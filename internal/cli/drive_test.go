package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/slidesync/internal/config"
	"github.com/thruflo/slidesync/internal/logging"
	"github.com/thruflo/slidesync/internal/presentation"
	"github.com/thruflo/slidesync/internal/relay"
	"github.com/thruflo/slidesync/internal/testutil"
)

func TestApplyCommand(t *testing.T) {
	t.Parallel()

	deck := presentation.NewDeck(nil)

	steps := []struct {
		line    string
		want    presentation.State
		wantErr string
	}{
		{line: "", want: presentation.State{}},
		{line: "# comment", want: presentation.State{}},
		{line: "next", want: presentation.State{IndexH: 1}},
		{line: "down", want: presentation.State{IndexH: 1, IndexV: 1}},
		{line: "up", want: presentation.State{IndexH: 1}},
		{line: "up", want: presentation.State{IndexH: 1}, wantErr: "cannot move"},
		{line: "goto 4 2", want: presentation.State{IndexH: 4, IndexV: 2}},
		{line: "goto 4 2", want: presentation.State{IndexH: 4, IndexV: 2}},
		{line: "GOTO 3", want: presentation.State{IndexH: 3}},
		{line: "prev", want: presentation.State{IndexH: 2}},
		{line: "overview", want: presentation.State{IndexH: 2, Overview: true}},
		{line: "o", want: presentation.State{IndexH: 2}},
		{line: "pause", want: presentation.State{IndexH: 2, Paused: true}},
		{line: "resume", want: presentation.State{IndexH: 2}},
		{line: "state", want: presentation.State{IndexH: 2}},
		{line: "next 2", want: presentation.State{IndexH: 2}, wantErr: "takes no arguments"},
		{line: "goto x", want: presentation.State{IndexH: 2}, wantErr: "invalid horizontal index"},
		{line: "goto 1 -1", want: presentation.State{IndexH: 2}, wantErr: "invalid vertical index"},
		{line: "goto", want: presentation.State{IndexH: 2}, wantErr: "usage"},
		{line: "jump", want: presentation.State{IndexH: 2}, wantErr: "unknown command"},
	}

	for _, step := range steps {
		err := applyCommand(deck, step.line)
		if step.wantErr != "" {
			require.Error(t, err, step.line)
			assert.Contains(t, err.Error(), step.wantErr, step.line)
		} else {
			require.NoError(t, err, step.line)
		}
		testutil.AssertSameState(t, step.want, deck.State())
	}

	assert.ErrorIs(t, applyCommand(deck, "quit"), errQuit)
}

func TestDrive_RequiresSecret(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Multiplex.ChannelID = testutil.SampleChannelID
	cfg.Multiplex.RelayAddress = testutil.SampleRelayAddress

	err := drive(context.Background(), &cfg, strings.NewReader(""), &bytes.Buffer{}, logging.Discard(), 0)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestDrive_RequiresChannel(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Multiplex.Secret = testutil.SampleSecret

	err := drive(context.Background(), &cfg, strings.NewReader(""), &bytes.Buffer{}, logging.Discard(), 0)
	assert.ErrorIs(t, err, ErrNoChannel)

	err = follow(context.Background(), &cfg, &bytes.Buffer{}, logging.Discard())
	assert.ErrorIs(t, err, ErrNoChannel)
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDriveAndFollow(t *testing.T) {
	t.Parallel()

	srv, err := relay.NewServer(&relay.Config{Logger: logging.Discard()})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg := config.DefaultConfig()
	cfg.Multiplex.ChannelID = testutil.SampleChannelID
	cfg.Multiplex.RelayAddress = ts.URL
	cfg.Multiplex.Secret = testutil.SampleSecret
	cfg.Debug.DuringInit = false

	ctx, cancel := testutil.RelayContext(t)
	defer cancel()

	// The follower holds the secret too; as a receiver it must not broadcast.
	followCtx, stopFollow := context.WithCancel(ctx)
	var followed syncBuffer
	followDone := make(chan error, 1)
	go func() { followDone <- follow(followCtx, &cfg, &followed, logging.Discard()) }()
	t.Cleanup(func() {
		stopFollow()
		<-followDone
	})

	require.Eventually(t, func() bool {
		return srv.Hub().Subscribers(testutil.SampleChannelID) == 1
	}, testutil.DefaultEventWait, testutil.DefaultPollInterval, "follower subscribed")

	var driven bytes.Buffer
	input := strings.NewReader("next\ngoto 4 1\noverview\nquit\nnext\n")
	require.NoError(t, drive(ctx, &cfg, input, &driven, logging.Discard(), time.Second))

	assert.Contains(t, driven.String(), "Driving 03c7c0ace3")
	assert.Contains(t, driven.String(), "h=4 v=1")
	assert.NotContains(t, driven.String(), "h=5", "commands after quit are ignored")

	require.Eventually(t, func() bool {
		return strings.Contains(followed.String(), `{"indexh":4,"indexv":1,"paused":false,"overview":true}`)
	}, testutil.DefaultEventWait, testutil.DefaultPollInterval, "follower reached the final state")

	lines := strings.Split(strings.TrimSpace(followed.String()), "\n")
	var last presentation.State
	testutil.MustUnmarshalJSON(t, []byte(lines[len(lines)-1]), &last)
	assert.Equal(t, presentation.State{IndexH: 4, IndexV: 1, Overview: true}, last)
}
