package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/slidesync/internal/identity"
	"github.com/thruflo/slidesync/internal/logging"
	"github.com/thruflo/slidesync/internal/presentation"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("applies defaults", func(t *testing.T) {
		client := NewClient("http://localhost:9090/")
		assert.Equal(t, "http://localhost:9090", client.BaseURL())
		assert.Equal(t, 2*time.Second, client.reconnectInterval)
		assert.Equal(t, 0, client.maxReconnectAttempts)
		assert.Empty(t, client.ConnectionID())
	})

	t.Run("applies options", func(t *testing.T) {
		custom := &http.Client{Timeout: time.Second}
		logger := logging.Discard()
		client := NewClient("localhost:9090",
			WithHTTPClient(custom),
			WithReconnectInterval(10*time.Millisecond),
			WithMaxReconnectAttempts(3),
			WithLogger(logger),
		)
		assert.Equal(t, "http://localhost:9090", client.BaseURL())
		assert.Same(t, custom, client.httpClient)
		assert.Equal(t, 10*time.Millisecond, client.reconnectInterval)
		assert.Equal(t, 3, client.maxReconnectAttempts)
		assert.Same(t, logger, client.logger)
	})
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"10.0.0.2:9090", "http://10.0.0.2:9090"},
		{"http://relay:9090/", "http://relay:9090"},
		{"https://relay.example.com", "https://relay.example.com"},
		{" relay ", "http://relay"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAddress(tt.in), "input %q", tt.in)
	}
}

func TestClient_Ping(t *testing.T) {
	t.Parallel()

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		w.Write([]byte("ok"))
	}))
	defer ok.Close()
	require.NoError(t, NewClient(ok.URL).Ping(context.Background()))

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	err := NewClient(bad.URL).Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

// sseServer writes a hello frame followed by the given envelopes, then holds
// the connection open until the client goes away.
func sseServer(t *testing.T, connID string, envs ...*Envelope) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscribe", r.URL.Path)
		assert.Equal(t, "c1", r.URL.Query().Get("channel"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		hello, _ := json.Marshal(Hello{ConnectionID: connID, Channel: "c1"})
		fmt.Fprintf(w, "event: hello\ndata: %s\n\n", hello)
		fmt.Fprint(w, ": keepalive\n\n")
		for _, env := range envs {
			data, _ := env.Marshal()
			fmt.Fprintf(w, "event: state-changed\ndata: %s\n\n", data)
		}
		fmt.Fprint(w, "event: state-changed\ndata: {broken\n\n")
		flusher.Flush()

		<-r.Context().Done()
	}))
}

func TestClient_Subscribe(t *testing.T) {
	sender := identity.SessionID(999)
	server := sseServer(t, "conn-1",
		NewEnvelope("c1", "", presentation.State{IndexH: 5}, &sender),
		NewEnvelope("c1", "", presentation.State{IndexH: 6}, nil),
	)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewClient(server.URL, WithLogger(logging.Discard()))
	envCh, _ := client.Subscribe(ctx, "c1")

	first := <-envCh
	require.NotNil(t, first)
	assert.Equal(t, 5, first.State.IndexH)
	assert.True(t, first.FromSender(999))

	second := <-envCh
	require.NotNil(t, second)
	assert.Equal(t, 6, second.State.IndexH)
	assert.Nil(t, second.SenderID)

	assert.Equal(t, "conn-1", client.ConnectionID())

	cancel()
	for range envCh {
	}
	assert.Empty(t, client.ConnectionID())
}

func TestClient_SubscribeGivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "no", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL,
		WithReconnectInterval(time.Millisecond),
		WithMaxReconnectAttempts(3),
		WithLogger(logging.Discard()),
	)
	envCh, errCh := client.Subscribe(context.Background(), "c1")

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max reconnection attempts (3) exceeded")
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not give up")
	}

	_, open := <-envCh
	assert.False(t, open)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_Publish(t *testing.T) {
	var got *Envelope
	var gotConn string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/publish", r.URL.Path)
		assert.Equal(t, EventStateChanged, r.URL.Query().Get("event"))
		gotConn = r.Header.Get(HeaderConnection)

		body, _ := io.ReadAll(r.Body)
		env, err := UnmarshalEnvelope(body)
		assert.NoError(t, err)
		got = env

		json.NewEncoder(w).Encode(PublishResult{Delivered: 2})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithLogger(logging.Discard()))
	client.setConnectionID("conn-7")

	sender := identity.SessionID(3)
	err := client.Publish(context.Background(), EventStateChanged,
		NewEnvelope("c1", "s", presentation.State{IndexH: 3}, &sender))
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "c1", got.ChannelID)
	assert.Equal(t, "s", got.Secret)
	assert.Equal(t, 3, got.State.IndexH)
	assert.Equal(t, "conn-7", gotConn)
}

func TestClient_PublishErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "refused", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	env := NewEnvelope("c1", "wrong", presentation.State{}, nil)

	err := client.Publish(context.Background(), EventStateChanged, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")

	err = client.Publish(context.Background(), "slide-changed", env)
	assert.ErrorIs(t, err, ErrUnknownEvent)

	err = client.Publish(context.Background(), EventStateChanged, nil)
	assert.Error(t, err)
}
