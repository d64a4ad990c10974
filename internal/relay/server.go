package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/thruflo/slidesync/internal/auth"
	"github.com/thruflo/slidesync/internal/config"
	"github.com/thruflo/slidesync/internal/logging"
	"github.com/thruflo/slidesync/internal/stream"
)

const (
	// maxEnvelopeSize bounds a publish request body.
	maxEnvelopeSize = 64 * 1024

	// keepaliveInterval is how often an idle SSE stream gets a comment line.
	keepaliveInterval = 15 * time.Second

	// maxVerifiedChannels bounds the verified-secret cache.
	maxVerifiedChannels = 1024
)

// Server is the relay HTTP server.
type Server struct {
	port    int
	alg     auth.Algorithm
	trace   bool
	logger  *logging.Logger
	hub     *Hub
	limiter *rateLimiter

	// verified caches secrets already checked against a channel id, so
	// costly algorithms run once per master rather than once per publish.
	verifiedMu sync.RWMutex
	verified   map[string]string

	// HTTP server
	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	closing  chan struct{}
	started  bool
}

// Config holds server configuration options.
type Config struct {
	Port      int
	Algorithm auth.Algorithm
	// Trace logs every forwarded envelope at info level.
	Trace     bool
	QueueSize int
	RateLimit RateLimitConfig
	Logger    *logging.Logger
}

// NewServer creates a new Server instance.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	alg, err := auth.ParseAlgorithm(string(cfg.Algorithm))
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Server{
		port:     cfg.Port,
		alg:      alg,
		trace:    cfg.Trace,
		logger:   logger.With("component", "relay"),
		hub:      NewHub(cfg.QueueSize),
		limiter:  newRateLimiter(cfg.RateLimit),
		verified: make(map[string]string),
		closing:  make(chan struct{}),
	}, nil
}

// NewServerFromConfig creates a new Server from the relay section of the config file.
func NewServerFromConfig(cfg *config.Relay, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("relay config is required")
	}
	return NewServer(&Config{
		Port:      cfg.Port,
		Algorithm: auth.Algorithm(cfg.HashAlgorithm),
		Trace:     cfg.Trace,
		RateLimit: DefaultRateLimitConfig(),
		Logger:    logger,
	})
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Hub returns the subscriber hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the relay's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/subscribe", s.handleSubscribe)
	mux.HandleFunc("/publish", s.handlePublish)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start starts the HTTP server.
// The server runs until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	addr := fmt.Sprintf(":%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	// Each run gets its own closing channel so the server can be restarted.
	closing := make(chan struct{})
	s.closing = closing

	// No write timeout: subscriptions are long-lived streams.
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("relay listening", "addr", listener.Addr().String(), "hash", string(s.alg))

	go s.cleanupLoop(ctx, closing)
	go func() {
		select {
		case <-ctx.Done():
		case <-closing:
			return
		}
		if err := s.Stop(); err != nil {
			s.logger.Warn("relay shutdown", "error", err)
		}
	}()

	err = s.server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop ends all subscriptions and gracefully shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started || s.server == nil {
		s.mu.Unlock()
		return nil
	}
	close(s.closing)
	server := s.server
	s.started = false
	s.listener = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// ListenAddr returns the actual address the server is listening on.
// Useful when port 0 is used to get an available port.
// Returns empty string if not started.
func (s *Server) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// closingCh returns the closing channel of the current run.
func (s *Server) closingCh() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closing
}

func (s *Server) cleanupLoop(ctx context.Context, closing <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closing:
			return
		case <-ticker.C:
			s.limiter.cleanup()
		}
	}
}

// handleSubscribe handles GET /subscribe with Server-Sent Events.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := s.hub.subscribe(channel)
	defer s.hub.unsubscribe(sub)

	log := s.logger.WithFields(map[string]any{"channel": shortID(channel), "conn": sub.id})
	log.Debug("subscriber connected")
	defer log.Debug("subscriber disconnected")

	hello, err := json.Marshal(stream.Hello{ConnectionID: sub.id, Channel: channel})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	writeFrame(w, stream.FrameHello, hello)
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	closing := s.closingCh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-closing:
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case frame := <-sub.frames:
			writeFrame(w, stream.FrameStateChanged, frame)
			flusher.Flush()
		}
	}
}

// writeFrame writes one SSE frame. data is single-line JSON.
func writeFrame(w http.ResponseWriter, name string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

// handlePublish handles POST /publish.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if name := r.URL.Query().Get("event"); name != "" && name != stream.EventStateChanged {
		http.Error(w, "unknown event", http.StatusBadRequest)
		return
	}

	ip := extractIP(r)
	if allowed, retryAfter := s.limiter.check(ip); !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
		http.Error(w, "too many failed attempts", http.StatusTooManyRequests)
		return
	}

	var env stream.Envelope
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeSize))
	if err := dec.Decode(&env); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if env.ChannelID == "" {
		http.Error(w, "socketId is required", http.StatusBadRequest)
		return
	}

	if !s.authorized(env.Secret, env.ChannelID) {
		s.logger.Warn("refused to forward", "channel", shortID(env.ChannelID), "ip", ip)
		if block := s.limiter.recordFailure(ip); block > 0 {
			s.logger.Warn("blocking publisher", "ip", ip, "duration", block)
		}
		http.Error(w, "refused to forward", http.StatusForbidden)
		return
	}
	s.limiter.recordSuccess(ip)

	env.Secret = ""
	if s.trace {
		s.logger.Info("forward", "channel", shortID(env.ChannelID), "state", env.State)
	}

	frame, err := env.Marshal()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	delivered := s.hub.Broadcast(env.ChannelID, frame, r.Header.Get(stream.HeaderConnection))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stream.PublishResult{Delivered: delivered})
}

// unsetSecret is what browser followers send when no secret is configured.
const unsetSecret = "undefined"

// authorized reports whether secret controls channel. Malformed channel ids
// are refused like wrong secrets.
func (s *Server) authorized(secret, channel string) bool {
	if secret == "" || secret == unsetSecret {
		return false
	}

	s.verifiedMu.RLock()
	cached, ok := s.verified[channel]
	s.verifiedMu.RUnlock()
	if ok && cached == secret {
		return true
	}

	valid, err := auth.Verify(secret, channel, s.alg)
	if err != nil {
		s.logger.Debug("secret verification failed", "error", err)
		return false
	}
	if !valid {
		return false
	}

	s.verifiedMu.Lock()
	if len(s.verified) >= maxVerifiedChannels {
		s.verified = make(map[string]string)
	}
	s.verified[channel] = secret
	s.verifiedMu.Unlock()
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// shortID truncates a channel id for log output.
func shortID(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}
