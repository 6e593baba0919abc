package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dexagent/internal/domain"
	"dexagent/internal/observability"
)

// StreamConfig configures the websocket pair feed.
type StreamConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// PairStream is a reconnecting websocket feed of live pair updates for a
// watched set of token addresses. Updates arrive on a buffered channel;
// the feed resubscribes the full watch set after every reconnect.
type PairStream struct {
	endpoint string
	config   StreamConfig
	logger   zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	watched   map[string]struct{}
	watchedMu sync.Mutex

	updates chan domain.TokenSnapshot
	done    chan struct{}
	wg      sync.WaitGroup

	reconnecting atomic.Bool
}

// NewPairStream connects to the endpoint and starts the read and ping
// loops.
func NewPairStream(ctx context.Context, endpoint string, logger zerolog.Logger, config *StreamConfig) (*PairStream, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	s := &PairStream{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger.With().Str("component", "pair-stream").Logger(),
		watched:  make(map[string]struct{}),
		updates:  make(chan domain.TokenSnapshot, 1024),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

func (s *PairStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// streamRequest is the subscribe frame sent to the feed.
type streamRequest struct {
	Type      string   `json:"type"`
	Addresses []string `json:"addresses"`
}

// streamMessage is one inbound frame.
type streamMessage struct {
	Type string    `json:"type"`
	Pair *wirePair `json:"pair"`
}

// Watch adds addresses to the subscription and sends the updated watch set.
func (s *PairStream) Watch(addresses ...string) error {
	if s.closed.Load() {
		return fmt.Errorf("stream closed")
	}

	s.watchedMu.Lock()
	for _, addr := range addresses {
		s.watched[addr] = struct{}{}
	}
	s.watchedMu.Unlock()

	return s.sendWatchSet()
}

func (s *PairStream) sendWatchSet() error {
	s.watchedMu.Lock()
	all := make([]string, 0, len(s.watched))
	for addr := range s.watched {
		all = append(all, addr)
	}
	s.watchedMu.Unlock()

	if len(all) == 0 {
		return nil
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(streamRequest{Type: "subscribe", Addresses: all}); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Updates returns the stream of pair snapshots. The channel closes when the
// stream is closed.
func (s *PairStream) Updates() <-chan domain.TokenSnapshot {
	return s.updates
}

// Close shuts the stream down and closes the updates channel.
func (s *PairStream) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.updates)
	return nil
}

// readLoop reads frames and dispatches pair updates, reconnecting with
// exponential backoff on connection errors.
func (s *PairStream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

func (s *PairStream) handleMessage(message []byte) {
	var msg streamMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		s.logger.Warn().Err(err).Msg("undecodable frame")
		return
	}
	if msg.Type != "pair" || msg.Pair == nil {
		return
	}

	select {
	case s.updates <- msg.Pair.snapshot():
	case <-s.done:
	default:
		// Consumer is behind; dropping the oldest update would need a
		// second goroutine, dropping the newest is good enough for a
		// price feed.
		observability.RecordStreamDrop()
		s.logger.Warn().Msg("updates channel full, dropping pair update")
	}
}

// reconnect re-dials and resubscribes the watch set.
func (s *PairStream) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}
	observability.RecordStreamReconnect()

	if err := s.sendWatchSet(); err != nil {
		s.logger.Warn().Err(err).Msg("resubscribe after reconnect failed")
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *PairStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			s.connMu.Unlock()
		}
	}
}
