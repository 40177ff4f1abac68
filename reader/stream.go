package reader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	appconfig "pulsefeed/config"
	"pulsefeed/internal/clock"
	"pulsefeed/logger"
	"pulsefeed/models"
)

// ConnState is the observable connection lifecycle state. It exists for
// the status indicator; nothing else may branch on it.
type ConnState string

const (
	StateConnecting ConnState = "connecting"
	StateOpen       ConnState = "open"
	StateClosed     ConnState = "closed"
)

// StreamReader owns the websocket transport to the feed producer. It
// dials, forwards inbound frames to the raw channel and schedules
// reconnects on failure. At most one transport and one pending reconnect
// timer exist at any time.
type StreamReader struct {
	config *appconfig.Config
	url    string
	frames chan<- models.RawFrame
	clock  clock.Clock
	log    *logger.Log

	mu       sync.Mutex
	ctx      context.Context
	running  bool
	torn     bool
	state    ConnState
	conn     *websocket.Conn
	pending  clock.Timer
	attempts int

	onState func(ConnState)
	wg      sync.WaitGroup
}

// NewStreamReader creates a new stream reader for the resolved URL.
func NewStreamReader(cfg *appconfig.Config, url string, frames chan<- models.RawFrame, clk clock.Clock) *StreamReader {
	return &StreamReader{
		config: cfg,
		url:    url,
		frames: frames,
		clock:  clk,
		log:    logger.GetLogger(),
		state:  StateConnecting,
	}
}

// OnStateChange registers a listener for connection state transitions.
// Must be called before Start.
func (r *StreamReader) OnStateChange(fn func(ConnState)) {
	r.onState = fn
}

// State returns the current connection state.
func (r *StreamReader) State() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start dials the producer and begins forwarding frames.
func (r *StreamReader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("stream reader already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	r.log.WithComponent("stream_reader").WithFields(logger.Fields{"url": r.url}).Info("starting stream reader")
	r.connect()
	return nil
}

// Stop tears the reader down. The teardown order matters: mark the reader
// as torn first so the read loop cannot mistake the intentional close for
// a transport fault, then cancel any pending reconnect, then close the
// socket and wait for the read loop to drain.
func (r *StreamReader) Stop() {
	r.mu.Lock()
	r.torn = true
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
	conn := r.conn
	r.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	r.wg.Wait()
	r.setState(StateClosed)
	r.log.WithComponent("stream_reader").Info("stream reader stopped")
}

// connect launches one connection attempt. Dialing happens off the
// caller's goroutine so reconnect timers never block.
func (r *StreamReader) connect() {
	r.mu.Lock()
	if r.torn {
		r.mu.Unlock()
		return
	}
	session := uuid.NewString()
	r.mu.Unlock()

	r.setState(StateConnecting)
	r.wg.Add(1)
	go r.dialAndRead(session)
}

func (r *StreamReader) dialAndRead(session string) {
	defer r.wg.Done()

	log := r.log.WithComponent("stream_reader").WithFields(logger.Fields{"session": session})

	dialer := websocket.Dialer{HandshakeTimeout: r.config.Stream.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(r.ctx, r.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		log.WithError(err).Warn("connection failed")
		r.setState(StateClosed)
		r.scheduleReconnect()
		return
	}

	r.mu.Lock()
	if r.torn {
		r.mu.Unlock()
		_ = conn.Close()
		return
	}
	r.conn = conn
	r.attempts = 0
	r.mu.Unlock()

	r.setState(StateOpen)
	log.Info("connected to stream")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.mu.Lock()
			torn := r.torn
			r.conn = nil
			r.mu.Unlock()
			_ = conn.Close()

			if torn {
				// intentional shutdown, not a fault
				return
			}
			log.WithError(err).Warn("stream closed")
			r.setState(StateClosed)
			r.scheduleReconnect()
			return
		}

		select {
		case r.frames <- models.RawFrame{Session: session, Data: data, Timestamp: r.clock.Now()}:
		case <-r.ctx.Done():
			return
		default:
			log.WithFields(logger.Fields{"bytes": len(data)}).Warn("frame channel full, dropping frame")
		}
	}
}

// scheduleReconnect arms the fixed-delay reconnect timer unless one is
// already pending (single-flight) or the retry ceiling is exhausted.
// max_retries of zero retries forever.
func (r *StreamReader) scheduleReconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.torn || r.pending != nil {
		return
	}
	if max := r.config.Stream.MaxRetries; max > 0 && r.attempts >= max {
		r.log.WithComponent("stream_reader").WithFields(logger.Fields{"attempts": r.attempts}).Error("retry ceiling reached, giving up")
		return
	}
	r.attempts++

	delay := r.config.Stream.ReconnectDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}
	r.log.WithComponent("stream_reader").WithFields(logger.Fields{
		"delay":   delay.String(),
		"attempt": r.attempts,
	}).Info("scheduling reconnect")

	r.pending = r.clock.AfterFunc(delay, func() {
		r.mu.Lock()
		r.pending = nil
		torn := r.torn
		r.mu.Unlock()
		if torn {
			return
		}
		r.connect()
	})
}

func (r *StreamReader) setState(s ConnState) {
	r.mu.Lock()
	if r.state == s {
		r.mu.Unlock()
		return
	}
	r.state = s
	fn := r.onState
	r.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}
