package reader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	appconfig "pulsefeed/config"
	"pulsefeed/internal/clock"
	"pulsefeed/models"
)

func testConfig() *appconfig.Config {
	cfg := &appconfig.Config{}
	cfg.Stream.ReconnectDelay = 3 * time.Second
	cfg.Stream.HandshakeTimeout = time.Second
	return cfg
}

// newStreamServer upgrades every request and hands the connection to fn.
func newStreamServer(t *testing.T, fn func(*websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fn(conn)
	}))
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStreamReaderForwardsFrames(t *testing.T) {
	payload := `{"type":"price","symbol":"BTCUSDT","price":65000,"ts":1}`
	srv, url := newStreamServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(payload))
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	frames := make(chan models.RawFrame, 4)
	r := NewStreamReader(testConfig(), url, frames, clock.New())
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	select {
	case frame := <-frames:
		if string(frame.Data) != payload {
			t.Errorf("unexpected frame: %s", frame.Data)
		}
		if frame.Session == "" {
			t.Errorf("frame must carry a session id")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no frame received")
	}

	if r.State() != StateOpen {
		t.Errorf("expected open state, got %s", r.State())
	}
}

func TestStreamReaderDoubleStart(t *testing.T) {
	frames := make(chan models.RawFrame, 1)
	r := NewStreamReader(testConfig(), "ws://127.0.0.1:0/stream", frames, clock.NewFake())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.Start(ctx); err == nil {
		t.Fatalf("expected error on second start")
	}
	r.Stop()
}

func TestReconnectSingleFlight(t *testing.T) {
	clk := clock.NewFake()
	frames := make(chan models.RawFrame, 1)
	r := NewStreamReader(testConfig(), "ws://127.0.0.1:0/stream", frames, clk)
	r.ctx = context.Background()

	// two back-to-back close events before the delay elapses
	r.scheduleReconnect()
	r.scheduleReconnect()

	if got := clk.Pending(); got != 1 {
		t.Fatalf("expected exactly one pending reconnect timer, got %d", got)
	}
	if r.attempts != 1 {
		t.Fatalf("expected one attempt recorded, got %d", r.attempts)
	}
}

func TestReconnectRetryCeiling(t *testing.T) {
	clk := clock.NewFake()
	cfg := testConfig()
	cfg.Stream.MaxRetries = 2
	frames := make(chan models.RawFrame, 1)
	r := NewStreamReader(cfg, "ws://127.0.0.1:0/stream", frames, clk)
	r.ctx = context.Background()

	for i := 0; i < 3; i++ {
		r.scheduleReconnect()
		// simulate the timer firing without the dial
		r.mu.Lock()
		if r.pending != nil {
			r.pending.Stop()
			r.pending = nil
		}
		r.mu.Unlock()
	}

	if r.attempts != 2 {
		t.Fatalf("expected attempts capped at 2, got %d", r.attempts)
	}
	if got := clk.Pending(); got != 0 {
		t.Fatalf("expected no timer past the ceiling, got %d", got)
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	var mu sync.Mutex
	accepted := 0
	srv, url := newStreamServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		accepted++
		first := accepted == 1
		mu.Unlock()
		if first {
			// drop the first connection immediately
			_ = conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	clk := clock.NewFake()
	frames := make(chan models.RawFrame, 4)
	r := NewStreamReader(testConfig(), url, frames, clk)

	var transitions []ConnState
	var tmu sync.Mutex
	r.OnStateChange(func(s ConnState) {
		tmu.Lock()
		transitions = append(transitions, s)
		tmu.Unlock()
	})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	// first connection opens, then the server drops it and a reconnect
	// timer is armed
	waitFor(t, "reconnect timer", func() bool { return clk.Pending() == 1 })

	clk.Advance(3 * time.Second)
	waitFor(t, "second connection", func() bool { return r.State() == StateOpen })

	mu.Lock()
	total := accepted
	mu.Unlock()
	if total != 2 {
		t.Errorf("expected exactly 2 connections, got %d", total)
	}

	tmu.Lock()
	defer tmu.Unlock()
	want := []ConnState{StateOpen, StateClosed, StateConnecting, StateOpen}
	if len(transitions) != len(want) {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
	for i, s := range want {
		if transitions[i] != s {
			t.Fatalf("transition %d: want %s, got %v", i, s, transitions)
		}
	}
}

func TestStopCancelsPendingReconnect(t *testing.T) {
	clk := clock.NewFake()
	frames := make(chan models.RawFrame, 1)
	r := NewStreamReader(testConfig(), "ws://127.0.0.1:0/stream", frames, clk)
	r.ctx = context.Background()

	r.scheduleReconnect()
	if clk.Pending() != 1 {
		t.Fatalf("expected pending timer before stop")
	}

	r.Stop()
	if clk.Pending() != 0 {
		t.Fatalf("stop must cancel the pending reconnect timer")
	}
	if r.State() != StateClosed {
		t.Errorf("expected closed after stop, got %s", r.State())
	}

	// a late firing instant must not resurrect the connection
	clk.Advance(time.Minute)
	if clk.Pending() != 0 || r.State() != StateClosed {
		t.Errorf("reader resurrected after stop")
	}
}

func TestStopDoesNotTriggerReconnect(t *testing.T) {
	srv, url := newStreamServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	clk := clock.NewFake()
	frames := make(chan models.RawFrame, 4)
	r := NewStreamReader(testConfig(), url, frames, clk)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "connection open", func() bool { return r.State() == StateOpen })

	r.Stop()

	if clk.Pending() != 0 {
		t.Errorf("intentional shutdown must not schedule a reconnect")
	}
	if r.State() != StateClosed {
		t.Errorf("expected closed after stop, got %s", r.State())
	}
}
