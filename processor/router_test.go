package processor

import (
	"context"
	"testing"
	"time"

	appconfig "pulsefeed/config"
	"pulsefeed/models"
	"pulsefeed/state"
)

func minimalConfig() *appconfig.Config {
	cfg := &appconfig.Config{}
	cfg.Market.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	cfg.Market.Timezones = map[string]string{"utc": "UTC", "beijing": "Asia/Shanghai"}
	cfg.Market.DisplayTimezone = "utc"
	cfg.Market.SeriesCapacity = 240
	cfg.Market.AlertCapacity = 50
	cfg.Channels.FrameBuffer = 8
	return cfg
}

func TestRouterStartStop(t *testing.T) {
	cfg := minimalConfig()
	frames := make(chan models.RawFrame)
	r := NewRouter(cfg, frames, state.NewMarket(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.Start(ctx); err == nil {
		t.Fatalf("expected error on second start")
	}
	cancel()
	r.Stop()
}

func TestRouterRoutesFrames(t *testing.T) {
	cfg := minimalConfig()
	market := state.NewMarket(cfg)
	r := NewRouter(cfg, nil, market)

	r.handleFrame(models.RawFrame{
		Data:      []byte(`{"type":"snapshot","data":{"BTCUSDT":{"price":65000,"day_open":{"utc":64000}}}}`),
		Timestamp: time.Now(),
	})
	r.handleFrame(models.RawFrame{
		Data:      []byte(`{"type":"price","symbol":"BTCUSDT","price":65100,"ts":1700000000000}`),
		Timestamp: time.Now(),
	})
	r.handleFrame(models.RawFrame{
		Data:      []byte(`{"type":"alert","symbol":"BTCUSDT","alert_type":"rapid_drop","magnitude":0.01,"window_minutes":5,"ts":1700000000000,"reference":{"open":64000}}`),
		Timestamp: time.Now(),
	})

	if v, ok := market.LastPrice("BTCUSDT"); !ok || v != 65100 {
		t.Errorf("unexpected last price: %v %v", v, ok)
	}
	if v, ok := market.DayOpen("utc", "BTCUSDT"); !ok || v != 64000 {
		t.Errorf("unexpected day open: %v %v", v, ok)
	}
	if got := market.Series("BTCUSDT"); len(got) != 1 {
		t.Errorf("expected one chart point, got %d", len(got))
	}
	if got := market.Alerts(); len(got) != 1 {
		t.Errorf("expected one alert, got %d", len(got))
	}
}

func TestRouterDropsMalformedFrames(t *testing.T) {
	cfg := minimalConfig()
	market := state.NewMarket(cfg)
	r := NewRouter(cfg, nil, market)

	r.handleFrame(models.RawFrame{Data: []byte(`{"type":"price",`)})
	r.handleFrame(models.RawFrame{Data: []byte(`{"no":"type"}`)})
	// subsequent valid frames must still be processed
	r.handleFrame(models.RawFrame{
		Data: []byte(`{"type":"price","symbol":"ETHUSDT","price":3300,"ts":1}`),
	})

	if v, ok := market.LastPrice("ETHUSDT"); !ok || v != 3300 {
		t.Errorf("valid frame after malformed ones must apply: %v %v", v, ok)
	}
}

func TestRouterDuplicateAlertSilentlyDropped(t *testing.T) {
	cfg := minimalConfig()
	market := state.NewMarket(cfg)
	r := NewRouter(cfg, nil, market)

	alert := []byte(`{"type":"alert","symbol":"ETHUSDT","alert_type":"rapid_rebound","magnitude":0.005,"window_minutes":5,"ts":42,"reference":{}}`)
	r.handleFrame(models.RawFrame{Data: alert})
	r.handleFrame(models.RawFrame{Data: alert})

	if got := market.Alerts(); len(got) != 1 {
		t.Errorf("duplicate alert must not grow the log, got %d", len(got))
	}
}

func TestRouterDrainsChannel(t *testing.T) {
	cfg := minimalConfig()
	market := state.NewMarket(cfg)
	frames := make(chan models.RawFrame, 4)
	r := NewRouter(cfg, frames, market)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	frames <- models.RawFrame{Data: []byte(`{"type":"price","symbol":"BTCUSDT","price":64000,"ts":1}`)}
	close(frames)
	r.Stop()

	if v, ok := market.LastPrice("BTCUSDT"); !ok || v != 64000 {
		t.Errorf("frame not applied before stop: %v %v", v, ok)
	}
}
