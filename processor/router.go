package processor

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	appconfig "pulsefeed/config"
	"pulsefeed/logger"
	"pulsefeed/models"
	"pulsefeed/state"
)

// Router consumes raw frames from the stream channel, decodes them and
// applies them to the market state. A single worker drains the channel so
// every frame's effects run to completion before the next frame starts.
// Malformed frames are logged and dropped, never fatal.
type Router struct {
	config  *appconfig.Config
	frames  <-chan models.RawFrame
	market  *state.Market
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log

	// throttles malformed-frame logging so a broken producer cannot
	// flood the log
	badFrameLog *rate.Limiter
}

// NewRouter creates a new router instance.
func NewRouter(cfg *appconfig.Config, frames <-chan models.RawFrame, market *state.Market) *Router {
	return &Router{
		config:      cfg,
		frames:      frames,
		market:      market,
		wg:          &sync.WaitGroup{},
		log:         logger.GetLogger(),
		badFrameLog: rate.NewLimiter(rate.Limit(1), 5),
	}
}

// Start begins routing frames from the raw channel.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("router already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	log := r.log.WithComponent("router").WithFields(logger.Fields{"operation": "start"})
	log.Info("starting router")

	r.wg.Add(1)
	go r.worker()

	log.Info("router started successfully")
	return nil
}

// Stop signals the worker and waits for completion.
func (r *Router) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("router").Info("stopping router")
	r.wg.Wait()
	r.log.WithComponent("router").Info("router stopped")
}

func (r *Router) worker() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.frames:
			if !ok {
				return
			}
			r.handleFrame(raw)
		}
	}
}

func (r *Router) handleFrame(raw models.RawFrame) {
	log := r.log.WithComponent("router").WithFields(logger.Fields{"session": raw.Session})

	frame, err := models.DecodeFrame(raw.Data)
	if err != nil {
		if r.badFrameLog.Allow() {
			log.WithError(err).WithFields(logger.Fields{"bytes": len(raw.Data)}).Warn("dropping malformed frame")
		}
		return
	}

	switch f := frame.(type) {
	case models.SnapshotFrame:
		r.market.ApplySnapshot(f)
		log.WithFields(logger.Fields{
			"symbols": len(f.Data),
			"alerts":  len(f.Alerts),
		}).Info("applied snapshot")
	case models.PriceFrame:
		r.market.ApplyPrice(f)
		log.WithFields(logger.Fields{
			"symbol": f.Symbol,
			"price":  f.Price,
		}).Debug("applied price")
	case models.AlertFrame:
		if r.market.ApplyAlert(f.AlertRecord) {
			log.WithFields(logger.Fields{
				"symbol":     f.Symbol,
				"alert_type": f.AlertType,
				"magnitude":  f.Magnitude,
			}).Info("applied alert")
		} else {
			log.WithFields(logger.Fields{
				"symbol":     f.Symbol,
				"alert_type": f.AlertType,
			}).Debug("dropped duplicate alert")
		}
	}
}
