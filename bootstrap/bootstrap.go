package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	appconfig "pulsefeed/config"
	"pulsefeed/logger"
	"pulsefeed/models"
	"pulsefeed/state"
)

// Loader pre-populates the alert log with the producer's recent alerts
// before (or alongside) the stream attaching. It runs exactly once; any
// failure is logged and swallowed, since streamed alerts will fill the
// log anyway.
type Loader struct {
	config *appconfig.Config
	url    string
	market *state.Market
	client *http.Client
	log    *logger.Log
}

// NewLoader creates a loader for the resolved bootstrap URL.
func NewLoader(cfg *appconfig.Config, url string, market *state.Market) *Loader {
	timeout := cfg.Bootstrap.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Loader{
		config: cfg,
		url:    url,
		market: market,
		client: &http.Client{Timeout: timeout},
		log:    logger.GetLogger(),
	}
}

// Run performs the one-shot fetch and hydrates the alert log. The
// returned error is informational; callers are not expected to retry.
func (l *Loader) Run(ctx context.Context) error {
	log := l.log.WithComponent("bootstrap").WithFields(logger.Fields{"url": l.url})

	alerts, err := l.fetch(ctx)
	if err != nil {
		log.WithError(err).Warn("bootstrap fetch failed, alert log starts empty")
		return err
	}

	l.market.ReplaceAlerts(alerts)
	log.WithFields(logger.Fields{"alerts": len(alerts)}).Info("alert log hydrated")
	return nil
}

func (l *Loader) fetch(ctx context.Context) ([]models.AlertRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build bootstrap request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bootstrap request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("bootstrap endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		Alerts []models.AlertRecord `json:"alerts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode bootstrap body: %w", err)
	}

	return body.Alerts, nil
}
