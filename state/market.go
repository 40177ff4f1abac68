package state

import (
	"sync"

	appconfig "pulsefeed/config"
	"pulsefeed/logger"
	"pulsefeed/models"
)

// Market is the reconciled in-memory view of the feed: last prices, the
// per-timezone day-open matrix, per-symbol chart series and the alert
// log. Mutation happens only through ApplySnapshot/ApplyPrice/ApplyAlert
// (plus ReplaceAlerts for the bootstrap loader); the presentation layer
// gets read-only copies. One mutex spans all four stores so a single
// frame's effects are observed atomically.
type Market struct {
	mu sync.RWMutex

	refs   *referenceStore
	series map[string]*SeriesBuffer
	alerts *AlertLog

	displayZone string
	log         *logger.Log
}

func NewMarket(cfg *appconfig.Config) *Market {
	zones := make([]string, 0, len(cfg.Market.Timezones))
	for zone := range cfg.Market.Timezones {
		zones = append(zones, zone)
	}

	series := make(map[string]*SeriesBuffer, len(cfg.Market.Symbols))
	for _, sym := range cfg.Market.Symbols {
		series[sym] = NewSeriesBuffer(cfg.Market.SeriesCapacity)
	}

	return &Market{
		refs:        newReferenceStore(zones, cfg.Market.Symbols),
		series:      series,
		alerts:      NewAlertLog(cfg.Market.AlertCapacity),
		displayZone: cfg.Market.DisplayTimezone,
		log:         logger.GetLogger(),
	}
}

// ApplySnapshot overwrites last prices and merges day opens for every
// symbol present. A present alerts array hydrates the alert log wholesale.
// Snapshots never touch the chart series.
func (m *Market) ApplySnapshot(frame models.SnapshotFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sym, entry := range frame.Data {
		if !m.refs.tracks(sym) {
			continue
		}
		if entry.Price != nil {
			m.refs.setLastPrice(sym, *entry.Price)
		}
		m.refs.mergeDayOpen(sym, entry.DayOpen, entry.TodayOpen)
	}

	if frame.Alerts != nil {
		m.alerts.Replace(frame.Alerts)
	}
}

// ApplyPrice records one tick: last price, day-open merge and a point on
// the symbol's chart series.
func (m *Market) ApplyPrice(frame models.PriceFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.refs.tracks(frame.Symbol) {
		return
	}
	m.refs.setLastPrice(frame.Symbol, frame.Price)
	m.refs.mergeDayOpen(frame.Symbol, frame.DayOpen, frame.TodayOpen)
	m.series[frame.Symbol].Push(frame.Ts, frame.Price)
}

// ApplyAlert inserts a streamed alert, dropping idempotent re-deliveries.
// Reports whether the alert was new.
func (m *Market) ApplyAlert(rec models.AlertRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alerts.Insert(rec)
}

// ReplaceAlerts hydrates the alert log from the bootstrap endpoint.
func (m *Market) ReplaceAlerts(recs []models.AlertRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts.Replace(recs)
}

// LastPrice returns the most recent price for a symbol.
func (m *Market) LastPrice(symbol string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refs.lastPrice(symbol)
}

// DayOpen returns the day-open price for a symbol in a timezone.
func (m *Market) DayOpen(zone, symbol string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refs.dayOpen(zone, symbol)
}

// PctFromOpen derives the percentage from the day open in a timezone.
func (m *Market) PctFromOpen(zone, symbol string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refs.pctFromOpen(zone, symbol)
}

// DisplayPctFromOpen derives the percentage in the configured display
// timezone.
func (m *Market) DisplayPctFromOpen(symbol string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refs.pctFromOpen(m.displayZone, symbol)
}

// Series returns a copy of the chart series for a symbol, oldest first.
func (m *Market) Series(symbol string) []models.PricePoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	buf, ok := m.series[symbol]
	if !ok {
		return []models.PricePoint{}
	}
	return buf.Points()
}

// Alerts returns a copy of the alert log, newest first.
func (m *Market) Alerts() []models.AlertRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alerts.Records()
}
