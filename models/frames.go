package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RawFrame wraps one inbound frame exactly as read off the transport.
type RawFrame struct {
	Session   string
	Data      []byte
	Timestamp time.Time
}

// PricePoint is a single charted observation. Timestamps are epoch
// milliseconds, zone-agnostic.
type PricePoint struct {
	Ts    int64   `json:"ts"`
	Price float64 `json:"price"`
}

// Frame is the tagged union of everything the producer can send.
// Decoding happens once at the boundary; downstream code only ever
// sees one of the concrete frame types.
type Frame interface {
	frame()
}

// SnapshotEntry is the per-symbol block inside a snapshot frame.
// day_open arrived later than the legacy single today_open scalar,
// so both shapes are carried.
type SnapshotEntry struct {
	Price     *float64            `json:"price"`
	DayOpen   map[string]*float64 `json:"day_open"`
	TodayOpen *float64            `json:"today_open"`
}

// SnapshotFrame replaces current known values for all symbols. A non-nil
// Alerts slice (present in the payload, even when empty) hydrates the
// alert log wholesale.
type SnapshotFrame struct {
	Data   map[string]SnapshotEntry `json:"data"`
	Alerts []AlertRecord            `json:"alerts"`
}

func (SnapshotFrame) frame() {}

// PriceFrame is one streamed tick for one symbol.
type PriceFrame struct {
	Symbol    string              `json:"symbol"`
	Price     float64             `json:"price"`
	Ts        int64               `json:"ts"`
	DayOpen   map[string]*float64 `json:"day_open"`
	TodayOpen *float64            `json:"today_open"`
}

func (PriceFrame) frame() {}

// AlertFrame carries one alert event.
type AlertFrame struct {
	AlertRecord
}

func (AlertFrame) frame() {}

type frameEnvelope struct {
	Type string `json:"type"`
}

// DecodeFrame parses a raw frame into its concrete type. Any frame that
// fails here is malformed by definition and must be dropped by the caller,
// never propagated inward.
func DecodeFrame(data []byte) (Frame, error) {
	var env frameEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}

	switch env.Type {
	case "snapshot":
		var f SnapshotFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse snapshot frame: %w", err)
		}
		return f, nil
	case "price":
		var f PriceFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse price frame: %w", err)
		}
		if f.Symbol == "" {
			return nil, fmt.Errorf("price frame missing symbol")
		}
		return f, nil
	case "alert":
		var f AlertFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse alert frame: %w", err)
		}
		if f.Symbol == "" {
			return nil, fmt.Errorf("alert frame missing symbol")
		}
		return f, nil
	case "":
		return nil, fmt.Errorf("frame missing type discriminator")
	default:
		return nil, fmt.Errorf("unknown frame type %q", env.Type)
	}
}
