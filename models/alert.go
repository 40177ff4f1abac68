package models

// AlertType identifies the direction of a rapid move.
type AlertType string

const (
	AlertRapidDrop    AlertType = "rapid_drop"
	AlertRapidRebound AlertType = "rapid_rebound"
)

// AnchorTypePeak and AnchorTypeTrough label the local extreme a move is
// measured from.
const (
	AnchorTypePeak   = "peak"
	AnchorTypeTrough = "trough"
)

// ReferenceBlock carries the alert's reference prices. The producer's
// schema grew over time, so most fields are optional and several name the
// same quantity; resolution order lives in state/resolver.go.
type ReferenceBlock struct {
	Open  *float64 `json:"open"`
	Close *float64 `json:"close"`
	Low   *float64 `json:"low"`
	High  *float64 `json:"high"`

	// first schema generation
	PeakPrice      *float64 `json:"peak_price"`
	PeakTs         *int64   `json:"peak_ts"`
	CurrentPrice   *float64 `json:"current_price"`
	CurrentTs      *int64   `json:"current_ts"`
	DropFromPeak   *float64 `json:"drop_from_peak"`
	RiseFromTrough *float64 `json:"rise_from_trough"`

	// second schema generation
	AnchorType         *string  `json:"anchor_type"`
	AnchorPrice        *float64 `json:"anchor_price"`
	AnchorTs           *int64   `json:"anchor_ts"`
	AnchorPctFromOpen  *float64 `json:"anchor_pct_from_open"`
	CurrentPctFromOpen *float64 `json:"current_pct_from_open"`
	MoveFromAnchor     *float64 `json:"move_from_anchor"`
}

// AlertRecord is one accepted alert. Immutable once inserted into the log.
type AlertRecord struct {
	Symbol        string         `json:"symbol"`
	AlertType     AlertType      `json:"alert_type"`
	Magnitude     float64        `json:"magnitude"`
	WindowMinutes int            `json:"window_minutes"`
	Ts            int64          `json:"ts"`
	Reference     ReferenceBlock `json:"reference"`
}

// DedupKey is the composite identity used to suppress duplicate delivery.
// The producer assigns no ids, so identity is structural.
type DedupKey struct {
	Symbol    string
	AlertType AlertType
	Ts        int64
	Magnitude float64
}

func (a AlertRecord) DedupKey() DedupKey {
	return DedupKey{
		Symbol:    a.Symbol,
		AlertType: a.AlertType,
		Ts:        a.Ts,
		Magnitude: a.Magnitude,
	}
}
