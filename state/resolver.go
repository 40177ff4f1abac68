package state

import (
	"math"

	"pulsefeed/models"
)

// Derived-field resolution for alert records. The producer's reference
// block went through two schema generations, so every derived quantity is
// an ordered fallback chain: first present non-null value wins. All
// functions are pure; the boolean result is false when no generation
// carries the value.

// AnchorPrice resolves the local extreme the move was measured from:
// explicit anchor price, then legacy peak price, then legacy high.
func AnchorPrice(a models.AlertRecord) (float64, bool) {
	ref := a.Reference
	for _, v := range []*float64{ref.AnchorPrice, ref.PeakPrice, ref.High} {
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}

// AnchorTimestamp resolves the anchor time: explicit anchor timestamp,
// then legacy peak timestamp, then the alert timestamp itself.
func AnchorTimestamp(a models.AlertRecord) int64 {
	ref := a.Reference
	for _, v := range []*int64{ref.AnchorTs, ref.PeakTs} {
		if v != nil {
			return *v
		}
	}
	return a.Ts
}

// AnchorPctFromOpen resolves the anchor's percentage from the day open,
// computing it from anchor price and open when no precomputed value exists.
func AnchorPctFromOpen(a models.AlertRecord) (float64, bool) {
	if v := a.Reference.AnchorPctFromOpen; v != nil {
		return *v, true
	}
	anchor, ok := AnchorPrice(a)
	if !ok {
		return 0, false
	}
	return pctFrom(a.Reference.Open, anchor)
}

// TriggerPrice resolves the price at which the alert fired: explicit
// current price, then legacy close.
func TriggerPrice(a models.AlertRecord) (float64, bool) {
	ref := a.Reference
	for _, v := range []*float64{ref.CurrentPrice, ref.Close} {
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}

// TriggerTimestamp resolves the trigger time, falling back to the alert
// timestamp.
func TriggerTimestamp(a models.AlertRecord) int64 {
	if v := a.Reference.CurrentTs; v != nil {
		return *v
	}
	return a.Ts
}

// CurrentPctFromOpen resolves the trigger's percentage from the day open.
func CurrentPctFromOpen(a models.AlertRecord) (float64, bool) {
	if v := a.Reference.CurrentPctFromOpen; v != nil {
		return *v, true
	}
	trigger, ok := TriggerPrice(a)
	if !ok {
		return 0, false
	}
	return pctFrom(a.Reference.Open, trigger)
}

// MoveFromAnchor resolves the magnitude of the move from the anchor. The
// sign is normalised by alert type regardless of the source field's
// convention: drops report non-positive, rebounds non-negative.
func MoveFromAnchor(a models.AlertRecord) (float64, bool) {
	ref := a.Reference
	raw := ref.MoveFromAnchor
	if raw == nil {
		switch a.AlertType {
		case models.AlertRapidDrop:
			raw = ref.DropFromPeak
		case models.AlertRapidRebound:
			raw = ref.RiseFromTrough
		}
	}
	if raw == nil {
		return 0, false
	}
	switch a.AlertType {
	case models.AlertRapidDrop:
		return -math.Abs(*raw), true
	case models.AlertRapidRebound:
		return math.Abs(*raw), true
	default:
		return *raw, true
	}
}

// AnchorLabel reports whether the anchor was a peak or a trough. An
// explicit anchor type wins; otherwise rebounds anchor on a trough.
func AnchorLabel(a models.AlertRecord) string {
	if t := a.Reference.AnchorType; t != nil && *t == models.AnchorTypeTrough {
		return models.AnchorTypeTrough
	}
	if a.AlertType == models.AlertRapidRebound {
		return models.AnchorTypeTrough
	}
	return models.AnchorTypePeak
}

// pctFrom computes (value-open)/open, undefined for unknown or zero open.
func pctFrom(open *float64, value float64) (float64, bool) {
	if open == nil || *open == 0 {
		return 0, false
	}
	return (value - *open) / *open, true
}
