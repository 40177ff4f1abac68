package state

import "pulsefeed/models"

// AlertLog keeps the most recent alerts newest-first, bounded by capacity,
// with structural dedup on (symbol, alert_type, ts, magnitude).
type AlertLog struct {
	capacity int
	records  []models.AlertRecord
	index    map[models.DedupKey]struct{}
}

func NewAlertLog(capacity int) *AlertLog {
	if capacity <= 0 {
		capacity = 50
	}
	return &AlertLog{
		capacity: capacity,
		records:  make([]models.AlertRecord, 0, capacity),
		index:    make(map[models.DedupKey]struct{}, capacity),
	}
}

// Insert adds a streamed alert at the head unless an entry with the same
// dedup key is already present. Re-delivery is therefore idempotent. The
// tail is evicted past capacity. Reports whether the record was accepted.
func (l *AlertLog) Insert(rec models.AlertRecord) bool {
	key := rec.DedupKey()
	if _, dup := l.index[key]; dup {
		return false
	}

	l.records = append([]models.AlertRecord{rec}, l.records...)
	l.index[key] = struct{}{}

	for len(l.records) > l.capacity {
		evicted := l.records[len(l.records)-1]
		l.records = l.records[:len(l.records)-1]
		delete(l.index, evicted.DedupKey())
	}
	return true
}

// Replace discards the current contents and hydrates the log from a
// bootstrap or snapshot payload. Input order (newest first, as the
// producer sends it) is preserved; duplicates within the payload collapse
// to their first occurrence.
func (l *AlertLog) Replace(recs []models.AlertRecord) {
	l.records = l.records[:0]
	l.index = make(map[models.DedupKey]struct{}, l.capacity)

	for _, rec := range recs {
		if len(l.records) >= l.capacity {
			break
		}
		key := rec.DedupKey()
		if _, dup := l.index[key]; dup {
			continue
		}
		l.records = append(l.records, rec)
		l.index[key] = struct{}{}
	}
}

// Records returns a copy of the log, newest first.
func (l *AlertLog) Records() []models.AlertRecord {
	out := make([]models.AlertRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of stored alerts.
func (l *AlertLog) Len() int {
	return len(l.records)
}
