package state

// utcZone is where legacy single-scalar day opens land.
const utcZone = "utc"

// referenceStore tracks the last price and the per-timezone day-open
// matrix for the configured symbols. Every configured zone has an entry
// for every configured symbol at all times; a nil entry means unknown.
type referenceStore struct {
	zones   map[string]struct{}
	symbols map[string]struct{}
	open    map[string]map[string]*float64 // zone -> symbol -> day open
	last    map[string]*float64            // symbol -> last price
}

func newReferenceStore(zones []string, symbols []string) *referenceStore {
	s := &referenceStore{
		zones:   make(map[string]struct{}, len(zones)),
		symbols: make(map[string]struct{}, len(symbols)),
		open:    make(map[string]map[string]*float64, len(zones)),
		last:    make(map[string]*float64, len(symbols)),
	}
	for _, sym := range symbols {
		s.symbols[sym] = struct{}{}
		s.last[sym] = nil
	}
	for _, zone := range zones {
		s.zones[zone] = struct{}{}
		row := make(map[string]*float64, len(symbols))
		for _, sym := range symbols {
			row[sym] = nil
		}
		s.open[zone] = row
	}
	return s
}

func (s *referenceStore) tracks(symbol string) bool {
	_, ok := s.symbols[symbol]
	return ok
}

// setLastPrice overwrites the most recent price, last-write-wins.
func (s *referenceStore) setLastPrice(symbol string, price float64) {
	if !s.tracks(symbol) {
		return
	}
	p := price
	s.last[symbol] = &p
}

// mergeDayOpen applies an incoming day-open payload. A zone-keyed map is
// merged sparsely: zones absent from the payload (or carrying null) keep
// their current value. Without a map, the legacy scalar lands on the UTC
// entry only. This tolerates the producer's one-zone to multi-zone schema
// migration.
func (s *referenceStore) mergeDayOpen(symbol string, dayOpen map[string]*float64, todayOpen *float64) {
	if !s.tracks(symbol) {
		return
	}
	if len(dayOpen) > 0 {
		for zone, value := range dayOpen {
			if value == nil {
				continue
			}
			row, ok := s.open[zone]
			if !ok {
				continue
			}
			v := *value
			row[symbol] = &v
		}
		return
	}
	if todayOpen != nil {
		if row, ok := s.open[utcZone]; ok {
			v := *todayOpen
			row[symbol] = &v
		}
	}
}

func (s *referenceStore) lastPrice(symbol string) (float64, bool) {
	if p := s.last[symbol]; p != nil {
		return *p, true
	}
	return 0, false
}

func (s *referenceStore) dayOpen(zone, symbol string) (float64, bool) {
	row, ok := s.open[zone]
	if !ok {
		return 0, false
	}
	if v := row[symbol]; v != nil {
		return *v, true
	}
	return 0, false
}

// pctFromOpen derives (last-open)/open for one symbol in one zone.
// Unknown operands or a zero open yield no value.
func (s *referenceStore) pctFromOpen(zone, symbol string) (float64, bool) {
	last, ok := s.lastPrice(symbol)
	if !ok {
		return 0, false
	}
	open, ok := s.dayOpen(zone, symbol)
	if !ok || open == 0 {
		return 0, false
	}
	return (last - open) / open, true
}
