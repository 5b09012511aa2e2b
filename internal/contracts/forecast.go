package contracts

import "time"

// DateLayout is the wire and storage format of price point dates
const DateLayout = "2006-01-02"

// PointKind tells observed prices from generated ones
type PointKind string

const (
	PointHistorical PointKind = "historical"
	PointPredicted  PointKind = "predicted"
)

// PricePoint is one bar of a price series
type PricePoint struct {
	Date  time.Time `json:"date"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
	Kind  PointKind `json:"kind"`
}

// Outlook is the directional call of a forecast
type Outlook string

const (
	OutlookRaise  Outlook = "raise"
	OutlookDrop   Outlook = "drop"
	OutlookStable Outlook = "stable"
)

// Valid reports whether o is one of the three outlooks
func (o Outlook) Valid() bool {
	switch o {
	case OutlookRaise, OutlookDrop, OutlookStable:
		return true
	}
	return false
}

// GenInfo is the per-symbol forecast summary; LastUpdate anchors freshness
type GenInfo struct {
	LastUpdate     time.Time `json:"last_update"`
	LastClose      float64   `json:"last_close"`
	Outlook        Outlook   `json:"outlook"`
	PriceChangePct float64   `json:"price_change_pct"`
	Confidence     int       `json:"confidence"`
	Rationale      string    `json:"rationale"`
	MarketCap      *float64  `json:"market_cap"`
}

// CacheEntry is everything stored for one symbol. It is written and
// replaced as a unit.
type CacheEntry struct {
	Symbol string       `json:"symbol"`
	Series []PricePoint `json:"series"`
	Info   GenInfo      `json:"info"`
}

// Points returns the series entries of one kind, in stored order
func (e *CacheEntry) Points(kind PointKind) []PricePoint {
	out := make([]PricePoint, 0, len(e.Series))
	for _, p := range e.Series {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// ParsedForecast is a validated generator response
type ParsedForecast struct {
	Historical  []PricePoint
	Predictions []PricePoint
	Outlook     Outlook
	Rationale   string
	Confidence  int
}

// Freshness is the verdict of the freshness gate
type Freshness string

const (
	Fresh  Freshness = "fresh"
	Stale  Freshness = "stale"
	Absent Freshness = "absent"
)

// Snippet is one discussion post or news article
type Snippet struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Aggregate is the collected input of one forecast. Any channel may be
// empty when its provider failed.
type Aggregate struct {
	Historical     []PricePoint
	Discussion     []Snippet
	News           []Snippet
	DiscussionText string
	NewsText       string
	MarketCap      *float64
}

// Quote is a provider's current price snapshot
type Quote struct {
	Symbol        string   `json:"symbol"`
	Price         float64  `json:"price"`
	PreviousClose float64  `json:"previous_close"`
	MarketCap     *float64 `json:"market_cap,omitempty"`
}

// Spot returns the current price, else the previous close
func (q Quote) Spot() (float64, bool) {
	if q.Price > 0 {
		return q.Price, true
	}
	if q.PreviousClose > 0 {
		return q.PreviousClose, true
	}
	return 0, false
}

// RefreshEvent announces a committed cache refresh
type RefreshEvent struct {
	Symbol         string    `json:"symbol"`
	Outlook        Outlook   `json:"outlook"`
	Confidence     int       `json:"confidence"`
	PriceChangePct float64   `json:"price_change_pct"`
	LastUpdate     time.Time `json:"last_update"`
}
