package model

import "time"

// Trend labels assigned per bar by the indicator engine.
const (
	TrendUp   = "Uptrend"
	TrendDown = "Downtrend"
)

// Quote is one daily bar for a symbol together with its derived indicator
// fields. Indicator fields hold 0 until the indicator has enough history.
type Quote struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"` // UTC midnight, see Day
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`

	EMA5   float64 `json:"ema5"`
	EMA10  float64 `json:"ema10"`
	EMA20  float64 `json:"ema20"`
	EMA50  float64 `json:"ema50"`
	EMA100 float64 `json:"ema100"`

	ATR           float64 `json:"atr"`
	ADX           float64 `json:"adx"`
	DonchianUpper float64 `json:"donchian_upper"`
	DonchianLower float64 `json:"donchian_lower"`
	Trend         string  `json:"trend"`
}

// QuoteKey identifies a quote within a run.
type QuoteKey struct {
	Symbol string
	Date   time.Time
}

// Key returns the (symbol, date) identity of the quote.
func (q *Quote) Key() QuoteKey {
	return QuoteKey{Symbol: q.Symbol, Date: q.Date}
}

// InUptrend reports EMA10 > EMA20 with close above EMA50.
func (q *Quote) InUptrend() bool {
	return q.EMA10 > q.EMA20 && q.Close > q.EMA50
}

// IsBullish reports a green candle.
func (q *Quote) IsBullish() bool {
	return q.Close > q.Open
}

// IsBearish reports a red candle.
func (q *Quote) IsBearish() bool {
	return q.Close < q.Open
}

// EMA returns the stored EMA for period. ok is false for unsupported periods.
func (q *Quote) EMA(period int) (value float64, ok bool) {
	switch period {
	case 5:
		return q.EMA5, true
	case 10:
		return q.EMA10, true
	case 20:
		return q.EMA20, true
	case 50:
		return q.EMA50, true
	case 100:
		return q.EMA100, true
	}
	return 0, false
}

// Day truncates t to midnight UTC of its calendar day. All dates stored on
// model types go through Day so they can be compared with == and used as
// map keys.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// DateLayout is the on-disk and on-wire date format.
const DateLayout = "2006-01-02"
