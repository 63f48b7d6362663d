package indicator

// EMA calculates Exponential Moving Average.
// Each update is O(1) and keeps no window.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA" }

func (e *EMA) Update(price float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += price
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	e.current = (price-e.current)*e.multiplier + e.current
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
	e.sum = 0
}

// EMASeries returns the EMA of prices. Output[period-1] is the SMA of the
// first period prices; earlier entries are 0. A series shorter than period
// yields all zeros.
func EMASeries(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if period <= 0 || len(prices) < period {
		warnShort("EMA", len(prices), period)
		return out
	}
	e := NewEMA(period)
	for i, p := range prices {
		e.Update(p)
		if e.Ready() {
			out[i] = e.Value()
		}
	}
	return out
}
