package backtest

import "time"

// cooldown blocks entries for a number of trading days after the most
// recent accepted exit. The exit day is day 0, so with days=5 and an exit
// on day N entries resume on N+6. Entries are also blocked while the
// latest accepted trade is still open.
type cooldown struct {
	days     int
	index    map[time.Time]int
	lastExit time.Time
	set      bool
}

func newCooldown(days int, dates []time.Time) *cooldown {
	idx := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		idx[d] = i
	}
	return &cooldown{days: days, index: idx}
}

// record notes an accepted exit. Later exits overwrite earlier ones.
func (c *cooldown) record(exit time.Time) {
	if c.days <= 0 {
		return
	}
	c.lastExit = exit
	c.set = true
}

// blocks reports whether entries on dates[cur] are suppressed. An exit
// outside the calendar does not block.
func (c *cooldown) blocks(cur int) bool {
	if c.days <= 0 || !c.set {
		return false
	}
	exit, ok := c.index[c.lastExit]
	if !ok || cur < 0 {
		return false
	}
	return cur-exit <= c.days
}
