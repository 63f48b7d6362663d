// Package markethours is the NYSE trading calendar. Day functions take the
// calendar date of their argument as-is, so UTC-midnight bar dates work
// without conversion.
package markethours

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// ET is New York time.
var ET = loadET()

func loadET() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}

// Regular session in ET.
const (
	OpenHour    = 9
	OpenMinute  = 30
	CloseHour   = 16
	CloseMinute = 0
)

// IsWeekday returns true if t is Mon–Fri.
func IsWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	return IsWeekday(t) && !IsHoliday(t)
}

// TradingDays returns the trading days in [from, to] as UTC midnights.
func TradingDays(from, to time.Time) []time.Time {
	d := utcDay(from)
	end := utcDay(to)
	var out []time.Time
	for !d.After(end) {
		if IsTradingDay(d) {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

// NextTradingDay returns the first trading day strictly after t.
func NextTradingDay(t time.Time) time.Time {
	d := utcDay(t).AddDate(0, 0, 1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// PreviousTradingDay returns the last trading day strictly before t.
func PreviousTradingDay(t time.Time) time.Time {
	d := utcDay(t).AddDate(0, 0, -1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// IsMarketOpen returns true if t falls within the regular NYSE session.
func IsMarketOpen(t time.Time) bool {
	et := t.In(ET)
	if !IsTradingDay(et) {
		return false
	}
	hm := et.Hour()*60 + et.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// LastCompletedSession returns the most recent trading day whose close is
// at or before t, as a UTC midnight.
func LastCompletedSession(t time.Time) time.Time {
	et := t.In(ET)
	today := time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, time.UTC)
	if IsTradingDay(today) && et.Hour()*60+et.Minute() >= CloseHour*60+CloseMinute {
		return today
	}
	return PreviousTradingDay(today)
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return "Market Open"
	}
	last := LastCompletedSession(t)
	return fmt.Sprintf("Market Closed, last session %s", last.Format("Mon 2006-01-02"))
}

func utcDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
