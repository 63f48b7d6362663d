package markethours

import "time"

// NYSE full-day closures. Early closes trade normally for a daily bar.
var nyseHolidays = []struct {
	year  int
	month time.Month
	day   int
}{
	{2024, time.January, 1},   // New Year's Day
	{2024, time.January, 15},  // Martin Luther King Jr. Day
	{2024, time.February, 19}, // Washington's Birthday
	{2024, time.March, 29},    // Good Friday
	{2024, time.May, 27},      // Memorial Day
	{2024, time.June, 19},     // Juneteenth
	{2024, time.July, 4},      // Independence Day
	{2024, time.September, 2}, // Labor Day
	{2024, time.November, 28}, // Thanksgiving
	{2024, time.December, 25}, // Christmas

	{2025, time.January, 1},   // New Year's Day
	{2025, time.January, 9},   // National Day of Mourning
	{2025, time.January, 20},  // Martin Luther King Jr. Day
	{2025, time.February, 17}, // Washington's Birthday
	{2025, time.April, 18},    // Good Friday
	{2025, time.May, 26},      // Memorial Day
	{2025, time.June, 19},     // Juneteenth
	{2025, time.July, 4},      // Independence Day
	{2025, time.September, 1}, // Labor Day
	{2025, time.November, 27}, // Thanksgiving
	{2025, time.December, 25}, // Christmas

	{2026, time.January, 1},   // New Year's Day
	{2026, time.January, 19},  // Martin Luther King Jr. Day
	{2026, time.February, 16}, // Washington's Birthday
	{2026, time.April, 3},     // Good Friday
	{2026, time.May, 25},      // Memorial Day
	{2026, time.June, 19},     // Juneteenth
	{2026, time.July, 3},      // Independence Day (observed)
	{2026, time.September, 7}, // Labor Day
	{2026, time.November, 26}, // Thanksgiving
	{2026, time.December, 25}, // Christmas
}

var holidaySet map[string]bool

func init() {
	holidaySet = make(map[string]bool, len(nyseHolidays))
	for _, h := range nyseHolidays {
		holidaySet[dateKey(h.year, h.month, h.day)] = true
	}
}

// IsHoliday reports whether the calendar date of t is an NYSE holiday.
// Years outside the table have no holidays.
func IsHoliday(t time.Time) bool {
	return holidaySet[dateKey(t.Year(), t.Month(), t.Day())]
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}
