// Package calendar is the trading-day authority for the B3 exchange.
package calendar

import "time"

// Brazil implements contracts.CalendarProvider against the B3 session
// calendar in America/Sao_Paulo.
type Brazil struct {
	loc *time.Location
}

// NewBrazil creates the B3 calendar. It falls back to a fixed UTC-3 offset
// when the tzdata is unavailable.
func NewBrazil() *Brazil {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.FixedZone("BRT", -3*60*60)
	}
	return &Brazil{loc: loc}
}

// TodayInBrazil returns today's date (midnight) in São Paulo time.
func (b *Brazil) TodayInBrazil() time.Time {
	now := time.Now().In(b.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// IsTradingDay reports whether B3 trades on the given date.
func (b *Brazil) IsTradingDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !b.isHoliday(date)
}

// PreviousTradingDay walks backwards to the closest prior trading day.
func (b *Brazil) PreviousTradingDay(date time.Time) time.Time {
	prev := date.AddDate(0, 0, -1)
	for !b.IsTradingDay(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

// isHoliday covers the fixed B3 holidays plus the Easter-derived ones.
func (b *Brazil) isHoliday(date time.Time) bool {
	month, day := date.Month(), date.Day()

	switch {
	case month == time.January && day == 1: // Confraternização Universal
		return true
	case month == time.April && day == 21: // Tiradentes
		return true
	case month == time.May && day == 1: // Dia do Trabalho
		return true
	case month == time.September && day == 7: // Independência
		return true
	case month == time.October && day == 12: // Nossa Senhora Aparecida
		return true
	case month == time.November && day == 2: // Finados
		return true
	case month == time.November && day == 15: // Proclamação da República
		return true
	case month == time.November && day == 20: // Consciência Negra (B3 since 2024)
		return date.Year() >= 2024
	case month == time.December && day == 25: // Natal
		return true
	}

	easter := easterSunday(date.Year())
	for _, offset := range []int{-48, -47, -2, 60} {
		// Carnival Monday/Tuesday, Good Friday, Corpus Christi.
		h := easter.AddDate(0, 0, offset)
		if h.Month() == month && h.Day() == day {
			return true
		}
	}

	return false
}

// easterSunday computes Gregorian Easter via the Meeus/Jones/Butcher
// algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
