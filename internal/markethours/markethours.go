// Package markethours answers "is the NSE trading right now" so the refresh
// loop can slow down outside the session.
package markethours

import (
	"fmt"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// NSE equity session in IST.
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30
)

// NSE trading holidays (equity segment), yyyy-mm-dd in IST.
var holidays = []string{
	"2026-01-26", // Republic Day
	"2026-03-04", // Holi
	"2026-03-21", // Id-Ul-Fitr
	"2026-04-01", // Annual Bank Closing
	"2026-04-03", // Good Friday
	"2026-04-14", // Dr. Ambedkar Jayanti
	"2026-05-01", // Maharashtra Day
	"2026-08-15", // Independence Day
	"2026-09-14", // Ganesh Chaturthi
	"2026-10-02", // Gandhi Jayanti
	"2026-11-10", // Diwali Laxmi Pujan
	"2026-11-11", // Diwali Balipratipada
	"2026-11-24", // Gurunanak Jayanti
	"2026-12-25", // Christmas
}

var holidaySet = make(map[string]bool, len(holidays))

func init() {
	for _, d := range holidays {
		holidaySet[d] = true
	}
}

func dateKey(t time.Time) string {
	return t.In(IST).Format("2006-01-02")
}

// IsHoliday reports whether t falls on an exchange holiday.
func IsHoliday(t time.Time) bool {
	return holidaySet[dateKey(t)]
}

// IsTradingDay reports whether t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	wd := t.In(IST).Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !IsHoliday(t)
}

// IsMarketOpen reports whether t falls within NSE trading hours
// (9:15 AM to 3:30 PM IST on trading days).
func IsMarketOpen(t time.Time) bool {
	if !IsTradingDay(t) {
		return false
	}
	ist := t.In(IST)
	hm := ist.Hour()*60 + ist.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// NextOpen returns the next session open at or after t.
func NextOpen(t time.Time) time.Time {
	ist := t.In(IST)
	todayOpen := time.Date(ist.Year(), ist.Month(), ist.Day(), OpenHour, OpenMinute, 0, 0, IST)
	if ist.Before(todayOpen) && IsTradingDay(ist) {
		return todayOpen
	}
	d := ist.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ {
		if IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, IST)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(ist.Year(), ist.Month(), ist.Day()+1, OpenHour, OpenMinute, 0, 0, IST)
}

// StatusString returns a human-readable market status for the dashboard.
func StatusString(t time.Time) string {
	ist := t.In(IST)
	if IsMarketOpen(t) {
		closeAt := time.Date(ist.Year(), ist.Month(), ist.Day(), CloseHour, CloseMinute, 0, 0, IST)
		return fmt.Sprintf("Market Open — closes in %s", fmtDur(closeAt.Sub(ist)))
	}
	next := NextOpen(t)
	return fmt.Sprintf("Market Closed — opens %s %s (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(ist)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
