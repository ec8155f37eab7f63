package transport

import (
	"fmt"
	"regexp"
	"strconv"
)

const minutesPerDay = 24 * 60

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// IsValidClock reports whether s is a 24-hour "HH:MM" time.
func IsValidClock(s string) bool {
	return clockPattern.MatchString(s)
}

// ClockMinutes converts "HH:MM" to minutes after midnight.
func ClockMinutes(s string) (int, bool) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return h*60 + mm, true
}

func formatClock(total int) string {
	total = ((total % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// AddHours shifts a clock time by n hours, wrapping around midnight. Invalid
// input is returned unchanged.
func AddHours(s string, n int) string {
	return AddMinutes(s, n*60)
}

// AddMinutes shifts a clock time by n minutes, wrapping around midnight.
// Invalid input is returned unchanged.
func AddMinutes(s string, n int) string {
	total, ok := ClockMinutes(s)
	if !ok {
		return s
	}
	return formatClock(total + n)
}

// Format12h renders "14:05" as "2:05 PM".
func Format12h(s string) string {
	total, ok := ClockMinutes(s)
	if !ok {
		return s
	}
	h, m := total/60, total%60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, m, suffix)
}
