// Package calendar converts SLA budgets into wall-clock deadlines.
//
// The business calendar is fixed: Monday to Friday, 09:00 to 17:00, in UTC.
// Instants are normalized to UTC before any arithmetic.
package calendar

import "time"

const (
	openHour  = 9
	closeHour = 17
)

// IsWorkingDay reports whether t falls on Monday through Friday.
func IsWorkingDay(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// IsBusinessHours reports whether t lies inside the [09:00, 17:00) window of a working day.
func IsBusinessHours(t time.Time) bool {
	t = t.UTC()
	if !IsWorkingDay(t) {
		return false
	}
	return t.Hour() >= openHour && t.Hour() < closeHour
}

// NextBusinessStart returns t itself when it is inside business hours, otherwise
// the next window-open instant.
func NextBusinessStart(t time.Time) time.Time {
	t = t.UTC()
	if IsBusinessHours(t) {
		return t
	}
	current := opening(t)
	if t.Hour() >= closeHour {
		current = current.AddDate(0, 0, 1)
	}
	for !IsWorkingDay(current) {
		current = current.AddDate(0, 0, 1)
	}
	return current
}

// AddBusinessMinutes consumes minutes of business time starting at start.
// Non-positive budgets return the (possibly advanced) start.
func AddBusinessMinutes(start time.Time, minutes int) time.Time {
	current := NextBusinessStart(start)
	remaining := time.Duration(minutes) * time.Minute

	for remaining > 0 {
		budget := closing(current).Sub(current)
		if remaining < budget {
			return current.Add(remaining)
		}
		remaining -= budget
		current = opening(current).AddDate(0, 0, 1)
		for !IsWorkingDay(current) {
			current = current.AddDate(0, 0, 1)
		}
	}
	return current
}

// DueTime computes a deadline either in business time or in plain elapsed time.
func DueTime(start time.Time, minutes int, businessHoursOnly bool) time.Time {
	if businessHoursOnly {
		return AddBusinessMinutes(start, minutes)
	}
	return start.UTC().Add(time.Duration(minutes) * time.Minute)
}

func opening(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), openHour, 0, 0, 0, time.UTC)
}

func closing(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), closeHour, 0, 0, 0, time.UTC)
}
