package layout

import "time"

// Calendar decides which dates carry a daily partition.
type Calendar interface {
	IsWorkingDay(day time.Time) bool
}

// WeekdayCalendar treats Monday to Friday as working days.
type WeekdayCalendar struct{}

func (WeekdayCalendar) IsWorkingDay(day time.Time) bool {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// BusinessDays walks backward from end's date to start's date and returns the
// working days in ascending order. Both bounds are inclusive and compared as
// UTC calendar dates.
func BusinessDays(cal Calendar, start, end time.Time) []time.Time {
	if cal == nil {
		cal = WeekdayCalendar{}
	}
	first := truncateDay(start)
	day := truncateDay(end)

	var days []time.Time
	for !day.Before(first) {
		if cal.IsWorkingDay(day) {
			days = append(days, day)
		}
		day = day.AddDate(0, 0, -1)
	}

	for i, j := 0, len(days)-1; i < j; i, j = i+1, j-1 {
		days[i], days[j] = days[j], days[i]
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
