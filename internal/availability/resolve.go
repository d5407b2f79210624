// Package availability resolves a provider's recurring weekly schedule,
// date-scoped overrides, and time-off ranges into the open interval for a
// given day, and generates candidate slot start times inside it. Everything
// here is advisory: the authoritative overlap check happens at booking time
// against the appointment store.
package availability

import (
	"fmt"
	"sort"
	"time"
)

// WeeklyHours is one recurring open window, keyed by weekday. A weekday with
// no entry is closed. Bounds are minutes from local midnight.
type WeeklyHours struct {
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

func (w WeeklyHours) Validate() error {
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return fmt.Errorf("invalid weekday %d", w.Weekday)
	}
	return validateMinuteRange(w.StartMinute, w.EndMinute)
}

// DateOverride supersedes the weekly entry for one specific day. It fully
// replaces the weekly row; open windows never merge across the two.
type DateOverride struct {
	Day         Date
	Closed      bool
	StartMinute int
	EndMinute   int
}

func (o DateOverride) Validate() error {
	if o.Closed {
		return nil
	}
	return validateMinuteRange(o.StartMinute, o.EndMinute)
}

// TimeOffRange marks a closed span of whole days, both ends inclusive.
type TimeOffRange struct {
	ID     string
	Start  Date
	End    Date
	Reason string
}

func (t TimeOffRange) Contains(day Date) bool {
	return !day.Before(t.Start) && !day.After(t.End)
}

// Schedule is the full availability input for one provider.
type Schedule struct {
	Weekly    []WeeklyHours
	Overrides []DateOverride
	TimeOff   []TimeOffRange
}

// OpenInterval is the resolved bookable window for a day, as absolute
// instants in the provider's zone.
type OpenInterval struct {
	Start time.Time
	End   time.Time
}

// ResolveOpenInterval applies the precedence rules: time off closes the whole
// day; otherwise a date override (closed flag or special hours) wins over the
// weekly entry; a weekday without a weekly entry is closed. The second return
// is false when the day is closed.
func (s Schedule) ResolveOpenInterval(day Date, loc *time.Location) (OpenInterval, bool) {
	for _, off := range s.TimeOff {
		if off.Contains(day) {
			return OpenInterval{}, false
		}
	}

	for _, ov := range s.Overrides {
		if ov.Day.Equal(day) {
			if ov.Closed {
				return OpenInterval{}, false
			}
			return minuteInterval(day, ov.StartMinute, ov.EndMinute, loc), true
		}
	}

	wd := day.Weekday()
	for _, wh := range s.Weekly {
		if wh.Weekday == wd {
			return minuteInterval(day, wh.StartMinute, wh.EndMinute, loc), true
		}
	}
	return OpenInterval{}, false
}

// SortWeekly orders entries Sunday..Saturday in place.
func SortWeekly(entries []WeeklyHours) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Weekday < entries[j].Weekday })
}

func minuteInterval(day Date, startMinute, endMinute int, loc *time.Location) OpenInterval {
	midnight := day.In(loc)
	return OpenInterval{
		Start: midnight.Add(time.Duration(startMinute) * time.Minute),
		End:   midnight.Add(time.Duration(endMinute) * time.Minute),
	}
}

func validateMinuteRange(start, end int) error {
	if start < 0 || end > 24*60 || end <= start {
		return fmt.Errorf("invalid minute range [%d, %d)", start, end)
	}
	return nil
}
