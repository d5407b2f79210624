package availability

import "time"

// DefaultGranularity is the slot step used when a provider has not chosen one.
const DefaultGranularity = 30 * time.Minute

// GenerateSlots returns candidate start times at step boundaries within the
// open interval. A slot is kept when the full service duration fits before
// close, boundary inclusive: open 09:00-17:00 with a 60-minute service and a
// 30-minute step ends at 16:00. Starts strictly before now are dropped, which
// only bites when the date is today.
//
// The result is advisory. It performs no conflict checking; the reservation
// path re-validates against the appointment store at commit time.
func GenerateSlots(open OpenInterval, duration, step time.Duration, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !open.End.After(open.Start) {
		return nil
	}

	var slots []time.Time
	for t := open.Start; !t.Add(duration).After(open.End); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// ExcludeBusy drops candidate starts whose [start, start+blocked) interval
// overlaps any busy interval. blocked is the range a reservation would hold,
// service duration plus the provider's buffer; trimming with the bare
// duration would list slots the reservation path then rejects. Used to trim
// the displayed slot list; it is not a reservation guarantee.
func ExcludeBusy(candidates []time.Time, blocked time.Duration, busy []Interval) []time.Time {
	if len(busy) == 0 {
		return candidates
	}
	out := candidates[:0:0]
	for _, start := range candidates {
		cand := Interval{Start: start, End: start.Add(blocked)}
		blocked := false
		for _, b := range busy {
			if cand.Overlaps(b) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, start)
		}
	}
	return out
}
