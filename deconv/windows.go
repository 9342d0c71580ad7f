package deconv

import (
	"log"
	"time"

	lollipop "github.com/gordonkoehn/LolliPop"
	"github.com/gordonkoehn/LolliPop/vconfig"
)

// TimeWindow is a half-open [Start, End) slice of the timeline carrying the
// variants active during it. The last window of a schedule is open-ended. A
// synthetic window matches every date and exists only in date-less runs.
type TimeWindow struct {
	Start     time.Time
	End       time.Time
	Unbounded bool
	Synthetic bool
	Variants  []string
}

// Contains reports whether the window covers d.
func (w TimeWindow) Contains(d time.Time) bool {
	if w.Synthetic {
		return true
	}
	if d.Before(w.Start) {
		return false
	}
	return w.Unbounded || d.Before(w.End)
}

// PlanWindows partitions the timeline. Without a schedule (or in date-less
// mode) there is a single unbounded window holding every variant. With a
// schedule, window i spans [key_i, key_i+1) and the last window is unbounded.
//
// Schedule entries must be strictly ascending. Variants named only by the
// schedule are merged into the returned variant list; variants never
// scheduled are reported as unused.
func PlanWindows(variants []string, sched *vconfig.Schedule, noDate bool) ([]TimeWindow, []string, error) {
	if noDate || sched == nil || len(sched.Entries) == 0 {
		w := TimeWindow{
			Unbounded: true,
			Synthetic: noDate,
			Variants:  append([]string(nil), variants...),
		}
		return []TimeWindow{w}, append([]string(nil), variants...), nil
	}

	entries := sched.Entries
	for i := 1; i < len(entries); i++ {
		if !entries[i-1].Start.Before(entries[i].Start) {
			return nil, nil, lollipop.Configf("variant schedule dates are not ascending: %s is followed by %s",
				entries[i-1].Start.Format("2006-01-02"), entries[i].Start.Format("2006-01-02"))
		}
	}

	known := make(map[string]bool, len(variants))
	for _, v := range variants {
		known[v] = true
	}

	merged := append([]string(nil), variants...)
	scheduled := make(map[string]bool)

	windows := make([]TimeWindow, 0, len(entries))
	for i, e := range entries {
		w := TimeWindow{
			Start:    e.Start,
			Variants: append([]string(nil), e.Variants...),
		}
		if i+1 < len(entries) {
			w.End = entries[i+1].Start
		} else {
			w.Unbounded = true
		}
		windows = append(windows, w)

		for _, v := range e.Variants {
			scheduled[v] = true
			if !known[v] {
				known[v] = true
				merged = append(merged, v)
			}
		}
	}

	var unused []string
	for _, v := range variants {
		if !scheduled[v] {
			unused = append(unused, v)
		}
	}
	if len(unused) > 0 {
		log.Printf("Warning: variants %v are never active in any scheduled window\n", unused)
	}

	return windows, merged, nil
}
