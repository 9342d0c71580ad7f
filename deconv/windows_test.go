package deconv

import (
	"reflect"
	"testing"
	"time"

	lollipop "github.com/gordonkoehn/LolliPop"
	"github.com/gordonkoehn/LolliPop/vconfig"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestPlanWindowsFromSchedule(t *testing.T) {
	sched := &vconfig.Schedule{Entries: []vconfig.ScheduleEntry{
		{Start: day(2021, 1, 1), Variants: []string{"Alpha"}},
		{Start: day(2021, 6, 1), Variants: []string{"Alpha", "Delta"}},
	}}

	windows, merged, err := PlanWindows([]string{"Alpha"}, sched, false)
	if err != nil {
		t.Fatal(err)
	}

	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}

	w0, w1 := windows[0], windows[1]
	if !w0.Start.Equal(day(2021, 1, 1)) || !w0.End.Equal(day(2021, 6, 1)) || w0.Unbounded {
		t.Errorf("unexpected first window: %+v", w0)
	}
	if !reflect.DeepEqual(w0.Variants, []string{"Alpha"}) {
		t.Errorf("unexpected first window variants: %v", w0.Variants)
	}
	if !w1.Start.Equal(day(2021, 6, 1)) || !w1.Unbounded {
		t.Errorf("unexpected last window: %+v", w1)
	}
	if !reflect.DeepEqual(w1.Variants, []string{"Alpha", "Delta"}) {
		t.Errorf("unexpected last window variants: %v", w1.Variants)
	}

	// Delta appears only in the schedule and must be merged into the list.
	if !reflect.DeepEqual(merged, []string{"Alpha", "Delta"}) {
		t.Errorf("unexpected merged variant list: %v", merged)
	}
}

func TestPlanWindowsDisjointCover(t *testing.T) {
	sched := &vconfig.Schedule{Entries: []vconfig.ScheduleEntry{
		{Start: day(2021, 1, 1), Variants: []string{"Alpha"}},
		{Start: day(2021, 6, 1), Variants: []string{"Delta"}},
		{Start: day(2022, 1, 1), Variants: []string{"Omicron"}},
	}}

	windows, _, err := PlanWindows(nil, sched, false)
	if err != nil {
		t.Fatal(err)
	}

	// Every date from the earliest key on belongs to exactly one window.
	for _, d := range []time.Time{
		day(2021, 1, 1), day(2021, 5, 31), day(2021, 6, 1),
		day(2021, 12, 31), day(2022, 1, 1), day(2030, 1, 1),
	} {
		owners := 0
		for _, w := range windows {
			if w.Contains(d) {
				owners++
			}
		}
		if owners != 1 {
			t.Errorf("date %v is covered by %d windows, want exactly 1", d, owners)
		}
	}

	if windows[0].Contains(day(2020, 12, 31)) {
		t.Error("dates before the earliest key must not be covered")
	}
}

func TestPlanWindowsRejectsNonAscending(t *testing.T) {
	sched := &vconfig.Schedule{Entries: []vconfig.ScheduleEntry{
		{Start: day(2021, 6, 1), Variants: []string{"Delta"}},
		{Start: day(2021, 1, 1), Variants: []string{"Alpha"}},
	}}

	_, _, err := PlanWindows(nil, sched, false)
	if err == nil || !lollipop.IsConfigError(err) {
		t.Fatalf("expected a ConfigError for non-ascending schedule dates, got %v", err)
	}
}

func TestPlanWindowsNoSchedule(t *testing.T) {
	windows, merged, err := PlanWindows([]string{"Alpha", "Delta"}, nil, false)
	if err != nil {
		t.Fatal(err)
	}

	if len(windows) != 1 || !windows[0].Unbounded {
		t.Fatalf("expected one unbounded window, got %+v", windows)
	}
	if !reflect.DeepEqual(merged, []string{"Alpha", "Delta"}) {
		t.Errorf("unexpected merged list: %v", merged)
	}
	if !windows[0].Contains(day(1999, 1, 1)) {
		t.Error("the single global window should contain any date")
	}
}

func TestPlanWindowsNoDate(t *testing.T) {
	sched := &vconfig.Schedule{Entries: []vconfig.ScheduleEntry{
		{Start: day(2021, 1, 1), Variants: []string{"Alpha"}},
	}}

	windows, _, err := PlanWindows([]string{"Alpha"}, sched, true)
	if err != nil {
		t.Fatal(err)
	}

	if len(windows) != 1 || !windows[0].Synthetic {
		t.Fatalf("no-date mode should collapse to one synthetic window, got %+v", windows)
	}
	if !windows[0].Contains(time.Time{}) {
		t.Error("the synthetic window should contain the zero date")
	}
}
