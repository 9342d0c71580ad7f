package vconfig

import (
	"io/ioutil"
	"time"

	"github.com/araddon/dateparse"
	"github.com/carbocation/pfx"
	"gopkg.in/yaml.v3"

	lollipop "github.com/gordonkoehn/LolliPop"
)

// ScheduleEntry marks the start date of a time window together with the full
// set of variants active during that window.
type ScheduleEntry struct {
	Start    time.Time
	Variants []string
}

// Schedule is the ordered variant activation timetable. Document order is
// preserved so that out-of-order dates can be rejected instead of silently
// re-sorted.
type Schedule struct {
	Entries []ScheduleEntry
}

// UnmarshalYAML decodes the schedule from a YAML mapping of
// date -> variant list, keeping the document's key order.
func (s *Schedule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return lollipop.Configf("variant schedule must be a mapping of date to variant list")
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]

		start, err := dateparse.ParseAny(keyNode.Value)
		if err != nil {
			return lollipop.Configf("cannot parse schedule date %q: %v", keyNode.Value, err)
		}

		var variants []string
		if err := valNode.Decode(&variants); err != nil {
			return lollipop.Configf("schedule entry %q must list variants: %v", keyNode.Value, err)
		}

		s.Entries = append(s.Entries, ScheduleEntry{Start: start, Variants: variants})
	}

	return nil
}

// LoadSchedule reads a variant schedule document.
func LoadSchedule(path string) (*Schedule, error) {
	bts, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	sched := &Schedule{}
	if err := yaml.Unmarshal(bts, sched); err != nil {
		return nil, err
	}

	return sched, nil
}
