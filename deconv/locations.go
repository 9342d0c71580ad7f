package deconv

import (
	"log"
	"strings"

	lollipop "github.com/gordonkoehn/LolliPop"
	"github.com/gordonkoehn/LolliPop/tallymut"
)

// SyntheticLocation stamps every row when the run is location-less.
const SyntheticLocation = ""

// ResolveLocations decides which locations the run iterates over and makes
// sure every row belongs to exactly one of them.
//
// Precedence: an explicit allow-list (validated against the data), the noLoc
// flag (a single synthetic location), then the distinct non-empty locations
// observed, in order of first appearance. When the tally has no location
// column at all, a lone allow-list entry is stamped onto every row; anything
// else is ambiguous.
func ResolveLocations(t *tallymut.Table, allowed []string, noLoc bool) ([]string, error) {
	if noLoc {
		discarding := false
		for i := range t.Rows {
			if t.Rows[i].Location != "" {
				discarding = true
			}
			t.Rows[i].Location = SyntheticLocation
		}
		if discarding {
			log.Println("Warning: no_loc is set, but there are still locations in the input")
		}
		return []string{SyntheticLocation}, nil
	}

	if !t.HasLocation {
		if len(allowed) == 1 {
			for i := range t.Rows {
				t.Rows[i].Location = allowed[0]
			}
			return []string{allowed[0]}, nil
		}
		return nil, lollipop.Dataf("tally table has no location column and the run names %d locations; cannot assign rows unambiguously", len(allowed))
	}

	if t.UsedLocationCode {
		log.Println("Warning: no 'location' column found, using 'location_code' as the display name")
	}

	observed := make(map[string]bool)
	var order []string
	for _, r := range t.Rows {
		if r.Location == "" {
			continue
		}
		if !observed[r.Location] {
			observed[r.Location] = true
			order = append(order, r.Location)
		}
	}

	if len(allowed) == 0 {
		return order, nil
	}

	var missing []string
	for _, loc := range allowed {
		if !observed[loc] {
			missing = append(missing, loc)
		}
	}
	if len(missing) > 0 {
		return nil, lollipop.Configf("locations %s do not exist in the tally data", strings.Join(missing, ", "))
	}

	return allowed, nil
}
