package deconv

import (
	"math/rand"

	"github.com/gordonkoehn/LolliPop/tallymut"
)

// ResampleSignatures draws whole mutation-signature groups with replacement
// to build one bootstrap replicate. A drawn group keeps its full row content;
// its rows carry the number of times the group was drawn as their weight.
// Groups never drawn are absent from the replicate.
func ResampleSignatures(rows []tallymut.Row, rng *rand.Rand) []tallymut.Row {
	groupOf := make(map[string]int)
	var groups [][]tallymut.Row
	for _, r := range rows {
		gi, ok := groupOf[r.Mutation]
		if !ok {
			gi = len(groups)
			groupOf[r.Mutation] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], r)
	}

	counts := make([]int, len(groups))
	for i := 0; i < len(groups); i++ {
		counts[rng.Intn(len(groups))]++
	}

	var out []tallymut.Row
	for gi, count := range counts {
		if count == 0 {
			continue
		}
		for _, r := range groups[gi] {
			r.Weight = float64(count)
			out = append(out, r)
		}
	}

	return out
}
