package tallymut

// Complement synthesizes the mirror of an observation: the signature is
// negated, the measured fraction becomes 1-frac, every variant indicator is
// inverted, and the undetermined indicator is raised. The complement carries
// the proportion signal that none of the tracked variants can absorb.
func Complement(r Row) Row {
	c := r
	c.Mutation = "-" + r.Mutation
	c.Frac = 1 - r.Frac
	c.Undetermined = 1
	c.Complement = true

	c.Indicators = make([]int, len(r.Indicators))
	for i, v := range r.Indicators {
		c.Indicators[i] = 1 - v
	}

	return c
}
