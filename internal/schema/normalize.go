package schema

import "golang.org/x/text/cases"

// Normalizer rewrites a cleaned, non-empty cell before it is coerced.
type Normalizer func(string) string

// Chain returns a Normalizer applying ns in order.
func Chain(ns ...Normalizer) Normalizer {
	return func(s string) string {
		for _, n := range ns {
			s = n(s)
		}
		return s
	}
}

// Lower case-folds a cell, e.g. for email addresses.
func Lower(s string) string {
	// A Caser holds state, so each call gets its own.
	return cases.Fold().String(s)
}

// Lookup returns a Normalizer replacing cells that match a key of table,
// ignoring case, with that key's value. Other cells pass through.
func Lookup(table map[string]string) Normalizer {
	folded := make(map[string]string, len(table))
	for k, v := range table {
		folded[Lower(k)] = v
	}
	return func(s string) string {
		if v, ok := folded[Lower(s)]; ok {
			return v
		}
		return s
	}
}

// USState maps a US state or DC, by name or postal code, to its upper-case
// postal code.
var USState = Lookup(usStateTable())

func usStateTable() map[string]string {
	states := [...][2]string{
		{"AL", "Alabama"}, {"AK", "Alaska"}, {"AZ", "Arizona"}, {"AR", "Arkansas"},
		{"CA", "California"}, {"CO", "Colorado"}, {"CT", "Connecticut"}, {"DE", "Delaware"},
		{"DC", "District of Columbia"}, {"FL", "Florida"}, {"GA", "Georgia"}, {"HI", "Hawaii"},
		{"ID", "Idaho"}, {"IL", "Illinois"}, {"IN", "Indiana"}, {"IA", "Iowa"},
		{"KS", "Kansas"}, {"KY", "Kentucky"}, {"LA", "Louisiana"}, {"ME", "Maine"},
		{"MD", "Maryland"}, {"MA", "Massachusetts"}, {"MI", "Michigan"}, {"MN", "Minnesota"},
		{"MS", "Mississippi"}, {"MO", "Missouri"}, {"MT", "Montana"}, {"NE", "Nebraska"},
		{"NV", "Nevada"}, {"NH", "New Hampshire"}, {"NJ", "New Jersey"}, {"NM", "New Mexico"},
		{"NY", "New York"}, {"NC", "North Carolina"}, {"ND", "North Dakota"}, {"OH", "Ohio"},
		{"OK", "Oklahoma"}, {"OR", "Oregon"}, {"PA", "Pennsylvania"}, {"RI", "Rhode Island"},
		{"SC", "South Carolina"}, {"SD", "South Dakota"}, {"TN", "Tennessee"}, {"TX", "Texas"},
		{"UT", "Utah"}, {"VT", "Vermont"}, {"VA", "Virginia"}, {"WA", "Washington"},
		{"WV", "West Virginia"}, {"WI", "Wisconsin"}, {"WY", "Wyoming"},
	}

	table := make(map[string]string, 2*len(states))
	for _, st := range states {
		table[st[0]] = st[0]
		table[st[1]] = st[0]
	}
	return table
}
