package models

// TrackedSet is the ordered list of symbols the pipeline reports on.
type TrackedSet []string

// Contains reports whether symbol is tracked.
func (t TrackedSet) Contains(symbol string) bool {
	for _, s := range t {
		if s == symbol {
			return true
		}
	}
	return false
}

// WithBaseline returns a copy of the set that always includes BaselineSymbol.
func (t TrackedSet) WithBaseline() TrackedSet {
	out := make(TrackedSet, len(t), len(t)+1)
	copy(out, t)
	if !out.Contains(BaselineSymbol) {
		out = append(out, BaselineSymbol)
	}
	return out
}

// Lookup returns the set as a map for filtering large tables.
func (t TrackedSet) Lookup() map[string]struct{} {
	m := make(map[string]struct{}, len(t))
	for _, s := range t {
		m[s] = struct{}{}
	}
	return m
}
