package order

// Gap is a run of missing positions.
type Gap struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Size returns the number of missing positions in the gap.
func (g Gap) Size() int {
	return g.End - g.Start + 1
}

// Report describes how far a domain is from dense positions.
type Report struct {
	Domain     Domain   `json:"-"`
	Size       int      `json:"size"`
	Dense      bool     `json:"dense"`
	Gaps       []Gap    `json:"gaps,omitempty"`
	Duplicates []int    `json:"duplicates,omitempty"`
	Negative   []string `json:"negative,omitempty"`
}

// Check inspects items for gaps, duplicate positions and negative positions.
func Check(domain Domain, items []Item) Report {
	sorted := Sort(items)
	r := Report{Domain: domain, Size: len(sorted), Dense: true}

	next := 0
	for i, it := range sorted {
		if it.Position != i {
			r.Dense = false
		}
		if it.Position < 0 {
			r.Negative = append(r.Negative, it.ID)
			continue
		}
		if i > 0 && sorted[i-1].Position == it.Position {
			if n := len(r.Duplicates); n == 0 || r.Duplicates[n-1] != it.Position {
				r.Duplicates = append(r.Duplicates, it.Position)
			}
			continue
		}
		if it.Position > next {
			r.Gaps = append(r.Gaps, Gap{Start: next, End: it.Position - 1})
		}
		next = it.Position + 1
	}
	return r
}
