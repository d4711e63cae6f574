package records

// genreDict interns genre strings into stable indices. The backing slice is
// the one persisted as Records.Genres; the map is rebuilt per ingestion.
type genreDict struct {
	names []string
	index map[string]int
}

func newGenreDict(names []string) *genreDict {
	d := &genreDict{names: names, index: make(map[string]int, len(names))}
	for i, n := range names {
		if _, ok := d.index[n]; !ok {
			d.index[n] = i
		}
	}
	return d
}

func (d *genreDict) intern(name string) int {
	if i, ok := d.index[name]; ok {
		return i
	}
	d.names = append(d.names, name)
	i := len(d.names) - 1
	d.index[name] = i
	return i
}

// internAll returns indices for names, dropping repeats within one artist.
func (d *genreDict) internAll(names []string) []int {
	out := make([]int, 0, len(names))
	seen := make(map[int]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		i := d.intern(n)
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	return out
}
