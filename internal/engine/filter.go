package engine

// FilterSpec maps a dimension to its accepted values. Values are OR-combined
// within a dimension and dimensions are AND-combined. A dimension missing
// from the map is unrestricted; a dimension mapped to an empty set accepts
// nothing.
type FilterSpec map[Dimension][]string

// DefaultFilterSpec selects every observed region and category of ds.
func DefaultFilterSpec(ds *Dataset) FilterSpec {
	return FilterSpec{
		Region:   ds.Values(Region),
		Category: ds.Values(Category),
	}
}

// ApplyFilter returns the records of ds accepted by spec, in their original
// order. The result is never nil.
func ApplyFilter(ds *Dataset, spec FilterSpec) *Dataset {
	sets := make(map[Dimension]map[string]struct{}, len(spec))
	for dim, allowed := range spec {
		set := make(map[string]struct{}, len(allowed))
		for _, v := range allowed {
			set[v] = struct{}{}
		}
		sets[dim] = set
	}

	out := make([]Record, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		rec := &ds.records[i]
		pass := true
		for dim, set := range sets {
			if _, ok := set[rec.dimension(dim)]; !ok {
				pass = false
				break
			}
		}
		if pass {
			out = append(out, *rec)
		}
	}
	return newDataset(out)
}
