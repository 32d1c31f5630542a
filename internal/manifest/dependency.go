package manifest

// DataDependency records a byte range in the binary that has already been
// claimed by a patch and must not be clobbered by a later one.
type DataDependency struct {
	Start   uint64 `json:"address"`
	Length  int    `json:"length"`
	Message string `json:"message"`
}

// Finish returns the address one past the end of the dependency.
func (d DataDependency) Finish() uint64 { return d.Start + uint64(d.Length) }

// CollidesWith reports whether the byte range [va, va+length) overlaps this
// dependency. The query's last byte is va+length-1 (inclusive) while the
// dependency's finish is exclusive (start+length), so the clauses below
// compare the query's first byte, its last byte, and a query that spans the
// whole dependency against the half-open range [start, start+length).
func (d DataDependency) CollidesWith(va uint64, length int) bool {
	finishQuery := va + uint64(length) - 1
	finish := d.Finish()
	switch {
	case va >= d.Start && va < finish:
		return true
	case finishQuery >= d.Start && finishQuery < finish:
		return true
	case va < d.Start && finishQuery >= finish:
		return true
	default:
		return false
	}
}

// DependencyList is an ordered collection of data dependencies.
type DependencyList []DataDependency

// HasDependency reports whether any entry collides with the given range.
func (l DependencyList) HasDependency(va uint64, length int) bool {
	for _, d := range l {
		if d.CollidesWith(va, length) {
			return true
		}
	}
	return false
}

// Collisions returns every dependency that collides with the given range.
func (l DependencyList) Collisions(va uint64, length int) []DataDependency {
	var out []DataDependency
	for _, d := range l {
		if d.CollidesWith(va, length) {
			out = append(out, d)
		}
	}
	return out
}
