package manifest

// Guard is the Go stand-in for the original's TentativePatch context
// manager: it captures a manifest snapshot up front, and restores it on
// Rollback unless Confirm was called first. Typical use:
//
//	guard := manifest.BeginTentative(m)
//	defer guard.Rollback()
//	... attempt a patch, mutating m in place ...
//	guard.Confirm()
type Guard struct {
	target    *Manifest
	snapshot  *Manifest
	confirmed bool
}

// BeginTentative snapshots target so its changes can be rolled back later.
func BeginTentative(target *Manifest) *Guard {
	return &Guard{target: target, snapshot: target.Copy()}
}

// Confirm accepts the changes made since BeginTentative; Rollback becomes a
// no-op afterwards.
func (g *Guard) Confirm() { g.confirmed = true }

// Rollback restores the manifest to its state at BeginTentative, unless
// Confirm was already called. Safe to call unconditionally via defer.
func (g *Guard) Rollback() {
	if g.confirmed {
		return
	}
	*g.target = *g.snapshot
}
