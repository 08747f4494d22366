package dedup

import "sync"

// GroupTracker implements spec §4.6's COMDAT rule: the first input that
// contributes a signature wins; subsequent inputs' group members are
// marked Ignore. Bitcode COMDATs follow the same rule across bitcode
// inputs in the pre-LTO phase (callers pass a separate tracker, or the
// same one, for the bitcode pool as appropriate).
type GroupTracker struct {
	mu      sync.Mutex
	winners map[string]string // signature -> origin description of the winning input
}

// NewGroupTracker creates an empty tracker.
func NewGroupTracker() *GroupTracker {
	return &GroupTracker{winners: make(map[string]string)}
}

// Claim registers origin as the (possibly first) contributor of
// signature. It returns true if origin is the winner (its member sections
// should be kept) and false if a prior origin already won (this input's
// member sections must be marked Ignore).
func (t *GroupTracker) Claim(signature, origin string) (won bool, winner string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.winners[signature]; ok {
		return false, existing
	}
	t.winners[signature] = origin
	return true, origin
}

// Winner returns the origin that won signature, if any group with that
// signature has been claimed yet.
func (t *GroupTracker) Winner(signature string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.winners[signature]
	return w, ok
}
