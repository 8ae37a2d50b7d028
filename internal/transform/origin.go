package transform

import "sync/atomic"

// Origin is the absolute position treated as (0,0,0) for relative odometry.
// Unset means the next position sample becomes the reference.
type Origin struct {
	Position [3]float64 `json:"position"`
	Set      bool       `json:"set"`
}

// OriginTracker holds the odometry reference origin. It is the only state
// shared between the reset-request path and the packet-delivery path, so it
// is kept as an atomically swapped immutable snapshot instead of a lock held
// across computation: the hot packet path never blocks on a reset.
type OriginTracker struct {
	v atomic.Value // Origin
}

// NewOriginTracker returns a tracker with no origin set.
func NewOriginTracker() *OriginTracker {
	t := &OriginTracker{}
	t.v.Store(Origin{})
	return t
}

// Current returns the current origin snapshot.
func (t *OriginTracker) Current() Origin {
	return t.v.Load().(Origin)
}

// Reset clears the origin so the next position sample becomes the new
// reference. Calling it repeatedly without an intervening sample is
// harmless.
func (t *OriginTracker) Reset() {
	t.v.Store(Origin{})
}

// capture records pos as the new origin. Only the packet path calls this; a
// reset racing the store simply causes the next packet to recapture, which
// is indistinguishable from the reset landing a moment later.
func (t *OriginTracker) capture(pos [3]float64) Origin {
	o := Origin{Position: pos, Set: true}
	t.v.Store(o)
	return o
}
