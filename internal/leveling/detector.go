package leveling

import "sync"

// Detector fires exactly once per level increase: repeated observations of
// the same level stay silent, and a level drop (switching streamers resets
// the ladder) re-arms without firing.
type Detector struct {
	mu      sync.Mutex
	known   int
	primed  bool
	onLevel func(level int)
}

// NewDetector creates a detector invoking fn on each observed increase.
func NewDetector(fn func(level int)) *Detector {
	return &Detector{onLevel: fn}
}

// Observe feeds the current level. The first observation only primes the
// baseline so joining a room never announces the level already held.
func (d *Detector) Observe(level int) {
	d.mu.Lock()
	if !d.primed {
		d.primed = true
		d.known = level
		d.mu.Unlock()
		return
	}
	if level <= d.known {
		d.known = level
		d.mu.Unlock()
		return
	}
	d.known = level
	fn := d.onLevel
	d.mu.Unlock()

	if fn != nil {
		fn(level)
	}
}

// Reset forgets the baseline, e.g. when the viewer switches streamers.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.primed = false
	d.known = 0
}
