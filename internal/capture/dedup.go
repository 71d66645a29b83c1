package capture

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Deduper suppresses re-captures of the same content inside a sliding window,
// keyed by content fingerprint. A zero window disables suppression.
type Deduper struct {
	c *cache.Cache
}

// NewDeduper builds a deduper over the given window.
func NewDeduper(window time.Duration) *Deduper {
	if window <= 0 {
		return &Deduper{}
	}
	return &Deduper{c: cache.New(window, 2*window)}
}

// Seen reports whether the fingerprint was remembered inside the window.
func (d *Deduper) Seen(fingerprint string) bool {
	if d.c == nil {
		return false
	}
	_, found := d.c.Get(fingerprint)
	return found
}

// Remember records the fingerprint for the duration of the window.
func (d *Deduper) Remember(fingerprint string) {
	if d.c == nil {
		return
	}
	d.c.Set(fingerprint, struct{}{}, cache.DefaultExpiration)
}
