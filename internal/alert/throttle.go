// Package alert rate-limits the audible new-anomaly alert so bursts of
// detections can't spam the operator.
package alert

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/skywatch/internal/audio"
	"github.com/abelbrown/skywatch/internal/logging"
)

// DefaultCooldown is the minimum silence between alert sounds.
const DefaultCooldown = 30 * time.Second

// Throttle triggers the alert sound at most once per cooldown interval, no
// matter how many new-record events arrive inside the window.
type Throttle struct {
	sink    audio.Sink
	limiter *rate.Limiter
	now     func() time.Time // injectable for tests
}

// NewThrottle creates a Throttle over the given sink. A non-positive
// cooldown falls back to DefaultCooldown.
func NewThrottle(sink audio.Sink, cooldown time.Duration) *Throttle {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Throttle{
		sink:    sink,
		limiter: rate.NewLimiter(rate.Every(cooldown), 1),
		now:     time.Now,
	}
}

// NewRecords signals that at least one genuinely new record arrived. Fires
// the alert unless one already fired within the cooldown interval.
//
// The sink is fire-and-forget: a playback error is logged and swallowed so
// a broken audio facility can never stop the polling loop.
func (t *Throttle) NewRecords() {
	if !t.limiter.AllowN(t.now(), 1) {
		return
	}
	if err := t.sink.Rewind(); err != nil {
		logging.Warn("alert: rewind failed", "error", err)
	}
	if err := t.sink.Play(); err != nil {
		logging.Warn("alert: playback failed", "error", err)
	}
}
