// Package clock derives the phase of an auction from its deadline. There
// are no running timers: every process can compute the phase on demand by
// comparing wall-clock time to the stored deadline.
package clock

import "time"

// Phase of an item's auction relative to its deadline.
type Phase string

const (
	PhaseOpen            Phase = "open"
	PhaseExtensionWindow Phase = "extension_window"
	PhaseFinished        Phase = "finished"
)

// Clock holds the anti-snipe configuration. A bid accepted inside the
// extension window pushes the deadline forward by Extension, giving other
// bidders time to respond to a last-minute bid.
type Clock struct {
	// Window is how long before the deadline the extension window opens.
	Window time.Duration
	// Extension is how far an in-window accepted bid moves the deadline.
	Extension time.Duration
}

// Phase returns the auction phase at the given instant.
func (c Clock) Phase(deadline, now time.Time) Phase {
	switch {
	case !now.Before(deadline):
		return PhaseFinished
	case !now.Before(deadline.Add(-c.Window)):
		return PhaseExtensionWindow
	default:
		return PhaseOpen
	}
}

// Remaining returns the time left until the deadline and whether bidding
// is still possible. Finished auctions report zero remaining.
func (c Clock) Remaining(deadline, now time.Time) (time.Duration, bool) {
	if !now.Before(deadline) {
		return 0, false
	}
	return deadline.Sub(now), true
}

// Extend returns the deadline after an in-window acceptance. The deadline
// only ever moves forward.
func (c Clock) Extend(deadline time.Time) time.Time {
	return deadline.Add(c.Extension)
}

// InWindow reports whether an acceptance at now would trigger an
// anti-snipe extension.
func (c Clock) InWindow(deadline, now time.Time) bool {
	return c.Phase(deadline, now) == PhaseExtensionWindow
}
