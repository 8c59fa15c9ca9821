package expiry

import (
	"fmt"
	"time"
)

// Window is the application-side payment window. The gateway charge is created
// with a 65 minute expiry as headroom; the gateway must never fire before the
// application does, so this window is the one that counts.
const Window = 5 * time.Minute

// GatewayWindow is the expiry requested on the PSP charge itself.
const GatewayWindow = 65 * time.Minute

// Remaining returns how much of the payment window is left for an order
// created at createdAt. Negative once the window has elapsed.
func Remaining(createdAt, now time.Time) time.Duration {
	return Window - now.Sub(createdAt)
}

// IsExpired reports whether the payment window has fully elapsed. Both the
// order listing path and the live countdown call this with their own clock;
// sharing the function keeps the two from disagreeing.
func IsExpired(createdAt, now time.Time) bool {
	return Remaining(createdAt, now) <= 0
}

// FormatRemaining renders the countdown as m:ss, or "expired" once the window
// has elapsed.
func FormatRemaining(createdAt, now time.Time) string {
	remaining := Remaining(createdAt, now)
	if remaining <= 0 {
		return "expired"
	}
	minutes := int(remaining.Minutes())
	seconds := int(remaining.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
