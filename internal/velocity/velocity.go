// Package velocity tracks per-guest booking rates over short windows.
package velocity

import (
	"context"
	"log/slog"
	"time"

	"github.com/opensource-travel/cormorant/internal/domain"
)

// DefaultWindow covers the same-day signal the scorers consume.
const DefaultWindow = 24 * time.Hour

// Tracker counts bookings per guest inside a rolling window, backed by the
// shared cache so counts survive across nodes on the Pro tier.
type Tracker struct {
	cache  domain.Cache
	window time.Duration
}

// NewTracker creates a tracker over the given cache. A zero window means
// DefaultWindow.
func NewTracker(cache domain.Cache, window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{cache: cache, window: window}
}

// Record counts one booking for the guest and returns how many this window
// has seen including it.
func (t *Tracker) Record(ctx context.Context, tenantID, guestID string) (int64, error) {
	return t.cache.IncrementCounter(ctx, tenantID, "velocity:"+guestID, t.window)
}

// Observe records the booking and fills in MultipleBookingsSameDay when the
// caller did not supply it. A caller-provided value always wins; counter
// failures leave the features untouched and are only logged, scoring must
// not depend on cache availability.
func (t *Tracker) Observe(ctx context.Context, tenantID, guestID string, features *domain.BookingFeatures) {
	if guestID == "" || features == nil {
		return
	}

	count, err := t.Record(ctx, tenantID, guestID)
	if err != nil {
		slog.Warn("booking velocity counter unavailable",
			"tenant_id", tenantID,
			"error", err,
		)
		return
	}

	if features.MultipleBookingsSameDay == 0 && count > 1 {
		// The feature is the total made this day, current booking included,
		// matching how the scorers read it.
		features.MultipleBookingsSameDay = float64(count)
	}
}
