package appointment

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The doctor-day listing sorts by each slot's position in TimeSlots, so the
// enum itself must run in clock order for the listing to show the morning
// before the afternoon.
func TestTimeSlotsRunInClockOrder(t *testing.T) {
	const layout = "03:04 PM"

	// time.Parse with a clock-only layout yields year 0, which sorts before
	// the zero time.Time (year 1), so seed the baseline from a parsed midnight.
	prev, err := time.Parse(layout, "12:00 AM")
	require.NoError(t, err)
	for _, slot := range TimeSlots {
		parsed, err := time.Parse(layout, slot)
		require.NoError(t, err, "slot %q", slot)
		assert.True(t, parsed.After(prev), "slot %q is out of clock order", slot)
		prev = parsed
	}
}

// A plain text sort would order these strings wrong ("02:00 PM" before
// "09:00 AM"), which is exactly why the listing cannot rely on it.
func TestTimeSlotsAreNotLexicographicallyOrdered(t *testing.T) {
	assert.False(t, sort.StringsAreSorted(TimeSlots))
}
