package eq500x

import (
	"fmt"
	"time"

	"github.com/w1xm/lx200_interface/mount"
)

// adjustment is one slew-rate regime of the centering loop. Distances are
// in arcseconds.
type adjustment struct {
	rate mount.SlewRate
	// epsilon is the smallest error this rate can correct.
	epsilon int
	// distance is the largest error this rate is used for.
	distance int
	// pollInterval is how often the position is checked at this rate.
	pollInterval time.Duration
}

// adjustments is ordered from slowest to fastest.
var adjustments = [...]adjustment{
	{mount.SlewGuide, 1, 42, 100 * time.Millisecond},               // 1", 0.7'
	{mount.SlewCentering, 42, 10 * 60, 200 * time.Millisecond},     // 0.7', 10'
	{mount.SlewFind, 10 * 60, 5 * 3600, 500 * time.Millisecond},    // 10', 5°
	{mount.SlewMax, 5 * 3600, 360 * 3600, 1000 * time.Millisecond}, // 5°, 360°
}

const (
	// maxConvergenceLoops bounds the polls spent at one regime. Moving to
	// another regime starts a new count.
	maxConvergenceLoops = 144

	trackingPollInterval = 1000 * time.Millisecond
)

func init() {
	if err := checkAdjustments(adjustments[:]); err != nil {
		panic(err)
	}
}

// checkAdjustments verifies that each regime can resolve what the next
// faster one leaves behind.
func checkAdjustments(table []adjustment) error {
	for i, a := range table {
		if a.distance < a.epsilon {
			return fmt.Errorf("adjustment %v: distance %d\" below epsilon %d\"", a.rate, a.distance, a.epsilon)
		}
		if i+1 < len(table) && table[i+1].epsilon > a.distance {
			return fmt.Errorf("adjustment %v: epsilon %d\" above %v distance %d\"", table[i+1].rate, table[i+1].epsilon, a.rate, a.distance)
		}
	}
	return nil
}

// selectAdjustment returns the index of the slowest regime covering delta
// arcseconds, or the fastest one if none does.
func selectAdjustment(delta int) int {
	if delta < 0 {
		delta = -delta
	}
	for i, a := range adjustments {
		if delta <= a.distance {
			return i
		}
	}
	return len(adjustments) - 1
}
