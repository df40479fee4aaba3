package eq500x

import "strings"

// session is the state of one centering run. It lives across polls and is
// reset whenever a slew starts or is aborted.
type session struct {
	raIncrease, raDecrease   bool
	decIncrease, decDecrease bool

	countdown int

	// current and previous index adjustments, -1 meaning none. current is
	// none while no correction is in progress; previous is the last rate
	// sent to the mount in this run.
	current, previous int
}

func newSession() session {
	return session{
		countdown: maxConvergenceLoops,
		current:   -1,
		previous:  -1,
	}
}

func (s *session) moving() bool {
	return s.raIncrease || s.raDecrease || s.decIncrease || s.decDecrease
}

// stop clears the movement markers without touching the countdown.
func (s *session) stop() {
	s.raIncrease, s.raDecrease = false, false
	s.decIncrease, s.decDecrease = false, false
	s.current = -1
}

type stepResult int

const (
	// stepAdjusting means axes are moving; poll again at the current rate.
	stepAdjusting stepResult = iota
	// stepSettled means every axis stopped short of the target; the next
	// poll decides whether more correction is needed.
	stepSettled
	// stepExhausted means the countdown ran out.
	stepExhausted
)

// step decides the commands for one poll from the remaining distance to
// target on each axis, in arcseconds. Positive deltas increase the mechanical
// coordinate. The returned command is sent as a single write.
func (s *session) step(raDelta, decDelta int) (string, stepResult) {
	var cmd strings.Builder

	ra := selectAdjustment(raDelta)
	dec := selectAdjustment(decDelta)

	// One rate drives both axes, so the faster requirement wins and the
	// other axis waits.
	adj := ra
	if dec > adj {
		adj = dec
	}
	s.current = adj

	if ra != adj {
		s.raIncrease = axisStop(&cmd, s.raIncrease, ":Qe#")
		s.raDecrease = axisStop(&cmd, s.raDecrease, ":Qw#")
	}
	if dec != adj {
		s.decIncrease = axisStop(&cmd, s.decIncrease, ":Qn#")
		s.decDecrease = axisStop(&cmd, s.decDecrease, ":Qs#")
	}

	// Every regime change is progress, so each regime gets the full
	// countdown.
	rearmed := false
	if adj != s.previous {
		cmd.WriteString(adjustments[adj].rate.Command())
		s.countdown = maxConvergenceLoops
		rearmed = true
		s.previous = adj
	}

	if ra == adj {
		eps := max(adjustments[adj].epsilon, raGranularity)
		s.raIncrease, s.raDecrease = axisDrive(&cmd, raDelta, eps, s.raIncrease, s.raDecrease, "e", "w")
	}
	if dec == adj {
		eps := max(adjustments[adj].epsilon, decGranularity)
		s.decIncrease, s.decDecrease = axisDrive(&cmd, decDelta, eps, s.decIncrease, s.decDecrease, "n", "s")
	}

	if !s.moving() {
		s.current = -1
		return cmd.String(), stepSettled
	}
	if !rearmed {
		s.countdown--
		if s.countdown <= 0 {
			return cmd.String(), stepExhausted
		}
	}
	return cmd.String(), stepAdjusting
}

func axisStop(cmd *strings.Builder, moving bool, stop string) bool {
	if moving {
		cmd.WriteString(stop)
	}
	return false
}

// axisDrive starts, stops or reverses one axis so that it moves toward the
// target only while the error is at least eps. up and down name the Meade
// directions increasing and decreasing the mechanical coordinate.
func axisDrive(cmd *strings.Builder, delta, eps int, increase, decrease bool, up, down string) (bool, bool) {
	wantIncrease := delta >= eps
	wantDecrease := delta <= -eps

	if increase && !wantIncrease {
		cmd.WriteString(":Q" + up + "#")
		increase = false
	}
	if decrease && !wantDecrease {
		cmd.WriteString(":Q" + down + "#")
		decrease = false
	}
	if wantIncrease && !increase {
		cmd.WriteString(":M" + up + "#")
		increase = true
	}
	if wantDecrease && !decrease {
		cmd.WriteString(":M" + down + "#")
		decrease = true
	}
	return increase, decrease
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
