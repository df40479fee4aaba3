// Package eq500x drives the Omegon EQ500X mount. The mount only understands
// its own mechanical coordinates and has no usable goto, so slews are done by
// polling the position and driving each axis at one of four rates until the
// reported position matches the target.
package eq500x

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/w1xm/lx200_interface/lx200"
	"github.com/w1xm/lx200_interface/mount"
)

const (
	replyMax = 64

	// coarseGotoRadius is how close, in degrees, a coarse goto that never
	// seemed to move must be to count as arrived.
	coarseGotoRadius = 5

	// DefaultTimeout is the per-exchange serial timeout.
	DefaultTimeout = 5 * time.Second
)

type Driver struct {
	t   lx200.Transport
	cfg mount.Config

	// LST returns the local sidereal time in hours. It defaults to the mean
	// sidereal time at the configured longitude.
	LST func() float64

	connected   bool
	hasLocation bool

	current MechanicalPoint
	target  MechanicalPoint
	last    MechanicalPoint

	session     session
	gotoEngaged bool
	gotoMoved   bool
	parking     bool
	parked      bool

	trackState    mount.TrackState
	pierSide      mount.PierSide
	slewRate      mount.SlewRate
	savedSlewRate mount.SlewRate
	pollInterval  time.Duration
	alert         string
	readErr       string

	status    mount.Status
	published bool
}

var _ mount.Mount = (*Driver)(nil)

func New(t lx200.Transport, cfg mount.Config) *Driver {
	d := &Driver{
		t:            t,
		cfg:          cfg,
		hasLocation:  cfg.Latitude != 0 || cfg.Longitude != 0,
		session:      newSession(),
		trackState:   mount.Tracking,
		slewRate:     mount.SlewFind,
		pollInterval: trackingPollInterval,
	}
	d.LST = func() float64 {
		return mount.LocalSiderealTime(time.Now(), d.cfg.Longitude)
	}
	return d
}

// Connect checks that the mount answers position queries.
func (d *Driver) Connect() error {
	if err := d.t.Flush(); err != nil {
		return fmt.Errorf("clearing input: %w", err)
	}
	var err error
	for i := 0; i < 2; i++ {
		var p MechanicalPoint
		if p, err = d.readPosition(); err == nil {
			d.current = p
			d.last = p
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("mount not responding to :GD#/:GR#: %w", err)
	}
	d.connected = true
	d.trackState = mount.Tracking
	d.pollInterval = trackingPollInterval
	d.updatePierSide()
	d.publish()
	return nil
}

func (d *Driver) PollInterval() time.Duration {
	return d.pollInterval
}

// CurrentPosition returns the mechanical position read by the last poll.
func (d *Driver) CurrentPosition() MechanicalPoint {
	return d.current
}

// TargetPosition returns the mechanical target of the current slew.
func (d *Driver) TargetPosition() MechanicalPoint {
	return d.target
}

// Countdown returns the number of polls left before the current slew is
// abandoned.
func (d *Driver) Countdown() int {
	return d.session.countdown
}

// readPosition reads DEC first, as it carries the pointing state.
func (d *Driver) readPosition() (MechanicalPoint, error) {
	var p MechanicalPoint
	dec, err := d.query(":GD#")
	if err != nil {
		return p, fmt.Errorf("reading DEC: %w", err)
	}
	if err := p.ParseDEC(dec); err != nil {
		return p, err
	}
	ra, err := d.query(":GR#")
	if err != nil {
		return p, fmt.Errorf("reading RA: %w", err)
	}
	if err := p.ParseRA(ra); err != nil {
		return p, err
	}
	return p, nil
}

func (d *Driver) query(cmd string) (string, error) {
	if err := d.t.Write(cmd); err != nil {
		return "", err
	}
	return d.t.ReadUntil('#', replyMax)
}

// setTarget loads p into the mount's target registers.
func (d *Driver) setTarget(p MechanicalPoint) error {
	dec, err := p.DECString()
	if err != nil {
		return err
	}
	cmd := ":Sr" + p.RAString() + "#:Sd" + dec + "#"
	if err := d.t.Write(cmd); err != nil {
		return err
	}
	reply, err := d.t.ReadN(2)
	if err != nil {
		return fmt.Errorf("reading reply to %q: %w", cmd, err)
	}
	if reply != "11" {
		return fmt.Errorf("%w: %q answered %q", ErrRejected, cmd, reply)
	}
	return nil
}

// hourAngle returns the hour angle of ra in (-12,12).
func (d *Driver) hourAngle(ra float64) float64 {
	ha := mount.HourAngle(d.LST(), ra)
	if ha >= 12 {
		ha -= 24
	}
	return ha
}

func (d *Driver) updatePierSide() {
	ha := d.hourAngle(d.current.RAsky())
	switch d.current.PointingState() {
	case PointingNormal:
		if ha < 6 {
			d.pierSide = mount.PierEast
		} else {
			d.pierSide = mount.PierWest
		}
	case PointingBeyondPole:
		if ha > 6 {
			d.pierSide = mount.PierEast
		} else {
			d.pierSide = mount.PierWest
		}
	}
}

func (d *Driver) converging() bool {
	return d.trackState == mount.Slewing || d.trackState == mount.Parking
}

// ReadStatus runs one poll: it reads the position and, while slewing,
// advances the centering loop.
func (d *Driver) ReadStatus() error {
	if !d.connected {
		return ErrNotConnected
	}
	p, err := d.readPosition()
	if err != nil {
		d.readErr = err.Error()
		d.publish()
		return err
	}
	d.readErr = ""
	previous := d.last
	d.current = p
	d.last = p
	d.updatePierSide()

	if d.converging() && d.gotoEngaged {
		if err := d.pollCoarseGoto(previous); err != nil {
			return d.slewFailure(err)
		}
	}

	if d.converging() && !d.gotoEngaged {
		raDelta := d.current.raSecondsTo(d.target)
		decDelta := d.target.dec - d.current.dec
		if raDelta != 0 || decDelta != 0 {
			cmd, res := d.session.step(raDelta*15, decDelta)
			if cmd != "" {
				if err := d.t.Write(cmd); err != nil {
					return d.slewFailure(fmt.Errorf("centering on %v: %w", d.target, err))
				}
				d.slewRate = adjustments[d.session.previous].rate
			}
			switch res {
			case stepExhausted:
				return d.slewFailure(fmt.Errorf("%w: %v not reached from %v in %d polls", ErrConvergence, d.target, d.current, maxConvergenceLoops))
			case stepAdjusting:
				d.pollInterval = adjustments[d.session.current].pollInterval
			case stepSettled:
				log.Printf("centering delta (%d\", %d\") intermediate adjustment complete", raDelta*15, decDelta)
			}
		} else if err := d.finishSlew(); err != nil {
			d.fail(err)
			return err
		}
	}

	d.publish()
	return nil
}

// pollCoarseGoto waits for the mount's own goto to stop, then hands over to
// the centering loop.
func (d *Driver) pollCoarseGoto(previous MechanicalPoint) error {
	if !d.current.Equal(previous) {
		d.gotoMoved = true
	} else if d.gotoMoved || d.nearTarget() {
		d.gotoEngaged = false
		log.Printf("coarse goto stopped at %v, centering on %v", d.current, d.target)
		if err := d.setTarget(d.target); err != nil {
			return err
		}
		d.session = newSession()
		return nil
	}
	d.session.countdown--
	if d.session.countdown <= 0 {
		return fmt.Errorf("%w: coarse goto to %v did not stop", ErrConvergence, d.target)
	}
	return nil
}

func (d *Driver) nearTarget() bool {
	return math.Abs(d.current.RADegreesTo(d.target)) <= coarseGotoRadius &&
		math.Abs(d.current.DECDegreesTo(d.target)) <= coarseGotoRadius
}

func (d *Driver) finishSlew() error {
	log.Printf("slew to %v complete", d.target)
	d.session = newSession()
	d.pollInterval = trackingPollInterval
	d.trackState = mount.Tracking
	if d.parking {
		d.parking = false
		d.parked = true
	}
	if err := d.t.Write(":Q#"); err != nil {
		return err
	}
	return d.restoreSlewRate()
}

// slewFailure stops the mount and returns to tracking. A fresh Goto is
// needed to try again.
func (d *Driver) slewFailure(err error) error {
	log.Printf("slew to %v failed: %v", d.target, err)
	if werr := d.t.Write(":Q#"); werr != nil {
		log.Printf("stopping mount: %v", werr)
	}
	if rerr := d.restoreSlewRate(); rerr != nil {
		log.Printf("restoring slew rate: %v", rerr)
	}
	d.session = newSession()
	d.gotoEngaged = false
	d.parking = false
	d.pollInterval = trackingPollInterval
	d.trackState = mount.Tracking
	d.fail(err)
	return err
}

func (d *Driver) fail(err error) {
	d.alert = err.Error()
	d.publish()
}

func (d *Driver) restoreSlewRate() error {
	return d.SetSlewRate(d.savedSlewRate)
}

// Goto slews to ra hours and dec degrees, choosing the pointing state from
// the hour angle of the target.
func (d *Driver) Goto(ra, dec float64) error {
	if !d.connected {
		return ErrNotConnected
	}
	if dec < -90 || dec > 90 {
		return fmt.Errorf("%w: declination %v outside [-90,90]", ErrFormat, dec)
	}
	ha := d.hourAngle(ra)
	var target MechanicalPoint
	if 0 <= ha && ha < 12 {
		target.SetPointingState(PointingNormal)
	} else {
		target.SetPointingState(PointingBeyondPole)
	}
	target.SetRAsky(ra)
	target.SetDECsky(dec)

	if d.converging() {
		if err := d.Abort(); err != nil {
			return fmt.Errorf("aborting previous slew: %w", err)
		}
	}
	log.Printf("goto RA %s DEC %s, HA %.3fh, %s", lx200.FormatRA(ra), lx200.FormatDec(dec), ha, target.PointingState())
	return d.beginSlew(target, mount.Slewing)
}

func (d *Driver) beginSlew(target MechanicalPoint, state mount.TrackState) error {
	if err := d.setTarget(target); err != nil {
		d.fail(fmt.Errorf("setting target: %w", err))
		return err
	}
	d.target = target
	d.session = newSession()
	d.savedSlewRate = d.slewRate
	d.trackState = state
	d.parked = false
	d.gotoEngaged = false
	d.alert = ""

	far := abs(d.current.raSecondsTo(target)*15) > adjustments[mount.SlewFind].distance ||
		abs(target.dec-d.current.dec) > adjustments[mount.SlewFind].distance
	if d.cfg.CoarseGoto && far {
		if err := d.coarseGoto(); err != nil {
			return d.slewFailure(fmt.Errorf("coarse goto: %w", err))
		}
	}
	d.publish()
	return nil
}

// coarseGoto starts the mount's own goto to the loaded target.
func (d *Driver) coarseGoto() error {
	if err := d.t.Write(":MS#"); err != nil {
		return err
	}
	reply, err := d.t.ReadN(1)
	if err != nil {
		return err
	}
	if reply != "0" {
		msg, _ := d.t.ReadUntil('#', replyMax)
		return fmt.Errorf("%w: :MS# answered %q", ErrRejected, reply+msg)
	}
	d.gotoEngaged = true
	d.gotoMoved = false
	d.pollInterval = adjustments[len(adjustments)-1].pollInterval
	return nil
}

// Sync declares that the mount points at ra and dec, keeping its pointing
// state.
func (d *Driver) Sync(ra, dec float64) error {
	if !d.connected {
		return ErrNotConnected
	}
	target := MechanicalPoint{pointing: d.current.pointing}
	target.SetRAsky(ra)
	target.SetDECsky(dec)
	err := func() error {
		if err := d.setTarget(target); err != nil {
			return err
		}
		if err := d.t.Flush(); err != nil {
			return err
		}
		reply, err := d.query(":CM#")
		if err != nil {
			return err
		}
		if reply == "No name" {
			return fmt.Errorf("%w: :CM# answered %q", ErrRejected, reply)
		}
		p, err := d.readPosition()
		if err != nil {
			return err
		}
		d.current = p
		d.last = p
		return nil
	}()
	if err != nil {
		err = fmt.Errorf("sync to %s %s: %w", lx200.FormatRA(ra), lx200.FormatDec(dec), err)
		d.fail(err)
		return err
	}
	log.Printf("synced to RA %s DEC %s", lx200.FormatRA(ra), lx200.FormatDec(dec))
	d.target = target
	d.updatePierSide()
	d.alert = ""
	d.publish()
	return nil
}

// Abort stops any slew and returns to tracking at the rate selected before
// the slew.
func (d *Driver) Abort() error {
	d.pollInterval = trackingPollInterval
	d.trackState = mount.Tracking
	d.session = newSession()
	d.gotoEngaged = false
	d.parking = false
	defer d.publish()
	if err := d.t.Write(":Q#"); err != nil {
		return fmt.Errorf("abort: %w", err)
	}
	return d.restoreSlewRate()
}

// Park slews to the power-on position, mechanical 0/0, looking at the pole.
func (d *Driver) Park() error {
	if !d.connected {
		return ErrNotConnected
	}
	if d.converging() {
		if err := d.Abort(); err != nil {
			return err
		}
	}
	if err := d.beginSlew(NewMechanicalPoint(0, 0), mount.Parking); err != nil {
		return err
	}
	d.parking = true
	return nil
}

// Move starts or stops manual motion. The EQ500X has north and south
// swapped: :Mn# moves the mechanical DEC away from the pole.
func (d *Driver) Move(dir mount.Direction, start bool) error {
	var axis string
	switch dir {
	case mount.North:
		axis = "s"
	case mount.South:
		axis = "n"
	case mount.East:
		axis = "e"
	case mount.West:
		axis = "w"
	default:
		return fmt.Errorf("unknown direction %v", dir)
	}
	cmd := ":M" + axis + "#"
	if !start {
		cmd = ":Q" + axis + "#"
	}
	if err := d.t.Write(cmd); err != nil {
		return fmt.Errorf("move %v: %w", dir, err)
	}
	return nil
}

func (d *Driver) SetSlewRate(rate mount.SlewRate) error {
	if rate < mount.SlewGuide || rate > mount.SlewMax {
		return fmt.Errorf("unknown slew rate %d", rate)
	}
	if err := d.t.Write(rate.Command()); err != nil {
		return fmt.Errorf("setting slew rate %v: %w", rate, err)
	}
	d.slewRate = rate
	d.publish()
	return nil
}

// UpdateLocation records the site. If the mount still sits at its power-on
// position it is synced so that it looks six hours east of the meridian.
func (d *Driver) UpdateLocation(latitude, longitude float64) error {
	d.cfg.Latitude, d.cfg.Longitude = latitude, longitude
	d.hasLocation = true
	log.Printf("location updated: latitude %g longitude %g", latitude, longitude)
	if !d.connected {
		return nil
	}
	p, err := d.readPosition()
	if err != nil {
		return fmt.Errorf("reading position: %w", err)
	}
	d.current = p
	if !p.AtParkingPosition() {
		d.publish()
		return nil
	}
	lst := d.LST()
	log.Printf("mount at parking position, syncing to LST %.4fh", lst)
	return d.Sync(mount.NormalizeHours(lst-6), p.DECsky())
}

func (d *Driver) Status() mount.Status {
	s := mount.Status{
		Driver:         "eq500x",
		RightAscension: d.current.RAsky(),
		Declination:    d.current.DECsky(),
		PierSide:       d.pierSide,
		TrackState:     d.trackState,
		SlewRate:       d.slewRate,
		Parked:         d.parked,
		PollInterval:   d.pollInterval,
		Alert:          d.alert,
	}
	if s.Alert == "" {
		s.Alert = d.readErr
	}
	if d.hasLocation {
		s.HasLocation = true
		s.Azimuth, s.Altitude = mount.Horizontal(d.hourAngle(s.RightAscension), s.Declination, d.cfg.Latitude)
	}
	return s
}

// publish sends the status to the callback when it changed.
func (d *Driver) publish() {
	s := d.Status()
	if d.published && !s.Changed(d.status) {
		return
	}
	d.status = s
	d.published = true
	if d.cfg.Callback != nil {
		d.cfg.Callback(s)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
