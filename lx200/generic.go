package lx200

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/w1xm/lx200_interface/mount"
)

// ErrRejected is returned when the mount refuses a command.
var ErrRejected = errors.New("command rejected by mount")

const (
	replyMax = 64

	slewingPollInterval  = 500 * time.Millisecond
	trackingPollInterval = time.Second

	// arrivalTolerance is how close, in degrees, a goto must get before the
	// mount is considered to have arrived once it stops moving.
	arrivalTolerance = 1.0 / 60
)

// Generic drives a mount that implements the classic Meade LX200 command
// set with a working goto.
type Generic struct {
	t   Transport
	cfg mount.Config

	LST func() float64

	connected   bool
	hasLocation bool

	ra, dec             float64
	lastRA, lastDEC     float64
	targetRA, targetDEC float64

	trackState   mount.TrackState
	moved        bool
	parked       bool
	slewRate     mount.SlewRate
	pollInterval time.Duration
	alert        string

	status    mount.Status
	published bool
}

var _ mount.Mount = (*Generic)(nil)

func NewGeneric(t Transport, cfg mount.Config) *Generic {
	g := &Generic{
		t:            t,
		cfg:          cfg,
		hasLocation:  cfg.Latitude != 0 || cfg.Longitude != 0,
		trackState:   mount.Tracking,
		slewRate:     mount.SlewFind,
		pollInterval: trackingPollInterval,
	}
	g.LST = func() float64 {
		return mount.LocalSiderealTime(time.Now(), g.cfg.Longitude)
	}
	return g
}

func (g *Generic) Connect() error {
	if err := g.t.Flush(); err != nil {
		return err
	}
	if err := g.readPosition(); err != nil {
		return fmt.Errorf("mount not responding to :GR#: %w", err)
	}
	g.connected = true
	if g.hasLocation {
		if err := g.sendLocation(); err != nil {
			return err
		}
	}
	g.publish()
	return nil
}

func (g *Generic) PollInterval() time.Duration {
	return g.pollInterval
}

func (g *Generic) query(cmd string) (string, error) {
	if err := g.t.Write(cmd); err != nil {
		return "", err
	}
	return g.t.ReadUntil('#', replyMax)
}

// command sends cmd and expects the single character reply "1".
func (g *Generic) command(cmd string) error {
	if err := g.t.Write(cmd); err != nil {
		return err
	}
	reply, err := g.t.ReadN(1)
	if err != nil {
		return fmt.Errorf("reading reply to %q: %w", cmd, err)
	}
	if reply != "1" {
		return fmt.Errorf("%w: %q answered %q", ErrRejected, cmd, reply)
	}
	return nil
}

func (g *Generic) readPosition() error {
	reply, err := g.query(":GR#")
	if err != nil {
		return err
	}
	ra, err := ParseRA(reply)
	if err != nil {
		return err
	}
	if reply, err = g.query(":GD#"); err != nil {
		return err
	}
	dec, err := ParseDec(reply)
	if err != nil {
		return err
	}
	g.ra, g.dec = ra, dec
	return nil
}

func (g *Generic) ReadStatus() error {
	if !g.connected {
		return errors.New("not connected")
	}
	g.lastRA, g.lastDEC = g.ra, g.dec
	if err := g.readPosition(); err != nil {
		g.alert = err.Error()
		g.publish()
		return err
	}
	g.alert = ""
	switch {
	case !g.stopped():
		g.moved = true
	case g.trackState == mount.Slewing && g.arrived():
		g.trackState = mount.Tracking
		g.pollInterval = trackingPollInterval
	case g.trackState == mount.Parking && g.moved:
		g.trackState = mount.Tracking
		g.pollInterval = trackingPollInterval
		g.parked = true
	}
	g.publish()
	return nil
}

func (g *Generic) stopped() bool {
	return g.ra == g.lastRA && g.dec == g.lastDEC
}

func (g *Generic) arrived() bool {
	dra := math.Abs(math.Remainder(g.ra-g.targetRA, 24)) * 15 * math.Cos(g.dec*math.Pi/180)
	return dra <= arrivalTolerance && math.Abs(g.dec-g.targetDEC) <= arrivalTolerance
}

func (g *Generic) setTarget(ra, dec float64) error {
	if err := g.command(":Sr" + FormatRA(ra) + "#"); err != nil {
		return err
	}
	return g.command(":Sd" + FormatDec(dec) + "#")
}

func (g *Generic) Goto(ra, dec float64) error {
	if dec < -90 || dec > 90 {
		return fmt.Errorf("declination %v outside [-90,90]", dec)
	}
	if err := g.setTarget(ra, dec); err != nil {
		return err
	}
	if err := g.t.Write(":MS#"); err != nil {
		return err
	}
	reply, err := g.t.ReadN(1)
	if err != nil {
		return err
	}
	if reply != "0" {
		// 1 and 2 are followed by a message: below horizon, above limit.
		msg, _ := g.t.ReadUntil('#', replyMax)
		err := fmt.Errorf("%w: goto: %s", ErrRejected, msg)
		g.alert = err.Error()
		g.publish()
		return err
	}
	g.targetRA, g.targetDEC = ra, dec
	g.trackState = mount.Slewing
	g.parked = false
	g.pollInterval = slewingPollInterval
	g.alert = ""
	g.publish()
	return nil
}

func (g *Generic) Sync(ra, dec float64) error {
	if err := g.setTarget(ra, dec); err != nil {
		return err
	}
	if _, err := g.query(":CM#"); err != nil {
		return err
	}
	if err := g.readPosition(); err != nil {
		return err
	}
	g.publish()
	return nil
}

func (g *Generic) Abort() error {
	g.trackState = mount.Tracking
	g.pollInterval = trackingPollInterval
	defer g.publish()
	return g.t.Write(":Q#")
}

// Park sends the Autostar park command. The mount reports no progress, so
// it is considered parked once it has moved and stopped.
func (g *Generic) Park() error {
	if err := g.t.Write(":hP#"); err != nil {
		return err
	}
	g.trackState = mount.Parking
	g.pollInterval = slewingPollInterval
	g.moved = false
	g.publish()
	return nil
}

func (g *Generic) Move(dir mount.Direction, start bool) error {
	cmd := ":Q"
	if start {
		cmd = ":M"
	}
	switch dir {
	case mount.North:
		cmd += "n#"
	case mount.South:
		cmd += "s#"
	case mount.East:
		cmd += "e#"
	case mount.West:
		cmd += "w#"
	default:
		return fmt.Errorf("unknown direction %v", dir)
	}
	return g.t.Write(cmd)
}

func (g *Generic) SetSlewRate(rate mount.SlewRate) error {
	if err := g.t.Write(rate.Command()); err != nil {
		return err
	}
	g.slewRate = rate
	g.publish()
	return nil
}

// sendLocation loads the site into the mount. LX200 longitudes are positive
// west, in [0,360).
func (g *Generic) sendLocation() error {
	_, d, m, _ := splitSexagesimal(g.cfg.Latitude)
	sign := "+"
	if g.cfg.Latitude < 0 {
		sign = "-"
	}
	if err := g.command(fmt.Sprintf(":St%s%02d*%02d#", sign, d, m)); err != nil {
		return fmt.Errorf("setting latitude: %w", err)
	}
	west := math.Mod(360-g.cfg.Longitude, 360)
	_, d, m, _ = splitSexagesimal(west)
	if err := g.command(fmt.Sprintf(":Sg%03d*%02d#", d%360, m)); err != nil {
		return fmt.Errorf("setting longitude: %w", err)
	}
	return nil
}

func (g *Generic) UpdateLocation(latitude, longitude float64) error {
	g.cfg.Latitude, g.cfg.Longitude = latitude, longitude
	g.hasLocation = true
	if !g.connected {
		return nil
	}
	defer g.publish()
	return g.sendLocation()
}

func (g *Generic) Status() mount.Status {
	s := mount.Status{
		Driver:         "lx200",
		RightAscension: g.ra,
		Declination:    g.dec,
		TrackState:     g.trackState,
		SlewRate:       g.slewRate,
		Parked:         g.parked,
		PollInterval:   g.pollInterval,
		Alert:          g.alert,
	}
	if g.hasLocation {
		s.HasLocation = true
		s.Azimuth, s.Altitude = mount.Horizontal(mount.HourAngle(g.LST(), g.ra), g.dec, g.cfg.Latitude)
	}
	return s
}

func (g *Generic) publish() {
	s := g.Status()
	if g.published && !s.Changed(g.status) {
		return
	}
	g.status, g.published = s, true
	if g.cfg.Callback != nil {
		g.cfg.Callback(s)
	}
}
