// Package mount defines the capability set shared by all telescope mount
// drivers and the status they publish.
package mount

import (
	"errors"
	"time"
)

// ErrUnsupported is returned by drivers for capabilities the hardware lacks.
var ErrUnsupported = errors.New("operation not supported by this mount")

// Mount is implemented by each vendor driver. Calls are not safe for
// concurrent use; callers serialize them (see Poller).
type Mount interface {
	// Connect performs the connection handshake.
	Connect() error
	// ReadStatus runs one poll cycle.
	ReadStatus() error
	// PollInterval is the delay before the next ReadStatus.
	PollInterval() time.Duration

	// Goto slews to sky coordinates, ra in hours and dec in degrees.
	Goto(ra, dec float64) error
	Sync(ra, dec float64) error
	Abort() error
	Park() error

	Move(dir Direction, start bool) error
	SetSlewRate(rate SlewRate) error
	UpdateLocation(latitude, longitude float64) error

	Status() Status
}

type StatusCallback func(status Status)

type TrackState int

const (
	Tracking TrackState = iota
	Slewing
	Parking
)

func (s TrackState) String() string {
	switch s {
	case Tracking:
		return "TRACKING"
	case Slewing:
		return "SLEWING"
	case Parking:
		return "PARKING"
	}
	return "UNKNOWN"
}

func (s TrackState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type PierSide int

const (
	PierUnknown PierSide = iota
	PierEast
	PierWest
)

func (p PierSide) String() string {
	switch p {
	case PierEast:
		return "EAST"
	case PierWest:
		return "WEST"
	}
	return "UNKNOWN"
}

func (p PierSide) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// SlewRate is ordered from slowest to fastest.
type SlewRate int

const (
	SlewGuide SlewRate = iota
	SlewCentering
	SlewFind
	SlewMax
)

func (r SlewRate) String() string {
	switch r {
	case SlewGuide:
		return "GUIDE"
	case SlewCentering:
		return "CENTERING"
	case SlewFind:
		return "FIND"
	case SlewMax:
		return "MAX"
	}
	return "UNKNOWN"
}

func (r SlewRate) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Command returns the Meade rate selection command.
func (r SlewRate) Command() string {
	switch r {
	case SlewGuide:
		return ":RG#"
	case SlewCentering:
		return ":RC#"
	case SlewFind:
		return ":RM#"
	case SlewMax:
		return ":RS#"
	}
	return ""
}

type Direction int

const (
	North Direction = iota
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "N"
	case South:
		return "S"
	case East:
		return "E"
	case West:
		return "W"
	}
	return "?"
}

// Status is a snapshot of a mount, published after every change.
type Status struct {
	Driver string `json:"driver"`

	// RightAscension in hours, Declination in degrees.
	RightAscension float64 `json:"ra"`
	Declination    float64 `json:"dec"`

	// Azimuth and Altitude are only valid when HasLocation is set.
	HasLocation bool    `json:"has_location"`
	Azimuth     float64 `json:"azimuth"`
	Altitude    float64 `json:"altitude"`

	PierSide   PierSide   `json:"pier_side"`
	TrackState TrackState `json:"track_state"`
	SlewRate   SlewRate   `json:"slew_rate"`
	Parked     bool       `json:"parked"`

	PollInterval time.Duration `json:"poll_interval"`

	// Alert carries the last poll or command failure, empty when healthy.
	Alert string `json:"alert,omitempty"`
}

// Changed reports whether s differs from o other than in Azimuth and
// Altitude, which follow sidereal time even while the mount stands still.
func (s Status) Changed(o Status) bool {
	s.Azimuth, s.Altitude = o.Azimuth, o.Altitude
	return s != o
}
