package eq500x

import (
	"fmt"
	"math"
)

// PointingState tells which of the two mechanical orientations reaching the
// same sky position a MechanicalPoint is in.
type PointingState int

const (
	PointingNormal PointingState = iota
	PointingBeyondPole
)

func (s PointingState) String() string {
	if s == PointingBeyondPole {
		return "BEYOND_POLE"
	}
	return "NORMAL"
}

const (
	day = 24 * 3600

	// Smallest steps the mount reports, in arcseconds.
	raGranularity  = 15
	decGranularity = 1
)

// MechanicalPoint is a position in the mount's own coordinates. RA is kept
// in whole seconds of time in [0,24h) and DEC in whole arcseconds, which is
// the resolution of the wire protocol.
//
// Mechanical DEC 0 is the pole. Normal pointing covers mechanical DEC
// [0,+180] where sky DEC is 90-DECm; beyond the pole covers (-180,0), where
// the telescope looks at the sky twelve hours away from the mechanical RA.
// The mount also reports values out to ±255°59'59".
type MechanicalPoint struct {
	ra       int
	dec      int
	pointing PointingState
}

// NewMechanicalPoint returns the point at mechanical ra hours and dec
// degrees, with the pointing state inferred from dec.
func NewMechanicalPoint(ra, dec float64) MechanicalPoint {
	var p MechanicalPoint
	p.SetRAm(ra)
	p.SetDECm(dec)
	return p
}

func (p MechanicalPoint) PointingState() PointingState {
	return p.pointing
}

func (p *MechanicalPoint) SetPointingState(s PointingState) {
	p.pointing = s
}

// AtParkingPosition reports whether the mount is at its power-on position,
// looking at the pole.
func (p MechanicalPoint) AtParkingPosition() bool {
	return p.ra == 0 && p.dec == 0
}

// RAm returns the mechanical RA in hours.
func (p MechanicalPoint) RAm() float64 {
	return float64(p.ra) / 3600
}

// DECm returns the mechanical DEC in degrees.
func (p MechanicalPoint) DECm() float64 {
	return float64(p.dec) / 3600
}

func (p *MechanicalPoint) SetRAm(hours float64) {
	p.ra = roundHours(hours)
}

// SetDECm sets the mechanical DEC and infers the pointing state from it.
func (p *MechanicalPoint) SetDECm(degrees float64) {
	p.dec = int(math.Round(math.Mod(degrees, 256) * 3600))
	p.pointing = pointingOf(p.dec)
}

// pointingOf is the single rule mapping mechanical DEC to pointing state:
// normal in (-256°,-180°) and [0°,+180°], beyond the pole elsewhere.
func pointingOf(dec int) PointingState {
	if (-256*3600 < dec && dec < -180*3600) || (0 <= dec && dec <= 180*3600) {
		return PointingNormal
	}
	return PointingBeyondPole
}

func roundHours(hours float64) int {
	h := math.Mod(hours, 24)
	if h < 0 {
		h += 24
	}
	return int(math.Round(h*3600)) % day
}

// RAsky returns the sky right ascension in hours, in [0,24).
func (p MechanicalPoint) RAsky() float64 {
	if p.pointing == PointingBeyondPole {
		return float64((p.ra+12*3600)%day) / 3600
	}
	return float64(p.ra%day) / 3600
}

// DECsky returns the sky declination in degrees, in [-90,+90].
func (p MechanicalPoint) DECsky() float64 {
	dec := 90*3600 - p.dec
	if p.pointing == PointingBeyondPole {
		dec = 180*3600 - dec
	}
	for dec > 90*3600 {
		dec -= 180 * 3600
	}
	for dec < -90*3600 {
		dec += 180 * 3600
	}
	return float64(dec) / 3600
}

// SetRAsky sets the mechanical RA reaching sky RA hours in the current
// pointing state.
func (p *MechanicalPoint) SetRAsky(hours float64) {
	if p.pointing == PointingBeyondPole {
		hours += 12
	}
	p.ra = roundHours(hours)
}

// SetDECsky sets the mechanical DEC reaching sky DEC degrees in the current
// pointing state. The pointing state is kept.
func (p *MechanicalPoint) SetDECsky(degrees float64) {
	if p.pointing == PointingBeyondPole {
		degrees = 180 - degrees
	}
	p.dec = 90*3600 - int(math.Round(degrees*3600))
}

// raSecondsTo is the signed shortest distance from p to q in seconds of
// time, in [-12h,+12h].
func (p MechanicalPoint) raSecondsTo(q MechanicalPoint) int {
	delta := q.ra - p.ra
	if delta > 12*3600 {
		delta -= day
	}
	if delta < -12*3600 {
		delta += day
	}
	return delta
}

// RADegreesTo returns the signed circular RA distance from p to q in
// degrees, within [-180,+180].
func (p MechanicalPoint) RADegreesTo(q MechanicalPoint) float64 {
	return float64(p.raSecondsTo(q)*15) / 3600
}

// DECDegreesTo returns the signed DEC distance from p to q in degrees.
func (p MechanicalPoint) DECDegreesTo(q MechanicalPoint) float64 {
	return float64(q.dec-p.dec) / 3600
}

// Equal reports whether p and q share a pointing state and are closer than
// the protocol resolution on both axes.
func (p MechanicalPoint) Equal(q MechanicalPoint) bool {
	return p.pointing == q.pointing && p.raSecondsTo(q) == 0 && q.dec == p.dec
}

// RAString formats the mechanical RA as HH:MM:SS. The wire RA does not
// depend on the pointing state.
func (p MechanicalPoint) RAString() string {
	return fmt.Sprintf("%02d:%02d:%02d", (p.ra/3600)%24, (p.ra/60)%60, p.ra%60)
}

// ParseRA reads an HH:MM:SS mechanical RA. Hours wrap at 24.
func (p *MechanicalPoint) ParseRA(s string) error {
	if len(s) != 8 || s[2] != ':' || s[5] != ':' {
		return fmt.Errorf("%w: RA %q is not HH:MM:SS", ErrFormat, s)
	}
	h, ok1 := twoDigits(s[0:2])
	m, ok2 := twoDigits(s[3:5])
	sec, ok3 := twoDigits(s[6:8])
	if !ok1 || !ok2 || !ok3 || m > 59 || sec > 59 {
		return fmt.Errorf("%w: RA %q is not HH:MM:SS", ErrFormat, s)
	}
	p.ra = ((h%24)*3600 + m*60 + sec) % day
	return nil
}

func (p MechanicalPoint) decParts() (sign byte, degrees, minutes, seconds int, err error) {
	sign = '+'
	v := p.dec
	if v < 0 {
		sign = '-'
		v = -v
	}
	degrees = v / 3600
	if degrees > 255 {
		return 0, 0, 0, 0, fmt.Errorf("%w: mechanical DEC %d° out of range", ErrFormat, degrees)
	}
	return sign, degrees, (v / 60) % 60, v % 60, nil
}

// DECString formats the mechanical DEC as sDD:MM:SS, widening to sDDD:MM:SS
// past 99°, for position setting commands.
func (p MechanicalPoint) DECString() (string, error) {
	sign, d, m, s, err := p.decParts()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%c%02d:%02d:%02d", sign, d, m, s), nil
}

// DECStringReport formats the mechanical DEC the way the mount reports it:
// sDD:MM:SS where the tens character runs 0-9, then :;<=>?@ for 10-16, then
// A-I for 17-25.
func (p MechanicalPoint) DECStringReport() (string, error) {
	sign, d, m, s, err := p.decParts()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%c%c%c:%02d:%02d", sign, byte('0'+d/10), byte('0'+d%10), m, s), nil
}

// ParseDEC reads a mechanical DEC as reported by the mount and infers the
// pointing state from it.
func (p *MechanicalPoint) ParseDEC(s string) error {
	if len(s) != 9 || (s[0] != '+' && s[0] != '-') || s[3] != ':' || s[6] != ':' {
		return fmt.Errorf("%w: DEC %q is not sDD:MM:SS", ErrFormat, s)
	}
	if s[1] < '0' || s[1] > 'I' || s[2] < '0' || s[2] > '9' {
		return fmt.Errorf("%w: DEC %q degrees out of range", ErrFormat, s)
	}
	d := int(s[1]-'0')*10 + int(s[2]-'0')
	m, ok1 := twoDigits(s[4:6])
	sec, ok2 := twoDigits(s[7:9])
	if !ok1 || !ok2 || d > 255 || m > 59 || sec > 59 {
		return fmt.Errorf("%w: DEC %q is not sDD:MM:SS", ErrFormat, s)
	}
	dec := d*3600 + m*60 + sec
	if s[0] == '-' {
		dec = -dec
	}
	p.dec = dec
	p.pointing = pointingOf(dec)
	return nil
}

func twoDigits(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

func (p MechanicalPoint) String() string {
	dec, err := p.DECString()
	if err != nil {
		dec = fmt.Sprintf("%+d\"", p.dec)
	}
	return fmt.Sprintf("%s %s %s", p.RAString(), dec, p.pointing)
}
