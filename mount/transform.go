package mount

import (
	"math"
	"time"
)

// j2000 is 2000-01-01T12:00:00 TT, approximated in UTC.
var j2000 = time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC)

// GreenwichSiderealTime returns the mean sidereal time at Greenwich in hours.
func GreenwichSiderealTime(t time.Time) float64 {
	d := t.Sub(j2000).Hours() / 24
	return NormalizeHours(18.697374558 + 24.06570982441908*d)
}

// LocalSiderealTime returns the mean sidereal time in hours for a longitude
// in degrees, positive east.
func LocalSiderealTime(t time.Time, longitude float64) float64 {
	return NormalizeHours(GreenwichSiderealTime(t) + longitude/15)
}

// NormalizeHours wraps h into [0,24).
func NormalizeHours(h float64) float64 {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	return h
}

// HourAngle returns lst-ra wrapped into (-12,12].
func HourAngle(lst, ra float64) float64 {
	ha := math.Mod(lst-ra, 24)
	if ha <= -12 {
		ha += 24
	} else if ha > 12 {
		ha -= 24
	}
	return ha
}

// equhor_rad converts hour angle x and declination y into azimuth, from
// north through east, and altitude for latitude phi. Arguments are in radians.
func equhor_rad(x, y, phi float64) (float64, float64) {
	sx, sy, sphi := math.Sin(x), math.Sin(y), math.Sin(phi)
	cx, cy, cphi := math.Cos(x), math.Cos(y), math.Cos(phi)

	q := math.Asin(math.Max(-1, math.Min(1, (sy*sphi)+(cy*cphi*cx))))
	// atan2 keeps full precision near the meridian, where acos does not.
	p := math.Atan2(-cy*sx, sy*cphi-cy*sphi*cx)
	if p < 0 {
		p += 2 * math.Pi
	}
	return p, q
}

func deg2rad(x float64) float64 {
	return x * math.Pi / 180
}

func rad2deg(x float64) float64 {
	return x * 180 / math.Pi
}

// Horizontal converts an hour angle (hours) and declination (degrees) into
// azimuth and altitude in degrees for an observer at latitude.
func Horizontal(ha, dec, latitude float64) (az, alt float64) {
	p, q := equhor_rad(deg2rad(ha*15), deg2rad(dec), deg2rad(latitude))
	return rad2deg(p), rad2deg(q)
}
