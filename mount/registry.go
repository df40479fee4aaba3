package mount

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Config carries the settings common to all drivers.
type Config struct {
	// Port is a serial device or, for network drivers, a host:port.
	Port     string
	BaudRate int
	Timeout  time.Duration

	Latitude, Longitude float64

	// CoarseGoto lets drivers that support it hand the first part of a
	// slew to the mount's own goto before centering.
	CoarseGoto bool

	Callback StatusCallback
}

type Factory func(cfg Config) (Mount, error)

// Registry maps driver names, as given on the command line, to factories.
type Registry map[string]Factory

func (r Registry) Names() []string {
	var names []string
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r Registry) Open(name string, cfg Config) (Mount, error) {
	f, ok := r[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown mount driver %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return f(cfg)
}

// ParseSlewRate accepts a rate name or its index.
func ParseSlewRate(s string) (SlewRate, error) {
	for r := SlewGuide; r <= SlewMax; r++ {
		if strings.EqualFold(s, r.String()) || s == fmt.Sprint(int(r)) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown slew rate %q", s)
}

// ParseDirection accepts N, S, E or W.
func ParseDirection(s string) (Direction, error) {
	for d := North; d <= West; d++ {
		if strings.EqualFold(s, d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}
