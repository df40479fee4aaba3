package lx200

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// splitSexagesimal converts a value into rounded whole units of 1/3600.
func splitSexagesimal(v float64) (sign string, a, b, c int) {
	sign = "+"
	if v < 0 {
		sign = "-"
		v = -v
	}
	total := int(math.Round(v * 3600))
	return sign, total / 3600, (total / 60) % 60, total % 60
}

// FormatRA formats hours as HH:MM:SS.
func FormatRA(hours float64) string {
	hours = math.Mod(hours, 24)
	if hours < 0 {
		hours += 24
	}
	_, h, m, s := splitSexagesimal(hours)
	return fmt.Sprintf("%02d:%02d:%02d", h%24, m, s)
}

// FormatDec formats degrees as sDD*MM:SS.
func FormatDec(degrees float64) string {
	sign, d, m, s := splitSexagesimal(degrees)
	return fmt.Sprintf("%s%02d*%02d:%02d", sign, d, m, s)
}

// ParseRA accepts HH:MM:SS and the low precision HH:MM.T.
func ParseRA(s string) (float64, error) {
	v, err := parseSexagesimal(s)
	if err != nil {
		return 0, fmt.Errorf("parsing RA %q: %w", s, err)
	}
	if v < 0 || v >= 24 {
		return 0, fmt.Errorf("parsing RA %q: out of range", s)
	}
	return v, nil
}

// ParseDec accepts sDD*MM:SS, sDD*MM'SS, sDD:MM:SS and sDD*MM.
func ParseDec(s string) (float64, error) {
	v, err := parseSexagesimal(s)
	if err != nil {
		return 0, fmt.Errorf("parsing DEC %q: %w", s, err)
	}
	if v < -90 || v > 90 {
		return 0, fmt.Errorf("parsing DEC %q: out of range", s)
	}
	return v, nil
}

func parseSexagesimal(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(s, "#"))
	sign := 1.0
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	// Some firmwares send the degree sign as the Latin-1 byte 0xdf.
	s = strings.ReplaceAll(s, "\xdf", "*")
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ':' || r == '*' || r == '\''
	})
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("want 2 or 3 fields, got %d", len(parts))
	}
	v := 0.0
	scale := 1.0
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil || f < 0 || (i > 0 && f >= 60) {
			return 0, fmt.Errorf("bad field %q", p)
		}
		v += f / scale
		scale *= 60
	}
	return sign * v, nil
}
