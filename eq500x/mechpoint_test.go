package eq500x

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMechanicalPointEqual(t *testing.T) {
	p := NewMechanicalPoint(1.23456789, 1.23456789)
	q := NewMechanicalPoint(1.23456789, 1.23456789)
	if !p.Equal(q) {
		t.Fatalf("%v != %v", p, q)
	}
	q.SetPointingState(PointingBeyondPole)
	if p.Equal(q) {
		t.Errorf("%v == %v across pointing states", p, q)
	}
	q.SetPointingState(PointingNormal)

	q.SetRAm(q.RAm() + 15.0/3600)
	if p.Equal(q) {
		t.Errorf("%v == %v after moving RA 15s", p, q)
	}
	q.SetRAm(q.RAm() - 15.0/3600)
	if !p.Equal(q) {
		t.Errorf("%v != %v after moving RA back", p, q)
	}

	q.SetDECm(q.DECm() + 1.0/3600)
	if p.Equal(q) {
		t.Errorf("%v == %v after moving DEC 1\"", p, q)
	}
	q.SetDECm(q.DECm() - 1.0/3600)
	if !p.Equal(q) {
		t.Errorf("%v != %v after moving DEC back", p, q)
	}
}

func TestRADegreesTo(t *testing.T) {
	for _, test := range []struct {
		ra       float64
		to, back float64
	}{
		{1, 15, -15},
		{2, 30, -30},
		{8, 120, -120},
		{12, 180, -180},
		{18, -90, 90},
	} {
		t.Run(fmt.Sprint(test.ra), func(t *testing.T) {
			var p, q MechanicalPoint
			p.SetRAsky(0)
			q.SetRAsky(test.ra)
			if got := q.RAsky(); got != test.ra {
				t.Errorf("RAsky() = %v, want %v", got, test.ra)
			}
			if got := p.RADegreesTo(q); got != test.to {
				t.Errorf("p.RADegreesTo(q) = %v, want %v", got, test.to)
			}
			if got := q.RADegreesTo(p); got != test.back {
				t.Errorf("q.RADegreesTo(p) = %v, want %v", got, test.back)
			}
		})
	}
}

func TestRADegreesToIsAntisymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		p := NewMechanicalPoint(r.Float64()*24, 0)
		q := NewMechanicalPoint(r.Float64()*24, 0)
		to, back := p.RADegreesTo(q), q.RADegreesTo(p)
		if math.Abs(to) == 180 {
			continue
		}
		if to != -back {
			t.Fatalf("%v to %v: %v, back %v", p, q, to, back)
		}
	}
}

func TestPierFlip(t *testing.T) {
	for _, test := range []struct {
		pointing PointingState
		dec      float64
		wantRA   string
		wantDEC  string
	}{
		{PointingBeyondPole, 90, "12:00:00", "+00:00:00"},
		{PointingNormal, 90, "00:00:00", "+00:00:00"},
		{PointingBeyondPole, 80, "12:00:00", "-10:00:00"},
		{PointingNormal, 80, "00:00:00", "+10:00:00"},
		{PointingBeyondPole, 70, "12:00:00", "-20:00:00"},
		{PointingNormal, 70, "00:00:00", "+20:00:00"},
	} {
		t.Run(fmt.Sprintf("%v/%v", test.pointing, test.dec), func(t *testing.T) {
			var p MechanicalPoint
			p.SetPointingState(test.pointing)
			p.SetRAsky(0)
			p.SetDECsky(test.dec)
			if got := p.RAsky(); got != 0 {
				t.Errorf("RAsky() = %v, want 0", got)
			}
			if got := p.DECsky(); got != test.dec {
				t.Errorf("DECsky() = %v, want %v", got, test.dec)
			}
			if got := p.RAString(); got != test.wantRA {
				t.Errorf("RAString() = %q, want %q", got, test.wantRA)
			}
			got, err := p.DECString()
			if err != nil {
				t.Fatal(err)
			}
			if got != test.wantDEC {
				t.Errorf("DECString() = %q, want %q", got, test.wantDEC)
			}
		})
	}
}

func TestRAStringRoundTrip(t *testing.T) {
	for _, pointing := range []PointingState{PointingNormal, PointingBeyondPole} {
		for h := 0; h < 24; h++ {
			for m := 0; m < 60; m++ {
				for s := 0; s < 60; s++ {
					var p MechanicalPoint
					p.SetPointingState(pointing)
					in := fmt.Sprintf("%02d:%02d:%02d", h, m, s)
					if err := p.ParseRA(in); err != nil {
						t.Fatalf("ParseRA(%q): %v", in, err)
					}
					if got := p.RAString(); got != in {
						t.Fatalf("ParseRA(%q).RAString() = %q", in, got)
					}
				}
			}
		}
	}
}

func TestDECStringRoundTrip(t *testing.T) {
	for _, pointing := range []PointingState{PointingNormal, PointingBeyondPole} {
		for d := -89; d <= 89; d++ {
			for m := 0; m < 60; m++ {
				for s := 0; s < 60; s++ {
					var p MechanicalPoint
					p.SetPointingState(pointing)
					in := fmt.Sprintf("%+03d:%02d:%02d", d, m, s)
					if err := p.ParseDEC(in); err != nil {
						t.Fatalf("ParseDEC(%q): %v", in, err)
					}
					got, err := p.DECString()
					if err != nil {
						t.Fatalf("DECString() after %q: %v", in, err)
					}
					if got != in {
						t.Fatalf("ParseDEC(%q).DECString() = %q", in, got)
					}
				}
			}
		}
	}
}

func TestRAConversions(t *testing.T) {
	for _, test := range []struct {
		pointing PointingState
		in       string
		sky      float64
		out      string
	}{
		{PointingNormal, "00:00:00", 0, "00:00:00"},
		{PointingNormal, "06:00:00", 6, "06:00:00"},
		{PointingNormal, "12:00:00", 12, "12:00:00"},
		{PointingNormal, "18:00:00", 18, "18:00:00"},
		{PointingNormal, "24:00:00", 0, "00:00:00"},
		{PointingNormal, "00:00:01", 1.0 / 3600, "00:00:01"},
		{PointingNormal, "00:01:00", 1.0 / 60, "00:01:00"},
		{PointingBeyondPole, "00:00:00", 12, "00:00:00"},
		{PointingBeyondPole, "06:00:00", 18, "06:00:00"},
		{PointingBeyondPole, "12:00:00", 0, "12:00:00"},
		{PointingBeyondPole, "18:00:00", 6, "18:00:00"},
		{PointingBeyondPole, "24:00:00", 12, "00:00:00"},
	} {
		t.Run(fmt.Sprintf("%v/%s", test.pointing, test.in), func(t *testing.T) {
			var p MechanicalPoint
			p.SetPointingState(test.pointing)
			if err := p.ParseRA(test.in); err != nil {
				t.Fatal(err)
			}
			if got := p.RAsky(); math.Abs(got-test.sky) > 1.0/3600 {
				t.Errorf("RAsky() = %v, want %v", got, test.sky)
			}
			if got := p.RAString(); got != test.out {
				t.Errorf("RAString() = %q, want %q", got, test.out)
			}
		})
	}
}

func TestParseRAErrors(t *testing.T) {
	for _, in := range []string{"", "0:00:00", "00:00:0", "00-00-00", "00:60:00", "00:00:60", "0a:00:00", "00:00:00#"} {
		var p MechanicalPoint
		if err := p.ParseRA(in); !errors.Is(err, ErrFormat) {
			t.Errorf("ParseRA(%q) = %v, want ErrFormat", in, err)
		}
	}
}

func TestSkyDECConversion(t *testing.T) {
	type result struct {
		Pointing PointingState
		DECsky   float64
		DECm     float64
	}
	for _, test := range []struct {
		decm float64
		want result
	}{
		{-255, result{PointingNormal, -15, 105}},
		{-225, result{PointingNormal, -45, 135}},
		{-180, result{PointingBeyondPole, -90, -180}},
		{-135, result{PointingBeyondPole, -45, -135}},
		{-90, result{PointingBeyondPole, 0, -90}},
		{-45, result{PointingBeyondPole, 45, -45}},
		{0, result{PointingNormal, 90, 0}},
		{45, result{PointingNormal, 45, 45}},
		{90, result{PointingNormal, 0, 90}},
		{135, result{PointingNormal, -45, 135}},
		{180, result{PointingNormal, -90, 180}},
		{225, result{PointingBeyondPole, -45, -135}},
		{255, result{PointingBeyondPole, -15, -105}},
	} {
		t.Run(fmt.Sprint(test.decm), func(t *testing.T) {
			var p MechanicalPoint
			p.SetDECm(test.decm)
			if got := p.DECm(); got != test.decm {
				t.Errorf("DECm() = %v, want %v", got, test.decm)
			}
			sky := p.DECsky()
			// Setting the sky DEC back normalizes the mechanical DEC.
			p.SetDECsky(sky)
			got := result{p.PointingState(), sky, p.DECm()}
			if diff := cmp.Diff(got, test.want); diff != "" {
				t.Errorf("unexpected status: got(-)/want(+):\n%s", diff)
			}
			if got := p.DECsky(); got != sky {
				t.Errorf("DECsky() after SetDECsky(%v) = %v", sky, got)
			}
		})
	}
}

func TestDECConversions(t *testing.T) {
	for _, test := range []struct {
		report   string
		decm     float64
		setting  string
		pointing PointingState
	}{
		{"-I5:00:00", -255, "-255:00:00", PointingNormal},
		{"-F5:00:00", -225, "-225:00:00", PointingNormal},
		{"-B0:00:00", -180, "-180:00:00", PointingBeyondPole},
		{"-=5:00:00", -135, "-135:00:00", PointingBeyondPole},
		{"-90:00:00", -90, "-90:00:00", PointingBeyondPole},
		{"-45:00:00", -45, "-45:00:00", PointingBeyondPole},
		{"+00:00:00", 0, "+00:00:00", PointingNormal},
		{"+45:00:00", 45, "+45:00:00", PointingNormal},
		{"+90:00:00", 90, "+90:00:00", PointingNormal},
		{"+=5:00:00", 135, "+135:00:00", PointingNormal},
		{"+B0:00:00", 180, "+180:00:00", PointingNormal},
		{"+F5:00:00", 225, "+225:00:00", PointingBeyondPole},
		{"+I5:00:00", 255, "+255:00:00", PointingBeyondPole},
		{"+00:00:01", 1.0 / 3600, "+00:00:01", PointingNormal},
		{"+00:01:00", 1.0 / 60, "+00:01:00", PointingNormal},
		{"-00:00:01", -1.0 / 3600, "-00:00:01", PointingBeyondPole},
		{"-00:01:00", -1.0 / 60, "-00:01:00", PointingBeyondPole},
		{"+;7:12:34", 117 + 12.0/60 + 34.0/3600, "+117:12:34", PointingNormal},
	} {
		t.Run(test.report, func(t *testing.T) {
			var p MechanicalPoint
			if err := p.ParseDEC(test.report); err != nil {
				t.Fatal(err)
			}
			if got := p.DECm(); math.Abs(got-test.decm) > 1.0/3600/2 {
				t.Errorf("DECm() = %v, want %v", got, test.decm)
			}
			if got := p.PointingState(); got != test.pointing {
				t.Errorf("PointingState() = %v, want %v", got, test.pointing)
			}
			report, err := p.DECStringReport()
			if err != nil {
				t.Fatal(err)
			}
			if report != test.report {
				t.Errorf("DECStringReport() = %q, want %q", report, test.report)
			}
			setting, err := p.DECString()
			if err != nil {
				t.Fatal(err)
			}
			if setting != test.setting {
				t.Errorf("DECString() = %q, want %q", setting, test.setting)
			}
		})
	}
}

func TestDECTensAlphabet(t *testing.T) {
	const alphabet = ":;<=>?@ABCDEFGHI"
	for tens := 10; tens <= 25; tens++ {
		for _, sign := range []int{1, -1} {
			degrees := sign * (tens*10 + 5)
			want := fmt.Sprintf("%c%c5:30:15", "+-"[(1-sign)/2], alphabet[tens-10])
			t.Run(want, func(t *testing.T) {
				var p MechanicalPoint
				p.SetDECm(float64(degrees) + float64(sign)*(30.0/60+15.0/3600))
				report, err := p.DECStringReport()
				if err != nil {
					t.Fatal(err)
				}
				if report != want {
					t.Errorf("DECStringReport() = %q, want %q", report, want)
				}
				var q MechanicalPoint
				if err := q.ParseDEC(report); err != nil {
					t.Fatal(err)
				}
				if q.DECm() != p.DECm() || q.PointingState() != p.PointingState() {
					t.Errorf("ParseDEC(%q) = %v, want %v", report, q, p)
				}
			})
		}
	}
}

func TestParseDECErrors(t *testing.T) {
	for _, in := range []string{"+J0:00:00", "-J0:00:00", "+P5:00:00", "00:00:00", "+00:00:0", "+00-00-00", "*00:00:00", "+00:60:00", "+0a:00:00"} {
		var p MechanicalPoint
		if err := p.ParseDEC(in); !errors.Is(err, ErrFormat) {
			t.Errorf("ParseDEC(%q) = %v, want ErrFormat", in, err)
		}
	}
}

func TestDECStringOutOfRange(t *testing.T) {
	p := MechanicalPoint{dec: 256 * 3600}
	if _, err := p.DECString(); !errors.Is(err, ErrFormat) {
		t.Errorf("DECString() = %v, want ErrFormat", err)
	}
	if _, err := p.DECStringReport(); !errors.Is(err, ErrFormat) {
		t.Errorf("DECStringReport() = %v, want ErrFormat", err)
	}
}

func TestPointingBoundaries(t *testing.T) {
	for _, test := range []struct {
		dec  int
		want PointingState
	}{
		{-256*3600 + 1, PointingNormal},
		{-180*3600 - 1, PointingNormal},
		{-180 * 3600, PointingBeyondPole},
		{-1, PointingBeyondPole},
		{0, PointingNormal},
		{180 * 3600, PointingNormal},
		{180*3600 + 1, PointingBeyondPole},
		{255 * 3600, PointingBeyondPole},
	} {
		var p MechanicalPoint
		p.SetDECm(float64(test.dec) / 3600)
		if got := p.PointingState(); got != test.want {
			t.Errorf("SetDECm(%d\") pointing = %v, want %v", test.dec, got, test.want)
		}
		var q MechanicalPoint
		s, err := MechanicalPoint{dec: test.dec}.DECStringReport()
		if err != nil {
			t.Fatal(err)
		}
		if err := q.ParseDEC(s); err != nil {
			t.Fatal(err)
		}
		if got := q.PointingState(); got != test.want {
			t.Errorf("ParseDEC(%q) pointing = %v, want %v", s, got, test.want)
		}
	}
}

func TestSkyInverse(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		ra, dec := r.Float64()*24, r.Float64()*180-90
		for _, pointing := range []PointingState{PointingNormal, PointingBeyondPole} {
			var p MechanicalPoint
			p.SetPointingState(pointing)
			p.SetRAsky(ra)
			p.SetDECsky(dec)
			dra := math.Abs(math.Remainder(p.RAsky()-ra, 24))
			if dra > 1.0/3600 {
				t.Fatalf("%v: RAsky() = %v, want %v", pointing, p.RAsky(), ra)
			}
			if math.Abs(p.DECsky()-dec) > 1.0/3600 {
				t.Fatalf("%v: DECsky() = %v, want %v", pointing, p.DECsky(), dec)
			}
		}
	}
}

func TestAtParkingPosition(t *testing.T) {
	if p := NewMechanicalPoint(0, 0); !p.AtParkingPosition() {
		t.Errorf("%v not at parking position", p)
	}
	if p := NewMechanicalPoint(0, 1.0/3600); p.AtParkingPosition() {
		t.Errorf("%v at parking position", p)
	}
	if p := NewMechanicalPoint(24, 0); !p.AtParkingPosition() {
		t.Errorf("%v not at parking position", p)
	}
}
