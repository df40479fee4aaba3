package mount

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeMount struct {
	connectErrs []error
	polls       int
	cancelAt    int
	cancel      func()
}

func (f *fakeMount) Connect() error {
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return nil
}

func (f *fakeMount) ReadStatus() error {
	f.polls++
	if f.polls == f.cancelAt {
		f.cancel()
	}
	return nil
}

func (f *fakeMount) PollInterval() time.Duration            { return time.Millisecond }
func (f *fakeMount) Goto(ra, dec float64) error             { return nil }
func (f *fakeMount) Sync(ra, dec float64) error             { return nil }
func (f *fakeMount) Abort() error                           { return nil }
func (f *fakeMount) Park() error                            { return ErrUnsupported }
func (f *fakeMount) Move(dir Direction, start bool) error   { return nil }
func (f *fakeMount) SetSlewRate(rate SlewRate) error        { return nil }
func (f *fakeMount) UpdateLocation(lat, long float64) error { return nil }
func (f *fakeMount) Status() Status                         { return Status{Driver: "fake"} }

func TestPollerRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := &fakeMount{
		connectErrs: []error{errors.New("no reply"), errors.New("no reply")},
		cancelAt:    3,
		cancel:      cancel,
	}
	p := NewPoller(m)
	p.ReconnectDelay = time.Millisecond
	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want %v", err, context.Canceled)
	}
	if len(m.connectErrs) != 0 {
		t.Errorf("connect retried %d times too few", len(m.connectErrs))
	}
	if m.polls != 3 {
		t.Errorf("polled %d times, want 3", m.polls)
	}
	if diff := cmp.Diff(p.Status(), Status{Driver: "fake"}); diff != "" {
		t.Errorf("unexpected status: got(-)/want(+):\n%s", diff)
	}
}

func TestRegistry(t *testing.T) {
	r := Registry{
		"fake": func(cfg Config) (Mount, error) { return &fakeMount{}, nil },
		"other": func(cfg Config) (Mount, error) {
			return nil, errors.New("broken")
		},
	}
	if diff := cmp.Diff(r.Names(), []string{"fake", "other"}); diff != "" {
		t.Errorf("unexpected names: got(-)/want(+):\n%s", diff)
	}
	if _, err := r.Open("FAKE", Config{}); err != nil {
		t.Errorf("Open(FAKE) = %v", err)
	}
	if _, err := r.Open("missing", Config{}); err == nil {
		t.Error("Open(missing) succeeded")
	}
}

func TestParseSlewRate(t *testing.T) {
	tests := []struct {
		in      string
		want    SlewRate
		wantErr bool
	}{
		{"guide", SlewGuide, false},
		{"CENTERING", SlewCentering, false},
		{"2", SlewFind, false},
		{"max", SlewMax, false},
		{"warp", 0, true},
	}
	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			got, err := ParseSlewRate(test.in)
			if (err != nil) != test.wantErr {
				t.Fatalf("ParseSlewRate(%q) error = %v", test.in, err)
			}
			if got != test.want {
				t.Errorf("ParseSlewRate(%q) = %v, want %v", test.in, got, test.want)
			}
		})
	}
}
