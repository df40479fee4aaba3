// Package simulator emulates an EQ500X on the other end of a serial line.
package simulator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/w1xm/lx200_interface/eq500x"
	"github.com/w1xm/lx200_interface/mount"
	"golang.org/x/sync/errgroup"
)

const (
	day = 24 * 3600

	// stepSize is the simulation step used by Run.
	stepSize = 50 * time.Millisecond

	// Reply to a sync, naming the catalog object the mount believes it is on.
	syncReply = " M31 EX GAL MAG 3.5 SZ178.0'#"
)

// DefaultRates are the axis speeds in arcseconds per second for each slew
// rate.
var DefaultRates = map[mount.SlewRate]float64{
	mount.SlewGuide:     5,
	mount.SlewCentering: 5 * 60,
	mount.SlewFind:      20 * 60,
	mount.SlewMax:       5 * 3600,
}

// Mount is a simulated EQ500X. It implements io.ReadWriter: commands written
// to it are answered on Read. Read returns io.EOF when no reply is pending.
type Mount struct {
	mu sync.Mutex

	// Position in seconds of time and arcseconds, mechanical.
	ra, dec float64
	// Target registers loaded by :Sr and :Sd.
	targetRA, targetDEC float64

	rate mount.SlewRate
	// Manual motion, one flag per Meade direction letter.
	east, west, north, south bool
	coarse                   bool
	// Jammed motors accept commands but never move.
	Jammed bool
	// Rates are the axis speeds in arcseconds per second.
	Rates map[mount.SlewRate]float64

	pending bytes.Buffer
	out     bytes.Buffer

	commands []string
	// Verbose logs every exchange.
	Verbose bool
}

func New() *Mount {
	m := &Mount{rate: mount.SlewFind, Rates: make(map[mount.SlewRate]float64)}
	for r, v := range DefaultRates {
		m.Rates[r] = v
	}
	return m
}

// SetPosition places the mount at mechanical ra hours and dec degrees.
func (m *Mount) SetPosition(ra, dec float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ra = math.Mod(ra*3600+day, day)
	m.dec = dec * 3600
}

// Position returns the position the mount would report.
func (m *Mount) Position() eq500x.MechanicalPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position()
}

func (m *Mount) position() eq500x.MechanicalPoint {
	return eq500x.NewMechanicalPoint(math.Round(m.ra)/3600, math.Round(m.dec)/3600)
}

func (m *Mount) Rate() mount.SlewRate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

// Moving reports whether any axis is being driven.
func (m *Mount) Moving() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.east || m.west || m.north || m.south || m.coarse
}

// Commands returns the commands received so far, without the leading ':'
// and trailing '#'.
func (m *Mount) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

func (m *Mount) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending.Write(p)
	for {
		line, err := m.pending.ReadString('#')
		if err != nil {
			// Incomplete command, keep it for the next write.
			m.pending.Reset()
			m.pending.WriteString(line)
			break
		}
		cmd := strings.TrimPrefix(strings.TrimSuffix(line, "#"), ":")
		if m.Verbose {
			log.Printf("srv->sim: %s", cmd)
		}
		if err := m.handle(cmd); err != nil {
			log.Printf("parsing %q: %v", cmd, err)
		}
	}
	return len(p), nil
}

func (m *Mount) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.out.Len() == 0 {
		return 0, io.EOF
	}
	return m.out.Read(p)
}

// Flush drops pending replies, as a serial driver discarding its input
// buffer would.
func (m *Mount) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out.Reset()
	return nil
}

func (m *Mount) send(format string, args ...interface{}) {
	reply := fmt.Sprintf(format, args...)
	if m.Verbose {
		log.Printf("sim->srv: %s", reply)
	}
	m.out.WriteString(reply)
}

func (m *Mount) handle(cmd string) error {
	m.commands = append(m.commands, cmd)
	switch {
	case cmd == "GR":
		m.send("%s#", m.position().RAString())
	case cmd == "GD":
		dec, err := m.position().DECStringReport()
		if err != nil {
			return err
		}
		m.send("%s#", dec)
	case strings.HasPrefix(cmd, "Sr"):
		v, err := parseSexagesimal(cmd[2:])
		if err != nil {
			m.send("0")
			return err
		}
		m.targetRA = math.Mod(v+day, day)
		m.send("1")
	case strings.HasPrefix(cmd, "Sd"):
		v, err := parseSexagesimal(cmd[2:])
		if err != nil {
			m.send("0")
			return err
		}
		m.targetDEC = v
		m.send("1")
	case cmd == "CM":
		m.ra, m.dec = m.targetRA, m.targetDEC
		m.send(syncReply)
	case cmd == "MS":
		m.coarse = true
		m.send("0")
	case cmd == "Q":
		m.east, m.west, m.north, m.south, m.coarse = false, false, false, false, false
	case cmd == "RG":
		m.rate = mount.SlewGuide
	case cmd == "RC":
		m.rate = mount.SlewCentering
	case cmd == "RM":
		m.rate = mount.SlewFind
	case cmd == "RS":
		m.rate = mount.SlewMax
	case len(cmd) == 2 && (cmd[0] == 'M' || cmd[0] == 'Q'):
		var flag *bool
		switch cmd[1] {
		case 'e':
			flag = &m.east
		case 'w':
			flag = &m.west
		case 'n':
			flag = &m.north
		case 's':
			flag = &m.south
		default:
			return fmt.Errorf("unknown direction %q", cmd[1])
		}
		*flag = cmd[0] == 'M'
	default:
		return fmt.Errorf("unknown command")
	}
	return nil
}

// parseSexagesimal reads "sDD:MM:SS" or "HH:MM:SS" into seconds.
func parseSexagesimal(s string) (float64, error) {
	sign := 1.0
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed position %q", s)
	}
	var v float64
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("malformed position %q: %w", s, err)
		}
		v = v*60 + float64(n)
	}
	return sign * v, nil
}

// Advance moves the simulated axes by dt.
func (m *Mount) Advance(dt time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Jammed {
		return
	}
	if m.coarse {
		m.coarseStep(dt)
		return
	}
	step := m.Rates[m.rate] * dt.Seconds()
	if m.east {
		m.ra += step / 15
	}
	if m.west {
		m.ra -= step / 15
	}
	m.ra = math.Mod(m.ra+day, day)
	if m.north {
		m.dec += step
	}
	if m.south {
		m.dec -= step
	}
}

// coarseStep moves both axes straight to the target registers at the
// fastest rate and stops there.
func (m *Mount) coarseStep(dt time.Duration) {
	step := m.Rates[mount.SlewMax] * dt.Seconds()
	raDelta := math.Remainder(m.targetRA-m.ra, day) * 15
	decDelta := m.targetDEC - m.dec
	m.ra = math.Mod(m.ra+clamp(raDelta, step)/15+day, day)
	m.dec += clamp(decDelta, step)
	if math.Abs(raDelta) <= step && math.Abs(decDelta) <= step {
		m.coarse = false
	}
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

// Run advances the simulation in real time until ctx is done.
func (m *Mount) Run(ctx context.Context) error {
	t := time.NewTicker(stepSize)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			m.Advance(now.Sub(last))
			last = now
		}
	}
}

// Serve runs the simulation and answers commands arriving on conn, such as
// one end of a net.Pipe.
func (m *Mount) Serve(ctx context.Context, conn io.ReadWriteCloser) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		conn.Close()
		return nil
	})
	g.Go(func() error {
		return m.Run(ctx)
	})
	g.Go(func() error {
		buf := make([]byte, 256)
		reply := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("reading port: %w", err)
			}
			m.Write(buf[:n])
			for {
				n, _ := m.Read(reply)
				if n == 0 {
					break
				}
				if _, err := conn.Write(reply[:n]); err != nil {
					return fmt.Errorf("writing port: %w", err)
				}
			}
		}
	})
	return g.Wait()
}
