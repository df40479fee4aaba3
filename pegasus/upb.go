// Package pegasus drives the Pegasus Astro Ultimate Powerbox, versions 1
// and 2, over its line-oriented serial protocol.
package pegasus

import (
	"errors"
	"fmt"
	"log"
	"math"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/w1xm/lx200_interface/internal/fields"
	"github.com/w1xm/lx200_interface/lx200"
	"github.com/w1xm/lx200_interface/power"
)

// Version is the hardware generation, detected during the handshake.
type Version int

const (
	V1 Version = iota + 1
	V2
)

func (v Version) String() string {
	switch v {
	case V1:
		return "UPB"
	case V2:
		return "UPBv2"
	}
	return "unknown"
}

// ErrEcho is returned when the box does not acknowledge a setting by
// echoing it back.
var ErrEcho = errors.New("unexpected acknowledgement")

// ErrHandshake is returned when the device answers the probe but is not a
// powerbox.
var ErrHandshake = errors.New("not an Ultimate Powerbox")

const (
	replyMax = 64

	powerPorts = 4
	// Dew outputs are addressed as power ports 5 and up.
	firstDewPort = 5
)

type UPB struct {
	mu sync.Mutex

	t        lx200.Transport
	term     byte
	version  Version
	callback power.StatusCallback

	status    power.Status
	sent      power.Status
	published bool
}

var (
	_ power.Box          = (*UPB)(nil)
	_ power.Focuser      = (*UPB)(nil)
	_ power.BootSwitcher = (*UPB)(nil)
)

func New(t lx200.Transport, callback power.StatusCallback) *UPB {
	return &UPB{t: t, term: '\r', callback: callback}
}

func (u *UPB) Version() Version {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.version
}

// Connect probes the box and detects its version. Boxes answer the probe
// terminated with either CR or LF; the first that works is kept.
func (u *UPB) Connect() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	reply, err := u.probe('\r')
	if errors.Is(err, lx200.ErrTimeout) || errors.Is(err, lx200.ErrOverflow) {
		reply, err = u.probe('\n')
	}
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	switch {
	case strings.Contains(reply, "UPB2_OK"):
		u.version = V2
	case strings.Contains(reply, "UPB_OK"):
		u.version = V1
	default:
		return fmt.Errorf("handshake: %w: answered %q", ErrHandshake, reply)
	}
	log.Printf("detected %v (%q)", u.version, reply)

	if fw, err := u.sendCommand("PV"); err == nil {
		u.status.Firmware = fw
	} else {
		log.Printf("reading firmware version: %v", err)
	}
	return nil
}

func (u *UPB) probe(term byte) (string, error) {
	if err := u.t.Flush(); err != nil {
		return "", err
	}
	if err := u.t.Write("P#\n"); err != nil {
		return "", err
	}
	reply, err := u.t.ReadUntil(term, replyMax)
	if err != nil {
		return "", err
	}
	u.term = term
	return cleanup(reply), nil
}

func cleanup(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// sendCommand sends cmd and returns the reply, trying twice. A one byte
// reply is treated as line noise.
func (u *UPB) sendCommand(cmd string) (string, error) {
	var err error
	for i := 0; i < 2; i++ {
		if err = u.t.Flush(); err != nil {
			continue
		}
		if err = u.t.Write(cmd + "\n"); err != nil {
			continue
		}
		var reply string
		reply, err = u.t.ReadUntil(u.term, replyMax)
		if err != nil {
			continue
		}
		if len(reply) == 1 {
			err = fmt.Errorf("%w: %q answered %q", ErrEcho, cmd, reply)
			continue
		}
		return cleanup(reply), nil
	}
	return "", fmt.Errorf("%s: %w", cmd, err)
}

// expect sends cmd and checks that the box answers want.
func (u *UPB) expect(cmd, want string) error {
	reply, err := u.sendCommand(cmd)
	if err != nil {
		return err
	}
	if reply != want {
		return fmt.Errorf("%w: %q answered %q, want %q", ErrEcho, cmd, reply, want)
	}
	return nil
}

func (u *UPB) Status() power.Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// Poll reads the sensor record, then the consumption counters, the power on
// settings and the focuser.
func (u *UPB) Poll() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.readSensors(); err != nil {
		u.status.Alert = err.Error()
		u.publish()
		return err
	}
	u.status.Alert = ""
	if err := u.readConsumption(); err != nil {
		log.Printf("reading power consumption: %v", err)
	}
	if err := u.readPowerOnBoot(); err != nil {
		log.Printf("reading power status: %v", err)
	}
	if err := u.readFocuser(); err != nil {
		log.Printf("reading focuser: %v", err)
	}
	u.publish()
	return nil
}

func (u *UPB) readSensors() error {
	reply, err := u.sendCommand("PA")
	if err != nil {
		return err
	}
	arity := 19
	if u.version == V2 {
		arity = 21
	}
	r, err := fields.Split(reply, ":", arity)
	if err != nil {
		return err
	}
	s := &u.status
	d := fields.NewDecoder(r)
	s.Driver = u.version.String()
	s.Voltage = d.Float(1)
	s.Current = d.Float(2)
	s.Power = d.Float(3)
	s.Temperature = d.Float(4)
	s.Humidity = d.Float(5)
	s.DewPoint = d.Float(6)

	ports := d.Bits(7)
	usb := d.Bits(8)

	dewPorts, currentIndex, dewCurrentIndex, overIndex, autoDewIndex := 2, 11, 15, 17, 18
	ampDivision := 400.0
	if u.version == V2 {
		dewPorts, currentIndex, dewCurrentIndex, overIndex, autoDewIndex = 3, 12, 16, 19, 20
		ampDivision = 480
	}
	over := d.Bits(overIndex)

	s.PowerPorts = make([]power.Port, powerPorts)
	for i := range s.PowerPorts {
		p := &s.PowerPorts[i]
		p.Enabled = i < len(ports) && ports[i]
		p.Current = d.Float(currentIndex+i) / ampDivision
		p.OverCurrent = i < len(over) && over[i]
	}
	s.DewPorts = make([]power.Port, dewPorts)
	for i := range s.DewPorts {
		p := &s.DewPorts[i]
		p.Duty = d.Float(9+i) / 255 * 100
		p.Enabled = p.Duty > 0
		div := ampDivision
		if i == 2 {
			// The third dew output has its own sensor scale.
			div = 700
		}
		p.Current = d.Float(dewCurrentIndex+i) / div
		p.OverCurrent = powerPorts+i < len(over) && over[powerPorts+i]
	}

	if u.version == V1 {
		// Version 1 only switches the hub as a whole, and reports 0 for on.
		enabled := len(usb) > 0 && !usb[0]
		s.USBPorts = []bool{enabled, enabled, enabled, enabled, enabled}
	} else {
		s.USBPorts = usb
	}
	s.AutoDew = d.Int(autoDewIndex) != 0
	return d.Err()
}

func (u *UPB) readConsumption() error {
	reply, err := u.sendCommand("PC")
	if err != nil {
		return err
	}
	r, err := fields.Split(reply, ":", 4)
	if err != nil {
		return err
	}
	d := fields.NewDecoder(r)
	s := &u.status
	s.AverageCurrent = d.Float(0)
	s.AmpHours = d.Float(1)
	s.WattHours = d.Float(2)
	s.UptimeMillis = int64(d.Int(3))
	return d.Err()
}

func (u *UPB) readPowerOnBoot() error {
	reply, err := u.sendCommand("PS")
	if err != nil {
		return err
	}
	r, err := fields.Split(reply, ":", 3)
	if err != nil {
		return err
	}
	d := fields.NewDecoder(r)
	u.status.PowerOnBoot = d.Bits(1)
	u.status.VariableVoltage = d.Float(2)
	return d.Err()
}

// readFocuser reads the stepper record: position, moving, reversed and
// backlash.
func (u *UPB) readFocuser() error {
	reply, err := u.sendCommand("SA")
	if err != nil {
		return err
	}
	r, err := fields.Split(reply, ":", 4)
	if err != nil {
		return err
	}
	d := fields.NewDecoder(r)
	f := &power.FocuserStatus{
		Position: d.Int(0),
		Moving:   d.Bool(1),
		Reversed: d.Bool(2),
		Backlash: d.Int(3),
	}
	if err := d.Err(); err != nil {
		return err
	}
	u.status.Focuser = f
	return nil
}

func (u *UPB) publish() {
	if u.published && reflect.DeepEqual(u.status, u.sent) {
		return
	}
	u.published = true
	u.sent = u.status
	if u.callback != nil {
		u.callback(u.status)
	}
}

func bit(enabled bool) int {
	if enabled {
		return 1
	}
	return 0
}

func (u *UPB) SetPowerPort(port int, enabled bool) error {
	if err := power.CheckPort("power", port, powerPorts); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	cmd := fmt.Sprintf("P%d:%d", port, bit(enabled))
	return u.expect(cmd, cmd)
}

func (u *UPB) SetPWMPort(port int, duty float64) error {
	count := 2
	if u.Version() == V2 {
		count = 3
	}
	if err := power.CheckPort("dew", port, count); err != nil {
		return err
	}
	if duty < 0 || duty > 100 {
		return fmt.Errorf("duty cycle %v%% out of range", duty)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	value := int(math.Round(duty / 100 * 255))
	id := firstDewPort + port - 1
	return u.expect(fmt.Sprintf("P%d:%03d", id, value), fmt.Sprintf("P%d:%d", id, value))
}

func (u *UPB) SetVariablePort(volts float64) error {
	if volts < 3 || volts > 12 {
		return fmt.Errorf("adjustable output %vV out of range [3,12]", volts)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	cmd := fmt.Sprintf("P8:%d", int(math.Round(volts)))
	return u.expect(cmd, cmd)
}

// SetUSBPort switches one USB port on version 2. Version 1 can only switch
// the whole hub, which is done for any port number.
func (u *UPB) SetUSBPort(port int, enabled bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.version == V1 {
		// The hub acknowledges with the inverse state.
		return u.expect(fmt.Sprintf("PU:%d", bit(enabled)), fmt.Sprintf("PU:%d", bit(!enabled)))
	}
	if err := power.CheckPort("USB", port, 6); err != nil {
		return err
	}
	cmd := fmt.Sprintf("U%d:%d", port, bit(enabled))
	return u.expect(cmd, cmd)
}

func (u *UPB) SetLEDEnabled(enabled bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	cmd := fmt.Sprintf("PL:%d", bit(enabled))
	if err := u.expect(cmd, cmd); err != nil {
		return err
	}
	u.status.LEDEnabled = enabled
	return nil
}

// SetAutoDew turns automatic dew control on or off for every dew output.
func (u *UPB) SetAutoDew(enabled bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	cmd := fmt.Sprintf("PD:%d", bit(enabled))
	return u.expect(cmd, cmd)
}

// SetAutoDewAggressiveness tunes automatic dew control on version 2.
func (u *UPB) SetAutoDewAggressiveness(value int) error {
	if u.Version() != V2 {
		return power.ErrUnsupported
	}
	if value < 1 || value > 254 {
		return fmt.Errorf("aggressiveness %d out of range [1,254]", value)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.expect(fmt.Sprintf("PD:%03d", value), fmt.Sprintf("PD:%d", value))
}

// CycleAllPorts switches every power output off or on at once.
func (u *UPB) CycleAllPorts(enabled bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	cmd := fmt.Sprintf("PZ:%d", bit(enabled))
	return u.expect(cmd, cmd)
}

// Reboot restarts the box firmware. It sends no reply.
func (u *UPB) Reboot() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.t.Flush(); err != nil {
		return err
	}
	return u.t.Write("PF\n")
}

// SetPowerOnBoot chooses the power outputs enabled at power on.
func (u *UPB) SetPowerOnBoot(enabled []bool) error {
	if len(enabled) != powerPorts {
		return fmt.Errorf("power on settings for %d ports, want %d", len(enabled), powerPorts)
	}
	var b strings.Builder
	b.WriteString("PE:")
	for _, e := range enabled {
		fmt.Fprintf(&b, "%d", bit(e))
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.expect(b.String(), "PE:1"); err != nil {
		return err
	}
	u.status.PowerOnBoot = append([]bool(nil), enabled...)
	return nil
}

func (u *UPB) MoveFocuser(position int) error {
	if position < 0 {
		return fmt.Errorf("focuser position %d is negative", position)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	cmd := fmt.Sprintf("SM:%d", position)
	if err := u.expect(cmd, cmd); err != nil {
		return err
	}
	if u.status.Focuser != nil {
		// Published statuses share the old record.
		f := *u.status.Focuser
		f.Moving = true
		u.status.Focuser = &f
	}
	return nil
}

func (u *UPB) HaltFocuser() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.expect("SH", "SH")
}

func (u *UPB) ReverseFocuser(reversed bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	cmd := fmt.Sprintf("SR:%d", bit(reversed))
	return u.expect(cmd, cmd)
}

// The box answers sync, backlash and speed settings without echoing them.

func (u *UPB) SyncFocuser(position int) error {
	if position < 0 {
		return fmt.Errorf("focuser position %d is negative", position)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	_, err := u.sendCommand(fmt.Sprintf("SC:%d", position))
	return err
}

func (u *UPB) SetFocuserBacklash(steps int) error {
	if steps < 0 {
		return fmt.Errorf("backlash %d is negative", steps)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	_, err := u.sendCommand(fmt.Sprintf("SB:%d", steps))
	return err
}

func (u *UPB) SetFocuserMaxSpeed(speed int) error {
	if speed < 0 || speed > math.MaxUint16 {
		return fmt.Errorf("focuser speed %d out of range [0,%d]", speed, math.MaxUint16)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	_, err := u.sendCommand(fmt.Sprintf("SS:%d", speed))
	return err
}
