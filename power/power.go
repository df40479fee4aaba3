// Package power defines the capabilities shared by power distribution boxes:
// switched outputs, dew heater PWM outputs, USB hubs and sensors.
package power

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned for outputs a box does not have.
var ErrUnsupported = errors.New("not supported by this power box")

// Box is implemented by each power box driver. Ports are numbered from 1.
type Box interface {
	// Poll refreshes the status from the hardware.
	Poll() error
	Status() Status

	SetPowerPort(port int, enabled bool) error
	// SetPWMPort sets a dew heater output duty cycle, in percent.
	SetPWMPort(port int, duty float64) error
	// SetVariablePort sets the adjustable output voltage.
	SetVariablePort(volts float64) error
	SetUSBPort(port int, enabled bool) error
	SetLEDEnabled(enabled bool) error
	SetAutoDew(enabled bool) error
}

// Focuser is implemented by boxes with a stepper focuser output. Positions
// are in motor steps.
type Focuser interface {
	MoveFocuser(position int) error
	HaltFocuser() error
	ReverseFocuser(reversed bool) error
	// SyncFocuser redefines the current position without moving.
	SyncFocuser(position int) error
	// SetFocuserBacklash sets the backlash compensation, 0 disables it.
	SetFocuserBacklash(steps int) error
	SetFocuserMaxSpeed(speed int) error
}

// BootSwitcher is implemented by boxes that remember which power outputs
// to enable at power on.
type BootSwitcher interface {
	SetPowerOnBoot(enabled []bool) error
}

type StatusCallback func(status Status)

// Port is the state of one switched or PWM output.
type Port struct {
	Enabled bool `json:",omitempty"`
	// Duty is the PWM duty cycle in percent, for dew outputs.
	Duty float64 `json:",omitempty"`
	// Current draw in amps, when the box measures it.
	Current     float64 `json:",omitempty"`
	OverCurrent bool    `json:",omitempty"`
}

type FocuserStatus struct {
	Position int
	Moving   bool
	Reversed bool
	Backlash int
}

type Status struct {
	Driver   string
	Firmware string `json:",omitempty"`

	// Input supply.
	Voltage float64
	Current float64
	Power   float64

	// Environment sensor, if present.
	Temperature float64 `json:",omitempty"`
	Humidity    float64 `json:",omitempty"`
	DewPoint    float64 `json:",omitempty"`

	PowerPorts []Port
	DewPorts   []Port `json:",omitempty"`
	USBPorts   []bool `json:",omitempty"`

	// PowerOnBoot lists the power outputs enabled at power on.
	PowerOnBoot     []bool  `json:",omitempty"`
	VariableVoltage float64 `json:",omitempty"`
	AutoDew         bool
	LEDEnabled      bool

	// Consumption since power on.
	AverageCurrent float64 `json:",omitempty"`
	AmpHours       float64 `json:",omitempty"`
	WattHours      float64 `json:",omitempty"`
	UptimeMillis   int64   `json:",omitempty"`

	Focuser *FocuserStatus `json:",omitempty"`

	Alert string `json:",omitempty"`
}

// CheckPort returns an error if port is not in [1,count].
func CheckPort(kind string, port, count int) error {
	if port < 1 || port > count {
		return fmt.Errorf("%s port %d out of range [1,%d]", kind, port, count)
	}
	return nil
}
