// Package relay drives a Modbus RTU relay board as a power box.
//
// The board exposes its relay count and supply voltage in input registers
// 0 and 1 (centivolts), relay commands as coils, relay contact feedback as
// discrete inputs, and a fault input after the last relay.
package relay

import (
	"context"
	"encoding/binary"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/w1xm/lx200_interface/internal/modbus"
	"github.com/w1xm/lx200_interface/power"
)

type Config struct {
	Port     string
	BaudRate int
	SlaveId  byte
	// URL reaches the board through a modbus_bridge instead of Port.
	URL      string
	Password string
	Interval time.Duration
}

type Board struct {
	callback power.StatusCallback
	mu       sync.Mutex
	client   *modbus.Client
	relays   int
	supply   uint16
	coils    []bool
	inputs   []bool

	status    power.Status
	sent      power.Status
	published bool
}

var _ power.Box = (*Board)(nil)

func Connect(ctx context.Context, cfg Config, callback power.StatusCallback) (*Board, error) {
	if cfg.SlaveId == 0 {
		cfg.SlaveId = 1
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	b := &Board{
		client: &modbus.Client{
			Port:     cfg.Port,
			BaudRate: cfg.BaudRate,
			SlaveId:  cfg.SlaveId,
			URL:      cfg.URL,
			Password: cfg.Password,
			Interval: cfg.Interval,
		},
		callback: callback,
	}
	b.client.Poll = b.Poll
	return b, b.client.Connect(ctx)
}

func (b *Board) Poll() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	results, err := b.client.ReadInputRegisters(0, 2)
	if err != nil {
		return b.fail(err)
	}
	if len(results) < 4 {
		return b.fail(fmt.Errorf("short input register read: %x", results))
	}
	relays := binary.BigEndian.Uint16(results)
	supply := binary.BigEndian.Uint16(results[2:])

	coils, err := b.client.ReadCoils(0, relays)
	if err != nil {
		return b.fail(err)
	}
	inputs, err := b.client.ReadDiscreteInputs(0, relays+1)
	if err != nil {
		return b.fail(err)
	}
	b.relays = int(relays)
	b.supply = supply
	b.coils = modbus.BytesToBits(coils)
	b.inputs = modbus.BytesToBits(inputs)
	b.status = b.parseRegisters()
	b.publish()
	return nil
}

func (b *Board) fail(err error) error {
	b.status.Alert = err.Error()
	b.publish()
	return err
}

func (b *Board) parseRegisters() power.Status {
	status := power.Status{
		Driver:  "relay",
		Voltage: float64(b.supply) / 100,
	}
	for i := 0; i < b.relays; i++ {
		status.PowerPorts = append(status.PowerPorts, power.Port{
			Enabled: b.inputs[i],
		})
		if b.coils[i] != b.inputs[i] {
			status.Alert = fmt.Sprintf("relay %d does not follow its command", i+1)
		}
	}
	if b.inputs[b.relays] {
		status.Alert = "board fault"
	}
	return status
}

func (b *Board) publish() {
	if b.published && reflect.DeepEqual(b.status, b.sent) {
		return
	}
	b.published = true
	b.sent = b.status
	if b.callback != nil {
		b.callback(b.status)
	}
}

func (b *Board) Status() power.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *Board) SetPowerPort(port int, enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := power.CheckPort("power", port, b.relays); err != nil {
		return err
	}
	return b.client.WriteCoil(port-1, enabled)
}

func (b *Board) SetPWMPort(port int, duty float64) error {
	return power.ErrUnsupported
}

func (b *Board) SetVariablePort(volts float64) error {
	return power.ErrUnsupported
}

func (b *Board) SetUSBPort(port int, enabled bool) error {
	return power.ErrUnsupported
}

func (b *Board) SetLEDEnabled(enabled bool) error {
	return power.ErrUnsupported
}

func (b *Board) SetAutoDew(enabled bool) error {
	return power.ErrUnsupported
}
