// Package modbus wraps a goburrow Modbus client with a reconnect loop that
// polls the device while the line is up.
package modbus

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/goburrow/modbus"
	"github.com/w1xm/lx200_interface/internal/modbus/modbushttp"
)

type modbusHandler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

type Client struct {
	// Port and BaudRate create a local serial connection
	Port string
	// BaudRate defaults to 19200
	BaudRate int
	SlaveId  byte
	// URL creates a remote connection through a modbushttp bridge
	URL      string
	Password string

	// Interval between calls to Poll
	Interval time.Duration
	// Poll function to be called in a loop while the connection is active
	Poll func() error
	// Debug logs every frame
	Debug bool

	handler modbusHandler
	modbus.Client
}

// NewRTUHandler returns a handler for an 8N1 serial line.
func NewRTUHandler(port string, baud int, slaveID byte) *modbus.RTUClientHandler {
	if baud == 0 {
		baud = 19200
	}
	handler := modbus.NewRTUClientHandler(port)
	handler.BaudRate = baud
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.Timeout = 1 * time.Second
	handler.SlaveId = slaveID
	return handler
}

func (c *Client) Connect(ctx context.Context) error {
	if c.URL != "" {
		h := modbushttp.NewClient(c.URL, c.Password)
		h.SlaveId = c.SlaveId
		c.handler = h
	} else {
		handler := NewRTUHandler(c.Port, c.BaudRate, c.SlaveId)
		if c.Debug {
			handler.Logger = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)
		}
		c.handler = handler
	}
	c.Client = modbus.NewClient(c.handler)
	go c.reconnectLoop(ctx)
	return nil
}

func (c *Client) reconnectLoop(ctx context.Context) {
	port := c.URL
	if port == "" {
		port = c.Port
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Second):
		}

		err := c.handler.Connect()
		if err != nil {
			log.Printf("opening %q: %v", port, err)
			continue
		}
		if err := c.watch(ctx); err != nil {
			log.Printf("watching %q: %v", port, err)
		}
	}
}

func (c *Client) watch(ctx context.Context) error {
	defer c.handler.Close()
	for {
		if err := c.Poll(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Interval):
		}
	}
}

func (c *Client) WriteCoil(coil int, value bool) error {
	var v uint16
	if value {
		v = 0xFF00
	}
	_, err := c.WriteSingleCoil(uint16(coil), v)
	return err
}

func BytesToBits(bs []byte) []bool {
	var out []bool
	for _, b := range bs {
		for i := 0; i < 8; i++ {
			out = append(out, (b>>uint(i)&1) == 1)
		}
	}
	return out
}
