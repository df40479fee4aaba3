// Package lx200 implements the byte channel shared by the serial device
// drivers, Meade sexagesimal helpers and a generic LX200 mount.
package lx200

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/tarm/serial"
)

var (
	ErrTimeout  = errors.New("timed out waiting for reply")
	ErrOverflow = errors.New("reply overflowed buffer")
)

// Transport is the channel drivers talk through.
type Transport interface {
	Write(cmd string) error
	// ReadUntil reads up to and excluding term, failing with ErrOverflow if
	// more than max bytes arrive first.
	ReadUntil(term byte, max int) (string, error)
	// ReadN reads exactly n bytes.
	ReadN(n int) (string, error)
	// Flush discards pending input.
	Flush() error
}

// Conn is a Transport over a byte stream. Reads from the underlying stream
// may return (0, nil) or (0, io.EOF) when no data is pending; Conn keeps
// reading until its Timeout expires.
type Conn struct {
	rw io.ReadWriter

	Timeout time.Duration
	// Debug logs every exchange.
	Debug bool
}

func NewConn(rw io.ReadWriter, timeout time.Duration) *Conn {
	return &Conn{rw: rw, Timeout: timeout}
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

type flusher interface {
	Flush() error
}

// Open opens a serial port at baud 8N1.
func Open(port string, baud int, timeout time.Duration) (*Conn, io.Closer, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        port,
		Baud:        baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening %q: %w", port, err)
	}
	return NewConn(p, timeout), p, nil
}

// Dial connects to a mount exposed over TCP, such as a serial-to-WiFi bridge.
func Dial(addr string, timeout time.Duration) (*Conn, io.Closer, error) {
	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing %q: %w", addr, err)
	}
	return NewConn(c, timeout), c, nil
}

func (c *Conn) Write(cmd string) error {
	if c.Debug {
		log.Printf("Writing: %q", cmd)
	}
	if _, err := io.WriteString(c.rw, cmd); err != nil {
		return fmt.Errorf("writing %q: %w", cmd, err)
	}
	return nil
}

func (c *Conn) readByte(deadline time.Time) (byte, error) {
	var b [1]byte
	if d, ok := c.rw.(deadliner); ok {
		d.SetReadDeadline(deadline)
	}
	for {
		n, err := c.rw.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		var ne net.Error
		switch {
		case errors.As(err, &ne) && ne.Timeout():
			return 0, ErrTimeout
		case err != nil && err != io.EOF:
			return 0, err
		}
		if time.Now().After(deadline) {
			return 0, ErrTimeout
		}
		time.Sleep(time.Millisecond)
	}
}

func (c *Conn) ReadUntil(term byte, max int) (string, error) {
	deadline := time.Now().Add(c.Timeout)
	var buf []byte
	for {
		b, err := c.readByte(deadline)
		if err != nil {
			return string(buf), err
		}
		if b == term {
			break
		}
		if len(buf) >= max {
			return string(buf), ErrOverflow
		}
		buf = append(buf, b)
	}
	if c.Debug {
		log.Printf("Read: %q", buf)
	}
	return string(buf), nil
}

func (c *Conn) ReadN(n int) (string, error) {
	deadline := time.Now().Add(c.Timeout)
	buf := make([]byte, 0, n)
	for len(buf) < n {
		b, err := c.readByte(deadline)
		if err != nil {
			return string(buf), err
		}
		buf = append(buf, b)
	}
	if c.Debug {
		log.Printf("Read: %q", buf)
	}
	return string(buf), nil
}

func (c *Conn) Flush() error {
	if f, ok := c.rw.(flusher); ok {
		return f.Flush()
	}
	return nil
}
