package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"math"
	"net"
	"strings"

	"github.com/w1xm/lx200_interface/lx200"
	"github.com/w1xm/lx200_interface/mount"
)

// skySafari translates the LX200 subset spoken by planetarium apps into
// mount calls. One instance serves one client connection.
type skySafari struct {
	s *Server

	ra, dec float64

	latitude, longitude         float64
	haveLatitude, haveLongitude bool
}

func (s *Server) ListenSkySafari(ctx context.Context, addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		log.Print("shutdown; closing SkySafari socket")
		ln.Close()
	}()
	go func() {
		for ctx.Err() == nil {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("failed to accept: %v", err)
				}
				continue
			}
			go s.handleSkySafari(conn)
		}
	}()
	return ln.Addr(), nil
}

func scanCommands(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := strings.IndexByte(string(data), '#'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (s *Server) handleSkySafari(conn net.Conn) {
	defer conn.Close()
	log.Printf("accepted connection from %v", conn.RemoteAddr())
	client := &skySafari{s: s}
	scanner := bufio.NewScanner(conn)
	scanner.Split(scanCommands)
	for scanner.Scan() {
		cmd := strings.TrimLeft(scanner.Text(), ":")
		if cmd == "" {
			continue
		}
		reply := client.process(cmd)
		if reply == "" {
			continue
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			log.Printf("writing to %v: %v", conn.RemoteAddr(), err)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("reading from %v: %v", conn.RemoteAddr(), err)
	}
}

func (c *skySafari) do(f func(m mount.Mount) error) error {
	err := c.s.poller.Do(f)
	if err != nil {
		log.Printf("SkySafari: %v", err)
	}
	return err
}

// parseSiteAngle reads "sDD*MM" or "DDD*MM".
func parseSiteAngle(s string) (float64, bool) {
	var dd, mm int
	var sep byte
	if n, _ := fmt.Sscanf(s, "%d%c%d", &dd, &sep, &mm); n != 3 {
		return 0, false
	}
	v := math.Abs(float64(dd)) + float64(mm)/60
	if strings.HasPrefix(s, "-") {
		v = -v
	}
	return v, true
}

// process handles one command with the leading ':' and trailing '#'
// removed, and returns the reply.
func (c *skySafari) process(cmd string) string {
	switch {
	case cmd == "GR":
		return lx200.FormatRA(c.s.currentStatus().RightAscension) + "#"
	case cmd == "GD":
		return lx200.FormatDec(c.s.currentStatus().Declination) + "#"
	case strings.HasPrefix(cmd, "Sr"):
		if ra, err := lx200.ParseRA(cmd[2:]); err == nil {
			c.ra = ra
		}
		return "1"
	case strings.HasPrefix(cmd, "Sd"):
		if dec, err := lx200.ParseDec(cmd[2:]); err == nil {
			c.dec = dec
		}
		return "1"
	case cmd == "MS":
		if err := c.do(func(m mount.Mount) error { return m.Goto(c.ra, c.dec) }); err != nil {
			return "2<" + err.Error() + ">#"
		}
		return "0"
	case cmd == "CM":
		if err := c.do(func(m mount.Mount) error { return m.Sync(c.ra, c.dec) }); err != nil {
			return "Not Supported#"
		}
		return " M31 EX GAL MAG 3.5 SZ178.0'#"
	case cmd == "Q":
		c.do(func(m mount.Mount) error { return m.Abort() })
	case cmd == "RG", cmd == "RC", cmd == "RM", cmd == "RS":
		for r := mount.SlewGuide; r <= mount.SlewMax; r++ {
			if r.Command() == ":"+cmd+"#" {
				rate := r
				c.do(func(m mount.Mount) error { return m.SetSlewRate(rate) })
			}
		}
	case len(cmd) == 2 && (cmd[0] == 'M' || cmd[0] == 'Q'):
		dir, err := mount.ParseDirection(cmd[1:])
		if err != nil {
			return ""
		}
		start := cmd[0] == 'M'
		c.do(func(m mount.Mount) error { return m.Move(dir, start) })
	case strings.HasPrefix(cmd, "St"):
		if v, ok := parseSiteAngle(cmd[2:]); ok {
			c.latitude, c.haveLatitude = v, true
		}
		c.sendLocation()
		return "1"
	case strings.HasPrefix(cmd, "Sg"):
		if v, ok := parseSiteAngle(cmd[2:]); ok {
			// West positive, 0 to 360.
			east := 360 - v
			if east > 180 {
				east -= 360
			}
			c.longitude, c.haveLongitude = east, true
		}
		c.sendLocation()
		return "1"
	case strings.HasPrefix(cmd, "SG"), strings.HasPrefix(cmd, "SL"), strings.HasPrefix(cmd, "SC"):
		// The host clock is authoritative.
		return "1"
	}
	return ""
}

func (c *skySafari) sendLocation() {
	if !c.haveLatitude || !c.haveLongitude {
		return
	}
	c.do(func(m mount.Mount) error { return m.UpdateLocation(c.latitude, c.longitude) })
	c.haveLatitude, c.haveLongitude = false, false
}
