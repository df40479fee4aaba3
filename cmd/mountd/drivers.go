package main

import (
	"context"
	"io"
	"log"
	"net"
	"strings"

	"github.com/w1xm/lx200_interface/eq500x"
	"github.com/w1xm/lx200_interface/eq500x/simulator"
	"github.com/w1xm/lx200_interface/lx200"
	"github.com/w1xm/lx200_interface/mount"
)

// openTransport opens a serial device, or dials when the port looks like
// host:port. The device is closed when ctx is done.
func openTransport(ctx context.Context, cfg mount.Config, debug bool) (*lx200.Conn, error) {
	var (
		conn   *lx200.Conn
		closer io.Closer
		err    error
	)
	if strings.Contains(cfg.Port, ":") && !strings.HasPrefix(cfg.Port, "/") {
		conn, closer, err = lx200.Dial(cfg.Port, cfg.Timeout)
	} else {
		conn, closer, err = lx200.Open(cfg.Port, cfg.BaudRate, cfg.Timeout)
	}
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		if err := closer.Close(); err != nil {
			log.Printf("closing %s: %v", cfg.Port, err)
		}
	}()
	conn.Debug = debug
	return conn, nil
}

func newRegistry(ctx context.Context, debug bool) mount.Registry {
	return mount.Registry{
		"eq500x": func(cfg mount.Config) (mount.Mount, error) {
			conn, err := openTransport(ctx, cfg, debug)
			if err != nil {
				return nil, err
			}
			return eq500x.New(conn, cfg), nil
		},
		"eq500x-sim": func(cfg mount.Config) (mount.Mount, error) {
			sim := simulator.New()
			sim.Verbose = debug
			client, server := net.Pipe()
			go func() {
				if err := sim.Serve(ctx, server); err != nil {
					log.Printf("simulator: %v", err)
				}
			}()
			conn := lx200.NewConn(client, cfg.Timeout)
			conn.Debug = debug
			return eq500x.New(conn, cfg), nil
		},
		"lx200": func(cfg mount.Config) (mount.Mount, error) {
			conn, err := openTransport(ctx, cfg, debug)
			if err != nil {
				return nil, err
			}
			return lx200.NewGeneric(conn, cfg), nil
		},
	}
}
