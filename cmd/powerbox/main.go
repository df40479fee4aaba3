// Command powerbox serves a power distribution box over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/w1xm/lx200_interface/lx200"
	"github.com/w1xm/lx200_interface/pegasus"
	"github.com/w1xm/lx200_interface/relay"
)

var (
	addr       = flag.String("addr", "127.0.0.1:8503", "address to listen on")
	kind       = flag.String("kind", "upb", "power box kind: upb or relay")
	serialPort = flag.String("serial", "", "serial port name")
	baud       = flag.Int("baud", 9600, "baud rate")
	bridgeURL  = flag.String("bridge_url", "", "modbus_bridge URL for a remote relay board")
	password   = flag.String("password", "", "modbus_bridge password")
	interval   = flag.Duration("interval", 1*time.Second, "polling interval")
	debug      = flag.Bool("debug", false, "log serial traffic")
)

func main() {
	flag.Parse()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		cancel()
	}()

	s := &Server{}
	switch *kind {
	case "upb":
		conn, closer, err := lx200.Open(*serialPort, *baud, time.Second)
		if err != nil {
			log.Fatal(err)
		}
		defer closer.Close()
		conn.Debug = *debug
		upb := pegasus.New(conn, nil)
		for {
			err := upb.Connect()
			if err == nil {
				break
			}
			log.Printf("connecting to %q: %v", *serialPort, err)
			time.Sleep(time.Second)
		}
		s.box = upb
		go s.pollLoop(ctx, *interval)
	case "relay":
		b, err := relay.Connect(ctx, relay.Config{
			Port:     *serialPort,
			BaudRate: *baud,
			URL:      *bridgeURL,
			Password: *password,
			Interval: *interval,
		}, nil)
		if err != nil {
			log.Fatal(err)
		}
		s.box = b
	default:
		log.Fatalf("unknown power box kind %q", *kind)
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		Addr:         *addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	log.Printf("Listening on %v", srv.Addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
