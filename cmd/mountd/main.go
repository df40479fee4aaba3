// Command mountd connects to a telescope mount and serves its status and
// controls over HTTP, a websocket and the SkySafari LX200 protocol.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/w1xm/lx200_interface/mount"
	"golang.org/x/sync/errgroup"
)

var (
	addr          = flag.String("addr", "127.0.0.1:8502", "address to listen on")
	skysafariAddr = flag.String("skysafari_addr", ":4030", "address for SkySafari clients, empty to disable")
	staticDir     = flag.String("static_dir", "", "directory containing static files")
	driver        = flag.String("driver", "eq500x", "mount driver")
	serialPort    = flag.String("serial", "", "serial port name, or host:port for a network bridge")
	baud          = flag.Int("baud", 9600, "baud rate")
	timeout       = flag.Duration("timeout", 5*time.Second, "reply timeout")
	latitude      = flag.Float64("latitude", 0, "site latitude in degrees, north positive")
	longitude     = flag.Float64("longitude", 0, "site longitude in degrees, east positive")
	coarseGoto    = flag.Bool("coarse_goto", false, "use the mount's own goto for long slews")
	debug         = flag.Bool("debug", false, "log serial traffic")
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

	s := NewServer()
	registry := newRegistry(ctx, *debug)
	m, err := registry.Open(*driver, mount.Config{
		Port:       *serialPort,
		BaudRate:   *baud,
		Timeout:    *timeout,
		Latitude:   *latitude,
		Longitude:  *longitude,
		CoarseGoto: *coarseGoto,
		Callback:   s.statusCallback,
	})
	if err != nil {
		log.Fatalf("opening mount (drivers: %s): %v", strings.Join(registry.Names(), ", "), err)
	}
	s.poller = mount.NewPoller(m)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.poller.Run(ctx)
	})
	if *skysafariAddr != "" {
		a, err := s.ListenSkySafari(ctx, *skysafariAddr)
		if err != nil {
			log.Fatalf("listening for SkySafari: %v", err)
		}
		log.Printf("SkySafari listening on %v", a)
	}

	srv := &http.Server{
		Handler:      s.Handler(*staticDir),
		Addr:         *addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	g.Go(func() error {
		<-ctx.Done()
		return srv.Close()
	})
	g.Go(func() error {
		log.Printf("Listening on %v", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}
