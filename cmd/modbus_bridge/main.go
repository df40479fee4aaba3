// Command modbus_bridge exposes a local Modbus RTU serial line over HTTP,
// for relay boards attached to another host.
package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/w1xm/lx200_interface/internal/modbus"
	"github.com/w1xm/lx200_interface/internal/modbus/modbushttp"
)

var (
	addr       = flag.String("addr", "127.0.0.1:8502", "address to listen on")
	password   = flag.String("password", "", "password to require on remote connections")
	serialPort = flag.String("serial", "", "serial port name")
	baud       = flag.Int("baud", 19200, "baud rate")
)

func main() {
	flag.Parse()
	handler := modbus.NewRTUHandler(*serialPort, *baud, 1)
	if err := handler.Connect(); err != nil {
		log.Fatalf("opening %q: %v", *serialPort, err)
	}
	defer handler.Close()

	r := mux.NewRouter()
	r.Handle("/api/send", &modbushttp.Handler{Sender: handler, Password: *password}).Methods("POST")
	r.PathPrefix("/debug").Handler(http.DefaultServeMux)
	srv := &http.Server{
		Handler:      r,
		Addr:         *addr,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	log.Printf("Listening on %v", srv.Addr)
	log.Fatal(srv.ListenAndServe())
}
