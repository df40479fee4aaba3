package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/w1xm/lx200_interface/power"
)

type Server struct {
	mu  sync.Mutex
	box power.Box
}

// pollLoop polls boxes that do not poll themselves.
func (s *Server) pollLoop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		s.mu.Lock()
		err := s.box.Poll()
		s.mu.Unlock()
		if err != nil {
			log.Printf("polling: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/api/status", http.HandlerFunc(s.StatusHandler)).Methods("GET")
	r.Handle("/api/command", http.HandlerFunc(s.CommandHandler)).Methods("POST")
	return r
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := s.box.Status()
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(status)
	if err != nil {
		log.Print(err)
		return
	}
	w.Write(data)
}

type Command struct {
	Command string  `json:"command"`
	Port    int     `json:"port"`
	Enabled bool    `json:"enabled"`
	Value   float64 `json:"value"`
	// Ports carries one flag per power output, for power_on_boot.
	Ports []bool `json:"ports"`
}

func (s *Server) Execute(msg Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch msg.Command {
	case "power":
		return s.box.SetPowerPort(msg.Port, msg.Enabled)
	case "pwm":
		return s.box.SetPWMPort(msg.Port, msg.Value)
	case "variable":
		return s.box.SetVariablePort(msg.Value)
	case "usb":
		return s.box.SetUSBPort(msg.Port, msg.Enabled)
	case "led":
		return s.box.SetLEDEnabled(msg.Enabled)
	case "autodew":
		return s.box.SetAutoDew(msg.Enabled)
	case "power_on_boot":
		b, ok := s.box.(power.BootSwitcher)
		if !ok {
			return power.ErrUnsupported
		}
		return b.SetPowerOnBoot(msg.Ports)
	}
	if strings.HasPrefix(msg.Command, "focuser_") {
		return s.executeFocuser(msg)
	}
	return fmt.Errorf("unknown command %q", msg.Command)
}

func (s *Server) executeFocuser(msg Command) error {
	f, ok := s.box.(power.Focuser)
	if !ok {
		return power.ErrUnsupported
	}
	steps := int(math.Round(msg.Value))
	switch msg.Command {
	case "focuser_move":
		return f.MoveFocuser(steps)
	case "focuser_halt":
		return f.HaltFocuser()
	case "focuser_reverse":
		return f.ReverseFocuser(msg.Enabled)
	case "focuser_sync":
		return f.SyncFocuser(steps)
	case "focuser_backlash":
		return f.SetFocuserBacklash(steps)
	case "focuser_speed":
		return f.SetFocuserMaxSpeed(steps)
	}
	return fmt.Errorf("unknown command %q", msg.Command)
}

func (s *Server) CommandHandler(w http.ResponseWriter, r *http.Request) {
	var msg Command
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Execute(msg); err != nil {
		log.Printf("%s: %v", msg.Command, err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.StatusHandler(w, r)
}
