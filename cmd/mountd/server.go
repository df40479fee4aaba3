package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/w1xm/lx200_interface/mount"
)

type Server struct {
	poller *mount.Poller

	statusMu   sync.RWMutex
	statusCond *sync.Cond
	status     mount.Status
	// version counts published statuses.
	version int
}

func NewServer() *Server {
	s := &Server{}
	s.statusCond = sync.NewCond(s.statusMu.RLocker())
	return s
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) Handler(staticDir string) http.Handler {
	r := mux.NewRouter()
	r.Handle("/api/status", http.HandlerFunc(s.StatusHandler)).Methods("GET")
	r.Handle("/api/command", http.HandlerFunc(s.CommandHandler)).Methods("POST")
	r.Handle("/api/ws", http.HandlerFunc(s.StatusSocketHandler))
	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}
	return r
}

func (s *Server) currentStatus() mount.Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	status := s.currentStatus()
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(status)
	if err != nil {
		log.Print(err)
		return
	}
	w.Write(data)
}

type Command struct {
	Command   string  `json:"command"`
	RA        float64 `json:"ra"`
	Dec       float64 `json:"dec"`
	Direction string  `json:"direction"`
	Start     bool    `json:"start"`
	Rate      string  `json:"rate"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Execute runs one command against the mount.
func (s *Server) Execute(msg Command) error {
	switch msg.Command {
	case "goto":
		return s.poller.Do(func(m mount.Mount) error { return m.Goto(msg.RA, msg.Dec) })
	case "sync":
		return s.poller.Do(func(m mount.Mount) error { return m.Sync(msg.RA, msg.Dec) })
	case "abort", "stop":
		return s.poller.Do(func(m mount.Mount) error { return m.Abort() })
	case "park":
		return s.poller.Do(func(m mount.Mount) error { return m.Park() })
	case "move":
		dir, err := mount.ParseDirection(msg.Direction)
		if err != nil {
			return err
		}
		return s.poller.Do(func(m mount.Mount) error { return m.Move(dir, msg.Start) })
	case "set_slew_rate":
		rate, err := mount.ParseSlewRate(msg.Rate)
		if err != nil {
			return err
		}
		return s.poller.Do(func(m mount.Mount) error { return m.SetSlewRate(rate) })
	case "update_location":
		return s.poller.Do(func(m mount.Mount) error { return m.UpdateLocation(msg.Latitude, msg.Longitude) })
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

func (s *Server) StatusSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	defer conn.Close()

	// Read and process incoming messages
	go func() {
		for {
			var msg Command
			if err := conn.ReadJSON(&msg); err != nil {
				cancel()
				// Wake the writer so it notices.
				s.statusMu.Lock()
				s.statusCond.Broadcast()
				s.statusMu.Unlock()
				break
			}
			if err := s.Execute(msg); err != nil {
				log.Printf("%s: %v", msg.Command, err)
			}
		}
	}()

	send := func(status mount.Status) error {
		data, err := json.Marshal(status)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	sent := -1
	for {
		s.statusMu.RLock()
		for s.version == sent && ctx.Err() == nil {
			s.statusCond.Wait()
		}
		status := s.status
		sent = s.version
		s.statusMu.RUnlock()
		if ctx.Err() != nil {
			return
		}
		if err := send(status); err != nil {
			log.Print(err)
			return
		}
	}
}

func (s *Server) statusCallback(status mount.Status) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status = status
	s.version++
	s.statusCond.Broadcast()
}
