package mount

import (
	"context"
	"log"
	"sync"
	"time"
)

// Poller owns a Mount and drives its poll loop. All access to the mount,
// including commands from other goroutines, goes through the poller's lock
// so that at most one exchange is on the wire at a time.
type Poller struct {
	mu sync.Mutex
	m  Mount

	// ReconnectDelay is the wait between failed connection attempts.
	ReconnectDelay time.Duration
}

func NewPoller(m Mount) *Poller {
	return &Poller{
		m:              m,
		ReconnectDelay: 1 * time.Second,
	}
}

// Do runs f with exclusive access to the mount.
func (p *Poller) Do(f func(m Mount) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return f(p.m)
}

// Status returns the mount's last published status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.m.Status()
}

// Run connects to the mount, retrying until the handshake succeeds, and then
// polls it at the interval the driver asks for until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	for {
		err := p.Do(func(m Mount) error { return m.Connect() })
		if err == nil {
			break
		}
		log.Printf("connecting to mount: %v", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.ReconnectDelay):
		}
	}
	for {
		var interval time.Duration
		err := p.Do(func(m Mount) error {
			err := m.ReadStatus()
			interval = m.PollInterval()
			return err
		})
		if err != nil {
			log.Printf("polling mount: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
