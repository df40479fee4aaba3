package main

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/w1xm/lx200_interface/mount"
)

func TestTransportClosedWithContext(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := newRegistry(ctx, false).Open("lx200", mount.Config{
		Port:    l.Addr().String(),
		Timeout: time.Second,
	}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	c, ok := <-accepted
	if !ok {
		t.Fatal("no connection accepted")
	}
	defer c.Close()

	cancel()
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Errorf("Read() = %v, want EOF once the context is done", err)
	}
}
