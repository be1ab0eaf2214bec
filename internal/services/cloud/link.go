package cloud

import (
	"net"
	"time"
)

// Link is the network path to the cloud service. Ready must not block for
// long; Reconnect only starts the attempt, readiness is polled afterwards.
type Link interface {
	Ready() bool
	Reconnect()
}

type idleCloser interface {
	CloseIdleConnections()
}

// DialLink treats the link as ready when a TCP connection to addr succeeds.
type DialLink struct {
	addr    string
	timeout time.Duration
	idle    idleCloser
}

var _ Link = (*DialLink)(nil)

// NewDialLink probes addr ("host:port"). idle, if set, has its pooled
// connections dropped on Reconnect so the next write dials fresh.
func NewDialLink(addr string, timeout time.Duration, idle idleCloser) *DialLink {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &DialLink{addr: addr, timeout: timeout, idle: idle}
}

func (l *DialLink) Ready() bool {
	conn, err := net.DialTimeout("tcp", l.addr, l.timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (l *DialLink) Reconnect() {
	if l.idle != nil {
		l.idle.CloseIdleConnections()
	}
}
