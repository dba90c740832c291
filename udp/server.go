package udp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Server owns one bound UDP socket and dispatches each datagram to a
// Processor on a bounded goroutine pool, generalizing the teacher's
// network.Network listener-binding contract and chihaya.go's Boot() server
// loop shape onto a connectionless transport (graceful.Server is HTTP-only,
// so shutdown here is hand-rolled per SPEC_FULL.md §4.10).
type Server struct {
	Processor *Processor
	Workers   int

	conn   *net.UDPConn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ListenAndServe binds addr and serves until the returned context from
// Shutdown fires or Close is called.
func (s *Server) ListenAndServe(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.conn = conn

	if s.Processor != nil {
		s.Processor.Binding.Type = DetectIPType(conn)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	buf := make([]byte, 65536)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				glog.Warningf("udp: read error: %v", err)
				continue
			}
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		fromCopy := *from

		sem <- struct{}{}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-sem }()
			resp := s.Processor.Process(ctx, datagram, &fromCopy)
			if resp != nil {
				if _, err := conn.WriteToUDP(resp, &fromCopy); err != nil {
					glog.Warningf("udp: write error: %v", err)
				}
			}
		}()
	}
}

// Shutdown stops accepting new datagrams, waits up to gracePeriod for
// in-flight processing goroutines to drain, then closes the socket
// regardless, logging any remainder, per SPEC_FULL.md §4.10's "best effort,
// then proceed" shutdown style.
func (s *Server) Shutdown(gracePeriod time.Duration) {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.conn.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	deadline := time.After(gracePeriod)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-deadline:
			glog.Infof("udp: shutdown grace period elapsed, abandoning remaining in-flight requests")
			return
		case <-ticker.C:
			glog.Infof("udp: waiting for in-flight requests to drain")
		}
	}
}
