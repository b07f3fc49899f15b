// Package apnstest provides in-process push and feedback servers that speak
// the binary protocol, for use in tests.
package apnstest

import (
	"bufio"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/bft-labs/pushgate/pkg/wire"
)

const (
	lingerIdle = 100 * time.Millisecond
	lingerMax  = 2 * time.Second
)

// Server accepts notification frames and answers like the real gateway:
// a frame for a rejected token gets status 8 with that frame's id, a
// malformed frame gets its decode status with the last accepted id, and the
// connection is closed after either.
type Server struct {
	ln  net.Listener
	bad map[[wire.TokenSize]byte]bool

	mu       sync.Mutex
	accepted []wire.Frame
	conns    map[net.Conn]*peer
	dials    int
	closed   bool

	wg sync.WaitGroup
}

type peer struct {
	lastID  uint32
	hasLast bool
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	bad [][wire.TokenSize]byte
	tls *tls.Config
}

// WithBadToken makes the server reject notifications addressed to token.
func WithBadToken(token [wire.TokenSize]byte) Option {
	return func(c *serverConfig) {
		c.bad = append(c.bad, token)
	}
}

// WithTLS serves over TLS using cfg.
func WithTLS(cfg *tls.Config) Option {
	return func(c *serverConfig) {
		c.tls = cfg
	}
}

// NewServer starts a server on a loopback port.
func NewServer(opts ...Option) (*Server, error) {
	var cfg serverConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	if cfg.tls != nil {
		ln = tls.NewListener(ln, cfg.tls)
	}

	s := &Server{
		ln:    ln,
		bad:   make(map[[wire.TokenSize]byte]bool),
		conns: make(map[net.Conn]*peer),
	}
	for _, tok := range cfg.bad {
		s.bad[tok] = true
	}

	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Accepted returns every frame accepted so far, in arrival order.
func (s *Server) Accepted() []wire.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wire.Frame(nil), s.accepted...)
}

// AcceptedIDs returns the ids of the accepted frames.
func (s *Server) AcceptedIDs() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint32, len(s.accepted))
	for i, f := range s.accepted {
		ids[i] = f.ID
	}
	return ids
}

// Dials returns how many connections have been accepted.
func (s *Server) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// Disconnect sends a shutdown status with the last accepted id on every open
// connection and closes them.
func (s *Server) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, p := range s.conns {
		reply(conn, wire.StatusFrame{Status: wire.StatusShutdown, ID: p.lastID, HasID: p.hasLast})
		_ = conn.Close()
		delete(s.conns, conn)
	}
}

// Close stops the server and closes every connection.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		p := &peer{}
		s.conns[conn] = p
		s.dials++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn, p)
	}
}

func (s *Server) handle(conn net.Conn, p *peer) {
	defer s.wg.Done()
	defer s.drop(conn)

	br := bufio.NewReader(conn)
	for {
		f, err := wire.ReadFrame(br)
		if err != nil {
			var de *wire.DecodeError
			if errors.As(err, &de) {
				s.mu.Lock()
				id, hasID := p.lastID, p.hasLast
				s.mu.Unlock()
				if de.HasID {
					id, hasID = de.ID, true
				}
				reply(conn, wire.StatusFrame{Status: de.Status, ID: id, HasID: hasID})
				linger(conn)
			}
			return
		}

		if s.bad[f.Token] {
			reply(conn, wire.StatusFrame{Status: wire.StatusInvalidToken, ID: f.ID, HasID: true})
			linger(conn)
			return
		}

		s.mu.Lock()
		s.accepted = append(s.accepted, f)
		p.lastID, p.hasLast = f.ID, true
		s.mu.Unlock()
	}
}

func (s *Server) drop(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

// linger half-closes conn and discards what the client still sends, so the
// status frame is not lost to a reset.
func linger(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	deadline := time.Now().Add(lingerMax)
	buf := make([]byte, 4096)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(lingerIdle))
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

func reply(conn net.Conn, st wire.StatusFrame) {
	b := wire.EncodeStatus(st)
	_, _ = conn.Write(b[:])
}
