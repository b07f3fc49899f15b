package apnstest

import (
	"net"
	"sync"

	"github.com/bft-labs/pushgate/pkg/wire"
)

// FeedbackServer streams a fixed set of feedback records to every client and
// then closes the connection.
type FeedbackServer struct {
	ln      net.Listener
	payload []byte

	mu    sync.Mutex
	dials int

	wg sync.WaitGroup
}

// NewFeedbackServer starts a feedback server on a loopback port. Extra bytes
// are appended after the records, which lets tests send a truncated tail.
func NewFeedbackServer(records []wire.FeedbackRecord, extra ...byte) (*FeedbackServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	var payload []byte
	for _, rec := range records {
		payload = wire.AppendFeedback(payload, rec)
	}
	payload = append(payload, extra...)

	s := &FeedbackServer{ln: ln, payload: payload}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Addr returns the host:port the server listens on.
func (s *FeedbackServer) Addr() string {
	return s.ln.Addr().String()
}

// Dials returns how many connections have been served.
func (s *FeedbackServer) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// Close stops the server.
func (s *FeedbackServer) Close() error {
	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *FeedbackServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.dials++
		s.mu.Unlock()

		_, _ = conn.Write(s.payload)
		_ = conn.Close()
	}
}
