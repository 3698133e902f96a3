package ipc

import (
	"context"
	"net"
	"sync"

	"github.com/easysoft/xuanxuan-host/internal/logging"
)

// ConnHandler receives messages from window connections.
// HandleMessage is called from the connection's read loop, one message at a
// time; it must not block waiting on another message from the same window.
type ConnHandler interface {
	HandleMessage(c *Conn, msg *Message)
	HandleDisconnect(c *Conn)
}

// Server accepts window connections on a listener.
type Server struct {
	handler ConnHandler
	logger  *logging.Logger

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// NewServer creates a new IPC server.
func NewServer(handler ConnHandler, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[*Conn]struct{}),
	}
}

// Start begins accepting connections on listener.
func (s *Server) Start(listener net.Listener) {
	s.listener = listener
	s.logger.Info().Str("endpoint", listener.Addr().String()).Msg("IPC server started")

	s.wg.Add(1)
	go s.acceptLoop()
}

// Stop closes the listener and every open connection, then waits for the
// connection goroutines to finish.
func (s *Server) Stop() {
	s.logger.Debug().Msg("Stopping IPC server")
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("IPC server stopped")
}

// ConnCount returns the number of open connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		raw, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			s.logger.Warn().Err(err).Msg("IPC listener failed")
			return
		}

		s.wg.Add(1)
		go s.serve(raw)
	}
}

// Serve runs handler against an already connected net.Conn. Exported for
// tests that drive the server over net.Pipe.
func (s *Server) Serve(raw net.Conn) {
	s.wg.Add(1)
	s.serve(raw)
}

func (s *Server) serve(raw net.Conn) {
	defer s.wg.Done()

	c := NewConn(raw, s.logger)

	s.mu.Lock()
	select {
	case <-s.ctx.Done():
		s.mu.Unlock()
		c.Close()
		return
	default:
	}
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	err := c.Serve(func(msg *Message) {
		s.logger.Debug().Str("window", c.Name()).Str("channel", msg.Channel).Msg("Received IPC message")
		s.handler.HandleMessage(c, msg)
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("window", c.Name()).Msg("IPC connection failed")
	}

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()

	s.handler.HandleDisconnect(c)
}
