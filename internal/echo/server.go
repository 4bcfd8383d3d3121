package echo

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/packetio/internal/protocol/packet"
	"github.com/danmuck/packetio/internal/transport"
)

type ServerConfig struct {
	Packet       packet.Config
	Async        bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Packet:      packet.DefaultConfig(),
		ReadTimeout: 30 * time.Second,
	}
}

// Server echoes every Envelope it receives back to the sender.
type Server struct {
	cfg ServerConfig

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
	wg      sync.WaitGroup

	active atomic.Int64
	echoed atomic.Uint64
}

func NewServer(cfg ServerConfig) *Server {
	cfg.Packet = cfg.Packet.WithDefaults()
	return &Server{
		cfg:   cfg,
		conns: make(map[net.Conn]struct{}),
	}
}

// Active returns the number of open client connections.
func (s *Server) Active() int64 {
	return s.active.Load()
}

// Echoed returns the number of envelopes sent back so far.
func (s *Server) Echoed() uint64 {
	return s.echoed.Load()
}

// Serve accepts connections on ln until ctx ends, then closes the listener
// and every tracked connection and waits for the handlers to return. A
// Server serves once.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
		s.closeAllConns()
	}()
	defer s.wg.Wait()

	log.Info().Str("addr", ln.Addr().String()).Bool("async", s.cfg.Async).Msg("echo.Server listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		// A connection accepted as shutdown begins would never be closed.
		if ctx.Err() != nil || !s.trackConn(conn) {
			_ = conn.Close()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)
	remote := conn.RemoteAddr().String()
	active := s.active.Add(1)
	log.Debug().Str("remote", remote).Int64("active_clients", active).Msg("echo.Server client connected")
	defer func() {
		remaining := s.active.Add(-1)
		log.Debug().Str("remote", remote).Int64("active_clients", remaining).Msg("echo.Server client disconnected")
	}()

	rw := transport.NewDeadlineConn(conn, s.cfg.ReadTimeout, s.cfg.WriteTimeout)
	var err error
	if s.cfg.Async {
		err = s.serveAsync(ctx, rw)
	} else {
		err = s.serveSync(rw)
	}
	if err != nil && !closedQuietly(ctx, err) {
		log.Warn().Err(err).Str("remote", remote).Msg("echo.Server connection ended")
	}
}

func (s *Server) serveSync(rw io.ReadWriter) error {
	conn := packet.NewConn(rw, s.cfg.Packet)
	for {
		var env Envelope
		err := conn.Receive(&env)
		if errors.Is(err, packet.ErrDecode) {
			log.Warn().Err(err).Msg("echo.Server dropped undecodable frame")
			continue
		}
		if err != nil {
			return err
		}
		if err := env.Validate(); err != nil {
			log.Warn().Err(err).Uint64("seq", env.Seq).Msg("echo.Server dropped envelope")
			continue
		}
		if err := conn.Send(env); err != nil {
			return err
		}
		s.echoed.Add(1)
	}
}

func (s *Server) serveAsync(ctx context.Context, rw io.ReadWriter) error {
	conn := packet.NewAsyncConn(rw, s.cfg.Packet)
	for {
		env, err := packet.ReceiveContext[Envelope](ctx, conn)
		if errors.Is(err, packet.ErrDecode) {
			log.Warn().Err(err).Msg("echo.Server dropped undecodable frame")
			continue
		}
		if err != nil {
			return err
		}
		if err := env.Validate(); err != nil {
			log.Warn().Err(err).Uint64("seq", env.Seq).Msg("echo.Server dropped envelope")
			continue
		}
		if err := conn.Send(ctx, env); err != nil {
			return err
		}
		s.echoed.Add(1)
	}
}

// closedQuietly reports errors that mean the peer left or shutdown began.
func closedQuietly(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// trackConn refuses conn once closeAllConns has run.
func (s *Server) trackConn(conn net.Conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.closing = true
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}
