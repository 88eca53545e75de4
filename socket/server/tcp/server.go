/*
 * MIT License
 *
 * Copyright (c) 2024 tlssocket contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package tcp is a TLS-terminating TCP server: it accepts connections,
// optionally promotes each to TLS with ALPN/NPN negotiation, and hands a
// socket.Context to a socket.HandlerFunc for the connection's lifetime.
package tcp

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/sabouaram/tlssocket/errors"
	"github.com/sabouaram/tlssocket/logger"
	"github.com/sabouaram/tlssocket/socket"
	"github.com/sabouaram/tlssocket/socket/config"
)

// ServerTcp is a running (or not-yet-started) TLS-terminating TCP server.
type ServerTcp interface {
	socket.Server

	// RegisterLogger replaces the server's logging facade (logger.Nop by
	// default). Not safe to call concurrently with Listen.
	RegisterLogger(l logger.Logger)

	IsRunning() bool
	IsGone() bool
	OpenConnections() int64

	// StopListen closes the listener without waiting for in-flight
	// connections; unlike Close it neither marks the server gone nor
	// closes Done. Listen returns nil once its listener is closed.
	StopListen(ctx context.Context) error

	Close() error
	Done() <-chan struct{}
}

// New builds a server that dispatches each accepted connection to handler.
// updConn, if non-nil, is called with every raw *net.TCPConn before any TLS
// promotion, letting the caller tune socket options (keepalive, and so
// on). New returns an error for a nil handler or an invalid cfg; it does
// not itself open the listener — that happens in Listen.
func New(updConn func(net.Conn), handler socket.HandlerFunc, cfg config.Server) (ServerTcp, error) {
	if handler == nil {
		return nil, errors.New(ErrInvalidHandler, "")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &server{
		cfg:     cfg,
		handler: handler,
		updConn: updConn,
		done:    make(chan struct{}),
		gone:    1,
		log:     logger.Nop,
		metr:    newMetrics(cfg.Address),
	}

	if cfg.TLS.Enabled {
		tlsCfg, terr := cfg.TLS.Config.TLSConfig()
		if terr != nil {
			return nil, terr
		}
		s.tlsCfg = tlsCfg
	}

	return s, nil
}

type server struct {
	cfg     config.Server
	handler socket.HandlerFunc
	updConn func(net.Conn)
	tlsCfg  *tls.Config

	mu       sync.Mutex
	listener net.Listener
	running  bool
	gone     int32 // atomic bool: 1 once fully torn down (or never started)

	openConns atomic.Int64

	errFn  atomic.Pointer[socket.FuncError]
	infoFn atomic.Pointer[socket.FuncInfo]

	wg       sync.WaitGroup
	done     chan struct{}
	doneOnce sync.Once

	log  logger.Logger
	metr *metrics
}

// RegisterLogger replaces the server's logging facade (logger.Nop by
// default). Not safe to call concurrently with Listen.
func (s *server) RegisterLogger(l logger.Logger) {
	if l == nil {
		l = logger.Nop
	}
	s.log = l
}

func (s *server) RegisterFuncError(f socket.FuncError) { s.errFn.Store(&f) }
func (s *server) RegisterFuncInfo(f socket.FuncInfo)   { s.infoFn.Store(&f) }

func (s *server) reportErr(errs ...error) {
	if p := s.errFn.Load(); p != nil && *p != nil {
		(*p)(errs...)
	}
}

func (s *server) reportInfo(local, remote net.Addr, state socket.ConnState) {
	if p := s.infoFn.Load(); p != nil && *p != nil {
		(*p)(local, remote, state)
	}
}

func (s *server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *server) IsGone() bool {
	return atomic.LoadInt32(&s.gone) == 1
}

func (s *server) OpenConnections() int64 {
	return s.openConns.Load()
}

func (s *server) Done() <-chan struct{} { return s.done }

// Listen opens the listener and accepts connections until ctx is
// cancelled, the listener is closed via StopListen/Close, or Accept fails.
// It always returns nil for an orderly stop; an Accept failure other than
// "listener closed" is returned (and also reported via RegisterFuncError).
func (s *server) Listen(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, s.cfg.Network.String(), s.cfg.Address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.running = true
	s.mu.Unlock()
	atomic.StoreInt32(&s.gone, 0)

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()
	defer close(stop)
	defer s.markStopped()

	for {
		nc, aerr := ln.Accept()
		if aerr != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if stderrors.Is(aerr, net.ErrClosed) || socket.ErrorFilter(aerr) == nil {
				return nil
			}
			s.reportErr(aerr)
			return aerr
		}

		if s.updConn != nil {
			s.updConn(nc)
		}

		s.wg.Add(1)
		s.openConns.Add(1)
		s.metr.acceptedTotal.Inc()
		s.metr.openConnections.Inc()
		go s.serve(ctx, nc)
	}
}

func (s *server) markStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *server) serve(parent context.Context, nc net.Conn) {
	connID := uuid.NewString()
	lg := s.log.WithField("conn_id", connID).WithField("remote", nc.RemoteAddr().String())

	defer func() {
		s.wg.Done()
		s.openConns.Add(-1)
		s.metr.openConnections.Dec()
	}()

	s.reportInfo(nc.LocalAddr(), nc.RemoteAddr(), socket.ConnectionNew)

	c := newConn(nc, parent)
	if s.cfg.ConIdleTimeout.Time() > 0 {
		c.idleTimeout = s.cfg.ConIdleTimeout.Time()
	}
	if s.cfg.ReadBytesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(s.cfg.ReadBytesPerSecond), int(s.cfg.ReadBytesPerSecond))
	}

	if s.tlsCfg != nil {
		s.reportInfo(nc.LocalAddr(), nc.RemoteAddr(), socket.ConnectionDial)
		if err := c.promoteTLS(s.tlsCfg); err != nil {
			s.metr.handshakeFailures.Inc()
			lg.Warnf("tls handshake failed: %v", err)
			s.reportErr(err)
			_ = nc.Close()
			return
		}
		lg = lg.WithField("alpn", c.proto)
	}
	c.arm()

	defer func() {
		s.reportInfo(nc.LocalAddr(), nc.RemoteAddr(), socket.ConnectionCloseRead)
		if cerr := c.Close(); cerr != nil {
			s.reportErr(cerr)
		}
		s.reportInfo(nc.LocalAddr(), nc.RemoteAddr(), socket.ConnectionClose)
	}()

	lg.Debugf("connection established")
	s.reportInfo(nc.LocalAddr(), nc.RemoteAddr(), socket.ConnectionHandler)
	s.handler(c)
}

// Shutdown stops accepting new connections and waits (bounded by ctx) for
// every in-flight handler to return.
func (s *server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.running = false
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		atomic.StoreInt32(&s.gone, 1)
		s.doneOnce.Do(func() { close(s.done) })
		return nil
	case <-ctx.Done():
		return errors.New(ErrShutdownTimeout, "")
	}
}

// StopListen closes the listener without waiting for open connections to
// drain; OpenConnections may remain non-zero after it returns.
func (s *server) StopListen(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.running = false
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	closed := make(chan error, 1)
	go func() { closed <- ln.Close() }()

	select {
	case err := <-closed:
		return err
	case <-ctx.Done():
		return errors.New(ErrShutdownTimeout, "")
	}
}

// Close closes the listener, waits up to five seconds for in-flight
// handlers to return, then marks the server gone and closes Done. It does
// not close open connections itself.
func (s *server) Close() error {
	s.mu.Lock()
	ln := s.listener
	s.running = false
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}

	atomic.StoreInt32(&s.gone, 1)
	s.doneOnce.Do(func() { close(s.done) })
	return nil
}

var _ ServerTcp = (*server)(nil)
