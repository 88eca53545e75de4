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

package tcp

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sabouaram/tlssocket/errors"
	"github.com/sabouaram/tlssocket/socket"
	"github.com/sabouaram/tlssocket/socket/buffer"
	"github.com/sabouaram/tlssocket/socket/pool"
	"github.com/sabouaram/tlssocket/socket/reactor"
	"github.com/sabouaram/tlssocket/socket/tlsdriver"
)

var _ socket.Context = (*conn)(nil)

// conn adapts one accepted connection to socket.Context. Reading bridges
// reactor.Binding's push-style ReadStart callback into the blocking pull
// a handler expects: the reactor's dedicated read-pump goroutine fills
// buf and signals readReady, while Read drains buf under its own lock.
// Writing goes straight through reactor.Binding.Write and blocks the
// caller on that write's completion, enforcing the at-most-one-write
// invariant by panicking on reentrant use. Since the reactor's write goroutine
// keeps reading off the slice it was handed until the write finishes, and
// Write can return to the caller early on context cancellation while that
// goroutine is still in flight, the caller's buffer is first copied into
// wpool — scoped to exactly one write, cleared once that write settles —
// so a caller reusing its buffer afterward never races the reactor.
//
// bind is created lazily, over whichever net.Conn ends up being the top
// of the stack (the raw connection, or the *tls.Conn a successful
// promoteTLS produces) — never one per layer, since reactor.Binding's
// Dispose closes the net.Conn it was built on and the raw connection and
// its TLS wrapper are the same underlying socket.
type conn struct {
	raw net.Conn
	cur net.Conn
	bind reactor.Binding

	ctx    context.Context
	cancel context.CancelFunc

	local, remote net.Addr

	mu        sync.Mutex
	buf       *buffer.Buffer
	readErr   error
	readArmed bool
	readReady chan struct{}

	writeMu       sync.Mutex
	writeInFlight bool
	wpool         *pool.Pool

	proto  string
	didTLS bool

	idleTimeout time.Duration
	idleTimer   *time.Timer
	limiter     *rate.Limiter
}

func newConn(nc net.Conn, parent context.Context) *conn {
	ctx, cancel := context.WithCancel(parent)
	return &conn{
		raw:       nc,
		cur:       nc,
		ctx:       ctx,
		cancel:    cancel,
		local:     nc.LocalAddr(),
		remote:    nc.RemoteAddr(),
		buf:       buffer.New(),
		readReady: make(chan struct{}, 1),
		wpool:     pool.New(),
	}
}

// arm finalizes which net.Conn the reactor binding reads/writes against.
// Call once, after any TLS promotion, before handing the conn to a
// handler.
func (c *conn) arm() {
	c.bind = reactor.NewConn(c.cur)
	if c.idleTimeout > 0 {
		c.idleTimer = time.AfterFunc(c.idleTimeout, func() {
			c.cancel()
			_ = c.cur.Close()
		})
	}
}

func (c *conn) touchIdleTimer() {
	if c.idleTimer != nil {
		c.idleTimer.Reset(c.idleTimeout)
	}
}

// Deadline, Done, Err, Value implement context.Context.
func (c *conn) Deadline() (time.Time, bool) { return c.ctx.Deadline() }
func (c *conn) Done() <-chan struct{}       { return c.ctx.Done() }
func (c *conn) Err() error                  { return c.ctx.Err() }
func (c *conn) Value(key any) any           { return c.ctx.Value(key) }

func (c *conn) IsConnected() bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr == nil
}

func (c *conn) LocalHost() string  { return c.local.String() }
func (c *conn) RemoteHost() string { return c.remote.String() }

// SelectedProtocol returns the ALPN protocol this connection's TLS
// handshake negotiated, or "" for a plaintext connection or one that
// negotiated none.
func (c *conn) SelectedProtocol() string { return c.proto }

// IsTLS reports whether this connection was promoted to TLS.
func (c *conn) IsTLS() bool { return c.didTLS }

func (c *conn) ensureArmedLocked() {
	if c.readArmed {
		return
	}
	c.readArmed = true
	c.bind.ReadStart(c.buf, c.onRead)
}

func (c *conn) onRead(res reactor.ReadResult) {
	c.touchIdleTimer()
	c.mu.Lock()
	switch {
	case res.Err == nil:
	case stderrors.Is(res.Err, io.EOF):
		// a clean close (plaintext FIN, or a TLS close_notify that
		// crypto/tls surfaces as io.EOF) is a lifecycle signal, not a
		// transport or decrypt failure — pass it through unclassified.
		c.readErr = res.Err
	default:
		code := socket.ErrTransportReadFailed
		if c.didTLS {
			code = socket.ErrTLSDecryptFailed
		}
		c.readErr = errors.New(code, res.Err.Error(), res.Err)
	}
	c.mu.Unlock()
	select {
	case c.readReady <- struct{}{}:
	default:
	}
}

func (c *conn) Read(p []byte) (int, error) {
	for {
		c.mu.Lock()
		if c.buf.Len() > 0 {
			n := copy(p, c.buf.Bytes())
			c.buf.Consume(n)
			c.mu.Unlock()
			if c.limiter != nil {
				_ = c.limiter.WaitN(c.ctx, n)
			}
			return n, nil
		}
		if c.readErr != nil {
			err := c.readErr
			c.mu.Unlock()
			return 0, err
		}
		c.ensureArmedLocked()
		c.mu.Unlock()

		select {
		case <-c.readReady:
		case <-c.ctx.Done():
			return 0, c.ctx.Err()
		}
	}
}

func (c *conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	if c.writeInFlight {
		c.writeMu.Unlock()
		panic("tcp: Write called while a previous Write has not completed")
	}
	c.writeInFlight = true
	buf := c.wpool.Alloc(len(p))
	copy(buf, p)
	c.writeMu.Unlock()

	done := make(chan error, 1)
	c.bind.Write([][]byte{buf}, func(err error) { done <- err })

	var err error
	select {
	case err = <-done:
	case <-c.ctx.Done():
		err = c.ctx.Err()
	}

	c.writeMu.Lock()
	c.wpool.Clear()
	c.writeInFlight = false
	c.writeMu.Unlock()

	if err != nil {
		return 0, errors.New(socket.ErrTransportWriteFailed, err.Error(), err)
	}
	c.touchIdleTimer()
	return len(p), nil
}

func (c *conn) Close() error {
	c.cancel()
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	c.mu.Lock()
	c.readArmed = false
	c.mu.Unlock()

	var shutdownErr error
	if c.didTLS {
		shutdownErr = c.shutdownTLS()
	}

	if c.bind != nil {
		c.bind.ReadStop()
		c.bind.Dispose()
		return shutdownErr
	}
	if cerr := c.cur.Close(); cerr != nil && shutdownErr == nil {
		shutdownErr = cerr
	}
	return shutdownErr
}

// shutdownTLS drives the close_notify exchange documented for the TLS
// teardown path before the underlying connection is handed to bind for
// disposal. TLSConnEngine.Shutdown wraps a single blocking
// (*tls.Conn).Close() call and never reports a pending write, so — unlike
// the wait_read/wait_write legs fsm_test.go exercises against a fake
// engine — ShutdownDriver always resolves in one step here; it still owns
// the decision of when disposal is safe, and a failed close_notify
// exchange is reported as ErrTLSShutdownFailed instead of being silently
// swallowed by bind.Dispose's own best-effort net.Conn.Close.
func (c *conn) shutdownTLS() error {
	tc, ok := c.cur.(*tls.Conn)
	if !ok {
		return nil
	}

	engine := tlsdriver.NewTLSConnEngine(tc, c.ctx)
	var shutdownErr error
	driver := tlsdriver.NewShutdownDriver(engine, nil, nil, func() {
		if err := engine.LastError(); err != nil {
			shutdownErr = errors.New(socket.ErrTLSShutdownFailed, err.Error(), err)
		}
	})
	driver.Start()
	return shutdownErr
}

// promoteTLS drives the server-side handshake directly over the raw
// connection (crypto/tls performs its own Read/Write against it; no
// reactor.Binding exists yet at this point) and, on success, makes the
// resulting *tls.Conn the connection's top of stack.
func (c *conn) promoteTLS(cfg *tls.Config) error {
	tc := tls.Server(c.raw, cfg)
	engine := tlsdriver.NewTLSConnEngine(tc, c.ctx)

	result := make(chan bool, 1)
	fsm := tlsdriver.NewHandshakeFSM(engine, nil, nil, nil, func(ok bool) { result <- ok })
	fsm.Start()

	if !<-result {
		cause := engine.LastError()
		if cause == nil {
			cause = fmt.Errorf("tcp: TLS handshake failed for %s", c.remote)
		}
		return errors.New(socket.ErrTLSHandshakeFailed, fmt.Sprintf("tcp: TLS handshake failed for %s: %v", c.remote, cause), cause)
	}

	c.cur = tc
	c.proto = engine.NegotiatedProtocol()
	c.didTLS = true
	return nil
}
