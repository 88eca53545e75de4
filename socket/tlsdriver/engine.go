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

package tlsdriver

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
)

// TLSConnEngine adapts *tls.Conn to the Engine interface.
//
// It is a strictly coarser engine than the one HandshakeFSM was designed
// against: crypto/tls has no pluggable "want read" signal and no way to
// step a handshake forward one record at a time, so Accept performs the
// entire handshake in one blocking call and only ever reports
// ResultComplete or ResultError — ResultWantRead, and therefore
// StateWaitRead, is unreachable through this adapter. The fake Engine in
// fsm_test.go is what actually exercises the wait_read/wait_write legs of
// the state machine; this adapter exists to run that same state machine
// against a real connection once the network no longer has to cooperate
// step by step. Likewise HasPendingWrite/TakePendingWrite always report
// nothing pending: crypto/tls flushes handshake flights internally over
// the net.Conn it was constructed with, rather than handing ciphertext
// back to the caller to flush.
type TLSConnEngine struct {
	conn *tls.Conn
	ctx  context.Context

	lastErr error
}

// NewTLSConnEngine wraps conn. ctx bounds the handshake and shutdown
// calls; a nil ctx is treated as context.Background().
func NewTLSConnEngine(conn *tls.Conn, ctx context.Context) *TLSConnEngine {
	if ctx == nil {
		ctx = context.Background()
	}
	return &TLSConnEngine{conn: conn, ctx: ctx}
}

// Accept runs the full server handshake synchronously.
func (e *TLSConnEngine) Accept() EngineResult {
	if err := e.conn.HandshakeContext(e.ctx); err != nil {
		e.lastErr = err
		return ResultError
	}
	return ResultComplete
}

// Read decrypts application data.
func (e *TLSConnEngine) Read(dst []byte) (int, ReadOutcome) {
	n, err := e.conn.Read(dst)
	switch {
	case err == nil:
		return n, ReadOK
	case errors.Is(err, io.EOF):
		return n, ReadClosed
	default:
		e.lastErr = err
		return n, ReadFailed
	}
}

// Shutdown sends close_notify and closes the underlying connection in one
// blocking (*tls.Conn).Close() call; it does not wait for the peer's
// close_notify. Because there is no incremental want-read/want-write step,
// a successful Close is reported as the canonical ShutdownComplete, never
// ShutdownWantRead.
func (e *TLSConnEngine) Shutdown() ShutdownOutcome {
	if err := e.conn.Close(); err != nil {
		e.lastErr = err
		return ShutdownError
	}
	return ShutdownComplete
}

// LastError returns the error behind the most recent ResultError,
// ReadFailed, or ShutdownError outcome, or nil if none of those has
// occurred yet. EngineResult/ReadOutcome/ShutdownOutcome only classify
// what happened; callers that need to log or wrap the underlying error
// read it from here.
func (e *TLSConnEngine) LastError() error { return e.lastErr }

// HasPendingWrite always reports false: see the type doc comment.
func (e *TLSConnEngine) HasPendingWrite() bool { return false }

// TakePendingWrite always returns nil: see the type doc comment.
func (e *TLSConnEngine) TakePendingWrite() []byte { return nil }

// NoPendingPlaintext reports true: a completed HandshakeContext call has
// consumed exactly the handshake records from the connection, so there is
// never decrypted application data sitting buffered for HandshakeFSM to
// drain. See the noBacklog interface in fsm.go.
func (e *TLSConnEngine) NoPendingPlaintext() bool { return true }

// NegotiatedProtocol returns the ALPN protocol the handshake settled on,
// or "" if none was negotiated. Only meaningful after Accept returns
// ResultComplete.
func (e *TLSConnEngine) NegotiatedProtocol() string {
	return e.conn.ConnectionState().NegotiatedProtocol
}

var _ Engine = (*TLSConnEngine)(nil)
