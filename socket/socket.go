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

// Package socket defines the protocol-independent surface shared by every
// transport-specific server and client implementation: the per-connection
// Context handed to handlers, the connection lifecycle states reported to
// monitoring callbacks, and the handful of constants and helpers every
// transport package builds on.
package socket

import (
	"context"
	"net"
)

// DefaultBufferSize is the default size of the read buffer a connection
// allocates when none is configured.
const DefaultBufferSize = 32 * 1024

// EOL is the line terminator used by line-oriented protocol helpers.
const EOL = '\n'

// Context is handed to a HandlerFunc for the lifetime of one connection.
// It composes context.Context so handlers can honor cancellation the same
// way they would for any other request-scoped context, plus net.Conn-like
// host accessors and the Read/Write pair a handler actually drives.
type Context interface {
	context.Context

	IsConnected() bool
	LocalHost() string
	RemoteHost() string

	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
}

// HandlerFunc processes one connection. Implementations that need to keep
// state across connections close over it or bind a method value; there is
// no separate stateful Handler type.
type HandlerFunc func(ctx Context)

// FuncError receives errors observed by a server or client outside the
// request path (accept failures, write failures on a connection whose
// handler has already returned, and the like).
type FuncError func(errs ...error)

// FuncInfo is notified of every connection lifecycle transition.
type FuncInfo func(local, remote net.Addr, state ConnState)

// ConnState enumerates the connection lifecycle, in the order a single
// request/response connection normally passes through it.
type ConnState uint8

const (
	ConnectionDial ConnState = iota
	ConnectionNew
	ConnectionRead
	ConnectionCloseRead
	ConnectionHandler
	ConnectionWrite
	ConnectionCloseWrite
	ConnectionClose
)

// String implements fmt.Stringer.
func (s ConnState) String() string {
	switch s {
	case ConnectionDial:
		return "Dial Connection"
	case ConnectionNew:
		return "New Connection"
	case ConnectionRead:
		return "Read Incoming Stream"
	case ConnectionCloseRead:
		return "Close Incoming Stream"
	case ConnectionHandler:
		return "Run HandlerFunc"
	case ConnectionWrite:
		return "Write Outgoing Steam"
	case ConnectionCloseWrite:
		return "Close Outgoing Stream"
	case ConnectionClose:
		return "Close Connection"
	default:
		return "unknown connection state"
	}
}

// ErrorFilter drops the one error message net.Conn produces on every
// routine shutdown race (a read or write losing to a concurrent Close) so
// callers can log everything ErrorFilter lets through as unexpected. Only
// an exact match is filtered: an error that merely mentions the phrase in
// a larger message (e.g. wrapped or prefixed by net.OpError.Error) is
// passed through unchanged, since that context is itself informative.
func ErrorFilter(err error) error {
	if err == nil {
		return nil
	}
	if err.Error() == "use of closed network connection" {
		return nil
	}
	return err
}

// Server is the lifecycle contract implemented by every protocol-specific
// server (socket/server/tcp, and any future transport).
type Server interface {
	RegisterFuncError(f FuncError)
	RegisterFuncInfo(f FuncInfo)

	Listen(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Client is the lifecycle contract implemented by every protocol-specific
// client.
type Client interface {
	RegisterFuncError(f FuncError)

	Connect(ctx context.Context) error
	Close() error

	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
}
