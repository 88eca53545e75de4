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

// Package config holds the declarative shape server.tcp.New and its
// future sibling transports are configured with.
package config

import (
	"github.com/sabouaram/tlssocket/certificates"
	"github.com/sabouaram/tlssocket/duration"
	"github.com/sabouaram/tlssocket/errors"
)

// Network names a transport. Only NetworkTCP can carry TLS termination:
// this module's subject is a TLS-terminating socket, which never applies
// to datagram or local-socket transports (see SPEC_FULL.md Non-goals).
type Network uint8

const (
	NetworkTCP Network = iota
	NetworkUDP
	NetworkUnix
)

func (n Network) String() string {
	switch n {
	case NetworkTCP:
		return "tcp"
	case NetworkUDP:
		return "udp"
	case NetworkUnix:
		return "unix"
	default:
		return "unknown"
	}
}

// TLS is a server's TLS termination policy.
type TLS struct {
	Enabled bool
	Config  certificates.Config
}

// Server configures a socket/server/tcp listener.
type Server struct {
	Network Network
	Address string
	TLS     TLS

	// ConIdleTimeout closes a connection that has been idle (no read and
	// no write progress) for longer than this. Zero disables the timeout.
	ConIdleTimeout duration.Duration

	// ReadBytesPerSecond caps each connection's read rate via a token
	// bucket; zero disables limiting.
	ReadBytesPerSecond float64
}

// Validate reports the first configuration error found, or nil.
func (s Server) Validate() errors.Error {
	if s.Address == "" {
		return errors.New(ErrInvalidAddress, "")
	}
	if s.TLS.Enabled && s.Network != NetworkTCP {
		return errors.New(ErrInvalidNetwork, "")
	}
	if s.TLS.Enabled && len(s.TLS.Config.Certs) == 0 {
		return errors.New(ErrInvalidTLSConfig, "")
	}
	return nil
}
