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

package socket_test

import (
	"fmt"
	"testing"

	"github.com/sabouaram/tlssocket/socket"
)

func TestErrorFilter(t *testing.T) {
	tests := []struct {
		nam string
		err error
		exp error
	}{
		{nam: "nil error", err: nil, exp: nil},
		{nam: "closed connection error (exact)", err: fmt.Errorf("use of closed network connection"), exp: nil},
		{nam: "closed connection error with context", err: fmt.Errorf("read tcp: use of closed network connection"), exp: fmt.Errorf("read tcp: use of closed network connection")},
		{nam: "normal error", err: fmt.Errorf("connection timeout"), exp: fmt.Errorf("connection timeout")},
	}

	for _, tc := range tests {
		t.Run(tc.nam, func(t *testing.T) {
			res := socket.ErrorFilter(tc.err)
			if tc.exp == nil {
				if res != nil {
					t.Errorf("expected nil, got %v", res)
				}
				return
			}
			if res == nil || res.Error() != tc.exp.Error() {
				t.Errorf("expected %v, got %v", tc.exp, res)
			}
		})
	}
}

func TestConnStateString(t *testing.T) {
	tests := []struct {
		sta socket.ConnState
		exp string
	}{
		{socket.ConnectionDial, "Dial Connection"},
		{socket.ConnectionNew, "New Connection"},
		{socket.ConnectionRead, "Read Incoming Stream"},
		{socket.ConnectionCloseRead, "Close Incoming Stream"},
		{socket.ConnectionHandler, "Run HandlerFunc"},
		{socket.ConnectionWrite, "Write Outgoing Steam"},
		{socket.ConnectionCloseWrite, "Close Outgoing Stream"},
		{socket.ConnectionClose, "Close Connection"},
		{socket.ConnState(255), "unknown connection state"},
	}

	for _, tc := range tests {
		t.Run(tc.exp, func(t *testing.T) {
			if got := tc.sta.String(); got != tc.exp {
				t.Errorf("ConnState(%d).String() = %q, want %q", tc.sta, got, tc.exp)
			}
		})
	}
}

func TestConnStateValues(t *testing.T) {
	want := []socket.ConnState{0, 1, 2, 3, 4, 5, 6, 7}
	got := []socket.ConnState{
		socket.ConnectionDial, socket.ConnectionNew, socket.ConnectionRead,
		socket.ConnectionCloseRead, socket.ConnectionHandler, socket.ConnectionWrite,
		socket.ConnectionCloseWrite, socket.ConnectionClose,
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("state %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDefaultBufferSize(t *testing.T) {
	if socket.DefaultBufferSize != 32*1024 {
		t.Errorf("DefaultBufferSize = %d, want %d", socket.DefaultBufferSize, 32*1024)
	}
}

func TestEOL(t *testing.T) {
	if socket.EOL != '\n' {
		t.Errorf("EOL = %q, want newline", socket.EOL)
	}
}
