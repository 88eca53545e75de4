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

package socket

import "github.com/sabouaram/tlssocket/errors"

// The six failure kinds a transport-independent caller needs to tell
// apart: a plain transport error gives no information about which layer
// failed, but a handler deciding whether to retry, log, or just hang up
// cares whether the wire was merely reset or the TLS record layer itself
// rejected what it received.
const (
	ErrTransportReadFailed errors.CodeError = iota + errors.MinPkgSocket
	ErrTransportWriteFailed
	ErrTLSHandshakeFailed
	ErrTLSDecryptFailed
	ErrTLSShutdownFailed
	ErrBadALPNOfferList
)

func init() {
	errors.RegisterIdFctMessage(errors.MinPkgSocket, getMessage)
}

func getMessage(code errors.CodeError) string {
	switch code {
	case ErrTransportReadFailed:
		return "transport read failed"
	case ErrTransportWriteFailed:
		return "transport write failed"
	case ErrTLSHandshakeFailed:
		return "TLS handshake failed"
	case ErrTLSDecryptFailed:
		return "TLS record decrypt failed"
	case ErrTLSShutdownFailed:
		return "TLS shutdown (close_notify) failed"
	case ErrBadALPNOfferList:
		return "client offered a malformed ALPN protocol list"
	default:
		return ""
	}
}
