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

// Package tlsdriver drives a TLS engine's handshake, record-decode, and
// shutdown sequences across however many reactor wake-ups they need,
// against the abstract Engine interface rather than crypto/tls directly.
// That separation is what makes the driver's state machine itself unit
// testable: fsm_test.go exercises the transitions with a fake Engine that
// can report "wants read" and partial progress step by step, something the
// real crypto/tls engine (engine.go) cannot do since *tls.Conn.Handshake
// is a single blocking call with no step-wise equivalent.
package tlsdriver

import "github.com/sabouaram/tlssocket/socket/buffer"

// EngineResult is the outcome of one Engine.Accept step.
type EngineResult uint8

const (
	ResultComplete EngineResult = iota
	ResultWantRead
	ResultError
)

// ReadOutcome is the outcome of one Engine.Read call.
type ReadOutcome uint8

const (
	ReadOK ReadOutcome = iota
	ReadWantMore
	ReadClosed
	ReadFailed
)

// ShutdownOutcome is the outcome of one Engine.Shutdown step.
type ShutdownOutcome uint8

const (
	ShutdownWantRead ShutdownOutcome = iota
	ShutdownComplete
	ShutdownError
)

// Engine is the TLS record/handshake engine the drivers in this package
// operate against. An Engine owns its own ciphertext input buffering
// (fed however its implementation chooses); this package never reads
// ciphertext directly.
type Engine interface {
	// Accept drives one step of the server-side handshake.
	Accept() EngineResult

	// Read decrypts into dst, returning the outcome per ReadOutcome.
	Read(dst []byte) (n int, outcome ReadOutcome)

	// Shutdown drives one step of the close_notify exchange.
	Shutdown() ShutdownOutcome

	// HasPendingWrite reports whether the engine produced ciphertext
	// (handshake flight, close_notify, ...) that must be flushed to the
	// peer before the engine can make further progress.
	HasPendingWrite() bool

	// TakePendingWrite returns and clears the pending ciphertext.
	TakePendingWrite() []byte
}

// State is the handshake driver's state, named after the upstream
// contract this was grounded on.
type State uint8

const (
	StateInit State = iota
	StateAccepting
	StateWaitRead
	StateWaitWrite
	StateDoneOK
	StateDoneErr
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAccepting:
		return "accepting"
	case StateWaitRead:
		return "wait_read"
	case StateWaitWrite:
		return "wait_write"
	case StateDoneOK:
		return "done(ok)"
	case StateDoneErr:
		return "done(err)"
	default:
		return "unknown"
	}
}

// HandshakeFSM drives Engine.Accept across however many wake-ups the
// handshake needs. It never performs I/O itself: requestRead and flush
// are supplied by the caller (normally backed by a reactor.Binding) so
// the state machine is exercisable with a fake of either.
type HandshakeFSM struct {
	engine Engine
	state  State

	requestRead func()
	flush       func(data []byte, done func(error))
	plainOut    *buffer.Buffer
	onDone      func(ok bool)
}

// NewHandshakeFSM builds a driver in StateInit. plainOut, if non-nil, is
// drained via DecodeInput before onDone fires, so plaintext produced as a
// side effect of the final handshake step is not lost.
func NewHandshakeFSM(engine Engine, requestRead func(), flush func(data []byte, done func(error)), plainOut *buffer.Buffer, onDone func(ok bool)) *HandshakeFSM {
	return &HandshakeFSM{
		engine:      engine,
		state:       StateInit,
		requestRead: requestRead,
		flush:       flush,
		plainOut:    plainOut,
		onDone:      onDone,
	}
}

// State returns the driver's current state.
func (f *HandshakeFSM) State() State { return f.state }

// Start begins the handshake.
func (f *HandshakeFSM) Start() {
	f.state = StateAccepting
	f.driveAccept()
}

// Feed resumes the driver after new ciphertext became available; it is a
// no-op unless the driver is currently waiting on a read.
func (f *HandshakeFSM) Feed() {
	if f.state == StateWaitRead {
		f.state = StateAccepting
		f.driveAccept()
	}
}

func (f *HandshakeFSM) driveAccept() {
	switch f.engine.Accept() {
	case ResultComplete:
		if f.engine.HasPendingWrite() {
			f.state = StateWaitWrite
			f.flushPending(func(err error) { f.finish(err == nil) })
		} else {
			f.finish(true)
		}
	case ResultWantRead:
		// Tie-break: a pending outbound flush always goes out before
		// reading more input, since the peer may be blocked on it; read
		// interest stays paused for the duration of the flush.
		if f.engine.HasPendingWrite() {
			f.state = StateWaitWrite
			f.flushPending(func(err error) {
				if err != nil {
					f.finish(false)
					return
				}
				f.state = StateAccepting
				f.driveAccept()
			})
		} else {
			f.state = StateWaitRead
			if f.requestRead != nil {
				f.requestRead()
			}
		}
	default:
		f.finish(false)
	}
}

func (f *HandshakeFSM) flushPending(done func(error)) {
	data := f.engine.TakePendingWrite()
	if f.flush != nil {
		f.flush(data, done)
	} else {
		done(nil)
	}
}

// noBacklog is implemented by engines that cannot have plaintext sitting
// decrypted-but-unread after their handshake step completes, because the
// underlying transport's Read blocks for network data rather than
// reporting "nothing buffered right now". TLSConnEngine is one: a
// completed HandshakeContext has consumed exactly the handshake records,
// nothing more. Draining such an engine via DecodeInput would block
// finish() on data the peer may never have sent.
type noBacklog interface {
	NoPendingPlaintext() bool
}

func (f *HandshakeFSM) finish(ok bool) {
	if ok && f.plainOut != nil {
		if nb, isNB := f.engine.(noBacklog); !isNB || !nb.NoPendingPlaintext() {
			DecodeInput(f.engine, f.plainOut)
		}
	}
	if ok {
		f.state = StateDoneOK
	} else {
		f.state = StateDoneErr
	}
	if f.onDone != nil {
		f.onDone(ok)
	}
}

// DecodeInput drains whatever ciphertext the engine already has buffered,
// growing plainOut by however many plaintext bytes that yields, until the
// engine wants more ciphertext, reports close_notify, or fails.
// Returns closed (peer sent close_notify) and failed (decrypt error).
func DecodeInput(engine Engine, plainOut *buffer.Buffer) (closed bool, failed bool) {
	for {
		dst := plainOut.Reserve(4096)
		n, outcome := engine.Read(dst)
		if n > 0 {
			plainOut.Advance(n)
		}
		switch outcome {
		case ReadOK:
			continue
		case ReadWantMore:
			return false, false
		case ReadClosed:
			return true, false
		default:
			return false, true
		}
	}
}

// ShutdownDriver drives Engine.Shutdown across however many wake-ups the
// close_notify exchange needs.
type ShutdownDriver struct {
	engine          Engine
	requestStopRead func()
	flush           func(data []byte, done func(error))
	onDispose       func()
	disposed        bool
}

// NewShutdownDriver builds a shutdown driver. onDispose fires exactly
// once, when the engine has either finished the close_notify exchange or
// failed outright.
func NewShutdownDriver(engine Engine, requestStopRead func(), flush func(data []byte, done func(error)), onDispose func()) *ShutdownDriver {
	return &ShutdownDriver{
		engine:          engine,
		requestStopRead: requestStopRead,
		flush:           flush,
		onDispose:       onDispose,
	}
}

// Start begins (or re-enters, see Feed) the shutdown sequence.
func (d *ShutdownDriver) Start() {
	d.step()
}

// Feed resumes the driver after new ciphertext became available.
func (d *ShutdownDriver) Feed() {
	if !d.disposed {
		d.step()
	}
}

func (d *ShutdownDriver) step() {
	res := d.engine.Shutdown()

	if res == ShutdownError {
		d.dispose()
		return
	}

	if d.engine.HasPendingWrite() {
		if d.requestStopRead != nil {
			d.requestStopRead()
		}
		data := d.engine.TakePendingWrite()
		complete := res == ShutdownComplete
		d.flush(data, func(err error) {
			if err != nil || complete {
				d.dispose()
				return
			}
			d.step()
		})
		return
	}

	if res == ShutdownComplete {
		d.dispose()
	}
	// else: nothing pending to flush, still wants a read; the caller
	// re-enters via Feed once more ciphertext arrives.
}

func (d *ShutdownDriver) dispose() {
	if d.disposed {
		return
	}
	d.disposed = true
	if d.onDispose != nil {
		d.onDispose()
	}
}
