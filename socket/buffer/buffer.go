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

// Package buffer is a growable byte buffer with consume-from-front,
// append-at-back semantics: reserve writable space at the tail, advance
// the size once it has been filled, consume from the front once it has
// been delivered. Used for the plaintext read-side buffer; encrypted bytes
// are buffered inside crypto/tls itself, not here.
package buffer

// Buffer is not safe for concurrent use; each socket owns its own.
type Buffer struct {
	data []byte
	off  int // consumed prefix
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Len returns the number of unconsumed bytes.
func (b *Buffer) Len() int {
	return len(b.data) - b.off
}

// Bytes returns the unconsumed region. The slice is invalidated by the
// next Reserve that reallocates, and by Consume/Dispose.
func (b *Buffer) Bytes() []byte {
	return b.data[b.off:]
}

// Reserve returns at least min bytes of writable space at the tail,
// growing geometrically if necessary. The caller fills some prefix n <=
// len(result) and must call Advance(n).
func (b *Buffer) Reserve(min int) []byte {
	b.compact()

	if avail := cap(b.data) - len(b.data); avail >= min {
		return b.data[len(b.data):cap(b.data)]
	}

	need := len(b.data) + min
	newCap := cap(b.data)
	if newCap == 0 {
		newCap = 64
	}
	for newCap < need {
		newCap *= 2
	}
	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
	return b.data[len(b.data):cap(b.data)]
}

// Advance records that n bytes of a prior Reserve were filled.
func (b *Buffer) Advance(n int) {
	b.data = b.data[:len(b.data)+n]
}

// Consume removes n bytes from the front. n must be <= Len().
func (b *Buffer) Consume(n int) {
	if n > b.Len() {
		panic("buffer: consume past size")
	}
	b.off += n
	if b.off == len(b.data) {
		b.data = b.data[:0]
		b.off = 0
	}
}

// compact reclaims the consumed prefix once it grows past half the
// backing array, keeping amortized-O(1) Reserve without holding onto
// unbounded memory across a long consume-heavy lifetime.
func (b *Buffer) compact() {
	if b.off == 0 {
		return
	}
	if b.off == len(b.data) {
		b.data = b.data[:0]
		b.off = 0
		return
	}
	if b.off*2 >= cap(b.data) {
		n := copy(b.data, b.data[b.off:])
		b.data = b.data[:n]
		b.off = 0
	}
}

// Dispose releases the backing store; the Buffer is empty afterwards and
// may be reused.
func (b *Buffer) Dispose() {
	b.data = nil
	b.off = 0
}
