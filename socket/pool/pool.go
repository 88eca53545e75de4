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

// Package pool is a scoped bump allocator: allocate-and-never-free
// individually, release everything in bulk with Clear. Its lifetime is
// bound to one write operation — the Socket Façade allocates from it to
// copy caller-owned write buffers so they survive until the deferred
// write callback fires, and clears it when that callback runs.
package pool

const chunkSize = 16 * 1024

// Pool is not safe for concurrent use; each socket owns its own, and a
// socket has at most one write in flight (see socket.Context.Write).
type Pool struct {
	chunks [][]byte // not populated by Alloc; Clear resets it along with cur
	cur    []byte   // current chunk, sliced down as it is consumed
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{}
}

// Alloc returns n writable bytes, stable until the next Clear.
func (p *Pool) Alloc(n int) []byte {
	if n > len(p.cur) {
		size := chunkSize
		if n > size {
			size = n
		}
		p.cur = make([]byte, size)
	}
	out := p.cur[:n:n]
	p.cur = p.cur[n:]
	return out
}

// Clear releases everything allocated so far. The Pool is reusable.
func (p *Pool) Clear() {
	p.chunks = nil
	p.cur = nil
}
