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

// Package errors provides coded errors with stack capture and parent
// chaining, in the spirit of an HTTP-status-like error code space: each
// package in this module owns a hundred-wide range (see modules.go) and
// registers human messages for its codes in an init().
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// CodeError is a numeric error classification, similar in spirit to an
// HTTP status code.
type CodeError uint16

// UnknownError is the fallback code for errors with no registered class.
const UnknownError CodeError = 0

// Message generates the human-readable text for a registered error code.
type Message func(code CodeError) string

var messageRegistry = make(map[CodeError]Message)

// RegisterIdFctMessage registers the message function responsible for the
// 100-wide range starting at minCode. Packages call this from an init().
func RegisterIdFctMessage(minCode CodeError, fct Message) {
	messageRegistry[minCode] = fct
}

// ExistInMapMessage reports whether a message function is already
// registered for the range owning code.
func ExistInMapMessage(code CodeError) bool {
	_, ok := messageRegistry[rangeFloor(code)]
	return ok
}

func rangeFloor(code CodeError) CodeError {
	return (code / 100) * 100
}

func (c CodeError) message() string {
	if fct, ok := messageRegistry[rangeFloor(c)]; ok {
		if m := fct(c); m != "" {
			return m
		}
	}
	return "unknown error"
}

// Error is a coded error with an optional parent chain and a captured
// call site.
type Error interface {
	error

	IsCode(code CodeError) bool
	HasCode(code CodeError) bool
	GetCode() CodeError

	Add(parent ...error)
	GetParent() []error
	Unwrap() []error

	GetFile() string
	GetLine() int
}

type codedError struct {
	code    CodeError
	message string
	file    string
	line    int
	parent  []error
}

func (e *codedError) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.code.message()
}

func (e *codedError) IsCode(code CodeError) bool { return e.code == code }

func (e *codedError) HasCode(code CodeError) bool {
	if e.code == code {
		return true
	}
	for _, p := range e.parent {
		if ce := Get(p); ce != nil && ce.HasCode(code) {
			return true
		}
	}
	return false
}

func (e *codedError) GetCode() CodeError { return e.code }

func (e *codedError) Add(parent ...error) {
	for _, p := range parent {
		if p != nil {
			e.parent = append(e.parent, p)
		}
	}
}

func (e *codedError) GetParent() []error { return e.parent }
func (e *codedError) Unwrap() []error    { return e.parent }
func (e *codedError) GetFile() string    { return e.file }
func (e *codedError) GetLine() int       { return e.line }

// New builds a coded Error, capturing the caller's file/line, with an
// optional set of parent errors.
func New(code CodeError, message string, parent ...error) Error {
	_, file, line, _ := runtime.Caller(1)
	e := &codedError{code: code, message: message, file: file, line: line}
	e.Add(parent...)
	return e
}

// Newf is New with a formatted message.
func Newf(code CodeError, pattern string, args ...any) Error {
	_, file, line, _ := runtime.Caller(1)
	e := &codedError{code: code, message: fmt.Sprintf(pattern, args...), file: file, line: line}
	return e
}

// Is reports whether e can be asserted to Error.
func Is(e error) bool {
	var ce Error
	return errors.As(e, &ce)
}

// Get asserts e to Error, returning nil if it is not one.
func Get(e error) Error {
	var ce Error
	if errors.As(e, &ce) {
		return ce
	}
	return nil
}

// Has reports whether e (or any of its parents) carries code.
func Has(e error, code CodeError) bool {
	if ce := Get(e); ce != nil {
		return ce.HasCode(code)
	}
	return false
}
