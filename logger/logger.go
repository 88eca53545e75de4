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

// Package logger is a thin logrus-backed facade used for connection
// lifecycle and TLS failure logging. It never participates in control
// flow: every socket error is reported to the caller through a callback
// first, logging is always a side effect of that.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the facade the rest of this module logs through.
type Logger interface {
	WithField(key string, value any) Logger
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type entry struct {
	e *logrus.Entry
}

// New builds a Logger writing JSON lines to stderr at the given level
// name ("debug", "info", "warn", "error"; defaults to "info").
func New(level string) Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return &entry{e: logrus.NewEntry(l)}
}

func (l *entry) WithField(key string, value any) Logger {
	return &entry{e: l.e.WithField(key, value)}
}

func (l *entry) Debugf(format string, args ...any) { l.e.Debugf(format, args...) }
func (l *entry) Infof(format string, args ...any)  { l.e.Infof(format, args...) }
func (l *entry) Warnf(format string, args ...any)  { l.e.Warnf(format, args...) }
func (l *entry) Errorf(format string, args ...any) { l.e.Errorf(format, args...) }

// Nop is a Logger that discards everything, used as the default when a
// caller does not configure one.
var Nop Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) WithField(string, any) Logger  { return Nop }
func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
