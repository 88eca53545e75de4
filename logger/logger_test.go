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

package logger_test

import (
	"testing"

	"github.com/sabouaram/tlssocket/logger"
)

func TestNewDefaultsToInfoOnBadLevel(t *testing.T) {
	// Just exercises that an unparsable level name doesn't panic and still
	// returns a usable Logger.
	l := logger.New("not-a-level")
	if l == nil {
		t.Fatalf("New returned nil")
	}
	l.Infof("hello %s", "world")
}

func TestWithFieldReturnsDistinctLogger(t *testing.T) {
	base := logger.New("debug")
	child := base.WithField("conn_id", "abc123")
	if child == nil {
		t.Fatalf("WithField returned nil")
	}
	if child == base {
		t.Fatalf("WithField returned the receiver, want a distinct Logger")
	}
	child.Debugf("scoped message")
}

func TestNopDiscardsEverything(t *testing.T) {
	// Nop must never panic, and WithField on it must still return a
	// working (if silent) Logger.
	logger.Nop.Debugf("x")
	logger.Nop.Infof("x")
	logger.Nop.Warnf("x")
	logger.Nop.Errorf("x")
	logger.Nop.WithField("k", "v").Infof("y")
}
