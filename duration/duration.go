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

// Package duration wraps time.Duration with a days-aware string form and
// JSON (de)serialization, trimmed from a larger days/PID/viper-aware
// package to just what socket/config needs for idle timeouts.
package duration

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Duration is a time.Duration with a "NdNhNmNs" string form.
type Duration time.Duration

// Seconds builds a Duration from a count of seconds.
func Seconds(n int64) Duration {
	return Duration(time.Duration(n) * time.Second)
}

// Time returns the underlying time.Duration.
func (d Duration) Time() time.Duration {
	return time.Duration(d)
}

// Days returns the whole number of 24h days in d.
func (d Duration) Days() int64 {
	return int64(time.Duration(d) / (24 * time.Hour))
}

// String renders d as "NdNhNmNs", omitting zero-valued leading units.
func (d Duration) String() string {
	n := d.Days()
	rem := d.Time()
	var b strings.Builder
	if n > 0 {
		rem -= time.Duration(n) * 24 * time.Hour
		fmt.Fprintf(&b, "%dd", n)
	}
	if rem != 0 || b.Len() == 0 {
		b.WriteString(rem.String())
	}
	return b.String()
}

// Parse accepts a time.ParseDuration string, optionally prefixed by a
// "Nd" day count (e.g. "5d23h15m13s").
func Parse(s string) (Duration, error) {
	s = strings.Trim(s, `"'`)
	if idx := strings.IndexByte(s, 'd'); idx > 0 {
		if _, err := fmt.Sscanf(s[:idx], "%d", new(int64)); err == nil {
			var days int64
			fmt.Sscanf(s[:idx], "%d", &days)
			rest := s[idx+1:]
			var tail time.Duration
			if rest != "" {
				d, err := time.ParseDuration(rest)
				if err != nil {
					return 0, err
				}
				tail = d
			}
			return Duration(time.Duration(days)*24*time.Hour + tail), nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return Duration(d), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
