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

package tcp

import "github.com/prometheus/client_golang/prometheus"

// metrics is one server's Prometheus instrumentation, registered against a
// private registry (never the global default) so that standing up several
// servers in the same process — as the test suite does, one per example —
// never collides on a duplicate registration.
type metrics struct {
	registry          *prometheus.Registry
	openConnections   prometheus.Gauge
	acceptedTotal     prometheus.Counter
	handshakeFailures prometheus.Counter
}

func newMetrics(address string) *metrics {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"address": address}

	m := &metrics{
		registry: reg,
		openConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "tlssocket",
			Subsystem:   "tcp",
			Name:        "open_connections",
			Help:        "Number of currently open connections.",
			ConstLabels: labels,
		}),
		acceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "tlssocket",
			Subsystem:   "tcp",
			Name:        "accepted_connections_total",
			Help:        "Total number of accepted connections.",
			ConstLabels: labels,
		}),
		handshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "tlssocket",
			Subsystem:   "tcp",
			Name:        "tls_handshake_failures_total",
			Help:        "Total number of TLS handshakes that did not complete.",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(m.openConnections, m.acceptedTotal, m.handshakeFailures)
	return m
}

// Registry exposes the server's private metric registry so a caller can
// fold it into a process-wide /metrics handler.
func (s *server) Registry() *prometheus.Registry { return s.metr.registry }
