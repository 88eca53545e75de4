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

// Command tlssocketd runs a standalone TLS-terminating echo listener. It
// logs what SelectedProtocol reports once ALPN has negotiated; every
// connection gets the same echo handler whatever the protocol.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sabouaram/tlssocket/certificates"
	"github.com/sabouaram/tlssocket/duration"
	"github.com/sabouaram/tlssocket/logger"
	"github.com/sabouaram/tlssocket/socket"
	"github.com/sabouaram/tlssocket/socket/config"
	"github.com/sabouaram/tlssocket/socket/server/tcp"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tlssocketd",
		Short: "TLS-terminating TCP listener with ALPN negotiation",
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the listener",
		RunE:  runServe,
	}

	flags := cmd.Flags()
	flags.String("address", "0.0.0.0:8443", "address to listen on")
	flags.Bool("tls", false, "terminate TLS on accepted connections")
	flags.String("cert-file", "", "PEM certificate file (required with --tls)")
	flags.String("key-file", "", "PEM private key file (required with --tls)")
	flags.StringSlice("alpn", []string{"h2", "http/1.1"}, "ALPN protocol preference, most preferred first")
	flags.String("metrics-address", "", "address to serve Prometheus metrics on; empty disables it")
	flags.String("log-level", "info", "debug, info, warn, or error")
	flags.Duration("idle-timeout", 0, "close a connection idle this long; 0 disables")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logger.New(viper.GetString("log-level"))

	cfg := config.Server{
		Network:        config.NetworkTCP,
		Address:        viper.GetString("address"),
		ConIdleTimeout: duration.Duration(viper.GetDuration("idle-timeout")),
	}

	if viper.GetBool("tls") {
		certPEM, err := os.ReadFile(viper.GetString("cert-file"))
		if err != nil {
			return fmt.Errorf("reading cert-file: %w", err)
		}
		keyPEM, err := os.ReadFile(viper.GetString("key-file"))
		if err != nil {
			return fmt.Errorf("reading key-file: %w", err)
		}
		crt, cerr := certificates.ParsePair(string(certPEM), string(keyPEM))
		if cerr != nil {
			return cerr
		}

		var protocols [][]byte
		for _, p := range viper.GetStringSlice("alpn") {
			protocols = append(protocols, []byte(p))
		}

		cfg.TLS = config.TLS{
			Enabled: true,
			Config: certificates.Config{
				Certs:     []tls.Certificate{crt},
				Protocols: protocols,
			},
		}
	}

	srv, err := tcp.New(tuneKeepalive, echoProxyHandler(log), cfg)
	if err != nil {
		return err
	}
	srv.RegisterLogger(log)
	srv.RegisterFuncError(func(errs ...error) {
		for _, e := range errs {
			if e != nil {
				log.Errorf("server error: %v", e)
			}
		}
	})
	srv.RegisterFuncInfo(func(local, remote net.Addr, state socket.ConnState) {
		log.Debugf("%s -> %s: %s", remote, local, state)
	})

	if addr := viper.GetString("metrics-address"); addr != "" {
		go serveMetrics(addr, srv, log)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func tuneKeepalive(nc net.Conn) {
	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(30 * time.Second)
	}
}

// echoProxyHandler logs the negotiated ALPN protocol, if any, and echoes
// everything it reads back to the peer. It does not dispatch on the
// protocol and speaks neither HTTP version; echoing is enough to prove
// the listener's TLS/ALPN behavior end to end.
func echoProxyHandler(log logger.Logger) socket.HandlerFunc {
	return func(c socket.Context) {
		defer func() { _ = c.Close() }()

		if sp, ok := c.(interface{ SelectedProtocol() string }); ok {
			if proto := sp.SelectedProtocol(); proto != "" {
				log.Debugf("connection from %s negotiated %s", c.RemoteHost(), proto)
			}
		}

		buf := make([]byte, socket.DefaultBufferSize)
		for {
			n, err := c.Read(buf)
			if n > 0 {
				if _, werr := c.Write(buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}
}

func serveMetrics(addr string, srv tcp.ServerTcp, log logger.Logger) {
	reg, ok := srv.(interface{ Registry() *prometheus.Registry })
	if !ok {
		log.Warnf("metrics requested but server exposes no registry")
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.Registry(), promhttp.HandlerOpts{}))
	log.Infof("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("metrics server: %v", err)
	}
}
