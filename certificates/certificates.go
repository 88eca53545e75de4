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

// Package certificates builds a *tls.Config from PEM certificate/key
// material and a cipher/curve/version policy, the way every server.tcp
// test in this corpus's teacher expects to configure TLS. It is a small
// fraction of the upstream package it was trimmed from: loading from
// files, CA root management, client-cert auth helpers, and the
// config_old.go backward-compatibility layer are all dropped (see
// DESIGN.md) since nothing in this module's scope needs them — only the
// pair-from-string path server.tcp.New actually exercises survives.
package certificates

import (
	"crypto/tls"
	"crypto/x509"
	"strings"

	"github.com/sabouaram/tlssocket/errors"
	"github.com/sabouaram/tlssocket/socket"
	"github.com/sabouaram/tlssocket/socket/alpn"
)

// Config is the policy a server.tcp listener turns into a *tls.Config.
type Config struct {
	Certs      []tls.Certificate
	CipherList []uint16
	CurveList  []tls.CurveID
	VersionMin uint16
	VersionMax uint16
	ClientAuth tls.ClientAuthType
	RootCA     *x509.CertPool

	// Protocols is the server's ordered ALPN/NPN preference list, e.g.
	// [][]byte{[]byte("h2"), []byte("http/1.1")}.
	Protocols [][]byte
}

// ParsePair parses a PEM certificate and private key pair.
func ParsePair(certPEM, keyPEM string) (tls.Certificate, errors.Error) {
	certPEM = cleanPem(certPEM)
	keyPEM = cleanPem(keyPEM)

	if certPEM == "" || keyPEM == "" {
		return tls.Certificate{}, errors.New(ErrorParamsEmpty, "")
	}

	crt, err := tls.X509KeyPair([]byte(certPEM), []byte(keyPEM))
	if err != nil {
		return tls.Certificate{}, errors.New(ErrorCertKeyPairParse, "", err)
	}
	return crt, nil
}

func cleanPem(s string) string {
	return strings.TrimSpace(s)
}

// TLSConfig builds a *tls.Config. When Protocols is non-empty, ALPN
// negotiation is routed through GetConfigForClient into
// socket/alpn.Negotiate instead of relying on crypto/tls's own
// NextProtos-intersection: the client's SupportedProtos are re-encoded to
// the RFC 7301 wire form and run through the identical, independently
// tested negotiation rule that governs socket/alpn/alpn_test.go, then pinned
// as the sole entry of the per-connection NextProtos so crypto/tls's own
// (trivially single-candidate) negotiation can only agree with it. When
// nothing matches, the per-connection NextProtos is left empty and the
// handshake proceeds without ALPN.
func (c Config) TLSConfig() (*tls.Config, errors.Error) {
	if len(c.Certs) == 0 {
		return nil, errors.New(ErrorNoCertificate, "")
	}

	base := &tls.Config{
		Certificates:     c.Certs,
		CipherSuites:     c.CipherList,
		CurvePreferences: c.CurveList,
		ClientAuth:       c.ClientAuth,
		ClientCAs:        c.RootCA,
		MinVersion:       c.VersionMin,
		MaxVersion:       c.VersionMax,
		NextProtos:       decodeProtoStrings(c.Protocols),
	}

	if len(c.Protocols) == 0 {
		return base, nil
	}

	base.GetConfigForClient = func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
		offered := encodeProtoStrings(hello.SupportedProtos)
		for _, p := range offered {
			if len(p) == 0 || len(p) > 255 {
				return nil, errors.New(socket.ErrBadALPNOfferList,
					"client offered a malformed ALPN protocol name")
			}
		}
		proto, ok := alpn.Negotiate(c.Protocols, alpn.EncodeOfferList(offered))
		cfg := base.Clone()
		cfg.GetConfigForClient = nil
		if !ok {
			// no common protocol: advertise none, so the handshake still
			// completes without ALPN instead of crypto/tls aborting it.
			cfg.NextProtos = nil
			return cfg, nil
		}
		cfg.NextProtos = []string{string(proto)}
		return cfg, nil
	}

	return base, nil
}

// NPNAdvertise returns the precomputed legacy NPN advertise buffer for
// this config's protocol preference list.
func (c Config) NPNAdvertise() []byte {
	return alpn.NPNAdvertise(c.Protocols)
}

func decodeProtoStrings(protocols [][]byte) []string {
	out := make([]string, len(protocols))
	for i, p := range protocols {
		out[i] = string(p)
	}
	return out
}

func encodeProtoStrings(protocols []string) [][]byte {
	out := make([][]byte, len(protocols))
	for i, p := range protocols {
		out[i] = []byte(p)
	}
	return out
}
