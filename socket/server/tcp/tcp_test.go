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

package tcp_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"time"

	"github.com/sabouaram/tlssocket/certificates"
	"github.com/sabouaram/tlssocket/duration"
	"github.com/sabouaram/tlssocket/socket"
	"github.com/sabouaram/tlssocket/socket/config"
	scksrv "github.com/sabouaram/tlssocket/socket/server/tcp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func getFreePort() int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).ToNot(HaveOccurred())
	defer func() { _ = ln.Close() }()
	return ln.Addr().(*net.TCPAddr).Port
}

func getTestAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", getFreePort())
}

func echoHandler(c socket.Context) {
	defer func() { _ = c.Close() }()
	buf := make([]byte, 1024)
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

func genCertPair() (certPEM, keyPEM string) {
	prv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	Expect(err).ToNot(HaveOccurred())

	ser, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	Expect(err).ToNot(HaveOccurred())

	tpl := x509.Certificate{
		SerialNumber:          ser,
		Subject:               pkix.Name{CommonName: "localhost"},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, &tpl, &tpl, &prv.PublicKey, prv)
	Expect(err).ToNot(HaveOccurred())

	var cbuf, kbuf bytes.Buffer
	Expect(pem.Encode(&cbuf, &pem.Block{Type: "CERTIFICATE", Bytes: der})).To(Succeed())
	key, err := x509.MarshalECPrivateKey(prv)
	Expect(err).ToNot(HaveOccurred())
	Expect(pem.Encode(&kbuf, &pem.Block{Type: "EC PRIVATE KEY", Bytes: key})).To(Succeed())

	return cbuf.String(), kbuf.String()
}

func waitUntilRunning(srv scksrv.ServerTcp) {
	Eventually(srv.IsRunning, 2*time.Second, 10*time.Millisecond).Should(BeTrue())
}

var _ = Describe("ServerTcp", func() {
	var (
		ctx context.Context
		cnl context.CancelFunc
		srv scksrv.ServerTcp
		adr string
	)

	BeforeEach(func() {
		ctx, cnl = context.WithCancel(globalCtx)
		adr = getTestAddr()
	})

	AfterEach(func() {
		if srv != nil {
			_ = srv.Close()
		}
		cnl()
	})

	Describe("creation", func() {
		It("rejects a nil handler", func() {
			_, err := scksrv.New(nil, nil, config.Server{Network: config.NetworkTCP, Address: adr})
			Expect(err).To(HaveOccurred())
		})

		It("rejects an invalid configuration", func() {
			_, err := scksrv.New(nil, echoHandler, config.Server{})
			Expect(err).To(HaveOccurred())
		})

		It("starts gone and idle", func() {
			var err error
			srv, err = scksrv.New(nil, echoHandler, config.Server{Network: config.NetworkTCP, Address: adr})
			Expect(err).ToNot(HaveOccurred())
			Expect(srv.IsRunning()).To(BeFalse())
			Expect(srv.IsGone()).To(BeTrue())
			Expect(srv.OpenConnections()).To(Equal(int64(0)))
		})
	})

	Describe("plaintext echo", func() {
		BeforeEach(func() {
			var err error
			srv, err = scksrv.New(nil, echoHandler, config.Server{Network: config.NetworkTCP, Address: adr})
			Expect(err).ToNot(HaveOccurred())
			go func() { _ = srv.Listen(ctx) }()
			waitUntilRunning(srv)
		})

		It("echoes what it is sent", func() {
			con, err := net.Dial("tcp", adr)
			Expect(err).ToNot(HaveOccurred())
			defer func() { _ = con.Close() }()

			_, err = con.Write([]byte("hello"))
			Expect(err).ToNot(HaveOccurred())

			buf := make([]byte, 5)
			_, err = con.Read(buf)
			Expect(err).ToNot(HaveOccurred())
			Expect(buf).To(Equal([]byte("hello")))
		})

		It("tracks OpenConnections across connect and disconnect", func() {
			con, err := net.Dial("tcp", adr)
			Expect(err).ToNot(HaveOccurred())

			Eventually(srv.OpenConnections, 2*time.Second, 10*time.Millisecond).Should(Equal(int64(1)))

			_ = con.Close()
			Eventually(srv.OpenConnections, 2*time.Second, 10*time.Millisecond).Should(Equal(int64(0)))
		})

		It("shuts down gracefully", func() {
			con, err := net.Dial("tcp", adr)
			Expect(err).ToNot(HaveOccurred())
			_ = con.Close()

			sctx, scnl := context.WithTimeout(context.Background(), 2*time.Second)
			defer scnl()
			Expect(srv.Shutdown(sctx)).To(Succeed())
			Expect(srv.IsRunning()).To(BeFalse())

			Eventually(srv.IsGone, 2*time.Second, 10*time.Millisecond).Should(BeTrue())
		})
	})

	Describe("TLS termination and ALPN", func() {
		var certPEM, keyPEM string

		BeforeEach(func() {
			certPEM, keyPEM = genCertPair()
			crt, cerr := certificates.ParsePair(certPEM, keyPEM)
			Expect(cerr).ToNot(HaveOccurred())

			var err error
			srv, err = scksrv.New(nil, echoHandler, config.Server{
				Network: config.NetworkTCP,
				Address: adr,
				TLS: config.TLS{
					Enabled: true,
					Config: certificates.Config{
						Certs:     []tls.Certificate{crt},
						Protocols: [][]byte{[]byte("h2"), []byte("http/1.1")},
					},
				},
			})
			Expect(err).ToNot(HaveOccurred())
			go func() { _ = srv.Listen(ctx) }()
			waitUntilRunning(srv)
		})

		It("completes the handshake and negotiates ALPN", func() {
			con, err := tls.Dial("tcp", adr, &tls.Config{
				InsecureSkipVerify: true,
				NextProtos:         []string{"h2", "http/1.1"},
			})
			Expect(err).ToNot(HaveOccurred())
			defer func() { _ = con.Close() }()

			Expect(con.ConnectionState().NegotiatedProtocol).To(Equal("h2"))

			_, err = con.Write([]byte("ping"))
			Expect(err).ToNot(HaveOccurred())
			buf := make([]byte, 4)
			_, err = con.Read(buf)
			Expect(err).ToNot(HaveOccurred())
			Expect(buf).To(Equal([]byte("ping")))
		})

		It("completes without ALPN when the client offers no protocol list", func() {
			con, err := tls.Dial("tcp", adr, &tls.Config{InsecureSkipVerify: true})
			Expect(err).ToNot(HaveOccurred())
			defer func() { _ = con.Close() }()
			Expect(con.ConnectionState().NegotiatedProtocol).To(BeEmpty())
		})

		It("exchanges close_notify gracefully once the handler finishes", func() {
			con, err := tls.Dial("tcp", adr, &tls.Config{
				InsecureSkipVerify: true,
				NextProtos:         []string{"h2", "http/1.1"},
			})
			Expect(err).ToNot(HaveOccurred())
			defer func() { _ = con.Close() }()

			_, err = con.Write([]byte("bye!"))
			Expect(err).ToNot(HaveOccurred())
			buf := make([]byte, 4)
			_, err = con.Read(buf)
			Expect(err).ToNot(HaveOccurred())
			Expect(buf).To(Equal([]byte("bye!")))

			// half-close: send our own close_notify without tearing down
			// the underlying socket, so the server's close_notify in reply
			// is still observable on this same connection.
			Expect(con.CloseWrite()).To(Succeed())

			n, rerr := con.Read(buf)
			Expect(n).To(Equal(0))
			Expect(rerr).To(Equal(io.EOF))
		})
	})

	Describe("idle timeout", func() {
		It("serves normally when the idle timeout is zero", func() {
			var err error
			srv, err = scksrv.New(nil, echoHandler, config.Server{
				Network:        config.NetworkTCP,
				Address:        adr,
				ConIdleTimeout: duration.Seconds(0),
			})
			Expect(err).ToNot(HaveOccurred())
			// ConIdleTimeout of zero disables the timer; this test only
			// exercises that a zero-valued config still serves normally.
			go func() { _ = srv.Listen(ctx) }()
			waitUntilRunning(srv)

			con, derr := net.Dial("tcp", adr)
			Expect(derr).ToNot(HaveOccurred())
			defer func() { _ = con.Close() }()

			_, err = con.Write([]byte("x"))
			Expect(err).ToNot(HaveOccurred())
			buf := make([]byte, 1)
			_, err = con.Read(buf)
			Expect(err).ToNot(HaveOccurred())
		})
	})
})
