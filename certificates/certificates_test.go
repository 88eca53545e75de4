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

package certificates_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/sabouaram/tlssocket/certificates"
)

func genCertPair(t *testing.T) (certPEM, keyPEM string) {
	t.Helper()

	prv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	ser, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("generate serial: %v", err)
	}

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
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	var cbuf, kbuf bytes.Buffer
	if err := pem.Encode(&cbuf, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		t.Fatalf("encode cert: %v", err)
	}
	key, err := x509.MarshalECPrivateKey(prv)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	if err := pem.Encode(&kbuf, &pem.Block{Type: "EC PRIVATE KEY", Bytes: key}); err != nil {
		t.Fatalf("encode key: %v", err)
	}

	return cbuf.String(), kbuf.String()
}

func TestParsePairRejectsEmptyInput(t *testing.T) {
	if _, err := certificates.ParsePair("", "key"); err == nil {
		t.Fatalf("expected error for empty cert PEM")
	}
	if _, err := certificates.ParsePair("cert", ""); err == nil {
		t.Fatalf("expected error for empty key PEM")
	}
}

func TestParsePairRoundTrip(t *testing.T) {
	certPEM, keyPEM := genCertPair(t)

	crt, err := certificates.ParsePair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("ParsePair: %v", err)
	}
	if len(crt.Certificate) == 0 {
		t.Fatalf("expected at least one DER certificate")
	}
}

func TestTLSConfigRejectsNoCertificate(t *testing.T) {
	if _, err := (certificates.Config{}).TLSConfig(); err == nil {
		t.Fatalf("expected error when no certificate is configured")
	}
}

func TestTLSConfigNegotiatesALPNThroughGetConfigForClient(t *testing.T) {
	certPEM, keyPEM := genCertPair(t)
	crt, err := certificates.ParsePair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("ParsePair: %v", err)
	}

	cfg := certificates.Config{
		Certs:     []tls.Certificate{crt},
		Protocols: [][]byte{[]byte("h2"), []byte("http/1.1")},
	}

	tlsCfg, cerr := cfg.TLSConfig()
	if cerr != nil {
		t.Fatalf("TLSConfig: %v", cerr)
	}
	if tlsCfg.GetConfigForClient == nil {
		t.Fatalf("expected GetConfigForClient to be wired when Protocols is set")
	}

	got, gerr := tlsCfg.GetConfigForClient(&tls.ClientHelloInfo{SupportedProtos: []string{"http/1.1", "h2"}})
	if gerr != nil {
		t.Fatalf("GetConfigForClient: %v", gerr)
	}
	if len(got.NextProtos) != 1 || got.NextProtos[0] != "http/1.1" {
		t.Fatalf("NextProtos = %v, want [http/1.1] (first client offer present in server list)", got.NextProtos)
	}
}

func TestTLSConfigNoALPNMatchAdvertisesNoProtocol(t *testing.T) {
	certPEM, keyPEM := genCertPair(t)
	crt, err := certificates.ParsePair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("ParsePair: %v", err)
	}

	cfg := certificates.Config{
		Certs:     []tls.Certificate{crt},
		Protocols: [][]byte{[]byte("h2")},
	}
	tlsCfg, _ := cfg.TLSConfig()

	got, gerr := tlsCfg.GetConfigForClient(&tls.ClientHelloInfo{SupportedProtos: []string{"spdy/3"}})
	if gerr != nil {
		t.Fatalf("GetConfigForClient: %v", gerr)
	}
	if len(got.NextProtos) != 0 {
		t.Fatalf("NextProtos = %v, want none when no protocol matches", got.NextProtos)
	}
}

func TestTLSConfigRejectsMalformedALPNProtocolName(t *testing.T) {
	certPEM, keyPEM := genCertPair(t)
	crt, err := certificates.ParsePair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("ParsePair: %v", err)
	}

	cfg := certificates.Config{
		Certs:     []tls.Certificate{crt},
		Protocols: [][]byte{[]byte("h2"), []byte("http/1.1")},
	}
	tlsCfg, cerr := cfg.TLSConfig()
	if cerr != nil {
		t.Fatalf("TLSConfig: %v", cerr)
	}

	_, gerr := tlsCfg.GetConfigForClient(&tls.ClientHelloInfo{SupportedProtos: []string{"h2", ""}})
	if gerr == nil {
		t.Fatalf("expected an error for a zero-length ALPN protocol name")
	}
}
