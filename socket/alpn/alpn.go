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

// Package alpn implements RFC 7301 server-side protocol negotiation, plus
// the legacy NPN advertise buffer, as pure functions independent of any
// particular TLS engine so the negotiation rule itself is directly
// testable.
package alpn

// Negotiate picks a protocol given the server's ordered preference list
// and a client offer list encoded as the RFC 7301 wire form
// (<len:u8><bytes[len]> repeated). Client offers are walked in order; for
// each, the (short, authoritative) server list is linear-scanned, and the
// first offer with any match wins. Equivalently: the negotiated protocol
// is the first p in the client offers such that p is in the server list.
//
// A malformed offer (a length byte exceeding the bytes remaining in the
// list) stops iteration at that point; offers already scanned are still
// eligible. No match, or an empty/fully-malformed list, yields ok=false —
// never an error: a failed negotiation is not a handshake failure.
func Negotiate(serverPrefs [][]byte, offerList []byte) (proto []byte, ok bool) {
	offers, _ := parseOfferList(offerList)
	for _, offer := range offers {
		for _, pref := range serverPrefs {
			if bytesEqual(offer, pref) {
				return offer, true
			}
		}
	}
	return nil, false
}

// parseOfferList decodes the RFC 7301 wire form into individual protocol
// identifiers, stopping (without error) at the first malformed entry.
func parseOfferList(offerList []byte) (offers [][]byte, truncated bool) {
	i := 0
	for i < len(offerList) {
		n := int(offerList[i])
		i++
		if n == 0 || i+n > len(offerList) {
			return offers, true
		}
		offers = append(offers, offerList[i:i+n])
		i += n
	}
	return offers, false
}

// EncodeOfferList builds the RFC 7301 wire form for a list of protocol
// identifiers, each of which must be 1-255 bytes.
func EncodeOfferList(protocols [][]byte) []byte {
	var buf []byte
	for _, p := range protocols {
		if len(p) == 0 || len(p) > 255 {
			continue
		}
		buf = append(buf, byte(len(p)))
		buf = append(buf, p...)
	}
	return buf
}

// NPNAdvertise returns the precomputed NPN advertise buffer: the legacy
// mechanism reverses ALPN's roles (server advertises, client picks) but
// reuses the identical length-prefixed wire shape, so the buffer the
// server serves is the server preference list encoded unchanged.
func NPNAdvertise(serverPrefs [][]byte) []byte {
	return EncodeOfferList(serverPrefs)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
