// Package credential defines the RFID tag identifier read at the keybox
// and the parsing contract for the payload the reader ships to the server.
package credential

import (
	"encoding/hex"
	"errors"
	"strings"
)

// Tag UIDs are either 4 bytes (MIFARE Classic) or 7 bytes (MIFARE
// Ultralight / NTAG). The firmware appends one XOR checksum byte before
// hex-encoding, so a valid wire payload is 10 or 16 hex characters.
const (
	shortUIDLen = 4
	longUIDLen  = 7
)

var (
	ErrMalformed = errors.New("malformed tag payload")
	ErrChecksum  = errors.New("tag payload checksum mismatch")
)

// Credential is an opaque, fixed-length tag UID. The zero value is not a
// valid credential.
type Credential struct {
	uid [longUIDLen]byte
	n   uint8
}

// Parse decodes a wire payload (hex UID plus trailing XOR checksum byte)
// into a Credential. A failure here is the recoverable "malformed read"
// condition: the scan attempt ends without any decision on the tag itself.
func Parse(payload string) (Credential, error) {
	payload = strings.TrimSpace(payload)

	raw, err := hex.DecodeString(payload)
	if err != nil {
		return Credential{}, ErrMalformed
	}

	n := len(raw) - 1 // last byte is the checksum
	if n != shortUIDLen && n != longUIDLen {
		return Credential{}, ErrMalformed
	}

	var sum byte
	for _, b := range raw[:n] {
		sum ^= b
	}
	if sum != raw[n] {
		return Credential{}, ErrChecksum
	}

	var c Credential
	copy(c.uid[:], raw[:n])
	c.n = uint8(n)
	return c, nil
}

// FromHex decodes a canonical UID (hex, no checksum byte) as stored in the
// schedule bundle and the database.
func FromHex(s string) (Credential, error) {
	s = strings.TrimSpace(s)

	raw, err := hex.DecodeString(s)
	if err != nil {
		return Credential{}, ErrMalformed
	}
	if len(raw) != shortUIDLen && len(raw) != longUIDLen {
		return Credential{}, ErrMalformed
	}

	var c Credential
	copy(c.uid[:], raw)
	c.n = uint8(len(raw))
	return c, nil
}

// MustFromHex is FromHex for static tables and tests.
func MustFromHex(s string) Credential {
	c, err := FromHex(s)
	if err != nil {
		panic("credential: " + err.Error())
	}
	return c
}

// IsZero reports whether c holds no UID.
func (c Credential) IsZero() bool { return c.n == 0 }

// Equal reports whether two credentials carry the same UID.
func (c Credential) Equal(o Credential) bool {
	return c.n == o.n && c.uid == o.uid
}

// String returns the canonical form: uppercase hex of the UID bytes,
// without the wire checksum byte.
func (c Credential) String() string {
	return strings.ToUpper(hex.EncodeToString(c.uid[:c.n]))
}

// Checksummed returns the wire form of the credential: canonical hex with
// the XOR checksum byte appended, as the firmware sends it.
func (c Credential) Checksummed() string {
	var sum byte
	for _, b := range c.uid[:c.n] {
		sum ^= b
	}
	raw := make([]byte, c.n+1)
	copy(raw, c.uid[:c.n])
	raw[c.n] = sum
	return strings.ToUpper(hex.EncodeToString(raw))
}
