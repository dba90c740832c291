// Package swarm implements the concurrent registry of torrent swarms: the
// map from info-hash to the peer set announcing for it, lifecycle state
// transitions, and inactive-peer/torrent sweeps.
package swarm

import (
	"encoding/hex"
	"errors"
)

// InfoHashLen is the fixed byte length of a BitTorrent info-hash (SHA-1).
const InfoHashLen = 20

// ErrInvalidInfoHash is returned by NewInfoHashFromHex/Bytes for malformed
// input.
var ErrInvalidInfoHash = errors.New("swarm: invalid info-hash")

// InfoHash identifies a torrent, bytewise.
type InfoHash [InfoHashLen]byte

// NewInfoHashFromBytes copies b into an InfoHash, requiring exactly
// InfoHashLen bytes.
func NewInfoHashFromBytes(b []byte) (InfoHash, error) {
	var h InfoHash
	if len(b) != InfoHashLen {
		return h, ErrInvalidInfoHash
	}
	copy(h[:], b)
	return h, nil
}

// NewInfoHashFromHex parses the 40-lowercase-hex-character HTTP-surface
// encoding of an info-hash.
func NewInfoHashFromHex(s string) (InfoHash, error) {
	var h InfoHash
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != InfoHashLen {
		return h, ErrInvalidInfoHash
	}
	copy(h[:], b)
	return h, nil
}

// String renders the info-hash as 40 lowercase hex characters.
func (h InfoHash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns the raw 20-byte form, used on the UDP surface.
func (h InfoHash) Bytes() []byte {
	return h[:]
}
