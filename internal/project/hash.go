package project

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Digest is a sha256 value, compatible with source.File.Hash.
type Digest [32]byte

// Combine builds a derived key: H(content || dep1 || dep2 ...).
// The order of deps must be deterministic.
func Combine(content Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// Salt hashes a schema description: a version number and any settings that
// change what gets cached.
func Salt(version uint16, settings ...string) Digest {
	h := sha256.New()
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], version)
	_, _ = h.Write(buf[:])
	for _, s := range settings {
		// length prefix keeps ("ab","c") apart from ("a","bc")
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(s))) // #nosec G115 -- settings are short
		_, _ = h.Write(n[:])
		_, _ = h.Write([]byte(s))
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// IsZero reports whether d was never computed.
func (d Digest) IsZero() bool { return d == Digest{} }

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Short is the first 12 hex digits, enough for log lines.
func (d Digest) Short() string { return d.String()[:12] }

// ParseDigest reads the hex form produced by String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parse digest: %w", err)
	}
	if len(b) != len(d) {
		return d, fmt.Errorf("parse digest: want %d bytes, got %d", len(d), len(b))
	}
	copy(d[:], b)
	return d, nil
}
