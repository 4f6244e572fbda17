package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration without colliding with existing ids.
const (
	DomainArtifact = "tft/collection-artifact/v1"
)

// hashWithDomain computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + data). The null byte prevents domain/data
// boundary ambiguity (a domain of "ab" + data "c" must not collide with
// domain "a" + data "bc").
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash canonicalizes v and returns its domain-separated SHA-256 hex digest.
// Identical logical content, regardless of map iteration order or struct
// field order upstream, produces identical hashes.
func Hash(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canon: hash: %w", err)
	}
	return hashWithDomain(domain, data), nil
}

