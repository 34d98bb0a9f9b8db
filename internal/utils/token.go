package utils // package utils provides helper functions for token value generation

import (
    "crypto/rand"   // secure random number generation
    "encoding/hex"  // hex encoding of random bytes
)

// TokenValueBytes is the number of random bytes in a token value.
// 12 bytes hex-encode to 24 characters and carry 96 bits of entropy,
// enough that a collision between two freshly generated values is
// negligible; the database unique index catches the remainder.
const TokenValueBytes = 12

// NewTokenValue returns a fresh opaque token value: TokenValueBytes
// of cryptographically secure random data, hex encoded. The value is
// the bearer credential itself, so nothing weaker than crypto/rand
// may be used here.
func NewTokenValue() (string, error) {
    return randomHex(TokenValueBytes)
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data. If the random number
// generator fails, an error is returned.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
