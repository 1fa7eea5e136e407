package internal

import (
	"crypto/rand"
	"encoding/base64"
)

const accessTokenRawSize = 32

// AccessTokenLength is the encoded length of every minted access token.
const AccessTokenLength = 43 // base64url, 32 raw bytes, no padding

// NewAccessToken returns a fixed-length opaque bearer token drawn from
// crypto/rand, encoded base64url without padding.
func NewAccessToken() (string, error) {
	var raw [accessTokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ValidAccessTokenShape reports whether tok has the size and alphabet of a
// minted token. It is a cheap pre-filter, not a validity check.
func ValidAccessTokenShape(tok string) bool {
	if len(tok) != AccessTokenLength {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return false
	}
	return len(raw) == accessTokenRawSize
}
