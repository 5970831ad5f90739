package session

import (
	"crypto/rand"
	"io"
)

const (
	TokenLength = 20
	tokenChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// bytes at or above this would favour the first characters of tokenChars
const tokenByteLimit = len(tokenChars) * (256 / len(tokenChars))

// NewToken returns a fresh session token from crypto/rand.
func NewToken() (string, error) {
	return newTokenFrom(rand.Reader)
}

func newTokenFrom(src io.Reader) (string, error) {
	out := make([]byte, 0, TokenLength)
	buf := make([]byte, 2*TokenLength)
	for len(out) < TokenLength {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= tokenByteLimit {
				continue
			}
			out = append(out, tokenChars[int(b)%len(tokenChars)])
			if len(out) == TokenLength {
				break
			}
		}
	}
	return string(out), nil
}
