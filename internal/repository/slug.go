package repository

import (
	"crypto/rand"
	"encoding/base64"
)

// NewPublicSlug returns an 8-character URL-safe token built from 6 random
// bytes. Uniqueness is the store's job: callers retry on collision.
func NewPublicSlug() string {
	buffer := make([]byte, 6)
	if _, err := rand.Read(buffer); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer)
}
