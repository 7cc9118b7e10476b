package id

import (
	"crypto/rand"
	"strings"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time and safe for use as DynamoDB partition keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// NewAccessCode returns a short shareable code: the last 8 characters of a
// fresh ULID, upper-cased. Used for public report access links.
func NewAccessCode() string {
	u := New()
	return strings.ToUpper(u[len(u)-8:])
}
