package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs sort by creation time, which keeps
// user ids and object keys roughly ordered by signup.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// Key returns prefix/<ulid><ext>.
func Key(prefix, ext string) string {
	return prefix + "/" + New() + ext
}
