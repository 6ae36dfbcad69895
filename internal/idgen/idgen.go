// Package idgen generates short correlation identifiers for
// request/reply pairs that cross a process boundary, i.e. broadcast-engine
// RPC calls. Entity primary keys are
// plain autoincrement integers handled by the store, not nanoids.
package idgen

import nanoid "github.com/matoous/go-nanoid/v2"

const defaultLength = 12

// New returns a URL-safe random token prefixed for readability in logs.
func New(prefix string) string {
	id, err := nanoid.New(defaultLength)
	if err != nil {
		// nanoid only fails if crypto/rand is broken, which makes the
		// process unusable anyway.
		panic("idgen: " + err.Error())
	}
	return prefix + "_" + id
}
