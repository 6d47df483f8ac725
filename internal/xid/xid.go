// Package xid mints short opaque identifiers, used to correlate log
// lines belonging to one HTTP request. Ids carry no ordering or
// meaning beyond uniqueness.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns "<prefix>-<hex>" with 10 random bytes of entropy. If the
// random source fails the id degrades to a timestamp, still unique
// enough for log correlation within one process.
func New(prefix string) string {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%x", prefix, time.Now().UnixNano())
	}
	return prefix + "-" + hex.EncodeToString(buf)
}
