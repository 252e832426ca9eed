// Package ids generates the typed, sortable identifiers used on the wire.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

var seq uint64

// New returns an opaque id of the form "<prefix>_<unixnano>_<seq>_<rand6hex>".
// The sequence counter is process-global and monotonic, guaranteeing
// uniqueness even when two ids are minted within the same nanosecond.
func New(prefix string) string {
	n := atomic.AddUint64(&seq, 1)
	return fmt.Sprintf("%s_%d_%d_%s", prefix, time.Now().UTC().UnixNano(), n, randHex(3))
}

// Envelope mints an envelope id with the "arq" typed prefix required by
// the wire protocol.
func Envelope() string {
	return New("arq")
}

func randHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure is only possible on a broken OS entropy
		// source; fall back to the sequence counter rather than panic.
		return fmt.Sprintf("%06x", atomic.LoadUint64(&seq))
	}
	return hex.EncodeToString(buf)
}
