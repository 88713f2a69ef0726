// Package dblock serializes test packages that share the local Postgres
// database. Each TestMain holds a loopback listener for the duration of its
// run; the others spin until the port frees up.
package dblock

import (
	"net"
	"time"
)

const lockAddr = "127.0.0.1:45433"

// Acquire blocks until the lock is held and returns a release func.
func Acquire() func() {
	for {
		ln, err := net.Listen("tcp", lockAddr)
		if err == nil {
			return func() { ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
