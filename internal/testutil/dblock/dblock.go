// Package dblock serializes Postgres integration tests across packages.
// go test runs packages in parallel and they all truncate the same tables.
package dblock

import (
	"net"
	"os"
	"testing"
	"time"
)

const (
	defaultAddr = "127.0.0.1:45432"
	waitLimit   = 2 * time.Minute
)

// Lock blocks until this test process holds the shared database lock and
// releases it when t finishes.
func Lock(t testing.TB) {
	t.Helper()
	addr := os.Getenv("LEDGER_TEST_DB_LOCK_ADDR")
	if addr == "" {
		addr = defaultAddr
	}
	deadline := time.Now().Add(waitLimit)
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			t.Cleanup(func() { ln.Close() })
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("dblock: could not acquire %s within %v: %v", addr, waitLimit, err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
