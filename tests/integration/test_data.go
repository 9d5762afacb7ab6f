package integration

import (
	"fmt"
	"sync/atomic"
)

var userSeq atomic.Int64

// TestUser returns credentials for a fresh user. The sequence counter
// keeps emails unique even when tests create users in a tight loop.
func TestUser(suffix string) (email, password string) {
	n := userSeq.Add(1)
	email = fmt.Sprintf("test-%d-%s@example.edu", n, suffix)
	password = "TestPassword123"
	return
}
