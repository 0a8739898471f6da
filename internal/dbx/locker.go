package dbx

import "sync"

// NopLocker satisfies sync.Locker without locking. In-memory repositories
// use it for views handed out inside a transaction that already holds the
// store lock.
type NopLocker struct{}

func (NopLocker) Lock()   {}
func (NopLocker) Unlock() {}

var _ sync.Locker = NopLocker{}
