package warehouse

import (
	"strings"
	"sync"
)

// keyLocks serializes imports and deletions targeting the same
// (name, repository, architecture) key. Reconciliation is a read-then-write
// sequence; transaction isolation alone does not prevent two concurrent
// uploads of the same package from both passing the version check.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func packageKey(name, repository, architecture string) string {
	return strings.Join([]string{repository, architecture, name}, "/")
}

// lock acquires the per-key mutex and returns its release function.
func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()

	return lock.Unlock
}
