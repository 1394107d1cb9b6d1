package util

import "sync"

// KeyLocks manages a map of locks, each keyed by a string.
type KeyLocks struct {
	locks     map[string]*sync.Mutex
	masterLck sync.Mutex
}

func NewKeyLocks() *KeyLocks {
	return &KeyLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the lock for the given key.
func (kl *KeyLocks) Lock(key string) {
	kl.ensureLock(key).Lock()
}

// Unlock releases the lock for the given key.
func (kl *KeyLocks) Unlock(key string) {
	kl.ensureLock(key).Unlock()
}

func (kl *KeyLocks) ensureLock(key string) *sync.Mutex {
	kl.masterLck.Lock()
	defer kl.masterLck.Unlock()

	lock, ok := kl.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		kl.locks[key] = lock
	}

	return lock
}
