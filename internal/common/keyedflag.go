package common

import "sync"

// KeyedFlag is a set of single-slot locks addressed by string key.
// TryAcquire rejects immediately instead of queueing, which serializes
// logical operations spanning several suspension points: a second request
// for the same key gets a "still processing" answer rather than waiting
type KeyedFlag struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewKeyedFlag() *KeyedFlag {
	return &KeyedFlag{held: map[string]struct{}{}}
}

// TryAcquire takes the slot for the key if it is free.
// Returns false if the key is already held
func (kf *KeyedFlag) TryAcquire(key string) bool {
	kf.mu.Lock()
	defer kf.mu.Unlock()
	if _, ok := kf.held[key]; ok {
		return false
	}
	kf.held[key] = struct{}{}
	return true
}

// Release frees the slot. Releasing a key that is not held is a no-op,
// so it is safe to defer unconditionally
func (kf *KeyedFlag) Release(key string) {
	kf.mu.Lock()
	defer kf.mu.Unlock()
	delete(kf.held, key)
}
