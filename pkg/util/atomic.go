package util

import "sync/atomic"

// AtomicBool represents a atomic bool
type AtomicBool struct {
	val int32
}

// Set atomic bool
func (b *AtomicBool) Set(value bool) {
	var i int32
	if value {
		i = 1
	}

	atomic.StoreInt32(&(b.val), i)
}

// Get atomic bool
func (b *AtomicBool) Get() bool {
	return atomic.LoadInt32(&(b.val)) != 0
}

// TrySet sets the bool and reports whether the value changed.
// Used for one-shot flags like session teardown.
func (b *AtomicBool) TrySet(value bool) bool {
	var i int32
	if value {
		i = 1
	}

	return atomic.CompareAndSwapInt32(&(b.val), 1-i, i)
}
