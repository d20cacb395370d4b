package primitives

import (
	"crypto/subtle"
	"errors"
	"runtime"
)

// SecureWipe destroys the contents of data in place using a constant-time
// XOR the compiler cannot optimize away (x XOR x = 0), then pins data alive
// past the wipe with runtime.KeepAlive so the store is never elided.
func SecureWipe(data []byte) error {
	if data == nil {
		return errors.New("cannot wipe nil data")
	}
	subtle.XORBytes(data, data, data)
	runtime.KeepAlive(data)
	return nil
}

// ZeroBytes is SecureWipe ignoring the (always-nil-unless-data-is-nil) error,
// for defer sites where a wipe failure on a non-nil slice cannot happen.
func ZeroBytes(data []byte) {
	_ = SecureWipe(data)
}
