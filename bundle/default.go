package bundle

import (
	"errors"
	"sync"
)

// ErrNotInitialized is returned by Default before InitDefault has run.
var ErrNotInitialized = errors.New("default license bundle not initialized")

var defaultBundle struct {
	once sync.Once
	b    *Bundle
	err  error
}

// InitDefault parses data and installs the result as the process-wide
// default bundle. It is meant to be called once at program start with the
// embedded artifact:
//
//	//go:embed LICENSE-3RD-PARTY
//	var licenseData []byte
//
//	func init() {
//		if err := bundle.InitDefault(licenseData); err != nil { ... }
//	}
//
// Only the first call has any effect; subsequent calls return the outcome of
// the first.
func InitDefault(data []byte) error {
	defaultBundle.once.Do(func() {
		defaultBundle.b, defaultBundle.err = FromBytes(data)
	})
	return defaultBundle.err
}

// Default returns the process-wide bundle installed by InitDefault.
func Default() (*Bundle, error) {
	if defaultBundle.b == nil && defaultBundle.err == nil {
		return nil, ErrNotInitialized
	}
	return defaultBundle.b, defaultBundle.err
}
