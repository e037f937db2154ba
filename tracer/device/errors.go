package device

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by this package wraps exactly one of
// ErrSetup, ErrResourceExhausted, ErrDispatch or ErrTeardown so callers can
// classify failures with errors.Is.
var (
	ErrSetup             = errors.New("device setup failed")
	ErrResourceExhausted = errors.New("device resources exhausted")
	ErrDispatch          = errors.New("device dispatch failed")
	ErrTeardown          = errors.New("device teardown failed")
)

// Setup failures.
var (
	ErrNoPlatforms   = fmt.Errorf("%w: no compute platforms available", ErrSetup)
	ErrNoDevices     = fmt.Errorf("%w: no matching compute devices", ErrSetup)
	ErrNotReady      = fmt.Errorf("%w: device not initialized", ErrSetup)
	ErrUnknownKernel = fmt.Errorf("%w: unknown kernel", ErrSetup)
	ErrArgMismatch   = fmt.Errorf("%w: kernel argument mismatch", ErrSetup)
)

// Dispatch failures.
var (
	ErrBufferTooSmall  = fmt.Errorf("%w: buffer too small", ErrDispatch)
	ErrBufferReleased  = fmt.Errorf("%w: buffer not allocated", ErrDispatch)
	ErrKernelPanic     = fmt.Errorf("%w: kernel lane panicked", ErrDispatch)
	ErrInvalidWorkSize = fmt.Errorf("%w: invalid work size", ErrDispatch)
)

// BuildError is returned by Device.Init when the kernel program fails to
// compile. Log holds the compiler diagnostics.
type BuildError struct {
	Device string
	Log    string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("device (%s): could not build program:\n%s", e.Device, e.Log)
}

func (e *BuildError) Unwrap() error {
	return ErrSetup
}
