package wavefront

import "errors"

var (
	ErrTracerClosed      = errors.New("wavefront tracer: tracer is closed")
	ErrFrameSizeMismatch = errors.New("wavefront tracer: output image does not match frame dimensions")
	ErrInvalidOptions    = errors.New("wavefront tracer: invalid options")
)
