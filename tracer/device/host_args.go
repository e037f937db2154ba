package device

import (
	"fmt"
	"unsafe"

	"github.com/achilleasa/wavefront/types"
)

// HostArgs gives a host kernel typed access to its bound arguments by name.
// Lookup failures are recorded and reported through Err so a kernel can
// resolve all of its arguments before checking for errors.
type HostArgs struct {
	sig    Signature
	values []hostArg
	err    error
}

// Get the name of the dispatched kernel.
func (a *HostArgs) Kernel() string {
	return a.sig.Kernel
}

// Return the first lookup error.
func (a *HostArgs) Err() error {
	return a.err
}

func (a *HostArgs) fail(format string, v ...interface{}) {
	if a.err == nil {
		a.err = fmt.Errorf("kernel %s: %s: %w", a.sig.Kernel, fmt.Sprintf(format, v...), ErrArgMismatch)
	}
}

func (a *HostArgs) lookup(name string, kind ArgKind, clTypes ...string) (hostArg, bool) {
	spec, ok := a.sig.Arg(name)
	if !ok {
		a.fail("no argument named %q", name)
		return hostArg{}, false
	}
	if spec.Kind != kind {
		a.fail("argument %q is a %s; requested as %s", name, spec.Kind, kind)
		return hostArg{}, false
	}
	for _, t := range clTypes {
		if spec.Type == t {
			return a.values[spec.Index], true
		}
	}
	a.fail("argument %q has type %s; requested as %v", name, spec.Type, clTypes)
	return hostArg{}, false
}

func bufferView[T any](buf *hostBuffer) []T {
	var zero T
	n := buf.size / int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&buf.mem[0])), n)
}

func scalarValue[T any](raw []byte) T {
	var v T
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v)), raw)
	return v
}

// Access a float3/float4 buffer.
func (a *HostArgs) Vec4s(name string) []types.Vec4 {
	if arg, ok := a.lookup(name, BufferArg, "float3", "float4"); ok {
		return bufferView[types.Vec4](arg.buf)
	}
	return nil
}

// Access a float buffer.
func (a *HostArgs) Float32s(name string) []float32 {
	if arg, ok := a.lookup(name, BufferArg, "float"); ok {
		return bufferView[float32](arg.buf)
	}
	return nil
}

// Access an int buffer.
func (a *HostArgs) Int32s(name string) []int32 {
	if arg, ok := a.lookup(name, BufferArg, "int"); ok {
		return bufferView[int32](arg.buf)
	}
	return nil
}

// Access a uint buffer. Counters bound this way must be updated with
// sync/atomic.
func (a *HostArgs) Uint32s(name string) []uint32 {
	if arg, ok := a.lookup(name, BufferArg, "uint"); ok {
		return bufferView[uint32](arg.buf)
	}
	return nil
}

// Access a ulong buffer.
func (a *HostArgs) Uint64s(name string) []uint64 {
	if arg, ok := a.lookup(name, BufferArg, "ulong"); ok {
		return bufferView[uint64](arg.buf)
	}
	return nil
}

// Read an int scalar.
func (a *HostArgs) Int32(name string) int32 {
	if arg, ok := a.lookup(name, ScalarArg, "int"); ok {
		return scalarValue[int32](arg.scalar)
	}
	return 0
}

// Read a uint scalar.
func (a *HostArgs) Uint32(name string) uint32 {
	if arg, ok := a.lookup(name, ScalarArg, "uint"); ok {
		return scalarValue[uint32](arg.scalar)
	}
	return 0
}

// Read a float scalar.
func (a *HostArgs) Float32(name string) float32 {
	if arg, ok := a.lookup(name, ScalarArg, "float"); ok {
		return scalarValue[float32](arg.scalar)
	}
	return 0
}

// Read a float3/float4 scalar.
func (a *HostArgs) Vec4(name string) types.Vec4 {
	if arg, ok := a.lookup(name, ScalarArg, "float3", "float4"); ok {
		return scalarValue[types.Vec4](arg.scalar)
	}
	return types.Vec4{}
}
