package device

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/achilleasa/wavefront/types"
)

// The Go types accepted for each OpenCL scalar type.
var scalarGoTypes = map[string]reflect.Type{
	"char":   reflect.TypeOf(int8(0)),
	"uchar":  reflect.TypeOf(uint8(0)),
	"short":  reflect.TypeOf(int16(0)),
	"ushort": reflect.TypeOf(uint16(0)),
	"int":    reflect.TypeOf(int32(0)),
	"uint":   reflect.TypeOf(uint32(0)),
	"long":   reflect.TypeOf(int64(0)),
	"ulong":  reflect.TypeOf(uint64(0)),
	"float":  reflect.TypeOf(float32(0)),
	"double": reflect.TypeOf(float64(0)),
	"float2": reflect.TypeOf(types.Vec2{}),
	"float3": reflect.TypeOf(types.Vec4{}),
	"float4": reflect.TypeOf(types.Vec4{}),
}

var bufferPtrType = reflect.TypeOf((*Buffer)(nil))

// A wrapper around a compiled kernel and its declared signature.
type Kernel struct {
	device *Device
	drv    kernelDriver
	sig    Signature

	// Serializes binding and submission so dispatches never observe each
	// other's arguments.
	mu sync.Mutex

	// The last argument struct type that passed validation.
	validated reflect.Type
}

// Get the kernel name.
func (k *Kernel) Name() string {
	return k.sig.Kernel
}

// Get the kernel signature as declared in the program source.
func (k *Kernel) Signature() Signature {
	return k.sig
}

// Free any allocated resources used by this kernel.
func (k *Kernel) Release() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.drv == nil {
		return nil
	}

	drv := k.drv
	k.drv = nil
	if err := drv.release(); err != nil {
		return fmt.Errorf("%s device (%s): could not release kernel %s: %v: %w", k.device.Backend, k.device.Name, k.sig.Kernel, err, ErrTeardown)
	}
	return nil
}

// Validate checks that the supplied argument struct type matches the kernel
// signature. Fields are matched to kernel parameters by position; each field
// must carry the parameter's name (the lowerCamel field name or an `arg`
// tag) and a Go type compatible with the parameter: *Buffer for global or
// constant pointers, the matching sized scalar otherwise.
func (k *Kernel) Validate(argsType reflect.Type) error {
	if argsType.Kind() == reflect.Ptr {
		argsType = argsType.Elem()
	}
	if argsType.Kind() != reflect.Struct {
		return fmt.Errorf("kernel %s: argument type %s is not a struct: %w", k.sig.Kernel, argsType, ErrArgMismatch)
	}

	var problems []string
	if argsType.NumField() != len(k.sig.Args) {
		problems = append(problems, fmt.Sprintf("expected %d arguments; %s has %d fields", len(k.sig.Args), argsType.Name(), argsType.NumField()))
	}

	for index := 0; index < argsType.NumField() && index < len(k.sig.Args); index++ {
		field := argsType.Field(index)
		spec := k.sig.Args[index]

		if field.PkgPath != "" {
			problems = append(problems, fmt.Sprintf("arg %d: field %s is not exported", index, field.Name))
			continue
		}
		if name := argName(field); name != spec.Name {
			problems = append(problems, fmt.Sprintf("arg %d: expected %q; got field %s (%q)", index, spec.Name, field.Name, name))
		}

		switch spec.Kind {
		case BufferArg:
			if field.Type != bufferPtrType {
				problems = append(problems, fmt.Sprintf("arg %d (%s): expected *device.Buffer; got %s", index, spec.Name, field.Type))
			}
		default:
			expType := scalarGoTypes[spec.Type]
			if expType == nil || field.Type != expType {
				problems = append(problems, fmt.Sprintf("arg %d (%s): expected %v for %s; got %s", index, spec.Name, expType, spec.Type, field.Type))
			} else if int(field.Type.Size()) != spec.Size {
				problems = append(problems, fmt.Sprintf("arg %d (%s): expected size %d; got %d", index, spec.Name, spec.Size, field.Type.Size()))
			}
		}
	}

	if len(problems) != 0 {
		return fmt.Errorf("kernel %s: %s: %w", k.sig.Kernel, strings.Join(problems, "; "), ErrArgMismatch)
	}

	k.validated = argsType
	return nil
}

// Create a new dispatch for this kernel. Each dispatch binds a full argument
// set and is submitted once.
func (k *Kernel) Dispatch() *Dispatch {
	return &Dispatch{kernel: k}
}

// Dispatch is a single-use kernel invocation builder.
type Dispatch struct {
	kernel   *Kernel
	bindings []binding
	bound    bool
	spent    bool
	err      error
}

// A resolved kernel argument held by a dispatch until submission.
type binding struct {
	spec   ArgSpec
	buf    *Buffer
	scalar []byte
}

// Push the bindings to the kernel driver. Must be called with k.mu held.
func (d *Dispatch) apply() error {
	k := d.kernel
	for _, b := range d.bindings {
		var err error
		if b.buf != nil {
			if b.buf.drv == nil {
				return fmt.Errorf("kernel %s: arg %d (%s) buffer has been released: %w", k.sig.Kernel, b.spec.Index, b.spec.Name, ErrBufferReleased)
			}
			err = k.drv.setBuffer(b.spec, b.buf.drv)
		} else {
			err = k.drv.setScalar(b.spec, b.scalar)
		}
		if err != nil {
			return fmt.Errorf("%s device (%s): could not set arg %d (%s) for kernel %s: %v: %w", k.device.Backend, k.device.Name, b.spec.Index, b.spec.Name, k.sig.Kernel, err, ErrDispatch)
		}
	}
	return nil
}

// Bind all kernel arguments from an argument struct (or a pointer to one).
// Binding errors are deferred until Exec1D/Enqueue1D.
func (d *Dispatch) Args(args interface{}) *Dispatch {
	if d.err != nil {
		return d
	}

	k := d.kernel
	if k.drv == nil {
		d.err = fmt.Errorf("kernel %s: kernel has been released: %w", k.sig.Kernel, ErrDispatch)
		return d
	}

	val := reflect.ValueOf(args)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Type() != k.validated {
		if err := k.Validate(val.Type()); err != nil {
			d.err = fmt.Errorf("%w: %w", ErrDispatch, err)
			return d
		}
	}

	bindings := make([]binding, 0, len(k.sig.Args))
	for index, spec := range k.sig.Args {
		field := val.Field(index)
		if spec.Kind == BufferArg {
			buf := field.Interface().(*Buffer)
			if buf == nil || buf.drv == nil {
				d.err = fmt.Errorf("kernel %s: arg %d (%s) is not bound to an allocated buffer: %w", k.sig.Kernel, index, spec.Name, ErrBufferReleased)
				return d
			}
			bindings = append(bindings, binding{spec: spec, buf: buf})
			continue
		}

		raw, err := valueBytes(field.Interface())
		if err != nil {
			d.err = fmt.Errorf("%s device (%s): could not set arg %d (%s) for kernel %s: %v: %w", k.device.Backend, k.device.Name, index, spec.Name, k.sig.Kernel, err, ErrDispatch)
			return d
		}
		bindings = append(bindings, binding{spec: spec, scalar: raw})
	}

	d.bindings = bindings
	d.bound = true
	return d
}

// Enqueue the kernel over a 1D range of globalWorkSize lanes without waiting
// for it to complete. A zero work size is a no-op.
func (d *Dispatch) Enqueue1D(globalWorkSize int) error {
	if d.err != nil {
		return d.err
	}

	k := d.kernel
	switch {
	case d.spent:
		return fmt.Errorf("kernel %s: dispatch already submitted: %w", k.sig.Kernel, ErrDispatch)
	case !d.bound && len(k.sig.Args) != 0:
		return fmt.Errorf("kernel %s: arguments not bound: %w", k.sig.Kernel, ErrDispatch)
	case globalWorkSize < 0:
		return fmt.Errorf("kernel %s: work size %d: %w", k.sig.Kernel, globalWorkSize, ErrInvalidWorkSize)
	}
	d.spent = true

	if globalWorkSize == 0 {
		return nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.drv == nil {
		return fmt.Errorf("kernel %s: kernel has been released: %w", k.sig.Kernel, ErrDispatch)
	}
	if err := d.apply(); err != nil {
		return err
	}
	if err := k.drv.exec1D(globalWorkSize); err != nil {
		if errors.Is(err, ErrDispatch) {
			return fmt.Errorf("%s device (%s): unable to execute kernel %s: %w", k.device.Backend, k.device.Name, k.sig.Kernel, err)
		}
		return fmt.Errorf("%s device (%s): unable to execute kernel %s: %v: %w", k.device.Backend, k.device.Name, k.sig.Kernel, err, ErrDispatch)
	}
	return nil
}

// Execute the kernel over a 1D range and wait for it to complete. Returns the
// elapsed time between submission and completion.
func (d *Dispatch) Exec1D(globalWorkSize int) (time.Duration, error) {
	tick := time.Now()
	if err := d.Enqueue1D(globalWorkSize); err != nil {
		return 0, err
	}

	// Wait for the kernel to complete
	if err := d.kernel.device.Finish(); err != nil {
		return 0, fmt.Errorf("kernel %s did not complete successfully: %w", d.kernel.sig.Kernel, err)
	}
	return time.Since(tick), nil
}

// Return the kernel parameter name that a struct field binds to.
func argName(field reflect.StructField) string {
	if tag := field.Tag.Get("arg"); tag != "" {
		return tag
	}
	return lowerCamel(field.Name)
}

// Lowercase the leading upper-case run of an identifier: RayOrigins ->
// rayOrigins, RRMinBounce -> rrMinBounce, FOV -> fov.
func lowerCamel(s string) string {
	r := []rune(s)
	for i := 0; i < len(r); i++ {
		if !unicode.IsUpper(r[i]) {
			break
		}
		if i > 0 && i+1 < len(r) && unicode.IsLower(r[i+1]) {
			break
		}
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}
