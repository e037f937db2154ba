package device

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
)

type DeviceType uint8

// Supported device types.
const (
	CpuDevice   DeviceType = 1 << iota
	GpuDevice              = 1 << iota
	OtherDevice            = 1 << iota
	AllDevices             = 0xFF
)

var (
	indentRegex = regexp.MustCompile("(?m)^")
)

func (dt DeviceType) String() string {
	switch dt {
	case CpuDevice:
		return "CPU"
	case GpuDevice:
		return "GPU"
	case OtherDevice:
		return "Other"
	}
	return fmt.Sprintf("DeviceType(%d)", uint8(dt))
}

// MemFlags describe how kernels access a buffer.
type MemFlags uint8

const (
	MemReadWrite MemFlags = iota
	MemReadOnly
	MemWriteOnly
)

// The operations a compute backend provides for a single device.
type driver interface {
	// Create the context, an in-order command queue and build the program.
	build(source string, sigs map[string]Signature) error
	// Release the program, queue and context.
	release() error
	kernel(sig Signature) (kernelDriver, error)
	allocate(name string, size int, flags MemFlags) (bufferDriver, error)
	// Block until all enqueued commands have completed.
	finish() error
}

type bufferDriver interface {
	write(offset int, data []byte, blocking bool) error
	read(offset int, data []byte) error
	fill(pattern []byte, offset, size int) error
	release() error
}

type kernelDriver interface {
	setScalar(arg ArgSpec, value []byte) error
	setBuffer(arg ArgSpec, buf bufferDriver) error
	exec1D(globalWorkSize int) error
	release() error
}

// Device wraps a compute device exposed by one of the registered backends.
type Device struct {
	Name     string
	Platform string
	Backend  string
	Type     DeviceType

	compUnits  uint32
	clockSpeed uint32

	// Speed estimate in GFlops.
	Speed uint32

	// Upper bound for a single buffer allocation in bytes.
	MaxAllocSize int64

	mu         sync.Mutex
	drv        driver
	ready      bool
	signatures map[string]Signature
}

// A list of devices.
type DeviceList []*Device

// Implements Stringer.
func (d *Device) String() string {
	return fmt.Sprintf(
		"Name: %s\nType: %s\nBackend: %s\nSpecs: %d computation units, %d Mhz clock, %d GFlops approximate speed",
		d.Name,
		d.Type.String(),
		d.Backend,
		d.compUnits,
		d.clockSpeed,
		d.Speed,
	)
}

// Initialize device: create the device context and command queue and
// compile the supplied program source. A compilation failure is reported as
// a *BuildError carrying the compiler log and leaves the device unusable.
func (d *Device) Init(source string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Already initialized
	if d.ready {
		return nil
	}

	if d.drv == nil {
		return fmt.Errorf("%s device (%s): no driver attached: %w", d.Backend, d.Name, ErrSetup)
	}

	sigs, err := ParseSignatures(source)
	if err != nil {
		return &BuildError{Device: d.Name, Log: err.Error()}
	}

	if err = d.drv.build(source, sigs); err != nil {
		d.drv.release()
		var buildErr *BuildError
		if errors.As(err, &buildErr) && buildErr.Device == "" {
			buildErr.Device = d.Name
		}
		return err
	}

	d.signatures = sigs
	d.ready = true
	return nil
}

// Shut down the device. Calling Close more than once is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		return nil
	}
	d.ready = false
	d.signatures = nil

	if err := d.drv.release(); err != nil {
		return fmt.Errorf("%s device (%s): %v: %w", d.Backend, d.Name, err, ErrTeardown)
	}
	return nil
}

// Load kernel by name.
func (d *Device) Kernel(name string) (*Kernel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		return nil, fmt.Errorf("%s device (%s): could not load kernel %s: %w", d.Backend, d.Name, name, ErrNotReady)
	}

	sig, exists := d.signatures[name]
	if !exists {
		return nil, fmt.Errorf("%s device (%s): could not load kernel %s: %w", d.Backend, d.Name, name, ErrUnknownKernel)
	}

	kd, err := d.drv.kernel(sig)
	if err != nil {
		return nil, fmt.Errorf("%s device (%s): could not load kernel %s: %v: %w", d.Backend, d.Name, name, err, ErrSetup)
	}

	return &Kernel{
		device: d,
		drv:    kd,
		sig:    sig,
	}, nil
}

// Create an empty (unallocated) buffer.
func (d *Device) Buffer(name string) *Buffer {
	return &Buffer{
		device: d,
		name:   name,
	}
}

// Block until all previously enqueued commands have completed.
func (d *Device) Finish() error {
	if !d.ready {
		return ErrNotReady
	}
	if err := d.drv.finish(); err != nil {
		return fmt.Errorf("%s device (%s): %v: %w", d.Backend, d.Name, err, ErrDispatch)
	}
	return nil
}

// Calculate theoretical device speed as: compute units * clock speed / 1000.
func (d *Device) setSpeed(compUnits, clockSpeed uint32) {
	d.compUnits = compUnits
	d.clockSpeed = clockSpeed
	d.Speed = compUnits * clockSpeed / 1000
}
