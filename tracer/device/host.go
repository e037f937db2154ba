package device

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sync/errgroup"
)

const (
	hostBackendName = "host"

	// Default upper bound for a single host buffer allocation (2GiB).
	defaultHostMaxAlloc = 1 << 31

	// Number of work chunks scheduled per lane; keeps lanes busy when some
	// work items exit early.
	chunksPerLane = 4
)

// HostKernelFunc implements a kernel for the host backend. It is invoked once
// per dispatch with the bound arguments and returns the function executed by
// every lane of the dispatch. Lanes run concurrently; a kernel must only
// write to the work items it owns or use sync/atomic for shared counters.
type HostKernelFunc func(args *HostArgs) (func(gid int), error)

var (
	hostKernelMu sync.RWMutex
	hostKernels  = make(map[string]HostKernelFunc)
)

// Register the host implementation of the named kernel. Registering a name
// twice replaces the previous implementation.
func RegisterHostKernel(name string, fn HostKernelFunc) {
	hostKernelMu.Lock()
	defer hostKernelMu.Unlock()
	hostKernels[name] = fn
}

func lookupHostKernel(name string) HostKernelFunc {
	hostKernelMu.RLock()
	defer hostKernelMu.RUnlock()
	return hostKernels[name]
}

// The host backend exposes a single software device that runs kernels as Go
// functions across goroutine lanes.
type hostBackend struct{}

func (hostBackend) Name() string {
	return hostBackendName
}

func (hostBackend) Platforms() ([]PlatformInfo, error) {
	return []PlatformInfo{
		{
			Backend:    hostBackendName,
			Profile:    "FULL_PROFILE",
			Version:    fmt.Sprintf("host %s", runtime.Version()),
			Name:       "Go host",
			Vendor:     "wavefront",
			Extensions: "",
			Devices:    DeviceList{NewHostDevice(0)},
		},
	}, nil
}

func init() {
	registerBackend(hostBackend{})
}

// Create a host device with the given number of lanes. If lanes <= 0 the
// device uses GOMAXPROCS lanes.
func NewHostDevice(lanes int) *Device {
	if lanes <= 0 {
		lanes = runtime.GOMAXPROCS(0)
	}

	d := &Device{
		Name:         fmt.Sprintf("Go host (%d lanes)", lanes),
		Platform:     "Go host",
		Backend:      hostBackendName,
		Type:         CpuDevice,
		MaxAllocSize: defaultHostMaxAlloc,
		drv:          &hostDriver{lanes: lanes},
	}
	d.setSpeed(uint32(lanes), 1000)
	return d
}

type hostDriver struct {
	lanes int
	impls map[string]HostKernelFunc
}

// Bind every kernel declared in the program to its registered Go
// implementation. Kernels without an implementation fail the build.
func (hd *hostDriver) build(source string, sigs map[string]Signature) error {
	if len(sigs) == 0 {
		return &BuildError{Log: "program does not declare any kernels"}
	}

	var missing []string
	impls := make(map[string]HostKernelFunc, len(sigs))
	for name := range sigs {
		fn := lookupHostKernel(name)
		if fn == nil {
			missing = append(missing, name)
			continue
		}
		impls[name] = fn
	}

	if len(missing) != 0 {
		sort.Strings(missing)
		var log strings.Builder
		for _, name := range missing {
			fmt.Fprintf(&log, "error: kernel %s: no host implementation registered\n", name)
		}
		return &BuildError{Log: log.String()}
	}

	hd.impls = impls
	return nil
}

func (hd *hostDriver) release() error {
	hd.impls = nil
	return nil
}

func (hd *hostDriver) kernel(sig Signature) (kernelDriver, error) {
	impl := hd.impls[sig.Kernel]
	if impl == nil {
		return nil, fmt.Errorf("no host implementation for %s", sig.Kernel)
	}

	return &hostKernel{
		sig:   sig,
		impl:  impl,
		lanes: hd.lanes,
		args:  make([]hostArg, len(sig.Args)),
	}, nil
}

func (hd *hostDriver) allocate(name string, size int, flags MemFlags) (bufferDriver, error) {
	// Back buffers with uint64 words so typed views are 8-byte aligned.
	return &hostBuffer{
		name: name,
		mem:  make([]uint64, (size+7)/8),
		size: size,
	}, nil
}

// Dispatches run to completion before exec1D returns so the queue is always
// drained.
func (hd *hostDriver) finish() error {
	return nil
}

type hostBuffer struct {
	name string
	mem  []uint64
	size int
}

func (b *hostBuffer) bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&b.mem[0])), b.size)
}

func (b *hostBuffer) write(offset int, data []byte, _ bool) error {
	if b.mem == nil {
		return ErrBufferReleased
	}
	copy(b.bytes()[offset:], data)
	return nil
}

func (b *hostBuffer) read(offset int, data []byte) error {
	if b.mem == nil {
		return ErrBufferReleased
	}
	copy(data, b.bytes()[offset:offset+len(data)])
	return nil
}

func (b *hostBuffer) fill(pattern []byte, offset, size int) error {
	if b.mem == nil {
		return ErrBufferReleased
	}
	dst := b.bytes()[offset : offset+size]
	for i := 0; i < size; i += len(pattern) {
		copy(dst[i:], pattern)
	}
	return nil
}

func (b *hostBuffer) release() error {
	b.mem = nil
	return nil
}

type hostArg struct {
	set    bool
	buf    *hostBuffer
	scalar []byte
}

type hostKernel struct {
	sig   Signature
	impl  HostKernelFunc
	lanes int
	args  []hostArg
}

func (k *hostKernel) setScalar(arg ArgSpec, value []byte) error {
	if len(value) != arg.Size {
		return fmt.Errorf("expected %d bytes; got %d", arg.Size, len(value))
	}
	k.args[arg.Index] = hostArg{set: true, scalar: append([]byte(nil), value...)}
	return nil
}

func (k *hostKernel) setBuffer(arg ArgSpec, buf bufferDriver) error {
	hb, ok := buf.(*hostBuffer)
	if !ok {
		return fmt.Errorf("buffer %T does not belong to the host backend", buf)
	}
	k.args[arg.Index] = hostArg{set: true, buf: hb}
	return nil
}

func (k *hostKernel) exec1D(globalWorkSize int) error {
	for index, arg := range k.args {
		if !arg.set {
			return fmt.Errorf("arg %d (%s) is not set", index, k.sig.Args[index].Name)
		}
		if arg.buf != nil && arg.buf.mem == nil {
			return fmt.Errorf("arg %d (%s): %w", index, k.sig.Args[index].Name, ErrBufferReleased)
		}
	}

	args := &HostArgs{sig: k.sig, values: k.args}
	lane, err := k.impl(args)
	if err == nil {
		err = args.Err()
	}
	if err != nil {
		return err
	}

	return runLanes(k.lanes, globalWorkSize, lane)
}

func (k *hostKernel) release() error {
	k.args = nil
	return nil
}

// Split [0, n) into chunks and execute them over at most lanes goroutines.
// A panic inside a lane is converted into an ErrKernelPanic error.
func runLanes(lanes, n int, fn func(gid int)) error {
	chunk := (n + lanes*chunksPerLane - 1) / (lanes * chunksPerLane)
	if chunk < 1 {
		chunk = 1
	}

	var g errgroup.Group
	g.SetLimit(lanes)
	for start := 0; start < n; start += chunk {
		start, end := start, min(start+chunk, n)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("work items [%d, %d): %v: %w", start, end, r, ErrKernelPanic)
				}
			}()
			for gid := start; gid < end; gid++ {
				fn(gid)
			}
			return nil
		})
	}
	return g.Wait()
}
