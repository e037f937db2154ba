package device

import (
	"fmt"
	"reflect"
	"unsafe"
)

type Buffer struct {
	// Backend buffer handle; nil while the buffer is not allocated.
	drv bufferDriver

	// Associated Device.
	device *Device

	// A name for identifying the buffer.
	name string

	// Allocated size.
	size int
}

// Get buffer size.
func (b *Buffer) Size() int {
	return b.size
}

// Get buffer name.
func (b *Buffer) Name() string {
	return b.name
}

// Returns true if the buffer is backed by device memory.
func (b *Buffer) Allocated() bool {
	return b.drv != nil
}

// Allocate a buffer with the given size and flags. Any previous allocation
// is released first.
func (b *Buffer) Allocate(size int, flags MemFlags) error {
	if err := b.Release(); err != nil {
		return err
	}

	if size <= 0 {
		return fmt.Errorf("%s device (%s): could not allocate buffer %s: invalid size %d: %w", b.device.Backend, b.device.Name, b.name, size, ErrSetup)
	}
	if b.device.MaxAllocSize > 0 && int64(size) > b.device.MaxAllocSize {
		return fmt.Errorf("%s device (%s): could not allocate buffer %s of size %d (max allocation %d): %w", b.device.Backend, b.device.Name, b.name, size, b.device.MaxAllocSize, ErrResourceExhausted)
	}
	if !b.device.ready {
		return fmt.Errorf("%s device (%s): could not allocate buffer %s: %w", b.device.Backend, b.device.Name, b.name, ErrNotReady)
	}

	drv, err := b.device.drv.allocate(b.name, size, flags)
	if err != nil {
		return fmt.Errorf("%s device (%s): could not allocate buffer %s of size %d: %v: %w", b.device.Backend, b.device.Name, b.name, size, err, ErrResourceExhausted)
	}

	b.drv = drv
	b.size = size
	return nil
}

// Allocate a buffer with enough capacity to fit the given slice.
func (b *Buffer) AllocateToFitData(data interface{}, flags MemFlags) error {
	raw, err := sliceBytes(data)
	if err != nil {
		return fmt.Errorf("%s device (%s): could not allocate buffer %s: %v: %w", b.device.Backend, b.device.Name, b.name, err, ErrSetup)
	}
	return b.Allocate(len(raw), flags)
}

// Allocate a buffer that is large enough to hold the given slice and copy
// the slice contents to it.
func (b *Buffer) AllocateAndWriteData(data interface{}, flags MemFlags) error {
	if err := b.AllocateToFitData(data, flags); err != nil {
		return err
	}
	return b.WriteData(data, 0)
}

// Write a slice to the device buffer starting at the given byte offset. The
// call blocks until the copy completes.
func (b *Buffer) WriteData(data interface{}, offset int) error {
	if b.drv == nil {
		return fmt.Errorf("%s device (%s): could not write to buffer %s: %w", b.device.Backend, b.device.Name, b.name, ErrBufferReleased)
	}

	raw, err := sliceBytes(data)
	if err != nil {
		return fmt.Errorf("%s device (%s): could not write to buffer %s: %v: %w", b.device.Backend, b.device.Name, b.name, err, ErrDispatch)
	}

	if offset < 0 || offset+len(raw) > b.size {
		return fmt.Errorf("%s device (%s): insufficient buffer space (%d) in %s for copying data of length %d at offset %d: %w", b.device.Backend, b.device.Name, b.size, b.name, len(raw), offset, ErrBufferTooSmall)
	}

	if err = b.drv.write(offset, raw, true); err != nil {
		return fmt.Errorf("%s device (%s): error copying host data to device buffer %s: %v: %w", b.device.Backend, b.device.Name, b.name, err, ErrDispatch)
	}
	return nil
}

// Read data from the device buffer into the supplied host slice. The call
// blocks until the copy completes.
//
// If size is <= 0 then ReadData will read the entire buffer. Both src and dst
// offsets are specified in bytes.
func (b *Buffer) ReadData(srcOffset, dstOffset, size int, hostBuffer interface{}) error {
	if b.drv == nil {
		return fmt.Errorf("%s device (%s): could not read from buffer %s: %w", b.device.Backend, b.device.Name, b.name, ErrBufferReleased)
	}
	if size <= 0 {
		size = b.size - srcOffset
	}

	raw, err := sliceBytes(hostBuffer)
	if err != nil {
		return fmt.Errorf("%s device (%s): could not read from buffer %s: %v: %w", b.device.Backend, b.device.Name, b.name, err, ErrDispatch)
	}

	if srcOffset < 0 || srcOffset+size > b.size {
		return fmt.Errorf("%s device (%s): read of %d bytes at offset %d exceeds size %d of buffer %s: %w", b.device.Backend, b.device.Name, size, srcOffset, b.size, b.name, ErrBufferTooSmall)
	}
	if dstOffset < 0 || dstOffset+size > len(raw) {
		return fmt.Errorf("%s device (%s): host buffer of %d bytes cannot hold %d bytes at offset %d from %s: %w", b.device.Backend, b.device.Name, len(raw), size, dstOffset, b.name, ErrBufferTooSmall)
	}

	if err = b.drv.read(srcOffset, raw[dstOffset:dstOffset+size]); err != nil {
		return fmt.Errorf("%s device (%s): error copying device data from %s to host buffer: %v: %w", b.device.Backend, b.device.Name, b.name, err, ErrDispatch)
	}
	return nil
}

// Fill a byte range of the buffer by repeating a pattern. The pattern may be
// a fixed-size value (e.g. uint32(0) or a types.Vec4) or a slice. If size is
// <= 0 the range extends to the end of the buffer.
func (b *Buffer) Fill(pattern interface{}, offset, size int) error {
	if b.drv == nil {
		return fmt.Errorf("%s device (%s): could not fill buffer %s: %w", b.device.Backend, b.device.Name, b.name, ErrBufferReleased)
	}
	if size <= 0 {
		size = b.size - offset
	}

	raw, err := valueBytes(pattern)
	if err != nil {
		return fmt.Errorf("%s device (%s): could not fill buffer %s: %v: %w", b.device.Backend, b.device.Name, b.name, err, ErrDispatch)
	}
	if offset < 0 || offset+size > b.size || size%len(raw) != 0 {
		return fmt.Errorf("%s device (%s): fill range [%d, %d) with pattern size %d is invalid for buffer %s of size %d: %w", b.device.Backend, b.device.Name, offset, offset+size, len(raw), b.name, b.size, ErrBufferTooSmall)
	}

	if err = b.drv.fill(raw, offset, size); err != nil {
		return fmt.Errorf("%s device (%s): could not fill buffer %s: %v: %w", b.device.Backend, b.device.Name, b.name, err, ErrDispatch)
	}
	return nil
}

// Release buffer. Releasing an unallocated buffer is a no-op.
func (b *Buffer) Release() error {
	if b.drv == nil {
		return nil
	}

	drv := b.drv
	b.drv = nil
	b.size = 0
	if err := drv.release(); err != nil {
		return fmt.Errorf("%s device (%s): could not release buffer %s: %v: %w", b.device.Backend, b.device.Name, b.name, err, ErrTeardown)
	}
	return nil
}

// Given an interface{} containing a non-empty slice, return a byte view of
// its backing array.
func sliceBytes(data interface{}) ([]byte, error) {
	reflVal := reflect.ValueOf(data)
	if reflVal.Kind() != reflect.Slice {
		return nil, fmt.Errorf("expected a slice; got %T", data)
	}

	sliceElemCount := reflVal.Len()
	if sliceElemCount == 0 {
		return nil, fmt.Errorf("supplied slice is empty")
	}

	byteLen := sliceElemCount * int(reflVal.Type().Elem().Size())
	return unsafe.Slice((*byte)(unsafe.Pointer(reflVal.Pointer())), byteLen), nil
}

// Return the in-memory representation of a fixed-size value or slice.
func valueBytes(value interface{}) ([]byte, error) {
	reflVal := reflect.ValueOf(value)
	if reflVal.Kind() == reflect.Slice {
		return sliceBytes(value)
	}

	switch reflVal.Kind() {
	case reflect.Int32, reflect.Uint32, reflect.Int64, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Uint8, reflect.Int8,
		reflect.Uint16, reflect.Int16, reflect.Array:
	default:
		return nil, fmt.Errorf("unsupported pattern type %T", value)
	}

	// Copy into addressable storage so we can take a pointer to it.
	ptr := reflect.New(reflVal.Type())
	ptr.Elem().Set(reflVal)
	size := int(reflVal.Type().Size())
	if size == 0 {
		return nil, fmt.Errorf("zero-sized pattern type %T", value)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr.Pointer())), size), nil
}
