package device

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestKernelValidate(t *testing.T) {
	dev := createHostTestDevice(t)
	defer dev.Close()

	kernel, err := dev.Kernel("scale")
	if err != nil {
		t.Fatal(err)
	}
	defer kernel.Release()

	if err = kernel.Validate(reflect.TypeOf(scaleArgs{})); err != nil {
		t.Fatalf("expected scaleArgs to validate; got %v", err)
	}

	type tooFew struct {
		Values *Buffer
	}
	type wrongName struct {
		Data   *Buffer
		Factor float32
	}
	type wrongType struct {
		Values *Buffer
		Factor float64
	}
	type scalarForBuffer struct {
		Values uint32
		Factor float32
	}
	type tagged struct {
		Data   *Buffer `arg:"values"`
		Factor float32
	}

	specs := []struct {
		argType reflect.Type
		expErr  string
	}{
		{reflect.TypeOf(tooFew{}), "expected 2 arguments"},
		{reflect.TypeOf(wrongName{}), `expected "values"`},
		{reflect.TypeOf(wrongType{}), "expected float32 for float"},
		{reflect.TypeOf(scalarForBuffer{}), "expected *device.Buffer"},
		{reflect.TypeOf(&tagged{}), ""},
		{reflect.TypeOf(42), "not a struct"},
	}

	for index, spec := range specs {
		err := kernel.Validate(spec.argType)
		if spec.expErr == "" {
			if err != nil {
				t.Errorf("[spec %d] unexpected error: %v", index, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), spec.expErr) {
			t.Errorf("[spec %d] expected error containing %q; got %v", index, spec.expErr, err)
			continue
		}
		if !errors.Is(err, ErrArgMismatch) || !errors.Is(err, ErrSetup) {
			t.Errorf("[spec %d] expected error to wrap ErrArgMismatch and ErrSetup", index)
		}
	}
}

func TestKernelDispatch(t *testing.T) {
	dev := createHostTestDevice(t)
	defer dev.Close()

	kernel, err := dev.Kernel("scale")
	if err != nil {
		t.Fatal(err)
	}
	defer kernel.Release()

	data := make([]float32, 1000)
	for i := range data {
		data[i] = float32(i)
	}

	buf := dev.Buffer("values")
	defer buf.Release()
	if err = buf.AllocateAndWriteData(data, MemReadWrite); err != nil {
		t.Fatal(err)
	}

	_, err = kernel.Dispatch().Args(&scaleArgs{Values: buf, Factor: 2}).Exec1D(len(data))
	if err != nil {
		t.Fatal(err)
	}

	out := make([]float32, len(data))
	if err = buf.ReadData(0, 0, 0, out); err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if v != float32(i)*2 {
			t.Fatalf("expected out[%d] to be %f; got %f", i, float32(i)*2, v)
		}
	}
}

func TestInterleavedDispatchesKeepTheirArgs(t *testing.T) {
	dev := createHostTestDevice(t)
	defer dev.Close()

	kernel, err := dev.Kernel("scale")
	if err != nil {
		t.Fatal(err)
	}
	defer kernel.Release()

	first := dev.Buffer("first")
	defer first.Release()
	second := dev.Buffer("second")
	defer second.Release()
	if err = first.AllocateAndWriteData([]float32{1, 1}, MemReadWrite); err != nil {
		t.Fatal(err)
	}
	if err = second.AllocateAndWriteData([]float32{1, 1}, MemReadWrite); err != nil {
		t.Fatal(err)
	}

	d1 := kernel.Dispatch().Args(&scaleArgs{Values: first, Factor: 3})
	d2 := kernel.Dispatch().Args(&scaleArgs{Values: second, Factor: 0})

	if _, err = d1.Exec1D(2); err != nil {
		t.Fatal(err)
	}

	specs := []struct {
		buf *Buffer
		exp float32
	}{
		{first, 3},
		{second, 1},
	}
	for index, spec := range specs {
		out := make([]float32, 2)
		if err = spec.buf.ReadData(0, 0, 0, out); err != nil {
			t.Fatal(err)
		}
		for i, v := range out {
			if v != spec.exp {
				t.Errorf("[spec %d] expected out[%d] to be %f; got %f", index, i, spec.exp, v)
			}
		}
	}

	if _, err = d2.Exec1D(2); err != nil {
		t.Fatal(err)
	}
	out := make([]float32, 2)
	if err = second.ReadData(0, 0, 0, out); err != nil {
		t.Fatal(err)
	}
	if out[0] != 0 || out[1] != 0 {
		t.Fatalf("expected second dispatch to zero its own buffer; got %v", out)
	}
}

func TestKernelDispatchErrors(t *testing.T) {
	dev := createHostTestDevice(t)
	defer dev.Close()

	kernel, err := dev.Kernel("scale")
	if err != nil {
		t.Fatal(err)
	}
	defer kernel.Release()

	// Unbound arguments
	if err = kernel.Dispatch().Enqueue1D(1); !errors.Is(err, ErrDispatch) {
		t.Fatalf("expected dispatch without args to fail; got %v", err)
	}

	// Unallocated buffer
	_, err = kernel.Dispatch().Args(scaleArgs{Values: dev.Buffer("empty")}).Exec1D(1)
	if !errors.Is(err, ErrBufferReleased) {
		t.Fatalf("expected ErrBufferReleased; got %v", err)
	}

	// Single use
	buf := dev.Buffer("values")
	defer buf.Release()
	if err = buf.Allocate(16, MemReadWrite); err != nil {
		t.Fatal(err)
	}
	dispatch := kernel.Dispatch().Args(scaleArgs{Values: buf, Factor: 1})
	if _, err = dispatch.Exec1D(4); err != nil {
		t.Fatal(err)
	}
	if _, err = dispatch.Exec1D(4); !errors.Is(err, ErrDispatch) {
		t.Fatalf("expected reusing a dispatch to fail; got %v", err)
	}

	// Bind-time mismatch is reported as a dispatch failure
	type bogus struct{ Values *Buffer }
	_, err = kernel.Dispatch().Args(bogus{buf}).Exec1D(4)
	if !errors.Is(err, ErrDispatch) || !errors.Is(err, ErrArgMismatch) {
		t.Fatalf("expected bind-time ErrArgMismatch dispatch failure; got %v", err)
	}
}

func TestKernelAtomicAppend(t *testing.T) {
	dev := createHostTestDevice(t)
	defer dev.Close()

	kernel, err := dev.Kernel("appendSlots")
	if err != nil {
		t.Fatal(err)
	}
	defer kernel.Release()

	const numItems = 4096
	selector := make([]uint32, numItems)
	expCount := 0
	for i := range selector {
		if i%3 == 0 {
			selector[i] = 1
			expCount++
		}
	}

	args := appendSlotsArgs{
		Selector: dev.Buffer("selector"),
		Slots:    dev.Buffer("slots"),
		Count:    dev.Buffer("count"),
	}
	defer args.Selector.Release()
	defer args.Slots.Release()
	defer args.Count.Release()

	if err = args.Selector.AllocateAndWriteData(selector, MemReadOnly); err != nil {
		t.Fatal(err)
	}
	if err = args.Slots.Allocate(numItems*4, MemReadWrite); err != nil {
		t.Fatal(err)
	}
	if err = args.Count.AllocateAndWriteData([]uint32{0}, MemReadWrite); err != nil {
		t.Fatal(err)
	}

	if _, err = kernel.Dispatch().Args(&args).Exec1D(numItems); err != nil {
		t.Fatal(err)
	}

	count := make([]uint32, 1)
	if err = args.Count.ReadData(0, 0, 4, count); err != nil {
		t.Fatal(err)
	}
	if int(count[0]) != expCount {
		t.Fatalf("expected %d appended slots; got %d", expCount, count[0])
	}

	slots := make([]uint32, numItems)
	if err = args.Slots.ReadData(0, 0, 0, slots); err != nil {
		t.Fatal(err)
	}
	seen := make(map[uint32]bool, expCount)
	for _, slot := range slots[:count[0]] {
		if slot%3 != 0 || seen[slot] {
			t.Fatalf("unexpected or duplicate slot %d in compacted list", slot)
		}
		seen[slot] = true
	}
}

func TestKernelLanePanic(t *testing.T) {
	dev := createHostTestDevice(t)
	defer dev.Close()

	kernel, err := dev.Kernel("explode")
	if err != nil {
		t.Fatal(err)
	}
	defer kernel.Release()

	type explodeArgs struct{ Values *Buffer }
	buf := dev.Buffer("values")
	defer buf.Release()
	if err = buf.Allocate(16, MemReadWrite); err != nil {
		t.Fatal(err)
	}

	_, err = kernel.Dispatch().Args(explodeArgs{buf}).Exec1D(4)
	if !errors.Is(err, ErrKernelPanic) || !errors.Is(err, ErrDispatch) {
		t.Fatalf("expected lane panic to surface as ErrKernelPanic; got %v", err)
	}
}
