package device

import (
	"errors"
	"strings"
	"testing"
)

func TestDeviceInitReportsBuildLog(t *testing.T) {
	dev := NewHostDevice(1)
	defer dev.Close()

	err := dev.Init(testProgram + "\n__kernel void notImplemented(global float *x) {}\n")
	if err == nil {
		t.Fatal("expected build to fail")
	}

	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected a *BuildError; got %T", err)
	}
	if !errors.Is(err, ErrSetup) {
		t.Fatal("expected build error to be classified as a setup failure")
	}
	if !strings.Contains(buildErr.Log, "notImplemented") {
		t.Fatalf("expected build log to mention the failing kernel; got %q", buildErr.Log)
	}
	if buildErr.Device != dev.Name {
		t.Fatalf("expected build error to reference device %q; got %q", dev.Name, buildErr.Device)
	}

	// The device must remain unusable
	if _, err = dev.Kernel("scale"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady after a failed build; got %v", err)
	}
}

func TestDeviceInitMalformedSource(t *testing.T) {
	dev := NewHostDevice(1)
	err := dev.Init(`__kernel void broken(global float x) {}`)

	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected a *BuildError; got %v", err)
	}
}

func TestDeviceCloseIsIdempotent(t *testing.T) {
	dev := createHostTestDevice(t)

	if err := dev.Close(); err != nil {
		t.Fatal(err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("expected second Close to be a no-op; got %v", err)
	}
}

func TestDeviceUnknownKernel(t *testing.T) {
	dev := createHostTestDevice(t)
	defer dev.Close()

	_, err := dev.Kernel("nope")
	if !errors.Is(err, ErrUnknownKernel) {
		t.Fatalf("expected ErrUnknownKernel; got %v", err)
	}
}

func TestSelectDevice(t *testing.T) {
	dev, err := SelectDevice(WithBackend("host"))
	if err != nil {
		t.Fatal(err)
	}
	if dev.Backend != "host" {
		t.Fatalf("expected host device; got backend %q", dev.Backend)
	}

	_, err = SelectDevice(WithBackend("host"), Blacklist("Go host"))
	if !errors.Is(err, ErrNoDevices) {
		t.Fatalf("expected ErrNoDevices when blacklisting every device; got %v", err)
	}

	_, err = SelectDevice(WithBackend("host"), MatchName("no such device"))
	if !errors.Is(err, ErrNoDevices) {
		t.Fatalf("expected ErrNoDevices for an unmatched name; got %v", err)
	}

	if _, err = SelectDevice(WithBackend("host"), WithType(CpuDevice), Fastest()); err != nil {
		t.Fatal(err)
	}
}

func TestFilters(t *testing.T) {
	list := DeviceList{
		{Name: "slow cpu", Type: CpuDevice, Speed: 10},
		{Name: "fast gpu", Type: GpuDevice, Speed: 100},
		{Name: "medium gpu", Type: GpuDevice, Speed: 50},
	}

	out := Fastest()(list)
	if out[0].Name != "fast gpu" || out[2].Name != "slow cpu" {
		t.Fatalf("expected devices ordered by speed; got %s, %s, %s", out[0].Name, out[1].Name, out[2].Name)
	}
	if list[0].Name != "slow cpu" {
		t.Fatal("expected Fastest not to reorder its input")
	}

	out = WithType(GpuDevice)(list)
	if len(out) != 2 {
		t.Fatalf("expected 2 gpu devices; got %d", len(out))
	}

	out = Blacklist("gpu")(list)
	if len(out) != 1 || out[0].Name != "slow cpu" {
		t.Fatalf("expected blacklist to keep only the cpu device; got %d devices", len(out))
	}
}

func TestPlatformInfo(t *testing.T) {
	platforms, err := GetPlatformInfo()
	if err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, p := range platforms {
		if p.Backend == "host" {
			found = true
			if len(p.Devices) != 1 {
				t.Fatalf("expected host platform to expose 1 device; got %d", len(p.Devices))
			}
			if !strings.Contains(p.String(), "Go host") {
				t.Fatalf("expected platform description to include the device name; got %q", p.String())
			}
		}
	}
	if !found {
		t.Fatal("expected the host backend to be registered")
	}
}
