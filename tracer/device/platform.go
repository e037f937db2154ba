package device

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Information about a compute platform and the devices it exposes.
type PlatformInfo struct {
	Backend    string
	Profile    string
	Version    string
	Name       string
	Vendor     string
	Extensions string
	Devices    DeviceList
}

func (pl PlatformInfo) String() string {
	var buf bytes.Buffer

	buf.WriteString(
		fmt.Sprintf(
			"Backend:    %s\nVersion:    %s\nName:       %s\nVendor:     %s\nExtensions: %s\nDevices:\n",
			pl.Backend,
			pl.Version,
			pl.Name,
			pl.Vendor,
			pl.Extensions,
		),
	)

	for dIdx, d := range pl.Devices {
		buf.WriteString(fmt.Sprintf("  Device %02d:\n", dIdx))
		buf.WriteString(indentRegex.ReplaceAllString(d.String(), "    "))
		buf.WriteString("\n\n")
	}

	return buf.String()
}

// A backend enumerates the platforms of a compute API.
type backend interface {
	Name() string
	Platforms() ([]PlatformInfo, error)
}

var (
	backendMu sync.Mutex
	backends  []backend
)

func registerBackend(b backend) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backends = append(backends, b)
}

// Return the names of the compiled-in backends.
func Backends() []string {
	backendMu.Lock()
	defer backendMu.Unlock()

	names := make([]string, len(backends))
	for i, b := range backends {
		names[i] = b.Name()
	}
	return names
}

// Get information about the platforms and devices of every registered
// backend. Backends that fail to enumerate are skipped; an error is only
// returned when no backend reported a platform.
func GetPlatformInfo() ([]PlatformInfo, error) {
	backendMu.Lock()
	list := append([]backend(nil), backends...)
	backendMu.Unlock()

	var infoList []PlatformInfo
	var errs []error
	for _, b := range list {
		platforms, err := b.Platforms()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %v", b.Name(), err))
			continue
		}
		infoList = append(infoList, platforms...)
	}

	if len(infoList) == 0 {
		if len(errs) != 0 {
			return nil, fmt.Errorf("%w: %v", ErrNoPlatforms, errors.Join(errs...))
		}
		return nil, ErrNoPlatforms
	}
	return infoList, nil
}

// A Filter narrows down or reorders a device list during selection.
type Filter func(DeviceList) DeviceList

// Only keep devices provided by the named backend.
func WithBackend(name string) Filter {
	return func(in DeviceList) DeviceList {
		if name == "" {
			return in
		}
		return in.filter(func(d *Device) bool { return d.Backend == name })
	}
}

// Only keep devices whose type matches the mask.
func WithType(typeMask DeviceType) Filter {
	return func(in DeviceList) DeviceList {
		return in.filter(func(d *Device) bool { return d.Type&typeMask == d.Type })
	}
}

// Only keep devices whose name contains the given value.
func MatchName(matchName string) Filter {
	return func(in DeviceList) DeviceList {
		if matchName == "" {
			return in
		}
		return in.filter(func(d *Device) bool { return strings.Contains(d.Name, matchName) })
	}
}

// Drop devices whose name contains any of the given values.
func Blacklist(names ...string) Filter {
	return func(in DeviceList) DeviceList {
		return in.filter(func(d *Device) bool {
			for _, name := range names {
				if name != "" && strings.Contains(d.Name, name) {
					return false
				}
			}
			return true
		})
	}
}

// Order devices by descending speed estimate.
func Fastest() Filter {
	return func(in DeviceList) DeviceList {
		out := append(DeviceList(nil), in...)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Speed > out[j].Speed })
		return out
	}
}

func (dl DeviceList) filter(keep func(*Device) bool) DeviceList {
	out := make(DeviceList, 0, len(dl))
	for _, d := range dl {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// Scan all available platforms, apply the filters in order and return every
// device that survives.
func SelectDevices(filters ...Filter) (DeviceList, error) {
	platforms, err := GetPlatformInfo()
	if err != nil {
		return nil, err
	}

	var list DeviceList
	for _, p := range platforms {
		list = append(list, p.Devices...)
	}

	for _, f := range filters {
		list = f(list)
	}
	return list, nil
}

// Select the first device that survives the filters. Without filters this is
// the first device of the first platform.
func SelectDevice(filters ...Filter) (*Device, error) {
	list, err := SelectDevices(filters...)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNoDevices
	}
	return list[0], nil
}
