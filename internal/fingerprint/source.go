package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
)

// ErrNoIdentifier is returned when the OS exposes no usable identifier.
var ErrNoIdentifier = errors.New("no hardware identifier available")

// SystemSource queries the running machine through gopsutil.
//
// The disk identifier is the serial number of the device backing the system
// volume. The processor identifier is the WMI ProcessorId on Windows (exposed
// by gopsutil as PhysicalID) and the vendor/family/model/stepping signature
// elsewhere.
type SystemSource struct{}

// DiskID implements Source.
func (SystemSource) DiskID(ctx context.Context) (string, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return "", fmt.Errorf("list partitions: %w", err)
	}

	root := systemMountpoint()
	for _, p := range parts {
		if !strings.EqualFold(p.Mountpoint, root) {
			continue
		}
		serial, err := disk.SerialNumberWithContext(ctx, p.Device)
		if err != nil {
			return "", fmt.Errorf("serial number of %s: %w", p.Device, err)
		}
		if serial = strings.TrimSpace(serial); serial == "" {
			return "", fmt.Errorf("serial number of %s: %w", p.Device, ErrNoIdentifier)
		}
		return serial, nil
	}
	return "", fmt.Errorf("system volume %s: %w", root, ErrNoIdentifier)
}

// CPUID implements Source.
func (SystemSource) CPUID(ctx context.Context) (string, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("cpu info: %w", err)
	}
	if len(infos) == 0 {
		return "", ErrNoIdentifier
	}

	info := infos[0]
	if id := strings.TrimSpace(info.PhysicalID); len(id) >= 8 {
		return strings.ToUpper(id), nil
	}

	signature := fmt.Sprintf("%s%s%s%d", info.VendorID, info.Family, info.Model, info.Stepping)
	signature = strings.ToUpper(strings.Join(strings.Fields(signature), ""))
	if signature == "" {
		return "", ErrNoIdentifier
	}
	return signature, nil
}

func systemMountpoint() string {
	if runtime.GOOS == "windows" {
		return "C:"
	}
	return "/"
}

// Static is a Source with fixed identifiers. Empty fields report an error so
// the provider falls back to its placeholders.
type Static struct {
	Disk string
	CPU  string
}

// DiskID implements Source.
func (s Static) DiskID(context.Context) (string, error) {
	if s.Disk == "" {
		return "", ErrNoIdentifier
	}
	return s.Disk, nil
}

// CPUID implements Source.
func (s Static) CPUID(context.Context) (string, error) {
	if s.CPU == "" {
		return "", ErrNoIdentifier
	}
	return s.CPU, nil
}

// WithOverrides returns a Source that reports disk and cpu when they are
// non-empty and defers to base otherwise.
func WithOverrides(base Source, disk, cpu string) Source {
	if disk == "" && cpu == "" {
		return base
	}
	return overrideSource{base: base, disk: disk, cpu: cpu}
}

type overrideSource struct {
	base      Source
	disk, cpu string
}

func (o overrideSource) DiskID(ctx context.Context) (string, error) {
	if o.disk != "" {
		return o.disk, nil
	}
	return o.base.DiskID(ctx)
}

func (o overrideSource) CPUID(ctx context.Context) (string, error) {
	if o.cpu != "" {
		return o.cpu, nil
	}
	return o.base.CPUID(ctx)
}
