// Package hostinfo queries the host's memory and disk capacity, the inputs
// to catalog eligibility decisions. Capacity is sampled once per run and
// treated as immutable for the rest of the invocation.
package hostinfo

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// DiskGranularityGB is the marketing-size boundary total disk capacity is
// rounded up to before eligibility comparison, so a "512 GB" drive that
// reports 476 usable GB still counts as 512.
const DiskGranularityGB = 128

// Capacity describes the host resources relevant to model eligibility.
// DiskTotalGB is rounded up to the next DiskGranularityGB multiple;
// DiskAvailableGB is the raw free space.
type Capacity struct {
	RAMGB           int
	DiskTotalGB     int
	DiskAvailableGB int
}

// Prober supplies host capacity. The engine takes it as an interface so
// tests can inject fixed capacities.
type Prober interface {
	Capacity(ctx context.Context) (Capacity, error)
}

// SystemProber reads capacity from the running system via gopsutil.
type SystemProber struct {
	mountPath string
}

// NewSystemProber creates a prober measuring disk usage at the given mount
// path ("/" when empty).
func NewSystemProber(mountPath string) *SystemProber {
	if mountPath == "" {
		mountPath = "/"
	}
	return &SystemProber{mountPath: mountPath}
}

// Capacity samples RAM and disk capacity from the host.
func (p *SystemProber) Capacity(ctx context.Context) (Capacity, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Capacity{}, errors.Wrap(err, "failed to query memory")
	}

	usage, err := disk.UsageWithContext(ctx, p.mountPath)
	if err != nil {
		return Capacity{}, errors.Wrapf(err, "failed to query disk usage for %s", p.mountPath)
	}

	return Capacity{
		RAMGB:           bytesToGB(vm.Total),
		DiskTotalGB:     RoundUpToGranularity(bytesToGB(usage.Total)),
		DiskAvailableGB: bytesToGB(usage.Free),
	}, nil
}

// RoundUpToGranularity rounds a GB count up to the next DiskGranularityGB
// multiple.
func RoundUpToGranularity(gb int) int {
	if gb <= 0 {
		return 0
	}
	return (gb + DiskGranularityGB - 1) / DiskGranularityGB * DiskGranularityGB
}

func bytesToGB(b uint64) int {
	return int(b / (1 << 30))
}
