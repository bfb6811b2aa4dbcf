// Package envinfo collects best-effort host and runtime facts for the
// Gate Battery's "environment" gate (spec.md §4.3), which the original
// Python implementation reported as placeholder python_version/platform
// strings. Here the real host is interrogated via gopsutil/ghw.
package envinfo

import (
	"runtime"
	"strconv"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Facts is a flat map of runtime/host descriptor strings, suitable for
// inclusion in a GateResult's Details.
type Facts map[string]string

// Collect gathers host facts. Every field is best-effort: a failing
// probe is simply omitted rather than aborting collection, since the
// environment gate only requires that at least one pinned-environment
// descriptor file exists — these facts are reported, not validated.
func Collect() Facts {
	f := Facts{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"num_cpu":    strconv.Itoa(runtime.NumCPU()),
	}

	if info, err := host.Info(); err == nil {
		f["host_platform"] = info.Platform
		f["host_platform_version"] = info.PlatformVersion
		f["kernel_version"] = info.KernelVersion
	}

	if cores, err := cpu.Counts(false); err == nil && cores > 0 {
		f["cpu_cores"] = strconv.Itoa(cores)
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		f["cpu_model"] = infos[0].ModelName
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		f["mem_total_mb"] = strconv.FormatUint(vm.Total/1024/1024, 10)
	}

	if chassis, err := ghw.Chassis(); err == nil && chassis != nil {
		f["chassis_vendor"] = chassis.Vendor
	}

	return f
}
