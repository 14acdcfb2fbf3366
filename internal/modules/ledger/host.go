package ledger

import (
	"runtime"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostInfo describes the machine a run executed on.
type HostInfo struct {
	Hostname    string `json:"hostname"`
	Platform    string `json:"platform"`
	CPUModel    string `json:"cpu_model"`
	CPUCores    int    `json:"cpu_cores"`
	TotalMemory uint64 `json:"total_memory"`
}

// CollectHostInfo gathers host metadata. Every probe is best effort; a
// failing probe leaves its field empty.
func CollectHostInfo(log zerolog.Logger) HostInfo {
	info := HostInfo{Platform: runtime.GOOS + "/" + runtime.GOARCH}

	if h, err := host.Info(); err != nil {
		log.Warn().Err(err).Msg("Failed to get host information")
	} else {
		info.Hostname = h.Hostname
		if h.Platform != "" {
			info.Platform = h.Platform + " " + h.PlatformVersion + " (" + runtime.GOARCH + ")"
		}
	}

	if cpus, err := cpu.Info(); err != nil {
		log.Warn().Err(err).Msg("Failed to get CPU information")
	} else if len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}

	if n, err := cpu.Counts(true); err != nil {
		log.Warn().Err(err).Msg("Failed to count CPUs")
		info.CPUCores = runtime.NumCPU()
	} else {
		info.CPUCores = n
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		info.TotalMemory = vm.Total
	}

	return info
}
