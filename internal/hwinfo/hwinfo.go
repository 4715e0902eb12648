// Package hwinfo describes the host a model was trained on.
package hwinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// Info is the hardware and software summary written into model cards and
// the AIBOM.
type Info struct {
	CPUBrand     string
	Vendor       string
	LogicalCores int
	Features     []string
	GoVersion    string
	OS           string
	Arch         string
	Module       string
	Version      string
}

// vectorFeatures are the cpuid flags worth reporting for dense math.
var vectorFeatures = []cpuid.FeatureID{
	cpuid.SSE2, cpuid.SSE4, cpuid.AVX, cpuid.AVX2, cpuid.FMA3,
	cpuid.AVX512F, cpuid.AVX512DQ, cpuid.ASIMD, cpuid.SVE,
}

// Describe inspects the current host.
func Describe() Info {
	info := Info{
		CPUBrand:     strings.TrimSpace(cpuid.CPU.BrandName),
		Vendor:       cpuid.CPU.VendorString,
		LogicalCores: cpuid.CPU.LogicalCores,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
	}
	if info.CPUBrand == "" {
		info.CPUBrand = "unknown CPU"
	}
	if info.LogicalCores <= 0 {
		info.LogicalCores = runtime.NumCPU()
	}
	for _, f := range vectorFeatures {
		if cpuid.CPU.Supports(f) {
			info.Features = append(info.Features, f.String())
		}
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.Module = bi.Main.Path
		info.Version = bi.Main.Version
	}
	return info
}

// Hardware is a one-line hardware summary.
func (i Info) Hardware() string {
	s := fmt.Sprintf("%s, %d logical cores", i.CPUBrand, i.LogicalCores)
	if len(i.Features) > 0 {
		s += " (" + strings.Join(i.Features, ", ") + ")"
	}
	return s
}

// Software is a one-line software summary.
func (i Info) Software() string {
	s := fmt.Sprintf("%s %s/%s", i.GoVersion, i.OS, i.Arch)
	if i.Module != "" {
		s += ", " + i.Module
		if i.Version != "" && i.Version != "(devel)" {
			s += " " + i.Version
		}
	}
	return s + ", gonum"
}
