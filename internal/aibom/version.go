package aibom

import "runtime/debug"

// Version can be set at build time with
// -ldflags "-X 'github.com/idlab-discover/emotune-cli/internal/aibom.Version=v1.2.3'".
var Version = ""

var readBuildInfo = debug.ReadBuildInfo

// ToolVersion prefers the ldflags value, then module build info.
func ToolVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := readBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return "devel"
}
