// Package infra provides low-level process utilities.
package infra

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// RuntimeInfo describes the running binary's environment.
type RuntimeInfo struct {
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	NumCPU    int    `json:"numCPU"`
}

// GetRuntimeInfo returns information about the current runtime.
func GetRuntimeInfo() RuntimeInfo {
	return RuntimeInfo{
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		NumCPU:    runtime.NumCPU(),
	}
}

// IsTruthyEnv reports whether key is set to 1, true or yes.
func IsTruthyEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// PrintBanner prints the startup banner.
func PrintBanner(version string) {
	rt := GetRuntimeInfo()
	fmt.Println()
	fmt.Println("  Bake Assist: bakery customer chat")
	fmt.Printf("     version: %s\n", version)
	fmt.Printf("     runtime: %s %s/%s (%d CPU)\n", rt.GoVersion, rt.OS, rt.Arch, rt.NumCPU)
	fmt.Println()
}
