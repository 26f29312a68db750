package internal

import (
	"fmt"
	"runtime"

	"github.com/tinyland-inc/lumenbridge/pkg/config"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
)

// LoadConfig loads the config from the default path with environment
// overrides applied.
func LoadConfig() (*config.Config, error) {
	return config.Load(config.DefaultPath())
}

// FormatVersion returns the version string with optional git commit.
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info.
func FormatBuildInfo() (string, string) {
	goVer := runtime.Version()
	return buildTime, goVer
}
