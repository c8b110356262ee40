// SPDX-License-Identifier: MIT
//
// Package build provides the build information embedded in the binary at
// compile time using linker flags, for example:
//
//	go build -ldflags "-X spectrum/pkg/build.buildName=spectrum -X spectrum/pkg/build.buildVersion=0.2.0"
//
// Development builds carry no flags and report the defaults.
package build

import (
	"errors"
	"fmt"
)

const (
	DefaultName = "spectrum"
	Description = "Real-time tempered-scale audio spectrum analyzer"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        DefaultName,
		Description: Description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize validates and copies build information from ldflags variables
// into the buildFlags struct. Every missing flag is reported in the returned
// error; the flags that were set are applied regardless, so callers may log
// the error and carry on with the defaults.
func Initialize() error {
	var errs []error
	if buildName == "" {
		errs = append(errs, fmt.Errorf("BuildName is required"))
	} else {
		buildFlags.Name = buildName
	}
	if buildTime == "" {
		errs = append(errs, fmt.Errorf("BuildTime is required"))
	} else {
		buildFlags.Time = buildTime
	}
	if buildCommit == "" {
		errs = append(errs, fmt.Errorf("BuildCommit is required"))
	} else {
		buildFlags.Commit = buildCommit
	}
	if buildVersion == "" {
		errs = append(errs, fmt.Errorf("BuildVersion is required"))
	} else {
		buildFlags.Version = buildVersion
	}
	return errors.Join(errs...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String formats the flags for a version banner.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
