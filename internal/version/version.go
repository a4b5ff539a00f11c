/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version carries build identification for logs and diagnostics.
package version

import "runtime"

// Version is the engine release. Set at build time via ldflags:
//
//	-X github.com/friendsincode/muninn_rotation/internal/version.Version=X.Y.Z
var Version = "dev"

// Commit is the git revision the binary was built from.
var Commit = "unknown"

// BuildDate is the UTC build timestamp.
var BuildDate = "unknown"

// Info is a point-in-time snapshot of the build identity.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Get returns the build identity of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String renders the identity for version banners.
func (i Info) String() string {
	return i.Version + " (" + i.Commit + ", " + i.BuildDate + ", " + i.GoVersion + ")"
}
