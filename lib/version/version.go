// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at link time, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/projfs/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
	BuildTime = ""
)

// shortCommit is the length GitCommit is trimmed to when it comes from
// the embedded VCS stamp, matching git rev-parse --short.
const shortCommit = 7

type stamp struct {
	commit string
	dirty  bool
	time   string
}

// Info returns the one-line version string printed by --version:
//
//	0.1.0-dev (abc1234-dirty, 2026-02-10T09:00:00Z, go1.25.6)
func Info() string {
	var embedded []debug.BuildSetting
	if info, ok := debug.ReadBuildInfo(); ok {
		embedded = info.Settings
	}
	s := resolve(embedded)
	commit := s.commit
	if s.dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s, %s)", Version, commit, s.time, runtime.Version())
}

// resolve prefers the link-time variables and fills the gaps from the
// toolchain's vcs.* build settings.
func resolve(settings []debug.BuildSetting) stamp {
	s := stamp{commit: GitCommit, time: BuildTime}
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			if s.commit == "" {
				s.commit = setting.Value
				if len(s.commit) > shortCommit {
					s.commit = s.commit[:shortCommit]
				}
			}
		case "vcs.time":
			if s.time == "" {
				s.time = setting.Value
			}
		case "vcs.modified":
			s.dirty = setting.Value == "true"
		}
	}
	if s.commit == "" {
		s.commit = "unknown"
	}
	if s.time == "" {
		s.time = "unknown"
	}
	return s
}
