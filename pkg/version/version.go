// Package version reports the build identity used in startup logs.
package version

import "runtime/debug"

const appName = "scriptorium"

// commitOverride can be set with -ldflags for builds where VCS metadata is
// unavailable, such as container builds without a .git directory.
var commitOverride string

// Full returns "scriptorium/<commit>", with "dev" standing in when no commit
// can be determined.
func Full() string {
	return appName + "/" + commit()
}

func commit() string {
	if commitOverride != "" {
		return short(commitOverride)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return short(s.Value)
			}
		}
	}
	return "dev"
}

func short(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}
