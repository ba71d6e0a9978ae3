// Package misc keeps build time information about the program.
package misc

import (
	"runtime/debug"
	"sync"
)

const appName = "extcss"

// Set by linker (-ldflags "-X extcss/misc.version=...") when building
// releases, otherwise taken from module build info.
var (
	version = ""
	gitHash = ""
)

var readBuildInfo = sync.OnceFunc(func() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		version = bi.Main.Version
	}
	if gitHash != "" {
		return
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			gitHash = s.Value
			if len(gitHash) > 12 {
				gitHash = gitHash[:12]
			}
			break
		}
	}
})

func GetAppName() string {
	return appName
}

func GetVersion() string {
	readBuildInfo()
	if version == "" {
		return "dev"
	}
	return version
}

func GetGitHash() string {
	readBuildInfo()
	if gitHash == "" {
		return "unknown"
	}
	return gitHash
}
