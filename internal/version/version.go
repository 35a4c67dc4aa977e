// Package version 版本信息（通过 -ldflags 注入）
package version

import "runtime/debug"

var (
	// Version 版本号，构建时覆盖：-X rowsync-core/internal/version.Version=1.2.3
	Version = "dev"

	// BuildTime 构建时间
	BuildTime = ""

	// GitCommit Git 提交
	GitCommit = ""
)

func init() {
	if GitCommit != "" {
		return
	}
	// go install 构建的二进制包含 VCS 信息
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				GitCommit = s.Value
			}
		}
	}
}

// GetVersion 获取完整版本信息
func GetVersion() string {
	version := "v" + Version
	if BuildTime != "" {
		version += " (built " + BuildTime + ")"
	}
	if len(GitCommit) >= 8 {
		version += " commit " + GitCommit[:8]
	}
	return version
}

// GetShortVersion 获取短版本号
func GetShortVersion() string {
	return "v" + Version
}
