package robomesh

import "github.com/robomesh/go-robomesh/pkg/lib/log"

var logger = log.Logger("robomesh")

// ════════════════════════════════════════════════════════════════════════════
//                              版本信息
// ════════════════════════════════════════════════════════════════════════════

// Version 当前版本
// 更新此版本号时，请同步更新 version.json
const Version = "v0.3.0"

// BuildInfo 构建信息（通过 ldflags 注入）
var (
	// GitCommit Git 提交哈希
	GitCommit string

	// BuildDate 构建日期
	BuildDate string
)

// VersionInfo 返回完整版本信息字符串
func VersionInfo() string {
	info := "RoboMesh " + Version
	if GitCommit != "" {
		info += " (" + log.TruncateID(GitCommit, 8) + ")"
	}
	if BuildDate != "" {
		info += " built " + BuildDate
	}
	return info
}
