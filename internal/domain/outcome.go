package domain

// 单个文件的搬移结果状态。
const (
	FileStatusPlanned    = "planned"    // dry-run：仅规划，未执行
	FileStatusMoved      = "moved"      // 已移动到目标路径
	FileStatusHardlinked = "hardlinked" // 已在目标路径创建硬链接（源保留）
	FileStatusDuplicate  = "duplicate"  // 目标已存在：当前源文件已删除，不产生新路径
	FileStatusMissing    = "missing"    // 源文件不存在（常见于重复运行），非致命
	FileStatusFailed     = "failed"     // 该文件失败，或因同组更早的失败未被执行
)

// FileOutcome 是单个文件的搬移结果（duplicate/missing 是预期内状态，不是错误）。
type FileOutcome struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Status string `json:"status"`
}

// RelocationOutcome 是一次 Relocate 调用的完整结果，返回后不再修改。
//
// NewPaths 只包含真正新建的目标路径（duplicate/missing 不贡献条目），顺序与 Files 一致。
type RelocationOutcome struct {
	Files    []FileOutcome `json:"files"`
	NewPaths []string      `json:"new_paths"`

	// 清理级联的结果：Blocked 的原因列表仅供展示，永不致命。
	CleanupAttempted bool     `json:"cleanup_attempted"`
	CleanupDone      bool     `json:"cleanup_done"`
	CleanupReasons   []string `json:"cleanup_reasons"`
}
