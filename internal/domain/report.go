package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusUnmatched = "unmatched"
)

const (
	ErrCodeUnmatchedCode         = "unmatched_code"
	ErrCodeSourceMissing         = "source_missing"
	ErrCodeDuplicateUnresolvable = "duplicate_unresolvable"
	ErrCodeDestUnwritable        = "destination_unwritable"
	ErrCodeMoveFailed            = "move_failed"
	ErrCodeIOFailed              = "io_failed"
	ErrCodeConfigNotFound        = "config_not_found"
	ErrCodeConfigInvalid         = "config_invalid"
	ErrCodeConfigMissingPath     = "config_missing_path"
)

// 非致命的 item 级警告（放在 Warnings 中，不影响 Status）。
const (
	WarnTruncationDegenerate = "truncation_degenerate"
	WarnCleanupBlocked       = "cleanup_blocked"
	WarnCleanupFailed        = "cleanup_failed"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	Path   string `json:"path"`
	DryRun bool   `json:"dry_run"`
	RunID  string `json:"run_id"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Unmatched int `json:"unmatched"`
}

type ItemResult struct {
	Code string `json:"code"`
	Attr string `json:"attr"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	// Warnings 是非致命状况的 warn_code 列表（truncation_degenerate 等）。
	Warnings   []string `json:"warnings"`
	Candidates []string `json:"candidates"`

	Files []FileOutcome `json:"files"`

	CleanupDone    bool     `json:"cleanup_done"`
	CleanupReasons []string `json:"cleanup_reasons"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 code 字典序；code=="" 的条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Code
		b := r.Items[j].Code
		if a == "" && b == "" {
			return false
		}
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusUnmatched:
			s.Unmatched++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
