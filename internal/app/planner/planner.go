// Package planner 是命名层的收口：把按 CODE 聚合的工作单元规划成可直接交给
// 搬移层的 MediaFileSet（目标目录、基础名、属性标签都在这里定下来）。
package planner

import (
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"github.com/John-Robertt/AVMO/internal/attr"
	"github.com/John-Robertt/AVMO/internal/domain"
	"github.com/John-Robertt/AVMO/internal/truncate"
)

// Options 是规划所需的全部外部输入（由 orchestrator 从配置映射而来）。
type Options struct {
	LibraryRoot string // 媒体库根目录（绝对路径）
	Mode        string // domain.ModeMove / domain.ModeHardlink

	MaxNameLen  int    // 最终落盘文件名的长度预算
	LengthUnit  string // truncate.UnitBytes / truncate.UnitChars
	PreserveExt bool   // 预算是否为扩展名预留空间
}

// Build 把一个 WorkItem 规划为 MediaFileSet。
//
// 规则（与上游系统一致）：
//   - 目标目录固定为 <root>/out/<CODE>
//   - 基础名为 CODE；单文件时追加属性后缀（"-U"/"-C"/"-UC"）
//   - 属性标签只计算一次，缓存在 set.Attr 中供报告复用
//   - 基础名截断到预算内：预算扣除扩展名宽度（PreserveExt 时）与多分片的
//     -CD{n} 后缀宽度，保证拼出的落盘名不超限
//
// 返回的 warnings 是非致命警告码列表（目前只有 truncation_degenerate）。
func Build(files []domain.MediaFile, item domain.WorkItem, opts Options) (domain.MediaFileSet, []string) {
	set := domain.MediaFileSet{
		Code:    item.Code,
		SaveDir: filepath.Join(opts.LibraryRoot, "out", string(item.Code)),
		Mode:    opts.Mode,
	}

	set.Files = make([]string, 0, len(item.FileIdx))
	for _, idx := range item.FileIdx {
		set.Files = append(set.Files, files[idx].AbsPath)
	}

	// 属性标签从第一个文件名推导（分片命名只在 CD 编号上有差异）。
	first := files[item.FileIdx[0]]
	set.Attr = attr.Detect(first.Base+first.Ext, string(item.Code))

	basename := string(item.Code)
	if len(set.Files) == 1 && set.Attr != "" {
		basename += "-" + set.Attr
	}

	budget := opts.MaxNameLen - reserve(files, item, opts)
	if budget < 0 {
		budget = 0
	}

	var warnings []string
	truncated, degenerate := truncate.Truncate(basename, budget, opts.LengthUnit, false)
	if degenerate || truncated == "" {
		// 预算小到连 CODE 都放不下：保留完整基础名并上报，绝不产出空名。
		warnings = append(warnings, domain.WarnTruncationDegenerate)
	} else {
		basename = truncated
	}
	set.Basename = basename

	return set, warnings
}

// reserve 计算基础名之外必须预留的宽度：最长扩展名 + 多分片的 -CD{n} 后缀。
func reserve(files []domain.MediaFile, item domain.WorkItem, opts Options) int {
	r := 0
	if opts.PreserveExt {
		for _, idx := range item.FileIdx {
			if w := width(files[idx].Ext, opts.LengthUnit); w > r {
				r = w
			}
		}
	}
	if n := len(item.FileIdx); n > 1 {
		r += width(fmt.Sprintf("-CD%d", n), opts.LengthUnit)
	}
	return r
}

func width(s string, unit string) int {
	if unit == truncate.UnitChars {
		return utf8.RuneCountInString(s)
	}
	return len(s)
}
